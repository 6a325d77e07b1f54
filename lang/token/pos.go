package token

// Pos is a 1-based source line number. The language's diagnostics never
// report a column, only a line, so unlike richer languages this is not a
// packed line/column encoding.
type Pos int

// NoPos is the zero value, meaning "unknown position".
const NoPos Pos = 0

// Unknown reports whether p carries no position information.
func (p Pos) Unknown() bool { return p == NoPos }
