package scanner_test

import (
	"testing"

	"github.com/mna/mica/lang/scanner"
	"github.com/mna/mica/lang/token"
	"github.com/stretchr/testify/require"
)

func kinds(toks []scanner.Token) []token.Token {
	out := make([]token.Token, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func scanAll(src string) []scanner.Token {
	s := scanner.New(src)
	var toks []scanner.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func TestScanBasic(t *testing.T) {
	toks := scanAll(`let mut x = 1 + 2.5 * "hi" // comment
fn f(a, b) { return a }`)
	require.Equal(t, []token.Token{
		token.LET, token.MUT, token.IDENT, token.EQ, token.INT, token.PLUS, token.FLOAT,
		token.STAR, token.STRING,
		token.FN, token.IDENT, token.LPAREN, token.IDENT, token.COMMA, token.IDENT, token.RPAREN,
		token.LBRACE, token.RETURN, token.IDENT, token.RBRACE,
		token.EOF,
	}, kinds(toks))
}

func TestScanOperators(t *testing.T) {
	toks := scanAll(`== != <= >= -> => | < >`)
	require.Equal(t, []token.Token{
		token.EQL, token.NEQ, token.LE, token.GE, token.ARROW, token.FATARROW, token.PIPE,
		token.LT, token.GT, token.EOF,
	}, kinds(toks))
}

func TestBangAloneIsError(t *testing.T) {
	toks := scanAll(`!`)
	require.Equal(t, token.ERROR, toks[0].Kind)
}

func TestLineTracking(t *testing.T) {
	toks := scanAll("let a = 1\nlet b = 2\n")
	var lines []int
	for _, tok := range toks {
		if tok.Kind == token.LET {
			lines = append(lines, tok.Line)
		}
	}
	require.Equal(t, []int{1, 2}, lines)
}

func TestNoneKeyword(t *testing.T) {
	toks := scanAll(`None`)
	require.Equal(t, token.NONE, toks[0].Kind)
}

func TestStringLiteralNoEscapes(t *testing.T) {
	toks := scanAll(`"abc def"`)
	require.Equal(t, token.STRING, toks[0].Kind)
	require.Equal(t, "abc def", toks[0].StringValue())
}

func TestUnterminatedString(t *testing.T) {
	toks := scanAll(`"abc`)
	require.Equal(t, token.ERROR, toks[0].Kind)
}

func TestIntAndFloatValues(t *testing.T) {
	toks := scanAll(`42 3.14`)
	iv, err := toks[0].IntValue()
	require.NoError(t, err)
	require.EqualValues(t, 42, iv)

	fv, err := toks[1].FloatValue()
	require.NoError(t, err)
	require.InDelta(t, 3.14, fv, 0.0001)
}
