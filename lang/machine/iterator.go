package machine

// Iterator is a live cursor over a source value, created by OpIterNew and
// consumed by OpIterNext/OpIterHasNext. The only iterable source today is
// *Array; any other source produces an iterator that is immediately
// exhausted, matching the original implementation's fallback behavior.
type Iterator struct {
	source Value
	index  int
}

// NewIterator wraps source in a fresh, unconsumed Iterator, retaining source
// the way any other durable holder of a heap value does: the iterator keeps
// its source alive for as long as it is itself reachable, per §3's "holds a
// strong reference to the source".
func NewIterator(source Value) *Iterator {
	retain(source)
	return &Iterator{source: source}
}

func (it *Iterator) Type() string   { return "iterator" }
func (it *Iterator) String() string { return "<iterator>" }
func (it *Iterator) Truth() bool    { return true }

// HasNext reports whether Next would return another element.
func (it *Iterator) HasNext() bool {
	arr, ok := it.source.(*Array)
	if !ok {
		return false
	}
	return it.index < arr.Len()
}

// Next returns the next element and advances the cursor, or returns None
// once the iterator is exhausted.
func (it *Iterator) Next() Value {
	arr, ok := it.source.(*Array)
	if !ok {
		return None
	}
	if it.index >= arr.Len() {
		return None
	}
	v := arr.Get(it.index)
	it.index++
	return v
}
