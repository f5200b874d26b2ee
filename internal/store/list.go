// Package store - ordered-list value kind.
//
// A List is an ordered sequence of strings stored under a single key,
// backed by a Go slice. Push/Pop at either end are amortized O(1);
// range reads are O(N) in the size of the requested range. The List
// itself is NOT thread-safe; concurrency is managed by the Store.
package store

// List represents the ordered-sequence variant of a Value.
type List struct {
	items []string
}

func newList() *List {
	return &List{items: make([]string, 0)}
}

// PushLeft prepends a value to the list. Returns the new length.
func (l *List) PushLeft(value string) int {
	l.items = append([]string{value}, l.items...)
	return len(l.items)
}

// PushRight appends a value to the list. Returns the new length.
func (l *List) PushRight(value string) int {
	l.items = append(l.items, value)
	return len(l.items)
}

// PopLeft removes and returns the first element. Popping the last element
// leaves an empty List; the key stays present in the store.
func (l *List) PopLeft() (string, bool) {
	if len(l.items) == 0 {
		return "", false
	}
	val := l.items[0]
	l.items = l.items[1:]
	return val, true
}

// PopRight removes and returns the last element.
func (l *List) PopRight() (string, bool) {
	if len(l.items) == 0 {
		return "", false
	}
	val := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return val, true
}

// Len returns the number of elements in the list.
func (l *List) Len() int {
	return len(l.items)
}

// Range returns elements from start to stop (inclusive). Negative indices
// count from the tail (-1 is the last element). Out-of-bounds indices are
// clamped; an empty or inverted range returns an empty slice, never an
// error.
func (l *List) Range(start, stop int) []string {
	length := len(l.items)
	if length == 0 {
		return nil
	}

	s := l.resolveIndex(start)
	e := l.resolveIndex(stop)

	if s < 0 {
		s = 0
	}
	if e >= length {
		e = length - 1
	}
	if s > e {
		return nil
	}

	result := make([]string, e-s+1)
	copy(result, l.items[s:e+1])
	return result
}

// resolveIndex converts a possibly-negative index to a zero-based one.
func (l *List) resolveIndex(index int) int {
	if index < 0 {
		return len(l.items) + index
	}
	return index
}
