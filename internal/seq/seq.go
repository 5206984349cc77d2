// Package seq provides pull-based lazy iterators and the combinators used to
// compose them.
//
// An Iterator yields one item per call to Next and reports exhaustion with a
// false second return. Iterators are single-pass and are not safe for
// concurrent use; the consumer owns the pulling goroutine.
//
// Flatten concatenates a sequence of Providers (anything that can hand out an
// inner Iterator) into one flat sequence, preserving provider order and inner
// order, while holding at most one active inner iterator at a time.
package seq

import "iter"

// Iterator is a single-pass, pull-based sequence of T.
type Iterator[T any] interface {
	// Next returns the next item. ok is false once the sequence is
	// exhausted, and stays false on every later call.
	Next() (item T, ok bool)
}

// Provider converts itself into an inner Iterator for Flatten.
type Provider[T any] interface {
	Iter() Iterator[T]
}

// Func adapts a plain function to the Iterator interface.
type Func[T any] func() (T, bool)

// Next calls f.
func (f Func[T]) Next() (T, bool) {
	return f()
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc[T any] func() Iterator[T]

// Iter calls f.
func (f ProviderFunc[T]) Iter() Iterator[T] {
	return f()
}

// SliceIterator iterates over a slice without copying it.
type SliceIterator[T any] struct {
	items []T
	pos   int
}

// FromSlice returns an Iterator over items.
func FromSlice[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

// Next returns the next element of the slice.
func (s *SliceIterator[T]) Next() (T, bool) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, false
	}
	item := s.items[s.pos]
	s.pos++
	return item, true
}

// Iter lets a slice iterator act as its own provider.
func (s *SliceIterator[T]) Iter() Iterator[T] {
	return s
}

// Collect drains it into a slice.
func Collect[T any](it Iterator[T]) []T {
	var out []T
	for {
		item, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// All adapts it to a range-over-func sequence. Breaking out of the loop
// leaves it positioned after the last yielded item.
func All[T any](it Iterator[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := it.Next()
			if !ok || !yield(item) {
				return
			}
		}
	}
}
