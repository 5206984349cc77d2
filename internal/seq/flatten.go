package seq

import (
	"errors"
	"io"
)

// Flat is the state machine behind Flatten: the remaining outer sequence of
// providers plus at most one active inner iterator.
type Flat[T any, P Provider[T]] struct {
	outer   Iterator[P]
	current Iterator[T]
	done    bool
}

// Flatten returns one flat iterator over every item of every provider in
// outer. Providers are converted lazily, one at a time, in order.
func Flatten[T any, P Provider[T]](outer Iterator[P]) *Flat[T, P] {
	return &Flat[T, P]{outer: outer}
}

// Next pulls from the active inner iterator, advancing to the next provider
// whenever the active one is exhausted.
func (f *Flat[T, P]) Next() (T, bool) {
	var zero T
	if f.done {
		return zero, false
	}

	for {
		if f.current != nil {
			if item, ok := f.current.Next(); ok {
				return item, true
			}
			closeQuietly(f.current)
			f.current = nil
		}

		provider, ok := f.outer.Next()
		if !ok {
			f.done = true
			return zero, false
		}
		f.current = provider.Iter()
	}
}

// Close releases the active inner iterator and every provider that was never
// converted, for those that implement io.Closer. The iterator is exhausted
// afterwards.
func (f *Flat[T, P]) Close() error {
	if f.done && f.current == nil {
		return nil
	}
	f.done = true

	var errs []error
	if f.current != nil {
		if c, ok := f.current.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		f.current = nil
	}
	for {
		provider, ok := f.outer.Next()
		if !ok {
			break
		}
		if c, ok := any(provider).(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
