package iter

// Iterator is a lazy, pull-based sequence of T, produced by repeatedly
// calling Next until ok is false or err is non-nil. Nothing is computed
// until Next is called, so a long adapter chain (Filter -> Out -> Map)
// never materializes an intermediate slice.
type Iterator[T any] struct {
	advance func() (T, bool, error)
}

// Next pulls the next element. ok is false once the sequence is
// exhausted; a non-nil err aborts the sequence immediately (ok is
// always false alongside a non-nil err).
func (it *Iterator[T]) Next() (T, bool, error) {
	return it.advance()
}

// Of builds a source iterator over an in-memory slice, the usual entry
// point for a pipeline seeded from a caller-supplied id list.
func Of[T any](items []T) *Iterator[T] {
	i := 0
	return &Iterator[T]{advance: func() (T, bool, error) {
		if i >= len(items) {
			var zero T
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	}}
}

// Filter keeps only elements for which pred returns true.
func Filter[T any](it *Iterator[T], pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{advance: func() (T, bool, error) {
		for {
			v, ok, err := it.Next()
			if err != nil || !ok {
				return v, ok, err
			}
			if pred(v) {
				return v, true, nil
			}
		}
	}}
}

// Map transforms each element, short-circuiting the sequence on the
// first error fn returns.
func Map[T, U any](it *Iterator[T], fn func(T) (U, error)) *Iterator[U] {
	return &Iterator[U]{advance: func() (U, bool, error) {
		v, ok, err := it.Next()
		if err != nil || !ok {
			var zero U
			return zero, false, err
		}
		u, err := fn(v)
		if err != nil {
			var zero U
			return zero, false, err
		}
		return u, true, nil
	}}
}

// FlatMap expands each element into zero or more downstream elements,
// the primitive behind the graph-expansion adapters (Out/In/OutEdge/
// InEdge): one source id can fan out to many neighbors.
func FlatMap[T, U any](it *Iterator[T], fn func(T) ([]U, error)) *Iterator[U] {
	var buf []U
	idx := 0
	done := false
	return &Iterator[U]{advance: func() (U, bool, error) {
		for {
			if idx < len(buf) {
				v := buf[idx]
				idx++
				return v, true, nil
			}
			if done {
				var zero U
				return zero, false, nil
			}
			v, ok, err := it.Next()
			if err != nil {
				var zero U
				return zero, false, err
			}
			if !ok {
				done = true
				var zero U
				return zero, false, nil
			}
			next, err := fn(v)
			if err != nil {
				var zero U
				return zero, false, err
			}
			buf, idx = next, 0
		}
	}}
}

// Count drains it, returning the number of elements produced.
func Count[T any](it *Iterator[T]) (int, error) {
	n := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Collect drains it into a slice.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	var out []T
	for {
		v, ok, err := it.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// First drains at most n elements, stopping early without pulling the
// rest of the sequence.
func First[T any](it *Iterator[T], n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]T, 0, n)
	for len(out) < n {
		v, ok, err := it.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// Range drains elements by ordinal position [start, end), discarding
// the first start elements and stopping once end is reached.
func Range[T any](it *Iterator[T], start, end int) ([]T, error) {
	if end <= start {
		return nil, nil
	}
	pos := 0
	var out []T
	for pos < end {
		v, ok, err := it.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		if pos >= start {
			out = append(out, v)
		}
		pos++
	}
	return out, nil
}
