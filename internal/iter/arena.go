// Package iter implements the Traversal Iterators (spec.md §4.I): generic
// lazy combinators plus label-typed adapters over the Graph Store,
// composed into staged pipelines by the query runtime. The Vector Index,
// BM25 Index and PPR Engine have no adapters here. Every
// adapter borrows the transaction and arena that produced it; neither
// may be kept past the call that created them (spec.md §4.I, §5, §9 —
// a program bug, not a typed failure mode).
package iter

import "sync"

// Arena is a short-lived scratch-buffer pool for adapters that need to
// build composite keys or temporary slices without extra per-call heap
// allocation. Grounded on the reference codebase's pkg/pool byte-buffer
// pool (sync.Pool of []byte, length reset to zero on borrow), scoped
// here to the lifetime of one traversal instead of a process-wide
// singleton, per spec.md §4.A/§9's "arena lifetime >= transaction
// lifetime, iterators borrow both" discipline.
type Arena struct {
	pool    sync.Pool
	claimed [][]byte
}

// NewArena builds an empty arena. Callers should Release it once every
// iterator pipeline that borrowed it has been fully drained.
func NewArena() *Arena {
	a := &Arena{}
	a.pool.New = func() any { return make([]byte, 0, 64) }
	return a
}

// Get returns a scratch buffer of length n, zeroed capacity-permitting
// reused from the pool. The buffer is only valid until Release.
func (a *Arena) Get(n int) []byte {
	buf := a.pool.Get().([]byte)
	if cap(buf) < n {
		buf = make([]byte, n)
	} else {
		buf = buf[:n]
		for i := range buf {
			buf[i] = 0
		}
	}
	a.claimed = append(a.claimed, buf)
	return buf
}

// Release returns every buffer this arena handed out back to the pool.
// After Release, no slice previously returned by Get may be read.
func (a *Arena) Release() {
	for _, buf := range a.claimed {
		a.pool.Put(buf[:0])
	}
	a.claimed = a.claimed[:0]
}
