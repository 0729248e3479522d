package indexer

import "sync/atomic"

// Sequence hands out symbol ids. A build draws from the sequence it is given
// instead of a package-level counter, so ids are scoped to whoever owns the
// sequence. Reusing one Sequence across builds guarantees a later build never
// reissues an earlier build's ids.
type Sequence struct {
	next atomic.Uint64
}

// NewSequence returns a Sequence whose first id is start. A start of zero is
// bumped to one so that zero never identifies a symbol.
func NewSequence(start uint64) *Sequence {
	if start == 0 {
		start = 1
	}
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns a fresh id.
func (s *Sequence) Next() uint64 {
	return s.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return.
func (s *Sequence) Peek() uint64 {
	return s.next.Load()
}
