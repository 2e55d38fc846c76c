package core

import (
	"sync"
	"sync/atomic"
)

// Descriptor reference word layout. The low 31 bits count in-flight users of
// a descriptor; the top bit is set while a close waits for them to drain.
const (
	closingBit uint32 = 1 << 31
	refMask           = closingBit - 1
)

// slot holds one descriptor number. The first InlineSlots slots are embedded
// in the Table; the rest are created on first allocation and live as long as
// the table geometry that created them.
type slot struct {
	file atomic.Pointer[File]
	refs atomic.Uint32

	exclose atomic.Bool
	foclose atomic.Bool

	// allocated mirrors the bitmap bit. Written under the table lock.
	allocated atomic.Bool

	// closing is signalled as users drain; its locker is the table mutex.
	closing sync.Cond
}

func newSlot(mu *sync.Mutex) *slot {
	s := &slot{}
	s.closing.L = mu
	return s
}

func (s *slot) reset() {
	s.file.Store(nil)
	s.refs.Store(0)
	s.exclose.Store(false)
	s.foclose.Store(false)
	s.allocated.Store(false)
}
