// SPDX-License-Identifier: MIT
package source

import "sync"

// blockSlot is the single-slot hand-off between an audio producer and the
// analysis loop. The producer overwrites the slot on every block; the
// consumer copies the latest value out. Overwritten blocks are simply lost,
// which is the intended stale-read tolerance: the producer must never block
// on a slow consumer. Both sides copy into pre-allocated buffers, so the
// lock is held only for a memcpy.
type blockSlot struct {
	mu   sync.Mutex
	buf  []float64
	seq  uint64 // incremented on every put
	read uint64 // seq of the last taken block
}

func newBlockSlot(size int) *blockSlot {
	return &blockSlot{buf: make([]float64, size)}
}

// put overwrites the slot with a copy of block.
func (s *blockSlot) put(block []float64) {
	s.mu.Lock()
	copy(s.buf, block)
	s.seq++
	s.mu.Unlock()
}

// take copies the latest block into dst and reports whether it was fresh,
// i.e. published since the previous take.
func (s *blockSlot) take(dst []float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == s.read {
		return false
	}
	copy(dst, s.buf)
	s.read = s.seq
	return true
}
