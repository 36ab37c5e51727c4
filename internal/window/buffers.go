package window

import (
	"github.com/apache/arrow-go/v18/arrow/bitutil"
)

// scratchBuffers holds the peer, frame and validity buffers shared by all
// apply calls. They are allocated once at operator construction, sized to the
// output batch capacity, and overwritten on every call; the invariant is that
// every buffer is at least as long as the rows produced in the current call.
type scratchBuffers struct {
	capacity int

	peerStarts []int
	peerEnds   []int

	// Per window function.
	frameStarts [][]int
	frameEnds   [][]int
	validity    [][]byte
}

func newScratchBuffers(capacity, numFuncs int) *scratchBuffers {
	s := &scratchBuffers{
		capacity:    capacity,
		peerStarts:  make([]int, capacity),
		peerEnds:    make([]int, capacity),
		frameStarts: make([][]int, numFuncs),
		frameEnds:   make([][]int, numFuncs),
		validity:    make([][]byte, numFuncs),
	}
	for w := 0; w < numFuncs; w++ {
		s.frameStarts[w] = make([]int, capacity)
		s.frameEnds[w] = make([]int, capacity)
		s.validity[w] = make([]byte, bitutil.BytesForBits(int64(capacity)))
	}
	return s
}

// markAllValid sets every bit of the given function's validity bitmap.
// Invalidity is only computed afterwards, for k-offset frames.
func (s *scratchBuffers) markAllValid(fn int) {
	bits := s.validity[fn]
	for i := range bits {
		bits[i] = 0xFF
	}
}
