package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type slotState int

const (
	slotIdle slotState = iota
	slotAcquired
	slotSubmitted
)

func (s slotState) String() string {
	switch s {
	case slotAcquired:
		return "acquired"
	case slotSubmitted:
		return "submitted"
	default:
		return "idle"
	}
}

// slot carries the synchronization objects of one frame from acquire until
// its fence signals. Slots are pooled and reused, moving from idle to
// acquired to submitted and back to idle.
type slot struct {
	state slotState
	// frame is the frame being recorded while acquired.
	frame *Frame
	// submission orders submitted slots, newest highest.
	submission uint64

	acquired gpu.Semaphore
	rendered gpu.Semaphore
	fence    gpu.Fence
	commands gpu.CommandBuffer
	image    int

	// retired objects are destroyed once fence signals.
	retired []gpu.Destroyer

	// discard is set when a semaphore may have been left signalled; the slot
	// is destroyed rather than pooled.
	discard bool
}

func (s *slot) transition(from, to slotState) error {
	if s.state != from {
		return errors.Newf("frame slot is %s, expected %s", s.state, from)
	}
	s.state = to
	return nil
}

// release destroys what the slot retired and frees its command buffer.
func (s *slot) release() {
	for _, obj := range s.retired {
		obj.Destroy()
	}
	s.retired = nil

	if s.commands != nil {
		s.commands.Free()
		s.commands = nil
	}
}

func (s *slot) destroySync() {
	s.acquired.Destroy()
	s.rendered.Destroy()
	s.fence.Destroy()
}

// Signal is the completion signal of the most recent submission. The zero
// Signal is already complete.
type Signal struct {
	fence gpu.Fence
}

// Ready reports whether nothing is known to be pending. It is true at
// startup, after a failed frame, and once the submission's fence has been
// collected by cleanup.
func (s Signal) Ready() bool {
	return s.fence == nil
}

// Fence is the fence of the pending submission, or nil when Ready.
func (s Signal) Fence() gpu.Fence {
	return s.fence
}
