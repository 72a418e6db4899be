package frame

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSlotTransitions(t *testing.T) {
	c := qt.New(t)
	s := &slot{}

	c.Assert(s.transition(slotIdle, slotAcquired), qt.IsNil)
	c.Assert(s.transition(slotAcquired, slotSubmitted), qt.IsNil)
	c.Assert(s.transition(slotSubmitted, slotIdle), qt.IsNil)
	c.Assert(s.state, qt.Equals, slotIdle)
}

func TestSlotRejectsSkippedStates(t *testing.T) {
	tests := []struct {
		name     string
		state    slotState
		from, to slotState
		want     string
	}{
		{"submit without acquire", slotIdle, slotAcquired, slotSubmitted, "frame slot is idle, expected acquired"},
		{"acquire twice", slotAcquired, slotIdle, slotAcquired, "frame slot is acquired, expected idle"},
		{"recycle unsubmitted", slotAcquired, slotSubmitted, slotIdle, "frame slot is acquired, expected submitted"},
	}
	for _, test := range tests {
		qt.New(t).Run(test.name, func(c *qt.C) {
			s := &slot{state: test.state}

			c.Assert(s.transition(test.from, test.to), qt.ErrorMatches, test.want)
			c.Assert(s.state, qt.Equals, test.state)
		})
	}
}
