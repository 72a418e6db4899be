package viewport_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/viewport"
)

func TestViewportFollowsExtent(t *testing.T) {
	c := qt.New(t)

	state := viewport.New(gpu.Extent{Width: 800, Height: 600})

	c.Assert(state.Viewport(), qt.Equals, gpu.Viewport{
		X: 0, Y: 0, Width: 800, Height: 600, MinDepth: 0, MaxDepth: 1,
	})
	c.Assert(state.Scissor(), qt.Equals, gpu.Rect{Extent: gpu.Extent{Width: 800, Height: 600}})
	c.Assert(state.AspectRatio(), qt.Equals, float32(800)/float32(600))
}

func TestRefreshReplacesViewport(t *testing.T) {
	c := qt.New(t)
	state := viewport.New(gpu.Extent{Width: 800, Height: 600})

	state.Refresh(gpu.Extent{Width: 1920, Height: 1080})

	c.Assert(state.Extent(), qt.Equals, gpu.Extent{Width: 1920, Height: 1080})
	c.Assert(state.Viewport().Width, qt.Equals, float32(1920))
	c.Assert(state.Viewport().Height, qt.Equals, float32(1080))
	c.Assert(state.Scissor().Extent, qt.Equals, state.Extent())
}

func TestEmptyExtentAspect(t *testing.T) {
	c := qt.New(t)

	state := viewport.New(gpu.Extent{})

	c.Assert(state.AspectRatio(), qt.Equals, float32(1))
}
