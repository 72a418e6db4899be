// Package viewport holds the dynamic viewport derived from the swapchain
// extent.
package viewport

import "github.com/vkngwrapper/cubes/internal/gpu"

// State is refreshed after every swapchain rebuild and read while recording.
type State struct {
	viewport gpu.Viewport
	extent   gpu.Extent
}

func New(extent gpu.Extent) *State {
	s := &State{}
	s.Refresh(extent)
	return s
}

// Refresh covers the whole extent with the full depth range.
func (s *State) Refresh(extent gpu.Extent) {
	s.extent = extent
	s.viewport = gpu.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func (s *State) Viewport() gpu.Viewport { return s.viewport }
func (s *State) Extent() gpu.Extent     { return s.extent }

// Scissor is the rectangle covered by the viewport.
func (s *State) Scissor() gpu.Rect {
	return gpu.Rect{
		X: int(s.viewport.X),
		Y: int(s.viewport.Y),
		Extent: gpu.Extent{
			Width:  int(s.viewport.Width),
			Height: int(s.viewport.Height),
		},
	}
}

// AspectRatio is width over height, or 1 for an empty extent.
func (s *State) AspectRatio() float32 {
	if s.extent.Empty() {
		return 1
	}
	return float32(s.extent.Width) / float32(s.extent.Height)
}
