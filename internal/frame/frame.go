package frame

import (
	"time"

	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/target"
)

// Frame is an acquired swapchain image with an open render pass. Scene code
// records draws into Commands and hands the frame back to Engine.EndFrame.
type Frame struct {
	slot     *slot
	index    int
	target   target.Target
	viewport gpu.Viewport
	scissor  gpu.Rect
	aspect   float32
	start    time.Duration
}

func (f *Frame) Commands() gpu.CommandBuffer { return f.slot.commands }
func (f *Frame) ImageIndex() int             { return f.index }
func (f *Frame) Target() target.Target       { return f.target }

// Viewport has already been set on Commands.
func (f *Frame) Viewport() gpu.Viewport { return f.viewport }
func (f *Frame) Scissor() gpu.Rect      { return f.scissor }
func (f *Frame) AspectRatio() float32   { return f.aspect }
