package gpu

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfDate means the swapchain no longer matches the surface and must
	// be rebuilt before it can be used again.
	ErrOutOfDate = errors.New("swapchain out of date")

	// ErrUnsupportedDimensions means the surface cannot currently accept a
	// swapchain of the requested size, usually because the window is
	// minimized or mid-resize.
	ErrUnsupportedDimensions = errors.New("unsupported swapchain dimensions")

	ErrRenderPassEnded = errors.New("render pass already ended")
)
