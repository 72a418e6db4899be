// Package gpu describes the handful of device objects the renderer needs from a
// graphics backend. The frame engine, swapchain manager and target set are
// written against these interfaces; internal/vkng implements them on top of
// Vulkan and internal/gpu/gputest implements them in memory.
package gpu

import "fmt"

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width  int
	Height int
}

// Empty reports whether the extent covers no pixels, as happens while a
// window is minimized.
func (e Extent) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

// Within reports whether e fits inside the inclusive range [min, max].
func (e Extent) Within(min, max Extent) bool {
	return e.Width >= min.Width && e.Width <= max.Width &&
		e.Height >= min.Height && e.Height <= max.Height
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Format is a backend pixel format identifier. Backends convert their own
// enumerations to and from it.
type Format int

const FormatUndefined Format = 0

// CompositeAlpha is a bitmask of the ways the presentation engine may blend
// swapchain images with the rest of the desktop.
type CompositeAlpha int

const (
	CompositeAlphaOpaque CompositeAlpha = 1 << iota
	CompositeAlphaPreMultiplied
	CompositeAlphaPostMultiplied
	CompositeAlphaInherit
)

// CompositeAlphaPreference is the order in which supported composite alpha
// modes are considered when creating a swapchain.
var CompositeAlphaPreference = [4]CompositeAlpha{
	CompositeAlphaOpaque,
	CompositeAlphaPreMultiplied,
	CompositeAlphaPostMultiplied,
	CompositeAlphaInherit,
}

type PresentMode int

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFIFO
	PresentModeFIFORelaxed
)

type SharingMode int

const (
	SharingExclusive SharingMode = iota
	SharingConcurrent
)

func (m SharingMode) String() string {
	if m == SharingConcurrent {
		return "concurrent"
	}
	return "exclusive"
}

type ImageUsage int

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageTransferSrc
)

// SurfaceCapabilities is what the surface reports about the swapchains it
// accepts. A CurrentExtent with a negative width means the surface size is
// decided by the swapchain.
type SurfaceCapabilities struct {
	MinImageCount int
	// MaxImageCount is zero when the surface imposes no upper bound.
	MaxImageCount int

	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent

	SupportedCompositeAlpha CompositeAlpha
	Formats                 []Format
	PresentModes            []PresentMode
}

// SwapchainInfo holds every parameter used to build a swapchain. Rebuilds
// copy it and change only Extent and Old.
type SwapchainInfo struct {
	MinImageCount  int
	Format         Format
	Extent         Extent
	Usage          ImageUsage
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode

	Sharing       SharingMode
	QueueFamilies []int

	// Old is handed to the backend so that it can recycle presentation
	// resources. It is not destroyed by the backend.
	Old Swapchain
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	X, Y   int
	Extent Extent
}

// ClearValues are applied when a render pass begins. Depth is only used when
// ClearDepth is set.
type ClearValues struct {
	Color      [4]float32
	Depth      float32
	ClearDepth bool
}

// ShaderStage selects which pipeline stages receive push constants.
type ShaderStage int

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)
