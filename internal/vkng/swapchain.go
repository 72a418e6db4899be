package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

var compositeAlphaModes = map[gpu.CompositeAlpha]khr_surface.CompositeAlphaFlags{
	gpu.CompositeAlphaOpaque:         khr_surface.CompositeAlphaOpaque,
	gpu.CompositeAlphaPreMultiplied:  khr_surface.CompositeAlphaPreMultiplied,
	gpu.CompositeAlphaPostMultiplied: khr_surface.CompositeAlphaPostMultiplied,
	gpu.CompositeAlphaInherit:        khr_surface.CompositeAlphaInherit,
}

var presentModes = map[gpu.PresentMode]khr_surface.PresentMode{
	gpu.PresentModeImmediate:   khr_surface.PresentModeImmediate,
	gpu.PresentModeMailbox:     khr_surface.PresentModeMailbox,
	gpu.PresentModeFIFO:        khr_surface.PresentModeFIFO,
	gpu.PresentModeFIFORelaxed: khr_surface.PresentModeFIFORelaxed,
}

func fromCompositeAlpha(flags khr_surface.CompositeAlphaFlags) gpu.CompositeAlpha {
	var alpha gpu.CompositeAlpha
	for mode, flag := range compositeAlphaModes {
		if flags&flag != 0 {
			alpha |= mode
		}
	}
	return alpha
}

func fromPresentMode(mode khr_surface.PresentMode) (gpu.PresentMode, bool) {
	for gpuMode, vkMode := range presentModes {
		if vkMode == mode {
			return gpuMode, true
		}
	}
	return 0, false
}

func fromExtent(extent core1_0.Extent2D) gpu.Extent {
	return gpu.Extent{Width: extent.Width, Height: extent.Height}
}

func toExtent(extent gpu.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: extent.Width, Height: extent.Height}
}

func toImageUsage(usage gpu.ImageUsage) core1_0.ImageUsageFlags {
	var flags core1_0.ImageUsageFlags
	if usage&gpu.ImageUsageColorAttachment != 0 {
		flags |= core1_0.ImageUsageColorAttachment
	}
	if usage&gpu.ImageUsageTransferSrc != 0 {
		flags |= core1_0.ImageUsageTransferSrc
	}
	return flags
}

func (c *Context) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	caps, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, c.physicalDevice)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}

	formats, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, c.physicalDevice)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}

	modes, _, err := c.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(c.surface, c.physicalDevice)
	if err != nil {
		return gpu.SurfaceCapabilities{}, err
	}

	result := gpu.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           fromExtent(caps.CurrentExtent),
		MinImageExtent:          fromExtent(caps.MinImageExtent),
		MaxImageExtent:          fromExtent(caps.MaxImageExtent),
		SupportedCompositeAlpha: fromCompositeAlpha(caps.SupportedCompositeAlpha),
	}

	for _, format := range formats {
		// A lone undefined format means any format is fine.
		if format.Format == core1_0.FormatUndefined {
			format.Format = core1_0.FormatB8G8R8A8UnsignedNormalized
		}
		converted := gpu.Format(format.Format)
		if _, seen := c.colorSpaces[converted]; !seen {
			result.Formats = append(result.Formats, converted)
		}
		c.colorSpaces[converted] = format.ColorSpace
	}

	for _, mode := range modes {
		if converted, ok := fromPresentMode(mode); ok {
			result.PresentModes = append(result.PresentModes, converted)
		}
	}

	return result, nil
}

// CreateSwapchain returns gpu.ErrUnsupportedDimensions when the surface has
// been minimized since its capabilities were queried.
func (c *Context) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	caps, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, c.physicalDevice)
	if err != nil {
		return nil, err
	}
	if caps.MaxImageExtent.Width == 0 || caps.MaxImageExtent.Height == 0 {
		return nil, gpu.ErrUnsupportedDimensions
	}

	colorSpace, ok := c.colorSpaces[info.Format]
	if !ok {
		colorSpace = khr_surface.ColorSpaceSRGBNonlinear
	}

	sharingMode := core1_0.SharingModeExclusive
	if info.Sharing == gpu.SharingConcurrent {
		sharingMode = core1_0.SharingModeConcurrent
	}

	createInfo := khr_swapchain.SwapchainCreateInfo{
		Surface: c.surface,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format),
		ImageColorSpace:  colorSpace,
		ImageExtent:      toExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       toImageUsage(info.Usage),

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: info.QueueFamilies,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: compositeAlphaModes[info.CompositeAlpha],
		PresentMode:    presentModes[info.PresentMode],
		Clipped:        true,
	}
	if old, ok := info.Old.(*swapchain); ok && old != nil {
		createInfo.OldSwapchain = old.handle
	}

	handle, _, err := c.swapchainExtension.CreateSwapchain(nil, createInfo)
	if err != nil {
		return nil, err
	}

	images, _, err := c.swapchainExtension.GetSwapchainImages(handle)
	if err != nil {
		c.swapchainExtension.DestroySwapchain(handle, nil)
		return nil, errors.Wrap(err, "listing swapchain images")
	}

	s := &swapchain{ctx: c, handle: handle}
	for _, img := range images {
		s.images = append(s.images, &image{handle: img, extent: info.Extent})
	}
	return s, nil
}

type swapchain struct {
	ctx    *Context
	handle khr_swapchain.Swapchain
	images []gpu.Image
}

func (s *swapchain) Images() []gpu.Image { return s.images }

func (s *swapchain) Acquire(signal gpu.Semaphore) (int, bool, error) {
	sem := signal.(*semaphore).handle
	index, res, err := s.ctx.swapchainExtension.AcquireNextImage(s.handle, common.NoTimeout, &sem, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, false, gpu.ErrOutOfDate
	} else if err != nil {
		return 0, false, err
	}
	return index, res == khr_swapchain.VKSuboptimal, nil
}

func (s *swapchain) Destroy() {
	if s.handle.Initialized() {
		s.ctx.swapchainExtension.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
	}
}
