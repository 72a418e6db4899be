// Package swapchain owns the presentable images for a surface and recreates
// them when the surface changes size.
package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

// ErrUnsupported is returned by Rebuild when the surface cannot take a
// swapchain of the requested size right now. The previous swapchain stays
// valid and the caller should try again on a later frame.
var ErrUnsupported = gpu.ErrUnsupportedDimensions

type Manager struct {
	device gpu.Device
	log    logrus.FieldLogger

	info       gpu.SwapchainInfo
	swapchain  gpu.Swapchain
	images     []gpu.Image
	generation uuid.UUID
}

// Create builds the first swapchain for surface. Failure here leaves nothing
// to render to and should end the program.
func Create(surface gpu.Surface, device gpu.Device, log logrus.FieldLogger) (*Manager, error) {
	caps, err := device.SurfaceCapabilities()
	if err != nil {
		return nil, errors.Wrap(err, "querying surface capabilities")
	}

	if len(caps.Formats) == 0 {
		return nil, errors.New("surface reports no supported formats")
	}

	info := gpu.SwapchainInfo{
		MinImageCount:  imageCount(caps),
		Format:         caps.Formats[0],
		Extent:         initialExtent(caps, surface.DrawableSize()),
		Usage:          gpu.ImageUsageColorAttachment,
		CompositeAlpha: compositeAlpha(caps.SupportedCompositeAlpha),
		// FIFO is the one mode every surface must support.
		PresentMode: gpu.PresentModeFIFO,
		Sharing:     gpu.SharingExclusive,
	}

	graphics := device.GraphicsQueue().FamilyIndex()
	present := device.PresentQueue().FamilyIndex()
	if graphics != present {
		info.Sharing = gpu.SharingConcurrent
		info.QueueFamilies = []int{graphics, present}
	}

	m := &Manager{
		device: device,
		log:    log,
		info:   info,
	}

	if err := m.build(info); err != nil {
		return nil, errors.Wrap(err, "creating swapchain")
	}
	return m, nil
}

// Rebuild replaces the swapchain with one of the given size, keeping every
// other creation parameter. The previous swapchain is returned to the caller,
// which must destroy it once no submitted work refers to it.
func (m *Manager) Rebuild(extent gpu.Extent) (gpu.Swapchain, error) {
	if extent.Empty() {
		return nil, ErrUnsupported
	}

	caps, err := m.device.SurfaceCapabilities()
	if err != nil {
		return nil, errors.Wrap(err, "querying surface capabilities")
	}
	if !extent.Within(caps.MinImageExtent, caps.MaxImageExtent) {
		return nil, errors.Wrapf(ErrUnsupported, "%s outside %s..%s",
			extent, caps.MinImageExtent, caps.MaxImageExtent)
	}

	info := m.info
	info.Extent = extent
	info.Old = m.swapchain

	old := m.swapchain
	if err := m.build(info); err != nil {
		if errors.Is(err, gpu.ErrUnsupportedDimensions) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "recreating swapchain at %s", extent)
	}
	return old, nil
}

func (m *Manager) build(info gpu.SwapchainInfo) error {
	swapchain, err := m.device.CreateSwapchain(info)
	if err != nil {
		return err
	}

	info.Old = nil
	m.info = info
	m.swapchain = swapchain
	m.images = swapchain.Images()
	m.generation = uuid.New()

	m.log.WithFields(logrus.Fields{
		"generation": m.generation,
		"extent":     info.Extent,
		"images":     len(m.images),
		"sharing":    info.Sharing,
	}).Debug("swapchain built")
	return nil
}

func (m *Manager) Swapchain() gpu.Swapchain { return m.swapchain }
func (m *Manager) Images() []gpu.Image      { return m.images }
func (m *Manager) Format() gpu.Format       { return m.info.Format }
func (m *Manager) Extent() gpu.Extent       { return m.info.Extent }

// Info returns the parameters the current swapchain was built with.
func (m *Manager) Info() gpu.SwapchainInfo { return m.info }

// Generation identifies the current swapchain in logs. It changes on every
// successful build.
func (m *Manager) Generation() uuid.UUID { return m.generation }

func (m *Manager) Destroy() {
	if m.swapchain != nil {
		m.swapchain.Destroy()
		m.swapchain = nil
		m.images = nil
	}
}

func imageCount(caps gpu.SurfaceCapabilities) int {
	count := caps.MinImageCount
	// Acquiring while the previous image is still presented needs two.
	if count < 2 {
		count = 2
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func compositeAlpha(supported gpu.CompositeAlpha) gpu.CompositeAlpha {
	for _, mode := range gpu.CompositeAlphaPreference {
		if supported&mode != 0 {
			return mode
		}
	}
	return gpu.CompositeAlphaOpaque
}

// initialExtent follows the surface when it dictates a size and otherwise
// clamps the window size into the supported range.
func initialExtent(caps gpu.SurfaceCapabilities, drawable gpu.Extent) gpu.Extent {
	if caps.CurrentExtent.Width >= 0 {
		return caps.CurrentExtent
	}

	extent := drawable
	if extent.Width < caps.MinImageExtent.Width {
		extent.Width = caps.MinImageExtent.Width
	} else if extent.Width > caps.MaxImageExtent.Width {
		extent.Width = caps.MaxImageExtent.Width
	}
	if extent.Height < caps.MinImageExtent.Height {
		extent.Height = caps.MinImageExtent.Height
	} else if extent.Height > caps.MaxImageExtent.Height {
		extent.Height = caps.MaxImageExtent.Height
	}
	return extent
}
