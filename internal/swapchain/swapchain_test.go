package swapchain_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/gpu/gputest"
	"github.com/vkngwrapper/cubes/internal/swapchain"
)

func newManager(c *qt.C, dev *gputest.Device) *swapchain.Manager {
	log, _ := test.NewNullLogger()
	m, err := swapchain.Create(&gputest.Surface{Size: gpu.Extent{Width: 800, Height: 600}}, dev, log)
	c.Assert(err, qt.IsNil)
	return m
}

func TestCreateSelectsSurfaceDefaults(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.Caps.SupportedCompositeAlpha = gpu.CompositeAlphaPostMultiplied | gpu.CompositeAlphaInherit

	m := newManager(c, dev)

	info := m.Info()
	c.Assert(info.MinImageCount, qt.Equals, 2)
	c.Assert(info.Format, qt.Equals, gpu.Format(44))
	c.Assert(info.CompositeAlpha, qt.Equals, gpu.CompositeAlphaPostMultiplied)
	c.Assert(info.PresentMode, qt.Equals, gpu.PresentModeFIFO)
	c.Assert(info.Usage, qt.Equals, gpu.ImageUsageColorAttachment)
	c.Assert(info.Sharing, qt.Equals, gpu.SharingExclusive)
	c.Assert(info.QueueFamilies, qt.HasLen, 0)
	c.Assert(m.Extent(), qt.Equals, gpu.Extent{Width: 800, Height: 600})
	c.Assert(m.Images(), qt.HasLen, 2)
}

func TestCreateSharesImagesAcrossQueueFamilies(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.SplitQueues(3)

	m := newManager(c, dev)

	c.Assert(m.Info().Sharing, qt.Equals, gpu.SharingConcurrent)
	c.Assert(m.Info().QueueFamilies, qt.DeepEquals, []int{0, 3})
}

func TestCreateClampsWhenSurfaceSizeIsOpen(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.Caps.CurrentExtent = gpu.Extent{Width: -1, Height: -1}
	dev.Caps.MaxImageExtent = gpu.Extent{Width: 640, Height: 4096}

	m := newManager(c, dev)

	c.Assert(m.Extent(), qt.Equals, gpu.Extent{Width: 640, Height: 600})
}

func TestCreateRaisesSingleImageMinimum(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.Caps.MinImageCount = 1

	m := newManager(c, dev)

	c.Assert(m.Images(), qt.HasLen, 2)
}

func TestCreateFailureIsReported(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.CapsErr = errors.New("surface lost")
	log, _ := test.NewNullLogger()

	_, err := swapchain.Create(&gputest.Surface{}, dev, log)

	c.Assert(err, qt.ErrorMatches, "querying surface capabilities: surface lost")
}

func TestRebuildKeepsParametersAndReturnsOld(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	dev.SplitQueues(1)
	m := newManager(c, dev)
	first := m.Swapchain()
	firstGeneration := m.Generation()

	old, err := m.Rebuild(gpu.Extent{Width: 1024, Height: 768})
	c.Assert(err, qt.IsNil)

	c.Assert(old, qt.Equals, first)
	c.Assert(first.(*gputest.Swapchain).Destroyed(), qt.IsFalse)
	c.Assert(m.Extent(), qt.Equals, gpu.Extent{Width: 1024, Height: 768})
	c.Assert(m.Generation(), qt.Not(qt.Equals), firstGeneration)

	created := dev.Swapchains[1].Info
	c.Assert(created.Old, qt.Equals, first)
	c.Assert(created.Format, qt.Equals, gpu.Format(44))
	c.Assert(created.Sharing, qt.Equals, gpu.SharingConcurrent)
	c.Assert(created.Usage, qt.Equals, gpu.ImageUsageColorAttachment)
	c.Assert(m.Info().Old, qt.IsNil)
}

func TestRebuildIsIdempotent(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	m := newManager(c, dev)
	size := gpu.Extent{Width: 1024, Height: 768}

	_, err := m.Rebuild(size)
	c.Assert(err, qt.IsNil)
	first := m.Info()
	firstImages := len(m.Images())

	_, err = m.Rebuild(size)
	c.Assert(err, qt.IsNil)

	c.Assert(m.Info(), qt.DeepEquals, first)
	c.Assert(m.Images(), qt.HasLen, firstImages)
}

func TestRebuildRejectsUnsupportedDimensions(t *testing.T) {
	for _, size := range []gpu.Extent{
		{Width: 0, Height: 0},
		{Width: 0, Height: 600},
		{Width: 8192, Height: 600},
	} {
		t.Run(size.String(), func(t *testing.T) {
			c := qt.New(t)
			dev := gputest.NewDevice()
			m := newManager(c, dev)
			before := m.Swapchain()

			old, err := m.Rebuild(size)

			c.Assert(errors.Is(err, swapchain.ErrUnsupported), qt.IsTrue)
			c.Assert(old, qt.IsNil)
			c.Assert(m.Swapchain(), qt.Equals, before)
			c.Assert(m.Extent(), qt.Equals, gpu.Extent{Width: 800, Height: 600})
			c.Assert(dev.Swapchains, qt.HasLen, 1)
		})
	}
}

func TestRebuildPassesThroughBackendUnsupported(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	m := newManager(c, dev)
	dev.SwapchainErrs = []error{gpu.ErrUnsupportedDimensions}

	_, err := m.Rebuild(gpu.Extent{Width: 640, Height: 480})

	c.Assert(errors.Is(err, swapchain.ErrUnsupported), qt.IsTrue)
	c.Assert(m.Extent(), qt.Equals, gpu.Extent{Width: 800, Height: 600})
}

func TestRebuildWrapsOtherFailures(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	m := newManager(c, dev)
	dev.SwapchainErrs = []error{errors.New("device lost")}

	_, err := m.Rebuild(gpu.Extent{Width: 640, Height: 480})

	c.Assert(err, qt.ErrorMatches, "recreating swapchain at 640x480: device lost")
	c.Assert(errors.Is(err, swapchain.ErrUnsupported), qt.IsFalse)
}

func TestDestroyReleasesSwapchain(t *testing.T) {
	c := qt.New(t)
	dev := gputest.NewDevice()
	m := newManager(c, dev)

	m.Destroy()
	m.Destroy()

	c.Assert(dev.Live(gputest.KindSwapchain), qt.Equals, 0)
	c.Assert(dev.DoubleDestroys, qt.Equals, 0)
}
