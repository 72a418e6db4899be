package frame_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/vkngwrapper/cubes/internal/frame"
	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/gpu/gputest"
	"github.com/vkngwrapper/cubes/internal/target"
)

type harness struct {
	dev     *gputest.Device
	surface *gputest.Surface
	pass    *gputest.RenderPass
	engine  *frame.Engine
	hook    *test.Hook
}

func newHarness(c *qt.C) *harness {
	log, hook := test.NewNullLogger()
	h := &harness{
		dev:     gputest.NewDevice(),
		surface: &gputest.Surface{Size: gpu.Extent{Width: 800, Height: 600}},
		hook:    hook,
	}
	h.pass = h.dev.NewRenderPass(44, true)

	engine, err := frame.New(h.dev, h.surface, h.pass, frame.Options{
		Logger:     log,
		ClearColor: [4]float32{0, 0, 0, 1},
	})
	c.Assert(err, qt.IsNil)
	h.engine = engine
	return h
}

func (h *harness) swapchain() *gputest.Swapchain {
	return h.dev.Swapchains[len(h.dev.Swapchains)-1]
}

func (h *harness) begin(c *qt.C) *frame.Frame {
	f, err := h.engine.BeginFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.IsNotNil)
	return f
}

func (h *harness) render(c *qt.C) *frame.Frame {
	f := h.begin(c)
	f.Commands().Draw(36)
	c.Assert(h.engine.EndFrame(f), qt.IsNil)
	return f
}

func TestTwoImageFrames(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
	c.Assert(h.engine.Targets().Len(), qt.Equals, 2)

	first := h.begin(c)
	c.Assert(first.ImageIndex(), qt.Equals, 0)
	c.Assert(first.Viewport(), qt.Equals, gpu.Viewport{Width: 800, Height: 600, MaxDepth: 1})
	first.Commands().Draw(36)
	c.Assert(h.engine.EndFrame(first), qt.IsNil)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)

	second := h.begin(c)
	c.Assert(second.ImageIndex(), qt.Equals, 1)
	c.Assert(h.engine.EndFrame(second), qt.IsNil)

	c.Assert(h.engine.InFlight(), qt.Equals, 2)
	c.Assert(h.dev.Graphics.Submits, qt.HasLen, 2)
	c.Assert(h.dev.Graphics.Presents, qt.HasLen, 2)
	c.Assert(h.dev.Graphics.Presents[0].ImageIndex, qt.Equals, 0)
	c.Assert(h.dev.Graphics.Presents[1].ImageIndex, qt.Equals, 1)
	c.Assert(h.engine.Stats().Frames, qt.Equals, uint64(2))

	h.dev.CompleteAll()
	h.engine.CleanupFinished()

	c.Assert(h.engine.InFlight(), qt.Equals, 0)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
}

func TestFrameRecordsIntoAcquiredTarget(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	f := h.begin(c)

	cmd := f.Commands().(*gputest.CommandBuffer)
	c.Assert(cmd.Calls, qt.DeepEquals, []string{"begin", "begin render pass", "set viewport", "set scissor"})
	c.Assert(cmd.Framebuffer, qt.Equals, h.engine.Targets().At(f.ImageIndex()).Framebuffer())
	c.Assert(cmd.Clear, qt.Equals, gpu.ClearValues{Color: [4]float32{0, 0, 0, 1}, Depth: 1, ClearDepth: true})
	c.Assert(cmd.Scissor, qt.Equals, gpu.Rect{Extent: gpu.Extent{Width: 800, Height: 600}})
	c.Assert(f.Target().Kind(), qt.Equals, target.KindColorDepth)

	c.Assert(h.engine.EndFrame(f), qt.IsNil)

	submit := h.dev.Graphics.Submits[0]
	c.Assert(submit.Commands, qt.Equals, f.Commands())
	c.Assert(submit.WaitSemaphores, qt.HasLen, 1)
	c.Assert(submit.SignalSemaphores, qt.HasLen, 1)
	c.Assert(h.dev.Graphics.Presents[0].WaitSemaphores[0], qt.Equals, submit.SignalSemaphores[0])
	c.Assert(h.dev.Graphics.Presents[0].Swapchain, qt.Equals, gpu.Swapchain(h.swapchain()))
	c.Assert(cmd.Calls[len(cmd.Calls)-2:], qt.DeepEquals, []string{"end render pass", "end"})
}

func TestResizeRebuildsBeforeAcquire(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.render(c)
	old := h.swapchain()
	oldTargets := h.engine.Targets()

	h.surface.Size = gpu.Extent{Width: 1024, Height: 768}
	h.engine.RequestResize()
	f := h.begin(c)

	c.Assert(h.engine.ResizeNeeded(), qt.IsFalse)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)
	c.Assert(h.swapchain().Info.Old, qt.Equals, gpu.Swapchain(old))
	c.Assert(h.engine.Targets(), qt.Not(qt.Equals), oldTargets)
	c.Assert(h.engine.Targets().Len(), qt.Equals, len(h.swapchain().Images()))
	c.Assert(h.engine.Targets().Extent(), qt.Equals, gpu.Extent{Width: 1024, Height: 768})
	c.Assert(f.Viewport().Width, qt.Equals, float32(1024))
	c.Assert(f.Viewport().Height, qt.Equals, float32(768))
	c.Assert(h.engine.Stats().Rebuilds, qt.Equals, uint64(1))

	// The first frame still references the old swapchain and targets.
	c.Assert(old.Destroyed(), qt.IsFalse)
	c.Assert(h.dev.Depths[0].Destroyed(), qt.IsFalse)

	c.Assert(h.engine.EndFrame(f), qt.IsNil)
	h.dev.CompleteNext()
	h.engine.CleanupFinished()

	c.Assert(old.Destroyed(), qt.IsTrue)
	c.Assert(h.dev.Depths[0].Destroyed(), qt.IsTrue)
	c.Assert(h.dev.Depths[1].Destroyed(), qt.IsFalse)
}

func TestResizeWithNothingInFlightReleasesImmediately(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	old := h.swapchain()

	h.surface.Size = gpu.Extent{Width: 640, Height: 480}
	h.engine.RequestResize()
	h.begin(c)

	c.Assert(old.Destroyed(), qt.IsTrue)
	c.Assert(h.dev.Live(gputest.KindSwapchain), qt.Equals, 1)
	c.Assert(h.dev.Live(gputest.KindDepth), qt.Equals, 1)
	c.Assert(h.dev.Live(gputest.KindFramebuffer), qt.Equals, 2)
}

func TestRepeatedResizeIsIdempotent(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.surface.Size = gpu.Extent{Width: 1024, Height: 768}

	h.engine.RequestResize()
	h.render(c)
	first := h.swapchain().Info
	first.Old = nil

	h.engine.RequestResize()
	h.render(c)
	second := h.swapchain().Info
	second.Old = nil

	c.Assert(second, qt.DeepEquals, first)
	c.Assert(h.engine.Targets().Len(), qt.Equals, 2)
	c.Assert(h.engine.Viewport().Extent(), qt.Equals, gpu.Extent{Width: 1024, Height: 768})
}

func TestMinimizedWindowSkipsFrames(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	h.surface.Size = gpu.Extent{}
	h.engine.RequestResize()

	for i := 0; i < 3; i++ {
		f, err := h.engine.BeginFrame()
		c.Assert(err, qt.IsNil)
		c.Assert(f, qt.IsNil)
		c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	}
	c.Assert(h.dev.Swapchains, qt.HasLen, 1)
	c.Assert(h.engine.Viewport().Extent(), qt.Equals, gpu.Extent{Width: 800, Height: 600})
	c.Assert(h.engine.Stats().Skipped, qt.Equals, uint64(3))
	c.Assert(h.dev.Graphics.Submits, qt.HasLen, 0)

	h.surface.Size = gpu.Extent{Width: 800, Height: 600}
	f := h.begin(c)

	c.Assert(h.engine.ResizeNeeded(), qt.IsFalse)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)
	c.Assert(h.engine.EndFrame(f), qt.IsNil)
}

func TestAcquireOutOfDateSkipsAndRebuilds(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.swapchain().Script = []gputest.AcquireResult{{Err: errors.Wrap(gpu.ErrOutOfDate, "acquire")}}

	f, err := h.engine.BeginFrame()

	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.IsNil)
	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	c.Assert(h.dev.Commands, qt.HasLen, 0)

	f = h.begin(c)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)
	c.Assert(f.ImageIndex(), qt.Equals, 0)
	c.Assert(h.dev.Live(gputest.KindSemaphore), qt.Equals, 2)
}

func TestAcquireSuboptimalStillRenders(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.swapchain().Script = []gputest.AcquireResult{{Index: 1, Suboptimal: true}}

	f := h.begin(c)

	c.Assert(f.ImageIndex(), qt.Equals, 1)
	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	c.Assert(h.engine.EndFrame(f), qt.IsNil)
	c.Assert(h.dev.Graphics.Presents, qt.HasLen, 1)

	h.begin(c)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)
}

func TestAcquireFailureIsFatal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.swapchain().Script = []gputest.AcquireResult{{Err: errors.New("device lost")}}

	f, err := h.engine.BeginFrame()

	c.Assert(f, qt.IsNil)
	c.Assert(err, qt.ErrorMatches, "acquiring swapchain image: device lost")
}

func TestAcquiredIndexOutsideTargetsIsFatal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.swapchain().Script = []gputest.AcquireResult{{Index: 2}}

	_, err := h.engine.BeginFrame()

	c.Assert(err, qt.ErrorMatches, "acquired image 2 but only 2 frame targets exist")
}

func TestPresentOutOfDateResetsSignal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.dev.Graphics.PresentResults = []gputest.PresentResult{{Err: gpu.ErrOutOfDate}}

	h.render(c)

	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
	c.Assert(h.engine.InFlight(), qt.Equals, 1)

	h.render(c)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)
}

func TestPresentSuboptimalKeepsSignal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.dev.Graphics.PresentResults = []gputest.PresentResult{{Suboptimal: true}}

	h.render(c)

	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)
}

func TestPresentFailureIsLoggedAndRecovered(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.dev.Graphics.PresentResults = []gputest.PresentResult{{Err: errors.New("surface lost")}}

	h.render(c)

	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
	c.Assert(h.engine.ResizeNeeded(), qt.IsFalse)
	c.Assert(h.hook.LastEntry().Level, qt.Equals, logrus.ErrorLevel)

	// The slot that failed to present is not reused.
	h.dev.CompleteAll()
	h.engine.CleanupFinished()
	c.Assert(h.dev.Live(gputest.KindSemaphore), qt.Equals, 0)
	c.Assert(h.dev.Live(gputest.KindFence), qt.Equals, 0)

	h.render(c)
	c.Assert(h.dev.Graphics.Submits, qt.HasLen, 2)
}

func TestSubmitFailureDropsFrame(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.render(c)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)
	h.dev.Graphics.SubmitErrs = []error{errors.New("out of host memory")}

	f := h.begin(c)
	c.Assert(h.engine.EndFrame(f), qt.IsNil)

	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
	c.Assert(h.engine.Stats().Dropped, qt.Equals, uint64(1))
	c.Assert(h.engine.InFlight(), qt.Equals, 1)
	c.Assert(h.dev.Graphics.Presents, qt.HasLen, 1)
	c.Assert(f.Commands(), qt.IsNil)

	// The dropped frame's image was never presented; replacing the
	// swapchain is the only way to get it back.
	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)

	h.render(c)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)
	c.Assert(h.engine.ResizeNeeded(), qt.IsFalse)
	c.Assert(h.dev.Swapchains, qt.HasLen, 2)

	old := h.dev.Swapchains[0]
	c.Assert(old.Destroyed(), qt.IsFalse)
	h.dev.CompleteAll()
	c.Assert(h.engine.CleanupFinished(), qt.IsNil)
	c.Assert(old.Destroyed(), qt.IsTrue)
}

func TestFencePollFailureIsFatal(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.render(c)
	h.dev.CompleteAll()
	h.dev.FenceErr = errors.New("device lost")

	c.Assert(h.engine.CleanupFinished(), qt.ErrorMatches, "polling frame fence: device lost")
	c.Assert(h.engine.InFlight(), qt.Equals, 1)

	f, err := h.engine.BeginFrame()
	c.Assert(f, qt.IsNil)
	c.Assert(err, qt.ErrorMatches, "polling frame fence: device lost")
	c.Assert(h.dev.Graphics.Submits, qt.HasLen, 1)

	h.dev.FenceErr = nil
	h.render(c)
	c.Assert(h.engine.InFlight(), qt.Equals, 1)
}

func TestSubmitOutOfDateRequestsResize(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.dev.Graphics.SubmitErrs = []error{gpu.ErrOutOfDate}

	h.render(c)

	c.Assert(h.engine.ResizeNeeded(), qt.IsTrue)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
}

func TestDoubleRenderPassEndIsAWarning(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	f := h.begin(c)
	c.Assert(f.Commands().EndRenderPass(), qt.IsNil)
	err := h.engine.EndFrame(f)

	c.Assert(err, qt.IsNil)
	c.Assert(h.hook.LastEntry().Level, qt.Equals, logrus.WarnLevel)
	c.Assert(h.hook.LastEntry().Message, qt.Equals, "render pass already ended")
	c.Assert(h.dev.Graphics.Submits, qt.HasLen, 1)
}

func TestCleanupOnlyReleasesCompletedFrames(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	first := h.render(c).Commands().(*gputest.CommandBuffer)
	second := h.render(c).Commands().(*gputest.CommandBuffer)

	c.Assert(h.dev.Outstanding(), qt.Equals, 2)
	h.dev.CompleteNext()
	c.Assert(h.dev.Outstanding(), qt.Equals, 1)
	h.engine.CleanupFinished()

	c.Assert(h.engine.InFlight(), qt.Equals, 1)
	c.Assert(first.Freed(), qt.IsTrue)
	c.Assert(second.Freed(), qt.IsFalse)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsFalse)

	h.dev.CompleteNext()
	h.engine.CleanupFinished()

	c.Assert(h.engine.InFlight(), qt.Equals, 0)
	c.Assert(second.Freed(), qt.IsTrue)
	c.Assert(h.engine.LastSignal().Ready(), qt.IsTrue)
}

func TestSlotsAreReused(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	for i := 0; i < 20; i++ {
		h.render(c)
		h.dev.CompleteAll()
	}

	c.Assert(h.dev.Live(gputest.KindFence), qt.Equals, 1)
	c.Assert(h.dev.Live(gputest.KindSemaphore), qt.Equals, 2)
	c.Assert(h.dev.Live(gputest.KindCommands), qt.Equals, 1)
}

func TestFrameMisuse(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	c.Assert(h.engine.EndFrame(nil), qt.ErrorMatches, "ending a frame that is not in progress")

	f := h.begin(c)
	_, err := h.engine.BeginFrame()
	c.Assert(err, qt.ErrorMatches, "previous frame was never ended")

	c.Assert(h.engine.EndFrame(f), qt.IsNil)
	c.Assert(h.engine.EndFrame(f), qt.ErrorMatches, "ending a frame that is not in progress")

	// Once its slot is reused, an old frame still cannot end the new one.
	h.dev.CompleteAll()
	next := h.begin(c)
	c.Assert(h.dev.Live(gputest.KindFence), qt.Equals, 1)
	c.Assert(h.engine.EndFrame(f), qt.ErrorMatches, "ending a frame that is not in progress")
	c.Assert(h.engine.EndFrame(next), qt.IsNil)
}

func TestCloseWaitsAndReleasesEverything(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.render(c)
	h.render(c)
	h.surface.Size = gpu.Extent{Width: 1280, Height: 720}
	h.engine.RequestResize()
	h.render(c)
	h.begin(c)

	c.Assert(h.engine.Close(), qt.IsNil)

	c.Assert(h.dev.WaitIdleCalls, qt.Equals, 1)
	c.Assert(h.dev.Outstanding(), qt.Equals, 0)
	c.Assert(h.dev.DoubleDestroys, qt.Equals, 0)
	c.Assert(h.dev.Leaks(), qt.DeepEquals, []string{"1 render pass"})
	for _, kind := range []string{
		gputest.KindSwapchain,
		gputest.KindImageView,
		gputest.KindDepth,
		gputest.KindFramebuffer,
		gputest.KindSemaphore,
		gputest.KindFence,
		gputest.KindCommands,
	} {
		c.Assert(h.dev.Live(kind), qt.Equals, 0, qt.Commentf("%s", kind))
	}
	c.Assert(h.dev.Live(gputest.KindRenderPass), qt.Equals, 1)
}
