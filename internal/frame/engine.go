// Package frame drives the per-frame cycle of acquiring a swapchain image,
// recording into it, submitting and presenting. It rebuilds the swapchain when
// the surface changes and tracks submitted work so that resources are only
// released once the device is done with them.
package frame

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/cubes/internal/gpu"
	"github.com/vkngwrapper/cubes/internal/swapchain"
	"github.com/vkngwrapper/cubes/internal/target"
	"github.com/vkngwrapper/cubes/internal/viewport"
)

type Options struct {
	Logger     logrus.FieldLogger
	ClearColor [4]float32
}

type Stats struct {
	// Frames counts submitted frames.
	Frames uint64
	// Skipped counts frames that never acquired an image.
	Skipped uint64
	// Dropped counts frames whose submission failed.
	Dropped  uint64
	Rebuilds uint64
	// LastFrame is the CPU time spent between BeginFrame and EndFrame of
	// the most recent submitted frame.
	LastFrame time.Duration
}

type Engine struct {
	device  gpu.Device
	surface gpu.Surface
	pass    gpu.RenderPass
	log     logrus.FieldLogger
	clear   [4]float32

	swapchains *swapchain.Manager
	targets    *target.Set
	viewport   *viewport.State

	slots []*slot
	free  []*slot
	// submissions numbers submitted frames so the newest can be found.
	submissions uint64
	last        Signal

	resizeNeeded bool
	stats        Stats
}

// New builds the swapchain, frame targets and viewport for surface. Any error
// is fatal.
func New(device gpu.Device, surface gpu.Surface, pass gpu.RenderPass, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	swapchains, err := swapchain.Create(surface, device, log)
	if err != nil {
		return nil, err
	}

	targets, err := target.Build(device, swapchains.Images(), swapchains.Format(), swapchains.Extent(), pass)
	if err != nil {
		swapchains.Destroy()
		return nil, errors.Wrap(err, "building frame targets")
	}

	return &Engine{
		device:     device,
		surface:    surface,
		pass:       pass,
		log:        log,
		clear:      opts.ClearColor,
		swapchains: swapchains,
		targets:    targets,
		viewport:   viewport.New(swapchains.Extent()),
	}, nil
}

// RequestResize marks the swapchain for rebuilding at the start of the next
// frame. Window code calls it on resize events.
func (e *Engine) RequestResize() {
	e.resizeNeeded = true
}

func (e *Engine) ResizeNeeded() bool            { return e.resizeNeeded }
func (e *Engine) LastSignal() Signal            { return e.last }
func (e *Engine) Targets() *target.Set          { return e.targets }
func (e *Engine) Viewport() *viewport.State     { return e.viewport }
func (e *Engine) Swapchain() *swapchain.Manager { return e.swapchains }
func (e *Engine) Stats() Stats                  { return e.stats }

// InFlight is the number of submitted frames not yet collected by
// CleanupFinished.
func (e *Engine) InFlight() int {
	n := 0
	for _, s := range e.slots {
		if s.state == slotSubmitted {
			n++
		}
	}
	return n
}

// BeginFrame acquires the next image and opens its render pass. A nil frame
// with a nil error means this frame is skipped, usually because the surface
// is being resized; the caller should move on to the next iteration. Errors
// are fatal.
func (e *Engine) BeginFrame() (*Frame, error) {
	for _, s := range e.slots {
		if s.state == slotAcquired {
			return nil, errors.New("previous frame was never ended")
		}
	}

	if err := e.CleanupFinished(); err != nil {
		return nil, err
	}

	if e.resizeNeeded {
		err := e.rebuild()
		if errors.Is(err, swapchain.ErrUnsupported) {
			e.stats.Skipped++
			e.log.WithField("extent", e.surface.DrawableSize()).Debug("surface not ready, skipping frame")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	start := hrtime.Now()

	s, err := e.takeSlot()
	if err != nil {
		return nil, err
	}

	index, suboptimal, err := e.swapchains.Swapchain().Acquire(s.acquired)
	if errors.Is(err, gpu.ErrOutOfDate) {
		e.free = append(e.free, s)
		e.resizeNeeded = true
		e.stats.Skipped++
		e.log.WithField("generation", e.swapchains.Generation()).Debug("swapchain out of date on acquire")
		return nil, nil
	} else if err != nil {
		e.free = append(e.free, s)
		return nil, errors.Wrap(err, "acquiring swapchain image")
	}
	if suboptimal {
		e.resizeNeeded = true
	}

	if index < 0 || index >= e.targets.Len() {
		e.discard(s)
		return nil, errors.Newf("acquired image %d but only %d frame targets exist", index, e.targets.Len())
	}
	tgt := e.targets.At(index)

	cmd, err := e.device.AllocateCommandBuffer()
	if err != nil {
		e.discard(s)
		return nil, errors.Wrap(err, "allocating command buffer")
	}
	s.commands = cmd
	s.image = index
	if err := s.transition(slotIdle, slotAcquired); err != nil {
		e.discard(s)
		return nil, err
	}

	err = cmd.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning command buffer")
	}

	clear := gpu.ClearValues{
		Color:      e.clear,
		Depth:      1.0,
		ClearDepth: tgt.Kind() == target.KindColorDepth,
	}
	err = cmd.BeginRenderPass(e.pass, tgt.Framebuffer(), clear)
	if err != nil {
		return nil, errors.Wrap(err, "beginning render pass")
	}

	cmd.SetViewport(e.viewport.Viewport())
	cmd.SetScissor(e.viewport.Scissor())

	s.frame = &Frame{
		slot:     s,
		index:    index,
		target:   tgt,
		viewport: e.viewport.Viewport(),
		scissor:  e.viewport.Scissor(),
		aspect:   e.viewport.AspectRatio(),
		start:    start,
	}
	return s.frame, nil
}

// EndFrame closes the render pass, submits the frame and presents it. Stale
// swapchains and failed submissions are handled here and do not produce an
// error; only a command buffer that cannot be finalized is fatal.
func (e *Engine) EndFrame(f *Frame) error {
	if f == nil || f.slot.frame != f {
		return errors.New("ending a frame that is not in progress")
	}
	s := f.slot
	s.frame = nil

	err := s.commands.EndRenderPass()
	if errors.Is(err, gpu.ErrRenderPassEnded) {
		e.log.Warn("render pass already ended")
	} else if err != nil {
		return errors.Wrap(err, "ending render pass")
	}

	err = s.commands.End()
	if err != nil {
		return errors.Wrap(err, "finalizing command buffer")
	}

	// Submissions on one queue execute in order, so waiting on this frame's
	// acquire is enough to follow the previous frame.
	err = e.device.GraphicsQueue().Submit(gpu.SubmitInfo{
		WaitSemaphores:   []gpu.Semaphore{s.acquired},
		Commands:         s.commands,
		SignalSemaphores: []gpu.Semaphore{s.rendered},
		Fence:            s.fence,
	})
	if err != nil {
		e.stats.Dropped++
		e.discard(s)
		// The acquired image is never presented, so only a new swapchain
		// hands it back.
		e.resizeNeeded = true
		e.fail("submit", err)
		return nil
	}

	if err := s.transition(slotAcquired, slotSubmitted); err != nil {
		return err
	}
	e.submissions++
	s.submission = e.submissions
	e.last = Signal{fence: s.fence}
	e.stats.Frames++
	e.stats.LastFrame = hrtime.Since(f.start)

	suboptimal, err := e.device.PresentQueue().Present(gpu.PresentInfo{
		WaitSemaphores: []gpu.Semaphore{s.rendered},
		Swapchain:      e.swapchains.Swapchain(),
		ImageIndex:     s.image,
	})
	if err != nil {
		s.discard = true
		e.fail("present", err)
	} else if suboptimal {
		e.resizeNeeded = true
	}

	return nil
}

// CleanupFinished polls every submitted frame without blocking and releases
// the ones the device has finished with. A fence that cannot be polled keeps
// its frame pending and is reported; BeginFrame treats that as fatal.
func (e *Engine) CleanupFinished() error {
	var finished []*slot
	var pollErr error
	for _, s := range e.slots {
		if s.state != slotSubmitted {
			continue
		}
		done, err := s.fence.Signaled()
		if err != nil {
			if pollErr == nil {
				pollErr = errors.Wrap(err, "polling frame fence")
			}
			continue
		}
		if done {
			finished = append(finished, s)
		}
	}

	// recycle may drop slots, so it runs after the scan.
	for _, s := range finished {
		e.recycle(s)
	}
	return pollErr
}

// Close waits for the device to finish all submitted work and releases every
// object the engine created. The render pass belongs to the caller.
func (e *Engine) Close() error {
	err := e.device.WaitIdle()

	for _, s := range e.slots {
		if s.state != slotIdle {
			s.release()
			s.frame = nil
			s.state = slotIdle
		}
		s.destroySync()
	}
	e.slots = nil
	e.free = nil
	e.last = Signal{}

	e.targets.Destroy()
	e.swapchains.Destroy()

	if err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}
	return nil
}

func (e *Engine) rebuild() error {
	extent := e.surface.DrawableSize()

	old, err := e.swapchains.Rebuild(extent)
	if err != nil {
		return err
	}

	targets, err := target.Build(e.device, e.swapchains.Images(), e.swapchains.Format(), e.swapchains.Extent(), e.pass)
	if err != nil {
		e.retire(old)
		return errors.Wrap(err, "rebuilding frame targets")
	}

	e.retire(old, e.targets)
	e.targets = targets
	e.viewport.Refresh(e.swapchains.Extent())
	e.resizeNeeded = false
	e.stats.Rebuilds++

	e.log.WithFields(logrus.Fields{
		"generation": e.swapchains.Generation(),
		"extent":     extent,
		"in_flight":  e.InFlight(),
	}).Info("swapchain rebuilt")
	return nil
}

// retire hands objects to the newest submitted frame, which releases them
// when its fence signals. With nothing in flight they are released now.
func (e *Engine) retire(objects ...gpu.Destroyer) {
	if newest := e.newest(); newest != nil {
		newest.retired = append(newest.retired, objects...)
		return
	}

	for _, obj := range objects {
		obj.Destroy()
	}
}

// newest is the most recently submitted frame still in flight, or nil.
func (e *Engine) newest() *slot {
	var newest *slot
	for _, s := range e.slots {
		if s.state == slotSubmitted && (newest == nil || s.submission > newest.submission) {
			newest = s
		}
	}
	return newest
}

func (e *Engine) takeSlot() (*slot, error) {
	if n := len(e.free); n > 0 {
		s := e.free[n-1]
		e.free = e.free[:n-1]

		err := s.fence.Reset()
		if err != nil {
			return nil, errors.Wrap(err, "resetting frame fence")
		}
		return s, nil
	}

	acquired, err := e.device.CreateSemaphore()
	if err != nil {
		return nil, errors.Wrap(err, "creating acquire semaphore")
	}
	rendered, err := e.device.CreateSemaphore()
	if err != nil {
		acquired.Destroy()
		return nil, errors.Wrap(err, "creating render semaphore")
	}
	fence, err := e.device.CreateFence()
	if err != nil {
		acquired.Destroy()
		rendered.Destroy()
		return nil, errors.Wrap(err, "creating frame fence")
	}

	s := &slot{acquired: acquired, rendered: rendered, fence: fence}
	e.slots = append(e.slots, s)
	return s, nil
}

// recycle releases what a completed frame held and returns its slot to the
// pool.
func (e *Engine) recycle(s *slot) {
	s.release()

	if e.last.fence == s.fence {
		e.last = Signal{}
	}

	if s.discard {
		e.drop(s)
		return
	}
	if err := s.transition(slotSubmitted, slotIdle); err != nil {
		e.log.WithError(err).Error("recycling frame slot")
		e.drop(s)
		return
	}
	e.free = append(e.free, s)
}

// discard throws away a slot whose frame was never submitted. Anything it
// was asked to retire moves to the newest submitted frame.
func (e *Engine) discard(s *slot) {
	s.frame = nil
	if s.commands != nil {
		s.commands.Free()
		s.commands = nil
	}
	if len(s.retired) > 0 {
		retired := s.retired
		s.retired = nil
		e.retire(retired...)
	}
	e.drop(s)
}

func (e *Engine) drop(s *slot) {
	s.destroySync()
	for i, other := range e.slots {
		if other == s {
			e.slots = append(e.slots[:i], e.slots[i+1:]...)
			break
		}
	}
}

// fail records a frame that could not be submitted or presented. The next
// frame starts from a clean signal; a stale swapchain is rebuilt first.
func (e *Engine) fail(stage string, err error) {
	e.last = Signal{}

	if errors.Is(err, gpu.ErrOutOfDate) {
		e.resizeNeeded = true
		e.log.WithField("stage", stage).Debug("swapchain out of date")
		return
	}
	e.log.WithError(err).WithField("stage", stage).Error("frame failed")
}
