// Package gputest is an in-memory gpu.Device for tests. Fences only signal when
// the test says so, and acquire, submit and present results can be scripted.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

// Object kinds reported by Device.Live.
const (
	KindSwapchain   = "swapchain"
	KindImageView   = "image view"
	KindDepth       = "depth attachment"
	KindFramebuffer = "framebuffer"
	KindRenderPass  = "render pass"
	KindPipeline    = "pipeline"
	KindBuffer      = "buffer"
	KindSemaphore   = "semaphore"
	KindFence       = "fence"
	KindCommands    = "command buffer"
)

// DepthFormat is the format reported by fake depth attachments.
const DepthFormat gpu.Format = 124

type Device struct {
	Caps gpu.SurfaceCapabilities
	// CapsErr is returned by SurfaceCapabilities when set.
	CapsErr error
	// SwapchainErrs are returned by successive CreateSwapchain calls.
	SwapchainErrs []error
	// FramebufferErr is returned by CreateFramebuffer when set.
	FramebufferErr error
	// FenceErr is returned by every fence poll while set.
	FenceErr error

	Graphics *Queue
	Present  *Queue

	// Swapchains holds every swapchain created, oldest first.
	Swapchains []*Swapchain
	// Depths holds every depth attachment created, oldest first.
	Depths []*DepthAttachment
	// Commands holds every command buffer allocated, oldest first.
	Commands []*CommandBuffer

	WaitIdleCalls  int
	DoubleDestroys int

	live    map[string]int
	pending []*Fence
}

// NewDevice returns a device whose surface is 800x600, accepts 2 to 8 images,
// two formats and both opaque and inherited alpha. Graphics and present share
// queue family 0.
func NewDevice() *Device {
	d := &Device{
		Caps: gpu.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gpu.Extent{Width: 800, Height: 600},
			MinImageExtent:          gpu.Extent{Width: 1, Height: 1},
			MaxImageExtent:          gpu.Extent{Width: 4096, Height: 4096},
			SupportedCompositeAlpha: gpu.CompositeAlphaOpaque | gpu.CompositeAlphaInherit,
			Formats:                 []gpu.Format{44, 50},
			PresentModes:            []gpu.PresentMode{gpu.PresentModeMailbox, gpu.PresentModeFIFO},
		},
		live: make(map[string]int),
	}
	d.Graphics = &Queue{dev: d, Family: 0}
	d.Present = d.Graphics
	return d
}

// SplitQueues gives presentation its own queue family.
func (d *Device) SplitQueues(presentFamily int) {
	d.Present = &Queue{dev: d, Family: presentFamily}
}

// Live returns how many objects of kind are currently alive.
func (d *Device) Live(kind string) int {
	return d.live[kind]
}

// Leaks lists every kind with live objects.
func (d *Device) Leaks() []string {
	var leaks []string
	for kind, count := range d.live {
		if count != 0 {
			leaks = append(leaks, fmt.Sprintf("%d %s", count, kind))
		}
	}
	return leaks
}

// CompleteAll signals the fence of every submission made so far.
func (d *Device) CompleteAll() {
	for _, f := range d.pending {
		f.signaled = true
	}
	d.pending = nil
}

// CompleteNext signals only the oldest outstanding submission.
func (d *Device) CompleteNext() {
	if len(d.pending) == 0 {
		return
	}
	d.pending[0].signaled = true
	d.pending = d.pending[1:]
}

// Outstanding is the number of submissions whose fences have not signalled.
func (d *Device) Outstanding() int {
	return len(d.pending)
}

func (d *Device) create(kind string) {
	d.live[kind]++
}

func (d *Device) destroy(kind string, destroyed *bool) {
	if *destroyed {
		d.DoubleDestroys++
		return
	}
	*destroyed = true
	d.live[kind]--
}

func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	if d.CapsErr != nil {
		return gpu.SurfaceCapabilities{}, d.CapsErr
	}
	return d.Caps, nil
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	if len(d.SwapchainErrs) > 0 {
		err := d.SwapchainErrs[0]
		d.SwapchainErrs = d.SwapchainErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if info.Extent.Empty() {
		return nil, errors.Newf("swapchain extent %s", info.Extent)
	}
	if old, ok := info.Old.(*Swapchain); ok && old.destroyed {
		return nil, errors.New("old swapchain already destroyed")
	}

	s := &Swapchain{dev: d, Info: info}
	for i := 0; i < info.MinImageCount; i++ {
		s.images = append(s.images, &Image{extent: info.Extent, Index: i})
	}
	d.Swapchains = append(d.Swapchains, s)
	d.create(KindSwapchain)
	return s, nil
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	d.create(KindImageView)
	return &ImageView{dev: d, Image: image, Format: format}, nil
}

func (d *Device) CreateDepthAttachment(extent gpu.Extent) (gpu.DepthAttachment, error) {
	depth := &DepthAttachment{dev: d, Extent: extent}
	depth.view = &ImageView{dev: d, Format: DepthFormat}
	d.Depths = append(d.Depths, depth)
	d.create(KindDepth)
	return depth, nil
}

func (d *Device) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	if d.FramebufferErr != nil {
		return nil, d.FramebufferErr
	}
	want := 1
	if pass.HasDepth() {
		want = 2
	}
	if len(attachments) != want {
		return nil, errors.Newf("render pass expects %d attachments, got %d", want, len(attachments))
	}
	d.create(KindFramebuffer)
	return &Framebuffer{dev: d, Attachments: attachments, extent: extent}, nil
}

func (d *Device) CreateVertexBuffer(data []byte) (gpu.Buffer, error) {
	d.create(KindBuffer)
	return &Buffer{dev: d, Data: append([]byte(nil), data...)}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	d.create(KindSemaphore)
	return &Semaphore{dev: d}, nil
}

func (d *Device) CreateFence() (gpu.Fence, error) {
	d.create(KindFence)
	return &Fence{dev: d}, nil
}

func (d *Device) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	d.create(KindCommands)
	cmd := &CommandBuffer{dev: d}
	d.Commands = append(d.Commands, cmd)
	return cmd, nil
}

func (d *Device) GraphicsQueue() gpu.Queue { return d.Graphics }
func (d *Device) PresentQueue() gpu.Queue  { return d.Present }

// WaitIdle completes all outstanding work.
func (d *Device) WaitIdle() error {
	d.WaitIdleCalls++
	d.CompleteAll()
	return nil
}

// NewRenderPass returns a render pass owned by d.
func (d *Device) NewRenderPass(format gpu.Format, depth bool) *RenderPass {
	d.create(KindRenderPass)
	return &RenderPass{dev: d, format: format, depth: depth}
}

// NewPipeline returns a pipeline owned by d that accepts vertex push constants.
func (d *Device) NewPipeline() *Pipeline {
	d.create(KindPipeline)
	return &Pipeline{dev: d}
}

// Surface is a window of fixed but adjustable size.
type Surface struct {
	Size gpu.Extent
}

func (s *Surface) DrawableSize() gpu.Extent { return s.Size }
