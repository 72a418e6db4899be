package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type Image struct {
	extent gpu.Extent
	Index  int
}

func (i *Image) Extent() gpu.Extent { return i.extent }

type ImageView struct {
	dev       *Device
	Image     gpu.Image
	Format    gpu.Format
	destroyed bool
}

func (v *ImageView) Destroy()        { v.dev.destroy(KindImageView, &v.destroyed) }
func (v *ImageView) Destroyed() bool { return v.destroyed }

type DepthAttachment struct {
	dev       *Device
	Extent    gpu.Extent
	view      *ImageView
	destroyed bool
}

func (d *DepthAttachment) View() gpu.ImageView { return d.view }
func (d *DepthAttachment) Format() gpu.Format  { return DepthFormat }
func (d *DepthAttachment) Destroy()            { d.dev.destroy(KindDepth, &d.destroyed) }
func (d *DepthAttachment) Destroyed() bool     { return d.destroyed }

type Framebuffer struct {
	dev         *Device
	Attachments []gpu.ImageView
	extent      gpu.Extent
	destroyed   bool
}

func (f *Framebuffer) Extent() gpu.Extent { return f.extent }
func (f *Framebuffer) Destroy()           { f.dev.destroy(KindFramebuffer, &f.destroyed) }
func (f *Framebuffer) Destroyed() bool    { return f.destroyed }

type RenderPass struct {
	dev       *Device
	format    gpu.Format
	depth     bool
	destroyed bool
}

func (p *RenderPass) Format() gpu.Format { return p.format }
func (p *RenderPass) HasDepth() bool     { return p.depth }
func (p *RenderPass) Destroy()           { p.dev.destroy(KindRenderPass, &p.destroyed) }

type Pipeline struct {
	dev       *Device
	destroyed bool
}

func (p *Pipeline) PushConstantStages() gpu.ShaderStage { return gpu.StageVertex }
func (p *Pipeline) Destroy()                            { p.dev.destroy(KindPipeline, &p.destroyed) }

type Buffer struct {
	dev       *Device
	Data      []byte
	destroyed bool
}

func (b *Buffer) Size() int { return len(b.Data) }
func (b *Buffer) Destroy()  { b.dev.destroy(KindBuffer, &b.destroyed) }

type Semaphore struct {
	dev       *Device
	Signaled  bool
	destroyed bool
}

func (s *Semaphore) Destroy()        { s.dev.destroy(KindSemaphore, &s.destroyed) }
func (s *Semaphore) Destroyed() bool { return s.destroyed }

type Fence struct {
	dev       *Device
	signaled  bool
	submitted bool
	destroyed bool
}

func (f *Fence) Signaled() (bool, error) {
	if f.destroyed {
		return false, errors.New("polling destroyed fence")
	}
	if f.dev.FenceErr != nil {
		return false, f.dev.FenceErr
	}
	return f.signaled, nil
}

func (f *Fence) Reset() error {
	f.signaled = false
	f.submitted = false
	return nil
}

func (f *Fence) Destroy() { f.dev.destroy(KindFence, &f.destroyed) }

// AcquireResult scripts the outcome of one Swapchain.Acquire call.
type AcquireResult struct {
	Index      int
	Suboptimal bool
	Err        error
}

type Swapchain struct {
	dev    *Device
	Info   gpu.SwapchainInfo
	images []gpu.Image
	next   int

	// Script is consumed one entry per Acquire. Once empty, images are handed
	// out round robin.
	Script []AcquireResult

	destroyed bool
}

func (s *Swapchain) Images() []gpu.Image { return s.images }

func (s *Swapchain) Acquire(signal gpu.Semaphore) (int, bool, error) {
	if s.destroyed {
		return 0, false, errors.New("acquire on destroyed swapchain")
	}
	if len(s.Script) > 0 {
		result := s.Script[0]
		s.Script = s.Script[1:]
		if result.Err == nil {
			signal.(*Semaphore).Signaled = true
		}
		return result.Index, result.Suboptimal, result.Err
	}

	index := s.next
	s.next = (s.next + 1) % len(s.images)
	signal.(*Semaphore).Signaled = true
	return index, false, nil
}

func (s *Swapchain) Destroy()        { s.dev.destroy(KindSwapchain, &s.destroyed) }
func (s *Swapchain) Destroyed() bool { return s.destroyed }

// PresentResult scripts the outcome of one Queue.Present call.
type PresentResult struct {
	Suboptimal bool
	Err        error
}

type Queue struct {
	dev    *Device
	Family int

	// SubmitErrs are returned by successive Submit calls.
	SubmitErrs []error
	// PresentResults are returned by successive Present calls.
	PresentResults []PresentResult

	Submits  []gpu.SubmitInfo
	Presents []gpu.PresentInfo
}

func (q *Queue) FamilyIndex() int { return q.Family }

func (q *Queue) Submit(info gpu.SubmitInfo) error {
	if len(q.SubmitErrs) > 0 {
		err := q.SubmitErrs[0]
		q.SubmitErrs = q.SubmitErrs[1:]
		if err != nil {
			return err
		}
	}

	cmd := info.Commands.(*CommandBuffer)
	if !cmd.Ended {
		return errors.New("submitting a command buffer that is still recording")
	}
	fence := info.Fence.(*Fence)
	if fence.submitted {
		return errors.New("fence is already in use by another submission")
	}
	for _, sem := range info.WaitSemaphores {
		sem.(*Semaphore).Signaled = false
	}
	for _, sem := range info.SignalSemaphores {
		sem.(*Semaphore).Signaled = true
	}

	fence.submitted = true
	q.dev.pending = append(q.dev.pending, fence)
	q.Submits = append(q.Submits, info)
	return nil
}

func (q *Queue) Present(info gpu.PresentInfo) (bool, error) {
	q.Presents = append(q.Presents, info)
	if len(q.PresentResults) > 0 {
		result := q.PresentResults[0]
		q.PresentResults = q.PresentResults[1:]
		return result.Suboptimal, result.Err
	}
	for _, sem := range info.WaitSemaphores {
		sem.(*Semaphore).Signaled = false
	}
	return false, nil
}

// CommandBuffer records the calls made on it.
type CommandBuffer struct {
	dev *Device

	Calls  []string
	Begun  bool
	Ended  bool
	InPass bool

	Pushes      [][]byte
	Framebuffer gpu.Framebuffer
	Clear       gpu.ClearValues
	Viewport    gpu.Viewport
	Scissor     gpu.Rect

	freed bool
}

func (c *CommandBuffer) Begin() error {
	if c.Begun {
		return errors.New("command buffer already begun")
	}
	c.Begun = true
	c.Calls = append(c.Calls, "begin")
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass, framebuffer gpu.Framebuffer, clear gpu.ClearValues) error {
	if c.InPass {
		return errors.New("render pass already active")
	}
	if framebuffer.(*Framebuffer).destroyed {
		return errors.New("framebuffer destroyed")
	}
	c.InPass = true
	c.Framebuffer = framebuffer
	c.Clear = clear
	c.Calls = append(c.Calls, "begin render pass")
	return nil
}

func (c *CommandBuffer) SetViewport(viewport gpu.Viewport) {
	c.Viewport = viewport
	c.Calls = append(c.Calls, "set viewport")
}

func (c *CommandBuffer) SetScissor(scissor gpu.Rect) {
	c.Scissor = scissor
	c.Calls = append(c.Calls, "set scissor")
}

func (c *CommandBuffer) BindPipeline(pipeline gpu.Pipeline) {
	c.Calls = append(c.Calls, "bind pipeline")
}

func (c *CommandBuffer) PushConstants(pipeline gpu.Pipeline, offset int, data []byte) error {
	c.Pushes = append(c.Pushes, append([]byte(nil), data...))
	c.Calls = append(c.Calls, "push constants")
	return nil
}

func (c *CommandBuffer) BindVertexBuffer(buffer gpu.Buffer) {
	c.Calls = append(c.Calls, "bind vertex buffer")
}

func (c *CommandBuffer) Draw(vertexCount int) {
	c.Calls = append(c.Calls, "draw")
}

func (c *CommandBuffer) EndRenderPass() error {
	if !c.InPass {
		return gpu.ErrRenderPassEnded
	}
	c.InPass = false
	c.Calls = append(c.Calls, "end render pass")
	return nil
}

func (c *CommandBuffer) End() error {
	if c.InPass {
		return errors.New("ending command buffer inside a render pass")
	}
	c.Ended = true
	c.Calls = append(c.Calls, "end")
	return nil
}

func (c *CommandBuffer) Free()       { c.dev.destroy(KindCommands, &c.freed) }
func (c *CommandBuffer) Freed() bool { return c.freed }
