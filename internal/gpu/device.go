package gpu

// Destroyer is implemented by every device object that must be released
// explicitly.
type Destroyer interface {
	Destroy()
}

// Surface is the window side of presentation.
type Surface interface {
	// DrawableSize is the current size of the window in pixels.
	DrawableSize() Extent
}

type Image interface {
	Extent() Extent
}

type ImageView interface {
	Destroyer
}

// DepthAttachment is a device-local depth image together with its memory and
// view.
type DepthAttachment interface {
	Destroyer
	View() ImageView
	Format() Format
}

type Framebuffer interface {
	Destroyer
	Extent() Extent
}

type RenderPass interface {
	Destroyer
	Format() Format
	HasDepth() bool
}

type Pipeline interface {
	Destroyer
	PushConstantStages() ShaderStage
}

type Buffer interface {
	Destroyer
	Size() int
}

type Semaphore interface {
	Destroyer
}

// Fence is signalled by the device when a submission completes.
type Fence interface {
	Destroyer
	// Signaled polls the fence without blocking.
	Signaled() (bool, error)
	Reset() error
}

type Swapchain interface {
	Destroyer
	Images() []Image
	// Acquire blocks until a presentable image is available and returns its
	// index. signal is signalled once the image may be written. A stale
	// swapchain returns an error matching ErrOutOfDate.
	Acquire(signal Semaphore) (index int, suboptimal bool, err error)
}

// CommandBuffer records one frame of work. Buffers are recorded once and
// submitted once.
type CommandBuffer interface {
	Begin() error
	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, clear ClearValues) error
	SetViewport(viewport Viewport)
	SetScissor(scissor Rect)
	BindPipeline(pipeline Pipeline)
	PushConstants(pipeline Pipeline, offset int, data []byte) error
	BindVertexBuffer(buffer Buffer)
	Draw(vertexCount int)
	// EndRenderPass returns ErrRenderPassEnded when no render pass is active.
	EndRenderPass() error
	End() error
	Free()
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	Commands         CommandBuffer
	SignalSemaphores []Semaphore
	Fence            Fence
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     int
}

type Queue interface {
	FamilyIndex() int
	Submit(info SubmitInfo) error
	// Present queues an image for display. A stale swapchain returns an error
	// matching ErrOutOfDate.
	Present(info PresentInfo) (suboptimal bool, err error)
}

// Device creates and owns every object above.
type Device interface {
	SurfaceCapabilities() (SurfaceCapabilities, error)

	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateDepthAttachment(extent Extent) (DepthAttachment, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	CreateVertexBuffer(data []byte) (Buffer, error)

	CreateSemaphore() (Semaphore, error)
	CreateFence() (Fence, error)
	AllocateCommandBuffer() (CommandBuffer, error)

	GraphicsQueue() Queue
	PresentQueue() Queue

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error
}
