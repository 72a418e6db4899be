package vkng

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type renderPass struct {
	ctx    *Context
	handle core1_0.RenderPass
	format gpu.Format
	depth  bool
}

func (p *renderPass) Format() gpu.Format { return p.format }
func (p *renderPass) HasDepth() bool     { return p.depth }

func (p *renderPass) Destroy() {
	if p.handle.Initialized() {
		p.ctx.deviceDriver.DestroyRenderPass(p.handle, nil)
		p.handle = core1_0.RenderPass{}
	}
}

// CreateRenderPass builds a single subpass render pass that clears the color
// attachment and leaves it ready for presentation. With depth set, a second
// attachment in DepthFormat is cleared and discarded every frame.
func (c *Context) CreateRenderPass(format gpu.Format, depth bool) (gpu.RenderPass, error) {
	attachments := []core1_0.AttachmentDescription{
		{
			Format:         core1_0.Format(format),
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		},
	}

	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: 0,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
	}

	dependency := core1_0.SubpassDependency{
		SrcSubpass: core1_0.SubpassExternal,
		DstSubpass: 0,

		SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		SrcAccessMask: 0,

		DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
		DstAccessMask: core1_0.AccessColorAttachmentWrite,
	}

	if depth {
		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         DepthFormat,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
		dependency.SrcStageMask |= core1_0.PipelineStageEarlyFragmentTests
		dependency.DstStageMask |= core1_0.PipelineStageEarlyFragmentTests
		dependency.DstAccessMask |= core1_0.AccessDepthStencilAttachmentWrite
	}

	handle, _, err := c.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments:         attachments,
		Subpasses:           []core1_0.SubpassDescription{subpass},
		SubpassDependencies: []core1_0.SubpassDependency{dependency},
	})
	if err != nil {
		return nil, err
	}

	return &renderPass{ctx: c, handle: handle, format: format, depth: depth}, nil
}

type framebuffer struct {
	ctx    *Context
	handle core1_0.Framebuffer
	extent gpu.Extent
}

func (f *framebuffer) Extent() gpu.Extent { return f.extent }

func (f *framebuffer) Destroy() {
	if f.handle.Initialized() {
		f.ctx.deviceDriver.DestroyFramebuffer(f.handle, nil)
		f.handle = core1_0.Framebuffer{}
	}
}

func (c *Context) CreateFramebuffer(pass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent) (gpu.Framebuffer, error) {
	views := make([]core1_0.ImageView, 0, len(attachments))
	for _, attachment := range attachments {
		views = append(views, attachment.(*imageView).handle)
	}

	handle, _, err := c.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  pass.(*renderPass).handle,
		Layers:      1,
		Attachments: views,
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return nil, err
	}
	return &framebuffer{ctx: c, handle: handle, extent: extent}, nil
}
