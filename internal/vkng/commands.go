package vkng

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type commandBuffer struct {
	ctx    *Context
	handle core1_0.CommandBuffer
	inPass bool
}

func (c *Context) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}
	return &commandBuffer{ctx: c, handle: buffers[0]}, nil
}

func (b *commandBuffer) Begin() error {
	_, err := b.ctx.deviceDriver.BeginCommandBuffer(b.handle, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return err
}

func (b *commandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, clear gpu.ClearValues) error {
	clearValues := []core1_0.ClearValue{
		core1_0.ClearValueFloat(clear.Color),
	}
	if clear.ClearDepth {
		clearValues = append(clearValues, core1_0.ClearValueDepthStencil{Depth: clear.Depth, Stencil: 0})
	}

	err := b.ctx.deviceDriver.CmdBeginRenderPass(b.handle, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  pass.(*renderPass).handle,
			Framebuffer: fb.(*framebuffer).handle,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: toExtent(fb.Extent()),
			},
			ClearValues: clearValues,
		})
	if err != nil {
		return err
	}
	b.inPass = true
	return nil
}

func (b *commandBuffer) SetViewport(viewport gpu.Viewport) {
	b.ctx.deviceDriver.CmdSetViewport(b.handle, core1_0.Viewport{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	})
}

func (b *commandBuffer) SetScissor(scissor gpu.Rect) {
	b.ctx.deviceDriver.CmdSetScissor(b.handle, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: toExtent(scissor.Extent),
	})
}

func (b *commandBuffer) BindPipeline(p gpu.Pipeline) {
	b.ctx.deviceDriver.CmdBindPipeline(b.handle, core1_0.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (b *commandBuffer) PushConstants(p gpu.Pipeline, offset int, data []byte) error {
	pl := p.(*pipeline)
	b.ctx.deviceDriver.CmdPushConstants(b.handle, pl.layout, toShaderStages(pl.stages), offset, data)
	return nil
}

func (b *commandBuffer) BindVertexBuffer(buf gpu.Buffer) {
	b.ctx.deviceDriver.CmdBindVertexBuffers(b.handle, 0, []core1_0.Buffer{buf.(*buffer).handle}, []int{0})
}

func (b *commandBuffer) Draw(vertexCount int) {
	b.ctx.deviceDriver.CmdDraw(b.handle, vertexCount, 1, 0, 0)
}

func (b *commandBuffer) EndRenderPass() error {
	if !b.inPass {
		return gpu.ErrRenderPassEnded
	}
	b.ctx.deviceDriver.CmdEndRenderPass(b.handle)
	b.inPass = false
	return nil
}

func (b *commandBuffer) End() error {
	_, err := b.ctx.deviceDriver.EndCommandBuffer(b.handle)
	return err
}

func (b *commandBuffer) Free() {
	if b.handle.Initialized() {
		b.ctx.deviceDriver.FreeCommandBuffers(b.handle)
		b.handle = core1_0.CommandBuffer{}
	}
}
