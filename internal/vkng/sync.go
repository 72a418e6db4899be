package vkng

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type semaphore struct {
	ctx    *Context
	handle core1_0.Semaphore
}

func (s *semaphore) Destroy() {
	if s.handle.Initialized() {
		s.ctx.deviceDriver.DestroySemaphore(s.handle, nil)
		s.handle = core1_0.Semaphore{}
	}
}

func (c *Context) CreateSemaphore() (gpu.Semaphore, error) {
	handle, _, err := c.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, err
	}
	return &semaphore{ctx: c, handle: handle}, nil
}

type fence struct {
	ctx    *Context
	handle core1_0.Fence
}

// Signaled waits with a zero timeout, so it never blocks.
func (f *fence) Signaled() (bool, error) {
	res, err := f.ctx.deviceDriver.WaitForFences(true, 0, f.handle)
	if err != nil {
		return false, err
	}
	return res != core1_0.VKTimeout, nil
}

func (f *fence) Reset() error {
	_, err := f.ctx.deviceDriver.ResetFences(f.handle)
	return err
}

func (f *fence) Destroy() {
	if f.handle.Initialized() {
		f.ctx.deviceDriver.DestroyFence(f.handle, nil)
		f.handle = core1_0.Fence{}
	}
}

func (c *Context) CreateFence() (gpu.Fence, error) {
	handle, _, err := c.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return nil, err
	}
	return &fence{ctx: c, handle: handle}, nil
}

func semaphoreHandles(semaphores []gpu.Semaphore) []core1_0.Semaphore {
	handles := make([]core1_0.Semaphore, 0, len(semaphores))
	for _, s := range semaphores {
		handles = append(handles, s.(*semaphore).handle)
	}
	return handles
}

type queue struct {
	ctx    *Context
	handle core1_0.Queue
	family int
}

func (q *queue) FamilyIndex() int { return q.family }

func (q *queue) Submit(info gpu.SubmitInfo) error {
	waitSemaphores := semaphoreHandles(info.WaitSemaphores)
	waitStages := make([]core1_0.PipelineStageFlags, len(waitSemaphores))
	for i := range waitStages {
		waitStages[i] = core1_0.PipelineStageColorAttachmentOutput
	}

	var submitFence *core1_0.Fence
	if info.Fence != nil {
		handle := info.Fence.(*fence).handle
		submitFence = &handle
	}

	res, err := q.ctx.deviceDriver.QueueSubmit(q.handle, submitFence, core1_0.SubmitInfo{
		WaitSemaphores:   waitSemaphores,
		WaitDstStageMask: waitStages,
		CommandBuffers:   []core1_0.CommandBuffer{info.Commands.(*commandBuffer).handle},
		SignalSemaphores: semaphoreHandles(info.SignalSemaphores),
	})
	if res == khr_swapchain.VKErrorOutOfDate {
		return gpu.ErrOutOfDate
	}
	return err
}

func (q *queue) Present(info gpu.PresentInfo) (bool, error) {
	res, err := q.ctx.swapchainExtension.QueuePresent(q.handle, khr_swapchain.PresentInfo{
		WaitSemaphores: semaphoreHandles(info.WaitSemaphores),
		Swapchains:     []khr_swapchain.Swapchain{info.Swapchain.(*swapchain).handle},
		ImageIndices:   []int{info.ImageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate {
		return false, gpu.ErrOutOfDate
	} else if err != nil {
		return false, err
	}
	return res == khr_swapchain.VKSuboptimal, nil
}
