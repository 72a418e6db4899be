package vkng

import (
	"unsafe"

	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type buffer struct {
	ctx    *Context
	handle core1_0.Buffer
	memory core1_0.DeviceMemory
	size   int
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Destroy() {
	if b.handle.Initialized() {
		b.ctx.deviceDriver.DestroyBuffer(b.handle, nil)
		b.handle = core1_0.Buffer{}
	}
	if b.memory.Initialized() {
		b.ctx.deviceDriver.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
}

// CreateVertexBuffer copies data into host visible memory. The meshes are
// small and written once, so no staging copy is made.
func (c *Context) CreateVertexBuffer(data []byte) (gpu.Buffer, error) {
	buf := &buffer{ctx: c, size: len(data)}

	var err error
	buf.handle, buf.memory, err = c.createBuffer(len(data), core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		buf.Destroy()
		return nil, err
	}

	err = c.writeData(buf.memory, 0, data)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

func (c *Context) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	handle, _, err := c.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := c.deviceDriver.GetBufferMemoryRequirements(handle)
	memoryTypeIndex, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return handle, core1_0.DeviceMemory{}, err
	}

	memory, _, err := c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return handle, core1_0.DeviceMemory{}, err
	}

	_, err = c.deviceDriver.BindBufferMemory(handle, memory, 0)
	return handle, memory, err
}

// writeData copies already encoded bytes into mapped memory.
func (c *Context) writeData(memory core1_0.DeviceMemory, offset int, data []byte) error {
	memoryPtr, _, err := c.deviceDriver.MapMemory(memory, offset, len(data), 0)
	if err != nil {
		return err
	}
	defer c.deviceDriver.UnmapMemory(memory)

	copy(unsafe.Slice((*byte)(memoryPtr), len(data)), data)
	return nil
}
