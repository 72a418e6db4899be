package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

// DepthFormat is used for every depth attachment. D16 is the one depth
// format every implementation supports as an attachment.
const DepthFormat = core1_0.FormatD16UnsignedNormalized

type image struct {
	handle core1_0.Image
	extent gpu.Extent
}

func (i *image) Extent() gpu.Extent { return i.extent }

type imageView struct {
	ctx    *Context
	handle core1_0.ImageView
}

func (v *imageView) Destroy() {
	if v.handle.Initialized() {
		v.ctx.deviceDriver.DestroyImageView(v.handle, nil)
		v.handle = core1_0.ImageView{}
	}
}

func (c *Context) CreateImageView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	view, err := c.createImageView(img.(*image).handle, core1_0.Format(format), core1_0.ImageAspectColor)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (c *Context) createImageView(img core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (*imageView, error) {
	handle, _, err := c.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    img,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, err
	}
	return &imageView{ctx: c, handle: handle}, nil
}

type depthAttachment struct {
	ctx    *Context
	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   *imageView
}

func (d *depthAttachment) View() gpu.ImageView { return d.view }
func (d *depthAttachment) Format() gpu.Format  { return gpu.Format(DepthFormat) }

func (d *depthAttachment) Destroy() {
	if d.view != nil {
		d.view.Destroy()
		d.view = nil
	}
	if d.image.Initialized() {
		d.ctx.deviceDriver.DestroyImage(d.image, nil)
		d.image = core1_0.Image{}
	}
	if d.memory.Initialized() {
		d.ctx.deviceDriver.FreeMemory(d.memory, nil)
		d.memory = core1_0.DeviceMemory{}
	}
}

func (c *Context) CreateDepthAttachment(extent gpu.Extent) (gpu.DepthAttachment, error) {
	depth := &depthAttachment{ctx: c}

	var err error
	depth.image, depth.memory, err = c.createImage(extent, DepthFormat, core1_0.ImageUsageDepthStencilAttachment, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		depth.Destroy()
		return nil, err
	}

	depth.view, err = c.createImageView(depth.image, DepthFormat, core1_0.ImageAspectDepth)
	if err != nil {
		depth.Destroy()
		return nil, err
	}
	return depth, nil
}

func (c *Context) createImage(extent gpu.Extent, format core1_0.Format, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	img, _, err := c.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := c.deviceDriver.GetImageMemoryRequirements(img)
	memoryIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		c.deviceDriver.DestroyImage(img, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memory, _, err := c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		c.deviceDriver.DestroyImage(img, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	_, err = c.deviceDriver.BindImageMemory(img, memory, 0)
	if err != nil {
		c.deviceDriver.DestroyImage(img, nil)
		c.deviceDriver.FreeMemory(memory, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	return img, memory, nil
}

func (c *Context) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := c.instanceDriver.GetPhysicalDeviceMemoryProperties(c.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches filter %b with properties %s", typeFilter, properties)
}
