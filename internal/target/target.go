// Package target builds the framebuffers that bind each swapchain image to the
// render pass.
package target

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

type Kind int

const (
	// KindColor targets render into the swapchain image only.
	KindColor Kind = iota
	// KindColorDepth targets also carry the set's depth attachment.
	KindColorDepth
)

func (k Kind) String() string {
	if k == KindColorDepth {
		return "color+depth"
	}
	return "color"
}

// Target is one framebuffer of a Set. It is either a *ColorTarget or a
// *DepthTarget.
type Target interface {
	Kind() Kind
	Image() gpu.Image
	View() gpu.ImageView
	Framebuffer() gpu.Framebuffer

	target()
}

type ColorTarget struct {
	image       gpu.Image
	view        gpu.ImageView
	framebuffer gpu.Framebuffer
}

func (t *ColorTarget) Kind() Kind                   { return KindColor }
func (t *ColorTarget) Image() gpu.Image             { return t.image }
func (t *ColorTarget) View() gpu.ImageView          { return t.view }
func (t *ColorTarget) Framebuffer() gpu.Framebuffer { return t.framebuffer }
func (t *ColorTarget) target()                      {}

type DepthTarget struct {
	ColorTarget
	depth gpu.DepthAttachment
}

func (t *DepthTarget) Kind() Kind { return KindColorDepth }

// Depth is shared by every target in the set.
func (t *DepthTarget) Depth() gpu.DepthAttachment { return t.depth }

// Set holds one target per swapchain image, in image order.
type Set struct {
	targets []Target
	depth   gpu.DepthAttachment
	extent  gpu.Extent
}

// Build creates a view and framebuffer for every image. When the render pass
// uses depth a new depth attachment of the same extent is allocated and shared
// by all framebuffers. On failure everything built so far is released.
func Build(device gpu.Device, images []gpu.Image, format gpu.Format, extent gpu.Extent, pass gpu.RenderPass) (*Set, error) {
	set := &Set{extent: extent}

	if pass.HasDepth() {
		depth, err := device.CreateDepthAttachment(extent)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s depth attachment", extent)
		}
		set.depth = depth
	}

	for i, image := range images {
		view, err := device.CreateImageView(image, format)
		if err != nil {
			set.Destroy()
			return nil, errors.Wrapf(err, "creating view for swapchain image %d", i)
		}

		attachments := []gpu.ImageView{view}
		if set.depth != nil {
			attachments = append(attachments, set.depth.View())
		}

		framebuffer, err := device.CreateFramebuffer(pass, attachments, extent)
		if err != nil {
			view.Destroy()
			set.Destroy()
			return nil, errors.Wrapf(err, "creating framebuffer for swapchain image %d", i)
		}

		color := ColorTarget{image: image, view: view, framebuffer: framebuffer}
		if set.depth != nil {
			set.targets = append(set.targets, &DepthTarget{ColorTarget: color, depth: set.depth})
		} else {
			set.targets = append(set.targets, &color)
		}
	}

	return set, nil
}

func (s *Set) Len() int                   { return len(s.targets) }
func (s *Set) At(index int) Target        { return s.targets[index] }
func (s *Set) Extent() gpu.Extent         { return s.extent }
func (s *Set) Depth() gpu.DepthAttachment { return s.depth }

// Destroy releases framebuffers, views and the depth attachment. The swapchain
// images belong to the swapchain and are left alone.
func (s *Set) Destroy() {
	for _, t := range s.targets {
		t.Framebuffer().Destroy()
		t.View().Destroy()
	}
	s.targets = nil

	if s.depth != nil {
		s.depth.Destroy()
		s.depth = nil
	}
}
