package vkng

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubes/internal/gpu"
)

// Shaders holds SPIR-V for the vertex and fragment stages.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

// LoadShaders reads <name>.vert.spv and <name>.frag.spv from dir.
func LoadShaders(dir, name string) (Shaders, error) {
	var shaders Shaders
	var err error

	shaders.Vertex, err = os.ReadFile(filepath.Join(dir, name+".vert.spv"))
	if err != nil {
		return Shaders{}, errors.Wrap(err, "reading vertex shader")
	}
	shaders.Fragment, err = os.ReadFile(filepath.Join(dir, name+".frag.spv"))
	if err != nil {
		return Shaders{}, errors.Wrap(err, "reading fragment shader")
	}

	for stage, code := range map[string][]byte{"vertex": shaders.Vertex, "fragment": shaders.Fragment} {
		if len(code) == 0 || len(code)%4 != 0 {
			return Shaders{}, errors.Newf("%s shader is %d bytes, not a SPIR-V module", stage, len(code))
		}
	}
	return shaders, nil
}

// PipelineInfo describes the graphics pipeline. Every vertex attribute is a
// three component float vector; attribute i is bound to location i.
type PipelineInfo struct {
	Shaders          Shaders
	VertexStride     int
	AttributeOffsets []int

	PushConstantsSize  int
	PushConstantStages gpu.ShaderStage
}

type pipeline struct {
	ctx    *Context
	handle core1_0.Pipeline
	layout core1_0.PipelineLayout
	stages gpu.ShaderStage
}

func (p *pipeline) PushConstantStages() gpu.ShaderStage { return p.stages }

func (p *pipeline) Destroy() {
	if p.handle.Initialized() {
		p.ctx.deviceDriver.DestroyPipeline(p.handle, nil)
		p.handle = core1_0.Pipeline{}
	}
	if p.layout.Initialized() {
		p.ctx.deviceDriver.DestroyPipelineLayout(p.layout, nil)
		p.layout = core1_0.PipelineLayout{}
	}
}

func toShaderStages(stages gpu.ShaderStage) core1_0.ShaderStageFlags {
	var flags core1_0.ShaderStageFlags
	if stages&gpu.StageVertex != 0 {
		flags |= core1_0.StageVertex
	}
	if stages&gpu.StageFragment != 0 {
		flags |= core1_0.StageFragment
	}
	return flags
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = uint32(b[byteIndex]) |
			uint32(b[byteIndex+1])<<8 |
			uint32(b[byteIndex+2])<<16 |
			uint32(b[byteIndex+3])<<24
	}

	return byteCode
}

// CreatePipeline builds a triangle list pipeline for pass. Viewport and
// scissor are dynamic so the pipeline survives swapchain rebuilds.
func (c *Context) CreatePipeline(pass gpu.RenderPass, info PipelineInfo) (gpu.Pipeline, error) {
	vertShader, _, err := c.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(info.Shaders.Vertex),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating vertex shader module")
	}
	defer c.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := c.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(info.Shaders.Fragment),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating fragment shader module")
	}
	defer c.deviceDriver.DestroyShaderModule(fragShader, nil)

	var attributes []core1_0.VertexInputAttributeDescription
	for location, offset := range info.AttributeOffsets {
		attributes = append(attributes, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: location,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   offset,
		})
	}

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    info.VertexStride,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
		VertexAttributeDescriptions: attributes,
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	// Counts only; the values come from CmdSetViewport and CmdSetScissor.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		PolygonMode: core1_0.PolygonModeFill,
		FrontFace:   core1_0.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	var depthStencil *core1_0.PipelineDepthStencilStateCreateInfo
	if pass.HasDepth() {
		depthStencil = &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
			DepthCompareOp:   core1_0.CompareOpLess,
		}
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOp: core1_0.LogicOpCopy,
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	dynamic := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
	}

	layoutInfo := core1_0.PipelineLayoutCreateInfo{}
	if info.PushConstantsSize > 0 {
		layoutInfo.PushConstantRanges = []core1_0.PushConstantRange{
			{
				StageFlags: toShaderStages(info.PushConstantStages),
				Offset:     0,
				Size:       info.PushConstantsSize,
			},
		}
	}

	layout, _, err := c.deviceDriver.CreatePipelineLayout(nil, layoutInfo)
	if err != nil {
		return nil, errors.Wrap(err, "creating pipeline layout")
	}

	pipelines, _, err := c.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			DepthStencilState:  depthStencil,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamic,
			Layout:             layout,
			RenderPass:         pass.(*renderPass).handle,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		c.deviceDriver.DestroyPipelineLayout(layout, nil)
		return nil, errors.Wrap(err, "creating graphics pipeline")
	}

	return &pipeline{
		ctx:    c,
		handle: pipelines[0],
		layout: layout,
		stages: info.PushConstantStages,
	}, nil
}
