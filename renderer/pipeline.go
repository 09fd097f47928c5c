package renderer

import (
	"io/fs"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/models"
	"fastfileviewer/shaders"
)

// Shader binaries the pipeline is built from.
const (
	VertexShader   = "default.vert.spv"
	FragmentShader = "default.frag.spv"
)

// createRenderPass returns a single subpass render pass drawing into a colour
// attachment of the given format. The attachment starts UNDEFINED, is
// rendered to as COLOR_ATTACHMENT_OPTIMAL and ends in PRESENT_SRC.
func (d *Device) createRenderPass(format vk.Format) (vk.RenderPass, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorAttachmentRef},
	}

	// The layout transition must wait for the image acquired semaphore, which
	// is waited on at the colour attachment output stage.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	res := vk.CreateRenderPass(d.handle, &renderPassInfo, nil, &renderPass)
	return renderPass, checkResult("vkCreateRenderPass", res)
}

func (d *Device) createDescriptorSetLayout() (vk.DescriptorSetLayout, error) {
	uboLayoutBinding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{uboLayoutBinding},
	}

	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.handle, &layoutInfo, nil, &layout)
	return layout, checkResult("vkCreateDescriptorSetLayout", res)
}

// createGraphicsPipeline builds the pipeline drawing models.Vertex triangle
// lists. Viewport and scissor are dynamic so the pipeline survives swapchain
// recreation.
func (d *Device) createGraphicsPipeline(
	assets fs.FS,
	renderPass vk.RenderPass,
	setLayout vk.DescriptorSetLayout,
) (vk.Pipeline, vk.PipelineLayout, error) {
	vert, err := shaders.Load(assets, VertexShader, d)
	if err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}
	defer vert.Close()

	frag, err := shaders.Load(assets, FragmentShader, d)
	if err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}
	defer frag.Close()

	shaderStages := []vk.PipelineShaderStageCreateInfo{
		vert.StageCreateInfo(),
		frag.StageCreateInfo(),
	}

	bindings := []vk.VertexInputBindingDescription{models.BindingDescription()}
	attributes := models.AttributeDescriptions()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(
			vk.ColorComponentRBit |
				vk.ColorComponentGBit |
				vk.ColorComponentBBit |
				vk.ColorComponentABit,
		),
		BlendEnable: vk.False,
	}

	colorBlending := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}

	var pipelineLayout vk.PipelineLayout
	res := vk.CreatePipelineLayout(d.handle, &pipelineLayoutInfo, nil, &pipelineLayout)
	if err := checkResult("vkCreatePipelineLayout", res); err != nil {
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		PDynamicState:       &dynamicState,
		Layout:              pipelineLayout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	res = vk.CreateGraphicsPipelines(
		d.handle,
		vk.PipelineCache(vk.NullHandle),
		1,
		[]vk.GraphicsPipelineCreateInfo{pipelineInfo},
		nil,
		pipelines,
	)
	if err := checkResult("vkCreateGraphicsPipelines", res); err != nil {
		vk.DestroyPipelineLayout(d.handle, pipelineLayout, nil)
		return vk.NullPipeline, vk.NullPipelineLayout, err
	}

	return pipelines[0], pipelineLayout, nil
}

// createFramebuffers returns one framebuffer per image view.
func (d *Device) createFramebuffers(
	renderPass vk.RenderPass,
	views []vk.ImageView,
	extent vk.Extent2D,
) ([]vk.Framebuffer, error) {
	framebuffers := make([]vk.Framebuffer, 0, len(views))

	for i, view := range views {
		framebufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{view},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}

		var framebuffer vk.Framebuffer
		res := vk.CreateFramebuffer(d.handle, &framebufferInfo, nil, &framebuffer)
		if err := checkResult("vkCreateFramebuffer", res); err != nil {
			d.destroyFramebuffers(framebuffers)
			return nil, errors.Wrapf(err, "framebuffer %d", i)
		}
		framebuffers = append(framebuffers, framebuffer)
	}

	return framebuffers, nil
}

func (d *Device) destroyFramebuffers(framebuffers []vk.Framebuffer) {
	for _, framebuffer := range framebuffers {
		vk.DestroyFramebuffer(d.handle, framebuffer, nil)
	}
}
