package renderer

import (
	vk "github.com/vulkan-go/vulkan"
)

// vulkanEncoder is the CommandEncoder issuing real vkCmd* calls.
type vulkanEncoder struct{}

func (vulkanEncoder) Begin(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(cmd, &beginInfo))
}

func (vulkanEncoder) BeginRenderPass(
	cmd vk.CommandBuffer,
	pass vk.RenderPass,
	fb vk.Framebuffer,
	extent vk.Extent2D,
	clear vk.ClearValue,
) {
	renderPassInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clear},
	}
	vk.CmdBeginRenderPass(cmd, &renderPassInfo, vk.SubpassContentsInline)
}

func (vulkanEncoder) BindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, pipeline)
}

func (vulkanEncoder) SetViewport(cmd vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
}

func (vulkanEncoder) SetScissor(cmd vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
}

func (vulkanEncoder) BindVertexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{buffer}, []vk.DeviceSize{0})
}

func (vulkanEncoder) BindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer) {
	vk.CmdBindIndexBuffer(cmd, buffer, 0, vk.IndexTypeUint32)
}

func (vulkanEncoder) BindDescriptorSet(cmd vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(
		cmd,
		vk.PipelineBindPointGraphics,
		layout,
		0,
		1,
		[]vk.DescriptorSet{set},
		0,
		nil,
	)
}

func (vulkanEncoder) DrawIndexed(cmd vk.CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(cmd, indexCount, 1, 0, 0, 0)
}

func (vulkanEncoder) EndRenderPass(cmd vk.CommandBuffer) {
	vk.CmdEndRenderPass(cmd)
}

func (vulkanEncoder) End(cmd vk.CommandBuffer) error {
	return checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(cmd))
}
