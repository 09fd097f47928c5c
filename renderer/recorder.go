package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

// CommandEncoder records commands into a command buffer.
type CommandEncoder interface {
	Begin(cmd vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	BeginRenderPass(cmd vk.CommandBuffer, pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear vk.ClearValue)
	BindPipeline(cmd vk.CommandBuffer, pipeline vk.Pipeline)
	SetViewport(cmd vk.CommandBuffer, viewport vk.Viewport)
	SetScissor(cmd vk.CommandBuffer, scissor vk.Rect2D)
	BindVertexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer)
	BindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer)
	BindDescriptorSet(cmd vk.CommandBuffer, layout vk.PipelineLayout, set vk.DescriptorSet)
	DrawIndexed(cmd vk.CommandBuffer, indexCount uint32)
	EndRenderPass(cmd vk.CommandBuffer)
	End(cmd vk.CommandBuffer) error
}

// Scene is everything the recorded commands draw with, apart from the per
// image targets.
type Scene struct {
	RenderPass   vk.RenderPass
	Pipeline     vk.Pipeline
	Layout       vk.PipelineLayout
	VertexBuffer vk.Buffer
	IndexBuffer  vk.Buffer
	IndexCount   uint32
	Extent       vk.Extent2D
	ClearColor   [4]float32
}

// Target is what one swapchain image is rendered through.
type Target struct {
	Framebuffer   vk.Framebuffer
	DescriptorSet vk.DescriptorSet
}

// CommandRecorder records one reusable command buffer per swapchain image.
// The buffers contain no per frame data so they are only recorded again when
// the swapchain or the pipeline changes.
type CommandRecorder struct {
	encoder CommandEncoder
	scene   Scene
	log     *logging.Logger
}

// NewCommandRecorder returns a recorder writing through encoder.
func NewCommandRecorder(encoder CommandEncoder, log *logging.Logger) *CommandRecorder {
	return &CommandRecorder{encoder: encoder, log: log}
}

// SetScene sets what subsequent calls to Record draw.
func (r *CommandRecorder) SetScene(scene Scene) {
	r.scene = scene
}

// Record records buffers[i] to draw into targets[i].
func (r *CommandRecorder) Record(buffers []vk.CommandBuffer, targets []Target) error {
	if len(buffers) != len(targets) || len(buffers) == 0 {
		return errors.Wrapf(ErrCountMismatch, "%d command buffers, %d targets", len(buffers), len(targets))
	}

	for i, cmd := range buffers {
		if err := r.record(cmd, targets[i]); err != nil {
			return errors.Wrapf(err, "recording command buffer %d", i)
		}
	}

	r.log.Tracef("recorded %d command buffers, %d indices each", len(buffers), r.scene.IndexCount)
	return nil
}

func (r *CommandRecorder) record(cmd vk.CommandBuffer, target Target) error {
	// Buffers for different images may be pending at the same time.
	flags := vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	if err := r.encoder.Begin(cmd, flags); err != nil {
		return err
	}

	// The render pass moves the image from UNDEFINED to colour attachment
	// layout and on to PRESENT_SRC when it ends.
	clear := vk.NewClearValue(r.scene.ClearColor[:])
	r.encoder.BeginRenderPass(cmd, r.scene.RenderPass, target.Framebuffer, r.scene.Extent, clear)
	r.encoder.BindPipeline(cmd, r.scene.Pipeline)

	r.encoder.SetViewport(cmd, vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(r.scene.Extent.Width),
		Height:   float32(r.scene.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.encoder.SetScissor(cmd, vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: r.scene.Extent,
	})

	r.encoder.BindVertexBuffer(cmd, r.scene.VertexBuffer)
	r.encoder.BindIndexBuffer(cmd, r.scene.IndexBuffer)
	r.encoder.BindDescriptorSet(cmd, r.scene.Layout, target.DescriptorSet)
	r.encoder.DrawIndexed(cmd, r.scene.IndexCount)

	r.encoder.EndRenderPass(cmd)
	return r.encoder.End(cmd)
}
