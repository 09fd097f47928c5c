// Package renderer draws a static mesh into a window surface with Vulkan. Its
// core is the swapchain and frame pacing life cycle: acquiring images,
// recreating the swapchain when the surface goes stale and sequencing
// submission and presentation for every frame in flight.
package renderer

import (
	"io/fs"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
	"fastfileviewer/models"
	"fastfileviewer/unsafer"
)

// Options configures a Renderer.
type Options struct {
	Device    *Device
	Window    Window
	Surface   vk.Surface
	Mesh      *models.Mesh
	Assets    fs.FS
	Swapchain SwapchainConfig
	Sync      SyncConfig
	Log       *logging.Logger
}

// imageResources creates and releases the objects sized by the swapchain
// image count. *Device implements it.
type imageResources interface {
	WaitIdle() error
	createFramebuffers(renderPass vk.RenderPass, views []vk.ImageView, extent vk.Extent2D) ([]vk.Framebuffer, error)
	destroyFramebuffers(framebuffers []vk.Framebuffer)
	createUniformBuffers(n int) ([]*buffer, error)
	destroyUniformBuffers(uniforms []*buffer)
	createDescriptorSets(layout vk.DescriptorSetLayout, uniforms []*buffer) (vk.DescriptorPool, []vk.DescriptorSet, error)
	destroyDescriptorPool(pool vk.DescriptorPool)
	allocateCommandBuffers(pool vk.CommandPool, n int) ([]vk.CommandBuffer, error)
	freeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer)
}

// Renderer owns every object needed to draw frames. The swapchain images,
// image views, framebuffers, uniform buffers, descriptor sets, command
// buffers and frame slots always have the same count.
type Renderer struct {
	device *Device
	images imageResources
	log    *logging.Logger
	assets fs.FS
	start  time.Time

	swapchain *Swapchain
	sync      *FrameSynchronizer
	recorder  *CommandRecorder

	renderFormat   vk.Format
	renderPass     vk.RenderPass
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	commandPool    vk.CommandPool

	mesh         *models.Mesh
	vertexBuffer *buffer
	indexBuffer  *buffer

	framebuffers   []vk.Framebuffer
	uniforms       []*buffer
	descriptorPool vk.DescriptorPool
	descriptorSets []vk.DescriptorSet
	commandBuffers []vk.CommandBuffer
}

// New creates the swapchain and everything drawn with it. On failure all
// objects created so far are destroyed.
func New(opts Options) (*Renderer, error) {
	r := &Renderer{
		device: opts.Device,
		images: opts.Device,
		log:    opts.Log,
		assets: opts.Assets,
		mesh:   opts.Mesh,
		start:  time.Now(),
	}

	if err := r.init(opts); err != nil {
		r.Destroy()
		return nil, err
	}

	r.log.Infof("renderer ready: %s, %d vertices, %d frames in flight",
		opts.Mesh.Name, len(opts.Mesh.Vertices), r.sync.SlotCount())
	return r, nil
}

func (r *Renderer) init(opts Options) (err error) {
	d := opts.Device
	r.swapchain = NewSwapchain(d, opts.Window, opts.Surface, d.physical, d.family, opts.Swapchain, opts.Log)
	r.sync = NewFrameSynchronizer(d, r.swapchain, r.Rebuild, opts.Sync, opts.Log)
	r.recorder = NewCommandRecorder(vulkanEncoder{}, opts.Log)

	if err := r.swapchain.Create(); err != nil {
		return errors.Wrap(err, "createSwapchain")
	}
	if r.setLayout, err = d.createDescriptorSetLayout(); err != nil {
		return errors.Wrap(err, "createDescriptorSetLayout")
	}
	if err := r.createPipeline(); err != nil {
		return err
	}
	if r.commandPool, err = d.createCommandPool(); err != nil {
		return errors.Wrap(err, "createCommandPool")
	}

	r.vertexBuffer, err = d.uploadBuffer(r.commandPool, unsafer.SliceToBytes(opts.Mesh.Vertices),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return errors.Wrap(err, "createVertexBuffer")
	}
	r.indexBuffer, err = d.uploadBuffer(r.commandPool, unsafer.SliceToBytes(opts.Mesh.Indices),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return errors.Wrap(err, "createIndexBuffer")
	}

	return r.createPerImage()
}

// createPipeline creates the render pass for the current swapchain format
// and the pipeline drawing into it.
func (r *Renderer) createPipeline() (err error) {
	d := r.device

	r.renderFormat = r.swapchain.Format()
	if r.renderPass, err = d.createRenderPass(r.renderFormat); err != nil {
		return errors.Wrap(err, "createRenderPass")
	}
	r.pipeline, r.pipelineLayout, err = d.createGraphicsPipeline(r.assets, r.renderPass, r.setLayout)
	if err != nil {
		return errors.Wrap(err, "createGraphicsPipeline")
	}
	return nil
}

func (r *Renderer) destroyPipeline() {
	d := r.device

	if r.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(d.handle, r.pipeline, nil)
		r.pipeline = vk.NullPipeline
	}
	if r.pipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(d.handle, r.pipelineLayout, nil)
		r.pipelineLayout = vk.NullPipelineLayout
	}
	if r.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(d.handle, r.renderPass, nil)
		r.renderPass = vk.NullRenderPass
	}
}

// createPerImage builds everything sized by the swapchain image count, in
// dependency order, and checks the counts agree.
func (r *Renderer) createPerImage() (err error) {
	d := r.images
	state := r.swapchain.State()
	n := len(state.Images)

	if r.framebuffers, err = d.createFramebuffers(r.renderPass, state.Views, state.Extent); err != nil {
		return errors.Wrap(err, "createFramebuffers")
	}
	if r.uniforms, err = d.createUniformBuffers(n); err != nil {
		return errors.Wrap(err, "createUniformBuffers")
	}
	if r.descriptorPool, r.descriptorSets, err = d.createDescriptorSets(r.setLayout, r.uniforms); err != nil {
		return errors.Wrap(err, "createDescriptorSets")
	}
	if r.commandBuffers, err = d.allocateCommandBuffers(r.commandPool, n); err != nil {
		r.commandBuffers = nil
		return errors.Wrap(err, "allocateCommandBuffers")
	}

	r.recorder.SetScene(Scene{
		RenderPass:   r.renderPass,
		Pipeline:     r.pipeline,
		Layout:       r.pipelineLayout,
		VertexBuffer: r.vertexBuffer.handle,
		IndexBuffer:  r.indexBuffer.handle,
		IndexCount:   uint32(len(r.mesh.Indices)),
		Extent:       state.Extent,
		ClearColor:   [4]float32{0, 0, 0, 1},
	})

	targets := make([]Target, n)
	for i := range targets {
		targets[i] = Target{Framebuffer: r.framebuffers[i], DescriptorSet: r.descriptorSets[i]}
	}
	if err := r.recorder.Record(r.commandBuffers, targets); err != nil {
		return errors.Wrap(err, "recordCommandBuffers")
	}

	if err := r.sync.Reset(n); err != nil {
		return errors.Wrap(err, "createSyncObjects")
	}

	return checkCounts(n, len(state.Views), len(r.framebuffers), len(r.uniforms),
		len(r.descriptorSets), len(r.commandBuffers), r.sync.SlotCount())
}

func (r *Renderer) destroyPerImage() {
	d := r.images

	r.sync.Destroy()
	d.freeCommandBuffers(r.commandPool, r.commandBuffers)
	r.commandBuffers = nil
	d.destroyDescriptorPool(r.descriptorPool)
	r.descriptorPool = vk.NullDescriptorPool
	r.descriptorSets = nil
	d.destroyUniformBuffers(r.uniforms)
	r.uniforms = nil
	d.destroyFramebuffers(r.framebuffers)
	r.framebuffers = nil
}

// Rebuild recreates the swapchain and then everything sized by it. It is
// called by the frame synchronizer whenever the swapchain is stale.
func (r *Renderer) Rebuild() error {
	if err := r.images.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}
	r.destroyPerImage()

	if err := r.swapchain.Recreate(); err != nil {
		return err
	}
	if r.swapchain.Format() != r.renderFormat {
		r.log.Infof("swapchain format changed, rebuilding pipeline")
		r.destroyPipeline()
		if err := r.createPipeline(); err != nil {
			return err
		}
	}

	if err := r.createPerImage(); err != nil {
		return errors.Wrap(err, "rebuilding per image resources")
	}
	return nil
}

// DrawFrame renders and presents one frame.
func (r *Renderer) DrawFrame() error {
	imageIndex, err := r.sync.AcquireNextImage()
	if err != nil {
		return errors.Wrap(err, "acquiring image")
	}

	ubo := NewUniforms(time.Since(r.start), r.swapchain.Extent())
	writeUniforms(r.uniforms[imageIndex], &ubo)

	if err := r.sync.SubmitAsync(r.commandBuffers[imageIndex], imageIndex); err != nil {
		return errors.Wrap(err, "submitting frame")
	}
	if err := r.sync.Present(imageIndex); err != nil {
		return errors.Wrap(err, "presenting frame")
	}
	return nil
}

// NotifyResized tells the renderer the window framebuffer changed size.
func (r *Renderer) NotifyResized() {
	r.sync.NotifyResized()
}

// WaitIdle blocks until the GPU finished all submitted work.
func (r *Renderer) WaitIdle() error {
	return r.device.WaitIdle()
}

// Destroy waits for the device to become idle and releases everything in
// reverse creation order. It is safe to call on a partially built Renderer.
func (r *Renderer) Destroy() {
	if r == nil || r.device == nil {
		return
	}
	d := r.device

	if err := d.WaitIdle(); err != nil {
		r.log.Errorf("waiting for idle device before cleanup: %+v", err)
	}

	if r.sync != nil {
		r.destroyPerImage()
	}
	d.destroyBuffer(r.indexBuffer)
	d.destroyBuffer(r.vertexBuffer)
	r.indexBuffer, r.vertexBuffer = nil, nil

	if r.commandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.handle, r.commandPool, nil)
		r.commandPool = vk.NullCommandPool
	}
	r.destroyPipeline()
	if r.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.handle, r.setLayout, nil)
		r.setLayout = vk.NullDescriptorSetLayout
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	r.device = nil
}

func checkCounts(images int, counts ...int) error {
	for _, n := range counts {
		if n != images {
			return errors.Wrapf(ErrCountMismatch, "%d swapchain images, counts %v", images, counts)
		}
	}
	return nil
}
