package renderer

import (
	"errors"

	vk "github.com/vulkan-go/vulkan"
)

var errFake = errors.New("fake failure")

// fakeWindow returns sizes in order and keeps returning the last one.
type fakeWindow struct {
	sizes [][2]int
	polls int
	waits int
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	i := w.polls
	if i >= len(w.sizes) {
		i = len(w.sizes) - 1
	}
	w.polls++
	return w.sizes[i][0], w.sizes[i][1]
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}

// fakeSwapchainDevice hands out null handles and counts what is alive.
type fakeSwapchainDevice struct {
	caps vk.SurfaceCapabilities

	// extraImages is added to the requested image count.
	extraImages int

	// failViewAt makes the n-th image view creation of a swapchain fail when
	// it is positive.
	failViewAt int

	created    []vk.SwapchainCreateInfo
	swapchains int
	views      int
	idleWaits  int
	calls      []string
}

func (f *fakeSwapchainDevice) SurfaceCapabilities(vk.Surface) (vk.SurfaceCapabilities, error) {
	return f.caps, nil
}

func (f *fakeSwapchainDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.created = append(f.created, *info)
	f.swapchains++
	f.calls = append(f.calls, "create swapchain")
	return vk.NullSwapchain, nil
}

func (f *fakeSwapchainDevice) SwapchainImages(vk.Swapchain) ([]vk.Image, error) {
	last := f.created[len(f.created)-1]
	return make([]vk.Image, int(last.MinImageCount)+f.extraImages), nil
}

func (f *fakeSwapchainDevice) CreateImageView(vk.Image, vk.Format) (vk.ImageView, error) {
	if f.failViewAt > 0 && f.views+1 == f.failViewAt {
		return vk.NullImageView, errFake
	}
	f.views++
	return vk.NullImageView, nil
}

func (f *fakeSwapchainDevice) DestroyImageView(vk.ImageView) {
	f.views--
	f.calls = append(f.calls, "destroy view")
}

func (f *fakeSwapchainDevice) DestroySwapchain(vk.Swapchain) {
	f.swapchains--
	f.calls = append(f.calls, "destroy swapchain")
}

func (f *fakeSwapchainDevice) WaitIdle() error {
	f.idleWaits++
	f.calls = append(f.calls, "wait idle")
	return nil
}

// fakeSyncDevice scripts the results of fence waits, acquisitions and
// presents. Once a script runs out every call succeeds.
type fakeSyncDevice struct {
	waitResults    []vk.Result
	acquireResults []vk.Result
	presentResults []vk.Result
	submitResult   vk.Result

	// images is the swapchain length used to hand out image indices in
	// round robin order.
	images    uint32
	nextImage uint32

	semaphores int
	fences     int
	failFence  bool

	waits    int
	resets   int
	acquires int
	submits  int
	presents int
	calls    []string
}

func (f *fakeSyncDevice) CreateSemaphore() (vk.Semaphore, error) {
	f.semaphores++
	return vk.NullSemaphore, nil
}

func (f *fakeSyncDevice) DestroySemaphore(vk.Semaphore) {
	f.semaphores--
}

func (f *fakeSyncDevice) CreateFence(signaled bool) (vk.Fence, error) {
	if f.failFence {
		return vk.NullFence, errFake
	}
	f.fences++
	return vk.NullFence, nil
}

func (f *fakeSyncDevice) DestroyFence(vk.Fence) {
	f.fences--
}

func (f *fakeSyncDevice) WaitForFence(vk.Fence, uint64) vk.Result {
	f.waits++
	f.calls = append(f.calls, "wait")
	return next(&f.waitResults)
}

func (f *fakeSyncDevice) ResetFence(vk.Fence) error {
	f.resets++
	f.calls = append(f.calls, "reset")
	return nil
}

func (f *fakeSyncDevice) AcquireNextImage(vk.Swapchain, uint64, vk.Semaphore) (uint32, vk.Result) {
	f.acquires++
	f.calls = append(f.calls, "acquire")

	res := next(&f.acquireResults)
	if res != vk.Success && res != vk.Suboptimal {
		return 0, res
	}
	index := f.nextImage
	if f.images > 0 {
		f.nextImage = (f.nextImage + 1) % f.images
	}
	return index, res
}

func (f *fakeSyncDevice) Submit(vk.CommandBuffer, vk.Semaphore, vk.Semaphore, vk.Fence) vk.Result {
	f.submits++
	f.calls = append(f.calls, "submit")
	return f.submitResult
}

func (f *fakeSyncDevice) Present(vk.Swapchain, uint32, vk.Semaphore) vk.Result {
	f.presents++
	f.calls = append(f.calls, "present")
	return next(&f.presentResults)
}

func next(script *[]vk.Result) vk.Result {
	if len(*script) == 0 {
		return vk.Success
	}
	res := (*script)[0]
	*script = (*script)[1:]
	return res
}

type fakeSwapchainSource struct{}

func (fakeSwapchainSource) Handle() vk.Swapchain {
	return vk.NullSwapchain
}

// fakeEncoder records the names of the commands in order.
type fakeEncoder struct {
	commands []string
	scissors []vk.Rect2D
	indices  []uint32
	beginErr error
	flags    vk.CommandBufferUsageFlags
}

func (e *fakeEncoder) Begin(_ vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	if e.beginErr != nil {
		return e.beginErr
	}
	e.flags = flags
	e.commands = append(e.commands, "begin")
	return nil
}

func (e *fakeEncoder) BeginRenderPass(vk.CommandBuffer, vk.RenderPass, vk.Framebuffer, vk.Extent2D, vk.ClearValue) {
	e.commands = append(e.commands, "begin render pass")
}

func (e *fakeEncoder) BindPipeline(vk.CommandBuffer, vk.Pipeline) {
	e.commands = append(e.commands, "bind pipeline")
}

func (e *fakeEncoder) SetViewport(vk.CommandBuffer, vk.Viewport) {
	e.commands = append(e.commands, "set viewport")
}

func (e *fakeEncoder) SetScissor(_ vk.CommandBuffer, scissor vk.Rect2D) {
	e.scissors = append(e.scissors, scissor)
	e.commands = append(e.commands, "set scissor")
}

func (e *fakeEncoder) BindVertexBuffer(vk.CommandBuffer, vk.Buffer) {
	e.commands = append(e.commands, "bind vertex buffer")
}

func (e *fakeEncoder) BindIndexBuffer(vk.CommandBuffer, vk.Buffer) {
	e.commands = append(e.commands, "bind index buffer")
}

func (e *fakeEncoder) BindDescriptorSet(vk.CommandBuffer, vk.PipelineLayout, vk.DescriptorSet) {
	e.commands = append(e.commands, "bind descriptor set")
}

func (e *fakeEncoder) DrawIndexed(_ vk.CommandBuffer, indexCount uint32) {
	e.indices = append(e.indices, indexCount)
	e.commands = append(e.commands, "draw indexed")
}

func (e *fakeEncoder) EndRenderPass(vk.CommandBuffer) {
	e.commands = append(e.commands, "end render pass")
}

func (e *fakeEncoder) End(vk.CommandBuffer) error {
	e.commands = append(e.commands, "end")
	return nil
}

// fakeImageResources counts the per image objects which are alive.
type fakeImageResources struct {
	framebuffers   int
	uniforms       int
	descriptorSets int
	pools          int
	commandBuffers int
	idleWaits      int
	calls          []string
}

func (f *fakeImageResources) WaitIdle() error {
	f.idleWaits++
	f.calls = append(f.calls, "wait idle")
	return nil
}

func (f *fakeImageResources) createFramebuffers(
	_ vk.RenderPass,
	views []vk.ImageView,
	_ vk.Extent2D,
) ([]vk.Framebuffer, error) {
	f.framebuffers += len(views)
	f.calls = append(f.calls, "create framebuffers")
	return make([]vk.Framebuffer, len(views)), nil
}

func (f *fakeImageResources) destroyFramebuffers(framebuffers []vk.Framebuffer) {
	f.framebuffers -= len(framebuffers)
	f.calls = append(f.calls, "destroy framebuffers")
}

func (f *fakeImageResources) createUniformBuffers(n int) ([]*buffer, error) {
	uniforms := make([]*buffer, n)
	for i := range uniforms {
		uniforms[i] = &buffer{size: uniformBufferSize()}
	}
	f.uniforms += n
	f.calls = append(f.calls, "create uniforms")
	return uniforms, nil
}

func (f *fakeImageResources) destroyUniformBuffers(uniforms []*buffer) {
	f.uniforms -= len(uniforms)
	f.calls = append(f.calls, "destroy uniforms")
}

func (f *fakeImageResources) createDescriptorSets(
	_ vk.DescriptorSetLayout,
	uniforms []*buffer,
) (vk.DescriptorPool, []vk.DescriptorSet, error) {
	f.pools++
	f.descriptorSets += len(uniforms)
	f.calls = append(f.calls, "create descriptor sets")
	return vk.NullDescriptorPool, make([]vk.DescriptorSet, len(uniforms)), nil
}

func (f *fakeImageResources) destroyDescriptorPool(vk.DescriptorPool) {
	f.pools--
	f.descriptorSets = 0
	f.calls = append(f.calls, "destroy descriptor pool")
}

func (f *fakeImageResources) allocateCommandBuffers(_ vk.CommandPool, n int) ([]vk.CommandBuffer, error) {
	f.commandBuffers += n
	f.calls = append(f.calls, "allocate command buffers")
	return make([]vk.CommandBuffer, n), nil
}

func (f *fakeImageResources) freeCommandBuffers(_ vk.CommandPool, buffers []vk.CommandBuffer) {
	f.commandBuffers -= len(buffers)
	f.calls = append(f.calls, "free command buffers")
}
