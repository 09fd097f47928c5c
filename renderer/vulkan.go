package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/queues"
)

// DeviceExtensions are the device extensions the renderer needs.
var DeviceExtensions = []string{
	vk.KhrSwapchainExtensionName + "\x00",
}

// EnumeratePhysicalDevices snapshots every GPU visible to instance together
// with its support for surface.
func EnumeratePhysicalDevices(instance vk.Instance, surface vk.Surface) ([]*PhysicalDeviceInfo, error) {
	var deviceCount uint32
	if err := checkResult("vkEnumeratePhysicalDevices",
		vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, err
	}
	if deviceCount == 0 {
		return nil, errors.Wrap(ErrNoSuitableDevice, "no GPUs with Vulkan support")
	}

	handles := make([]vk.PhysicalDevice, deviceCount)
	if err := checkResult("vkEnumeratePhysicalDevices",
		vk.EnumeratePhysicalDevices(instance, &deviceCount, handles)); err != nil {
		return nil, err
	}

	infos := make([]*PhysicalDeviceInfo, 0, deviceCount)
	for i, handle := range handles[:deviceCount] {
		info, err := queryPhysicalDevice(handle, surface)
		if err != nil {
			return nil, errors.Wrapf(err, "querying physical device %d", i)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func queryPhysicalDevice(handle vk.PhysicalDevice, surface vk.Surface) (*PhysicalDeviceInfo, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(handle, &props)
	props.Deref()

	info := &PhysicalDeviceInfo{
		Handle:        handle,
		Name:          vk.ToString(props.DeviceName[:]),
		Type:          props.DeviceType,
		APIVersion:    props.ApiVersion,
		DriverVersion: props.DriverVersion,
	}

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, families)

	for i := range families {
		families[i].Deref()

		var hasPresent vk.Bool32
		res := vk.GetPhysicalDeviceSurfaceSupport(handle, uint32(i), surface, &hasPresent)
		if err := checkResult("vkGetPhysicalDeviceSurfaceSupportKHR", res); err != nil {
			return nil, errors.Wrapf(err, "queue family %d", i)
		}
		info.PresentSupport = append(info.PresentSupport, hasPresent.B())
	}
	info.QueueFamilies = families

	var extCount uint32
	res := vk.EnumerateDeviceExtensionProperties(handle, "", &extCount, nil)
	if err := checkResult("vkEnumerateDeviceExtensionProperties", res); err != nil {
		return nil, err
	}
	extensions := make([]vk.ExtensionProperties, extCount)
	res = vk.EnumerateDeviceExtensionProperties(handle, "", &extCount, extensions)
	if err := checkResult("vkEnumerateDeviceExtensionProperties", res); err != nil {
		return nil, err
	}
	for _, ext := range extensions {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:])+"\x00")
	}

	caps, err := surfaceCapabilities(handle, surface)
	if err != nil {
		return nil, err
	}
	info.SurfaceCapabilities = caps

	var formatCount uint32
	res = vk.GetPhysicalDeviceSurfaceFormats(handle, surface, &formatCount, nil)
	if err := checkResult("vkGetPhysicalDeviceSurfaceFormatsKHR", res); err != nil {
		return nil, err
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(handle, surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			info.SurfaceFormats = append(info.SurfaceFormats, format)
		}
	}

	var modeCount uint32
	res = vk.GetPhysicalDeviceSurfacePresentModes(handle, surface, &modeCount, nil)
	if err := checkResult("vkGetPhysicalDeviceSurfacePresentModesKHR", res); err != nil {
		return nil, err
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(handle, surface, &modeCount, info.PresentModes)
	}

	vk.GetPhysicalDeviceMemoryProperties(handle, &info.Memory)
	info.Memory.Deref()
	for i := uint32(0); i < info.Memory.MemoryTypeCount; i++ {
		info.Memory.MemoryTypes[i].Deref()
	}
	for i := uint32(0); i < info.Memory.MemoryHeapCount; i++ {
		info.Memory.MemoryHeaps[i].Deref()
	}

	vk.GetPhysicalDeviceFeatures(handle, &info.Features)
	info.Features.Deref()

	info.DepthFormat = findDepthFormat(handle)
	return info, nil
}

func surfaceCapabilities(handle vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(handle, surface, &caps)
	if err := checkResult("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func findDepthFormat(handle vk.PhysicalDevice) vk.Format {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	features := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)

	for _, format := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(handle, format, &props)
		props.Deref()

		if props.OptimalTilingFeatures&features == features {
			return format
		}
	}
	return vk.FormatUndefined
}

// Device is the logical device together with the queue used for rendering
// and presenting. It implements SwapchainDevice, SyncDevice and
// shaders.ModuleCreator on top of the Vulkan API.
type Device struct {
	handle   vk.Device
	physical *PhysicalDeviceInfo
	queue    vk.Queue
	family   uint32
}

// OpenDevice creates the logical device for sel. layers are only passed on
// when validation is enabled.
func OpenDevice(sel Selection, layers []string) (*Device, error) {
	for _, ext := range DeviceExtensions {
		if !sel.Device.HasExtension(ext) {
			return nil, errors.Newf("device %s lacks extension %s", sel.Device.Name, ext)
		}
	}

	indices := queues.FamilyIndices{}
	indices.Graphics.Set(sel.QueueFamily)
	indices.Present.Set(sel.QueueFamily)

	var queueCreateInfos []vk.DeviceQueueCreateInfo
	for _, family := range indices.Unique() {
		queueCreateInfos = append(queueCreateInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(DeviceExtensions)),
		PpEnabledExtensionNames: DeviceExtensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var handle vk.Device
	if err := checkResult("vkCreateDevice",
		vk.CreateDevice(sel.Device.Handle, &createInfo, nil, &handle)); err != nil {
		return nil, err
	}

	var queue vk.Queue
	vk.GetDeviceQueue(handle, indices.Graphics.Get(), 0, &queue)

	return &Device{
		handle:   handle,
		physical: sel.Device,
		queue:    queue,
		family:   sel.QueueFamily,
	}, nil
}

// Handle returns the logical device.
func (d *Device) Handle() vk.Device {
	return d.handle
}

// Destroy destroys the logical device. Everything created from it must have
// been destroyed before.
func (d *Device) Destroy() {
	if d == nil || d.handle == vk.Device(vk.NullHandle) {
		return
	}
	vk.DestroyDevice(d.handle, nil)
	d.handle = vk.Device(vk.NullHandle)
}

func (d *Device) WaitIdle() error {
	return checkResult("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.handle))
}

func (d *Device) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	return surfaceCapabilities(d.physical.Handle, surface)
}

func (d *Device) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(d.handle, info, nil, &swapchain)
	return swapchain, checkResult("vkCreateSwapchainKHR", res)
}

func (d *Device) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	res := vk.GetSwapchainImages(d.handle, swapchain, &count, nil)
	if err := checkResult("vkGetSwapchainImagesKHR", res); err != nil {
		return nil, err
	}

	images := make([]vk.Image, count)
	res = vk.GetSwapchainImages(d.handle, swapchain, &count, images)
	if err := checkResult("vkGetSwapchainImagesKHR", res); err != nil {
		return nil, err
	}
	return images[:count], nil
}

func (d *Device) CreateImageView(image vk.Image, format vk.Format) (vk.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	res := vk.CreateImageView(d.handle, &createInfo, nil, &view)
	return view, checkResult("vkCreateImageView", res)
}

func (d *Device) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.handle, view, nil)
}

func (d *Device) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.handle, swapchain, nil)
}

func (d *Device) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var sem vk.Semaphore
	res := vk.CreateSemaphore(d.handle, &info, nil, &sem)
	return sem, checkResult("vkCreateSemaphore", res)
}

func (d *Device) DestroySemaphore(sem vk.Semaphore) {
	vk.DestroySemaphore(d.handle, sem, nil)
}

func (d *Device) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	res := vk.CreateFence(d.handle, &info, nil, &fence)
	return fence, checkResult("vkCreateFence", res)
}

func (d *Device) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.handle, fence, nil)
}

func (d *Device) WaitForFence(fence vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(d.handle, 1, []vk.Fence{fence}, vk.True, timeout)
}

func (d *Device) ResetFence(fence vk.Fence) error {
	return checkResult("vkResetFences", vk.ResetFences(d.handle, 1, []vk.Fence{fence}))
}

func (d *Device) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(d.handle, swapchain, timeout, signal, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (d *Device) Submit(cmd vk.CommandBuffer, wait, signal vk.Semaphore, fence vk.Fence) vk.Result {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal},
	}

	return vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submitInfo}, fence)
}

func (d *Device) Present(swapchain vk.Swapchain, imageIndex uint32, wait vk.Semaphore) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain},
		PImageIndices:      []uint32{imageIndex},
	}

	return vk.QueuePresent(d.queue, &presentInfo)
}

func (d *Device) CreateShaderModule(code []uint32) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}

	var module vk.ShaderModule
	res := vk.CreateShaderModule(d.handle, &createInfo, nil, &module)
	return module, checkResult("vkCreateShaderModule", res)
}

func (d *Device) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.handle, module, nil)
}
