package renderer

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

// buffer is a VkBuffer with its own memory allocation. mapped is set for
// host visible buffers which stay mapped for their whole life.
type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   vk.DeviceSize
	mapped unsafe.Pointer
}

func (d *Device) createBuffer(
	size vk.DeviceSize,
	usage vk.BufferUsageFlags,
	properties vk.MemoryPropertyFlags,
) (*buffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	b := &buffer{size: size}
	res := vk.CreateBuffer(d.handle, &bufferInfo, nil, &b.handle)
	if err := checkResult("vkCreateBuffer", res); err != nil {
		return nil, err
	}

	var memRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, b.handle, &memRequirements)
	memRequirements.Deref()

	memTypeIndex, err := FindMemoryType(d.physical.Memory, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(d.handle, b.handle, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	res = vk.AllocateMemory(d.handle, &allocInfo, nil, &b.memory)
	if err := checkResult("vkAllocateMemory", res); err != nil {
		vk.DestroyBuffer(d.handle, b.handle, nil)
		return nil, err
	}

	res = vk.BindBufferMemory(d.handle, b.handle, b.memory, 0)
	if err := checkResult("vkBindBufferMemory", res); err != nil {
		d.destroyBuffer(b)
		return nil, err
	}

	return b, nil
}

func (d *Device) destroyBuffer(b *buffer) {
	if b == nil {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(d.handle, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(d.handle, b.handle, nil)
	vk.FreeMemory(d.handle, b.memory, nil)
}

func (d *Device) mapBuffer(b *buffer) error {
	var data unsafe.Pointer
	res := vk.MapMemory(d.handle, b.memory, 0, b.size, 0, &data)
	if err := checkResult("vkMapMemory", res); err != nil {
		return err
	}
	b.mapped = data
	return nil
}

// uploadBuffer creates a device local buffer holding data. The data goes
// through a host visible staging buffer and a one-off copy on the queue.
func (d *Device) uploadBuffer(pool vk.CommandPool, data []byte, usage vk.BufferUsageFlags) (*buffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := d.createBuffer(
		size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating the staging buffer")
	}
	defer d.destroyBuffer(staging)

	if err := d.mapBuffer(staging); err != nil {
		return nil, errors.Wrap(err, "mapping the staging buffer")
	}
	vk.Memcopy(staging.mapped, data)

	dst, err := d.createBuffer(
		size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)|usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating the device local buffer")
	}

	if err := d.copyBuffer(pool, staging.handle, dst.handle, size); err != nil {
		d.destroyBuffer(dst)
		return nil, errors.Wrap(err, "copying the staging buffer")
	}
	return dst, nil
}

func (d *Device) copyBuffer(pool vk.CommandPool, src, dst vk.Buffer, size vk.DeviceSize) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(d.handle, &allocInfo, commandBuffers)
	if err := checkResult("vkAllocateCommandBuffers", res); err != nil {
		return err
	}
	defer vk.FreeCommandBuffers(d.handle, pool, 1, commandBuffers)
	cmd := commandBuffers[0]

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := checkResult("vkBeginCommandBuffer", vk.BeginCommandBuffer(cmd, &beginInfo)); err != nil {
		return err
	}

	vk.CmdCopyBuffer(cmd, src, dst, 1, []vk.BufferCopy{{Size: size}})

	if err := checkResult("vkEndCommandBuffer", vk.EndCommandBuffer(cmd)); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}
	res = vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)
	if err := checkResult("vkQueueSubmit", res); err != nil {
		return err
	}

	return checkResult("vkQueueWaitIdle", vk.QueueWaitIdle(d.queue))
}

func (d *Device) createCommandPool() (vk.CommandPool, error) {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.family,
	}

	var pool vk.CommandPool
	res := vk.CreateCommandPool(d.handle, &poolInfo, nil, &pool)
	return pool, checkResult("vkCreateCommandPool", res)
}

func (d *Device) allocateCommandBuffers(pool vk.CommandPool, n int) ([]vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}

	buffers := make([]vk.CommandBuffer, n)
	res := vk.AllocateCommandBuffers(d.handle, &allocInfo, buffers)
	return buffers, checkResult("vkAllocateCommandBuffers", res)
}

func (d *Device) freeCommandBuffers(pool vk.CommandPool, buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.handle, pool, uint32(len(buffers)), buffers)
}

// destroyDescriptorPool frees the pool together with its sets.
func (d *Device) destroyDescriptorPool(pool vk.DescriptorPool) {
	if pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(d.handle, pool, nil)
	}
}

// createDescriptorSets creates a pool holding exactly one uniform buffer
// descriptor set per entry in uniforms and writes each buffer into its set.
func (d *Device) createDescriptorSets(
	layout vk.DescriptorSetLayout,
	uniforms []*buffer,
) (vk.DescriptorPool, []vk.DescriptorSet, error) {
	n := uint32(len(uniforms))

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       n,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: n,
		}},
	}

	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(d.handle, &poolInfo, nil, &pool)
	if err := checkResult("vkCreateDescriptorPool", res); err != nil {
		return vk.NullDescriptorPool, nil, err
	}

	layouts := make([]vk.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = layout
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: n,
		PSetLayouts:        layouts,
	}

	sets := make([]vk.DescriptorSet, n)
	res = vk.AllocateDescriptorSets(d.handle, &allocInfo, &sets[0])
	if err := checkResult("vkAllocateDescriptorSets", res); err != nil {
		vk.DestroyDescriptorPool(d.handle, pool, nil)
		return vk.NullDescriptorPool, nil, err
	}

	for i, uniform := range uniforms {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[i],
			DstBinding:      0,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniform.handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}},
		}
		vk.UpdateDescriptorSets(d.handle, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	}

	return pool, sets, nil
}
