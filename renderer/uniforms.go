package renderer

import (
	"math"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"

	"fastfileviewer/unsafer"
)

// UniformBufferObject matches the uniform block of default.vert.
type UniformBufferObject struct {
	Model linmath.Mat4x4
	View  linmath.Mat4x4
	Proj  linmath.Mat4x4
}

// NewUniforms returns the transforms for a frame drawn elapsed after start
// into an image of the given extent. The model spins around Z at one radian
// per second.
func NewUniforms(elapsed time.Duration, extent vk.Extent2D) UniformBufferObject {
	var ubo UniformBufferObject

	ubo.Model.Identity()
	ubo.Model.RotateZ(&ubo.Model, float32(elapsed.Seconds()))
	ubo.View.LookAt(
		&linmath.Vec3{0, 0, 2},
		&linmath.Vec3{0, 0, 0},
		&linmath.Vec3{0, 1, 0},
	)

	aspect := float32(1)
	if extent.Height != 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	ubo.Proj.Perspective(math.Pi/4, aspect, 0.1, 10)

	// Vulkan clip space has Y pointing down.
	ubo.Proj[1][1] *= -1

	return ubo
}

func uniformBufferSize() vk.DeviceSize {
	return vk.DeviceSize(unsafe.Sizeof(UniformBufferObject{}))
}

func (d *Device) createUniformBuffers(n int) ([]*buffer, error) {
	uniforms := make([]*buffer, 0, n)
	for i := 0; i < n; i++ {
		b, err := d.createBuffer(
			uniformBufferSize(),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|
				vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
		)
		if err == nil {
			err = d.mapBuffer(b)
			if err != nil {
				d.destroyBuffer(b)
			}
		}
		if err != nil {
			d.destroyUniformBuffers(uniforms)
			return nil, err
		}
		uniforms = append(uniforms, b)
	}
	return uniforms, nil
}

func (d *Device) destroyUniformBuffers(uniforms []*buffer) {
	for _, b := range uniforms {
		d.destroyBuffer(b)
	}
}

func writeUniforms(b *buffer, ubo *UniformBufferObject) {
	vk.Memcopy(b.mapped, unsafer.StructToBytes(ubo))
}
