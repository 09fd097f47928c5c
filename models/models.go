// Package models decodes the static geometry drawn by the viewer.
package models

import (
	"io"
	"io/fs"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/mokiat/go-data-front/decoder/obj"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"
)

// ErrNoGeometry is returned for OBJ files without any triangles.
var ErrNoGeometry = errors.New("model has no faces")

// palette colours vertices in the order they appear in the file.
var palette = []linmath.Vec3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 1, 1},
}

// Vertex is the layout of one entry in the vertex buffer.
type Vertex struct {
	Position linmath.Vec2
	Color    linmath.Vec3
}

// Mesh is indexed triangle list geometry.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Names lists the models which can be passed to Load.
func Names() []string {
	return []string{"triangle", "quad"}
}

// Load decodes the embedded model called name, e.g. "quad".
func Load(name string) (*Mesh, error) {
	f, err := FS.Open(name + ".obj")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Newf("unknown model %q, expected one of %v", name, Names())
		}
		return nil, errors.Wrapf(err, "opening model %s", name)
	}
	defer f.Close()

	return Decode(name, f)
}

// Decode reads a Wavefront OBJ stream. Only vertex positions are used, their
// Z coordinate is dropped. Polygons are split into triangle fans.
func Decode(name string, r io.Reader) (*Mesh, error) {
	model, err := obj.NewDecoder(obj.DefaultLimits()).Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", name)
	}

	mesh := &Mesh{Name: name}
	for i, v := range model.Vertices {
		mesh.Vertices = append(mesh.Vertices, Vertex{
			Position: linmath.Vec2{float32(v.X), float32(v.Y)},
			Color:    palette[i%len(palette)],
		})
	}

	for _, object := range model.Objects {
		for _, m := range object.Meshes {
			for _, face := range m.Faces {
				refs := face.References
				if len(refs) < 3 {
					return nil, errors.Newf("%s: face with %d vertices", name, len(refs))
				}
				for i := 1; i+1 < len(refs); i++ {
					for _, ref := range []obj.Reference{refs[0], refs[i], refs[i+1]} {
						if ref.VertexIndex < 0 || ref.VertexIndex >= int64(len(mesh.Vertices)) {
							return nil, errors.Newf("%s: vertex index %d out of range", name, ref.VertexIndex)
						}
						mesh.Indices = append(mesh.Indices, uint32(ref.VertexIndex))
					}
				}
			}
		}
	}

	if len(mesh.Indices) == 0 {
		return nil, errors.Wrapf(ErrNoGeometry, "%s", name)
	}
	return mesh, nil
}

// VertexSize is the stride of the vertex buffer.
func VertexSize() uint32 {
	return uint32(unsafe.Sizeof(Vertex{}))
}

// BindingDescription describes the single interleaved vertex buffer.
func BindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    VertexSize(),
		InputRate: vk.VertexInputRateVertex,
	}
}

// AttributeDescriptions matches the inputs of default.vert.
func AttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
	}
}
