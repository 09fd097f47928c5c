// Package shaders loads precompiled SPIR-V shader binaries and infers their
// pipeline stage from the file name.
package shaders

import (
	"encoding/binary"
	"io/fs"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

//go:generate ../assets/shaders/compile.sh

// DefaultAssets is the directory, relative to the working directory, from which
// shader binaries are read.
const DefaultAssets = "assets/shaders"

const spirvMagic = 0x07230203

var (
	// ErrUnknownStage is returned for file names without a known stage suffix.
	ErrUnknownStage = errors.New("unknown shader stage")

	// ErrInvalidBinary is returned when a file does not look like SPIR-V.
	ErrInvalidBinary = errors.New("invalid SPIR-V binary")
)

// Stage is a single Vulkan shader stage bit. The values are those of
// VkShaderStageFlagBits, including the ray tracing and mesh extensions.
type Stage uint32

const (
	StageVertex       Stage = 0x00000001
	StageTessControl  Stage = 0x00000002
	StageTessEval     Stage = 0x00000004
	StageGeometry     Stage = 0x00000008
	StageFragment     Stage = 0x00000010
	StageCompute      Stage = 0x00000020
	StageTask         Stage = 0x00000040
	StageMesh         Stage = 0x00000080
	StageRaygen       Stage = 0x00000100
	StageAnyHit       Stage = 0x00000200
	StageClosestHit   Stage = 0x00000400
	StageMiss         Stage = 0x00000800
	StageIntersection Stage = 0x00001000
	StageCallable     Stage = 0x00002000
)

type stageInfo struct {
	suffix string
	stage  Stage
	name   string
}

var stages = []stageInfo{
	{"vert", StageVertex, "vertex"},
	{"frag", StageFragment, "fragment"},
	{"rgen", StageRaygen, "raygeneration"},
	{"rmiss", StageMiss, "miss"},
	{"rchit", StageClosestHit, "closesthit"},
	{"rcall", StageCallable, "callable"},
	{"rint", StageIntersection, "intersection"},
	{"rahit", StageAnyHit, "anyhit"},
	{"comp", StageCompute, "compute"},
	{"mesh", StageMesh, "mesh"},
	{"task", StageTask, "amplification"},
	{"geom", StageGeometry, "geometry"},
	{"tesc", StageTessControl, "hull"},
	{"tese", StageTessEval, "domain"},
}

// Flags returns the stage as used in vk.PipelineShaderStageCreateInfo.
func (s Stage) Flags() vk.ShaderStageFlagBits {
	return vk.ShaderStageFlagBits(s)
}

// String returns the human readable stage name, e.g. "vertex" or "hull".
func (s Stage) String() string {
	for _, info := range stages {
		if info.stage == s {
			return info.name
		}
	}
	return "unknown"
}

// StageFromName infers the stage from a file name such as "default.vert.spv"
// or "shadow.rchit". Directories are ignored.
func StageFromName(name string) (Stage, error) {
	base := strings.TrimSuffix(path.Base(name), ".spv")
	ext := path.Ext(base)
	if ext == "" {
		return 0, errors.Wrapf(ErrUnknownStage, "%q has no stage suffix", name)
	}

	suffix := ext[1:]
	for _, info := range stages {
		if info.suffix == suffix {
			return info.stage, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownStage, "suffix %q of %q", suffix, name)
}

// ModuleCreator turns SPIR-V words into shader modules. It is implemented by
// the renderer's device.
type ModuleCreator interface {
	CreateShaderModule(code []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
}

// Shader is a loaded shader module together with its stage.
type Shader struct {
	Name   string
	Stage  Stage
	Module vk.ShaderModule

	creator ModuleCreator
	closed  bool
}

// Load reads the SPIR-V binary name from fsys, validates it and creates a
// shader module from it.
func Load(fsys fs.FS, name string, creator ModuleCreator) (*Shader, error) {
	stage, err := StageFromName(name)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader %s", name)
	}

	code, err := decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", name)
	}

	module, err := creator.CreateShaderModule(code)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s shader module from %s", stage, name)
	}

	return &Shader{
		Name:    name,
		Stage:   stage,
		Module:  module,
		creator: creator,
	}, nil
}

// StageCreateInfo describes the shader for a graphics pipeline. The entry
// point is always "main".
func (s *Shader) StageCreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage.Flags(),
		Module: s.Module,
		PName:  "main\x00",
	}
}

// Close destroys the shader module. Calling it more than once is a no-op.
func (s *Shader) Close() {
	if s == nil || s.closed {
		return
	}
	s.creator.DestroyShaderModule(s.Module)
	s.Module = vk.NullShaderModule
	s.closed = true
}

// decode repacks little endian SPIR-V bytes into words.
func decode(data []byte) ([]uint32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidBinary, "size %d is not a non-zero multiple of 4", len(data))
	}

	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}

	if code[0] != spirvMagic {
		return nil, errors.Wrapf(ErrInvalidBinary, "bad magic number %#08x", code[0])
	}
	return code, nil
}
