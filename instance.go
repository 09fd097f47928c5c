package main

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

// validationLayers are enabled with -debug.
var validationLayers = []string{
	"VK_LAYER_KHRONOS_validation\x00",
}

// instance is the Vulkan instance together with the objects created directly
// from it.
type instance struct {
	handle        vk.Instance
	surface       vk.Surface
	debugCallback vk.DebugReportCallback
	layers        []string
	log           *logging.Logger
}

// newInstance loads the Vulkan loader through GLFW and creates an instance
// with the extensions the window system needs. With debug set the
// validation layers are enabled and their reports go to log.
func newInstance(w *window, appName string, debug bool, log *logging.Logger) (*instance, error) {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to init Vulkan Go")
	}

	extensions := safeStrings(w.GetRequiredInstanceExtensions())
	var layers []string
	if debug {
		ok, err := checkValidationSupport(validationLayers)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("validation layers requested but not available")
		}
		layers = validationLayers
		extensions = append(extensions, vk.ExtDebugReportExtensionName+"\x00")
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	i := &instance{
		surface:       vk.NullSurface,
		debugCallback: vk.NullDebugReportCallback,
		layers:        layers,
		log:           log,
	}
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &i.handle)); err != nil {
		return nil, errors.Wrap(err, "failed to create Vulkan instance")
	}
	if err := vk.InitInstance(i.handle); err != nil {
		vk.DestroyInstance(i.handle, nil)
		return nil, errors.Wrap(err, "loading instance functions")
	}

	if debug {
		res := vk.CreateDebugReportCallback(i.handle, &vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
			PfnCallback: i.debugReport,
		}, nil, &i.debugCallback)
		if err := vk.Error(res); err != nil {
			i.debugCallback = vk.NullDebugReportCallback
			i.destroy()
			return nil, errors.Wrap(err, "failed to register debug report callback")
		}
		log.Tracef("validation layers enabled")
	}

	return i, nil
}

func (i *instance) createSurface(w *window) error {
	surfacePtr, err := w.CreateWindowSurface(i.handle, nil)
	if err != nil {
		return errors.Wrap(err, "cannot create surface within GLFW window")
	}

	i.surface = vk.SurfaceFromPointer(surfacePtr)
	return nil
}

func (i *instance) debugReport(
	flags vk.DebugReportFlags,
	objectType vk.DebugReportObjectType,
	object uint64,
	location uint,
	messageCode int32,
	pLayerPrefix string,
	pMessage string,
	pUserData unsafe.Pointer,
) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		i.log.Errorf("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		i.log.Warnf("performance: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		i.log.Warnf("[%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (i *instance) destroy() {
	if i.surface != vk.NullSurface {
		vk.DestroySurface(i.handle, i.surface, nil)
		i.surface = vk.NullSurface
	}
	if i.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle, i.debugCallback, nil)
		i.debugCallback = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(i.handle, nil)
}

func checkValidationSupport(required []string) (bool, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return false, errors.Wrap(err, "counting instance layers")
	}
	availableLayers := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, availableLayers)); err != nil {
		return false, errors.Wrap(err, "listing instance layers")
	}

	available := make([]string, 0, count)
	for _, layer := range availableLayers {
		layer.Deref()
		available = append(available, vk.ToString(layer.LayerName[:])+"\x00")
	}
	return containsAll(available, required), nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, name := range have {
		set[name] = struct{}{}
	}
	for _, name := range want {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}

// safeString returns s terminated by a NUL byte, as Vulkan expects.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
