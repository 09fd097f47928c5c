package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
	"fastfileviewer/queues"
)

// PhysicalDeviceInfo is a snapshot of one GPU and its support for the window
// surface. It is filled once at start-up and never changes afterwards.
type PhysicalDeviceInfo struct {
	Handle        vk.PhysicalDevice
	Name          string
	Type          vk.PhysicalDeviceType
	APIVersion    uint32
	DriverVersion uint32

	// QueueFamilies and PresentSupport are indexed by queue family index.
	QueueFamilies  []vk.QueueFamilyProperties
	PresentSupport []bool

	Extensions          []string
	SurfaceFormats      []vk.SurfaceFormat
	PresentModes        []vk.PresentMode
	SurfaceCapabilities vk.SurfaceCapabilities
	Memory              vk.PhysicalDeviceMemoryProperties
	Features            vk.PhysicalDeviceFeatures

	// DepthFormat is the first of D32, D32S8 and D24S8 usable as a depth
	// attachment, or vk.FormatUndefined.
	DepthFormat vk.Format
}

// HasExtension reports whether the device advertises the named extension.
func (p *PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Selection is a device together with the queue family used for both
// rendering and presenting.
type Selection struct {
	Device      *PhysicalDeviceInfo
	QueueFamily uint32
}

// DeviceSelector owns the device snapshots and picks the one to render with.
type DeviceSelector struct {
	devices  []*PhysicalDeviceInfo
	selected *Selection
	log      *logging.Logger
}

// NewDeviceSelector returns a selector over devices in enumeration order.
func NewDeviceSelector(devices []*PhysicalDeviceInfo, log *logging.Logger) *DeviceSelector {
	return &DeviceSelector{devices: devices, log: log}
}

// Devices returns the snapshots the selector chooses from.
func (s *DeviceSelector) Devices() []*PhysicalDeviceInfo {
	return s.devices
}

// SelectDevice returns the first device and queue family, in enumeration
// order, whose queue flags contain required and which can present when
// requirePresent is set. This is first fit: a later, faster device is never
// preferred.
func (s *DeviceSelector) SelectDevice(required vk.QueueFlags, requirePresent bool) (Selection, error) {
	for _, dev := range s.devices {
		for i, family := range dev.QueueFamilies {
			present := i < len(dev.PresentSupport) && dev.PresentSupport[i]
			if !queues.Satisfies(family.QueueFlags, present, required, requirePresent) {
				continue
			}

			s.log.Tracef("selected %s (%s), queue family %d", dev.Name, DeviceTypeName(dev.Type), i)
			s.selected = &Selection{Device: dev, QueueFamily: uint32(i)}
			return *s.selected, nil
		}
		s.log.Tracef("skipping %s: no queue family with flags %#x, present %t",
			dev.Name, required, requirePresent)
	}

	return Selection{}, errors.Wrapf(ErrNoSuitableDevice,
		"%d devices, queue flags %#x, present %t", len(s.devices), required, requirePresent)
}

// Selected returns the result of the last successful SelectDevice.
func (s *DeviceSelector) Selected() (Selection, bool) {
	if s.selected == nil {
		return Selection{}, false
	}
	return *s.selected, true
}

// FindMemoryType returns the index of the first memory type allowed by
// typeFilter which has all of flags.
func FindMemoryType(
	props vk.PhysicalDeviceMemoryProperties,
	typeFilter uint32,
	flags vk.MemoryPropertyFlags,
) (uint32, error) {
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) == 0 {
			continue
		}
		if props.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#b, flags %#x", typeFilter, flags)
}

// DeviceTypeName returns a readable name for a device type.
func DeviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated GPU"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete GPU"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual GPU"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	case vk.PhysicalDeviceTypeOther:
		return "Other"
	default:
		return "Unknown"
	}
}
