package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

var (
	graphicsOnly = vk.QueueFlags(vk.QueueGraphicsBit)
	computeOnly  = vk.QueueFlags(vk.QueueComputeBit)
	transferOnly = vk.QueueFlags(vk.QueueTransferBit)
)

func family(flags vk.QueueFlags) vk.QueueFamilyProperties {
	return vk.QueueFamilyProperties{QueueFlags: flags, QueueCount: 1}
}

func testDevices() []*PhysicalDeviceInfo {
	return []*PhysicalDeviceInfo{
		{
			Name:           "compute card",
			Type:           vk.PhysicalDeviceTypeDiscreteGpu,
			QueueFamilies:  []vk.QueueFamilyProperties{family(computeOnly)},
			PresentSupport: []bool{false},
		},
		{
			Name: "integrated",
			Type: vk.PhysicalDeviceTypeIntegratedGpu,
			QueueFamilies: []vk.QueueFamilyProperties{
				family(transferOnly),
				family(graphicsOnly),
				family(graphicsOnly | computeOnly),
			},
			PresentSupport: []bool{true, false, true},
		},
		{
			Name:           "discrete",
			Type:           vk.PhysicalDeviceTypeDiscreteGpu,
			QueueFamilies:  []vk.QueueFamilyProperties{family(graphicsOnly | computeOnly)},
			PresentSupport: []bool{true},
		},
	}
}

func TestSelectDeviceIsFirstFit(t *testing.T) {
	g := NewWithT(t)

	s := NewDeviceSelector(testDevices(), logging.Discard())
	_, ok := s.Selected()
	g.Expect(ok).To(BeFalse())

	// The integrated GPU comes first, a later discrete one is not preferred.
	sel, err := s.SelectDevice(graphicsOnly, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Device.Name).To(Equal("integrated"))
	g.Expect(sel.QueueFamily).To(BeEquivalentTo(1))

	sel, err = s.SelectDevice(graphicsOnly, true)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Device.Name).To(Equal("integrated"))
	g.Expect(sel.QueueFamily).To(BeEquivalentTo(2))

	selected, ok := s.Selected()
	g.Expect(ok).To(BeTrue())
	g.Expect(selected).To(Equal(sel))

	sel, err = s.SelectDevice(computeOnly, false)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sel.Device.Name).To(Equal("compute card"))
}

func TestSelectDeviceWithoutMatch(t *testing.T) {
	g := NewWithT(t)

	s := NewDeviceSelector(testDevices(), logging.Discard())
	_, err := s.SelectDevice(vk.QueueFlags(vk.QueueSparseBindingBit), false)
	g.Expect(errors.Is(err, ErrNoSuitableDevice)).To(BeTrue())

	_, err = NewDeviceSelector(nil, logging.Discard()).SelectDevice(graphicsOnly, true)
	g.Expect(errors.Is(err, ErrNoSuitableDevice)).To(BeTrue())
}

func TestSelectDeviceWithShortPresentSupport(t *testing.T) {
	g := NewWithT(t)

	dev := &PhysicalDeviceInfo{
		Name:           "partial",
		QueueFamilies:  []vk.QueueFamilyProperties{family(graphicsOnly), family(graphicsOnly)},
		PresentSupport: []bool{false},
	}
	_, err := NewDeviceSelector([]*PhysicalDeviceInfo{dev}, logging.Discard()).SelectDevice(graphicsOnly, true)
	g.Expect(errors.Is(err, ErrNoSuitableDevice)).To(BeTrue())
}

func TestFindMemoryType(t *testing.T) {
	g := NewWithT(t)

	hostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	hostCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 3
	props.MemoryTypes[0].PropertyFlags = deviceLocal
	props.MemoryTypes[1].PropertyFlags = hostVisible
	props.MemoryTypes[2].PropertyFlags = hostVisible | hostCoherent

	index, err := FindMemoryType(props, 0b111, deviceLocal)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(index).To(BeEquivalentTo(0))

	index, err = FindMemoryType(props, 0b111, hostVisible|hostCoherent)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(index).To(BeEquivalentTo(2))

	index, err = FindMemoryType(props, 0b110, hostVisible)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(index).To(BeEquivalentTo(1))

	_, err = FindMemoryType(props, 0b011, hostVisible|hostCoherent)
	g.Expect(errors.Is(err, ErrNoMemoryType)).To(BeTrue())

	// Types beyond the reported count are ignored.
	props.MemoryTypes[3].PropertyFlags = deviceLocal
	_, err = FindMemoryType(props, 0b1000, deviceLocal)
	g.Expect(errors.Is(err, ErrNoMemoryType)).To(BeTrue())
}

func TestHasExtension(t *testing.T) {
	g := NewWithT(t)

	info := &PhysicalDeviceInfo{Extensions: DeviceExtensions}
	g.Expect(info.HasExtension(DeviceExtensions[0])).To(BeTrue())
	g.Expect(info.HasExtension("VK_KHR_ray_query\x00")).To(BeFalse())
}

func TestReport(t *testing.T) {
	g := NewWithT(t)

	info := testDevices()[1]
	info.APIVersion = vk.MakeVersion(1, 3, 0)
	info.SurfaceFormats = []vk.SurfaceFormat{srgb}
	info.PresentModes = []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	info.Memory.MemoryTypeCount = 1

	report := Report(info)
	g.Expect(report).To(ContainSubstring("PHYSICAL DEVICE"))
	g.Expect(report).To(ContainSubstring("integrated"))
	g.Expect(report).To(ContainSubstring("Integrated GPU"))
	g.Expect(report).To(ContainSubstring("1.3.0"))
	g.Expect(report).To(ContainSubstring("mailbox"))
	g.Expect(report).To(ContainSubstring("present true"))
}

func TestNames(t *testing.T) {
	g := NewWithT(t)

	g.Expect(DeviceTypeName(vk.PhysicalDeviceTypeDiscreteGpu)).To(Equal("Discrete GPU"))
	g.Expect(DeviceTypeName(vk.PhysicalDeviceType(99))).To(Equal("Unknown"))
	g.Expect(PresentModeName(vk.PresentModeFifoRelaxed)).To(Equal("fifo-relaxed"))
	g.Expect(PresentModeName(vk.PresentMode(42))).To(Equal("unknown(42)"))
}
