package renderer

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/tablewriter"
)

// Report renders a device snapshot as a text table for the start-up log.
func Report(info *PhysicalDeviceInfo) string {
	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("PHYSICAL DEVICE")
	table.AddRow("Name", info.Name)
	table.AddRow("Type", DeviceTypeName(info.Type))
	table.AddRow("API Version", vk.Version(info.APIVersion))
	table.AddRow("Driver Version", vk.Version(info.DriverVersion))
	table.AddRow("Depth format", fmt.Sprintf("%d", info.DepthFormat))

	caps := info.SurfaceCapabilities
	table.AddSeparator()
	table.AddRow("Image count", fmt.Sprintf("%d - %d", caps.MinImageCount, caps.MaxImageCount))
	table.AddRow("Image size (current)", fmt.Sprintf("%dx%d",
		caps.CurrentExtent.Width, caps.CurrentExtent.Height))
	table.AddRow("Image size (extent)", fmt.Sprintf("%dx%d - %dx%d",
		caps.MinImageExtent.Width, caps.MinImageExtent.Height,
		caps.MaxImageExtent.Width, caps.MaxImageExtent.Height))

	table.AddSeparator()
	table.AddRow("QUEUE FAMILIES", "")
	for i, family := range info.QueueFamilies {
		present := i < len(info.PresentSupport) && info.PresentSupport[i]
		table.AddRow(i, fmt.Sprintf("flags %#x, %d queues, present %t",
			family.QueueFlags, family.QueueCount, present))
	}

	table.AddSeparator()
	table.AddRow("SURFACE FORMATS", "")
	for i, format := range info.SurfaceFormats {
		table.AddRow(i, fmt.Sprintf("format %d, colour space %d", format.Format, format.ColorSpace))
	}

	table.AddSeparator()
	table.AddRow("PRESENT MODES", "")
	for i, mode := range info.PresentModes {
		table.AddRow(i, PresentModeName(mode))
	}

	table.AddSeparator()
	table.AddRow("MEMORY TYPES", "")
	for i := uint32(0); i < info.Memory.MemoryTypeCount; i++ {
		memType := info.Memory.MemoryTypes[i]
		table.AddRow(i, fmt.Sprintf("heap %d, flags %#x", memType.HeapIndex, memType.PropertyFlags))
	}

	return table.Render()
}

// PresentModeName returns the name used by the -present-mode flag.
func PresentModeName(mode vk.PresentMode) string {
	switch mode {
	case vk.PresentModeImmediate:
		return "immediate"
	case vk.PresentModeMailbox:
		return "mailbox"
	case vk.PresentModeFifo:
		return "fifo"
	case vk.PresentModeFifoRelaxed:
		return "fifo-relaxed"
	default:
		return fmt.Sprintf("unknown(%d)", mode)
	}
}
