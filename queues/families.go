package queues

import (
	"fastfileviewer/optional"

	vk "github.com/vulkan-go/vulkan"
)

// FamilyIndices holds the indexes of Vulkan queue families needed by the program.
type FamilyIndices struct {

	// Graphics is the index of the graphics queue family.
	Graphics optional.Optional[uint32]

	// Present is the index of the queue family used for presenting to the drawing
	// surface.
	Present optional.Optional[uint32]
}

// IsComplete returns true if all families have been set.
func (f *FamilyIndices) IsComplete() bool {
	return f.Graphics.HasValue() && f.Present.HasValue()
}

// Unique returns the distinct family indices which have been set. One queue
// create info is needed per entry.
func (f *FamilyIndices) Unique() []uint32 {
	var out []uint32
	if f.Graphics.HasValue() {
		out = append(out, f.Graphics.Get())
	}
	if f.Present.HasValue() && (len(out) == 0 || out[0] != f.Present.Get()) {
		out = append(out, f.Present.Get())
	}
	return out
}

// Satisfies reports whether a queue family with the given flags and present
// support can serve a request for required capabilities. When requirePresent
// is false the present support of the family does not matter.
func Satisfies(
	flags vk.QueueFlags,
	supportsPresent bool,
	required vk.QueueFlags,
	requirePresent bool,
) bool {
	if flags&required != required {
		return false
	}
	if requirePresent && !supportsPresent {
		return false
	}
	return true
}
