package renderer

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	// ErrOutOfDate means the surface changed and the swapchain has to be
	// recreated. It is the only recoverable error of the frame loop.
	ErrOutOfDate = errors.New("swapchain out of date")

	ErrFenceTimeout     = errors.New("timed out waiting for in-flight fence")
	ErrAcquireTimeout   = errors.New("timed out acquiring swapchain image")
	ErrNoSuitableDevice = errors.New("no suitable GPU found")
	ErrNoSurfaceFormats = errors.New("device reports no surface formats")
	ErrNoPresentModes   = errors.New("device reports no present modes")
	ErrNoMemoryType     = errors.New("no suitable memory type")
	ErrCountMismatch    = errors.New("swapchain image, frame slot and command buffer counts differ")
	ErrInvalidSlotState = errors.New("frame slot in unexpected state")
	ErrNotCreated       = errors.New("swapchain has not been created")
)

// ResultError is a failed Vulkan call. Op names the call.
type ResultError struct {
	Op     string
	Result vk.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, ResultName(e.Result), int32(e.Result))
}

// checkResult returns nil for vk.Success and a *ResultError with a stack
// trace otherwise.
func checkResult(op string, res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	return errors.WithStackDepth(&ResultError{Op: op, Result: res}, 1)
}

// IsFatal reports whether err must stop the frame loop. Only staleness of the
// swapchain can be recovered from.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrOutOfDate)
}

// ResultOf extracts the Vulkan result code carried by err.
func ResultOf(err error) (vk.Result, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result, true
	}
	return vk.Success, false
}

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
}

// ResultName returns the symbolic name of res, as printed by the Vulkan
// headers.
func ResultName(res vk.Result) string {
	if name, ok := resultNames[res]; ok {
		return name
	}
	return "VK_RESULT_UNKNOWN"
}
