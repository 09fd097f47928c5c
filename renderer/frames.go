package renderer

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

// SyncDevice is the part of the device used to pace frames.
type SyncDevice interface {
	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(sem vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)

	// WaitForFence returns vk.Success or vk.Timeout when timeout nanoseconds
	// passed first.
	WaitForFence(fence vk.Fence, timeout uint64) vk.Result
	ResetFence(fence vk.Fence) error

	AcquireNextImage(swapchain vk.Swapchain, timeout uint64, signal vk.Semaphore) (uint32, vk.Result)
	Submit(cmd vk.CommandBuffer, wait, signal vk.Semaphore, fence vk.Fence) vk.Result
	Present(swapchain vk.Swapchain, imageIndex uint32, wait vk.Semaphore) vk.Result
}

// SwapchainSource returns the swapchain images are acquired from. The handle
// changes whenever the swapchain is recreated.
type SwapchainSource interface {
	Handle() vk.Swapchain
}

// SyncConfig configures the frame synchronizer.
type SyncConfig struct {
	// FenceTimeout bounds the CPU wait for a frame slot and for image
	// acquisition. Zero waits forever.
	FenceTimeout time.Duration
}

func (c SyncConfig) timeout() uint64 {
	if c.FenceTimeout <= 0 {
		return math.MaxUint64
	}
	return uint64(c.FenceTimeout.Nanoseconds())
}

// SlotState is the position of a frame slot in the acquire, submit and
// present cycle.
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotAcquiring
	SlotSubmitted
	SlotPresenting
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotAcquiring:
		return "acquiring"
	case SlotSubmitted:
		return "submitted"
	case SlotPresenting:
		return "presenting"
	default:
		return "unknown"
	}
}

// FrameSlot holds the synchronization objects of one frame in flight.
type FrameSlot struct {
	// ImageAvailable is signalled by the presentation engine when the
	// acquired image may be rendered to.
	ImageAvailable vk.Semaphore

	// RenderFinished is signalled when rendering into the image with the
	// same index as this slot is done.
	RenderFinished vk.Semaphore

	// InFlight is signalled when the GPU finished the slot's last submission.
	InFlight vk.Fence

	State SlotState
}

// FrameSynchronizer sequences image acquisition, submission and presentation
// for N frames in flight, N being the number of swapchain images.
type FrameSynchronizer struct {
	device    SyncDevice
	swapchain SwapchainSource
	recreate  func() error
	cfg       SyncConfig
	log       *logging.Logger

	slots   []FrameSlot
	current int
	resized bool
}

// NewFrameSynchronizer returns a synchronizer without any slots. recreate is
// called whenever the swapchain turns out to be stale. It is expected to
// rebuild the swapchain and everything sized by it, including this
// synchronizer's slots through Reset. With a nil recreate stale swapchains
// are reported to the caller as ErrOutOfDate instead.
func NewFrameSynchronizer(
	device SyncDevice,
	swapchain SwapchainSource,
	recreate func() error,
	cfg SyncConfig,
	log *logging.Logger,
) *FrameSynchronizer {
	return &FrameSynchronizer{
		device:    device,
		swapchain: swapchain,
		recreate:  recreate,
		cfg:       cfg,
		log:       log,
	}
}

// Reset replaces all slots with n fresh ones and starts over at slot 0.
// Fences are created signalled so the first wait on each returns at once.
func (f *FrameSynchronizer) Reset(n int) error {
	f.Destroy()

	if n <= 0 {
		return errors.Newf("cannot create %d frame slots", n)
	}

	slots := make([]FrameSlot, 0, n)
	for i := 0; i < n; i++ {
		slot, err := f.createSlot()
		if err != nil {
			f.slots = slots
			f.Destroy()
			return errors.Wrapf(err, "creating frame slot %d", i)
		}
		slots = append(slots, slot)
	}

	f.slots = slots
	f.current = 0
	f.resized = false
	f.log.Tracef("created %d frame slots", n)
	return nil
}

func (f *FrameSynchronizer) createSlot() (FrameSlot, error) {
	imageAvailable, err := f.device.CreateSemaphore()
	if err != nil {
		return FrameSlot{}, errors.Wrap(err, "image available semaphore")
	}

	renderFinished, err := f.device.CreateSemaphore()
	if err != nil {
		f.device.DestroySemaphore(imageAvailable)
		return FrameSlot{}, errors.Wrap(err, "render finished semaphore")
	}

	fence, err := f.device.CreateFence(true)
	if err != nil {
		f.device.DestroySemaphore(imageAvailable)
		f.device.DestroySemaphore(renderFinished)
		return FrameSlot{}, errors.Wrap(err, "in flight fence")
	}

	return FrameSlot{
		ImageAvailable: imageAvailable,
		RenderFinished: renderFinished,
		InFlight:       fence,
	}, nil
}

// AcquireNextImage waits until the current slot is free and acquires the
// next image to render to. A stale swapchain is recreated and the acquisition
// retried. The retry does not wait on the slot fence again.
func (f *FrameSynchronizer) AcquireNextImage() (uint32, error) {
	timeout := f.cfg.timeout()
	waitFence := true

	for {
		if len(f.slots) == 0 {
			return 0, errors.Wrap(ErrInvalidSlotState, "no frame slots")
		}

		slot := &f.slots[f.current]
		if slot.State != SlotIdle {
			return 0, errors.Wrapf(ErrInvalidSlotState,
				"acquiring with slot %d %s", f.current, slot.State)
		}

		if waitFence {
			switch res := f.device.WaitForFence(slot.InFlight, timeout); res {
			case vk.Success:
			case vk.Timeout:
				return 0, errors.Wrapf(ErrFenceTimeout, "slot %d after %s", f.current, f.cfg.FenceTimeout)
			default:
				return 0, checkResult("vkWaitForFences", res)
			}
		}

		slot.State = SlotAcquiring
		imageIndex, res := f.device.AcquireNextImage(f.swapchain.Handle(), timeout, slot.ImageAvailable)

		switch res {
		case vk.Success, vk.Suboptimal:
		case vk.ErrorOutOfDate:
			slot.State = SlotIdle
			if f.recreate == nil {
				return 0, errors.WithStack(ErrOutOfDate)
			}
			f.log.Infof("swapchain out of date while acquiring an image")
			if err := f.recreate(); err != nil {
				return 0, errors.Wrap(err, "recreating stale swapchain")
			}
			waitFence = false
			continue
		case vk.Timeout, vk.NotReady:
			slot.State = SlotIdle
			return 0, errors.Wrapf(ErrAcquireTimeout, "slot %d", f.current)
		default:
			slot.State = SlotIdle
			return 0, checkResult("vkAcquireNextImageKHR", res)
		}

		if int(imageIndex) >= len(f.slots) {
			slot.State = SlotIdle
			return 0, errors.Wrapf(ErrCountMismatch,
				"acquired image %d with %d frame slots", imageIndex, len(f.slots))
		}

		// Only reset the fence once work is certain to be submitted with it.
		if err := f.device.ResetFence(slot.InFlight); err != nil {
			return 0, errors.Wrap(err, "resetting in flight fence")
		}

		return imageIndex, nil
	}
}

// SubmitAsync submits cmd, which renders into imageIndex. Execution of the
// colour attachment stage waits for the image to be available; completion
// signals the image's render finished semaphore and the slot fence.
func (f *FrameSynchronizer) SubmitAsync(cmd vk.CommandBuffer, imageIndex uint32) error {
	slot, err := f.currentSlot(SlotAcquiring)
	if err != nil {
		return err
	}
	if int(imageIndex) >= len(f.slots) {
		return errors.Wrapf(ErrCountMismatch, "image %d with %d frame slots", imageIndex, len(f.slots))
	}

	res := f.device.Submit(cmd, slot.ImageAvailable, f.slots[imageIndex].RenderFinished, slot.InFlight)
	if err := checkResult("vkQueueSubmit", res); err != nil {
		return err
	}

	slot.State = SlotSubmitted
	return nil
}

// Present queues imageIndex for presentation once rendering into it has
// finished. If the swapchain is stale, suboptimal or the window was resized
// it is recreated and the frame is dropped without advancing to the next
// slot. Results other than those are fatal, also with a resize pending.
//
// Without a recreate function a stale swapchain or a pending resize is
// reported as ErrOutOfDate. The frame was submitted in that case, so the
// synchronizer still moves on to the next slot.
func (f *FrameSynchronizer) Present(imageIndex uint32) error {
	slot, err := f.currentSlot(SlotSubmitted)
	if err != nil {
		return err
	}
	if int(imageIndex) >= len(f.slots) {
		return errors.Wrapf(ErrCountMismatch, "image %d with %d frame slots", imageIndex, len(f.slots))
	}

	slot.State = SlotPresenting
	res := f.device.Present(f.swapchain.Handle(), imageIndex, f.slots[imageIndex].RenderFinished)
	slot.State = SlotIdle

	stale := res == vk.ErrorOutOfDate || res == vk.Suboptimal
	if !stale {
		if err := checkResult("vkQueuePresentKHR", res); err != nil {
			return err
		}
	}

	resized := f.resized
	f.resized = false
	if !stale && !resized {
		f.advance()
		return nil
	}

	if stale {
		f.log.Infof("present returned %s, recreating swapchain", ResultName(res))
	} else {
		f.log.Tracef("window resized, recreating swapchain")
	}
	if f.recreate == nil {
		f.advance()
		if !stale {
			return errors.Wrap(ErrOutOfDate, "window resized")
		}
		return errors.Wrapf(ErrOutOfDate, "present returned %s", ResultName(res))
	}
	if err := f.recreate(); err != nil {
		return errors.Wrap(err, "recreating swapchain after present")
	}
	return nil
}

func (f *FrameSynchronizer) advance() {
	f.current = (f.current + 1) % len(f.slots)
}

// NotifyResized makes the next Present recreate the swapchain. Not every
// platform reports a resize through an out of date result.
func (f *FrameSynchronizer) NotifyResized() {
	f.resized = true
}

func (f *FrameSynchronizer) currentSlot(want SlotState) (*FrameSlot, error) {
	if len(f.slots) == 0 {
		return nil, errors.Wrap(ErrInvalidSlotState, "no frame slots")
	}
	slot := &f.slots[f.current]
	if slot.State != want {
		return nil, errors.Wrapf(ErrInvalidSlotState,
			"slot %d is %s, expected %s", f.current, slot.State, want)
	}
	return slot, nil
}

// Destroy releases all slots. The device must be idle.
func (f *FrameSynchronizer) Destroy() {
	for _, slot := range f.slots {
		f.device.DestroySemaphore(slot.ImageAvailable)
		f.device.DestroySemaphore(slot.RenderFinished)
		f.device.DestroyFence(slot.InFlight)
	}
	f.slots = nil
	f.current = 0
}

// CurrentFrame returns the index of the slot used by the next frame.
func (f *FrameSynchronizer) CurrentFrame() int {
	return f.current
}

// SlotCount returns the number of frames in flight.
func (f *FrameSynchronizer) SlotCount() int {
	return len(f.slots)
}

// SlotState returns the state of slot i.
func (f *FrameSynchronizer) SlotState(i int) SlotState {
	return f.slots[i].State
}
