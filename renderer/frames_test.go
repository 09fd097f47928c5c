package renderer

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

var noCommands vk.CommandBuffer

var _ = Describe("FrameSynchronizer", func() {
	const slots = 3

	var (
		device    *fakeSyncDevice
		sync      *FrameSynchronizer
		recreates int
		failNext  error
	)

	// recreate behaves like the renderer: it rebuilds the slots.
	recreate := func() error {
		recreates++
		if failNext != nil {
			return failNext
		}
		device.nextImage = 0
		return sync.Reset(slots)
	}

	drawFrame := func() (uint32, error) {
		index, err := sync.AcquireNextImage()
		if err != nil {
			return 0, err
		}
		if err := sync.SubmitAsync(noCommands, index); err != nil {
			return 0, err
		}
		return index, sync.Present(index)
	}

	BeforeEach(func() {
		device = &fakeSyncDevice{images: slots}
		recreates = 0
		failNext = nil
		sync = NewFrameSynchronizer(device, fakeSwapchainSource{}, recreate, SyncConfig{}, logging.Discard())
		Expect(sync.Reset(slots)).To(Succeed())
	})

	Describe("Reset", func() {
		It("creates two semaphores and a fence per slot", func() {
			Expect(sync.SlotCount()).To(Equal(slots))
			Expect(device.semaphores).To(Equal(2 * slots))
			Expect(device.fences).To(Equal(slots))
			for i := 0; i < slots; i++ {
				Expect(sync.SlotState(i)).To(Equal(SlotIdle))
			}
		})

		It("releases the previous slots", func() {
			Expect(sync.Reset(2)).To(Succeed())
			Expect(sync.SlotCount()).To(Equal(2))
			Expect(device.semaphores).To(Equal(4))
			Expect(device.fences).To(Equal(2))
		})

		It("rejects an empty slot count", func() {
			Expect(sync.Reset(0)).NotTo(Succeed())
			Expect(sync.SlotCount()).To(BeZero())
			Expect(device.semaphores).To(BeZero())
		})

		It("cleans up after a failed fence", func() {
			device.failFence = true
			Expect(sync.Reset(slots)).To(MatchError(ContainSubstring("frame slot 0")))
			Expect(device.semaphores).To(BeZero())
			Expect(device.fences).To(BeZero())
		})
	})

	Describe("a frame", func() {
		It("waits, acquires, resets, submits and presents in order", func() {
			_, err := drawFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(device.calls).To(Equal([]string{"wait", "acquire", "reset", "submit", "present"}))
		})

		It("cycles through the slots modulo the slot count", func() {
			var frames []int
			var images []uint32
			for i := 0; i < 2*slots+1; i++ {
				frames = append(frames, sync.CurrentFrame())
				index, err := drawFrame()
				Expect(err).NotTo(HaveOccurred())
				images = append(images, index)
			}
			Expect(frames).To(Equal([]int{0, 1, 2, 0, 1, 2, 0}))
			Expect(images).To(Equal([]uint32{0, 1, 2, 0, 1, 2, 0}))
			Expect(sync.CurrentFrame()).To(Equal(1))
		})

		It("moves the slot through its states", func() {
			index, err := sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			Expect(sync.SlotState(0)).To(Equal(SlotAcquiring))

			Expect(sync.SubmitAsync(noCommands, index)).To(Succeed())
			Expect(sync.SlotState(0)).To(Equal(SlotSubmitted))

			Expect(sync.Present(index)).To(Succeed())
			Expect(sync.SlotState(0)).To(Equal(SlotIdle))
		})

		It("treats a suboptimal acquire as success", func() {
			device.acquireResults = []vk.Result{vk.Suboptimal}
			_, err := sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			Expect(recreates).To(BeZero())
		})
	})

	Describe("out of order calls", func() {
		It("refuses to submit before acquiring", func() {
			err := sync.SubmitAsync(noCommands, 0)
			Expect(errors.Is(err, ErrInvalidSlotState)).To(BeTrue())
			Expect(device.submits).To(BeZero())
		})

		It("refuses to present before submitting", func() {
			index, err := sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			err = sync.Present(index)
			Expect(errors.Is(err, ErrInvalidSlotState)).To(BeTrue())
			Expect(device.presents).To(BeZero())
		})

		It("refuses to acquire twice", func() {
			_, err := sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			_, err = sync.AcquireNextImage()
			Expect(errors.Is(err, ErrInvalidSlotState)).To(BeTrue())
		})

		It("refuses to work without slots", func() {
			sync.Destroy()
			_, err := sync.AcquireNextImage()
			Expect(errors.Is(err, ErrInvalidSlotState)).To(BeTrue())
		})

		It("refuses an image index beyond the slots", func() {
			device.images = slots + 1
			device.nextImage = slots
			_, err := sync.AcquireNextImage()
			Expect(errors.Is(err, ErrCountMismatch)).To(BeTrue())
			Expect(sync.SlotState(0)).To(Equal(SlotIdle))
			Expect(device.resets).To(BeZero())
		})
	})

	Describe("an out of date swapchain on acquire", func() {
		BeforeEach(func() {
			device.acquireResults = []vk.Result{vk.ErrorOutOfDate}
		})

		It("recreates exactly once and retries without waiting again", func() {
			index, err := sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			Expect(index).To(BeEquivalentTo(0))

			Expect(recreates).To(Equal(1))
			Expect(device.waits).To(Equal(1))
			Expect(device.acquires).To(Equal(2))
			Expect(device.resets).To(Equal(1))
			Expect(device.calls).To(Equal([]string{"wait", "acquire", "acquire", "reset"}))
		})

		It("leaves the fence alone when recreation fails", func() {
			failNext = errors.New("surface lost")
			_, err := sync.AcquireNextImage()
			Expect(err).To(MatchError(ContainSubstring("surface lost")))
			Expect(device.resets).To(BeZero())
			Expect(sync.SlotState(0)).To(Equal(SlotIdle))
		})

		It("is reported when there is nothing to recreate with", func() {
			sync = NewFrameSynchronizer(device, fakeSwapchainSource{}, nil, SyncConfig{}, logging.Discard())
			Expect(sync.Reset(slots)).To(Succeed())

			_, err := sync.AcquireNextImage()
			Expect(errors.Is(err, ErrOutOfDate)).To(BeTrue())
			Expect(IsFatal(err)).To(BeFalse())
		})
	})

	Describe("timeouts", func() {
		BeforeEach(func() {
			sync = NewFrameSynchronizer(device, fakeSwapchainSource{}, recreate,
				SyncConfig{FenceTimeout: time.Second}, logging.Discard())
			Expect(sync.Reset(slots)).To(Succeed())
		})

		It("fails when the fence does not signal in time", func() {
			device.waitResults = []vk.Result{vk.Timeout}
			_, err := sync.AcquireNextImage()
			Expect(errors.Is(err, ErrFenceTimeout)).To(BeTrue())
			Expect(IsFatal(err)).To(BeTrue())
			Expect(device.acquires).To(BeZero())
		})

		It("fails when no image becomes available in time", func() {
			device.acquireResults = []vk.Result{vk.Timeout}
			_, err := sync.AcquireNextImage()
			Expect(errors.Is(err, ErrAcquireTimeout)).To(BeTrue())
			Expect(device.resets).To(BeZero())
		})

		It("waits forever without a configured timeout", func() {
			Expect(SyncConfig{}.timeout()).To(Equal(uint64(math.MaxUint64)))
			Expect(SyncConfig{FenceTimeout: time.Millisecond}.timeout()).To(Equal(uint64(time.Millisecond)))
		})
	})

	Describe("present", func() {
		var index uint32

		BeforeEach(func() {
			var err error
			index, err = sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			Expect(sync.SubmitAsync(noCommands, index)).To(Succeed())
		})

		It("recreates and drops the frame when out of date", func() {
			device.presentResults = []vk.Result{vk.ErrorOutOfDate}
			Expect(sync.Present(index)).To(Succeed())
			Expect(recreates).To(Equal(1))
			Expect(sync.CurrentFrame()).To(Equal(0))
		})

		It("recreates and drops the frame when suboptimal", func() {
			device.presentResults = []vk.Result{vk.Suboptimal}
			Expect(sync.Present(index)).To(Succeed())
			Expect(recreates).To(Equal(1))
			Expect(sync.CurrentFrame()).To(Equal(0))
		})

		It("recreates once after a resize notification", func() {
			sync.NotifyResized()
			Expect(sync.Present(index)).To(Succeed())
			Expect(recreates).To(Equal(1))
			Expect(sync.CurrentFrame()).To(Equal(0))

			_, err := drawFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(recreates).To(Equal(1))
			Expect(sync.CurrentFrame()).To(Equal(1))
		})

		It("reports other results as fatal", func() {
			device.presentResults = []vk.Result{vk.ErrorDeviceLost}
			err := sync.Present(index)
			Expect(IsFatal(err)).To(BeTrue())

			res, ok := ResultOf(err)
			Expect(ok).To(BeTrue())
			Expect(res).To(Equal(vk.ErrorDeviceLost))
			Expect(recreates).To(BeZero())
		})

		It("reports a lost device as fatal even with a resize pending", func() {
			sync.NotifyResized()
			device.presentResults = []vk.Result{vk.ErrorDeviceLost}
			err := sync.Present(index)
			Expect(err).To(HaveOccurred())
			Expect(IsFatal(err)).To(BeTrue())

			res, ok := ResultOf(err)
			Expect(ok).To(BeTrue())
			Expect(res).To(Equal(vk.ErrorDeviceLost))
			Expect(recreates).To(BeZero())
		})

		It("reports a lost surface as fatal even with a resize pending", func() {
			sync.NotifyResized()
			device.presentResults = []vk.Result{vk.ErrorSurfaceLost}
			err := sync.Present(index)
			Expect(IsFatal(err)).To(BeTrue())
			Expect(recreates).To(BeZero())
		})
	})

	Describe("present without a recreate function", func() {
		var index uint32

		BeforeEach(func() {
			sync = NewFrameSynchronizer(device, fakeSwapchainSource{}, nil, SyncConfig{}, logging.Discard())
			Expect(sync.Reset(slots)).To(Succeed())

			var err error
			index, err = sync.AcquireNextImage()
			Expect(err).NotTo(HaveOccurred())
			Expect(sync.SubmitAsync(noCommands, index)).To(Succeed())
		})

		It("moves on after a presented frame with a resize pending", func() {
			sync.NotifyResized()
			err := sync.Present(index)
			Expect(errors.Is(err, ErrOutOfDate)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("window resized")))
			Expect(IsFatal(err)).To(BeFalse())

			Expect(device.presents).To(Equal(1))
			Expect(sync.CurrentFrame()).To(Equal(1))
			Expect(sync.SlotState(0)).To(Equal(SlotIdle))

			_, err = drawFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(sync.CurrentFrame()).To(Equal(2))
		})

		It("reports a stale swapchain with the present result", func() {
			device.presentResults = []vk.Result{vk.ErrorOutOfDate}
			err := sync.Present(index)
			Expect(errors.Is(err, ErrOutOfDate)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("VK_ERROR_OUT_OF_DATE_KHR")))
			Expect(sync.CurrentFrame()).To(Equal(1))
		})
	})

	It("reports a failed submission with its result", func() {
		device.submitResult = vk.ErrorOutOfDeviceMemory
		index, err := sync.AcquireNextImage()
		Expect(err).NotTo(HaveOccurred())

		err = sync.SubmitAsync(noCommands, index)
		res, ok := ResultOf(err)
		Expect(ok).To(BeTrue())
		Expect(res).To(Equal(vk.ErrorOutOfDeviceMemory))
		Expect(sync.SlotState(0)).To(Equal(SlotAcquiring))
	})

	It("reports a lost device while acquiring", func() {
		device.acquireResults = []vk.Result{vk.ErrorDeviceLost}
		_, err := sync.AcquireNextImage()

		var re *ResultError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Op).To(Equal("vkAcquireNextImageKHR"))
		Expect(sync.SlotState(0)).To(Equal(SlotIdle))
	})
})
