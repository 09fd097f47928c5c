package renderer

import (
	"cmp"
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
)

// Window is the part of the window system the swapchain needs while it is
// being rebuilt.
type Window interface {
	// FramebufferSize returns the drawable size in pixels. It is 0x0 while the
	// window is minimized.
	FramebufferSize() (width, height int)

	// WaitEvents blocks until at least one window event has been processed.
	WaitEvents()
}

// SwapchainDevice creates and destroys the presentable image chain.
type SwapchainDevice interface {
	SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error)
	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	CreateImageView(image vk.Image, format vk.Format) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	DestroySwapchain(swapchain vk.Swapchain)
	WaitIdle() error
}

// SwapchainConfig holds the preferences used when choosing swapchain
// parameters.
type SwapchainConfig struct {
	PreferredFormat      vk.SurfaceFormat
	PreferredPresentMode vk.PresentMode
}

// DefaultSwapchainConfig prefers 8 bit sRGB BGRA and mailbox presentation.
func DefaultSwapchainConfig() SwapchainConfig {
	return SwapchainConfig{
		PreferredFormat: vk.SurfaceFormat{
			Format:     vk.FormatB8g8r8a8Srgb,
			ColorSpace: vk.ColorSpaceSrgbNonlinear,
		},
		PreferredPresentMode: vk.PresentModeMailbox,
	}
}

// SwapchainState describes one generation of the swapchain. A new value is
// built on every recreation; it is never modified in place.
type SwapchainState struct {
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Images      []vk.Image
	Views       []vk.ImageView
}

// Swapchain owns the presentable images of a surface and recreates them when
// the surface changes.
type Swapchain struct {
	device      SwapchainDevice
	window      Window
	surface     vk.Surface
	info        *PhysicalDeviceInfo
	queueFamily uint32
	cfg         SwapchainConfig
	log         *logging.Logger

	state *SwapchainState
}

// NewSwapchain returns a Swapchain for surface. Nothing is created until
// Create is called.
func NewSwapchain(
	device SwapchainDevice,
	window Window,
	surface vk.Surface,
	info *PhysicalDeviceInfo,
	queueFamily uint32,
	cfg SwapchainConfig,
	log *logging.Logger,
) *Swapchain {
	return &Swapchain{
		device:      device,
		window:      window,
		surface:     surface,
		info:        info,
		queueFamily: queueFamily,
		cfg:         cfg,
		log:         log,
	}
}

// Create builds the swapchain and one image view per image. On failure
// everything created so far is released.
func (s *Swapchain) Create() error {
	if s.state != nil {
		return errors.New("swapchain already created")
	}
	if len(s.info.SurfaceFormats) == 0 {
		return errors.Wrapf(ErrNoSurfaceFormats, "device %s", s.info.Name)
	}
	if len(s.info.PresentModes) == 0 {
		return errors.Wrapf(ErrNoPresentModes, "device %s", s.info.Name)
	}

	caps, err := s.device.SurfaceCapabilities(s.surface)
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}

	surfaceFormat, ok := ChooseSurfaceFormat(s.info.SurfaceFormats, s.cfg.PreferredFormat)
	if !ok {
		s.log.Warnf("preferred surface format %d/%d not supported, using %d/%d",
			s.cfg.PreferredFormat.Format, s.cfg.PreferredFormat.ColorSpace,
			surfaceFormat.Format, surfaceFormat.ColorSpace)
	}
	presentMode := ChoosePresentMode(s.info.PresentModes, s.cfg.PreferredPresentMode)
	width, height := s.window.FramebufferSize()
	extent := ChooseExtent(caps, width, height)
	imageCount := ChooseNumImages(caps)

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode:      vk.SharingModeExclusive,
		QueueFamilyIndexCount: 1,
		PQueueFamilyIndices:   []uint32{s.queueFamily},
		PreTransform:          caps.CurrentTransform,
		CompositeAlpha:        vk.CompositeAlphaOpaqueBit,
		PresentMode:           presentMode,
		Clipped:               vk.True,
		OldSwapchain:          vk.NullSwapchain,
	}

	handle, err := s.device.CreateSwapchain(&createInfo)
	if err != nil {
		return errors.Wrap(err, "creating swapchain")
	}

	images, err := s.device.SwapchainImages(handle)
	if err != nil {
		s.device.DestroySwapchain(handle)
		return errors.Wrap(err, "getting swapchain images")
	}
	if uint32(len(images)) != imageCount {
		s.log.Warnf("requested %d swapchain images, driver created %d", imageCount, len(images))
	}

	views := make([]vk.ImageView, 0, len(images))
	for i, image := range images {
		view, err := s.device.CreateImageView(image, surfaceFormat.Format)
		if err != nil {
			for _, created := range views {
				s.device.DestroyImageView(created)
			}
			s.device.DestroySwapchain(handle)
			return errors.Wrapf(err, "creating image view %d", i)
		}
		views = append(views, view)
	}

	s.state = &SwapchainState{
		Handle:      handle,
		Extent:      extent,
		Format:      surfaceFormat,
		PresentMode: presentMode,
		Images:      images,
		Views:       views,
	}

	s.log.Infof("created swapchain: %d images, %dx%d, present mode %s",
		len(images), extent.Width, extent.Height, PresentModeName(presentMode))
	return nil
}

// Recreate replaces the swapchain with one matching the current window size.
// While the window is minimized it blocks, processing window events, until
// it has a non-zero size again.
func (s *Swapchain) Recreate() error {
	if s.state == nil {
		return errors.WithStack(ErrNotCreated)
	}

	width, height := s.window.FramebufferSize()
	for width == 0 || height == 0 {
		s.window.WaitEvents()
		width, height = s.window.FramebufferSize()
	}

	if err := s.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle")
	}

	s.log.Tracef("recreating swapchain for %dx%d framebuffer", width, height)
	s.Destroy()

	if err := s.Create(); err != nil {
		return errors.Wrap(err, "recreating swapchain")
	}
	return nil
}

// Destroy releases the image views and then the swapchain. It is safe to call
// more than once.
func (s *Swapchain) Destroy() {
	if s.state == nil {
		return
	}

	for _, view := range s.state.Views {
		s.device.DestroyImageView(view)
	}
	s.device.DestroySwapchain(s.state.Handle)
	s.state = nil
}

// State returns the current generation, or nil before Create.
func (s *Swapchain) State() *SwapchainState {
	return s.state
}

// Handle returns the current swapchain handle.
func (s *Swapchain) Handle() vk.Swapchain {
	if s.state == nil {
		return vk.NullSwapchain
	}
	return s.state.Handle
}

// ImageCount returns the number of presentable images.
func (s *Swapchain) ImageCount() int {
	if s.state == nil {
		return 0
	}
	return len(s.state.Images)
}

// Extent returns the size of the images.
func (s *Swapchain) Extent() vk.Extent2D {
	if s.state == nil {
		return vk.Extent2D{}
	}
	return s.state.Extent
}

// Format returns the pixel format of the images.
func (s *Swapchain) Format() vk.Format {
	if s.state == nil {
		return vk.FormatUndefined
	}
	return s.state.Format.Format
}

// ChooseNumImages asks for one image more than the minimum so the driver
// never has to be waited on, without exceeding the maximum. A maximum of zero
// means there is no limit.
func ChooseNumImages(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChooseSurfaceFormat returns preferred if formats contains it. Otherwise it
// returns the first entry and false. formats must not be empty.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat, preferred vk.SurfaceFormat) (vk.SurfaceFormat, bool) {
	for _, format := range formats {
		if format.Format == preferred.Format && format.ColorSpace == preferred.ColorSpace {
			return format, true
		}
	}
	return formats[0], false
}

// ChoosePresentMode returns preferred if it is supported and FIFO, which every
// driver has to support, otherwise.
func ChoosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent returns the extent dictated by the surface or, when the surface
// lets the application decide, the framebuffer size clamped to the allowed
// range.
func ChooseExtent(caps vk.SurfaceCapabilities, width, height int) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}

	return vk.Extent2D{
		Width:  clamp(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}
