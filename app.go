package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/logging"
	"fastfileviewer/models"
	"fastfileviewer/renderer"
)

// FileViewerApp shows one mesh in a resizable window until it is closed.
type FileViewerApp struct {
	cfg Config
	log *logging.Logger

	window   *window
	instance *instance
	device   *renderer.Device
	renderer *renderer.Renderer
}

// NewFileViewerApp returns an app for cfg. Nothing is created before Run.
func NewFileViewerApp(cfg Config, log *logging.Logger) *FileViewerApp {
	return &FileViewerApp{cfg: cfg, log: log}
}

// Run opens the window, renders until it is closed and releases everything
// it created, also when it fails half way.
func (a *FileViewerApp) Run() error {
	if err := a.initWindow(); err != nil {
		return errors.Wrap(err, "initWindow")
	}
	defer a.window.destroy()

	err := a.initVulkan()
	defer a.cleanup()
	if err != nil {
		return errors.Wrap(err, "initVulkan")
	}

	if err := a.mainLoop(); err != nil {
		return errors.Wrap(err, "mainLoop")
	}
	return nil
}

func (a *FileViewerApp) initWindow() error {
	w, err := newWindow(a.cfg)
	if err != nil {
		return err
	}
	a.window = w
	return nil
}

func (a *FileViewerApp) initVulkan() error {
	inst, err := newInstance(a.window, a.cfg.Title, a.cfg.Debug, a.log)
	if err != nil {
		return errors.Wrap(err, "createInstance")
	}
	a.instance = inst

	if err := a.instance.createSurface(a.window); err != nil {
		return errors.Wrap(err, "createSurface")
	}

	devices, err := renderer.EnumeratePhysicalDevices(a.instance.handle, a.instance.surface)
	if err != nil {
		return errors.Wrap(err, "enumeratePhysicalDevices")
	}
	selector := renderer.NewDeviceSelector(devices, a.log)
	sel, err := selector.SelectDevice(vk.QueueFlags(vk.QueueGraphicsBit), true)
	if err != nil {
		return errors.Wrap(err, "pickPhysicalDevice")
	}
	a.log.Tracef("\n%s", renderer.Report(sel.Device))

	if a.device, err = renderer.OpenDevice(sel, a.instance.layers); err != nil {
		return errors.Wrap(err, "createLogicalDevice")
	}

	mesh, err := models.Load(a.cfg.Model)
	if err != nil {
		return errors.Wrap(err, "loadModel")
	}

	a.renderer, err = renderer.New(renderer.Options{
		Device:    a.device,
		Window:    a.window,
		Surface:   a.instance.surface,
		Mesh:      mesh,
		Assets:    os.DirFS(a.cfg.Assets),
		Swapchain: a.cfg.Swapchain(),
		Sync:      a.cfg.Sync(),
		Log:       a.log,
	})
	if err != nil {
		return errors.Wrap(err, "createRenderer")
	}

	a.window.onResize(a.renderer.NotifyResized)
	return nil
}

func (a *FileViewerApp) mainLoop() error {
	a.log.Infof("showing %q, close the window to quit", a.cfg.Model)

	for !a.window.ShouldClose() {
		if err := a.renderer.DrawFrame(); err != nil {
			return errors.Wrap(err, "drawing a frame")
		}
		glfw.PollEvents()
	}

	return a.renderer.WaitIdle()
}

// cleanup releases the Vulkan objects in reverse creation order. It copes
// with initVulkan having stopped anywhere.
func (a *FileViewerApp) cleanup() {
	if a.renderer != nil {
		a.renderer.Destroy()
		a.renderer = nil
	}
	if a.device != nil {
		a.device.Destroy()
		a.device = nil
	}
	if a.instance != nil {
		a.instance.destroy()
		a.instance = nil
	}
}
