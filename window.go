package main

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// window is a GLFW window without a client API, drawn to through a Vulkan
// surface. It implements renderer.Window.
type window struct {
	*glfw.Window
}

func newWindow(cfg Config) (*window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw.Init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	w, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "creating window")
	}
	return &window{Window: w}, nil
}

// FramebufferSize returns the drawable size in pixels, 0x0 while minimized.
func (w *window) FramebufferSize() (int, int) {
	return w.GetFramebufferSize()
}

// WaitEvents sleeps until the window system has something to report.
func (w *window) WaitEvents() {
	glfw.WaitEvents()
}

// onResize calls fn whenever the framebuffer changes size.
func (w *window) onResize(fn func()) {
	w.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		fn()
	})
}

func (w *window) destroy() {
	w.Destroy()
	glfw.Terminate()
}
