package main

import (
	"flag"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/vulkan-go/vulkan"

	"fastfileviewer/models"
	"fastfileviewer/renderer"
	"fastfileviewer/shaders"
)

const title = "Fast File Viewer"

// Config is everything the viewer can be told on the command line.
type Config struct {
	Debug        bool
	Width        int
	Height       int
	Title        string
	Model        string
	Assets       string
	PresentMode  string
	FenceTimeout time.Duration
}

// DefaultConfig returns the settings used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Width:       1024,
		Height:      768,
		Title:       title,
		Model:       "triangle",
		Assets:      shaders.DefaultAssets,
		PresentMode: "mailbox",
	}
}

// RegisterFlags binds the fields of c to flags in fs. The current values
// are the defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable Vulkan validation layers and trace logging")
	fs.IntVar(&c.Width, "width", c.Width, "Initial window width in screen coordinates")
	fs.IntVar(&c.Height, "height", c.Height, "Initial window height in screen coordinates")
	fs.StringVar(&c.Title, "title", c.Title, "Window title")
	fs.StringVar(&c.Model, "model", c.Model,
		"Mesh to show, one of: "+strings.Join(models.Names(), ", "))
	fs.StringVar(&c.Assets, "assets", c.Assets, "Directory with the compiled SPIR-V shaders")
	fs.StringVar(&c.PresentMode, "present-mode", c.PresentMode,
		"Preferred present mode: mailbox, fifo, immediate or fifo-relaxed")
	fs.DurationVar(&c.FenceTimeout, "fence-timeout", c.FenceTimeout,
		"Give up when a frame does not finish within this time, 0 waits forever")
}

// Validate reports the first setting the viewer cannot run with.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("invalid window size %dx%d", c.Width, c.Height)
	}
	if !slices.Contains(models.Names(), c.Model) {
		return errors.Newf("unknown model %q, expected one of %s",
			c.Model, strings.Join(models.Names(), ", "))
	}
	if c.Assets == "" {
		return errors.New("no shader asset directory given")
	}
	if _, err := parsePresentMode(c.PresentMode); err != nil {
		return err
	}
	if c.FenceTimeout < 0 {
		return errors.Newf("negative fence timeout %s", c.FenceTimeout)
	}
	return nil
}

// Swapchain returns the swapchain preferences. c must be valid.
func (c Config) Swapchain() renderer.SwapchainConfig {
	cfg := renderer.DefaultSwapchainConfig()
	if mode, err := parsePresentMode(c.PresentMode); err == nil {
		cfg.PreferredPresentMode = mode
	}
	return cfg
}

// Sync returns the frame pacing settings.
func (c Config) Sync() renderer.SyncConfig {
	return renderer.SyncConfig{FenceTimeout: c.FenceTimeout}
}

var presentModes = []vk.PresentMode{
	vk.PresentModeMailbox,
	vk.PresentModeFifo,
	vk.PresentModeImmediate,
	vk.PresentModeFifoRelaxed,
}

func parsePresentMode(name string) (vk.PresentMode, error) {
	for _, mode := range presentModes {
		if renderer.PresentModeName(mode) == name {
			return mode, nil
		}
	}
	return vk.PresentModeFifo, errors.Newf("unknown present mode %q", name)
}
