// Command fastfileviewer shows a mesh in a window, rendered with Vulkan.
package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/xlab/closer"

	"fastfileviewer/logging"
)

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	cfg.RegisterFlags(flag.CommandLine)
}

var cfg = DefaultConfig()

func main() {
	flag.Parse()
	defer closer.Close()

	log := logging.New(os.Stderr, cfg.Debug)
	closer.Bind(func() {
		log.Tracef("exiting")
	})

	if err := cfg.Validate(); err != nil {
		flag.Usage()
		closer.Fatalln(err)
	}

	app := NewFileViewerApp(cfg, log)
	if err := app.Run(); err != nil {
		log.Errorf("%+v", err)
		closer.Fatalln("fastfileviewer failed:", err)
	}
}
