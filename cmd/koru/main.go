// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/vkr"
)

func init() {
	runtime.LockOSThread()
}

var frameCounter int64

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	envFile      = flag.String("env", "", "Configuration file, .env in the working directory if empty")
)

func newWindow(cfg core.WindowConfiguration) (*sdl.Window, error) {
	return sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width),
		int32(cfg.Height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
}

func drawableExtent(window *sdl.Window) gfx.Extent2D {
	w, h := window.VulkanGetDrawableSize()
	return gfx.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func main() {
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	if err := run(); err != nil {
		log.WithError(err).Error("koru exited")
		os.Exit(1)
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
	}
}

func run() error {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return err
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return err
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer window.Destroy()

	instance, err := vkr.NewInstance(cfg.Instance, cfg.Window.Title, sdl.VulkanGetVkGetInstanceProcAddr(), window.VulkanGetInstanceExtensions())
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surfacePtr, err := window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return fmt.Errorf("sdl.VulkanCreateSurface(): %w", err)
	}
	surface := instance.SurfaceFromPointer(surfacePtr)
	defer instance.DestroySurface(surface)

	dev, err := openDevice(instance, surface, cfg.Device)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	allocator := vkr.NewMemoryAllocator(dev)
	defer allocator.Release()

	r, err := newRenderer(instance, dev, allocator, surface, cfg.Swapchain, drawableExtent(window))
	if err != nil {
		return err
	}
	defer r.Destroy()

	timeService := core.NewTime(cfg.Time)
	defer timeService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	programSync := sync.WaitGroup{}
	resized := make(chan gfx.Extent2D, 1)
	var renderErr error

	/* Frame counter loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.WithFields(log.Fields{
					"fps":       atomic.SwapInt64(&frameCounter, 0),
					"cgo_calls": runtime.NumCgoCall(),
				}).Debug("frame count")
			}
		}
	}(ctx, &programSync)

	/* Renderer loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		if err := r.Run(ctx, timeService, resized); err != nil {
			renderErr = err
			cancel()
		}
	}(ctx, &programSync)

	/* Event loop */
EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						cancel()
					}
				case *sdl.QuitEvent:
					cancel()
				case *sdl.WindowEvent:
					switch et.Event {
					case sdl.WINDOWEVENT_MINIMIZED:
						notifyResize(resized, gfx.Extent2D{})
					case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESTORED:
						notifyResize(resized, drawableExtent(window))
					}
				}
			}
		}
	}

	programSync.Wait()
	log.Info("event loop exited")
	return renderErr
}

// notifyResize replaces any extent the renderer has not picked up yet.
func notifyResize(resized chan gfx.Extent2D, extent gfx.Extent2D) {
	select {
	case <-resized:
	default:
	}
	resized <- extent
}

// openDevice creates a logical device on the most preferred physical
// device that can present to surface.
func openDevice(instance *vkr.Instance, surface gfx.Surface, cfg core.DeviceConfiguration) (*vkr.LogicalDevice, error) {
	features, err := device.ParseFeatures(cfg.Features)
	if err != nil {
		return nil, err
	}
	pds, err := instance.PhysicalDevices()
	if err != nil {
		return nil, err
	}
	candidates, err := device.SelectDevices(vkr.Devices(pds), device.Requirements{
		Extensions:    cfg.Extensions,
		Features:      features,
		MinAPIVersion: cfg.MinAPIVersion,
	})
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		families, err := device.ClassifyQueueFamilies(c.Device, surface)
		if err != nil {
			return nil, err
		}
		assignment, err := device.Resolve(families)
		if err != nil {
			log.WithError(err).WithField("device", c.Properties.Name).Debug("device dropped: queue families")
			continue
		}
		return vkr.NewLogicalDevice(c.Device.(*vkr.PhysicalDevice), assignment, families, cfg.Extensions, features)
	}
	return nil, device.ErrNoSuitableDevice
}
