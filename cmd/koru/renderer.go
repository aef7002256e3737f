// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/swapchain"
	"github.com/devblok/vkpresent/vkr"
)

var (
	dusk = mgl32.Vec4{0.02, 0.02, 0.08, 1}
	dawn = mgl32.Vec4{0.85, 0.45, 0.25, 1}
)

// clearColor fades between dusk and dawn over time.
func clearColor(elapsed time.Duration) [4]float32 {
	s := mgl32.Clamp(float32(math.Sin(elapsed.Seconds())+1)/2, 0, 1)
	return [4]float32(dusk.Mul(1 - s).Add(dawn.Mul(s)))
}

// renderer presents a cleared swapchain image every frame. It is owned
// by the goroutine calling Run.
type renderer struct {
	device    *vkr.LogicalDevice
	target    swapchain.Target
	cfg       core.SwapchainConfiguration
	extent    gfx.Extent2D
	swapchain *swapchain.Swapchain
	frames    *vkr.FrameRecorder
	minimized bool
}

func newRenderer(instance *vkr.Instance, dev *vkr.LogicalDevice, allocator gfx.Allocator, surface gfx.Surface, cfg core.SwapchainConfiguration, extent gfx.Extent2D) (*renderer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = swapchain.DefaultTimeout
	}
	r := &renderer{
		device: dev,
		target: swapchain.Target{
			Instance:      instance,
			Physical:      dev.Physical(),
			Device:        dev,
			Surface:       surface,
			Allocator:     allocator,
			PresentFences: cfg.PresentFences && dev.IsExtensionEnabled(core.SwapchainMaintenance1Extension),
			Timeout:       timeout,
		},
		cfg:    cfg,
		extent: extent,
	}

	sc, err := swapchain.New(r.target, r.preferences(), 0)
	if err != nil {
		return nil, err
	}
	r.swapchain = sc

	if r.frames, err = vkr.NewFrameRecorder(dev, sc.FramesInFlight()); err != nil {
		sc.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *renderer) preferences() swapchain.Preferences {
	prefs := swapchain.PreferencesFrom(r.cfg, r.extent)
	prefs.Usage = gfx.ImageUsageTransferDstBit
	return prefs
}

// Run draws on every fps tick until ctx is done. Extents sent on
// resized trigger a recreate, a zero extent pauses drawing.
func (r *renderer) Run(ctx context.Context, t *core.Time, resized <-chan gfx.Extent2D) error {
	defer func() {
		if err := r.device.WaitIdle(); err != nil {
			log.WithError(err).Error("wait idle")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case extent := <-resized:
			r.extent = extent
			r.minimized = extent.Empty()
			if !r.minimized {
				if err := r.recreate(); err != nil {
					return err
				}
			}
		case <-t.FpsTicker().C:
			if r.minimized {
				continue
			}
			suboptimal, err := r.draw(t.Elapsed())
			if swapchain.NeedsRecreate(err) || (err == nil && suboptimal) {
				err = r.recreate()
			}
			if err != nil {
				return err
			}
			atomic.AddInt64(&frameCounter, 1)
		}
	}
}

// draw acquires, clears and presents one image. It reports whether
// the swapchain should be recreated.
func (r *renderer) draw(elapsed time.Duration) (bool, error) {
	frame := r.swapchain.CurrentFrame()
	if err := r.frames.Wait(frame); err != nil {
		return false, err
	}

	next, err := r.swapchain.AcquireNextImage()
	if err != nil {
		return false, err
	}

	image := r.swapchain.Images()[next.Index]
	if err := r.frames.Clear(frame, image, clearColor(elapsed), r.swapchain.ImageAvailable(), r.swapchain.ImageRendered()); err != nil {
		return false, err
	}

	if r.target.PresentFences {
		fence := r.swapchain.PresentComplete()
		if res := r.device.WaitForFences([]gfx.Fence{fence}, true, r.target.Timeout); res != gfx.Success {
			return false, res
		}
		if err := r.device.ResetFences(fence); err != nil {
			return false, err
		}
	}

	suboptimal, err := r.swapchain.Present(r.device.PresentQueue().Queue, r.target.PresentFences)
	return suboptimal || next.Suboptimal, err
}

// recreate rebuilds the swapchain at the current extent. A minimized
// surface pauses drawing instead of failing.
func (r *renderer) recreate() error {
	err := r.swapchain.Recreate(r.target, r.preferences())
	if errors.Is(err, swapchain.ErrSurfaceMinimized) {
		r.minimized = true
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	r.frames.Destroy()
	r.frames, err = vkr.NewFrameRecorder(r.device, r.swapchain.FramesInFlight())
	if err != nil {
		return err
	}

	extent := r.swapchain.Extent()
	log.WithFields(log.Fields{
		"width":  extent.Width,
		"height": extent.Height,
		"mode":   r.swapchain.PresentMode().String(),
	}).Info("swapchain recreated")
	return nil
}

// Destroy releases the swapchain and frame resources. Run must have
// returned.
func (r *renderer) Destroy() {
	if r.frames != nil {
		r.frames.Destroy()
	}
	if err := r.swapchain.Destroy(); err != nil {
		log.WithError(err).Error("destroy swapchain")
	}
}
