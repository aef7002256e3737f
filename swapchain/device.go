// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"time"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
)

// Physical is the physical device side a swapchain needs
type Physical interface {
	device.SampleCountQuerier

	SurfaceCapabilities(surface gfx.Surface) (gfx.SurfaceCapabilities, error)
	SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error)
	SurfacePresentModes(surface gfx.Surface) ([]gfx.PresentMode, error)

	// PresentModeCapabilities reports the capabilities specific to one
	// present mode. Only called when surface maintenance is enabled.
	PresentModeCapabilities(surface gfx.Surface, mode gfx.PresentMode) (gfx.SurfaceCapabilities, error)
}

// Device is the logical device side a swapchain needs
type Device interface {
	CreateSwapchain(info CreateInfo) (gfx.Swapchain, error)
	DestroySwapchain(swapchain gfx.Swapchain)
	SwapchainImages(swapchain gfx.Swapchain) ([]gfx.Image, error)

	CreateImageView(image gfx.Image, format gfx.Format) (gfx.ImageView, error)
	DestroyImageView(view gfx.ImageView)
	CreateImage(desc device.ImageDescriptor) (gfx.Image, gfx.MemoryRequirements, error)
	BindImageMemory(image gfx.Image, allocation gfx.Allocation) error
	DestroyImage(image gfx.Image)

	CreateSemaphore() (gfx.Semaphore, error)
	DestroySemaphore(semaphore gfx.Semaphore)
	CreateFence(signaled bool) (gfx.Fence, error)
	DestroyFence(fence gfx.Fence)

	AcquireNextImage(swapchain gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, gfx.Result)
	QueuePresent(queue gfx.Queue, info PresentInfo) gfx.Result
	WaitForFences(fences []gfx.Fence, waitAll bool, timeout time.Duration) gfx.Result
	WaitIdle() error
}

// CreateInfo holds the decisions made for a new swapchain
type CreateInfo struct {
	Surface        gfx.Surface
	MinImageCount  uint32
	Format         gfx.Format
	ColorSpace     gfx.ColorSpace
	Extent         gfx.Extent2D
	Usage          gfx.ImageUsageFlags
	PreTransform   gfx.SurfaceTransformFlags
	CompositeAlpha gfx.CompositeAlphaFlags
	PresentMode    gfx.PresentMode

	// PresentModes lists the modes the swapchain may switch between.
	// Set only when swapchain maintenance is enabled.
	PresentModes []gfx.PresentMode
	OldSwapchain gfx.Swapchain
}

// PresentInfo describes one present call. A zero Fence means no
// present fence is attached.
type PresentInfo struct {
	Wait      gfx.Semaphore
	Swapchain gfx.Swapchain
	Index     uint32
	Fence     gfx.Fence
}

// Target is what a swapchain is built against
type Target struct {
	Instance  core.ExtensionQuery
	Physical  Physical
	Device    Device
	Surface   gfx.Surface
	Allocator gfx.Allocator

	// PresentFences enables present fences and the present mode list,
	// which need swapchain maintenance on the device.
	PresentFences bool

	// Timeout bounds acquire and fence waits, DefaultTimeout if zero.
	Timeout time.Duration
}

// Preferences are soft requests, each one falls back when unsupported
type Preferences struct {
	Format      gfx.Format
	ColorSpace  gfx.ColorSpace
	PresentMode *gfx.PresentMode
	Samples     gfx.SampleCountFlags
	Extent      *gfx.Extent2D

	// Usage is added to the color attachment usage of swapchain images.
	Usage gfx.ImageUsageFlags
}

// PreferencesFrom converts the configured swapchain settings. extent
// is the preferred size, usually the window's drawable size.
func PreferencesFrom(cfg core.SwapchainConfiguration, extent gfx.Extent2D) Preferences {
	prefs := Preferences{
		Format:      cfg.Format,
		ColorSpace:  cfg.ColorSpace,
		PresentMode: cfg.PresentMode,
		Samples:     cfg.Samples,
	}
	if !extent.Empty() {
		prefs.Extent = &extent
	}
	return prefs
}
