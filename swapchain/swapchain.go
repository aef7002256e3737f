// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package swapchain owns the presentable images of a surface together
// with the per-frame synchronization used to acquire and present them.
//
// A Swapchain is used from one goroutine at a time. It alternates between
// AcquireNextImage and Present, and is rebuilt in place with Recreate
// when the surface changes.
package swapchain

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
)

// DefaultTimeout bounds acquire and fence waits when the target sets none.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNoColorFormat is returned when the surface offers no color format.
	ErrNoColorFormat = errors.New("surface has no color format")

	// ErrSurfaceMinimized is returned when the surface has a zero maximum
	// extent, as minimized windows do.
	ErrSurfaceMinimized = errors.New("surface is minimized")

	// ErrTimeout is returned when a wait runs past the timeout.
	ErrTimeout = errors.New("timed out")
)

// NeedsRecreate tells if err means the swapchain no longer matches its
// surface and has to be recreated.
func NeedsRecreate(err error) bool {
	return errors.Is(err, gfx.ErrorOutOfDate) || errors.Is(err, gfx.ErrorSurfaceLost)
}

// FrameSync is the synchronization of one frame in flight
type FrameSync struct {
	ImageAvailable  gfx.Semaphore
	ImageRendered   gfx.Semaphore
	PresentComplete gfx.Fence
}

type multisampleTarget struct {
	samples     gfx.SampleCountFlags
	images      []gfx.Image
	allocations []gfx.Allocation
	views       []gfx.ImageView
}

// Swapchain is a chain of presentable images and the frames in flight
// rendering into them
type Swapchain struct {
	device        Device
	allocator     gfx.Allocator
	timeout       time.Duration
	presentFences bool

	handle      gfx.Swapchain
	format      gfx.Format
	colorSpace  gfx.ColorSpace
	presentMode gfx.PresentMode
	extent      gfx.Extent2D

	images []gfx.Image
	views  []gfx.ImageView
	msaa   *multisampleTarget

	frames       []FrameSync
	currentFrame int

	acquired      bool
	acquiredIndex uint32
	fencedPresent bool

	// retired is a replaced swapchain whose work could not be waited on
	retired *Swapchain
}

// New creates a swapchain for the target's surface. old is the swapchain
// being replaced, or zero.
func New(t Target, prefs Preferences, old gfx.Swapchain) (_ *Swapchain, err error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	caps, err := t.Physical.SurfaceCapabilities(t.Surface)
	if err != nil {
		return nil, fmt.Errorf("surface capabilities: %w", err)
	}
	if caps.MaxImageExtent.Empty() {
		return nil, ErrSurfaceMinimized
	}

	modes, err := t.Physical.SurfacePresentModes(t.Surface)
	if err != nil {
		return nil, fmt.Errorf("surface present modes: %w", err)
	}
	mode, imageCount := choosePresentMode(prefs.PresentMode, modes)
	if t.Instance.IsExtensionEnabled(core.SurfaceMaintenance1Extension) {
		modeCaps, err := t.Physical.PresentModeCapabilities(t.Surface, mode)
		if err != nil {
			return nil, fmt.Errorf("present mode capabilities: %w", err)
		}
		imageCount = modeCaps.ClampImageCount(imageCount)
	} else {
		imageCount = caps.ClampImageCount(imageCount)
	}

	formats, err := t.Physical.SurfaceFormats(t.Surface)
	if err != nil {
		return nil, fmt.Errorf("surface formats: %w", err)
	}
	format, err := chooseFormat(formats, prefs.Format, prefs.ColorSpace)
	if err != nil {
		return nil, err
	}

	s := &Swapchain{
		device:        t.Device,
		allocator:     t.Allocator,
		timeout:       timeout,
		presentFences: t.PresentFences,
		format:        format.Format,
		colorSpace:    format.ColorSpace,
		presentMode:   mode,
		extent:        chooseExtent(caps, prefs.Extent),
	}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	info := CreateInfo{
		Surface:        t.Surface,
		MinImageCount:  imageCount,
		Format:         s.format,
		ColorSpace:     s.colorSpace,
		Extent:         s.extent,
		Usage:          gfx.ImageUsageColorAttachmentBit | prefs.Usage,
		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:    mode,
		OldSwapchain:   old,
	}
	if t.PresentFences {
		info.PresentModes = []gfx.PresentMode{mode}
	}
	if s.handle, err = t.Device.CreateSwapchain(info); err != nil {
		return nil, err
	}

	if s.images, err = t.Device.SwapchainImages(s.handle); err != nil {
		return nil, err
	}
	for _, image := range s.images {
		view, err := t.Device.CreateImageView(image, s.format)
		if err != nil {
			return nil, err
		}
		s.views = append(s.views, view)
	}

	if err = s.createMultisampleTarget(t, prefs.Samples); err != nil {
		return nil, err
	}

	frames := int(imageCount)
	if frames < 2 {
		frames = 2
	}
	for i := 0; i < frames; i++ {
		frame, err := createFrameSync(t.Device)
		if err != nil {
			return nil, err
		}
		s.frames = append(s.frames, frame)
	}

	log.WithFields(log.Fields{
		"format":      s.format,
		"colorSpace":  s.colorSpace,
		"presentMode": s.presentMode,
		"width":       s.extent.Width,
		"height":      s.extent.Height,
		"images":      len(s.images),
		"frames":      len(s.frames),
		"samples":     s.MultisampleCount().Samples(),
	}).Info("swapchain created")

	return s, nil
}

func (s *Swapchain) createMultisampleTarget(t Target, samples gfx.SampleCountFlags) error {
	desc, ok, err := device.QueryMultisampleSupport(t.Physical, device.MultisampleRequest{
		Samples:   samples,
		Format:    s.format,
		Extent:    s.extent,
		MipLevels: 1,
		Usage:     gfx.ImageUsageTransientAttachmentBit | gfx.ImageUsageColorAttachmentBit,
	})
	if err != nil {
		return err
	}
	if !ok {
		if samples > gfx.SampleCount1Bit {
			log.WithField("samples", samples).Warn("multisampling not supported, rendering without it")
		}
		return nil
	}

	s.msaa = &multisampleTarget{samples: desc.Samples}
	for range s.images {
		image, reqs, err := t.Device.CreateImage(desc)
		if err != nil {
			return err
		}
		s.msaa.images = append(s.msaa.images, image)

		allocation, err := t.Allocator.Allocate(gfx.AllocationRequest{
			Name:         "swapchain multisample image",
			Requirements: reqs,
			Location:     gfx.MemoryLocationGPUOnly,
			Linear:       false,
			Dedicated:    gfx.DedicatedResource{Image: image},
		})
		if err != nil {
			return fmt.Errorf("allocate multisample image: %w", err)
		}
		s.msaa.allocations = append(s.msaa.allocations, allocation)

		if err := t.Device.BindImageMemory(image, allocation); err != nil {
			return err
		}
		view, err := t.Device.CreateImageView(image, s.format)
		if err != nil {
			return err
		}
		s.msaa.views = append(s.msaa.views, view)
	}
	return nil
}

func createFrameSync(d Device) (FrameSync, error) {
	var (
		frame FrameSync
		err   error
	)
	if frame.ImageAvailable, err = d.CreateSemaphore(); err != nil {
		return FrameSync{}, err
	}
	if frame.ImageRendered, err = d.CreateSemaphore(); err != nil {
		d.DestroySemaphore(frame.ImageAvailable)
		return FrameSync{}, err
	}
	if frame.PresentComplete, err = d.CreateFence(true); err != nil {
		d.DestroySemaphore(frame.ImageRendered)
		d.DestroySemaphore(frame.ImageAvailable)
		return FrameSync{}, err
	}
	return frame, nil
}

// release destroys everything the swapchain owns. The caller makes sure
// the device is done with it.
func (s *Swapchain) release() error {
	var firstErr error

	for _, frame := range s.frames {
		s.device.DestroySemaphore(frame.ImageAvailable)
		s.device.DestroySemaphore(frame.ImageRendered)
		s.device.DestroyFence(frame.PresentComplete)
	}
	s.frames = nil

	for _, view := range s.views {
		s.device.DestroyImageView(view)
	}
	s.views = nil

	if s.msaa != nil {
		for _, view := range s.msaa.views {
			s.device.DestroyImageView(view)
		}
		for i, image := range s.msaa.images {
			s.device.DestroyImage(image)
			if i < len(s.msaa.allocations) {
				if err := s.allocator.Free(s.msaa.allocations[i]); err != nil {
					log.WithError(err).Error("unable to free multisample image memory")
					if firstErr == nil {
						firstErr = fmt.Errorf("free multisample image: %w", err)
					}
				}
			}
		}
		s.msaa = nil
	}

	// images belong to the swapchain handle
	s.images = nil
	if s.handle != 0 {
		s.device.DestroySwapchain(s.handle)
		s.handle = 0
	}
	return firstErr
}

// Destroy releases the swapchain. A previously retired swapchain is
// released after the device goes idle. The caller makes sure the device
// is done with this one.
func (s *Swapchain) Destroy() error {
	if s.retired != nil {
		if err := s.device.WaitIdle(); err != nil {
			return fmt.Errorf("wait idle: %w", err)
		}
		if err := s.retired.release(); err != nil {
			return err
		}
		s.retired = nil
	}
	return s.release()
}

// Handle returns the swapchain handle
func (s *Swapchain) Handle() gfx.Swapchain { return s.handle }

// CurrentFrame returns the index of the current frame in flight
func (s *Swapchain) CurrentFrame() int { return s.currentFrame }

// Extent returns the size of the swapchain images
func (s *Swapchain) Extent() gfx.Extent2D { return s.extent }

// FramesInFlight returns the number of frames in flight, at least two
func (s *Swapchain) FramesInFlight() int { return len(s.frames) }

// FrameSyncs returns a copy of every frame's synchronization
func (s *Swapchain) FrameSyncs() []FrameSync {
	return append([]FrameSync(nil), s.frames...)
}

// ImageAvailable is signaled when the current frame's image is acquired
func (s *Swapchain) ImageAvailable() gfx.Semaphore { return s.frames[s.currentFrame].ImageAvailable }

// ImageRendered is waited on by Present for the current frame
func (s *Swapchain) ImageRendered() gfx.Semaphore { return s.frames[s.currentFrame].ImageRendered }

// PresentComplete is the current frame's fence
func (s *Swapchain) PresentComplete() gfx.Fence { return s.frames[s.currentFrame].PresentComplete }

// ImageFormat returns the format of the swapchain images
func (s *Swapchain) ImageFormat() gfx.Format { return s.format }

// ColorSpace returns the color space of the swapchain images
func (s *Swapchain) ColorSpace() gfx.ColorSpace { return s.colorSpace }

// PresentMode returns the present mode in use
func (s *Swapchain) PresentMode() gfx.PresentMode { return s.presentMode }

// Images returns the presentable images in index order
func (s *Swapchain) Images() []gfx.Image { return append([]gfx.Image(nil), s.images...) }

// ImageViews returns the views of the presentable images in index order
func (s *Swapchain) ImageViews() []gfx.ImageView { return append([]gfx.ImageView(nil), s.views...) }

// MultisampleCount returns the sample count of the multisample target,
// one sample when there is none.
func (s *Swapchain) MultisampleCount() gfx.SampleCountFlags {
	if s.msaa == nil {
		return gfx.SampleCount1Bit
	}
	return s.msaa.samples
}

// MultisampleViews returns the multisample views in image index order,
// nil without a multisample target.
func (s *Swapchain) MultisampleViews() []gfx.ImageView {
	if s.msaa == nil {
		return nil
	}
	return append([]gfx.ImageView(nil), s.msaa.views...)
}
