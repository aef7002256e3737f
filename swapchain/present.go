// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// NextImage is an acquired presentable image
type NextImage struct {
	View       gfx.ImageView
	Index      uint32
	Suboptimal bool
}

// AcquireNextImage waits for the next presentable image, signaling the
// current frame's ImageAvailable semaphore. A suboptimal image is still
// usable; the swapchain should be recreated after presenting it.
// Calling it again before Present panics.
func (s *Swapchain) AcquireNextImage() (NextImage, error) {
	if s.acquired {
		panic("swapchain: image acquired twice without present")
	}

	frame := s.frames[s.currentFrame]
	index, res := s.device.AcquireNextImage(s.handle, s.timeout, frame.ImageAvailable)
	switch res {
	case gfx.Success, gfx.Suboptimal:
	case gfx.Timeout, gfx.NotReady:
		return NextImage{}, fmt.Errorf("acquire next image after %s: %w", s.timeout, ErrTimeout)
	default:
		return NextImage{}, fmt.Errorf("acquire next image: %w", res)
	}
	if int(index) >= len(s.views) {
		return NextImage{}, fmt.Errorf("acquire next image: index %d out of %d images", index, len(s.views))
	}

	s.acquired = true
	s.acquiredIndex = index
	return NextImage{
		View:       s.views[index],
		Index:      index,
		Suboptimal: res == gfx.Suboptimal,
	}, nil
}

// Present queues the acquired image for presentation once the current
// frame's ImageRendered semaphore is signaled. With usePresentFence and
// present fences enabled on the target, the frame's PresentComplete
// fence is signaled when presentation is done; it has to be unsignaled
// at the call. The frame advances whatever the outcome. Present without
// a prior AcquireNextImage panics.
func (s *Swapchain) Present(queue gfx.Queue, usePresentFence bool) (bool, error) {
	if !s.acquired {
		panic("swapchain: present without acquired image")
	}
	index := s.acquiredIndex
	s.acquired = false

	frame := s.frames[s.currentFrame]
	info := PresentInfo{
		Wait:      frame.ImageRendered,
		Swapchain: s.handle,
		Index:     index,
	}
	if usePresentFence && s.presentFences {
		info.Fence = frame.PresentComplete
		s.fencedPresent = true
	}

	res := s.device.QueuePresent(queue, info)
	s.currentFrame = (s.currentFrame + 1) % len(s.frames)

	switch res {
	case gfx.Success:
		return false, nil
	case gfx.Suboptimal:
		return true, nil
	}
	return false, fmt.Errorf("queue present: %w", res)
}

// Recreate replaces the swapchain in place, passing the current handle
// as the old swapchain. On failure to create the receiver is unchanged.
// The replaced swapchain is released once its work is done: by waiting
// on its present fences when presents used them, on the whole device
// otherwise. When that wait fails the replaced swapchain is kept and
// released by a later Recreate or Destroy.
func (s *Swapchain) Recreate(t Target, prefs Preferences) error {
	if s.retired != nil {
		if err := s.device.WaitIdle(); err != nil {
			return fmt.Errorf("wait idle: %w", err)
		}
		if err := s.retired.release(); err != nil {
			return err
		}
		s.retired = nil
	}

	next, err := New(t, prefs, s.handle)
	if err != nil {
		return err
	}
	*s, *next = *next, *s
	old := next

	if err := old.quiesce(); err != nil {
		s.retired = old
		return err
	}
	if err := old.release(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"width":  s.extent.Width,
		"height": s.extent.Height,
	}).Debug("swapchain recreated")
	return nil
}

// quiesce waits until the device is done with the swapchain.
func (s *Swapchain) quiesce() error {
	if !s.fencedPresent {
		if err := s.device.WaitIdle(); err != nil {
			return fmt.Errorf("wait idle: %w", err)
		}
		return nil
	}

	fences := make([]gfx.Fence, 0, len(s.frames))
	for _, frame := range s.frames {
		fences = append(fences, frame.PresentComplete)
	}
	switch res := s.device.WaitForFences(fences, true, s.timeout); res {
	case gfx.Success:
		return nil
	case gfx.Timeout:
		return fmt.Errorf("wait for present fences after %s: %w", s.timeout, ErrTimeout)
	default:
		return fmt.Errorf("wait for present fences: %w", res)
	}
}
