// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/swapchain"
)

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }

func newSwapchain(c *qt.C, gpu *fakeGPU, target swapchain.Target) *swapchain.Swapchain {
	s, err := swapchain.New(target, swapchain.Preferences{}, 0)
	c.Assert(err, qt.IsNil)
	return s
}

func TestAcquirePresentCycle(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())
	frames := s.FrameSyncs()
	c.Assert(frames, qt.HasLen, 3)

	var cursor []int
	for i := 0; i < 7; i++ {
		cursor = append(cursor, s.CurrentFrame())
		c.Assert(s.ImageAvailable(), qt.Equals, frames[s.CurrentFrame()].ImageAvailable)

		next, err := s.AcquireNextImage()
		c.Assert(err, qt.IsNil)
		c.Assert(next.Suboptimal, qt.IsFalse)
		c.Assert(next.View, qt.Equals, s.ImageViews()[next.Index])

		rendered := s.ImageRendered()
		suboptimal, err := s.Present(gfx.Queue(1), false)
		c.Assert(err, qt.IsNil)
		c.Assert(suboptimal, qt.IsFalse)

		last := gpu.presents[len(gpu.presents)-1]
		c.Assert(last.Wait, qt.Equals, rendered)
		c.Assert(last.Index, qt.Equals, next.Index)
		c.Assert(last.Swapchain, qt.Equals, s.Handle())
		c.Assert(last.Fence, qt.Equals, gfx.Fence(0))
	}
	c.Assert(cursor, qt.DeepEquals, []int{0, 1, 2, 0, 1, 2, 0})
	c.Assert(gpu.misuse, qt.HasLen, 0)
}

func TestAcquireTwicePanics(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())

	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	c.Assert(func() { s.AcquireNextImage() }, qt.PanicMatches, "swapchain: image acquired twice without present")
}

func TestPresentWithoutAcquirePanics(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())

	c.Assert(func() { s.Present(gfx.Queue(1), false) }, qt.PanicMatches, "swapchain: present without acquired image")

	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), false)
	c.Assert(err, qt.IsNil)
	c.Assert(func() { s.Present(gfx.Queue(1), false) }, qt.PanicMatches, "swapchain: present without acquired image")
}

func TestAcquireTimesOut(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	gpu.neverSignal = true
	target := gpu.target()
	target.Timeout = 50 * time.Millisecond
	s := newSwapchain(c, gpu, target)

	start := time.Now()
	_, err := s.AcquireNextImage()
	elapsed := time.Since(start)

	c.Assert(err, qt.ErrorIs, swapchain.ErrTimeout)
	c.Assert(elapsed >= target.Timeout, qt.IsTrue)
	c.Assert(elapsed < 5*time.Second, qt.IsTrue)
	c.Assert(swapchain.NeedsRecreate(err), qt.IsFalse)

	// a failed acquire holds no image
	gpu.neverSignal = false
	_, err = s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
}

func TestAcquireDefaultTimeout(t *testing.T) {
	c := qt.New(t)
	gpu := &timeoutRecorder{fakeGPU: newFakeGPU()}
	target := gpu.target()
	target.Device = gpu
	s := newSwapchain(c, gpu.fakeGPU, target)

	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	c.Assert(gpu.timeout, qt.Equals, swapchain.DefaultTimeout)
}

type timeoutRecorder struct {
	*fakeGPU
	timeout time.Duration
}

func (r *timeoutRecorder) AcquireNextImage(sc gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, gfx.Result) {
	r.timeout = timeout
	return r.fakeGPU.AcquireNextImage(sc, timeout, signal)
}

func TestAcquireSuboptimalAndOutOfDate(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	gpu.acquireResults = []gfx.Result{gfx.Suboptimal, gfx.ErrorOutOfDate, gfx.ErrorSurfaceLost, gfx.ErrorDeviceLost}
	s := newSwapchain(c, gpu, gpu.target())

	next, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	c.Assert(next.Suboptimal, qt.IsTrue)
	_, err = s.Present(gfx.Queue(1), false)
	c.Assert(err, qt.IsNil)

	_, err = s.AcquireNextImage()
	c.Assert(err, qt.ErrorIs, gfx.ErrorOutOfDate)
	c.Assert(swapchain.NeedsRecreate(err), qt.IsTrue)

	_, err = s.AcquireNextImage()
	c.Assert(swapchain.NeedsRecreate(err), qt.IsTrue)

	_, err = s.AcquireNextImage()
	c.Assert(err, qt.ErrorIs, gfx.ErrorDeviceLost)
	c.Assert(swapchain.NeedsRecreate(err), qt.IsFalse)
}

func TestPresentResults(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())

	gpu.presentResult = gfx.Suboptimal
	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	suboptimal, err := s.Present(gfx.Queue(1), false)
	c.Assert(err, qt.IsNil)
	c.Assert(suboptimal, qt.IsTrue)
	c.Assert(s.CurrentFrame(), qt.Equals, 1)

	gpu.presentResult = gfx.ErrorOutOfDate
	_, err = s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), false)
	c.Assert(swapchain.NeedsRecreate(err), qt.IsTrue)
	c.Assert(s.CurrentFrame(), qt.Equals, 2)
}

func TestPresentFence(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()

	// ignored without present fences on the target
	s := newSwapchain(c, gpu, gpu.target())
	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), true)
	c.Assert(err, qt.IsNil)
	c.Assert(gpu.presents[0].Fence, qt.Equals, gfx.Fence(0))

	target := gpu.target()
	target.PresentFences = true
	s = newSwapchain(c, gpu, target)
	fence := s.PresentComplete()
	_, err = s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), true)
	c.Assert(err, qt.IsNil)
	c.Assert(gpu.presents[1].Fence, qt.Equals, fence)
}

func TestRecreate(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())

	oldHandle := s.Handle()
	oldViews := s.ImageViews()
	oldFrames := s.FrameSyncs()
	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), false)
	c.Assert(err, qt.IsNil)

	gpu.caps.CurrentExtent = gfx.Extent2D{Width: 1024, Height: 768}
	gpu.formats = []gfx.SurfaceFormat{{Format: gfx.FormatR8g8b8a8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}}
	ref := s
	c.Assert(s.Recreate(gpu.target(), swapchain.Preferences{}), qt.IsNil)

	c.Assert(ref, qt.Equals, s)
	c.Assert(s.Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(s.ImageFormat(), qt.Equals, gfx.FormatR8g8b8a8Srgb)
	c.Assert(s.Handle(), qt.Not(qt.Equals), oldHandle)
	c.Assert(s.CurrentFrame(), qt.Equals, 0)
	c.Assert(gpu.creates[1].OldSwapchain, qt.Equals, oldHandle)
	c.Assert(gpu.waitIdles, qt.Equals, 1)
	c.Assert(gpu.fenceWaits, qt.HasLen, 0)

	destroyed := map[string]int{}
	for _, e := range gpu.events {
		destroyed[e]++
	}
	c.Assert(destroyed["swapchain "+itoa(uint64(oldHandle))], qt.Equals, 1)
	for _, v := range oldViews {
		c.Assert(destroyed["view "+itoa(uint64(v))], qt.Equals, 1)
	}
	for _, f := range oldFrames {
		c.Assert(destroyed["semaphore "+itoa(uint64(f.ImageAvailable))], qt.Equals, 1)
		c.Assert(destroyed["semaphore "+itoa(uint64(f.ImageRendered))], qt.Equals, 1)
		c.Assert(destroyed["fence "+itoa(uint64(f.PresentComplete))], qt.Equals, 1)
	}
	c.Assert(gpu.misuse, qt.HasLen, 0)

	_, err = s.AcquireNextImage()
	c.Assert(err, qt.IsNil)

	c.Assert(s.Destroy(), qt.IsNil)
	c.Assert(gpu.live, qt.HasLen, 0)
	c.Assert(gpu.misuse, qt.HasLen, 0)
}

func TestRecreateWaitsOnPresentFences(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	target := gpu.target()
	target.PresentFences = true
	s := newSwapchain(c, gpu, target)
	oldFrames := s.FrameSyncs()

	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), true)
	c.Assert(err, qt.IsNil)

	c.Assert(s.Recreate(target, swapchain.Preferences{}), qt.IsNil)
	c.Assert(gpu.waitIdles, qt.Equals, 0)
	c.Assert(gpu.fenceWaits, qt.HasLen, 1)

	var want []gfx.Fence
	for _, f := range oldFrames {
		want = append(want, f.PresentComplete)
	}
	c.Assert(gpu.fenceWaits[0], qt.DeepEquals, want)
	c.Assert(gpu.misuse, qt.HasLen, 0)
}

func TestRecreateQuiesceTimeoutKeepsRetired(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	target := gpu.target()
	target.PresentFences = true
	s := newSwapchain(c, gpu, target)
	oldHandle := s.Handle()

	_, err := s.AcquireNextImage()
	c.Assert(err, qt.IsNil)
	_, err = s.Present(gfx.Queue(1), true)
	c.Assert(err, qt.IsNil)

	gpu.fenceResult = gfx.Timeout
	err = s.Recreate(target, swapchain.Preferences{})
	c.Assert(err, qt.ErrorIs, swapchain.ErrTimeout)
	c.Assert(s.Handle(), qt.Not(qt.Equals), oldHandle)
	c.Assert(gpu.live[uint64(oldHandle)], qt.Equals, "swapchain")

	c.Assert(s.Destroy(), qt.IsNil)
	c.Assert(gpu.waitIdles, qt.Equals, 1)
	c.Assert(gpu.live, qt.HasLen, 0)
	c.Assert(gpu.misuse, qt.HasLen, 0)
}

func TestRecreateFailureLeavesSwapchain(t *testing.T) {
	c := qt.New(t)
	gpu := newFakeGPU()
	s := newSwapchain(c, gpu, gpu.target())
	handle := s.Handle()
	views := s.ImageViews()

	gpu.caps.MaxImageExtent = gfx.Extent2D{}
	err := s.Recreate(gpu.target(), swapchain.Preferences{})
	c.Assert(err, qt.ErrorIs, swapchain.ErrSurfaceMinimized)
	c.Assert(s.Handle(), qt.Equals, handle)
	c.Assert(s.ImageViews(), qt.DeepEquals, views)
	c.Assert(gpu.events, qt.HasLen, 0)

	gpu.caps.MaxImageExtent = gfx.Extent2D{Width: 4096, Height: 4096}
	gpu.failOn = "WaitIdle"
	err = s.Recreate(gpu.target(), swapchain.Preferences{})
	c.Assert(errors.Is(err, errInjected), qt.IsTrue)
	c.Assert(gpu.live[uint64(handle)], qt.Equals, "swapchain")

	gpu.failOn = ""
	c.Assert(s.Recreate(gpu.target(), swapchain.Preferences{}), qt.IsNil)
	c.Assert(gpu.liveCount("swapchain"), qt.Equals, 1)
	c.Assert(s.Destroy(), qt.IsNil)
	c.Assert(gpu.live, qt.HasLen, 0)
	c.Assert(gpu.misuse, qt.HasLen, 0)
}

func BenchmarkAcquirePresent(b *testing.B) {
	gpu := newFakeGPU()
	s, err := swapchain.New(gpu.target(), swapchain.Preferences{}, 0)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		if _, err := s.AcquireNextImage(); err != nil {
			b.Fatal(err)
		}
		if _, err := s.Present(gfx.Queue(1), false); err != nil {
			b.Fatal(err)
		}
		gpu.presents = gpu.presents[:0]
	}
}
