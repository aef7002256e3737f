// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/swapchain"
)

var errInjected = errors.New("injected failure")

// fakeGPU stands in for the physical device, the logical device and the
// allocator. Every handle it hands out is unique and tracked until it is
// destroyed, so double or missing destruction shows up in live and
// misuse.
type fakeGPU struct {
	caps     gfx.SurfaceCapabilities
	modeCaps map[gfx.PresentMode]gfx.SurfaceCapabilities
	formats  []gfx.SurfaceFormat
	modes    []gfx.PresentMode
	samples  gfx.SampleCountFlags

	// failOn makes the named operation fail
	failOn string
	// neverSignal makes acquire wait out its timeout
	neverSignal    bool
	acquireResults []gfx.Result
	presentResult  gfx.Result
	fenceResult    gfx.Result

	next      uint64
	live      map[uint64]string
	misuse    []string
	events    []string
	nextImage uint32

	creates     []swapchain.CreateInfo
	presents    []swapchain.PresentInfo
	allocations []gfx.AllocationRequest
	fenceWaits  [][]gfx.Fence
	waitIdles   int
	images      map[gfx.Swapchain][]gfx.Image
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{
		caps: gfx.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gfx.Extent2D{Width: 800, Height: 600},
			MinImageExtent:          gfx.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gfx.Extent2D{Width: 4096, Height: 4096},
			SupportedCompositeAlpha: gfx.CompositeAlphaOpaqueBit | gfx.CompositeAlphaPostMultipliedBit,
			CurrentTransform:        gfx.SurfaceTransformIdentityBit,
		},
		formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8g8r8a8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
			{Format: gfx.FormatB8g8r8a8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
		},
		modes:   []gfx.PresentMode{gfx.PresentModeFifo, gfx.PresentModeMailbox, gfx.PresentModeImmediate},
		samples: gfx.SampleCount1Bit | gfx.SampleCount2Bit | gfx.SampleCount4Bit,
		live:    map[uint64]string{},
		images:  map[gfx.Swapchain][]gfx.Image{},
	}
}

func (f *fakeGPU) target() swapchain.Target {
	return swapchain.Target{
		Instance:  core.NewExtensionSet(core.SurfaceExtension),
		Physical:  f,
		Device:    f,
		Surface:   gfx.Surface(0xABC),
		Allocator: f,
	}
}

func (f *fakeGPU) fail(op string) error {
	if f.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (f *fakeGPU) create(kind string) uint64 {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeGPU) destroy(kind string, handle uint64) {
	if got, ok := f.live[handle]; !ok || got != kind {
		f.misuse = append(f.misuse, fmt.Sprintf("destroy %s %d", kind, handle))
		return
	}
	delete(f.live, handle)
	f.events = append(f.events, fmt.Sprintf("%s %d", kind, handle))
}

func (f *fakeGPU) liveCount(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeGPU) ImageFormatSampleCounts(gfx.Format, gfx.ImageUsageFlags) (gfx.SampleCountFlags, error) {
	return f.samples, nil
}

func (f *fakeGPU) SurfaceCapabilities(gfx.Surface) (gfx.SurfaceCapabilities, error) {
	return f.caps, f.fail("SurfaceCapabilities")
}

func (f *fakeGPU) SurfaceFormats(gfx.Surface) ([]gfx.SurfaceFormat, error) {
	return f.formats, f.fail("SurfaceFormats")
}

func (f *fakeGPU) SurfacePresentModes(gfx.Surface) ([]gfx.PresentMode, error) {
	return f.modes, f.fail("SurfacePresentModes")
}

func (f *fakeGPU) PresentModeCapabilities(_ gfx.Surface, mode gfx.PresentMode) (gfx.SurfaceCapabilities, error) {
	if caps, ok := f.modeCaps[mode]; ok {
		return caps, nil
	}
	return f.caps, nil
}

func (f *fakeGPU) CreateSwapchain(info swapchain.CreateInfo) (gfx.Swapchain, error) {
	if err := f.fail("CreateSwapchain"); err != nil {
		return 0, err
	}
	f.creates = append(f.creates, info)
	sc := gfx.Swapchain(f.create("swapchain"))
	var images []gfx.Image
	for i := uint32(0); i < info.MinImageCount; i++ {
		f.next++
		images = append(images, gfx.Image(f.next))
	}
	f.images[sc] = images
	return sc, nil
}

func (f *fakeGPU) DestroySwapchain(sc gfx.Swapchain) { f.destroy("swapchain", uint64(sc)) }

func (f *fakeGPU) SwapchainImages(sc gfx.Swapchain) ([]gfx.Image, error) {
	return f.images[sc], f.fail("SwapchainImages")
}

func (f *fakeGPU) CreateImageView(gfx.Image, gfx.Format) (gfx.ImageView, error) {
	if err := f.fail("CreateImageView"); err != nil {
		return 0, err
	}
	return gfx.ImageView(f.create("view")), nil
}

func (f *fakeGPU) DestroyImageView(v gfx.ImageView) { f.destroy("view", uint64(v)) }

func (f *fakeGPU) CreateImage(desc device.ImageDescriptor) (gfx.Image, gfx.MemoryRequirements, error) {
	if err := f.fail("CreateImage"); err != nil {
		return 0, gfx.MemoryRequirements{}, err
	}
	size := uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * 4 * uint64(desc.Samples)
	return gfx.Image(f.create("image")), gfx.MemoryRequirements{Size: size, Alignment: 256, MemoryTypeBits: 0x3}, nil
}

func (f *fakeGPU) BindImageMemory(gfx.Image, gfx.Allocation) error { return f.fail("BindImageMemory") }

func (f *fakeGPU) DestroyImage(i gfx.Image) { f.destroy("image", uint64(i)) }

func (f *fakeGPU) CreateSemaphore() (gfx.Semaphore, error) {
	if err := f.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	return gfx.Semaphore(f.create("semaphore")), nil
}

func (f *fakeGPU) DestroySemaphore(s gfx.Semaphore) { f.destroy("semaphore", uint64(s)) }

func (f *fakeGPU) CreateFence(signaled bool) (gfx.Fence, error) {
	if err := f.fail("CreateFence"); err != nil {
		return 0, err
	}
	if !signaled {
		f.misuse = append(f.misuse, "unsignaled fence")
	}
	return gfx.Fence(f.create("fence")), nil
}

func (f *fakeGPU) DestroyFence(fence gfx.Fence) { f.destroy("fence", uint64(fence)) }

func (f *fakeGPU) AcquireNextImage(sc gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, gfx.Result) {
	if f.live[uint64(signal)] != "semaphore" {
		f.misuse = append(f.misuse, "acquire with dead semaphore")
	}
	if f.neverSignal {
		time.Sleep(timeout)
		return 0, gfx.Timeout
	}
	res := gfx.Success
	if len(f.acquireResults) > 0 {
		res, f.acquireResults = f.acquireResults[0], f.acquireResults[1:]
	}
	images := uint32(len(f.images[sc]))
	index := f.nextImage % images
	f.nextImage++
	return index, res
}

func (f *fakeGPU) QueuePresent(_ gfx.Queue, info swapchain.PresentInfo) gfx.Result {
	f.presents = append(f.presents, info)
	return f.presentResult
}

func (f *fakeGPU) WaitForFences(fences []gfx.Fence, waitAll bool, timeout time.Duration) gfx.Result {
	f.fenceWaits = append(f.fenceWaits, fences)
	return f.fenceResult
}

func (f *fakeGPU) WaitIdle() error {
	f.waitIdles++
	return f.fail("WaitIdle")
}

func (f *fakeGPU) Allocate(req gfx.AllocationRequest) (gfx.Allocation, error) {
	if err := f.fail("Allocate"); err != nil {
		return gfx.Allocation{}, err
	}
	f.allocations = append(f.allocations, req)
	id := f.create("allocation")
	return gfx.Allocation{ID: id, Memory: gfx.DeviceMemory(id), Size: req.Requirements.Size}, nil
}

func (f *fakeGPU) Free(a gfx.Allocation) error {
	f.destroy("allocation", a.ID)
	return nil
}
