// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the device and swapchain collaborators on top
// of the Vulkan API.
package vkr

// #include <stdlib.h>
import "C"

import (
	"errors"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/devblok/vkpresent/gfx"
)

// DefaultTimeout bounds the blocking waits of this package.
const DefaultTimeout = 5 * time.Second

// ErrUploadTimeout is returned when a buffer upload did not finish in
// time. The staging resources are kept alive in that case.
var ErrUploadTimeout = errors.New("buffer upload timed out")

// ErrEmptyUpload is returned when there is no data to upload.
var ErrEmptyUpload = errors.New("buffer upload of zero bytes")

// calloc returns zeroed C memory for one T. Structures put on a pNext
// chain live there so the driver never holds Go pointers.
func calloc[T any]() *T {
	var zero T
	return (*T)(C.calloc(1, C.size_t(unsafe.Sizeof(zero))))
}

// callocSlice returns zeroed C memory for n values of T.
func callocSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	var zero T
	p := (*T)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(zero))))
	return unsafe.Slice(p, n)
}

func free(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}

func nanoseconds(d time.Duration) uint64 {
	if d < 0 {
		return vk.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// Handles cross the package boundary as plain integers.

func handle(p unsafe.Pointer) uint64 { return uint64(uintptr(p)) }

func pointer(h uint64) unsafe.Pointer { return unsafe.Pointer(uintptr(h)) }

func vkSurface(s gfx.Surface) vk.Surface { return vk.Surface(pointer(uint64(s))) }

func vkSwapchain(s gfx.Swapchain) vk.Swapchain { return vk.Swapchain(pointer(uint64(s))) }

func vkImage(i gfx.Image) vk.Image { return vk.Image(pointer(uint64(i))) }

func vkImageView(v gfx.ImageView) vk.ImageView { return vk.ImageView(pointer(uint64(v))) }

func vkBuffer(b gfx.Buffer) vk.Buffer { return vk.Buffer(pointer(uint64(b))) }

func vkSemaphore(s gfx.Semaphore) vk.Semaphore { return vk.Semaphore(pointer(uint64(s))) }

func vkFence(f gfx.Fence) vk.Fence { return vk.Fence(pointer(uint64(f))) }

func vkMemory(m gfx.DeviceMemory) vk.DeviceMemory { return vk.DeviceMemory(pointer(uint64(m))) }

func vkQueue(q gfx.Queue) vk.Queue { return vk.Queue(pointer(uint64(q))) }
