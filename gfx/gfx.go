// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the backend neutral types shared by device selection
// and swapchain management. Numeric values mirror the Vulkan API so a backend
// can convert them with a plain cast.
package gfx

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release() error
}

// Opaque object handles. The zero value is the null handle.
type (
	Surface      uint64
	Swapchain    uint64
	Image        uint64
	ImageView    uint64
	Buffer       uint64
	Semaphore    uint64
	Fence        uint64
	DeviceMemory uint64
	Queue        uint64
)

// Extent2D is a two dimensional size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Extent3D is a three dimensional size in pixels.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Empty is true if either dimension is zero.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Clamp fits the extent into [min, max] per dimension.
func (e Extent2D) Clamp(min, max Extent2D) Extent2D {
	return Extent2D{
		Width:  clamp(e.Width, min.Width, max.Width),
		Height: clamp(e.Height, min.Height, max.Height),
	}
}

// Depth1 returns the 3D extent with a depth of one.
func (e Extent2D) Depth1() Extent3D {
	return Extent3D{Width: e.Width, Height: e.Height, Depth: 1}
}

// SpecialExtent is reported as the current surface extent when the
// application decides the swapchain size.
var SpecialExtent = Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Version packs an API version the way the Vulkan headers do.
type Version uint32

// MakeVersion builds a Version from its parts.
func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

// Major part of the version.
func (v Version) Major() uint32 { return uint32(v>>22) & 0x7F }

// Minor part of the version.
func (v Version) Minor() uint32 { return uint32(v>>12) & 0x3FF }

// Patch part of the version.
func (v Version) Patch() uint32 { return uint32(v) & 0xFFF }

func (v Version) String() string {
	return itoa(v.Major()) + "." + itoa(v.Minor()) + "." + itoa(v.Patch())
}

// API versions the library knows about.
var (
	Version10 = MakeVersion(1, 0, 0)
	Version11 = MakeVersion(1, 1, 0)
	Version12 = MakeVersion(1, 2, 0)
	Version13 = MakeVersion(1, 3, 0)
)
