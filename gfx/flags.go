// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"fmt"
	"math/bits"
	"strings"
)

// QueueFlags describes the operation categories of a queue family.
type QueueFlags uint32

// Queue family capability bits.
const (
	QueueGraphicsBit      QueueFlags = 0x00000001
	QueueComputeBit       QueueFlags = 0x00000002
	QueueTransferBit      QueueFlags = 0x00000004
	QueueSparseBindingBit QueueFlags = 0x00000008
	QueueProtectedBit     QueueFlags = 0x00000010
	QueueVideoDecodeBit   QueueFlags = 0x00000020
	QueueVideoEncodeBit   QueueFlags = 0x00000040
	QueueOpticalFlowBit   QueueFlags = 0x00000100

	// QueuePresentBit is not a Vulkan bit. It is set on a classified
	// family when the family can present to the queried surface.
	QueuePresentBit QueueFlags = 0x80000000
)

// Contains is true if every bit of mask is set.
func (q QueueFlags) Contains(mask QueueFlags) bool {
	return q&mask == mask
}

// Count returns the number of set bits.
func (q QueueFlags) Count() int {
	return bits.OnesCount32(uint32(q))
}

func (q QueueFlags) String() string {
	names := []struct {
		bit  QueueFlags
		name string
	}{
		{QueueGraphicsBit, "graphics"},
		{QueueComputeBit, "compute"},
		{QueueTransferBit, "transfer"},
		{QueueSparseBindingBit, "sparse"},
		{QueueProtectedBit, "protected"},
		{QueueVideoDecodeBit, "decode"},
		{QueueVideoEncodeBit, "encode"},
		{QueueOpticalFlowBit, "opticalflow"},
		{QueuePresentBit, "present"},
	}
	var parts []string
	for _, n := range names {
		if q&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// SampleCountFlags is a set of per-pixel sample counts.
type SampleCountFlags uint32

// Sample count bits.
const (
	SampleCount1Bit  SampleCountFlags = 0x01
	SampleCount2Bit  SampleCountFlags = 0x02
	SampleCount4Bit  SampleCountFlags = 0x04
	SampleCount8Bit  SampleCountFlags = 0x08
	SampleCount16Bit SampleCountFlags = 0x10
	SampleCount32Bit SampleCountFlags = 0x20
	SampleCount64Bit SampleCountFlags = 0x40
)

// Highest returns the single highest bit set, or zero.
func (s SampleCountFlags) Highest() SampleCountFlags {
	if s == 0 {
		return 0
	}
	return SampleCountFlags(1) << (31 - bits.LeadingZeros32(uint32(s)))
}

// Samples converts a single bit to its sample count.
func (s SampleCountFlags) Samples() int {
	return int(s.Highest())
}

// SampleCountFromInt converts 1, 2, 4 .. 64 into its flag. Zero maps to
// no flags at all.
func SampleCountFromInt(n int) (SampleCountFlags, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 || n > 64 || bits.OnesCount(uint(n)) != 1 {
		return 0, fmt.Errorf("invalid sample count %d", n)
	}
	return SampleCountFlags(n), nil
}

// ImageUsageFlags describes how an image is used.
type ImageUsageFlags uint32

// Image usage bits.
const (
	ImageUsageTransferSrcBit            ImageUsageFlags = 0x01
	ImageUsageTransferDstBit            ImageUsageFlags = 0x02
	ImageUsageSampledBit                ImageUsageFlags = 0x04
	ImageUsageStorageBit                ImageUsageFlags = 0x08
	ImageUsageColorAttachmentBit        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachmentBit ImageUsageFlags = 0x20
	ImageUsageTransientAttachmentBit    ImageUsageFlags = 0x40
	ImageUsageInputAttachmentBit        ImageUsageFlags = 0x80
)

// ImageAspectFlags selects the aspects of an image a view covers.
type ImageAspectFlags uint32

// Image aspect bits.
const (
	ImageAspectColorBit   ImageAspectFlags = 0x1
	ImageAspectDepthBit   ImageAspectFlags = 0x2
	ImageAspectStencilBit ImageAspectFlags = 0x4
)

// CompositeAlphaFlags describes how presented images blend with the compositor.
type CompositeAlphaFlags uint32

// Composite alpha bits.
const (
	CompositeAlphaOpaqueBit         CompositeAlphaFlags = 0x1
	CompositeAlphaPreMultipliedBit  CompositeAlphaFlags = 0x2
	CompositeAlphaPostMultipliedBit CompositeAlphaFlags = 0x4
	CompositeAlphaInheritBit        CompositeAlphaFlags = 0x8
)

// SurfaceTransformFlags describes the presentation transform of a surface.
type SurfaceTransformFlags uint32

// SurfaceTransformIdentityBit leaves the image as is.
const SurfaceTransformIdentityBit SurfaceTransformFlags = 0x1

// DeviceType is the kind of a physical device.
type DeviceType int32

// Device types.
const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (d DeviceType) String() string {
	switch d {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}
