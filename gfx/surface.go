// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"fmt"
	"strings"
)

// PresentMode governs how presented images reach the display.
type PresentMode int32

// Present modes.
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo_relaxed"
	}
	return fmt.Sprintf("presentmode(%d)", int32(p))
}

// ParsePresentMode accepts a present mode name as printed by String.
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return PresentModeImmediate, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "fifo":
		return PresentModeFifo, nil
	case "fifo_relaxed", "fiforelaxed":
		return PresentModeFifoRelaxed, nil
	}
	return PresentModeFifo, fmt.Errorf("unknown present mode %q", s)
}

// SurfaceCapabilities are the limits a surface puts on a swapchain.
// A MaxImageCount of zero means there is no upper limit.
type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedCompositeAlpha CompositeAlphaFlags
	CurrentTransform        SurfaceTransformFlags
}

// ClampImageCount fits count into the capability's image count limits.
func (c SurfaceCapabilities) ClampImageCount(count uint32) uint32 {
	max := c.MaxImageCount
	if max == 0 {
		max = ^uint32(0)
	}
	return clamp(count, c.MinImageCount, max)
}
