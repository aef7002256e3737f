// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// choosePresentMode returns the preferred mode when supported, FIFO
// otherwise, with the image count that suits the mode.
func choosePresentMode(preferred *gfx.PresentMode, supported []gfx.PresentMode) (gfx.PresentMode, uint32) {
	mode := gfx.PresentModeFifo
	if preferred != nil {
		found := false
		for _, m := range supported {
			if m == *preferred {
				found = true
				break
			}
		}
		if found {
			mode = *preferred
		} else {
			log.WithFields(log.Fields{
				"preferred": *preferred,
				"fallback":  mode,
			}).Warn("present mode not supported")
		}
	}

	if mode == gfx.PresentModeImmediate {
		return mode, 1
	}
	return mode, 3
}

// chooseFormat picks an exact match of format and color space. With no
// format requested any color format in the color space will do. Falls
// back to the first color format.
func chooseFormat(available []gfx.SurfaceFormat, format gfx.Format, colorSpace gfx.ColorSpace) (gfx.SurfaceFormat, error) {
	var color []gfx.SurfaceFormat
	for _, f := range available {
		if f.Format != gfx.FormatUndefined && f.Format.IsColor() {
			color = append(color, f)
		}
	}
	if len(color) == 0 {
		return gfx.SurfaceFormat{}, ErrNoColorFormat
	}

	for _, f := range color {
		if format == gfx.FormatUndefined {
			if f.ColorSpace == colorSpace {
				return f, nil
			}
		} else if f.Format == format && f.ColorSpace == colorSpace {
			return f, nil
		}
	}

	log.WithFields(log.Fields{
		"format":     format,
		"colorSpace": colorSpace,
		"fallback":   color[0].Format,
	}).Warn("surface format not available")
	return color[0], nil
}

func chooseCompositeAlpha(supported gfx.CompositeAlphaFlags) gfx.CompositeAlphaFlags {
	if supported&gfx.CompositeAlphaPostMultipliedBit != 0 {
		return gfx.CompositeAlphaPostMultipliedBit
	}
	return gfx.CompositeAlphaOpaqueBit
}

// chooseExtent uses the surface's current extent unless the surface
// leaves the size to the application.
func chooseExtent(caps gfx.SurfaceCapabilities, preferred *gfx.Extent2D) gfx.Extent2D {
	extent := caps.CurrentExtent
	if extent.Width == gfx.SpecialExtent.Width {
		if preferred != nil {
			extent = *preferred
		} else {
			extent = caps.MinImageExtent
		}
	}
	return extent.Clamp(caps.MinImageExtent, caps.MaxImageExtent)
}
