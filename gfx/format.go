// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is an image texel format.
type Format int32

// Formats the library needs to name. Any other Vulkan format value
// is still carried through untouched.
const (
	FormatUndefined              Format = 0
	FormatR8g8b8a8Unorm          Format = 37
	FormatR8g8b8a8Srgb           Format = 43
	FormatB8g8r8a8Unorm          Format = 44
	FormatB8g8r8a8Srgb           Format = 50
	FormatA2r10g10b10UnormPack32 Format = 58
	FormatA2b10g10r10UnormPack32 Format = 64
	FormatR16g16b16a16Sfloat     Format = 97
	FormatD16Unorm               Format = 124
	FormatX8D24UnormPack32       Format = 125
	FormatD32Sfloat              Format = 126
	FormatS8Uint                 Format = 127
	FormatD16UnormS8Uint         Format = 128
	FormatD24UnormS8Uint         Format = 129
	FormatD32SfloatS8Uint        Format = 130
)

var formatNames = map[Format]string{
	FormatUndefined:              "undefined",
	FormatR8g8b8a8Unorm:          "r8g8b8a8_unorm",
	FormatR8g8b8a8Srgb:           "r8g8b8a8_srgb",
	FormatB8g8r8a8Unorm:          "b8g8r8a8_unorm",
	FormatB8g8r8a8Srgb:           "b8g8r8a8_srgb",
	FormatA2r10g10b10UnormPack32: "a2r10g10b10_unorm_pack32",
	FormatA2b10g10r10UnormPack32: "a2b10g10r10_unorm_pack32",
	FormatR16g16b16a16Sfloat:     "r16g16b16a16_sfloat",
	FormatD16Unorm:               "d16_unorm",
	FormatX8D24UnormPack32:       "x8_d24_unorm_pack32",
	FormatD32Sfloat:              "d32_sfloat",
	FormatS8Uint:                 "s8_uint",
	FormatD16UnormS8Uint:         "d16_unorm_s8_uint",
	FormatD24UnormS8Uint:         "d24_unorm_s8_uint",
	FormatD32SfloatS8Uint:        "d32_sfloat_s8_uint",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "format(" + strconv.Itoa(int(f)) + ")"
}

// IsDepth reports whether the format has a depth component.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD16UnormS8Uint, FormatD24UnormS8Uint,
		FormatD32Sfloat, FormatD32SfloatS8Uint, FormatX8D24UnormPack32:
		return true
	}
	return false
}

// IsStencil reports whether the format has a stencil component.
func (f Format) IsStencil() bool {
	switch f {
	case FormatS8Uint, FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// IsColor is true for anything that is neither depth nor stencil.
func (f Format) IsColor() bool {
	return !f.IsDepth() && !f.IsStencil()
}

// AspectMask derives the view aspect from the format.
func (f Format) AspectMask() ImageAspectFlags {
	var aspect ImageAspectFlags
	if f.IsDepth() {
		aspect |= ImageAspectDepthBit
	}
	if f.IsStencil() {
		aspect |= ImageAspectStencilBit
	}
	if aspect == 0 {
		aspect = ImageAspectColorBit
	}
	return aspect
}

// ParseFormat accepts a format name as printed by String, or a raw number.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatUndefined, nil
	}
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Format(n), nil
	}
	return FormatUndefined, fmt.Errorf("unknown format %q", s)
}

// ColorSpace is the presentation color space of a surface format.
type ColorSpace int32

// Color spaces.
const (
	ColorSpaceSrgbNonlinear         ColorSpace = 0
	ColorSpaceDisplayP3Nonlinear    ColorSpace = 1000104001
	ColorSpaceExtendedSrgbLinear    ColorSpace = 1000104002
	ColorSpaceDisplayP3Linear       ColorSpace = 1000104003
	ColorSpaceBt709Nonlinear        ColorSpace = 1000104006
	ColorSpaceHdr10St2084           ColorSpace = 1000104008
	ColorSpacePassThrough           ColorSpace = 1000104013
	ColorSpaceExtendedSrgbNonlinear ColorSpace = 1000104014
)

var colorSpaceNames = map[ColorSpace]string{
	ColorSpaceSrgbNonlinear:         "srgb_nonlinear",
	ColorSpaceDisplayP3Nonlinear:    "display_p3_nonlinear",
	ColorSpaceExtendedSrgbLinear:    "extended_srgb_linear",
	ColorSpaceDisplayP3Linear:       "display_p3_linear",
	ColorSpaceBt709Nonlinear:        "bt709_nonlinear",
	ColorSpaceHdr10St2084:           "hdr10_st2084",
	ColorSpacePassThrough:           "pass_through",
	ColorSpaceExtendedSrgbNonlinear: "extended_srgb_nonlinear",
}

func (c ColorSpace) String() string {
	if name, ok := colorSpaceNames[c]; ok {
		return name
	}
	return "colorspace(" + strconv.Itoa(int(c)) + ")"
}

// ParseColorSpace accepts a color space name as printed by String. The
// empty string is sRGB nonlinear.
func ParseColorSpace(s string) (ColorSpace, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ColorSpaceSrgbNonlinear, nil
	}
	for c, name := range colorSpaceNames {
		if name == s {
			return c, nil
		}
	}
	return ColorSpaceSrgbNonlinear, fmt.Errorf("unknown color space %q", s)
}

// SurfaceFormat pairs a format with the color space it is presented in.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
