// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkpresent/gfx"
)

func TestFormatClassification(t *testing.T) {
	c := qt.New(t)

	depth := []gfx.Format{
		gfx.FormatD16Unorm, gfx.FormatD16UnormS8Uint, gfx.FormatD24UnormS8Uint,
		gfx.FormatD32Sfloat, gfx.FormatD32SfloatS8Uint, gfx.FormatX8D24UnormPack32,
	}
	for _, f := range depth {
		c.Assert(f.IsDepth(), qt.IsTrue, qt.Commentf("%s", f))
		c.Assert(f.IsColor(), qt.IsFalse, qt.Commentf("%s", f))
	}

	stencil := []gfx.Format{
		gfx.FormatS8Uint, gfx.FormatD16UnormS8Uint, gfx.FormatD24UnormS8Uint, gfx.FormatD32SfloatS8Uint,
	}
	for _, f := range stencil {
		c.Assert(f.IsStencil(), qt.IsTrue, qt.Commentf("%s", f))
	}

	c.Assert(gfx.FormatD32Sfloat.IsStencil(), qt.IsFalse)
	c.Assert(gfx.FormatS8Uint.IsDepth(), qt.IsFalse)
	c.Assert(gfx.FormatB8g8r8a8Srgb.IsColor(), qt.IsTrue)
}

func TestFormatAspectMask(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.FormatB8g8r8a8Unorm.AspectMask(), qt.Equals, gfx.ImageAspectColorBit)
	c.Assert(gfx.FormatD32Sfloat.AspectMask(), qt.Equals, gfx.ImageAspectDepthBit)
	c.Assert(gfx.FormatS8Uint.AspectMask(), qt.Equals, gfx.ImageAspectStencilBit)
	c.Assert(gfx.FormatD24UnormS8Uint.AspectMask(), qt.Equals, gfx.ImageAspectDepthBit|gfx.ImageAspectStencilBit)
}

func TestParseFormat(t *testing.T) {
	c := qt.New(t)

	f, err := gfx.ParseFormat("B8G8R8A8_SRGB")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, gfx.FormatB8g8r8a8Srgb)

	f, err = gfx.ParseFormat("")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, gfx.FormatUndefined)

	f, err = gfx.ParseFormat("1000")
	c.Assert(err, qt.IsNil)
	c.Assert(f, qt.Equals, gfx.Format(1000))

	_, err = gfx.ParseFormat("rgb_magic")
	c.Assert(err, qt.ErrorMatches, `unknown format "rgb_magic"`)
}

func TestParsePresentMode(t *testing.T) {
	c := qt.New(t)
	for _, mode := range []gfx.PresentMode{
		gfx.PresentModeImmediate, gfx.PresentModeMailbox, gfx.PresentModeFifo, gfx.PresentModeFifoRelaxed,
	} {
		parsed, err := gfx.ParsePresentMode(mode.String())
		c.Assert(err, qt.IsNil)
		c.Assert(parsed, qt.Equals, mode)
	}
	_, err := gfx.ParsePresentMode("vsync")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSampleCountHighest(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.SampleCountFlags(0).Highest(), qt.Equals, gfx.SampleCountFlags(0))
	c.Assert((gfx.SampleCount4Bit | gfx.SampleCount8Bit).Highest(), qt.Equals, gfx.SampleCount8Bit)
	c.Assert((gfx.SampleCount1Bit | gfx.SampleCount2Bit).Highest(), qt.Equals, gfx.SampleCount2Bit)
	c.Assert(gfx.SampleCount16Bit.Samples(), qt.Equals, 16)
}

func TestSampleCountFromInt(t *testing.T) {
	c := qt.New(t)
	s, err := gfx.SampleCountFromInt(8)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, gfx.SampleCount8Bit)

	s, err = gfx.SampleCountFromInt(0)
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, gfx.SampleCountFlags(0))

	_, err = gfx.SampleCountFromInt(3)
	c.Assert(err, qt.ErrorMatches, "invalid sample count 3")
	_, err = gfx.SampleCountFromInt(128)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestExtentClamp(t *testing.T) {
	c := qt.New(t)
	min := gfx.Extent2D{Width: 16, Height: 16}
	max := gfx.Extent2D{Width: 1920, Height: 1080}

	c.Assert(gfx.Extent2D{Width: 8, Height: 4000}.Clamp(min, max), qt.Equals, gfx.Extent2D{Width: 16, Height: 1080})
	c.Assert(gfx.Extent2D{Width: 800, Height: 600}.Clamp(min, max), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(gfx.Extent2D{Width: 800}.Empty(), qt.IsTrue)
}

func TestClampImageCount(t *testing.T) {
	c := qt.New(t)
	unbounded := gfx.SurfaceCapabilities{MinImageCount: 2}
	c.Assert(unbounded.ClampImageCount(1), qt.Equals, uint32(2))
	c.Assert(unbounded.ClampImageCount(9), qt.Equals, uint32(9))

	bounded := gfx.SurfaceCapabilities{MinImageCount: 1, MaxImageCount: 2}
	c.Assert(bounded.ClampImageCount(3), qt.Equals, uint32(2))
}

func TestVersion(t *testing.T) {
	c := qt.New(t)
	v := gfx.MakeVersion(1, 3, 250)
	c.Assert(v.Major(), qt.Equals, uint32(1))
	c.Assert(v.Minor(), qt.Equals, uint32(3))
	c.Assert(v.Patch(), qt.Equals, uint32(250))
	c.Assert(v.String(), qt.Equals, "1.3.250")
	c.Assert(v >= gfx.Version13, qt.IsTrue)
	c.Assert(gfx.Version12 < gfx.Version13, qt.IsTrue)
}

func TestResultError(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.ErrorOutOfDate.Err(), qt.Equals, error(gfx.ErrorOutOfDate))
	c.Assert(gfx.Suboptimal.Err(), qt.IsNil)
	c.Assert(gfx.Timeout.IsError(), qt.IsFalse)
	c.Assert(gfx.ErrorSurfaceLost.Error(), qt.Equals, "surface lost")
	c.Assert(gfx.Result(-99).Error(), qt.Equals, "result -99")
}

func TestQueueFlags(t *testing.T) {
	c := qt.New(t)
	f := gfx.QueueGraphicsBit | gfx.QueueComputeBit | gfx.QueuePresentBit
	c.Assert(f.Contains(gfx.QueueGraphicsBit|gfx.QueuePresentBit), qt.IsTrue)
	c.Assert(f.Contains(gfx.QueueTransferBit), qt.IsFalse)
	c.Assert(f.Count(), qt.Equals, 3)
	c.Assert(f.String(), qt.Equals, "graphics|compute|present")
}
