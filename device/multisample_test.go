// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
)

type sampleCounts struct {
	supported gfx.SampleCountFlags
	err       error
	calls     int
}

func (s *sampleCounts) ImageFormatSampleCounts(gfx.Format, gfx.ImageUsageFlags) (gfx.SampleCountFlags, error) {
	s.calls++
	return s.supported, s.err
}

func msaaRequest(samples gfx.SampleCountFlags) device.MultisampleRequest {
	return device.MultisampleRequest{
		Samples:   samples,
		Format:    gfx.FormatB8g8r8a8Srgb,
		Extent:    gfx.Extent2D{Width: 640, Height: 480},
		MipLevels: 1,
		Usage:     gfx.ImageUsageTransientAttachmentBit | gfx.ImageUsageColorAttachmentBit,
	}
}

func TestMultisampleHighestCommon(t *testing.T) {
	c := qt.New(t)

	q := &sampleCounts{supported: gfx.SampleCount1Bit | gfx.SampleCount2Bit | gfx.SampleCount4Bit}
	desc, ok, err := device.QueryMultisampleSupport(q, msaaRequest(gfx.SampleCount4Bit|gfx.SampleCount8Bit))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(desc, qt.Equals, device.ImageDescriptor{
		Format:      gfx.FormatB8g8r8a8Srgb,
		Extent:      gfx.Extent3D{Width: 640, Height: 480, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     gfx.SampleCount4Bit,
		Usage:       gfx.ImageUsageTransientAttachmentBit | gfx.ImageUsageColorAttachmentBit,
	})
}

func TestMultisampleSkipsUnrequested(t *testing.T) {
	c := qt.New(t)

	q := &sampleCounts{supported: gfx.SampleCount1Bit | gfx.SampleCount4Bit | gfx.SampleCount8Bit}
	desc, ok, err := device.QueryMultisampleSupport(q, msaaRequest(gfx.SampleCount2Bit|gfx.SampleCount4Bit|gfx.SampleCount16Bit))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	c.Assert(desc.Samples, qt.Equals, gfx.SampleCount4Bit)
}

func TestMultisampleSingleSampleIsNone(t *testing.T) {
	c := qt.New(t)

	q := &sampleCounts{supported: gfx.SampleCount1Bit | gfx.SampleCount4Bit}
	for _, samples := range []gfx.SampleCountFlags{0, gfx.SampleCount1Bit} {
		_, ok, err := device.QueryMultisampleSupport(q, msaaRequest(samples))
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
	}
	c.Assert(q.calls, qt.Equals, 0)

	_, ok, err := device.QueryMultisampleSupport(q, msaaRequest(gfx.SampleCount1Bit|gfx.SampleCount8Bit))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestMultisampleUnsupported(t *testing.T) {
	c := qt.New(t)

	q := &sampleCounts{supported: gfx.SampleCount1Bit | gfx.SampleCount2Bit}
	_, ok, err := device.QueryMultisampleSupport(q, msaaRequest(gfx.SampleCount8Bit|gfx.SampleCount16Bit))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	q.err = errors.New("format not supported")
	_, _, err = device.QueryMultisampleSupport(q, msaaRequest(gfx.SampleCount4Bit))
	c.Assert(err, qt.ErrorMatches, "sample counts of .*: format not supported")
}
