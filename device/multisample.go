// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"fmt"

	"github.com/devblok/vkpresent/gfx"
)

// MultisampleRequest describes a wanted multisample image. Samples is
// the set of acceptable sample counts.
type MultisampleRequest struct {
	Samples   gfx.SampleCountFlags
	Format    gfx.Format
	Extent    gfx.Extent2D
	MipLevels uint32
	Usage     gfx.ImageUsageFlags
}

// ImageDescriptor describes a 2D optimally tiled image to create.
type ImageDescriptor struct {
	Format      gfx.Format
	Extent      gfx.Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	Samples     gfx.SampleCountFlags
	Usage       gfx.ImageUsageFlags
}

// QueryMultisampleSupport finds the highest requested sample count the
// device supports for the request's format and usage. It reports false
// when only single sampling is requested or the best common count is a
// single sample: a 1x image is never returned as a multisample target,
// so callers render straight to the swapchain image in that case.
func QueryMultisampleSupport(q SampleCountQuerier, req MultisampleRequest) (ImageDescriptor, bool, error) {
	if req.Samples == 0 || req.Samples == gfx.SampleCount1Bit {
		return ImageDescriptor{}, false, nil
	}

	supported, err := q.ImageFormatSampleCounts(req.Format, req.Usage)
	if err != nil {
		return ImageDescriptor{}, false, fmt.Errorf("sample counts of %s: %w", req.Format, err)
	}
	if supported&req.Samples == 0 {
		return ImageDescriptor{}, false, nil
	}

	samples := req.Samples.Highest()
	for samples != 0 && (samples&req.Samples == 0 || samples&supported == 0) {
		samples >>= 1
	}
	if samples <= gfx.SampleCount1Bit {
		return ImageDescriptor{}, false, nil
	}

	return ImageDescriptor{
		Format:      req.Format,
		Extent:      req.Extent.Depth1(),
		MipLevels:   req.MipLevels,
		ArrayLayers: 1,
		Samples:     samples,
		Usage:       req.Usage,
	}, true, nil
}
