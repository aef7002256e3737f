// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device selects physical devices and queue families for
// presentation, independent of the graphics backend.
package device

import (
	"github.com/devblok/vkpresent/gfx"
)

// Properties are the static properties of a physical device.
type Properties struct {
	Name                 string
	Type                 gfx.DeviceType
	APIVersion           gfx.Version
	DriverVersion        uint32
	VendorID             uint32
	DeviceID             uint32
	MaxPushConstantsSize uint32
}

// QueueFamily is one queue family as reported by the device.
type QueueFamily struct {
	Index      uint32
	Flags      gfx.QueueFlags
	QueueCount uint32
}

// SampleCountQuerier reports the sample counts a device supports for
// 2D optimally tiled images of a format and usage.
type SampleCountQuerier interface {
	ImageFormatSampleCounts(format gfx.Format, usage gfx.ImageUsageFlags) (gfx.SampleCountFlags, error)
}

// PhysicalDevice describes a non-concrete rendering device
type PhysicalDevice interface {
	SampleCountQuerier

	// Properties returns the static device properties
	Properties() Properties

	// Extensions lists the device extensions
	Extensions() ([]string, error)

	// QueryFeatures reports hardware support for at least the
	// features set in req
	QueryFeatures(req Features) Features

	// QueueFamilies returns the queue families in index order
	QueueFamilies() []QueueFamily

	// SurfaceSupport tells if the family can present to surface
	SurfaceSupport(family uint32, surface gfx.Surface) (bool, error)
}

// Info describes available physical properties of a rendering device
type Info struct {
	Name                 string            `json:"name"`
	Type                 string            `json:"type"`
	APIVersion           string            `json:"apiVersion"`
	DriverVersion        uint32            `json:"driverVersion"`
	VendorID             uint32            `json:"vendorId"`
	DeviceID             uint32            `json:"deviceId"`
	MaxPushConstantsSize uint32            `json:"maxPushConstantsSize"`
	Invalid              bool              `json:"invalid,omitempty"`
	Extensions           []string          `json:"extensions,omitempty"`
	Features             []string          `json:"features"`
	QueueFamilies        []QueueFamilyInfo `json:"queueFamilies"`
}

// QueueFamilyInfo is the report form of a classified queue family
type QueueFamilyInfo struct {
	Index uint32 `json:"index"`
	Flags string `json:"flags"`
	Count uint32 `json:"count"`
}

// Describe collects an Info for pd. Features are probed against every
// known feature. A zero surface skips presentation checks.
func Describe(pd PhysicalDevice, surface gfx.Surface) Info {
	props := pd.Properties()
	info := Info{
		Name:                 props.Name,
		Type:                 props.Type.String(),
		APIVersion:           props.APIVersion.String(),
		DriverVersion:        props.DriverVersion,
		VendorID:             props.VendorID,
		DeviceID:             props.DeviceID,
		MaxPushConstantsSize: props.MaxPushConstantsSize,
		Features:             QueryFeatureSupport(pd, AllFeatures).Names(),
	}

	if ext, err := pd.Extensions(); err != nil {
		info.Invalid = true
	} else {
		info.Extensions = ext
	}

	families, err := ClassifyQueueFamilies(pd, surface)
	if err != nil {
		info.Invalid = true
	}
	for _, f := range families.Families {
		info.QueueFamilies = append(info.QueueFamilies, QueueFamilyInfo{
			Index: f.Index,
			Flags: f.Flags.String(),
			Count: f.QueueCount,
		})
	}
	return info
}
