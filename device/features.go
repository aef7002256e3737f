// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"fmt"
	"strings"
)

// Features is a set of optional hardware capabilities. It is used both
// to request and to report support.
type Features struct {
	AccelerationStructure     bool `json:"accelerationStructure,omitempty"`
	BufferDeviceAddress       bool `json:"bufferDeviceAddress,omitempty"`
	DescriptorIndexing        bool `json:"descriptorIndexing,omitempty"`
	DynamicRendering          bool `json:"dynamicRendering,omitempty"`
	PageableDeviceLocalMemory bool `json:"pageableDeviceLocalMemory,omitempty"`
	RayQuery                  bool `json:"rayQuery,omitempty"`
	RayTracing                bool `json:"rayTracing,omitempty"`
	Synchronization2          bool `json:"synchronization2,omitempty"`
}

// AllFeatures requests every known feature.
var AllFeatures = Features{
	AccelerationStructure:     true,
	BufferDeviceAddress:       true,
	DescriptorIndexing:        true,
	DynamicRendering:          true,
	PageableDeviceLocalMemory: true,
	RayQuery:                  true,
	RayTracing:                true,
	Synchronization2:          true,
}

// RayTracingFeatures are the features needed for hardware ray tracing.
var RayTracingFeatures = Features{
	AccelerationStructure: true,
	RayQuery:              true,
	RayTracing:            true,
}

func (f *Features) fields() []struct {
	name string
	v    *bool
} {
	return []struct {
		name string
		v    *bool
	}{
		{"acceleration_structure", &f.AccelerationStructure},
		{"buffer_device_address", &f.BufferDeviceAddress},
		{"descriptor_indexing", &f.DescriptorIndexing},
		{"dynamic_rendering", &f.DynamicRendering},
		{"pageable_device_local_memory", &f.PageableDeviceLocalMemory},
		{"ray_query", &f.RayQuery},
		{"ray_tracing", &f.RayTracing},
		{"synchronization2", &f.Synchronization2},
	}
}

// ContainsMask is true if every feature set in mask is also set in f.
func (f Features) ContainsMask(mask Features) bool {
	return mask.Intersect(f) == mask
}

// Intersect keeps the features set in both.
func (f Features) Intersect(other Features) Features {
	return Features{
		AccelerationStructure:     f.AccelerationStructure && other.AccelerationStructure,
		BufferDeviceAddress:       f.BufferDeviceAddress && other.BufferDeviceAddress,
		DescriptorIndexing:        f.DescriptorIndexing && other.DescriptorIndexing,
		DynamicRendering:          f.DynamicRendering && other.DynamicRendering,
		PageableDeviceLocalMemory: f.PageableDeviceLocalMemory && other.PageableDeviceLocalMemory,
		RayQuery:                  f.RayQuery && other.RayQuery,
		RayTracing:                f.RayTracing && other.RayTracing,
		Synchronization2:          f.Synchronization2 && other.Synchronization2,
	}
}

// Names lists the set features.
func (f Features) Names() []string {
	names := []string{}
	for _, field := range f.fields() {
		if *field.v {
			names = append(names, field.name)
		}
	}
	return names
}

func (f Features) String() string {
	return "[" + strings.Join(f.Names(), " ") + "]"
}

// ParseFeatures builds a feature set from names as listed by Names.
func ParseFeatures(names []string) (Features, error) {
	var f Features
	fields := f.fields()
Names:
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		for _, field := range fields {
			if field.name == name {
				*field.v = true
				continue Names
			}
		}
		return Features{}, fmt.Errorf("unknown feature %q", name)
	}
	return f, nil
}

// QueryFeatureSupport probes pd for the requested features. Requested
// features report actual support, all others are false.
func QueryFeatureSupport(pd PhysicalDevice, req Features) Features {
	return pd.QueryFeatures(req).Intersect(req)
}

// SupportsRayTracing is true when every ray tracing feature is present.
func SupportsRayTracing(f Features) bool {
	return f.ContainsMask(RayTracingFeatures)
}
