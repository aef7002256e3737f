// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core holds configuration, the instance extension policy and
// the time services shared by the presentation packages.
package core

import "sort"

// Well known extension and layer names.
const (
	SurfaceExtension               = "VK_KHR_surface"
	SwapchainExtension             = "VK_KHR_swapchain"
	SwapchainColorspaceExtension   = "VK_EXT_swapchain_colorspace"
	SurfaceCapabilities2Extension  = "VK_KHR_get_surface_capabilities2"
	SurfaceMaintenance1Extension   = "VK_EXT_surface_maintenance1"
	SwapchainMaintenance1Extension = "VK_EXT_swapchain_maintenance1"
	DebugUtilsExtension            = "VK_EXT_debug_utils"
	ValidationLayer                = "VK_LAYER_KHRONOS_validation"
)

// ExtensionQuery reports whether an extension was enabled when the
// instance was created.
type ExtensionQuery interface {
	IsExtensionEnabled(name string) bool
}

// ExtensionSet is a set of enabled extension names.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds a set from names.
func NewExtensionSet(names ...string) ExtensionSet {
	set := make(ExtensionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// IsExtensionEnabled implements ExtensionQuery.
func (s ExtensionSet) IsExtensionEnabled(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted contents of the set.
func (s ExtensionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
