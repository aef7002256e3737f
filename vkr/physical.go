// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/swapchain"
)

// PhysicalDevice is a Vulkan physical device. Static properties are
// read once when the device is enumerated.
type PhysicalDevice struct {
	handle      vk.PhysicalDevice
	procs       *instanceProcs
	props       device.Properties
	families    []device.QueueFamily
	memoryTypes []MemoryType

	extensions core.ExtensionSet
	extList    []string
	extErr     error
}

var (
	_ device.PhysicalDevice = (*PhysicalDevice)(nil)
	_ swapchain.Physical    = (*PhysicalDevice)(nil)
)

func newPhysicalDevice(handle vk.PhysicalDevice, procs *instanceProcs) *PhysicalDevice {
	p := &PhysicalDevice{handle: handle, procs: procs}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(handle, &props)
	props.Deref()
	props.Limits.Deref()
	p.props = device.Properties{
		Name:                 vk.ToString(props.DeviceName[:]),
		Type:                 gfx.DeviceType(props.DeviceType),
		APIVersion:           gfx.Version(props.ApiVersion),
		DriverVersion:        props.DriverVersion,
		VendorID:             props.VendorID,
		DeviceID:             props.DeviceID,
		MaxPushConstantsSize: props.Limits.MaxPushConstantsSize,
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, families)
	for i := range families[:count] {
		families[i].Deref()
		p.families = append(p.families, device.QueueFamily{
			Index:      uint32(i),
			Flags:      gfx.QueueFlags(families[i].QueueFlags),
			QueueCount: families[i].QueueCount,
		})
	}

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(handle, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
		p.memoryTypes = append(p.memoryTypes, MemoryType{
			Flags: memProperties.MemoryTypes[idx].PropertyFlags,
			Heap:  memProperties.MemoryTypes[idx].HeapIndex,
		})
	}

	p.extList, p.extErr = enumerateDeviceExtensions(handle)
	p.extensions = core.NewExtensionSet(p.extList...)
	return p
}

func enumerateDeviceExtensions(handle vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(handle, "", &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceExtensionProperties(): %w", err)
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(handle, "", &count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateDeviceExtensionProperties(): %w", err)
	}
	names := make([]string, 0, count)
	for _, ext := range props[:count] {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// Handle returns the Vulkan handle.
func (p *PhysicalDevice) Handle() vk.PhysicalDevice { return p.handle }

// Properties implements device.PhysicalDevice.
func (p *PhysicalDevice) Properties() device.Properties { return p.props }

// Extensions implements device.PhysicalDevice.
func (p *PhysicalDevice) Extensions() ([]string, error) {
	return append([]string(nil), p.extList...), p.extErr
}

func (p *PhysicalDevice) hasExtension(name string) bool {
	return p.extensions.IsExtensionEnabled(name)
}

// QueueFamilies implements device.PhysicalDevice.
func (p *PhysicalDevice) QueueFamilies() []device.QueueFamily {
	return append([]device.QueueFamily(nil), p.families...)
}

// MemoryTypes lists the memory types in index order.
func (p *PhysicalDevice) MemoryTypes() []MemoryType {
	return append([]MemoryType(nil), p.memoryTypes...)
}

// SurfaceSupport implements device.PhysicalDevice.
func (p *PhysicalDevice) SurfaceSupport(family uint32, surface gfx.Surface) (bool, error) {
	var supported vk.Bool32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(p.handle, family, vkSurface(surface), &supported)); err != nil {
		return false, fmt.Errorf("vk.GetPhysicalDeviceSurfaceSupport(): %w", err)
	}
	return supported.B(), nil
}

// ImageFormatSampleCounts implements device.SampleCountQuerier. An
// unsupported format or usage has no sample counts.
func (p *PhysicalDevice) ImageFormatSampleCounts(format gfx.Format, usage gfx.ImageUsageFlags) (gfx.SampleCountFlags, error) {
	var props vk.ImageFormatProperties
	res := vk.GetPhysicalDeviceImageFormatProperties(p.handle, vk.Format(format), vk.ImageType2d,
		vk.ImageTilingOptimal, vk.ImageUsageFlags(usage), 0, &props)
	switch res {
	case vk.Success:
	case vk.ErrorFormatNotSupported:
		return 0, nil
	default:
		return 0, fmt.Errorf("vk.GetPhysicalDeviceImageFormatProperties(): %w", vk.Error(res))
	}
	props.Deref()
	return gfx.SampleCountFlags(props.SampleCounts), nil
}

// SurfaceCapabilities implements swapchain.Physical.
func (p *PhysicalDevice) SurfaceCapabilities(surface gfx.Surface) (gfx.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(p.handle, vkSurface(surface), &caps)); err != nil {
		return gfx.SurfaceCapabilities{}, fmt.Errorf("vk.GetPhysicalDeviceSurfaceCapabilities(): %w", err)
	}
	caps.Deref()
	return surfaceCapabilities(caps), nil
}

func surfaceCapabilities(caps vk.SurfaceCapabilities) gfx.SurfaceCapabilities {
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gfx.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		SupportedCompositeAlpha: gfx.CompositeAlphaFlags(caps.SupportedCompositeAlpha),
		CurrentTransform:        gfx.SurfaceTransformFlags(caps.CurrentTransform),
	}
}

func extent(e vk.Extent2D) gfx.Extent2D {
	return gfx.Extent2D{Width: e.Width, Height: e.Height}
}

// SurfaceFormats implements swapchain.Physical.
func (p *PhysicalDevice) SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.handle, vkSurface(surface), &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.GetPhysicalDeviceSurfaceFormats(): %w", err)
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.handle, vkSurface(surface), &count, formats)); err != nil {
		return nil, fmt.Errorf("vk.GetPhysicalDeviceSurfaceFormats(): %w", err)
	}
	out := make([]gfx.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, gfx.SurfaceFormat{
			Format:     gfx.Format(f.Format),
			ColorSpace: gfx.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

// SurfacePresentModes implements swapchain.Physical.
func (p *PhysicalDevice) SurfacePresentModes(surface gfx.Surface) ([]gfx.PresentMode, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.handle, vkSurface(surface), &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.GetPhysicalDeviceSurfacePresentModes(): %w", err)
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.handle, vkSurface(surface), &count, modes)); err != nil {
		return nil, fmt.Errorf("vk.GetPhysicalDeviceSurfacePresentModes(): %w", err)
	}
	out := make([]gfx.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, gfx.PresentMode(m))
	}
	return out, nil
}
