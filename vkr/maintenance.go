// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/gfx"
)

const (
	structureTypeSurfacePresentMode              vk.StructureType = 1000274000
	structureTypeSwapchainPresentFenceInfo       vk.StructureType = 1000275001
	structureTypeSwapchainPresentModesCreateInfo vk.StructureType = 1000275002
)

type surfacePresentMode struct {
	sType       vk.StructureType
	pNext       unsafe.Pointer
	presentMode vk.PresentMode
}

type swapchainPresentFenceInfo struct {
	sType          vk.StructureType
	pNext          unsafe.Pointer
	swapchainCount uint32
	pFences        *vk.Fence
}

type swapchainPresentModesCreateInfo struct {
	sType            vk.StructureType
	pNext            unsafe.Pointer
	presentModeCount uint32
	pPresentModes    *vk.PresentMode
}

// PresentModeCapabilities implements swapchain.Physical using the
// surface maintenance query for a single present mode.
func (p *PhysicalDevice) PresentModeCapabilities(surface gfx.Surface, mode gfx.PresentMode) (gfx.SurfaceCapabilities, error) {
	pm := calloc[surfacePresentMode]()
	defer free(unsafe.Pointer(pm))
	pm.sType = structureTypeSurfacePresentMode
	pm.presentMode = vk.PresentMode(mode)

	info := vk.PhysicalDeviceSurfaceInfo2{
		SType:   vk.StructureTypePhysicalDeviceSurfaceInfo2,
		PNext:   unsafe.Pointer(pm),
		Surface: vkSurface(surface),
	}
	infoRef, _ := info.PassRef()
	defer info.Free()
	caps := vk.SurfaceCapabilities2{
		SType: vk.StructureTypeSurfaceCapabilities2,
	}
	capsRef, _ := caps.PassRef()
	defer caps.Free()

	ret := p.procs.surfaceCapabilities2(p.handle, unsafe.Pointer(infoRef), unsafe.Pointer(capsRef))
	if err := vk.Error(ret); err != nil {
		return gfx.SurfaceCapabilities{}, fmt.Errorf("vkGetPhysicalDeviceSurfaceCapabilities2KHR(): %w", err)
	}
	caps.Deref()
	caps.SurfaceCapabilities.Deref()
	return surfaceCapabilities(caps.SurfaceCapabilities), nil
}

// presentModesInfo builds the list of modes a swapchain may switch
// between. The release func frees it.
func presentModesInfo(modes []gfx.PresentMode) (unsafe.Pointer, func()) {
	if len(modes) == 0 {
		return nil, func() {}
	}
	list := callocSlice[vk.PresentMode](len(modes))
	for i, m := range modes {
		list[i] = vk.PresentMode(m)
	}
	info := calloc[swapchainPresentModesCreateInfo]()
	info.sType = structureTypeSwapchainPresentModesCreateInfo
	info.presentModeCount = uint32(len(list))
	info.pPresentModes = &list[0]
	return unsafe.Pointer(info), func() {
		free(unsafe.Pointer(&list[0]))
		free(unsafe.Pointer(info))
	}
}

// presentFenceInfo attaches fence to a single swapchain present.
func presentFenceInfo(fence gfx.Fence) (unsafe.Pointer, func()) {
	if fence == 0 {
		return nil, func() {}
	}
	fences := calloc[vk.Fence]()
	*fences = vkFence(fence)
	info := calloc[swapchainPresentFenceInfo]()
	info.sType = structureTypeSwapchainPresentFenceInfo
	info.swapchainCount = 1
	info.pFences = fences
	return unsafe.Pointer(info), func() {
		free(unsafe.Pointer(fences))
		free(unsafe.Pointer(info))
	}
}

const structureTypeSwapchainMaintenanceFeatures vk.StructureType = 1000275000

type swapchainMaintenanceFeatures struct {
	sType       vk.StructureType
	pNext       unsafe.Pointer
	maintenance vk.Bool32
}

// linkSwapchainMaintenance adds the swapchain maintenance feature to
// chain, set to enable.
func linkSwapchainMaintenance(chain *featureChain, enable bool) *swapchainMaintenanceFeatures {
	f := calloc[swapchainMaintenanceFeatures]()
	f.sType = structureTypeSwapchainMaintenanceFeatures
	f.maintenance = bool32(enable)
	chain.link(unsafe.Pointer(f), &f.pNext)
	return f
}

// supportsSwapchainMaintenance reports whether present fences and
// present mode switching can be used on the device.
func (p *PhysicalDevice) supportsSwapchainMaintenance() bool {
	if !p.hasExtension(core.SwapchainMaintenance1Extension) || p.props.APIVersion < gfx.Version11 {
		return false
	}
	chain := &featureChain{}
	defer chain.free()
	f := linkSwapchainMaintenance(chain, false)

	if err := p.queryFeatures2(chain); err != nil {
		return false
	}
	return f.maintenance == vk.True
}
