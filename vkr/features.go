// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
)

// Device extensions backing the extension features.
const (
	AccelerationStructureExtension     = "VK_KHR_acceleration_structure"
	RayTracingPipelineExtension        = "VK_KHR_ray_tracing_pipeline"
	RayQueryExtension                  = "VK_KHR_ray_query"
	DeferredHostOperationsExtension    = "VK_KHR_deferred_host_operations"
	PageableDeviceLocalMemoryExtension = "VK_EXT_pageable_device_local_memory"
	MemoryPriorityExtension            = "VK_EXT_memory_priority"
)

const (
	structureTypeVulkan12Features              vk.StructureType = 51
	structureTypeVulkan13Features              vk.StructureType = 53
	structureTypeAccelerationStructureFeatures vk.StructureType = 1000150013
	structureTypeRayTracingPipelineFeatures    vk.StructureType = 1000347000
	structureTypeRayTracingPipelineProperties  vk.StructureType = 1000347001
	structureTypeRayQueryFeatures              vk.StructureType = 1000348013
	structureTypePageableMemoryFeatures        vk.StructureType = 1000412000
)

// Positions of the used members in the core feature structures.
const (
	vulkan12DescriptorIndexing  = 9
	vulkan12BufferDeviceAddress = 38
	vulkan13Synchronization2    = 9
	vulkan13DynamicRendering    = 12
)

// The structures below mirror the C layout of their Vulkan
// counterparts: a structure type, the next pointer, then members.

type vulkan12Features struct {
	sType    vk.StructureType
	pNext    unsafe.Pointer
	features [47]vk.Bool32
}

type vulkan13Features struct {
	sType    vk.StructureType
	pNext    unsafe.Pointer
	features [15]vk.Bool32
}

type accelerationStructureFeatures struct {
	sType                 vk.StructureType
	pNext                 unsafe.Pointer
	accelerationStructure vk.Bool32
	captureReplay         vk.Bool32
	indirectBuild         vk.Bool32
	hostCommands          vk.Bool32
	updateAfterBind       vk.Bool32
}

type rayTracingPipelineFeatures struct {
	sType              vk.StructureType
	pNext              unsafe.Pointer
	rayTracingPipeline vk.Bool32
	captureReplay      vk.Bool32
	captureReplayMixed vk.Bool32
	traceRaysIndirect  vk.Bool32
	primitiveCulling   vk.Bool32
}

type rayQueryFeatures struct {
	sType    vk.StructureType
	pNext    unsafe.Pointer
	rayQuery vk.Bool32
}

type pageableMemoryFeatures struct {
	sType    vk.StructureType
	pNext    unsafe.Pointer
	pageable vk.Bool32
}

// featureChain is a pNext chain of feature structures in C memory.
// Only the structures needed for the requested features are linked,
// and only when the device can understand them.
type featureChain struct {
	v12      *vulkan12Features
	v13      *vulkan13Features
	as       *accelerationStructureFeatures
	rt       *rayTracingPipelineFeatures
	rq       *rayQueryFeatures
	pageable *pageableMemoryFeatures

	head  unsafe.Pointer
	links []*unsafe.Pointer
	owned []unsafe.Pointer
}

func newFeatureChain(req device.Features, version gfx.Version, hasExtension func(string) bool) *featureChain {
	c := &featureChain{}
	if version >= gfx.Version12 && (req.BufferDeviceAddress || req.DescriptorIndexing) {
		c.v12 = calloc[vulkan12Features]()
		c.v12.sType = structureTypeVulkan12Features
		c.link(unsafe.Pointer(c.v12), &c.v12.pNext)
	}
	if version >= gfx.Version13 && (req.DynamicRendering || req.Synchronization2) {
		c.v13 = calloc[vulkan13Features]()
		c.v13.sType = structureTypeVulkan13Features
		c.link(unsafe.Pointer(c.v13), &c.v13.pNext)
	}
	if req.AccelerationStructure && hasExtension(AccelerationStructureExtension) {
		c.as = calloc[accelerationStructureFeatures]()
		c.as.sType = structureTypeAccelerationStructureFeatures
		c.link(unsafe.Pointer(c.as), &c.as.pNext)
	}
	if req.RayTracing && hasExtension(RayTracingPipelineExtension) {
		c.rt = calloc[rayTracingPipelineFeatures]()
		c.rt.sType = structureTypeRayTracingPipelineFeatures
		c.link(unsafe.Pointer(c.rt), &c.rt.pNext)
	}
	if req.RayQuery && hasExtension(RayQueryExtension) {
		c.rq = calloc[rayQueryFeatures]()
		c.rq.sType = structureTypeRayQueryFeatures
		c.link(unsafe.Pointer(c.rq), &c.rq.pNext)
	}
	if req.PageableDeviceLocalMemory && hasExtension(PageableDeviceLocalMemoryExtension) {
		c.pageable = calloc[pageableMemoryFeatures]()
		c.pageable.sType = structureTypePageableMemoryFeatures
		c.link(unsafe.Pointer(c.pageable), &c.pageable.pNext)
	}
	return c
}

// link prepends s, whose next pointer is at next. The chain owns s
// from then on.
func (c *featureChain) link(s unsafe.Pointer, next *unsafe.Pointer) {
	*next = c.head
	c.head = s
	c.links = append(c.links, next)
	c.owned = append(c.owned, s)
}

// enable sets the requested features that the chain can carry.
func (c *featureChain) enable(req device.Features) {
	if c.v12 != nil {
		c.v12.features[vulkan12BufferDeviceAddress] = bool32(req.BufferDeviceAddress)
		c.v12.features[vulkan12DescriptorIndexing] = bool32(req.DescriptorIndexing)
	}
	if c.v13 != nil {
		c.v13.features[vulkan13DynamicRendering] = bool32(req.DynamicRendering)
		c.v13.features[vulkan13Synchronization2] = bool32(req.Synchronization2)
	}
	if c.as != nil {
		c.as.accelerationStructure = vk.True
	}
	if c.rt != nil {
		c.rt.rayTracingPipeline = vk.True
	}
	if c.rq != nil {
		c.rq.rayQuery = vk.True
	}
	if c.pageable != nil {
		c.pageable.pageable = vk.True
	}
}

// features reads back what the driver reported.
func (c *featureChain) features() device.Features {
	var f device.Features
	if c.v12 != nil {
		f.BufferDeviceAddress = c.v12.features[vulkan12BufferDeviceAddress] == vk.True
		f.DescriptorIndexing = c.v12.features[vulkan12DescriptorIndexing] == vk.True
	}
	if c.v13 != nil {
		f.DynamicRendering = c.v13.features[vulkan13DynamicRendering] == vk.True
		f.Synchronization2 = c.v13.features[vulkan13Synchronization2] == vk.True
	}
	if c.as != nil {
		f.AccelerationStructure = c.as.accelerationStructure == vk.True
	}
	if c.rt != nil {
		f.RayTracing = c.rt.rayTracingPipeline == vk.True
	}
	if c.rq != nil {
		f.RayQuery = c.rq.rayQuery == vk.True
	}
	if c.pageable != nil {
		f.PageableDeviceLocalMemory = c.pageable.pageable == vk.True
	}
	return f
}

// unlink clears every next pointer so no structure refers to another.
func (c *featureChain) unlink() {
	for _, next := range c.links {
		*next = nil
	}
	c.head = nil
}

// free unlinks and releases the structures.
func (c *featureChain) free() {
	c.unlink()
	for _, s := range c.owned {
		free(s)
	}
	*c = featureChain{}
}

// featureExtensions lists the device extensions that must be enabled
// along with req.
func featureExtensions(req device.Features) []string {
	var ext []string
	if req.AccelerationStructure {
		ext = append(ext, AccelerationStructureExtension, DeferredHostOperationsExtension)
	}
	if req.RayTracing {
		ext = append(ext, RayTracingPipelineExtension)
	}
	if req.RayQuery {
		ext = append(ext, RayQueryExtension)
	}
	if req.PageableDeviceLocalMemory {
		ext = append(ext, MemoryPriorityExtension, PageableDeviceLocalMemoryExtension)
	}
	return ext
}

// RayTracingProperties are the ray tracing pipeline limits of a device.
type RayTracingProperties struct {
	ShaderGroupHandleSize              uint32
	MaxRayRecursionDepth               uint32
	MaxShaderGroupStride               uint32
	ShaderGroupBaseAlignment           uint32
	ShaderGroupHandleCaptureReplaySize uint32
	MaxRayDispatchInvocationCount      uint32
	ShaderGroupHandleAlignment         uint32
	MaxRayHitAttributeSize             uint32
}

type rayTracingPipelineProperties struct {
	sType vk.StructureType
	pNext unsafe.Pointer
	RayTracingProperties
}

// QueryFeatures implements device.PhysicalDevice. Devices older than
// Vulkan 1.1 report nothing.
func (p *PhysicalDevice) QueryFeatures(req device.Features) device.Features {
	if p.props.APIVersion < gfx.Version11 {
		return device.Features{}
	}
	chain := newFeatureChain(req, p.props.APIVersion, p.hasExtension)
	defer chain.free()

	if err := p.queryFeatures2(chain); err != nil {
		log.WithError(err).WithField("device", p.props.Name).Debug("feature query skipped")
		return device.Features{}
	}
	return chain.features()
}

// queryFeatures2 lets the driver fill in every structure on chain.
func (p *PhysicalDevice) queryFeatures2(chain *featureChain) error {
	features := vk.PhysicalDeviceFeatures2{
		SType: vk.StructureTypePhysicalDeviceFeatures2,
		PNext: chain.head,
	}
	ref, _ := features.PassRef()
	defer features.Free()
	return p.procs.physicalDeviceFeatures2(p.handle, unsafe.Pointer(ref))
}

// RayTracingProperties reports the ray tracing pipeline limits. The
// second result is false when the device has no ray tracing support.
func (p *PhysicalDevice) RayTracingProperties() (RayTracingProperties, bool) {
	if !device.SupportsRayTracing(device.QueryFeatureSupport(p, device.RayTracingFeatures)) {
		return RayTracingProperties{}, false
	}

	rt := calloc[rayTracingPipelineProperties]()
	defer free(unsafe.Pointer(rt))
	rt.sType = structureTypeRayTracingPipelineProperties

	props := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafe.Pointer(rt),
	}
	ref, _ := props.PassRef()
	defer props.Free()
	if err := p.procs.physicalDeviceProperties2(p.handle, unsafe.Pointer(ref)); err != nil {
		return RayTracingProperties{}, false
	}
	return rt.RayTracingProperties, true
}
