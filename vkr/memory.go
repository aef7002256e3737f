// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// ErrNoMemoryType is returned when no memory type fits a request.
var ErrNoMemoryType = errors.New("suitable memory type not found")

const structureTypeMemoryDedicatedAllocateInfo vk.StructureType = 1000127001

type memoryDedicatedAllocateInfo struct {
	sType  vk.StructureType
	pNext  unsafe.Pointer
	image  vk.Image
	buffer vk.Buffer
}

// MemoryType is one memory type of a physical device.
type MemoryType struct {
	Flags vk.MemoryPropertyFlags
	Heap  uint32
}

// FindMemoryType returns the first type allowed by filter that has all
// of required and preferred set, or failing that all of required.
func FindMemoryType(types []MemoryType, filter uint32, required, preferred vk.MemoryPropertyFlags) (uint32, error) {
	for _, want := range []vk.MemoryPropertyFlags{required | preferred, required} {
		for idx, t := range types {
			if filter&(1<<uint(idx)) != 0 && t.Flags&want == want {
				return uint32(idx), nil
			}
		}
	}
	return 0, ErrNoMemoryType
}

// locationFlags maps a memory location to required and preferred
// memory properties.
func locationFlags(l gfx.MemoryLocation) (required, preferred vk.MemoryPropertyFlags) {
	switch l {
	case gfx.MemoryLocationCPUToGPU:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	case gfx.MemoryLocationGPUToCPU:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), 0
}

// memory is a live allocation.
type memory struct {
	name   string
	memory vk.DeviceMemory
	size   uint64
	mapped bool
}

// MemoryAllocator is responsible for returning usable memory for any
// resource that may need it. Every allocation gets its own device
// memory object. It is safe for concurrent use.
type MemoryAllocator struct {
	device vk.Device
	types  []MemoryType

	mu     sync.Mutex
	nextID uint64
	live   map[uint64]*memory
}

var _ gfx.Allocator = (*MemoryAllocator)(nil)

// NewMemoryAllocator creates a new memory allocator. Allocates for the
// logical device, reads memory properties of the physical device to
// influence allocation.
func NewMemoryAllocator(d *LogicalDevice) *MemoryAllocator {
	return &MemoryAllocator{
		device: d.handle,
		types:  d.physical.MemoryTypes(),
		live:   make(map[uint64]*memory),
	}
}

// Allocate implements gfx.Allocator. Host visible allocations come
// back mapped.
func (ma *MemoryAllocator) Allocate(req gfx.AllocationRequest) (gfx.Allocation, error) {
	required, preferred := locationFlags(req.Location)
	memTypeIdx, err := FindMemoryType(ma.types, req.Requirements.MemoryTypeBits, required, preferred)
	if err != nil {
		return gfx.Allocation{}, fmt.Errorf("allocate %q (%s): %w", req.Name, req.Location, err)
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(req.Requirements.Size),
		MemoryTypeIndex: memTypeIdx,
	}
	if req.Dedicated != (gfx.DedicatedResource{}) {
		dedicated := calloc[memoryDedicatedAllocateInfo]()
		defer free(unsafe.Pointer(dedicated))
		dedicated.sType = structureTypeMemoryDedicatedAllocateInfo
		dedicated.image = vkImage(req.Dedicated.Image)
		dedicated.buffer = vkBuffer(req.Dedicated.Buffer)
		mai.PNext = unsafe.Pointer(dedicated)
	}

	var mem vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &mem)); err != nil {
		return gfx.Allocation{}, fmt.Errorf("vk.AllocateMemory(): %w", err)
	}

	m := &memory{name: req.Name, memory: mem, size: req.Requirements.Size}
	var mapped unsafe.Pointer
	if ma.types[memTypeIdx].Flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		if err := vk.Error(vk.MapMemory(ma.device, mem, 0, vk.DeviceSize(m.size), 0, &mapped)); err != nil {
			vk.FreeMemory(ma.device, mem, nil)
			return gfx.Allocation{}, fmt.Errorf("vk.MapMemory(): %w", err)
		}
		m.mapped = true
	}

	ma.mu.Lock()
	ma.nextID++
	id := ma.nextID
	ma.live[id] = m
	ma.mu.Unlock()

	log.WithFields(log.Fields{
		"name":     req.Name,
		"size":     m.size,
		"location": req.Location.String(),
		"type":     memTypeIdx,
	}).Debug("memory allocated")

	return gfx.Allocation{
		ID:     id,
		Memory: gfx.DeviceMemory(handle(unsafe.Pointer(mem))),
		Offset: 0,
		Size:   m.size,
		Mapped: mapped,
	}, nil
}

// Free implements gfx.Allocator. The memory is unmapped first if it
// was mapped.
func (ma *MemoryAllocator) Free(a gfx.Allocation) error {
	ma.mu.Lock()
	m, ok := ma.live[a.ID]
	delete(ma.live, a.ID)
	ma.mu.Unlock()
	if !ok {
		return fmt.Errorf("free allocation %d: not allocated", a.ID)
	}

	if m.mapped {
		vk.UnmapMemory(ma.device, m.memory)
	}
	vk.FreeMemory(ma.device, m.memory, nil)
	return nil
}

// Live reports how many allocations are not freed yet.
func (ma *MemoryAllocator) Live() int {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return len(ma.live)
}

// Release frees every allocation still live, logging each one.
func (ma *MemoryAllocator) Release() {
	ma.mu.Lock()
	live := ma.live
	ma.live = make(map[uint64]*memory)
	ma.mu.Unlock()

	for id, m := range live {
		log.WithFields(log.Fields{
			"id":   id,
			"name": m.name,
			"size": m.size,
		}).Warn("memory leaked until allocator release")
		if m.mapped {
			vk.UnmapMemory(ma.device, m.memory)
		}
		vk.FreeMemory(ma.device, m.memory, nil)
	}
}
