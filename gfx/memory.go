// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "unsafe"

// MemoryLocation tells the allocator where an allocation should live.
type MemoryLocation int

// Memory locations.
const (
	MemoryLocationGPUOnly MemoryLocation = iota
	MemoryLocationCPUToGPU
	MemoryLocationGPUToCPU
)

func (m MemoryLocation) String() string {
	switch m {
	case MemoryLocationGPUOnly:
		return "gpu-only"
	case MemoryLocationCPUToGPU:
		return "cpu-to-gpu"
	case MemoryLocationGPUToCPU:
		return "gpu-to-cpu"
	}
	return "unknown"
}

// MemoryRequirements are reported by the device for a resource.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// DedicatedResource names the single resource an allocation is made for.
// Both zero means the allocation is not dedicated.
type DedicatedResource struct {
	Image  Image
	Buffer Buffer
}

// AllocationRequest describes one allocation.
type AllocationRequest struct {
	Name         string
	Requirements MemoryRequirements
	Location     MemoryLocation
	Linear       bool
	Dedicated    DedicatedResource
}

// Allocation is a region of device memory. Mapped is non-nil when the
// memory is host visible.
type Allocation struct {
	ID     uint64
	Memory DeviceMemory
	Offset uint64
	Size   uint64
	Mapped unsafe.Pointer
}

// Allocator hands out device memory. Callers use it from one goroutine
// at a time.
type Allocator interface {
	Allocate(req AllocationRequest) (Allocation, error)
	Free(a Allocation) error
}
