// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// Buffer implements a generic vulkan buffer bound to its own memory.
type Buffer struct {
	device    vk.Device
	allocator gfx.Allocator
	buffer    vk.Buffer
	memory    gfx.Allocation
	size      uint64
}

// NewBuffer creates, configures, allocates and binds a new buffer.
func NewBuffer(d *LogicalDevice, ma gfx.Allocator, name string, size uint64, usage vk.BufferUsageFlagBits, location gfx.MemoryLocation) (*Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.handle, &createInfo, nil, &buffer)); err != nil {
		return nil, fmt.Errorf("vk.CreateBuffer(): %w", err)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, buffer, &req)
	req.Deref()

	memory, err := ma.Allocate(gfx.AllocationRequest{
		Name:         name,
		Requirements: memoryRequirements(req),
		Location:     location,
		Linear:       true,
		Dedicated:    gfx.DedicatedResource{Buffer: gfx.Buffer(handle(unsafe.Pointer(buffer)))},
	})
	if err != nil {
		vk.DestroyBuffer(d.handle, buffer, nil)
		return nil, err
	}

	if err := vk.Error(vk.BindBufferMemory(d.handle, buffer, vkMemory(memory.Memory), vk.DeviceSize(memory.Offset))); err != nil {
		vk.DestroyBuffer(d.handle, buffer, nil)
		if ferr := ma.Free(memory); ferr != nil {
			log.WithError(ferr).WithField("name", name).Error("free buffer memory")
		}
		return nil, fmt.Errorf("vk.BindBufferMemory(): %w", err)
	}

	return &Buffer{
		device:    d.handle,
		allocator: ma,
		buffer:    buffer,
		memory:    memory,
		size:      size,
	}, nil
}

var _ gfx.Releasable = (*Buffer)(nil)

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer { return b.buffer }

// Handle returns the buffer as a backend neutral handle.
func (b *Buffer) Handle() gfx.Buffer { return gfx.Buffer(handle(unsafe.Pointer(b.buffer))) }

// Mem returns the allocation the buffer is bound to.
func (b *Buffer) Mem() gfx.Allocation { return b.memory }

// Size is the requested size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Write copies data to the start of a host visible buffer.
func (b *Buffer) Write(data []byte) error {
	if b.memory.Mapped == nil {
		return fmt.Errorf("write buffer: memory is not host visible")
	}
	if uint64(len(data)) > b.size {
		return fmt.Errorf("write buffer: %d bytes into %d", len(data), b.size)
	}
	copy(unsafe.Slice((*byte)(b.memory.Mapped), len(data)), data)
	return nil
}

// Release destroys the buffer and frees the memory associated with it.
func (b *Buffer) Release() error {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	return b.allocator.Free(b.memory)
}

// oneTimeCommands is a transient command pool with a single command
// buffer and the fence its submission signals.
type oneTimeCommands struct {
	device vk.Device
	pool   vk.CommandPool
	cmd    vk.CommandBuffer
	fence  vk.Fence
}

func beginSingleTimeCommands(d *LogicalDevice, family uint32) (*oneTimeCommands, error) {
	c := &oneTimeCommands{device: d.handle}

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: family,
	}
	if err := vk.Error(vk.CreateCommandPool(d.handle, &cpci, nil, &c.pool)); err != nil {
		return nil, fmt.Errorf("vk.CreateCommandPool(): %w", err)
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        c.pool,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.handle, &cbai, commandBuffers)); err != nil {
		c.release()
		return nil, fmt.Errorf("vk.AllocateCommandBuffers(): %w", err)
	}
	c.cmd = commandBuffers[0]

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(c.cmd, &cbbi)); err != nil {
		c.release()
		return nil, fmt.Errorf("vk.BeginCommandBuffer(): %w", err)
	}
	return c, nil
}

// submit ends recording and submits to queue with a fresh fence.
func (c *oneTimeCommands) submit(queue vk.Queue) error {
	if err := vk.Error(vk.EndCommandBuffer(c.cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %w", err)
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if err := vk.Error(vk.CreateFence(c.device, &fci, nil, &c.fence)); err != nil {
		return fmt.Errorf("vk.CreateFence(): %w", err)
	}

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{c.cmd},
	}
	if err := vk.Error(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{si}, c.fence)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %w", err)
	}
	return nil
}

// wait blocks until the submission is done or DefaultTimeout passes.
func (c *oneTimeCommands) wait() error {
	switch ret := vk.WaitForFences(c.device, 1, []vk.Fence{c.fence}, vk.True, nanoseconds(DefaultTimeout)); ret {
	case vk.Success:
		return nil
	case vk.Timeout:
		return ErrUploadTimeout
	default:
		return fmt.Errorf("vk.WaitForFences(): %w", vk.Error(ret))
	}
}

func (c *oneTimeCommands) release() {
	if c.cmd != nil {
		vk.FreeCommandBuffers(c.device, c.pool, 1, []vk.CommandBuffer{c.cmd})
	}
	if c.fence != vk.NullFence {
		vk.DestroyFence(c.device, c.fence, nil)
	}
	vk.DestroyCommandPool(c.device, c.pool, nil)
}

// UploadBuffer creates a device local buffer holding data. The data
// goes through a host visible staging buffer and a copy submitted to
// the transfer queue. If the copy does not finish in time the
// destination, the staging buffer and the command objects are left
// alive, since the device may still use them, and ErrUploadTimeout is
// returned.
//
// The buffer is exclusive to the transfer queue family. Callers using
// it from another family must transfer queue family ownership first.
func UploadBuffer(d *LogicalDevice, ma gfx.Allocator, name string, data []byte, usage vk.BufferUsageFlagBits) (_ *Buffer, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyUpload)
	}
	size := uint64(len(data))
	staging, err := NewBuffer(d, ma, name+" staging", size, vk.BufferUsageTransferSrcBit, gfx.MemoryLocationCPUToGPU)
	if err != nil {
		return nil, err
	}
	if err := staging.Write(data); err != nil {
		releaseBuffer(staging)
		return nil, err
	}

	dst, err := NewBuffer(d, ma, name, size, vk.BufferUsageTransferDstBit|usage, gfx.MemoryLocationGPUOnly)
	if err != nil {
		releaseBuffer(staging)
		return nil, err
	}

	cmds, err := beginSingleTimeCommands(d, d.transfer.FamilyIndex)
	if err != nil {
		releaseBuffer(staging)
		releaseBuffer(dst)
		return nil, err
	}
	vk.CmdCopyBuffer(cmds.cmd, staging.buffer, dst.buffer, 1, []vk.BufferCopy{{Size: vk.DeviceSize(size)}})

	err = cmds.submit(vkQueue(d.transfer.Queue))
	if err == nil {
		err = cmds.wait()
	}
	if err == ErrUploadTimeout {
		if ierr := d.WaitIdle(); ierr != nil {
			log.WithError(ierr).Error("wait idle after upload timeout")
		}
		log.WithFields(log.Fields{
			"name": name,
			"size": size,
		}).Warn("upload timed out, staging resources kept")
		return nil, err
	}

	cmds.release()
	releaseBuffer(staging)
	if err != nil {
		releaseBuffer(dst)
		return nil, err
	}
	return dst, nil
}

func releaseBuffer(b gfx.Releasable) {
	if err := b.Release(); err != nil {
		log.WithError(err).Error("release buffer")
	}
}
