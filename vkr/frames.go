// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/devblok/vkpresent/gfx"
)

// ErrFrameTimeout is returned when a frame's previous submission does
// not finish within DefaultTimeout.
var ErrFrameTimeout = errors.New("frame submission timed out")

// FrameRecorder records and submits one command buffer per frame in
// flight on the graphics queue. A frame's command buffer is reused
// once the fence of its previous submission is signaled.
type FrameRecorder struct {
	device *LogicalDevice
	pool   vk.CommandPool
	cmds   []vk.CommandBuffer
	fences []vk.Fence
}

// NewFrameRecorder creates a recorder for the given number of frames.
func NewFrameRecorder(d *LogicalDevice, frames int) (*FrameRecorder, error) {
	r := &FrameRecorder{device: d}

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphics.FamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := vk.Error(vk.CreateCommandPool(d.handle, &cpci, nil, &r.pool)); err != nil {
		return nil, fmt.Errorf("vk.CreateCommandPool(): %w", err)
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(frames),
	}
	r.cmds = make([]vk.CommandBuffer, frames)
	if err := vk.Error(vk.AllocateCommandBuffers(d.handle, &cbai, r.cmds)); err != nil {
		vk.DestroyCommandPool(d.handle, r.pool, nil)
		return nil, fmt.Errorf("vk.AllocateCommandBuffers(): %w", err)
	}

	for i := 0; i < frames; i++ {
		fence, err := d.CreateFence(true)
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.fences = append(r.fences, vkFence(fence))
	}
	return r, nil
}

// Wait blocks until the previous submission of frame is done.
func (r *FrameRecorder) Wait(frame int) error {
	ret := vk.WaitForFences(r.device.handle, 1, []vk.Fence{r.fences[frame]}, vk.True, nanoseconds(DefaultTimeout))
	if ret == vk.Timeout {
		return fmt.Errorf("frame %d: %w", frame, ErrFrameTimeout)
	}
	if err := vk.Error(ret); err != nil {
		return fmt.Errorf("vk.WaitForFences(): %w", err)
	}
	return nil
}

// Clear records a clear of image to color and submits it. The
// submission waits on wait and signals signal; image ends up ready to
// present. Wait for the frame first.
func (r *FrameRecorder) Clear(frame int, image gfx.Image, color [4]float32, wait, signal gfx.Semaphore) error {
	d := r.device.handle
	fence := r.fences[frame]

	cmd := r.cmds[frame]
	if err := vk.Error(vk.ResetCommandBuffer(cmd, 0)); err != nil {
		return fmt.Errorf("vk.ResetCommandBuffer(): %w", err)
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer()[%d]: %w", frame, err)
	}

	img := vkImage(image)
	subresource := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
	toTransfer := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    subresource,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

	var clear vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&clear)) = color
	vk.CmdClearColorImage(cmd, img, vk.ImageLayoutTransferDstOptimal, &clear, 1, []vk.ImageSubresourceRange{subresource})

	toPresent := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutPresentSrc,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    subresource,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
	}
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toPresent})

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer()[%d]: %w", frame, err)
	}

	if err := vk.Error(vk.ResetFences(d, 1, []vk.Fence{fence})); err != nil {
		return fmt.Errorf("vk.ResetFences(): %w", err)
	}
	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vkSemaphore(wait)},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageTransferBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vkSemaphore(signal)},
	}}
	if err := vk.Error(vk.QueueSubmit(vkQueue(r.device.graphics.Queue), 1, submit, fence)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %w", err)
	}
	return nil
}

// Destroy releases the command buffers and fences. The device must be
// done with them.
func (r *FrameRecorder) Destroy() {
	d := r.device.handle
	for _, f := range r.fences {
		vk.DestroyFence(d, f, nil)
	}
	if len(r.cmds) > 0 {
		vk.FreeCommandBuffers(d, r.pool, uint32(len(r.cmds)), r.cmds)
	}
	vk.DestroyCommandPool(d, r.pool, nil)
	r.fences, r.cmds = nil, nil
}
