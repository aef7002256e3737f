// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/swapchain"
)

// IndexedQueue is a device queue with where it came from.
type IndexedQueue struct {
	Queue       gfx.Queue
	FamilyIndex uint32
	Index       uint32
}

// LogicalDevice is a Vulkan device with one queue per role. It
// implements swapchain.Device.
type LogicalDevice struct {
	physical   *PhysicalDevice
	handle     vk.Device
	extensions core.ExtensionSet
	features   device.Features

	graphics IndexedQueue
	compute  IndexedQueue
	transfer IndexedQueue
	present  IndexedQueue
}

var _ swapchain.Device = (*LogicalDevice)(nil)

// NewLogicalDevice creates a device on pd with queues for a. The given
// extensions and the ones backing features must be offered by pd.
// Swapchain maintenance is enabled along with the swapchain extension
// when the device supports it.
func NewLogicalDevice(pd *PhysicalDevice, a device.Assignment, families device.QueueFamilies, extensions []string, features device.Features) (*LogicalDevice, error) {
	if supported := device.QueryFeatureSupport(pd, features); !supported.ContainsMask(features) {
		return nil, fmt.Errorf("device features %s: %w", features, gfx.ErrorFeatureNotPresent)
	}

	wanted := append(append([]string{}, extensions...), featureExtensions(features)...)
	enabled := core.NewExtensionSet()
	var names []string
	for _, name := range wanted {
		if enabled.IsExtensionEnabled(name) {
			continue
		}
		if !pd.hasExtension(name) {
			return nil, &core.MissingExtensionError{Name: name}
		}
		enabled[name] = struct{}{}
		names = append(names, name)
	}
	maintenance := enabled.IsExtensionEnabled(core.SwapchainExtension) && pd.supportsSwapchainMaintenance()
	if maintenance {
		enabled[core.SwapchainMaintenance1Extension] = struct{}{}
		names = append(names, core.SwapchainMaintenance1Extension)
	}

	plans := device.PlanQueues(a, families)
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(plans))
	for _, p := range plans {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: p.FamilyIndex,
			QueueCount:       p.Count,
			PQueuePriorities: p.Priorities,
		})
	}

	chain := newFeatureChain(features, pd.props.APIVersion, pd.hasExtension)
	defer chain.free()
	chain.enable(features)
	if maintenance {
		linkSwapchainMaintenance(chain, true)
	}

	var handle vk.Device
	ret := vk.CreateDevice(pd.handle, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   chain.head,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(names)),
		PpEnabledExtensionNames: core.SafeStrings(names),
	}, nil, &handle)
	if err := vk.Error(ret); err != nil {
		return nil, fmt.Errorf("vk.CreateDevice(): %w", err)
	}

	d := &LogicalDevice{
		physical:   pd,
		handle:     handle,
		extensions: enabled,
		features:   features,
	}
	d.graphics = d.queue(a.Graphics, a.QueueIndex(gfx.QueueGraphicsBit, plans))
	d.compute = d.queue(a.Compute, a.QueueIndex(gfx.QueueComputeBit, plans))
	d.transfer = d.queue(a.Transfer, a.QueueIndex(gfx.QueueTransferBit, plans))
	d.present = d.queue(a.Present, a.QueueIndex(gfx.QueuePresentBit, plans))

	log.WithFields(log.Fields{
		"device":     pd.props.Name,
		"graphics":   a.Graphics,
		"compute":    a.Compute,
		"transfer":   a.Transfer,
		"present":    a.Present,
		"extensions": names,
		"features":   features.String(),
	}).Info("logical device created")
	return d, nil
}

func (d *LogicalDevice) queue(family, index uint32) IndexedQueue {
	var q vk.Queue
	vk.GetDeviceQueue(d.handle, family, index, &q)
	return IndexedQueue{
		Queue:       gfx.Queue(handle(unsafe.Pointer(q))),
		FamilyIndex: family,
		Index:       index,
	}
}

// Handle returns the Vulkan handle.
func (d *LogicalDevice) Handle() vk.Device { return d.handle }

// Physical returns the physical device the device was created on.
func (d *LogicalDevice) Physical() *PhysicalDevice { return d.physical }

// Features returns the enabled features.
func (d *LogicalDevice) Features() device.Features { return d.features }

// IsExtensionEnabled reports whether a device extension is enabled.
func (d *LogicalDevice) IsExtensionEnabled(name string) bool {
	return d.extensions.IsExtensionEnabled(name)
}

// GraphicsQueue is the queue used for rendering.
func (d *LogicalDevice) GraphicsQueue() IndexedQueue { return d.graphics }

// ComputeQueue is the queue used for compute work.
func (d *LogicalDevice) ComputeQueue() IndexedQueue { return d.compute }

// TransferQueue is the queue used for uploads.
func (d *LogicalDevice) TransferQueue() IndexedQueue { return d.transfer }

// PresentQueue is the queue used for presentation.
func (d *LogicalDevice) PresentQueue() IndexedQueue { return d.present }

// WaitIdle implements swapchain.Device.
func (d *LogicalDevice) WaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(d.handle)); err != nil {
		return fmt.Errorf("vk.DeviceWaitIdle(): %w", err)
	}
	return nil
}

// Destroy destroys the device after it goes idle.
func (d *LogicalDevice) Destroy() {
	vk.DeviceWaitIdle(d.handle)
	vk.DestroyDevice(d.handle, nil)
}

// CreateSwapchain implements swapchain.Device.
func (d *LogicalDevice) CreateSwapchain(info swapchain.CreateInfo) (gfx.Swapchain, error) {
	modes, release := presentModesInfo(info.PresentModes)
	defer release()

	var sc vk.Swapchain
	ret := vk.CreateSwapchain(d.handle, &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		PNext:           modes,
		Surface:         vkSurface(info.Surface),
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format),
		ImageColorSpace: vk.ColorSpace(info.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vkSwapchain(info.OldSwapchain),
	}, nil, &sc)
	if err := vk.Error(ret); err != nil {
		return 0, fmt.Errorf("vk.CreateSwapchain(): %w", err)
	}
	return gfx.Swapchain(handle(unsafe.Pointer(sc))), nil
}

// DestroySwapchain implements swapchain.Device.
func (d *LogicalDevice) DestroySwapchain(sc gfx.Swapchain) {
	vk.DestroySwapchain(d.handle, vkSwapchain(sc), nil)
}

// SwapchainImages implements swapchain.Device.
func (d *LogicalDevice) SwapchainImages(sc gfx.Swapchain) ([]gfx.Image, error) {
	var count uint32
	if err := vk.Error(vk.GetSwapchainImages(d.handle, vkSwapchain(sc), &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.GetSwapchainImages(): %w", err)
	}
	images := make([]vk.Image, count)
	if err := vk.Error(vk.GetSwapchainImages(d.handle, vkSwapchain(sc), &count, images)); err != nil {
		return nil, fmt.Errorf("vk.GetSwapchainImages(): %w", err)
	}
	out := make([]gfx.Image, 0, count)
	for _, img := range images[:count] {
		out = append(out, gfx.Image(handle(unsafe.Pointer(img))))
	}
	return out, nil
}

// CreateImageView implements swapchain.Device. The view covers the
// aspect derived from the format and all mip levels and array layers.
func (d *LogicalDevice) CreateImageView(image gfx.Image, format gfx.Format) (gfx.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.handle, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vkImage(image),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(format.AspectMask()),
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}, nil, &view)
	if err := vk.Error(ret); err != nil {
		return 0, fmt.Errorf("vk.CreateImageView(): %w", err)
	}
	return gfx.ImageView(handle(unsafe.Pointer(view))), nil
}

// DestroyImageView implements swapchain.Device.
func (d *LogicalDevice) DestroyImageView(view gfx.ImageView) {
	vk.DestroyImageView(d.handle, vkImageView(view), nil)
}

// CreateImage implements swapchain.Device.
func (d *LogicalDevice) CreateImage(desc device.ImageDescriptor) (gfx.Image, gfx.MemoryRequirements, error) {
	var image vk.Image
	ret := vk.CreateImage(d.handle, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  desc.Extent.Depth,
		},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Samples:       vk.SampleCountFlagBits(desc.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if err := vk.Error(ret); err != nil {
		return 0, gfx.MemoryRequirements{}, fmt.Errorf("vk.CreateImage(): %w", err)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, image, &req)
	req.Deref()
	return gfx.Image(handle(unsafe.Pointer(image))), memoryRequirements(req), nil
}

func memoryRequirements(req vk.MemoryRequirements) gfx.MemoryRequirements {
	return gfx.MemoryRequirements{
		Size:           uint64(req.Size),
		Alignment:      uint64(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}

// BindImageMemory implements swapchain.Device.
func (d *LogicalDevice) BindImageMemory(image gfx.Image, a gfx.Allocation) error {
	if err := vk.Error(vk.BindImageMemory(d.handle, vkImage(image), vkMemory(a.Memory), vk.DeviceSize(a.Offset))); err != nil {
		return fmt.Errorf("vk.BindImageMemory(): %w", err)
	}
	return nil
}

// DestroyImage implements swapchain.Device.
func (d *LogicalDevice) DestroyImage(image gfx.Image) {
	vk.DestroyImage(d.handle, vkImage(image), nil)
}

// CreateSemaphore implements swapchain.Device.
func (d *LogicalDevice) CreateSemaphore() (gfx.Semaphore, error) {
	var s vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &s)); err != nil {
		return 0, fmt.Errorf("vk.CreateSemaphore(): %w", err)
	}
	return gfx.Semaphore(handle(unsafe.Pointer(s))), nil
}

// DestroySemaphore implements swapchain.Device.
func (d *LogicalDevice) DestroySemaphore(s gfx.Semaphore) {
	vk.DestroySemaphore(d.handle, vkSemaphore(s), nil)
}

// CreateFence implements swapchain.Device.
func (d *LogicalDevice) CreateFence(signaled bool) (gfx.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var f vk.Fence
	if err := vk.Error(vk.CreateFence(d.handle, &info, nil, &f)); err != nil {
		return 0, fmt.Errorf("vk.CreateFence(): %w", err)
	}
	return gfx.Fence(handle(unsafe.Pointer(f))), nil
}

// DestroyFence implements swapchain.Device.
func (d *LogicalDevice) DestroyFence(f gfx.Fence) {
	vk.DestroyFence(d.handle, vkFence(f), nil)
}

// ResetFences returns fences to the unsignaled state.
func (d *LogicalDevice) ResetFences(fences ...gfx.Fence) error {
	if err := vk.Error(vk.ResetFences(d.handle, uint32(len(fences)), vkFences(fences))); err != nil {
		return fmt.Errorf("vk.ResetFences(): %w", err)
	}
	return nil
}

func vkFences(fences []gfx.Fence) []vk.Fence {
	out := make([]vk.Fence, 0, len(fences))
	for _, f := range fences {
		out = append(out, vkFence(f))
	}
	return out
}

// AcquireNextImage implements swapchain.Device.
func (d *LogicalDevice) AcquireNextImage(sc gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, gfx.Result) {
	var index uint32
	ret := vk.AcquireNextImage(d.handle, vkSwapchain(sc), nanoseconds(timeout), vkSemaphore(signal), vk.NullFence, &index)
	return index, gfx.Result(ret)
}

// QueuePresent implements swapchain.Device.
func (d *LogicalDevice) QueuePresent(queue gfx.Queue, info swapchain.PresentInfo) gfx.Result {
	fence, release := presentFenceInfo(info.Fence)
	defer release()

	ret := vk.QueuePresent(vkQueue(queue), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		PNext:              fence,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vkSemaphore(info.Wait)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vkSwapchain(info.Swapchain)},
		PImageIndices:      []uint32{info.Index},
	})
	return gfx.Result(ret)
}

// WaitForFences implements swapchain.Device.
func (d *LogicalDevice) WaitForFences(fences []gfx.Fence, waitAll bool, timeout time.Duration) gfx.Result {
	ret := vk.WaitForFences(d.handle, uint32(len(fences)), vkFences(fences), bool32(waitAll), nanoseconds(timeout))
	return gfx.Result(ret)
}
