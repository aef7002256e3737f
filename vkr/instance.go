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
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
)

// EngineName is reported to the driver in the application info.
const EngineName = "Koru3D"

// Instance is a Vulkan instance with the extensions and layers that
// were enabled on it.
type Instance struct {
	handle     vk.Instance
	procs      *instanceProcs
	extensions core.ExtensionSet
	layers     []string
}

// NewInstance loads the API and creates an instance. procAddr is the
// loader entry point, usually from the windowing library; nil uses the
// system loader. windowExtensions are required on top of the
// configured ones.
func NewInstance(cfg core.InstanceConfiguration, appName string, procAddr unsafe.Pointer, windowExtensions []string) (*Instance, error) {
	if procAddr == nil {
		procAddr = systemProcAddr()
	}
	if procAddr == nil {
		return nil, &core.LoadingError{Err: errors.New("vkGetInstanceProcAddr not found in the system loader")}
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, &core.LoadingError{Err: err}
	}

	availableExt, err := instanceExtensions()
	if err != nil {
		return nil, err
	}
	availableLayers, err := instanceLayers()
	if err != nil {
		return nil, err
	}

	req := cfg.Request()
	req.Required = append(append([]string{}, windowExtensions...), req.Required...)
	extSel, err := core.SelectExtensions(req, availableExt)
	if err != nil {
		return nil, err
	}
	layerSel, err := core.SelectLayers(cfg.Layers, cfg.DebugMode, availableLayers)
	if err != nil {
		return nil, err
	}
	core.LogDecisions(log.WithField("kind", "instance extension"), extSel.Decisions)
	core.LogDecisions(log.WithField("kind", "layer"), layerSel.Decisions)

	version := cfg.APIVersion
	if version == 0 {
		version = gfx.Version13
	}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(version),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		PApplicationName:   core.SafeString(appName),
		PEngineName:        core.SafeString(EngineName),
	}
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extSel.Names)),
		PpEnabledExtensionNames: core.SafeStrings(extSel.Names),
		EnabledLayerCount:       uint32(len(layerSel.Names)),
		PpEnabledLayerNames:     core.SafeStrings(layerSel.Names),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, fmt.Errorf("vk.CreateInstance(): %w", err)
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("vk.InitInstance(): %w", err)
	}

	log.WithFields(log.Fields{
		"version":    version.String(),
		"extensions": len(extSel.Names),
		"layers":     len(layerSel.Names),
	}).Info("instance created")

	return &Instance{
		handle:     instance,
		procs:      loadInstanceProcs(procAddr, instance),
		extensions: extSel.Set(),
		layers:     layerSel.Names,
	}, nil
}

func instanceExtensions() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceExtensionProperties(): %w", err)
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceExtensionProperties(): %w", err)
	}
	names := make([]string, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceLayerProperties(): %w", err)
	}
	props := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, fmt.Errorf("vk.EnumerateInstanceLayerProperties(): %w", err)
	}
	names := make([]string, 0, count)
	for _, p := range props[:count] {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

// Handle returns the Vulkan handle.
func (i *Instance) Handle() vk.Instance { return i.handle }

// IsExtensionEnabled implements core.ExtensionQuery.
func (i *Instance) IsExtensionEnabled(name string) bool {
	return i.extensions.IsExtensionEnabled(name)
}

// Layers returns the enabled layers.
func (i *Instance) Layers() []string {
	return append([]string(nil), i.layers...)
}

// PhysicalDevices enumerates the physical devices of the instance.
func (i *Instance) PhysicalDevices() ([]*PhysicalDevice, error) {
	var count uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.handle, &count, nil)); err != nil {
		return nil, fmt.Errorf("vk.EnumeratePhysicalDevices(): %w", err)
	}
	handles := make([]vk.PhysicalDevice, count)
	if err := vk.Error(vk.EnumeratePhysicalDevices(i.handle, &count, handles)); err != nil {
		return nil, fmt.Errorf("vk.EnumeratePhysicalDevices(): %w", err)
	}
	devices := make([]*PhysicalDevice, 0, count)
	for _, h := range handles[:count] {
		devices = append(devices, newPhysicalDevice(h, i.procs))
	}
	return devices, nil
}

// Devices is PhysicalDevices as the interface the selector takes.
func Devices(pds []*PhysicalDevice) []device.PhysicalDevice {
	out := make([]device.PhysicalDevice, 0, len(pds))
	for _, pd := range pds {
		out = append(out, pd)
	}
	return out
}

// SurfaceFromPointer wraps a surface created by the windowing library.
func (i *Instance) SurfaceFromPointer(p unsafe.Pointer) gfx.Surface {
	return gfx.Surface(handle(unsafe.Pointer(vk.SurfaceFromPointer(uintptr(p)))))
}

// DestroySurface destroys a surface created for this instance.
func (i *Instance) DestroySurface(surface gfx.Surface) {
	if surface != 0 {
		vk.DestroySurface(i.handle, vkSurface(surface), nil)
	}
}

// Destroy destroys the instance. Every object created from it must be
// gone by then.
func (i *Instance) Destroy() {
	vk.DestroyInstance(i.handle, nil)
}
