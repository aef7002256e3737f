// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

/*
#cgo linux LDFLAGS: -ldl

#include <stdint.h>
#include <stdlib.h>

#if defined(_WIN32)
#include <windows.h>
static void* systemProcAddr(void) {
	HMODULE lib = LoadLibraryA("vulkan-1.dll");
	if (lib == NULL) {
		return NULL;
	}
	return (void*)GetProcAddress(lib, "vkGetInstanceProcAddr");
}
#else
#include <dlfcn.h>
static void* systemProcAddr(void) {
#if defined(__APPLE__)
	void* lib = dlopen("libvulkan.1.dylib", RTLD_NOW | RTLD_LOCAL);
#else
	void* lib = dlopen("libvulkan.so.1", RTLD_NOW | RTLD_LOCAL);
	if (lib == NULL) {
		lib = dlopen("libvulkan.so", RTLD_NOW | RTLD_LOCAL);
	}
#endif
	if (lib == NULL) {
		return NULL;
	}
	return dlsym(lib, "vkGetInstanceProcAddr");
}
#endif

typedef void* (*getInstanceProcAddrFn)(void*, const char*);
typedef void (*physicalDeviceQueryFn)(void*, void*);
typedef int32_t (*surfaceCapabilities2Fn)(void*, const void*, void*);

static void* instanceProc(void* getProcAddr, void* instance, const char* name) {
	return ((getInstanceProcAddrFn)getProcAddr)(instance, name);
}

static void callPhysicalDeviceQuery(void* fn, void* physicalDevice, void* out) {
	((physicalDeviceQueryFn)fn)(physicalDevice, out);
}

static int32_t callSurfaceCapabilities2(void* fn, void* physicalDevice, const void* info, void* out) {
	return ((surfaceCapabilities2Fn)fn)(physicalDevice, info, out);
}
*/
import "C"

import (
	"errors"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// errNoEntryPoint is returned when a query has no function loaded for
// the instance, because the driver or the enabled extensions lack it.
var errNoEntryPoint = errors.New("entry point not loaded")

// instanceProcs are the instance level entry points the binding does
// not export. A nil entry is not available.
type instanceProcs struct {
	features2    unsafe.Pointer
	properties2  unsafe.Pointer
	surfaceCaps2 unsafe.Pointer
}

// systemProcAddr finds vkGetInstanceProcAddr in the system loader.
func systemProcAddr() unsafe.Pointer {
	return C.systemProcAddr()
}

// loadInstanceProcs resolves the entry points for instance. The core
// name is tried before the extension alias.
func loadInstanceProcs(getProcAddr unsafe.Pointer, instance vk.Instance) *instanceProcs {
	procs := &instanceProcs{}
	if getProcAddr == nil {
		return procs
	}
	procs.features2 = lookupProc(getProcAddr, instance, "vkGetPhysicalDeviceFeatures2", "vkGetPhysicalDeviceFeatures2KHR")
	procs.properties2 = lookupProc(getProcAddr, instance, "vkGetPhysicalDeviceProperties2", "vkGetPhysicalDeviceProperties2KHR")
	procs.surfaceCaps2 = lookupProc(getProcAddr, instance, "vkGetPhysicalDeviceSurfaceCapabilities2KHR")
	return procs
}

func lookupProc(getProcAddr unsafe.Pointer, instance vk.Instance, names ...string) unsafe.Pointer {
	for _, name := range names {
		cname := C.CString(name)
		fn := C.instanceProc(getProcAddr, unsafe.Pointer(instance), cname)
		C.free(unsafe.Pointer(cname))
		if fn != nil {
			return fn
		}
	}
	return nil
}

// physicalDeviceFeatures2 fills out, a VkPhysicalDeviceFeatures2 in C
// memory, along with its chain.
func (p *instanceProcs) physicalDeviceFeatures2(pd vk.PhysicalDevice, out unsafe.Pointer) error {
	if p == nil || p.features2 == nil {
		return errNoEntryPoint
	}
	C.callPhysicalDeviceQuery(p.features2, unsafe.Pointer(pd), out)
	return nil
}

// physicalDeviceProperties2 fills out, a VkPhysicalDeviceProperties2 in
// C memory, along with its chain.
func (p *instanceProcs) physicalDeviceProperties2(pd vk.PhysicalDevice, out unsafe.Pointer) error {
	if p == nil || p.properties2 == nil {
		return errNoEntryPoint
	}
	C.callPhysicalDeviceQuery(p.properties2, unsafe.Pointer(pd), out)
	return nil
}

// surfaceCapabilities2 calls vkGetPhysicalDeviceSurfaceCapabilities2KHR
// with info and out in C memory.
func (p *instanceProcs) surfaceCapabilities2(pd vk.PhysicalDevice, info, out unsafe.Pointer) vk.Result {
	if p == nil || p.surfaceCaps2 == nil {
		return vk.ErrorExtensionNotPresent
	}
	return vk.Result(C.callSurfaceCapabilities2(p.surfaceCaps2, unsafe.Pointer(pd), info, out))
}
