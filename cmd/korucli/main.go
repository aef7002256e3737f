// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	vk "github.com/goki/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/device"
	"github.com/devblok/vkpresent/gfx"
	"github.com/devblok/vkpresent/vkr"
)

var (
	envFile    = flag.String("env", "", "Configuration file, .env in the working directory if empty")
	uploadSize = flag.Int("upload", 0, "Upload this many bytes to the selected device, 0 to skip")
)

// report is what korucli prints for each physical device, most
// preferred first.
type report struct {
	device.Info
	Selected   bool                      `json:"selected"`
	MaxSamples int                       `json:"maxSamples"`
	RayTracing *vkr.RayTracingProperties `json:"rayTracing,omitempty"`
	Upload     *uploadReport             `json:"upload,omitempty"`
}

type uploadReport struct {
	Bytes    int    `json:"bytes"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.WithError(err).Error("korucli failed")
		os.Exit(1)
	}
}

func run() error {
	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := core.LoadConfiguration(files...)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	instance, err := vkr.NewInstance(cfg.Instance, "korucli", nil, nil)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	pds, err := instance.PhysicalDevices()
	if err != nil {
		return err
	}

	features, err := device.ParseFeatures(cfg.Device.Features)
	if err != nil {
		return err
	}
	// No surface here, so presentation is left out of the requirements.
	candidates, err := device.SelectDevices(vkr.Devices(pds), device.Requirements{
		Extensions:    withoutSurfaceExtensions(cfg.Device.Extensions),
		Features:      features,
		MinAPIVersion: cfg.Device.MinAPIVersion,
	})
	if err != nil && !errors.Is(err, device.ErrNoSuitableDevice) {
		return err
	}

	selected := make(map[device.PhysicalDevice]bool, len(candidates))
	for _, c := range candidates {
		selected[c.Device] = true
	}
	all := make([]device.Candidate, 0, len(pds))
	for _, pd := range pds {
		all = append(all, device.Candidate{Device: pd, Properties: pd.Properties()})
	}
	device.RankCandidates(all)

	reports := make([]report, 0, len(all))
	for _, c := range all {
		pd := c.Device.(*vkr.PhysicalDevice)
		r := report{
			Info:     device.Describe(pd, 0),
			Selected: selected[c.Device],
		}
		if desc, ok, err := device.QueryMultisampleSupport(pd, device.MultisampleRequest{
			Samples:   gfx.SampleCount64Bit<<1 - 1,
			Format:    gfx.FormatB8g8r8a8Unorm,
			Extent:    gfx.Extent2D{Width: 1, Height: 1},
			MipLevels: 1,
			Usage:     gfx.ImageUsageColorAttachmentBit,
		}); err != nil {
			log.WithError(err).WithField("device", c.Properties.Name).Warn("multisample query")
		} else if ok {
			r.MaxSamples = desc.Samples.Samples()
		} else {
			r.MaxSamples = 1
		}
		if rt, ok := pd.RayTracingProperties(); ok {
			r.RayTracing = &rt
		}
		if *uploadSize > 0 && len(candidates) > 0 && c.Device == candidates[0].Device {
			r.Upload = upload(pd, *uploadSize)
		}
		reports = append(reports, r)
	}

	bytes, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", bytes)
	return nil
}

func withoutSurfaceExtensions(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == core.SwapchainExtension {
			continue
		}
		out = append(out, name)
	}
	return out
}

// upload creates a headless device on pd and times a staged upload of
// size bytes.
func upload(pd *vkr.PhysicalDevice, size int) *uploadReport {
	rep := &uploadReport{Bytes: size}

	dev, err := openHeadless(pd)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	defer dev.Destroy()

	allocator := vkr.NewMemoryAllocator(dev)
	defer allocator.Release()

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}

	start := time.Now()
	buf, err := vkr.UploadBuffer(dev, allocator, "korucli upload", data, vk.BufferUsageStorageBufferBit)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	rep.Duration = time.Since(start).String()

	if err := buf.Release(); err != nil {
		rep.Error = err.Error()
	}
	return rep
}

// openHeadless creates a device without presentation. The present role
// shares the graphics family.
func openHeadless(pd *vkr.PhysicalDevice) (*vkr.LogicalDevice, error) {
	families, err := device.ClassifyQueueFamilies(pd, 0)
	if err != nil {
		return nil, err
	}

	var a device.Assignment
	if a.Graphics, err = device.QueueFamilyIndex(gfx.QueueGraphicsBit, 0, families); err != nil {
		return nil, fmt.Errorf("graphics: %w", err)
	}
	if a.Compute, err = device.QueueFamilyIndex(gfx.QueueComputeBit, 0, families); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	if a.Transfer, err = device.QueueFamilyIndex(gfx.QueueTransferBit, 0, families); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	a.Present = a.Graphics

	return vkr.NewLogicalDevice(pd, a, families, nil, device.Features{})
}
