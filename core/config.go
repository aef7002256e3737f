// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time      TimeConfiguration
	Instance  InstanceConfiguration
	Device    DeviceConfiguration
	Swapchain SwapchainConfiguration
	Window    WindowConfiguration
	LogLevel  log.Level
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the window event polling interval in milliseconds
	EventPollDelay int
}

// InstanceConfiguration is used to create the API instance
type InstanceConfiguration struct {
	DebugMode          bool
	APIVersion         gfx.Version
	Extensions         []string
	OptionalExtensions []string
	Layers             []string
}

// Request converts the configuration into an extension request.
func (c InstanceConfiguration) Request() ExtensionRequest {
	return ExtensionRequest{
		Required: c.Extensions,
		Optional: c.OptionalExtensions,
		Debug:    c.DebugMode,
	}
}

// DeviceConfiguration lists what a physical device must offer
type DeviceConfiguration struct {
	MinAPIVersion gfx.Version
	Extensions    []string

	// Features holds feature names, see device.ParseFeatures.
	Features []string
}

// SwapchainConfiguration holds soft swapchain preferences. Zero values
// mean no preference.
type SwapchainConfiguration struct {
	Format        gfx.Format
	ColorSpace    gfx.ColorSpace
	PresentMode   *gfx.PresentMode
	Samples       gfx.SampleCountFlags
	PresentFences bool
	Timeout       time.Duration
}

// WindowConfiguration describes the demo window
type WindowConfiguration struct {
	Title  string
	Width  uint32
	Height uint32
}

// Extent returns the window size as an extent.
func (w WindowConfiguration) Extent() gfx.Extent2D {
	return gfx.Extent2D{Width: w.Width, Height: w.Height}
}
