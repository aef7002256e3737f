// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/core"
	"github.com/devblok/vkpresent/gfx"
)

func TestLoadConfigurationDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.Instance.APIVersion, qt.Equals, gfx.Version13)
	c.Assert(cfg.Device.Extensions, qt.DeepEquals, []string{"VK_KHR_swapchain"})
	c.Assert(cfg.Device.Features, qt.DeepEquals, []string{"dynamic_rendering", "synchronization2"})
	c.Assert(cfg.Swapchain.PresentMode, qt.IsNil)
	c.Assert(cfg.Swapchain.Format, qt.Equals, gfx.FormatUndefined)
	c.Assert(cfg.Swapchain.Samples, qt.Equals, gfx.SampleCount1Bit)
	c.Assert(cfg.Swapchain.Timeout, qt.Equals, 5*time.Second)
	c.Assert(cfg.Window.Extent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(cfg.LogLevel, qt.Equals, log.InfoLevel)
}

func TestLoadConfigurationEnvironment(t *testing.T) {
	c := qt.New(t)

	c.Setenv("KORU_PRESENT_MODE", "mailbox")
	c.Setenv("KORU_SAMPLES", "4")
	c.Setenv("KORU_FORMAT", "b8g8r8a8_srgb")
	c.Setenv("KORU_DEVICE_EXTENSIONS", "VK_KHR_swapchain, VK_EXT_swapchain_maintenance1")
	c.Setenv("KORU_LOG_LEVEL", "debug")

	cfg, err := core.LoadConfiguration()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Swapchain.PresentMode, qt.Not(qt.IsNil))
	c.Assert(*cfg.Swapchain.PresentMode, qt.Equals, gfx.PresentModeMailbox)
	c.Assert(cfg.Swapchain.Samples, qt.Equals, gfx.SampleCount4Bit)
	c.Assert(cfg.Swapchain.Format, qt.Equals, gfx.FormatB8g8r8a8Srgb)
	c.Assert(cfg.Device.Extensions, qt.DeepEquals, []string{"VK_KHR_swapchain", "VK_EXT_swapchain_maintenance1"})
	c.Assert(cfg.LogLevel, qt.Equals, log.DebugLevel)
}

func TestLoadConfigurationEnvFile(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(c.TempDir(), "present.env")
	err := os.WriteFile(path, []byte("KORU_TEST_WIDTH_OVERRIDE=1\nKORU_WIDTH=1280\nKORU_HEIGHT=720\n"), 0o644)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		os.Unsetenv("KORU_TEST_WIDTH_OVERRIDE")
		os.Unsetenv("KORU_WIDTH")
		os.Unsetenv("KORU_HEIGHT")
	})

	cfg, err := core.LoadConfiguration(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Window.Extent(), qt.Equals, gfx.Extent2D{Width: 1280, Height: 720})
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	c := qt.New(t)
	_, err := core.LoadConfiguration(filepath.Join(c.TempDir(), "nope.env"))
	c.Assert(err, qt.ErrorMatches, `godotenv.Load\(.*nope.env\): .*`)
}

func TestLoadConfigurationInvalidValue(t *testing.T) {
	c := qt.New(t)

	c.Setenv("KORU_SAMPLES", "3")
	_, err := core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, "KORU_SAMPLES: invalid sample count 3")
}

func TestLoadConfigurationInvalidVersion(t *testing.T) {
	c := qt.New(t)

	c.Setenv("KORU_MIN_API_VERSION", "one")
	_, err := core.LoadConfiguration()
	c.Assert(err, qt.ErrorMatches, `KORU_MIN_API_VERSION: invalid version "one"`)
}

func TestInstanceRequest(t *testing.T) {
	c := qt.New(t)
	req := core.InstanceConfiguration{
		DebugMode:          true,
		Extensions:         []string{core.SurfaceExtension},
		OptionalExtensions: []string{"VK_KHR_portability_enumeration"},
	}.Request()
	c.Assert(req, qt.DeepEquals, core.ExtensionRequest{
		Required: []string{core.SurfaceExtension},
		Optional: []string{"VK_KHR_portability_enumeration"},
		Debug:    true,
	})
}

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(core.SafeString("VK_KHR_surface"), qt.Equals, "VK_KHR_surface\x00")
	c.Assert(core.SafeString("VK_KHR_surface\x00"), qt.Equals, "VK_KHR_surface\x00")
	c.Assert(core.SafeStrings([]string{"a", "b\x00"}), qt.DeepEquals, []string{"a\x00", "b\x00"})
}

func TestTime(t *testing.T) {
	c := qt.New(t)
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 100, EventPollDelay: 5})
	defer tm.Stop()

	c.Assert(tm.Fps(), qt.Equals, 100)
	c.Assert(tm.EventPollDelay(), qt.Equals, 5*time.Millisecond)

	select {
	case <-tm.FpsTicker().C:
	case <-time.After(time.Second):
		c.Fatal("fps ticker did not tick")
	}
	c.Assert(tm.Elapsed() > 0, qt.IsTrue)
}
