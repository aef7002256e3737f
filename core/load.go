// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// DefaultEnvFile is loaded when LoadConfiguration gets no files.
const DefaultEnvFile = ".env"

var defaults = packr.NewBox("./defaults")

// LoadConfiguration builds a Configuration from the packed defaults,
// the given .env files and the process environment, in increasing
// order of precedence. A missing DefaultEnvFile is not an error.
func LoadConfiguration(files ...string) (Configuration, error) {
	raw, err := defaults.FindString("defaults.env")
	if err != nil {
		return Configuration{}, fmt.Errorf("packr.FindString(): %w", err)
	}
	values, err := godotenv.Unmarshal(raw)
	if err != nil {
		return Configuration{}, fmt.Errorf("godotenv.Unmarshal(): %w", err)
	}

	optional := false
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
		optional = true
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if optional && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Configuration{}, fmt.Errorf("godotenv.Load(%s): %w", f, err)
		}
	}
	envy.Reload()

	p := parser{values: values}
	cfg := Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: p.integer("KORU_FPS"),
			EventPollDelay:  p.integer("KORU_EVENT_POLL_MS"),
		},
		Instance: InstanceConfiguration{
			DebugMode:          p.boolean("KORU_DEBUG"),
			APIVersion:         p.version("KORU_API_VERSION"),
			Extensions:         splitList(p.get("KORU_INSTANCE_EXTENSIONS")),
			OptionalExtensions: splitList(p.get("KORU_OPTIONAL_EXTENSIONS")),
			Layers:             splitList(p.get("KORU_LAYERS")),
		},
		Device: DeviceConfiguration{
			MinAPIVersion: p.version("KORU_MIN_API_VERSION"),
			Extensions:    splitList(p.get("KORU_DEVICE_EXTENSIONS")),
			Features:      splitList(p.get("KORU_DEVICE_FEATURES")),
		},
		Swapchain: SwapchainConfiguration{
			Format:        p.format("KORU_FORMAT"),
			ColorSpace:    p.colorSpace("KORU_COLOR_SPACE"),
			PresentMode:   p.presentMode("KORU_PRESENT_MODE"),
			Samples:       p.samples("KORU_SAMPLES"),
			PresentFences: p.boolean("KORU_PRESENT_FENCES"),
			Timeout:       time.Duration(p.integer("KORU_TIMEOUT_MS")) * time.Millisecond,
		},
		Window: WindowConfiguration{
			Title:  p.get("KORU_TITLE"),
			Width:  uint32(p.integer("KORU_WIDTH")),
			Height: uint32(p.integer("KORU_HEIGHT")),
		},
		LogLevel: p.level("KORU_LOG_LEVEL"),
	}
	if p.err != nil {
		return Configuration{}, p.err
	}
	return cfg, nil
}

// parser reads keys from the environment, falling back to the packed
// defaults, and keeps the first conversion error.
type parser struct {
	values map[string]string
	err    error
}

func (p *parser) get(key string) string {
	return envy.Get(key, p.values[key])
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (p *parser) integer(key string) int {
	v := p.get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) boolean(key string) bool {
	v := p.get(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
	}
	return b
}

func (p *parser) version(key string) gfx.Version {
	v, err := parseVersion(p.get(key))
	if err != nil {
		p.fail(key, err)
	}
	return v
}

func (p *parser) format(key string) gfx.Format {
	f, err := gfx.ParseFormat(p.get(key))
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func (p *parser) colorSpace(key string) gfx.ColorSpace {
	c, err := gfx.ParseColorSpace(p.get(key))
	if err != nil {
		p.fail(key, err)
	}
	return c
}

func (p *parser) presentMode(key string) *gfx.PresentMode {
	v := p.get(key)
	if v == "" {
		return nil
	}
	mode, err := gfx.ParsePresentMode(v)
	if err != nil {
		p.fail(key, err)
		return nil
	}
	return &mode
}

func (p *parser) samples(key string) gfx.SampleCountFlags {
	s, err := gfx.SampleCountFromInt(p.integer(key))
	if err != nil {
		p.fail(key, err)
	}
	return s
}

func (p *parser) level(key string) log.Level {
	v := p.get(key)
	if v == "" {
		return log.InfoLevel
	}
	l, err := log.ParseLevel(v)
	if err != nil {
		p.fail(key, err)
		return log.InfoLevel
	}
	return l
}
