// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkpresent/gfx"
)

// ErrNoSuitableDevice is returned when no physical device meets the
// requirements.
var ErrNoSuitableDevice = errors.New("no suitable physical device")

// Requirements a physical device must meet to be selected.
type Requirements struct {
	Extensions    []string
	Features      Features
	MinAPIVersion gfx.Version
}

// Candidate is a physical device that passed selection.
type Candidate struct {
	Device     PhysicalDevice
	Properties Properties
	Features   Features
}

// SelectDevices filters devices by req and returns the survivors ranked
// most preferred first.
func SelectDevices(devices []PhysicalDevice, req Requirements) ([]Candidate, error) {
	var candidates []Candidate
	for _, pd := range devices {
		props := pd.Properties()
		entry := log.WithField("device", props.Name)

		if props.APIVersion < req.MinAPIVersion {
			entry.WithField("version", props.APIVersion).Debug("device dropped: api version too old")
			continue
		}

		support := QueryFeatureSupport(pd, req.Features)
		if !support.ContainsMask(req.Features) {
			entry.WithField("features", support).Debug("device dropped: missing features")
			continue
		}

		if missing, err := missingExtension(pd, req.Extensions); err != nil {
			entry.WithError(err).Debug("device dropped: extensions unavailable")
			continue
		} else if missing != "" {
			entry.WithField("extension", missing).Debug("device dropped: missing extension")
			continue
		}

		candidates = append(candidates, Candidate{
			Device:     pd,
			Properties: props,
			Features:   support,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoSuitableDevice
	}
	RankCandidates(candidates)
	return candidates, nil
}

func missingExtension(pd PhysicalDevice, required []string) (string, error) {
	if len(required) == 0 {
		return "", nil
	}
	available, err := pd.Extensions()
	if err != nil {
		return "", err
	}
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := set[name]; !ok {
			return name, nil
		}
	}
	return "", nil
}

// RankCandidates orders candidates in place: device type first, then
// larger push constant limit. Full ties keep their order.
func RankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].Properties, candidates[j].Properties
		if sa, sb := typeScore(a.Type), typeScore(b.Type); sa != sb {
			return sa > sb
		}
		return a.MaxPushConstantsSize > b.MaxPushConstantsSize
	})
}

func typeScore(t gfx.DeviceType) int {
	switch t {
	case gfx.DeviceTypeDiscreteGPU:
		return 4
	case gfx.DeviceTypeIntegratedGPU:
		return 3
	case gfx.DeviceTypeVirtualGPU:
		return 2
	case gfx.DeviceTypeCPU:
		return 1
	}
	return 0
}
