// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	log "github.com/sirupsen/logrus"
)

// ExtensionRequest lists what the caller wants enabled on an instance.
type ExtensionRequest struct {
	Required []string
	Optional []string

	// Debug adds the debug utilities extension when it is available.
	Debug bool
}

// Decision records why a name was or was not enabled.
type Decision struct {
	Name    string
	Enabled bool
	Reason  string
}

// Selection is the outcome of an enabling policy. Names keeps the
// order in which they should be passed to the driver.
type Selection struct {
	Names     []string
	Decisions []Decision
}

// Set returns the enabled names as an ExtensionSet.
func (s Selection) Set() ExtensionSet {
	return NewExtensionSet(s.Names...)
}

type selector struct {
	available map[string]bool
	enabled   map[string]bool
	sel       Selection
}

func newSelector(available []string) *selector {
	s := &selector{
		available: make(map[string]bool, len(available)),
		enabled:   make(map[string]bool),
	}
	for _, a := range available {
		s.available[a] = true
	}
	return s
}

func (s *selector) enable(name, reason string) {
	if s.enabled[name] {
		return
	}
	s.enabled[name] = true
	s.sel.Names = append(s.sel.Names, name)
	s.sel.Decisions = append(s.sel.Decisions, Decision{Name: name, Enabled: true, Reason: reason})
}

func (s *selector) skip(name, reason string) {
	s.sel.Decisions = append(s.sel.Decisions, Decision{Name: name, Reason: reason})
}

// SelectExtensions decides which instance extensions to enable given
// what the driver offers. Every required extension must be available.
// Optional ones are enabled when present. Requiring the surface
// extension also pulls in the swapchain color space extension and the
// surface maintenance pair when the driver has them.
func SelectExtensions(req ExtensionRequest, available []string) (Selection, error) {
	s := newSelector(available)

	for _, name := range req.Required {
		if !s.available[name] {
			return Selection{}, &MissingExtensionError{Name: name}
		}
	}
	for _, name := range req.Required {
		s.enable(name, "required")
	}

	for _, name := range req.Optional {
		if s.available[name] {
			s.enable(name, "optional")
		} else {
			s.skip(name, "optional, not available")
		}
	}

	if s.enabled[SurfaceExtension] {
		if s.available[SwapchainColorspaceExtension] {
			s.enable(SwapchainColorspaceExtension, "surface color spaces")
		}
		if s.available[SurfaceCapabilities2Extension] && s.available[SurfaceMaintenance1Extension] {
			s.enable(SurfaceCapabilities2Extension, "surface maintenance")
			s.enable(SurfaceMaintenance1Extension, "surface maintenance")
		}
	}

	if req.Debug {
		if s.available[DebugUtilsExtension] {
			s.enable(DebugUtilsExtension, "debug")
		} else {
			s.skip(DebugUtilsExtension, "debug, not available")
		}
	}

	return s.sel, nil
}

// SelectLayers decides which layers to enable. Required layers and, in
// debug mode, the validation layer must all be installed.
func SelectLayers(required []string, debug bool, available []string) (Selection, error) {
	s := newSelector(available)

	wanted := append([]string{}, required...)
	if debug {
		wanted = append(wanted, ValidationLayer)
	}
	for _, name := range wanted {
		if !s.available[name] {
			return Selection{}, &MissingLayerError{Name: name}
		}
		s.enable(name, "required")
	}
	return s.sel, nil
}

// LogDecisions writes enabling decisions to the given logger.
func LogDecisions(entry *log.Entry, decisions []Decision) {
	for _, d := range decisions {
		fields := log.Fields{
			"name":   d.Name,
			"reason": d.Reason,
		}
		if d.Enabled {
			entry.WithFields(fields).Debug("enabled")
		} else {
			entry.WithFields(fields).Info("not enabled")
		}
	}
}
