// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

// MissingExtensionError is returned when a required extension is not
// offered by the driver.
type MissingExtensionError struct {
	Name string
}

func (e *MissingExtensionError) Error() string {
	return "required extension not available: " + e.Name
}

// MissingLayerError is returned when a required layer is not installed.
type MissingLayerError struct {
	Name string
}

func (e *MissingLayerError) Error() string {
	return "required layer not available: " + e.Name
}

// LoadingError wraps a failure to load the graphics API itself.
type LoadingError struct {
	Err error
}

func (e *LoadingError) Error() string {
	return "unable to load graphics api: " + e.Err.Error()
}

func (e *LoadingError) Unwrap() error {
	return e.Err
}
