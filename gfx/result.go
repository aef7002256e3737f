// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "fmt"

// Result is a status code returned by a device operation. Negative
// values are errors, so a Result can be returned and compared as one.
type Result int32

// Results the library reacts to.
const (
	Success                   Result = 0
	NotReady                  Result = 1
	Timeout                   Result = 2
	Suboptimal                Result = 1000001003
	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorExtensionNotPresent  Result = -7
	ErrorFeatureNotPresent    Result = -8
	ErrorSurfaceLost          Result = -1000000000
	ErrorOutOfDate            Result = -1000001004
)

var resultNames = map[Result]string{
	Success:                   "success",
	NotReady:                  "not ready",
	Timeout:                   "timeout",
	Suboptimal:                "suboptimal",
	ErrorOutOfHostMemory:      "out of host memory",
	ErrorOutOfDeviceMemory:    "out of device memory",
	ErrorInitializationFailed: "initialization failed",
	ErrorDeviceLost:           "device lost",
	ErrorExtensionNotPresent:  "extension not present",
	ErrorFeatureNotPresent:    "feature not present",
	ErrorSurfaceLost:          "surface lost",
	ErrorOutOfDate:            "out of date",
}

func (r Result) Error() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("result %d", int32(r))
}

// IsError is true for negative results.
func (r Result) IsError() bool {
	return r < 0
}

// Err returns the result as an error, or nil when it is not an error.
func (r Result) Err() error {
	if r.IsError() {
		return r
	}
	return nil
}
