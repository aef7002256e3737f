// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devblok/vkpresent/gfx"
)

// SafeString terminates s with a NUL byte, as the driver expects.
func SafeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

// SafeStrings applies SafeString to every element.
func SafeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, SafeString(s))
	}
	return safe
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseVersion reads "major.minor" or "major.minor.patch". The empty
// string is version zero.
func parseVersion(s string) (gfx.Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid version %q", s)
	}
	var nums [3]uint32
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = uint32(n)
	}
	return gfx.MakeVersion(nums[0], nums[1], nums[2]), nil
}
