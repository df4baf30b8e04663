// Copyright 2014 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package measurement formats symbol sizes and their share of a total.
package measurement

import (
	"fmt"
	"math"
	"strings"
)

// Scale a size from a unit to a different unit and returns the scaled
// value and the target unit. The target unit "auto" picks the largest
// unit that keeps the value at or above 1. Unknown source units are
// returned unscaled.
func Scale(value int64, fromUnit, toUnit string) (float64, string) {
	// Avoid infinite recursion on overflow.
	if value < 0 && -value > 0 {
		v, u := Scale(-value, fromUnit, toUnit)
		return -v, u
	}
	if m, u, ok := memoryLabel(value, fromUnit, toUnit); ok {
		return m, u
	}
	// Skip non-interesting units.
	switch toUnit {
	case "count", "symbol", "auto":
		return float64(value), ""
	default:
		return float64(value), toUnit
	}
}

// Label returns the label used to describe a size given in unit.
func Label(value int64, unit string) string {
	return ScaledLabel(value, unit, "auto")
}

// ScaledLabel scales the passed-in size (if necessary) and returns its
// label.
func ScaledLabel(value int64, fromUnit, toUnit string) string {
	v, u := Scale(value, fromUnit, toUnit)
	sv := strings.TrimSuffix(fmt.Sprintf("%.2f", v), ".00")
	if sv == "0" || sv == "-0" {
		return "0"
	}
	return sv + u
}

// Percentage computes the percentage of total of a value, and encodes
// it as a string. At least two digits of precision are printed.
func Percentage(value, total int64) string {
	var ratio float64
	if total != 0 {
		ratio = math.Abs(float64(value)/float64(total)) * 100
	}
	switch {
	case math.Abs(ratio) >= 99.95 && math.Abs(ratio) <= 100.05:
		return "  100%"
	case math.Abs(ratio) >= 1.0:
		return fmt.Sprintf("%5.2f%%", ratio)
	default:
		return fmt.Sprintf("%5.2g%%", ratio)
	}
}

// CheckUnit returns an error unless unit can be used as the target of
// ScaledLabel for sizes.
func CheckUnit(unit string) error {
	if unit == "auto" || IsMemoryUnit(unit) {
		return nil
	}
	var names []string
	for _, u := range memoryUnits {
		names = append(names, u.preferredName)
	}
	return fmt.Errorf("unrecognized unit %q, want auto or one of %s", unit, strings.Join(names, ", "))
}

// unit includes a list of names representing a specific unit and a factor
// which one can multiple a value in the specified unit by to get the value
// in terms of the base unit.
type unit struct {
	preferredName string
	names         []string
	factor        float64
}

var memoryUnits = []unit{
	{"B", []string{"b", "byte"}, 1},
	{"kB", []string{"kb", "kbyte", "kilobyte", "kib"}, 1024},
	{"MB", []string{"mb", "mbyte", "megabyte", "mib"}, 1024 * 1024},
	{"GB", []string{"gb", "gbyte", "gigabyte", "gib"}, 1024 * 1024 * 1024},
	{"TB", []string{"tb", "tbyte", "terabyte", "tib"}, 1024 * 1024 * 1024 * 1024},
	{"PB", []string{"pb", "pbyte", "petabyte", "pib"}, 1024 * 1024 * 1024 * 1024 * 1024},
}

// IsMemoryUnit returns whether a name is recognized as a memory size
// unit.
func IsMemoryUnit(unit string) bool {
	_, _, memoryUnit := unitFactor(normalize(unit), memoryUnits)
	return memoryUnit
}

func normalize(unit string) string {
	return strings.TrimSuffix(strings.ToLower(unit), "s")
}

func memoryLabel(value int64, fromUnit, toUnit string) (v float64, u string, ok bool) {
	fromUnit, toUnit = normalize(fromUnit), normalize(toUnit)

	_, fromUnitFactor, ok := unitFactor(fromUnit, memoryUnits)
	if !ok {
		return 0, "", false
	}
	v = float64(value) * fromUnitFactor

	if toUnit == "auto" {
		if v, u, ok := autoscale(v, memoryUnits); ok {
			return v, u, true
		}
		return v, "B", true
	}

	toUnit, toUnitFactor, ok := unitFactor(toUnit, memoryUnits)
	if !ok {
		return v, "B", true
	}
	return v / toUnitFactor, toUnit, true
}

// unitFactor returns the preferred version of the unit name for display, the
// factor by which one must multiply a value specified in terms of unit in
// order to get the value specified in terms of the base unit, and a boolean
// to indicated if a unit factor was identified for the specified unit within
// the slice units.
func unitFactor(unit string, units []unit) (string, float64, bool) {
	for _, u := range units {
		for _, n := range u.names {
			if unit == n {
				return u.preferredName, u.factor, true
			}
		}
	}
	return unit, 0, false
}

// autoscale takes in the value with units of base unit and returns
// that value scaled to a reasonable unit if a reasonable unit is
// found.
func autoscale(value float64, units []unit) (float64, string, bool) {
	var f float64
	var unit string
	for _, u := range units {
		if u.factor >= f && (value/u.factor) >= 1.0 {
			f = u.factor
			unit = u.preferredName
		}
	}
	if f == 0 {
		return 0, "", false
	}
	return value / f, unit, true
}
