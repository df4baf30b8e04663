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

package measurement

import (
	"math"
	"testing"
)

func TestScale(t *testing.T) {
	for _, tc := range []struct {
		value            int64
		fromUnit, toUnit string
		wantValue        float64
		wantUnit         string
	}{
		{1, "kb", "b", 1024, "B"},
		{1, "kbyte", "b", 1024, "B"},
		{1, "kilobyte", "b", 1024, "B"},
		{1, "KiB", "bytes", 1024, "B"},
		{1, "mb", "kb", 1024, "kB"},
		{1, "gb", "mb", 1024, "MB"},
		{1024, "gb", "tb", 1, "TB"},
		{1024, "tb", "pb", 1, "PB"},
		{2048, "mb", "auto", 2, "GB"},
		{1536, "bytes", "auto", 1.5, "kB"},
		{512, "bytes", "auto", 512, "B"},
		{0, "bytes", "auto", 0, "B"},
		{3, "bytes", "furlongs", 3, "B"},
		{-2048, "bytes", "kb", -2, "kB"},
		{1, "foo", "count", 1, ""},
		{1, "foo", "bar", 1, "bar"},
		{2000, "symbol", "auto", 2000, ""},
	} {
		if gotValue, gotUnit := Scale(tc.value, tc.fromUnit, tc.toUnit); !floatEqual(gotValue, tc.wantValue) || gotUnit != tc.wantUnit {
			t.Errorf("Scale(%d, %q, %q) = (%g, %q), want (%g, %q)",
				tc.value, tc.fromUnit, tc.toUnit, gotValue, gotUnit, tc.wantValue, tc.wantUnit)
		}
	}
}

func TestLabel(t *testing.T) {
	for _, tc := range []struct {
		value        int64
		toUnit, want string
	}{
		{0, "auto", "0"},
		{100, "auto", "100B"},
		{1024, "auto", "1kB"},
		{1536, "auto", "1.50kB"},
		{5 << 20, "auto", "5MB"},
		{5 << 20, "kb", "5120kB"},
		{3 << 30, "MB", "3072MB"},
	} {
		if got := ScaledLabel(tc.value, "bytes", tc.toUnit); got != tc.want {
			t.Errorf("ScaledLabel(%d, bytes, %q) = %q, want %q", tc.value, tc.toUnit, got, tc.want)
		}
	}
	if got, want := Label(2048, "bytes"), "2kB"; got != want {
		t.Errorf("Label(2048) = %q, want %q", got, want)
	}
}

func TestPercentage(t *testing.T) {
	for _, tc := range []struct {
		value, total int64
		want         string
	}{
		{1, 1, "  100%"},
		{1, 2, "50.00%"},
		{1, 3, "33.33%"},
		{1, 1000, "  0.1%"},
		{0, 10, "    0%"},
		{5, 0, "    0%"},
	} {
		if got := Percentage(tc.value, tc.total); got != tc.want {
			t.Errorf("Percentage(%d, %d) = %q, want %q", tc.value, tc.total, got, tc.want)
		}
	}
}

func TestCheckUnit(t *testing.T) {
	for _, u := range []string{"auto", "B", "bytes", "kb", "MB", "gib"} {
		if err := CheckUnit(u); err != nil {
			t.Errorf("CheckUnit(%q): %v", u, err)
		}
	}
	for _, u := range []string{"", "ms", "minimum", "furlong"} {
		if err := CheckUnit(u); err == nil {
			t.Errorf("CheckUnit(%q) succeeded, want error", u)
		}
	}
}

func floatEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	avg := (math.Abs(a) + math.Abs(b)) / 2
	return diff/avg < 0.0001
}
