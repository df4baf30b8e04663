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

package symbolizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/symtree/internal/plugin"
)

func TestDemangleModes(t *testing.T) {
	const mangled = "_ZNSaIcEC1ERKS_"
	for _, tc := range []struct {
		mode string
		want string
	}{
		{"", "std::allocator::allocator"},
		{"templates", "std::allocator<char>::allocator"},
		{"full", "std::allocator<char>::allocator(std::allocator<char> const&)"},
		{"none", mangled},
	} {
		got, err := Demangle(mangled, tc.mode)
		if err != nil {
			t.Errorf("Demangle(%q, %q): %v", mangled, tc.mode, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Demangle(%q, %q) = %q, want %q", mangled, tc.mode, got, tc.want)
		}
	}

	if _, err := Demangle(mangled, "bogus"); err == nil {
		t.Errorf("Demangle with unknown mode succeeded, want error")
	}
	if got, _ := Demangle("main", ""); got != "main" {
		t.Errorf("Demangle(%q) = %q, want it unchanged", "main", got)
	}
}

func TestSymbolize(t *testing.T) {
	syms := []*plugin.Sym{
		{Name: []string{"_ZNSaIcEC1ERKS_"}, Section: ".text", Start: 0x1000, End: 0x100f},
		{Name: []string{"main"}, Section: ".text", Start: 0x1010, End: 0x104f},
		{Name: []string{"zero"}, Section: ".text", Start: 0x1050, End: 0x104f},
		{Name: []string{"alias_b", "_ZNSaIcEC2ERKS_"}, Section: ".text", Start: 0x1050, End: 0x105f},
		{Name: []string{"core::fmt::write::h0123456789abcdef"}, Section: ".text", Start: 0x1060, End: 0x10df},
		{Section: ".text", Start: 0x10e0, End: 0x10ff},
	}

	got, err := Symbolize(syms, Options{})
	if err != nil {
		t.Fatalf("Symbolize: %v", err)
	}
	want := []*Symbol{
		{Name: "core::fmt::write", Raw: "core::fmt::write::h0123456789abcdef", Section: ".text", Address: 0x1060, Size: 0x80},
		{Name: "main", Raw: "main", Section: ".text", Address: 0x1010, Size: 0x40},
		{Name: "std::allocator::allocator", Raw: "_ZNSaIcEC1ERKS_", Section: ".text", Address: 0x1000, Size: 0x10},
		{Name: "std::allocator::allocator", Raw: "_ZNSaIcEC2ERKS_", Aliases: []string{"alias_b"}, Section: ".text", Address: 0x1050, Size: 0x10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Symbolize mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbolizeKeepHashes(t *testing.T) {
	syms := []*plugin.Sym{
		{Name: []string{"core::fmt::write::h0123456789abcdef"}, Start: 0, End: 9},
		{Name: []string{"not::a::hash::h0123"}, Start: 10, End: 19},
	}
	for _, tc := range []struct {
		keep bool
		want []string
	}{
		{false, []string{"core::fmt::write", "not::a::hash::h0123"}},
		{true, []string{"core::fmt::write::h0123456789abcdef", "not::a::hash::h0123"}},
	} {
		got, err := Symbolize(syms, Options{Demangle: "none", KeepHashes: tc.keep})
		if err != nil {
			t.Fatalf("Symbolize: %v", err)
		}
		var names []string
		for _, s := range got {
			names = append(names, s.Name)
		}
		if diff := cmp.Diff(tc.want, names); diff != "" {
			t.Errorf("KeepHashes=%v: names mismatch (-want +got):\n%s", tc.keep, diff)
		}
	}
}

func TestSymbolizeBadMode(t *testing.T) {
	if _, err := Symbolize(nil, Options{Demangle: "everything"}); err == nil {
		t.Errorf("Symbolize with unknown demangling mode succeeded, want error")
	}
}
