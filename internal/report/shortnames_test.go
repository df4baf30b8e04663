// Copyright 2022 Google Inc. All Rights Reserved.
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

package report

import (
	"reflect"
	"testing"
)

func TestShortNames(t *testing.T) {
	type testCase struct {
		name string
		in   string
		out  []string
	}
	test := func(name, in string, out ...string) testCase {
		return testCase{name, in, out}
	}

	for _, c := range []testCase{
		test("empty", "", ""),
		test("simple", "foo", "foo"),
		test("trailingsep", "foo.bar.", "foo.bar.", "bar."),
		test("cplusplus", "a::b::c", "a::b::c", "b::c", "c"),
		test("dotted", "a.b.c", "a.b.c", "b.c", "c"),
		test("mixed_separators", "a::b.c::d", "a::b.c::d", "b.c::d", "c::d", "d"),
		test("call_operator", "foo::operator()", "foo::operator()", "operator()"),
	} {
		t.Run(c.name, func(t *testing.T) {
			got := shortNameList(c.in)
			if !reflect.DeepEqual(c.out, got) {
				t.Errorf("shortNameList(%q) = %#v, expecting %#v", c.in, got, c.out)
			}
		})
	}
}

func TestFit(t *testing.T) {
	const name = "std::vector<int>::push_back"
	for _, tc := range []struct {
		width int
		want  string
	}{
		{0, name},
		{40, name},
		{27, name},
		{25, "...vector<int>::push_back"},
		{20, "...push_back"},
		{5, "st..."},
		{3, "..."},
	} {
		rpt := &Report{options: &Options{Width: tc.width}}
		if got := rpt.fit(name, 0); got != tc.want {
			t.Errorf("fit(%q) with width %d = %q, want %q", name, tc.width, got, tc.want)
		}
	}
}
