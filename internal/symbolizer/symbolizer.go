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

// Package symbolizer turns the raw symbols of an object file into
// demangled, sized symbols ready to be arranged in a tree.
package symbolizer

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/symtree/internal/plugin"
	"github.com/ianlancetaylor/demangle"
)

// Options controls symbolization.
type Options struct {
	// Demangle selects how names are demangled:
	//   ""          demangled, simplified: no parameters, no templates
	//   "templates" demangled, simplified: no parameters
	//   "full"      fully demangled
	//   "none"      no demangling
	Demangle string

	// KeepHashes preserves the hash suffix of legacy Rust symbols.
	KeepHashes bool
}

// A Symbol is an object file symbol with its demangled name and size.
type Symbol struct {
	Name    string   // demangled name
	Raw     string   // name as found in the object file
	Aliases []string // other raw names at the same address
	Section string
	Address uint64
	Size    uint64
}

// rustHash matches the hash segment rustc appends to legacy mangled
// symbols, e.g. "::h078e837899a661cc".
var rustHash = regexp.MustCompile(`::h[0-9a-f]{16}$`)

// Symbolize demangles syms and returns them sorted by decreasing size,
// then by name.
func Symbolize(syms []*plugin.Sym, o Options) ([]*Symbol, error) {
	options, demangling, err := demanglerOptions(o.Demangle)
	if err != nil {
		return nil, err
	}

	out := make([]*Symbol, 0, len(syms))
	for _, s := range syms {
		if len(s.Name) == 0 || s.Size() == 0 {
			continue
		}
		raw, name := s.Name[0], s.Name[0]
		if demangling {
			raw, name = preferredName(s.Name, options)
		}
		if !o.KeepHashes {
			name = rustHash.ReplaceAllString(name, "")
		}
		var aliases []string
		for _, n := range s.Name {
			if n != raw {
				aliases = append(aliases, n)
			}
		}
		out = append(out, &Symbol{
			Name:    name,
			Raw:     raw,
			Aliases: aliases,
			Section: s.Section,
			Address: s.Start,
			Size:    s.Size(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Demangle demangles a single name using the given mode. Names that
// cannot be demangled are returned unchanged.
func Demangle(name, mode string) (string, error) {
	options, demangling, err := demanglerOptions(mode)
	if err != nil || !demangling {
		return name, err
	}
	return demangle.Filter(name, options...), nil
}

// preferredName returns the first raw name that demangles successfully
// together with its demangled form, or the first name unchanged.
func preferredName(names []string, options []demangle.Option) (raw, demangled string) {
	for _, n := range names {
		if d, err := demangle.ToString(n, options...); err == nil {
			return n, d
		}
	}
	return names[0], names[0]
}

// demanglerOptions maps a demangling mode to demangler options. The
// second result is false when no demangling should happen.
func demanglerOptions(mode string) ([]demangle.Option, bool, error) {
	switch mode {
	case "": // demangled, simplified: no parameters, no templates, no return type
		return []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams, demangle.NoTemplateParams}, true, nil
	case "templates": // demangled, simplified: no parameters, no return type
		return []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams}, true, nil
	case "full":
		return []demangle.Option{demangle.NoClones}, true, nil
	case "none": // no demangling
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("unknown demangling mode %q, want one of: templates, full, none", mode)
}
