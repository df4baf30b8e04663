// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package symname splits demangled symbol names into the path components
// used to nest them in a size tree.
//
// Splitting is best effort. C++ and Rust names are split on "::" outside
// of template and generic arguments, Rust qualified paths
// (<Self as Trait>::item) are nested under Self, and Go names are split on
// their import path and dotted selectors.
package symname

import (
	"fmt"
	"strings"
)

// DefaultDepth is the default limit on the number of components kept
// for a single symbol.
const DefaultDepth = 100

// Components returns the path components of a demangled symbol name.
func Components(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var c []string
	switch {
	case strings.HasPrefix(name, "<"):
		q, err := parseQualified(name)
		if err != nil {
			c = splitPath(name)
			break
		}
		c = q.components()
	case strings.Contains(name, "::"):
		c = splitPath(name)
	default:
		c = splitGo(name)
	}
	return dropEmpty(c)
}

// Truncate limits c to at most limit components. A limit <= 0 means no
// limit.
func Truncate(c []string, limit int) []string {
	if limit > 0 && len(c) > limit {
		return c[:limit]
	}
	return c
}

// qualified is a Rust qualified path, <Self as Trait>::Rest.
type qualified struct {
	self, trait, rest string
}

func (q qualified) components() []string {
	var c []string
	if strings.HasPrefix(q.self, "<") {
		if sub, err := parseQualified(q.self); err == nil {
			c = sub.components()
		} else {
			c = splitPath(q.self)
		}
	} else {
		c = splitPath(q.self)
	}
	return append(c, splitPath(q.rest)...)
}

// parseQualified parses a name of the form <Self as Trait>::Rest.
func parseQualified(s string) (qualified, error) {
	depth := 1
	as, end := -1, -1
scan:
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if s[i-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				end = i
				break scan
			}
		case ' ':
			if depth == 1 && as < 0 && strings.HasPrefix(s[i:], " as ") {
				as = i
			}
		}
	}
	if end < 0 {
		return qualified{}, fmt.Errorf("qualified symbol %q does not end its qualified part with >", s)
	}
	if as < 0 {
		return qualified{}, fmt.Errorf("qualified symbol %q does not contain \" as \"", s)
	}
	rest := s[end+1:]
	if !strings.HasPrefix(rest, "::") {
		return qualified{}, fmt.Errorf("path after qualification does not start with \"::\": %q", rest)
	}
	return qualified{
		self:  s[1:as],
		trait: s[as+len(" as ") : end],
		rest:  rest[len("::"):],
	}, nil
}

// splitPath splits s on "::" separators that are not nested inside
// <>, (), [] or {}.
func splitPath(s string) []string {
	var c []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[', '{':
			depth++
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			if depth > 0 {
				depth--
			}
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ':' {
				c = append(c, s[start:i])
				start = i + 2
				i++
			}
		}
	}
	return append(c, s[start:])
}

// splitGo splits a Go symbol name such as
// "github.com/google/symtree/internal/driver.(*webInterface).groups"
// into its import path elements followed by its dotted selectors.
func splitGo(s string) []string {
	stop := len(s)
	if i := strings.IndexAny(s, "[("); i >= 0 {
		stop = i
	}
	slash := strings.LastIndex(s[:stop], "/")
	dot := strings.IndexByte(s[slash+1:stop], '.')
	if dot < 0 {
		if slash < 0 {
			return []string{s}
		}
		return strings.Split(s, "/")
	}
	dot += slash + 1
	// Major version suffixes, as in "gopkg.in/yaml.v3", belong to the
	// package name.
	for slash >= 0 && isMajorVersion(s[dot+1:stop]) {
		next := strings.IndexByte(s[dot+1:stop], '.')
		if next < 0 {
			return strings.Split(s, "/")
		}
		dot += next + 1
	}

	c := strings.Split(s[:dot], "/")
	return append(c, splitSelectors(s[dot+1:])...)
}

// isMajorVersion reports whether s starts with an element such as "v3"
// that ends at a dot or at the end of s.
func isMajorVersion(s string) bool {
	if !strings.HasPrefix(s, "v") {
		return false
	}
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 1 && (i == len(s) || s[i] == '.')
}

// splitSelectors splits s on dots that are not nested inside (), [] or
// {}.
func splitSelectors(s string) []string {
	var c []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				c = append(c, s[start:i])
				start = i + 1
			}
		}
	}
	return append(c, s[start:])
}

func dropEmpty(c []string) []string {
	out := c[:0]
	for _, s := range c {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
