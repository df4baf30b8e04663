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

// Package tree collects sized symbols into a weighted tree keyed by the
// components of their names.
package tree

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/symtree/internal/symname"
)

// Separator joins the components of a node path into its ID.
const Separator = "::"

// OtherName is the name of the node that collects trimmed children.
const OtherName = "(other)"

// Tree summarizes the symbols of an object file into a hierarchy suitable
// for a treemap.
type Tree struct {
	Root *Node

	// Total is the number of bytes added to the tree. Symbols is the
	// number of symbols that contributed to it.
	Total   int64
	Symbols int

	opts Options
	byID map[string]*Node
}

// Options controls the construction of a tree.
type Options struct {
	MaxDepth int // Limit on the number of path components; 0 means no limit

	Focus  *regexp.Regexp // If non-nil, only add symbols whose name matches
	Ignore *regexp.Regexp // If non-nil, skip symbols whose name matches
	Hide   *regexp.Regexp // If non-nil, drop path components that match

	NodeFraction float64 // Collapse children below this fraction of the total
	NodeCount    int     // Collapse children beyond this many per node; 0 means none
}

// Nodes is an ordered collection of tree nodes.
type Nodes []*Node

// Node is an entry of the tree. It represents a unique path prefix of one
// or more symbol names.
type Node struct {
	Name string
	ID   string

	// Flat is the size of the symbols whose path ends at this node, cum
	// includes all descendants.
	Flat, Cum int64

	// Count is the number of symbols whose path ends at this node.
	Count int

	Children Nodes

	index map[string]*Node
}

// New returns an empty tree.
func New(o *Options) *Tree {
	t := &Tree{Root: newNode("", "")}
	if o != nil {
		t.opts = *o
	}
	return t
}

func newNode(name, id string) *Node {
	return &Node{Name: name, ID: id}
}

// child returns the child of n with the given name, creating it if
// needed.
func (n *Node) child(name string) *Node {
	if c := n.index[name]; c != nil {
		return c
	}
	id := name
	if n.ID != "" {
		id = n.ID + Separator + name
	}
	c := newNode(name, id)
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	n.index[name] = c
	n.Children = append(n.Children, c)
	return c
}

// Add inserts a symbol of the given size under the path given by its
// name components. name is the full symbol name, used for focus and
// ignore matching. It reports whether the symbol was added.
func (t *Tree) Add(name string, components []string, size int64) bool {
	if size <= 0 {
		return false
	}
	if t.opts.Focus != nil && !t.opts.Focus.MatchString(name) {
		return false
	}
	if t.opts.Ignore != nil && t.opts.Ignore.MatchString(name) {
		return false
	}
	if h := t.opts.Hide; h != nil {
		var kept []string
		for _, c := range components {
			if !h.MatchString(c) {
				kept = append(kept, c)
			}
		}
		components = kept
	}
	components = symname.Truncate(components, t.opts.MaxDepth)
	if len(components) == 0 {
		return false
	}

	n := t.Root
	for _, c := range components {
		n = n.child(c)
	}
	n.Flat += size
	n.Count++
	t.Total += size
	t.Symbols++
	return true
}

// Finish computes cumulative sizes, trims small nodes and sorts the
// tree. Nodes must not be added after Finish.
func (t *Tree) Finish() {
	cum(t.Root)

	var cutoff int64
	if t.opts.NodeFraction > 0 {
		cutoff = int64(float64(t.Total) * t.opts.NodeFraction)
	}
	t.trim(t.Root, cutoff)

	t.byID = make(map[string]*Node)
	t.walk(t.Root, 0, func(n *Node, depth int) bool {
		t.byID[n.ID] = n
		return true
	})
}

func cum(n *Node) int64 {
	n.Cum = n.Flat
	for _, c := range n.Children {
		n.Cum += cum(c)
	}
	return n.Cum
}

// trim sorts the children of n, collapses those below cutoff or beyond
// the node count into a single OtherName node, and recurses into the
// rest.
func (t *Tree) trim(n *Node, cutoff int64) {
	n.Children.Sort(CumNameOrder)

	var kept, dropped Nodes
	for i, c := range n.Children {
		if c.Cum < cutoff || (t.opts.NodeCount > 0 && i >= t.opts.NodeCount) {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	// Replacing a single node by OtherName hides a name and saves nothing.
	if len(dropped) == 1 {
		kept, dropped = n.Children, nil
	}

	if len(dropped) > 0 {
		var other *Node
		for _, c := range kept {
			if c.Name == OtherName {
				other = c
			}
		}
		if other == nil {
			id := OtherName
			if n.ID != "" {
				id = n.ID + Separator + OtherName
			}
			other = newNode(OtherName, id)
			kept = append(kept, other)
		}
		for _, d := range dropped {
			other.Flat += d.Cum
			other.Cum += d.Cum
			other.Count += d.symbols()
		}
	}
	n.Children = kept
	n.index = nil

	for _, c := range n.Children {
		t.trim(c, cutoff)
	}
}

// symbols returns the number of symbols at or below n.
func (n *Node) symbols() int {
	s := n.Count
	for _, c := range n.Children {
		s += c.symbols()
	}
	return s
}

// Walk calls fn for every node of the tree in depth-first order, parents
// before children, starting with the children of the root at depth 1.
// If fn returns false the children of that node are skipped.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	for _, c := range t.Root.Children {
		t.walk(c, 1, fn)
	}
}

func (t *Tree) walk(n *Node, depth int, fn func(n *Node, depth int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		t.walk(c, depth+1, fn)
	}
}

// Find returns the node with the given ID, or nil. The empty ID is the
// root.
func (t *Tree) Find(id string) *Node {
	return t.byID[id]
}

// Leaves returns every node that holds symbols of its own, ordered by
// decreasing flat size.
func (t *Tree) Leaves() Nodes {
	var ns Nodes
	t.Walk(func(n *Node, _ int) bool {
		if n.Flat != 0 {
			ns = append(ns, n)
		}
		return true
	})
	ns.Sort(FlatNameOrder)
	return ns
}

// Subtree returns a tree rooted at the node with the given ID, sharing
// its nodes with t, or nil if there is no such node.
func (t *Tree) Subtree(id string) *Tree {
	n := t.Find(id)
	if n == nil {
		return nil
	}
	s := &Tree{Root: n, Total: n.Cum, Symbols: n.symbols(), opts: t.opts}
	s.byID = make(map[string]*Node)
	s.walk(n, 0, func(n *Node, _ int) bool {
		s.byID[n.ID] = n
		return true
	})
	return s
}

// Match returns the highest nodes whose ID matches r. Descendants of a
// matching node are not returned.
func (t *Tree) Match(r *regexp.Regexp) Nodes {
	var ns Nodes
	t.Walk(func(n *Node, _ int) bool {
		if r.MatchString(n.ID) {
			ns = append(ns, n)
			return false
		}
		return true
	})
	return ns
}

// String returns a text representation of a tree, for debugging purposes.
func (t *Tree) String() string {
	var s []string
	t.Walk(func(n *Node, depth int) bool {
		s = append(s, fmt.Sprintf("%s%s[flat=%d cum=%d]", strings.Repeat("  ", depth-1), n.Name, n.Flat, n.Cum))
		return true
	})
	return strings.Join(s, "\n")
}

// Group is the JSON form of a node understood by the treemap: an array of
// groups nested through the groups field.
type Group struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Weight int64    `json:"weight"`
	Groups []*Group `json:"groups,omitempty"`
}

// Groups converts ns and their descendants into treemap groups.
func (ns Nodes) Groups() []*Group {
	gs := make([]*Group, 0, len(ns))
	for _, n := range ns {
		gs = append(gs, &Group{
			ID:     n.ID,
			Label:  n.Name,
			Weight: n.Cum,
			Groups: n.Children.groups(),
		})
	}
	return gs
}

func (ns Nodes) groups() []*Group {
	if len(ns) == 0 {
		return nil
	}
	return ns.Groups()
}

// MarshalJSON encodes ns as a treemap groups array.
func (ns Nodes) MarshalJSON() ([]byte, error) {
	return json.Marshal(ns.Groups())
}

// Sum adds the flat and cum values of a set of nodes.
func (ns Nodes) Sum() (flat int64, cum int64) {
	for _, n := range ns {
		flat += n.Flat
		cum += n.Cum
	}
	return
}

// nodeSorter is a mechanism used to allow a report to be sorted
// in different ways.
type nodeSorter struct {
	rs   Nodes
	less func(l, r *Node) bool
}

func (s nodeSorter) Len() int           { return len(s.rs) }
func (s nodeSorter) Swap(i, j int)      { s.rs[i], s.rs[j] = s.rs[j], s.rs[i] }
func (s nodeSorter) Less(i, j int) bool { return s.less(s.rs[i], s.rs[j]) }

// Sort reorders a slice of nodes based on the specified ordering
// criteria. The result is sorted in decreasing order for numeric
// quantities and alphabetically for text. OtherName nodes sort last.
func (ns Nodes) Sort(o NodeOrder) error {
	var s nodeSorter

	switch o {
	case FlatNameOrder:
		s = nodeSorter{ns,
			func(l, r *Node) bool {
				if iv, jv := l.Flat, r.Flat; iv != jv {
					return iv > jv
				}
				if l.ID != r.ID {
					return l.ID < r.ID
				}
				return l.Cum > r.Cum
			},
		}
	case CumNameOrder:
		s = nodeSorter{ns,
			func(l, r *Node) bool {
				if lo, ro := l.Name == OtherName, r.Name == OtherName; lo != ro {
					return ro
				}
				if iv, jv := l.Cum, r.Cum; iv != jv {
					return iv > jv
				}
				if l.Name != r.Name {
					return l.Name < r.Name
				}
				return l.Flat > r.Flat
			},
		}
	case NameOrder:
		s = nodeSorter{ns,
			func(l, r *Node) bool {
				return l.Name < r.Name
			},
		}
	default:
		return fmt.Errorf("tree: unrecognized sort ordering: %d", o)
	}
	sort.Sort(s)
	return nil
}

// NodeOrder sets the ordering for a Sort operation
type NodeOrder int

// Sorting options for node sort.
const (
	FlatNameOrder NodeOrder = iota
	CumNameOrder
	NameOrder
)
