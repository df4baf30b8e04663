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

// Package report summarizes a symbol size tree into a human-readable
// report.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/symtree/internal/measurement"
	"github.com/google/symtree/internal/symbolizer"
	"github.com/google/symtree/internal/tree"
)

// Generate generates a report as directed by the Report.
func Generate(w io.Writer, rpt *Report) error {
	o := rpt.options

	switch o.OutputFormat {
	case Text:
		return printText(w, rpt)
	case Tree:
		return printTree(w, rpt)
	case Raw:
		return printRaw(w, rpt)
	case JSON:
		return printJSON(w, rpt)
	}
	return fmt.Errorf("unexpected output format")
}

// printText prints the nodes holding symbols of their own, largest first.
func printText(w io.Writer, rpt *Report) error {
	nodes := rpt.tree.Leaves()
	origCount := len(nodes)
	if n := rpt.options.NodeCount; n > 0 && n < len(nodes) {
		nodes = nodes[:n]
	}

	fmt.Fprintln(w, strings.Join(reportLabels(rpt, nodes, origCount), "\n"))

	// Names start after the size and percentage columns.
	const prefix = 44
	fmt.Fprintf(w, "%10s %5s%% %5s%% %10s %5s%%\n", "flat", "flat", "sum", "cum", "cum")

	var flatSum int64
	for _, n := range nodes {
		flatSum += n.Flat
		fmt.Fprintf(w, "%10s %s %s %10s %s  %s\n",
			rpt.formatValue(n.Flat),
			measurement.Percentage(n.Flat, rpt.tree.Total),
			measurement.Percentage(flatSum, rpt.tree.Total),
			rpt.formatValue(n.Cum),
			measurement.Percentage(n.Cum, rpt.tree.Total),
			rpt.fit(n.ID, prefix))
	}
	return nil
}

// printTree prints the tree indented by depth. With a Symbol regexp only
// the subtrees rooted at matching nodes are printed (for the "peek"
// command).
func printTree(w io.Writer, rpt *Report) error {
	// Names start after the bar of the legend.
	const prefix = 49
	const legend = "      flat  flat%        cum   cum%            | name"
	separator := strings.Repeat("-", prefix-2) + "+" + strings.Repeat("-", 13)

	roots := rpt.roots()
	fmt.Fprintln(w, strings.Join(reportLabels(rpt, roots, 0), "\n"))
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, legend)

	depth := rpt.options.Depth
	for _, root := range roots {
		fmt.Fprintln(w, separator)
		var walk func(n *tree.Node, level int)
		walk = func(n *tree.Node, level int) {
			indent := strings.Repeat("  ", level)
			name := n.Name
			if level == 0 {
				name = n.ID
			}
			fmt.Fprintf(w, "%10s %s %10s %s            | %s%s\n",
				rpt.formatValue(n.Flat),
				measurement.Percentage(n.Flat, rpt.tree.Total),
				rpt.formatValue(n.Cum),
				measurement.Percentage(n.Cum, rpt.tree.Total),
				indent, rpt.fit(name, prefix+len(indent)))
			if depth > 0 && level+1 >= depth {
				return
			}
			for _, c := range n.Children {
				walk(c, level+1)
			}
		}
		walk(root, 0)
	}
	if len(roots) > 0 {
		fmt.Fprintln(w, separator)
	}
	return nil
}

// printRaw prints one line per symbol in address order.
func printRaw(w io.Writer, rpt *Report) error {
	syms := append([]*symbolizer.Symbol(nil), rpt.symbols...)
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].Address < syms[j].Address
	})
	for _, l := range Labels(rpt) {
		fmt.Fprintln(w, "# "+l)
	}
	rx := rpt.options.Symbol
	for _, s := range syms {
		if rx != nil && !rx.MatchString(s.Name) {
			continue
		}
		name := s.Name
		if s.Raw != s.Name {
			name += " [" + s.Raw + "]"
		}
		if len(s.Aliases) > 0 {
			name += " (aliases: " + strings.Join(s.Aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "%016x %10d %s\n", s.Address, s.Size, name)
	}
	return nil
}

// printJSON prints the treemap groups of the report roots.
func printJSON(w io.Writer, rpt *Report) error {
	return json.NewEncoder(w).Encode(rpt.roots())
}

// roots returns the nodes a report starts from: the children of the root,
// or the highest nodes matching the Symbol regexp.
func (rpt *Report) roots() tree.Nodes {
	if rx := rpt.options.Symbol; rx != nil {
		return rpt.tree.Match(rx)
	}
	return rpt.tree.Root.Children
}

// fit shortens name so that it fits in the report width after prefix
// columns. It prefers the longest suffix that starts at a separator.
func (rpt *Report) fit(name string, prefix int) string {
	width := rpt.options.Width - prefix
	if rpt.options.Width <= 0 || len(name) <= width {
		return name
	}
	const ellipsis = "..."
	for _, s := range shortNameList(name)[1:] {
		if len(s)+len(ellipsis) <= width {
			return ellipsis + s
		}
	}
	if width <= len(ellipsis) {
		return ellipsis
	}
	return name[:width-len(ellipsis)] + ellipsis
}

var sepRx = regexp.MustCompile(`::|\.`)

// shortNameList returns a non-empty sequence of shortened names
// (in decreasing preference) that can be used to represent name.
func shortNameList(name string) []string {
	name = strings.TrimSpace(name)
	result := []string{name}
	for _, m := range sepRx.FindAllStringIndex(name, -1) {
		if s := name[m[1]:]; s != "" {
			result = append(result, s)
		}
	}
	return result
}

// Labels returns printable labels for a report.
func Labels(rpt *Report) []string {
	var label []string
	src := rpt.source
	if src.File != "" {
		label = append(label, "File: "+filepath.Base(src.File))
	}
	if src.BuildID != "" {
		label = append(label, "Build ID: "+src.BuildID)
	}
	if src.Section != "" {
		label = append(label, "Section: "+src.Section)
	}
	label = append(label, fmt.Sprintf("Symbols: %d", rpt.tree.Symbols))
	label = append(label, "Total: "+rpt.formatValue(rpt.tree.Total))
	return label
}

// reportLabels returns printable labels for a report. Includes the
// labels of Labels unless compact labels were requested.
func reportLabels(rpt *Report, nodes tree.Nodes, origCount int) []string {
	var label []string
	if !rpt.options.CompactLabels {
		label = Labels(rpt)
	}
	if rpt.options.Title != "" {
		label = append([]string{rpt.options.Title}, label...)
	}

	var sum int64
	if rpt.options.OutputFormat == Text {
		sum, _ = nodes.Sum()
	} else {
		_, sum = nodes.Sum()
	}
	label = append(label, fmt.Sprintf("Showing nodes accounting for %s, %s of %s total",
		rpt.formatValue(sum), strings.TrimSpace(measurement.Percentage(sum, rpt.tree.Total)), rpt.formatValue(rpt.tree.Total)))
	if len(nodes) > 0 && len(nodes) < origCount {
		label = append(label, fmt.Sprintf("Showing top %d nodes out of %d", len(nodes), origCount))
	}
	return label
}

// Output formats.
const (
	Text = iota
	Tree
	Raw
	JSON
)

// Options are the formatting and filtering options used to generate a
// report.
type Options struct {
	OutputFormat int

	CompactLabels bool
	Title         string

	NodeCount int // Entries of a Text report; 0 means all
	Depth     int // Levels of a Tree report, roots included; 0 means all
	Width     int // Columns to fit names in; 0 means no limit

	OutputUnit string // Units for size formatting in report.

	Symbol *regexp.Regexp // Roots of Tree and JSON reports, symbols of Raw reports.
}

// Source describes the object file a report was built from.
type Source struct {
	File    string
	BuildID string
	Section string
}

// New builds a new report of t, built from syms read from src.
func New(t *tree.Tree, syms []*symbolizer.Symbol, src Source, o *Options) *Report {
	unit := o.OutputUnit
	if unit == "" {
		unit = "auto"
	}
	format := func(v int64) string {
		return measurement.ScaledLabel(v, "bytes", unit)
	}
	return &Report{t, syms, src, o, format}
}

// Report contains the data and associated routines to extract a
// report from a symbol tree.
type Report struct {
	tree        *tree.Tree
	symbols     []*symbolizer.Symbol
	source      Source
	options     *Options
	formatValue func(int64) string
}

// Tree returns the tree the report summarizes.
func (rpt *Report) Tree() *tree.Tree {
	return rpt.tree
}

// Title returns the title of the report, usually the name of the
// object file.
func (rpt *Report) Title() string {
	return rpt.options.Title
}

// FormatValue formats a size the way the report does.
func (rpt *Report) FormatValue(v int64) string {
	return rpt.formatValue(v)
}
