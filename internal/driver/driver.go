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

// Package driver implements the core symtree functionality. It can be
// parameterized with a flag implementation, an object file reader and a
// user interface.
package driver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/google/symtree/internal/measurement"
	"github.com/google/symtree/internal/plugin"
	"github.com/google/symtree/internal/report"
	"github.com/google/symtree/internal/symbolizer"
	"github.com/google/symtree/internal/symname"
	"github.com/google/symtree/internal/tree"
)

// Symtree reads the symbols of an object file and arranges their sizes
// in a tree. Then it generates a report formatted according to the
// options selected through the flags package, serves a web interface
// or starts an interactive shell.
func Symtree(eo *plugin.Options) error {
	// Remove any temporary files created during symtree processing.
	defer cleanupTempFiles()

	o := setDefaults(eo)

	src, cmd, err := parseFlags(o)
	if err != nil {
		return err
	}

	b, err := load(src.File, symtreeVariables["section"].value, o.Obj)
	if err != nil {
		return err
	}

	if cmd != nil {
		return generateReport(b, cmd, symtreeVariables, o)
	}

	if src.HTTPHostport != "" {
		return serveWebInterface(src.HTTPHostport, b, o, src.HTTPDisableBrowser, src.Watch)
	}
	return interactive(b, o)
}

// binary is an object file loaded for reporting. Symbols are read once
// per section.
type binary struct {
	file    string
	buildID string
	obj     plugin.ObjTool

	mu   sync.Mutex
	syms map[string][]*plugin.Sym // by section
}

// load opens file and reads the symbols of section, so that problems
// with the file are reported before any command runs.
func load(file, section string, obj plugin.ObjTool) (*binary, error) {
	f, err := obj.Open(file)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %v", file, err)
	}
	b := &binary{
		file:    file,
		buildID: f.BuildID(),
		obj:     obj,
		syms:    make(map[string][]*plugin.Sym),
	}
	syms, err := f.Symbols(section, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("error reading symbols of %s: %v", file, err)
	}
	b.syms[section] = syms
	return b, nil
}

// symbols returns the raw symbols of a section of the binary.
func (b *binary) symbols(section string) ([]*plugin.Sym, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if syms, ok := b.syms[section]; ok {
		return syms, nil
	}
	f, err := b.obj.Open(b.file)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %v", b.file, err)
	}
	defer f.Close()
	syms, err := f.Symbols(section, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading symbols of %s: %v", b.file, err)
	}
	b.syms[section] = syms
	return syms, nil
}

// symbolNames returns the sorted, distinct demangled names of the
// symbols read so far.
func (b *binary) symbolNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, syms := range b.syms {
		for _, s := range syms {
			for _, n := range s.Name {
				if d, err := symbolizer.Demangle(n, ""); err == nil {
					n = d
				}
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func generateReport(b *binary, cmd []string, vars variables, o *plugin.Options) error {
	vars = applyCommandOverrides(cmd, vars.makeCopy())

	var w io.Writer
	switch output := vars["output"].value; output {
	case "":
		w = os.Stdout
	default:
		o.UI.PrintErr("Generating report in ", output)
		outputFile, err := o.Writer.Open(output)
		if err != nil {
			return err
		}
		defer outputFile.Close()
		w = outputFile
	}

	c, rpt, err := generateRawReport(b, cmd, vars, o.UI)
	if err != nil {
		return err
	}

	if c.postProcess == nil {
		return report.Generate(w, rpt)
	}

	// Capture output into buffer and send to postprocessing command.
	buf := &bytes.Buffer{}
	if err := report.Generate(buf, rpt); err != nil {
		return err
	}
	return c.postProcess(buf.Bytes(), w, rpt, o.UI)
}

// generateRawReport builds the report of cmd from the symbols of b.
// vars must already have the command overrides applied.
// Filters that match no symbol are reported to ui.
func generateRawReport(b *binary, cmd []string, vars variables, ui plugin.UI) (*command, *report.Report, error) {
	c := symtreeCommands[cmd[0]]
	if c == nil {
		return nil, nil, fmt.Errorf("unrecognized command: %q", cmd[0])
	}
	var symbol *regexp.Regexp
	if len(cmd) == 2 {
		s, err := regexp.Compile(cmd[1])
		if err != nil {
			return nil, nil, fmt.Errorf("parsing argument regexp %s: %v", cmd[1], err)
		}
		symbol = s
	}
	rpt, err := newReport(b, c.format, symbol, vars, ui)
	if err != nil {
		return nil, nil, err
	}
	return c, rpt, nil
}

// newReport builds a report in format from the symbols of b. symbol, if
// not nil, selects the roots or symbols to report.
func newReport(b *binary, format int, symbol *regexp.Regexp, vars variables, ui plugin.UI) (*report.Report, error) {
	section := vars["section"].value
	raw, err := b.symbols(section)
	if err != nil {
		return nil, err
	}
	syms, err := symbolizer.Symbolize(raw, symbolizer.Options{
		Demangle:   vars["demangle"].value,
		KeepHashes: vars["keep_hashes"].boolValue(),
	})
	if err != nil {
		return nil, err
	}

	topt, err := treeOptions(vars)
	if err != nil {
		return nil, err
	}
	if format != report.Text {
		// Text reports list leaves; nodecount limits entries instead.
		topt.NodeCount = vars["nodecount"].intValue()
	}
	t := buildTree(syms, topt)
	warnNoMatches(syms, topt, ui)

	ropt, err := reportOptions(vars)
	if err != nil {
		return nil, err
	}
	ropt.OutputFormat = format
	ropt.Symbol = symbol
	ropt.Title = filepath.Base(b.file)

	src := report.Source{File: b.file, BuildID: b.buildID, Section: section}
	return report.New(t, syms, src, ropt), nil
}

// buildTree arranges syms in a tree by the components of their names.
func buildTree(syms []*symbolizer.Symbol, o *tree.Options) *tree.Tree {
	t := tree.New(o)
	for _, s := range syms {
		t.Add(s.Name, symname.Components(s.Name), int64(s.Size))
	}
	t.Finish()
	return t
}

// warnNoMatches reports the focus, ignore and hide expressions that
// match no symbol.
func warnNoMatches(syms []*symbolizer.Symbol, o *tree.Options, ui plugin.UI) {
	for _, f := range []struct {
		option     string
		rx         *regexp.Regexp
		components bool
	}{
		{"Focus", o.Focus, false},
		{"Ignore", o.Ignore, false},
		{"Hide", o.Hide, true},
	} {
		if f.rx != nil && !matchesAny(syms, f.rx, f.components) {
			ui.PrintErr(f.option + " expression matched no symbols: " + f.rx.String())
		}
	}
}

// matchesAny reports whether rx matches the name of a symbol, or one of
// its name components.
func matchesAny(syms []*symbolizer.Symbol, rx *regexp.Regexp, components bool) bool {
	for _, s := range syms {
		if !components {
			if rx.MatchString(s.Name) {
				return true
			}
			continue
		}
		for _, c := range symname.Components(s.Name) {
			if rx.MatchString(c) {
				return true
			}
		}
	}
	return false
}

func applyCommandOverrides(cmd []string, v variables) variables {
	trim, focus, hide := true, true, true

	switch cmd[0] {
	case "raw":
		trim, hide = false, false
	case "peek":
		trim, focus, hide = false, false, false
		if v["levels"].intValue() == 0 {
			v.set("levels", "2")
		}
	}
	if v["nodecount"].intValue() == -1 {
		v.set("nodecount", "0")
	}
	if !trim {
		v.set("nodecount", "0")
		v.set("nodefraction", "0")
	}
	if !focus {
		v.set("focus", "")
		v.set("ignore", "")
	}
	if !hide {
		v.set("hide", "")
	}
	return v
}

// treeOptions returns the tree construction options selected by vars.
func treeOptions(vars variables) (*tree.Options, error) {
	o := &tree.Options{
		MaxDepth:     vars["depth"].intValue(),
		NodeFraction: vars["nodefraction"].floatValue(),
	}
	if vars["nodecount"].intValue() < 0 {
		return nil, fmt.Errorf("negative nodecount %d", vars["nodecount"].intValue())
	}
	if o.MaxDepth < 0 {
		return nil, fmt.Errorf("negative depth %d", o.MaxDepth)
	}
	if o.NodeFraction < 0 || o.NodeFraction > 1 {
		return nil, fmt.Errorf("nodefraction %v is outside [0, 1]", o.NodeFraction)
	}
	var err error
	if o.Focus, err = compileRegexOption("focus", vars["focus"].value); err != nil {
		return nil, err
	}
	if o.Ignore, err = compileRegexOption("ignore", vars["ignore"].value); err != nil {
		return nil, err
	}
	if o.Hide, err = compileRegexOption("hide", vars["hide"].value); err != nil {
		return nil, err
	}
	return o, nil
}

func compileRegexOption(name, value string) (*regexp.Regexp, error) {
	if value == "" {
		return nil, nil
	}
	rx, err := regexp.Compile(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s regexp: %v", name, err)
	}
	return rx, nil
}

func reportOptions(vars variables) (*report.Options, error) {
	unit := vars["unit"].value
	if err := measurement.CheckUnit(unit); err != nil {
		return nil, err
	}
	return &report.Options{
		CompactLabels: vars["compact_labels"].boolValue(),
		NodeCount:     vars["nodecount"].intValue(),
		Depth:         vars["levels"].intValue(),
		Width:         vars["width"].intValue(),
		OutputUnit:    unit,
	}, nil
}
