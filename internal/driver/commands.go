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

package driver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/symtree/internal/plugin"
	"github.com/google/symtree/internal/report"
)

// commands describes the commands accepted by symtree.
type commands map[string]*command

// command describes the actions for a symtree command. Includes the
// report format to use during report generation, any postprocessing
// functions, and whether the command expects a regexp parameter
// (typically a symbol name).
type command struct {
	format      int           // report format to generate
	postProcess PostProcessor // postprocessing to run on report
	hasParam    bool          // collect a parameter from the CLI
	description string        // single-line description text saying what the command does
	usage       string        // multi-line help text saying how the command is used
}

// help returns a help string for a command.
func (c *command) help(name string) string {
	message := c.description + "\n"
	if c.usage != "" {
		message += "  Usage:\n"
		lines := strings.Split(c.usage, "\n")
		for _, line := range lines {
			message += fmt.Sprintf("    %s\n", line)
		}
	}
	return message + "\n"
}

// PostProcessor is a function that applies post-processing to the report
// output. rpt is the report that produced input.
type PostProcessor func(input []byte, output io.Writer, rpt *report.Report, ui plugin.UI) error

// waitForVisualizer makes symtree wait for visualizers to complete
// before continuing, returning any errors.
var waitForVisualizer = true

// symtreeCommands are the report generation commands recognized by symtree.
var symtreeCommands = commands{
	"top":  {report.Text, nil, false, "Outputs the largest symbols in text form", reportHelp("top", true)},
	"tree": {report.Tree, nil, false, "Outputs a text rendering of the symbol tree", reportHelp("tree", true)},
	"raw":  {report.Raw, nil, false, "Outputs every symbol with its address and size", reportHelp("raw", true)},
	"json": {report.JSON, nil, false, "Outputs the symbol tree as treemap groups", reportHelp("json", true)},
	"peek": {report.Tree, nil, true, "Outputs the subtrees of symbols matching regexp", "peek symbol_regex\nDisplay the two topmost levels below the nodes matching symbol_regex."},

	// Render the tree as a treemap page and show it in a browser.
	"web": {report.JSON, invokeVisualizer(treemapPage, "html", browsers()), false, "Visualize the symbol tree as a treemap in a web browser", reportHelp("web", false)},
}

// symtreeVariables are the configuration parameters that affect the
// reports generated by symtree.
var symtreeVariables = variables{
	// Filename for file-based output formats, stdout by default.
	"output": &variable{stringKind, "", helpText("Output filename for file-based outputs")},

	// Symbol selection.
	"section": &variable{stringKind, "", helpText(
		"Section to attribute symbols from",
		"Defaults to the text section of the binary: .text or __text.")},
	"demangle": &variable{stringKind, "", helpText(
		"Demangling mode for C++ and Rust symbols",
		"Leave empty for simplified names without parameters or template",
		"arguments. Use templates to keep template arguments, full for the",
		"complete demangled name and none to keep the mangled names.")},
	"keep_hashes": &variable{boolKind, "f", helpText(
		"Keep the hash suffix of legacy Rust symbols",
		"By default ::h<16 hex digits> is removed so that symbols of",
		"different crate versions aggregate.")},

	// Tree shape.
	"depth": &variable{intKind, "100", helpText(
		"Max number of name components per symbol",
		"Deeper components are merged into their ancestor at this depth.")},
	"nodecount": &variable{intKind, "-1", helpText(
		"Max number of nodes to show",
		"For top, the number of entries. For other reports, the number of",
		"children kept under each node; the rest are collapsed into (other).")},
	"nodefraction": &variable{floatKind, "0", helpText(
		"Collapse nodes below <f>*total into (other)")},
	"levels": &variable{intKind, "0", helpText(
		"Max number of tree levels to print",
		"Applies to tree and peek. Zero prints every level.")},

	// Filtering options
	"focus": &variable{stringKind, "", helpText(
		"Restricts to symbols matching regexp",
		"Discard symbols whose demangled name does not match this regexp.")},
	"ignore": &variable{stringKind, "", helpText(
		"Skips symbols matching regexp",
		"Discard symbols whose demangled name matches this regexp.")},
	"hide": &variable{stringKind, "", helpText(
		"Skips name components matching regexp",
		"Drop the matching components from every symbol path. A symbol",
		"whose components are all hidden is discarded.")},

	// Display options.
	"unit": &variable{stringKind, "auto", helpText(
		"Measurement units to display",
		"Scale sizes to this unit: bytes, kilobytes, megabytes, etc.",
		" auto will scale each value independently to the most natural unit.")},
	"compact_labels": &variable{boolKind, "f", "Show minimal headers"},
	"width": &variable{intKind, "0", helpText(
		"Columns available for text reports",
		"Long names are shortened to fit. In the interactive shell, zero",
		"follows the width of the terminal.")},
	"quiescence": &variable{durationKind, "300ms", helpText(
		"Quiet time before re-laying out after a resize",
		"Also delays reloads of a watched binary.")},
}

func helpText(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

// usage returns a string describing the symtree commands and variables.
// if commandLine is set, the output reflect cli usage.
func usage(commandLine bool) string {
	var prefix string
	if commandLine {
		prefix = "-"
	}
	fmtHelp := func(c, d string) string {
		return fmt.Sprintf("    %-16s %s", c, strings.SplitN(d, "\n", 2)[0])
	}

	var commands []string
	for name, cmd := range symtreeCommands {
		commands = append(commands, fmtHelp(prefix+name, cmd.description))
	}
	sort.Strings(commands)

	var help string
	if commandLine {
		help = "  Output formats (select at most one):\n"
	} else {
		help = "  Commands:\n"
		commands = append(commands, fmtHelp("quit/exit/^D", "Exit symtree"))
	}

	help = help + strings.Join(commands, "\n") + "\n\n" +
		"  Options:\n"

	var variables []string
	for name, vr := range symtreeVariables {
		variables = append(variables, fmtHelp(prefix+name, vr.help))
	}
	sort.Strings(variables)

	return help + strings.Join(variables, "\n") + "\n"
}

func reportHelp(c string, redirect bool) string {
	h := []string{
		c + " [n] [focus_regex]* [-ignore_regex]*",
		"Include up to n entries",
		"Include symbols matching focus_regex, and exclude ignore_regex.",
	}
	if redirect {
		h[0] += " >f"
		h = append(h, "Optionally save the report on the file f")
	}
	return strings.Join(h, "\n")
}

// browsers returns a list of commands to attempt for web visualization.
func browsers() []string {
	cmds := []string{"chrome", "google-chrome", "firefox"}
	switch runtime.GOOS {
	case "darwin":
		return append(cmds, "/usr/bin/open")
	case "windows":
		return append(cmds, "cmd /c start")
	default:
		userBrowser := os.Getenv("BROWSER")
		if userBrowser != "" {
			cmds = append([]string{userBrowser, "sensible-browser"}, cmds...)
		} else {
			cmds = append([]string{"sensible-browser"}, cmds...)
		}
		return append(cmds, "xdg-open")
	}
}

// treemapPage wraps the groups JSON of a report into a standalone
// treemap page.
func treemapPage(input []byte, output io.Writer, rpt *report.Report, ui plugin.UI) error {
	return writeTreemap(output, treemapData{
		Title:      rpt.Title(),
		Legend:     report.Labels(rpt),
		Groups:     string(bytes.TrimSpace(input)),
		Quiescence: symtreeVariables["quiescence"].durationValue(),
	})
}

func invokeVisualizer(format PostProcessor, suffix string, visualizers []string) PostProcessor {
	return func(input []byte, output io.Writer, rpt *report.Report, ui plugin.UI) error {
		if output != os.Stdout {
			return format(input, output, rpt, ui)
		}

		tempFile, err := newTempFile(os.Getenv("SYMTREE_TMPDIR"), "symtree", "."+suffix)
		if err != nil {
			return err
		}
		deferDeleteTempFile(tempFile.Name())
		if err := format(input, tempFile, rpt, ui); err != nil {
			tempFile.Close()
			return err
		}
		tempFile.Close()
		// Try visualizers until one is successful
		for _, v := range visualizers {
			// Separate command and arguments for exec.Command.
			args := strings.Split(v, " ")
			if len(args) == 0 {
				continue
			}
			viewer := exec.Command(args[0], append(args[1:], tempFile.Name())...)
			viewer.Stderr = os.Stderr
			if err = viewer.Start(); err == nil {
				// Wait for a second so that the visualizer has a chance to
				// open the input file. This needs to be done even if we're
				// waiting for the visualizer as it can be just a wrapper that
				// spawns a browser tab and returns right away.
				defer func(t <-chan time.Time) {
					<-t
				}(time.After(time.Second))
				if waitForVisualizer {
					return viewer.Wait()
				}
				return nil
			}
		}
		return err
	}
}

// variables describe the configuration parameters recognized by symtree.
type variables map[string]*variable

// variable is a single configuration parameter.
type variable struct {
	kind  int    // How to interpret the value, must be one of the enums below.
	value string // Effective value. Only values appropriate for the Kind should be set.
	help  string // Text describing the variable, in multiple lines separated by newline.
}

const (
	// variable.kind must be one of these variables.
	boolKind = iota
	intKind
	floatKind
	stringKind
	durationKind
)

// set updates the value of a variable, checking that the value is
// suitable for the variable Kind.
func (vars variables) set(name, value string) error {
	v := vars[name]
	if v == nil {
		return fmt.Errorf("no variable %s", name)
	}
	var err error
	switch v.kind {
	case boolKind:
		_, err = stringToBool(value)
	case intKind:
		_, err = strconv.Atoi(value)
	case floatKind:
		_, err = strconv.ParseFloat(value, 64)
	case durationKind:
		var d time.Duration
		if d, err = time.ParseDuration(value); err == nil && d < 0 {
			err = fmt.Errorf("negative duration %s for %s", value, name)
		}
	}
	if err != nil {
		return err
	}
	vars[name].value = value
	return nil
}

// boolValue returns the value of a boolean variable.
func (v *variable) boolValue() bool {
	b, err := stringToBool(v.value)
	if err != nil {
		panic("unexpected value " + v.value + " for bool ")
	}
	return b
}

// intValue returns the value of an intKind variable.
func (v *variable) intValue() int {
	i, err := strconv.Atoi(v.value)
	if err != nil {
		panic("unexpected value " + v.value + " for int ")
	}
	return i
}

// floatValue returns the value of a Float variable.
func (v *variable) floatValue() float64 {
	f, err := strconv.ParseFloat(v.value, 64)
	if err != nil {
		panic("unexpected value " + v.value + " for float ")
	}
	return f
}

// durationValue returns the value of a durationKind variable.
func (v *variable) durationValue() time.Duration {
	d, err := time.ParseDuration(v.value)
	if err != nil {
		panic("unexpected value " + v.value + " for duration ")
	}
	return d
}

// stringValue returns a canonical representation for a variable.
func (v *variable) stringValue() string {
	switch v.kind {
	case boolKind:
		return fmt.Sprint(v.boolValue())
	case intKind:
		return fmt.Sprint(v.intValue())
	case floatKind:
		return fmt.Sprint(v.floatValue())
	case durationKind:
		return v.durationValue().String()
	}
	return v.value
}

func stringToBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1", "":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf(`illegal value "%s" for bool variable`, s)
	}
}

// makeCopy returns a duplicate of a set of shell variables.
func (vars variables) makeCopy() variables {
	varscopy := make(variables, len(vars))
	for n, v := range vars {
		vcopy := *v
		varscopy[n] = &vcopy
	}
	return varscopy
}
