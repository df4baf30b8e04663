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
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/symtree/internal/debounce"
	"github.com/google/symtree/internal/plugin"
	"github.com/google/symtree/internal/report"
)

// interactive starts a shell to read symtree commands.
func interactive(b *binary, o *plugin.Options) error {
	// Enter command processing loop.
	o.UI.SetAutoComplete(newCompleter(b.symbolNames()))
	symtreeVariables.set("compact_labels", "true")

	var tw *terminalWidth
	if ui, ok := o.UI.(plugin.ResizableUI); ok {
		tw = trackTerminalWidth(ui, symtreeVariables["quiescence"].durationValue(), terminalClock)
		defer tw.stop()
	}

	// Do not wait for the visualizer to complete, to allow multiple
	// treemaps to be visualized simultaneously.
	waitForVisualizer = false

	greetings(b, o.UI)
	for {
		input, err := o.UI.ReadLine("(symtree) ")
		if err != nil {
			if err != io.EOF {
				return err
			}
			if input == "" {
				return nil
			}
		}

		for _, input := range symtreeShortcuts.expand(input) {
			// Process assignments of the form variable=value
			if s := strings.SplitN(input, "=", 2); len(s) > 0 {
				name := strings.TrimSpace(s[0])

				if v := symtreeVariables[name]; v != nil {
					var value string
					if len(s) == 2 {
						value = strings.TrimSpace(s[1])
					} else if v.kind != boolKind {
						o.UI.PrintErr(fmt.Sprintf("please specify a value, e.g. %s=<val>", name))
						continue
					}
					if err := symtreeVariables.set(name, value); err != nil {
						o.UI.PrintErr(err)
					} else if name == "quiescence" && tw != nil {
						tw.setQuiescence(v.durationValue())
					}
					continue
				}
			}

			tokens := strings.Fields(input)
			if len(tokens) == 0 {
				continue
			}

			switch tokens[0] {
			case "exit", "quit":
				return nil
			case "help":
				commandHelp(strings.Join(tokens[1:], " "), o.UI)
				continue
			}

			args, vars, err := parseCommandLine(tokens)
			if err == nil {
				if tw != nil && vars["width"].intValue() == 0 {
					vars.set("width", strconv.Itoa(tw.width()))
				}
				err = generateReportWrapper(b, args, vars, o)
			}

			if err != nil {
				o.UI.PrintErr(err)
			}
		}
	}
}

var generateReportWrapper = generateReport // For testing purposes.

// terminalClock schedules terminal re-layouts. Nil selects the wall clock.
var terminalClock debounce.Clock

// greetings prints a brief welcome and some overall information about
// the binary before accepting interactive commands.
func greetings(b *binary, ui plugin.UI) {
	vars := applyCommandOverrides([]string{"top"}, symtreeVariables.makeCopy())
	if rpt, err := newReport(b, report.Text, nil, vars, ui); err == nil {
		ui.Print(strings.Join(report.Labels(rpt), "\n"))
	}
	ui.Print("Entering interactive mode (type \"help\" for commands)")
}

// terminalWidth follows the width of a resizable UI. Bursts of resize
// notifications are debounced so the width is read once the terminal
// has settled.
type terminalWidth struct {
	ui      plugin.ResizableUI
	clock   debounce.Clock
	current atomic.Int64
	reads   atomic.Int64 // number of re-layouts, for tests

	mu sync.Mutex
	d  *debounce.Debouncer
}

// trackTerminalWidth reads the width of ui now and after every burst of
// resizes. A nil clock selects the wall clock.
func trackTerminalWidth(ui plugin.ResizableUI, quiescence time.Duration, clock debounce.Clock) *terminalWidth {
	tw := &terminalWidth{ui: ui, clock: clock}
	tw.current.Store(int64(ui.Width()))
	tw.d = debounce.New(quiescence, clock, tw.relayout)
	ui.OnResize(tw.signal)
	return tw
}

func (tw *terminalWidth) signal() {
	tw.mu.Lock()
	d := tw.d
	tw.mu.Unlock()
	d.Signal()
}

// setQuiescence changes the quiet period of later bursts. A burst in
// progress is carried over and settles after the new period.
func (tw *terminalWidth) setQuiescence(quiescence time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	pending := tw.d.Stop()
	tw.d = debounce.New(quiescence, tw.clock, tw.relayout)
	if pending {
		tw.d.Signal()
	}
}

func (tw *terminalWidth) relayout() {
	tw.current.Store(int64(tw.ui.Width()))
	tw.reads.Add(1)
}

// width returns the last width read, or 0 if unknown.
func (tw *terminalWidth) width() int {
	return int(tw.current.Load())
}

func (tw *terminalWidth) stop() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.d.Stop()
}

// shortcuts represents composite commands that expand into a sequence
// of other commands.
type shortcuts map[string][]string

func (a shortcuts) expand(input string) []string {
	input = strings.TrimSpace(input)
	if a != nil {
		if r, ok := a[input]; ok {
			return r
		}
	}
	return []string{input}
}

var symtreeShortcuts = shortcuts{
	":": []string{"focus=", "ignore=", "hide="},
}

var tailDigitsRE = regexp.MustCompile("[0-9]+$")

// parseCommandLine parses a command and returns the symtree command to
// execute and a set of variables for the report.
func parseCommandLine(input []string) ([]string, variables, error) {
	cmd, args := input[:1], input[1:]
	name := cmd[0]

	c := symtreeCommands[name]
	if c == nil {
		// Attempt splitting digits on abbreviated commands (eg top10)
		if d := tailDigitsRE.FindString(name); d != "" && d != name {
			name = name[:len(name)-len(d)]
			cmd[0], args = name, append([]string{d}, args...)
			c = symtreeCommands[name]
		}
	}
	if c == nil {
		if _, ok := symtreeVariables[name]; ok {
			value := "<val>"
			if len(args) > 0 {
				value = args[0]
			}
			return nil, nil, fmt.Errorf("did you mean: %s=%s", name, value)
		}
		return nil, nil, fmt.Errorf("unrecognized command: %q", name)
	}

	if c.hasParam {
		if len(args) == 0 {
			return nil, nil, fmt.Errorf("command %s requires an argument", name)
		}
		cmd = append(cmd, args[0])
		args = args[1:]
	}

	// Copy the variables as options set in the command line are not persistent.
	vcopy := symtreeVariables.makeCopy()

	var focus, ignore string
	for i := 0; i < len(args); i++ {
		t := args[i]
		if n, err := strconv.ParseInt(t, 10, 32); err == nil && n >= 0 {
			vcopy.set("nodecount", t)
			continue
		}
		switch t[0] {
		case '>':
			outputFile := t[1:]
			if outputFile == "" {
				i++
				if i >= len(args) {
					return nil, nil, fmt.Errorf("unexpected end of line after >")
				}
				outputFile = args[i]
			}
			vcopy.set("output", outputFile)
		case '-':
			ignore = catRegex(ignore, t[1:])
		default:
			focus = catRegex(focus, t)
		}
	}

	if focus != "" {
		vcopy.set("focus", catRegex(vcopy["focus"].value, focus))
	}
	if ignore != "" {
		vcopy.set("ignore", catRegex(vcopy["ignore"].value, ignore))
	}

	if vcopy["nodecount"].intValue() == -1 && name == "top" {
		vcopy.set("nodecount", "10")
	}

	return cmd, vcopy, nil
}

func catRegex(a, b string) string {
	if a != "" && b != "" {
		return a + "|" + b
	}
	return a + b
}

// commandHelp displays help and usage information for all Commands
// and Variables or a specific Command or Variable.
func commandHelp(args string, ui plugin.UI) {
	if args == "" {
		help := usage(false)
		help = help + `
  :   Clear focus/ignore/hide

  type "help <cmd|option>" for more information
`

		ui.Print(help)
		return
	}

	if c := symtreeCommands[args]; c != nil {
		ui.Print(c.help(args))
		return
	}

	if v := symtreeVariables[args]; v != nil {
		ui.Print(v.help + "\n")
		return
	}

	ui.PrintErr("Unknown command: " + args)
}

// newCompleter creates an autocompletion function for a set of commands.
func newCompleter(fns []string) func(string) string {
	return func(line string) string {
		switch tokens := strings.Fields(line); len(tokens) {
		case 0:
			// Nothing to complete
		case 1:
			// Single token -- complete command name
			if match := matchVariableOrCommand(tokens[0]); match != "" {
				return match
			}
		case 2:
			if tokens[0] == "help" {
				if match := matchVariableOrCommand(tokens[1]); match != "" {
					return tokens[0] + " " + match
				}
				return line
			}
			fallthrough
		default:
			// Multiple tokens -- complete using symbol names
			if cmd := symtreeCommands[tokens[0]]; cmd != nil {
				lastTokenIdx := len(tokens) - 1
				lastToken := tokens[lastTokenIdx]
				if strings.HasPrefix(lastToken, "-") {
					lastToken = "-" + functionCompleter(lastToken[1:], fns)
				} else {
					lastToken = functionCompleter(lastToken, fns)
				}
				return strings.Join(append(tokens[:lastTokenIdx], lastToken), " ")
			}
		}
		return line
	}
}

// matchVariableOrCommand attempts to match a string token to the prefix
// of a Command or a Variable.
func matchVariableOrCommand(token string) string {
	token = strings.ToLower(token)
	found := ""
	for cmd := range symtreeCommands {
		if strings.HasPrefix(cmd, token) {
			if found != "" {
				return ""
			}
			found = cmd
		}
	}
	for variable := range symtreeVariables {
		if strings.HasPrefix(variable, token) {
			if found != "" {
				return ""
			}
			found = variable
		}
	}
	return found
}

// functionCompleter replaces provided substring with a symbol name
// if a single match exists. Otherwise, it returns unchanged substring.
func functionCompleter(substring string, fns []string) string {
	found := ""
	for _, fName := range fns {
		if strings.Contains(fName, substring) {
			if found != "" {
				return substring
			}
			found = fName
		}
	}
	if found != "" {
		return found
	}
	return substring
}
