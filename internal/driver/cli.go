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
	"errors"
	"fmt"
	"strings"

	"github.com/google/symtree/flagset"
	"github.com/google/symtree/internal/plugin"
)

type source struct {
	File string

	HTTPHostport       string
	HTTPDisableBrowser bool
	Watch              bool
}

// parseFlags parses the command lines through the specified flags package
// and returns the source of the symbols and the command to run, if any.
// A nil command selects the web interface or the interactive shell.
func parseFlags(o *plugin.Options) (*source, []string, error) {
	flag := o.Flagset
	flagHTTP := flag.String("http", "", "Present interactive web UI at the specified http host:port")
	flagNoBrowser := flag.Bool("no_browser", false, "Skip opening a browser for the interactive web UI")
	flagWatch := flag.Bool("watch", false, "Reload the binary in the web UI when it changes on disk")

	// Flags that set configuration properties.
	flagCommands, flagParamCommands := installCommandFlags(flag)
	setters := installVariableFlags(flag)

	args := flag.Parse(func() {
		usageMsgVars := "\n\n  Miscellaneous:\n"
		usageMsgVars += "    -http host:port   Present interactive web UI at the specified http host:port\n"
		usageMsgVars += "    -no_browser       Skip opening a browser for the interactive web UI\n"
		usageMsgVars += "    -watch            Reload the binary in the web UI when it changes on disk\n"
		usageMsgVars += "\n  Environment Variables:\n"
		usageMsgVars += "    SYMTREE_TMPDIR    Location for temporary files (default current dir)\n"
		usageMsgVars += "    BROWSER           Browser tried first by the web command\n"
		o.UI.Print(usageMsgHdr + usage(true) + usageMsgVars + flag.ExtraUsage())
	})
	if len(args) == 0 {
		return nil, nil, errors.New("no binary specified")
	}
	if len(args) > 1 {
		return nil, nil, fmt.Errorf("too many arguments: %v", args)
	}

	for _, set := range setters {
		if err := set(); err != nil {
			return nil, nil, err
		}
	}

	cmd, err := outputFormat(flagCommands, flagParamCommands)
	if err != nil {
		return nil, nil, err
	}
	if cmd != nil && *flagHTTP != "" {
		return nil, nil, errors.New("-http is not compatible with an output format on the command line")
	}
	if *flagNoBrowser && *flagHTTP == "" {
		return nil, nil, errors.New("-no_browser only makes sense with -http")
	}
	if *flagWatch && *flagHTTP == "" {
		return nil, nil, errors.New("-watch only makes sense with -http")
	}

	si := symtreeVariables["section"].value
	if si != "" && strings.ContainsAny(si, " \t") {
		return nil, nil, fmt.Errorf("invalid section name %q", si)
	}

	source := &source{
		File:               args[0],
		HTTPHostport:       *flagHTTP,
		HTTPDisableBrowser: *flagNoBrowser,
		Watch:              *flagWatch,
	}

	return source, cmd, nil
}

// installCommandFlags defines one flag per command: a bool for commands
// without parameters and a string holding the parameter otherwise.
func installCommandFlags(flag plugin.FlagSet) (map[string]*bool, map[string]*string) {
	bcmd := make(map[string]*bool)
	scmd := make(map[string]*string)
	for name, cmd := range symtreeCommands {
		if cmd.hasParam {
			scmd[name] = flag.String(name, "", "Generate a report in "+name+" format, matching regexp")
		} else {
			bcmd[name] = flag.Bool(name, false, "Generate a report in "+name+" format")
		}
	}
	return bcmd, scmd
}

// installVariableFlags defines one flag per variable and returns the
// functions that copy the parsed values into the variables. focus,
// ignore and hide may be repeated; their values are joined into a
// single regexp.
func installVariableFlags(flag plugin.FlagSet) []func() error {
	var setters []func() error
	for name, v := range symtreeVariables {
		name, v := name, v
		switch {
		case name == "focus" || name == "ignore" || name == "hide":
			l := flag.StringList(name, v.value, strings.SplitN(v.help, "\n", 2)[0])
			setters = append(setters, func() error {
				return symtreeVariables.set(name, joinRegex(*l))
			})
		case v.kind == boolKind:
			b := flag.Bool(name, v.boolValue(), strings.SplitN(v.help, "\n", 2)[0])
			setters = append(setters, func() error {
				return symtreeVariables.set(name, fmt.Sprint(*b))
			})
		case v.kind == intKind:
			i := flag.Int(name, v.intValue(), strings.SplitN(v.help, "\n", 2)[0])
			setters = append(setters, func() error {
				return symtreeVariables.set(name, fmt.Sprint(*i))
			})
		case v.kind == floatKind:
			f := flag.Float64(name, v.floatValue(), strings.SplitN(v.help, "\n", 2)[0])
			setters = append(setters, func() error {
				return symtreeVariables.set(name, fmt.Sprint(*f))
			})
		default:
			s := flag.String(name, v.value, strings.SplitN(v.help, "\n", 2)[0])
			setters = append(setters, func() error {
				return symtreeVariables.set(name, *s)
			})
		}
	}
	return setters
}

func joinRegex(l flagset.StringList) string {
	var rx string
	for _, s := range l {
		rx = catRegex(rx, s)
	}
	return rx
}

// outputFormat returns the command selected by the flags, or nil if
// none was selected.
func outputFormat(bcmd map[string]*bool, acmd map[string]*string) (cmd []string, err error) {
	for n, b := range bcmd {
		if *b {
			if cmd != nil {
				return nil, errors.New("must set at most one output format")
			}
			cmd = []string{n}
		}
	}
	for n, s := range acmd {
		if *s != "" {
			if cmd != nil {
				return nil, errors.New("must set at most one output format")
			}
			cmd = []string{n, *s}
		}
	}
	return cmd, nil
}

var usageMsgHdr = `usage:

Produce output in the specified format.

   symtree <format> [options] <binary>

Omit the format to get an interactive shell whose commands can be used
to generate various views of the binary.

   symtree [options] <binary>

Or use the web interface to browse the binary as a treemap.

   symtree -http=[host]:[port] [options] <binary>

Details:
`
