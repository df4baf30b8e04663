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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/google/symtree/internal/binutils"
	"github.com/google/symtree/internal/plugin"
)

// setDefaults returns a new plugin.Options with zero fields sets to
// sensible defaults.
func setDefaults(o *plugin.Options) *plugin.Options {
	d := &plugin.Options{}
	if o != nil {
		*d = *o
	}
	if d.Writer == nil {
		d.Writer = oswriter{}
	}
	if d.Flagset == nil {
		d.Flagset = &GoFlags{}
	}
	if d.Obj == nil {
		d.Obj = &binutils.Binutils{}
	}
	if d.UI == nil {
		d.UI = defaultUI()
	}
	if d.HTTPServer == nil {
		d.HTTPServer = defaultWebServer
	}
	return d
}

func defaultUI() plugin.UI {
	ui := &readlineUI{}
	rl, err := readline.NewEx(&readline.Config{
		// Chain the terminal width notifications readline installs for
		// its own redraws.
		FuncOnWidthChanged: func(f func()) {
			readline.DefaultOnWidthChanged(func() {
				f()
				ui.resized()
			})
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fall back to the default UI due to a failure in initializing readline: %v", err)
		return &stdUI{r: bufio.NewReader(os.Stdin)}
	}
	ui.rl = rl
	return ui
}

type stdUI struct {
	r *bufio.Reader
}

func (ui *stdUI) ReadLine(prompt string) (string, error) {
	os.Stdout.WriteString(prompt)
	return ui.r.ReadString('\n')
}

func (ui *stdUI) Print(args ...interface{}) {
	ui.fprint(os.Stderr, args)
}

func (ui *stdUI) PrintErr(args ...interface{}) {
	ui.fprint(os.Stderr, args)
}

func (ui *stdUI) IsTerminal() bool {
	return false
}

func (ui *stdUI) WantBrowser() bool {
	return true
}

func (ui *stdUI) SetAutoComplete(func(string) string) {
}

func (ui *stdUI) fprint(f *os.File, args []interface{}) {
	text := fmt.Sprint(args...)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	f.WriteString(text)
}

// readlineUI implements the driver.UI interface using the
// github.com/chzyer/readline library. It also implements
// plugin.ResizableUI, reporting terminal width changes.
type readlineUI struct {
	rl *readline.Instance

	mu       sync.Mutex
	onResize []func()
}

// Read returns a line of text (a command) read from the user.
// prompt is printed before reading the command.
func (r *readlineUI) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	return r.rl.Readline()
}

// Print shows a message to the user.
// It is printed over stderr as stdout is reserved for regular output.
func (r *readlineUI) Print(args ...interface{}) {
	text := fmt.Sprint(args...)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(r.rl.Stderr(), text)
}

// PrintErr shows a message to the user, colored in red for emphasis.
// It is printed over stderr as stdout is reserved for regular output.
func (r *readlineUI) PrintErr(args ...interface{}) {
	text := fmt.Sprint(args...)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(r.rl.Stderr(), colorize(text))
}

// colorize the msg using ANSI color escapes.
func colorize(msg string) string {
	var red = 31
	var colorEscape = fmt.Sprintf("\033[0;%dm", red)
	var colorResetEscape = "\033[0m"
	return colorEscape + msg + colorResetEscape
}

// IsTerminal returns whether the UI is known to be tied to an
// interactive terminal (as opposed to being redirected to a file).
func (r *readlineUI) IsTerminal() bool {
	const stdout = 1
	return readline.IsTerminal(stdout)
}

// Start a browser on interactive mode.
func (r *readlineUI) WantBrowser() bool {
	return r.IsTerminal()
}

// SetAutoComplete instructs the UI to call complete(cmd) to obtain
// the auto-completion of cmd, if the UI supports auto-completion at all.
func (r *readlineUI) SetAutoComplete(complete func(string) string) {
	r.rl.Config.AutoComplete = completer(complete)
}

// Width returns the width of the terminal in columns, or 0 if unknown.
func (r *readlineUI) Width() int {
	if w := readline.GetScreenWidth(); w > 0 {
		return w
	}
	return 0
}

// OnResize registers f to be called on every terminal width change.
func (r *readlineUI) OnResize(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResize = append(r.onResize, f)
}

func (r *readlineUI) resized() {
	r.mu.Lock()
	fs := append([]func(){}, r.onResize...)
	r.mu.Unlock()
	for _, f := range fs {
		f()
	}
}

// completer adapts a line completion function to readline.AutoCompleter.
type completer func(string) string

// Do returns the text completing the line up to pos, if any.
func (c completer) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	full := c(prefix)
	if full == prefix || !strings.HasPrefix(full, prefix) {
		return nil, 0
	}
	return [][]rune{[]rune(full[len(prefix):])}, 0
}

// oswriter implements the Writer interface using a regular file.
type oswriter struct{}

func (oswriter) Open(name string) (io.WriteCloser, error) {
	f, err := os.Create(name)
	return f, err
}
