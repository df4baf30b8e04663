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

// Package plugin defines the plugin implementations that the main symtree
// driver requires.
package plugin

import (
	"io"
	"net/http"
	"regexp"

	"github.com/google/symtree/flagset"
)

// Options groups all the optional plugins into symtree.
type Options struct {
	Writer     Writer
	Flagset    FlagSet
	Obj        ObjTool
	UI         UI
	HTTPServer func(*HTTPServerArgs) error
}

// Writer provides a mechanism to write data under a certain name,
// typically a filename.
type Writer interface {
	Open(name string) (io.WriteCloser, error)
}

// A FlagSet creates and parses command-line flags.
type FlagSet = flagset.FlagSet

// An ObjTool inspects shared libraries and executable files.
type ObjTool interface {
	// Open opens the named object file.
	Open(file string) (ObjFile, error)
}

// An ObjFile is a single object file: a shared library or executable.
type ObjFile interface {
	// Name returns the underlying file name, if available.
	Name() string

	// BuildID returns the GNU build ID of the file, or an empty string.
	BuildID() string

	// Symbols returns a list of the symbols in the named section whose
	// names match the regexp, sized by the distance to the next symbol.
	// An empty section selects the format's text section. A nil regexp
	// matches all symbols.
	Symbols(section string, r *regexp.Regexp) ([]*Sym, error)

	// Close closes the file, releasing associated resources.
	Close() error
}

// A Sym describes a single symbol in an object file.
type Sym struct {
	Name    []string // names of symbol (many if symbol was dedup'ed)
	File    string   // object file containing symbol
	Section string   // section containing symbol
	Start   uint64   // start virtual address
	End     uint64   // virtual address of last byte in sym (Start+size-1)
}

// Size returns the number of bytes covered by the symbol.
func (s *Sym) Size() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start + 1
}

// A UI manages user interactions.
type UI interface {
	// Read returns a line of text (a command) read from the user.
	// prompt is printed before reading the command.
	ReadLine(prompt string) (string, error)

	// Print shows a message to the user.
	// It formats the text as fmt.Print would and adds a final \n if not already present.
	// For line-based UI, Print writes to standard error.
	// (Standard output is reserved for report data.)
	Print(...interface{})

	// PrintErr shows an error message to the user.
	// It formats the text as fmt.Print would and adds a final \n if not already present.
	// For line-based UI, PrintErr writes to standard error.
	PrintErr(...interface{})

	// IsTerminal returns whether the UI is known to be tied to an
	// interactive terminal (as opposed to being redirected to a file).
	IsTerminal() bool

	// WantBrowser indicates whether browser should be opened with the -http option.
	WantBrowser() bool

	// SetAutoComplete instructs the UI to call complete(cmd) to obtain
	// the auto-completion of cmd, if the UI supports auto-completion at all.
	SetAutoComplete(complete func(string) string)
}

// A ResizableUI is a UI whose output width can change while it runs,
// such as a terminal window.
type ResizableUI interface {
	UI

	// Width returns the current width of the UI in columns, or 0 if
	// unknown.
	Width() int

	// OnResize registers f to be called on every resize notification.
	OnResize(f func())
}

// HTTPServerArgs contains arguments needed by an HTTP server that
// is exporting a symtree web interface.
type HTTPServerArgs struct {
	// Hostport contains the http server address (derived from flags).
	Hostport string

	Host string // Host portion of Hostport
	Port int    // Port portion of Hostport

	// Handlers maps from URL paths to the handler to invoke to
	// serve that path.
	Handlers map[string]http.Handler
}
