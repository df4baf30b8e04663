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

// Package driver provides an external entry point to the symtree driver.
package driver

import (
	internaldriver "github.com/google/symtree/internal/driver"
	"github.com/google/symtree/internal/plugin"
)

// Symtree reads the symbols of a binary named on the command line and
// reports how its text section is divided among them. It is
// parameterized by a set of plugins that can be provided by the caller;
// zero plugins select the defaults.
func Symtree(o *Options) error {
	return internaldriver.Symtree(o.internalOptions())
}

func (o *Options) internalOptions() *plugin.Options {
	if o == nil {
		return nil
	}
	return &plugin.Options{
		Writer:     o.Writer,
		Flagset:    o.Flagset,
		Obj:        o.Obj,
		UI:         o.UI,
		HTTPServer: o.HTTPServer,
	}
}

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
type Writer = plugin.Writer

// A FlagSet creates and parses command-line flags.
type FlagSet = plugin.FlagSet

// An ObjTool inspects shared libraries and executable files.
type ObjTool = plugin.ObjTool

// An ObjFile is a single object file: a shared library or executable.
type ObjFile = plugin.ObjFile

// A Sym describes a single symbol in an object file.
type Sym = plugin.Sym

// A UI manages user interactions.
type UI = plugin.UI

// A ResizableUI is a UI whose width can change while it runs. The
// interactive shell follows its width.
type ResizableUI = plugin.ResizableUI

// HTTPServerArgs contains arguments needed by an HTTP server that
// is exporting a symtree web interface.
type HTTPServerArgs = plugin.HTTPServerArgs
