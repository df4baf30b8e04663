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

// symtree is a tool for visualization of the size of binaries. It
// splits the text section of an executable among its symbols and nests
// them by name into a tree, shown as text or as a treemap.
package main

import (
	"fmt"
	"os"

	"github.com/google/symtree/driver"
)

func main() {
	if err := driver.Symtree(&driver.Options{}); err != nil {
		fmt.Fprintf(os.Stderr, "symtree: %v\n", err)
		os.Exit(2)
	}
}
