// Copyright 2024 Google Inc. All Rights Reserved.
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
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/symtree/internal/symtest"
)

func TestVariableSet(t *testing.T) {
	for _, tc := range []struct {
		name, value string
		want        string // stringValue after set; empty if set must fail
	}{
		{"keep_hashes", "yes", "true"},
		{"keep_hashes", "", "true"},
		{"keep_hashes", "N", "false"},
		{"keep_hashes", "maybe", ""},
		{"depth", "12", "12"},
		{"depth", "1.5", ""},
		{"nodefraction", "0.25", "0.25"},
		{"nodefraction", "half", ""},
		{"quiescence", "1.5s", "1.5s"},
		{"quiescence", "0", "0s"},
		{"quiescence", "300", ""},
		{"quiescence", "-300ms", ""},
		{"focus", "a|b", "a|b"},
		{"nosuchvariable", "1", ""},
	} {
		vars := symtreeVariables.makeCopy()
		err := vars.set(tc.name, tc.value)
		if tc.want == "" {
			if err == nil {
				t.Errorf("set(%q, %q) succeeded, want error", tc.name, tc.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("set(%q, %q): %v", tc.name, tc.value, err)
			continue
		}
		if got := vars[tc.name].stringValue(); got != tc.want {
			t.Errorf("set(%q, %q): value %q, want %q", tc.name, tc.value, got, tc.want)
		}
	}
}

func TestVariableDefaults(t *testing.T) {
	vars := symtreeVariables.makeCopy()
	if got, want := vars["quiescence"].durationValue(), 300*time.Millisecond; got != want {
		t.Errorf("default quiescence %v, want %v", got, want)
	}
	if got := vars["nodecount"].intValue(); got != -1 {
		t.Errorf("default nodecount %d, want -1", got)
	}
	if vars["keep_hashes"].boolValue() {
		t.Errorf("keep_hashes is set by default")
	}

	// Copies are independent.
	vars.set("depth", "2")
	if got := symtreeVariables["depth"].value; got == "2" {
		t.Errorf("setting a copy changed the original")
	}
}

func TestUsage(t *testing.T) {
	cli := usage(true)
	for _, want := range []string{"Output formats", "-web", "-quiescence", "-nodecount"} {
		if !strings.Contains(cli, want) {
			t.Errorf("command line usage does not mention %q:\n%s", want, cli)
		}
	}
	shell := usage(false)
	for _, want := range []string{"Commands:", "quit/exit/^D", "    quiescence"} {
		if !strings.Contains(shell, want) {
			t.Errorf("shell usage does not mention %q:\n%s", want, shell)
		}
	}
	if strings.Contains(shell, "-quiescence") {
		t.Errorf("shell usage uses flag names:\n%s", shell)
	}

	if got := symtreeCommands["top"].help("top"); !strings.Contains(got, "top [n] [focus_regex]* [-ignore_regex]* >f") {
		t.Errorf("top help:\n%s", got)
	}
	if got := symtreeCommands["web"].help("web"); strings.Contains(got, ">f") {
		t.Errorf("web help offers redirection:\n%s", got)
	}
}

func TestBrowsers(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("$BROWSER is only honored on linux")
	}
	t.Setenv("BROWSER", "mybrowser --new-window")
	b := browsers()
	if len(b) == 0 || b[0] != "mybrowser --new-window" {
		t.Errorf("browsers() = %v, want $BROWSER first", b)
	}
	if b[len(b)-1] != "xdg-open" {
		t.Errorf("browsers() = %v, want xdg-open last", b)
	}
}

func TestTreemapPage(t *testing.T) {
	b := loadFake(t)
	vars := applyCommandOverrides([]string{"web"}, symtreeVariables.makeCopy())
	_, rpt, err := generateRawReport(b, []string{"web"}, vars, &symtest.TestUI{T: t})
	if err != nil {
		t.Fatal(err)
	}

	var page bytes.Buffer
	post := invokeVisualizer(treemapPage, "html", nil)
	if err := post(mustGenerate(t, rpt), &page, rpt, &symtest.TestUI{T: t}); err != nil {
		t.Fatal(err)
	}
	got := page.String()
	for _, want := range []string{
		"<title>testbin</title>",
		"<div>Build ID: f00d</div>",
		`"id":"std::vector::pop_back"`,
		"window.symtreeRelayouts",
		" 300 )",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
	if strings.Contains(got, "./generation") {
		t.Errorf("standalone page polls the server")
	}
}

func TestInvokeVisualizer(t *testing.T) {
	viewer, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true command available")
	}
	dir := t.TempDir()
	t.Setenv("SYMTREE_TMPDIR", dir)
	defer cleanupTempFiles()

	b := loadFake(t)
	vars := applyCommandOverrides([]string{"web"}, symtreeVariables.makeCopy())
	_, rpt, err := generateRawReport(b, []string{"web"}, vars, &symtest.TestUI{T: t})
	if err != nil {
		t.Fatal(err)
	}
	post := invokeVisualizer(treemapPage, "html", []string{viewer})
	if err := post([]byte("[]"), os.Stdout, rpt, &symtest.TestUI{T: t}); err != nil {
		t.Fatal(err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "symtree001.html" {
		t.Errorf("temp files %v, want symtree001.html", files)
	}
}
