// Copyright 2017 Google Inc. All Rights Reserved.
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
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/symtree/internal/plugin"
	"github.com/google/symtree/internal/symtest"
)

func makeTestServer(t testing.TB, obj *fakeObjTool) *httptest.Server {
	// Custom http server creator
	var server *httptest.Server
	creator := func(a *plugin.HTTPServerArgs) error {
		server = httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if h := a.Handlers[r.URL.Path]; h != nil {
					h.ServeHTTP(w, r)
				}
			}))
		return nil
	}

	b, err := load("testbin", "", obj)
	if err != nil {
		t.Fatal(err)
	}
	o := &plugin.Options{
		Obj:        obj,
		UI:         &symtest.TestUI{T: t, AllowRx: "Serving web UI|invalid syntax|parsing focus regexp|matched no symbols"},
		HTTPServer: creator,
	}
	if err := serveWebInterface("unused:1234", b, o, true, false); err != nil {
		t.Fatal(err)
	}

	// Close the server when the test is done.
	t.Cleanup(server.Close)
	return server
}

func TestWebInterface(t *testing.T) {
	server := makeTestServer(t, newFakeObjTool())

	type testCase struct {
		path       string
		wantStatus int
		want       []string
	}
	testcases := []testCase{
		{"/", http.StatusOK, []string{
			"<title>testbin</title>",
			"Build ID: f00d",
			"Symbols: 4",
			"window.symtreeRelayouts",
			"clearTimeout(resizeTimeout)",
			" 300 )",
			`"id":"std::vector::push_back"`,
			"./generation",
		}},
		{"/?f=" + url.QueryEscape("fmt"), http.StatusOK, []string{
			`"id":"core::fmt::write"`,
			"Symbols: 1",
		}},
		{"/?f=nomatch", http.StatusOK, []string{
			"Symbols: 0",
			"<div>Focus expression matched no symbols: nomatch</div>",
		}},
		{"/top", http.StatusOK, []string{
			"std::vector::push_back",
			"core::fmt::write",
		}},
		{"/tree?f=fmt", http.StatusOK, []string{"core", "write"}},
		{"/generation", http.StatusOK, []string{`{"generation":0}`}},
		{"/groups.json?n=many", http.StatusBadRequest, []string{"invalid syntax"}},
		{"/groups.json?f=" + url.QueryEscape("["), http.StatusBadRequest, []string{"parsing focus regexp"}},
	}
	for _, c := range testcases {
		res, err := http.Get(server.URL + c.path)
		if err != nil {
			t.Error("could not fetch", c.path, err)
			continue
		}
		data, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			t.Error("could not read response", c.path, err)
			continue
		}
		if res.StatusCode != c.wantStatus {
			t.Errorf("%s: status %d, want %d: %s", c.path, res.StatusCode, c.wantStatus, data)
			continue
		}
		result := string(data)
		for _, w := range c.want {
			if !strings.Contains(result, w) {
				t.Errorf("response for %s does not contain expected string %q; got:\n%s", c.path, w, result)
			}
		}
	}
}

func TestWebGroups(t *testing.T) {
	server := makeTestServer(t, newFakeObjTool())

	for _, tc := range []struct {
		query string
		want  []testGroup
	}{
		{"d=1", []testGroup{
			{ID: "std", Label: "std", Weight: 1536},
			{ID: "core", Label: "core", Weight: 256},
			{ID: "main", Label: "main", Weight: 128},
		}},
		{"d=1&n=1", []testGroup{
			{ID: "std", Label: "std", Weight: 1536},
			{ID: "(other)", Label: "(other)", Weight: 384},
		}},
		{"d=2&i=std|core", []testGroup{
			{ID: "main", Label: "main", Weight: 128},
		}},
	} {
		var got []testGroup
		if err := json.Unmarshal(get(t, server.URL+"/groups.json?"+tc.query), &got); err != nil {
			t.Fatalf("%s: %v", tc.query, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s: groups mismatch (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestWebReload(t *testing.T) {
	obj := newFakeObjTool()
	b, err := load("testbin", "", obj)
	if err != nil {
		t.Fatal(err)
	}
	ui, err := makeWebInterface(b, &plugin.Options{Obj: obj, UI: &symtest.TestUI{T: t}})
	if err != nil {
		t.Fatal(err)
	}

	fetch := func(h http.HandlerFunc, path string) string {
		t.Helper()
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", path, w.Code, w.Body)
		}
		return w.Body.String()
	}

	if got := fetch(ui.groups, "/groups.json"); !strings.Contains(got, `"main"`) {
		t.Fatalf("groups do not contain main: %s", got)
	}

	// Responses are cached until the binary is reloaded.
	obj.setSymbols(fakeSymbols()[:3])
	if got := fetch(ui.groups, "/groups.json"); !strings.Contains(got, `"main"`) {
		t.Errorf("cached groups do not contain main: %s", got)
	}
	if got := ui.cache.Len(); got != 1 {
		t.Errorf("%d cached responses, want 1", got)
	}

	ui.reload()
	if got, want := fetch(ui.generation, "/generation"), "{\"generation\":1}\n"; got != want {
		t.Errorf("generation = %q, want %q", got, want)
	}
	if got := fetch(ui.groups, "/groups.json"); strings.Contains(got, `"main"`) {
		t.Errorf("groups after reload still contain main: %s", got)
	}
	if got := fetch(ui.treemap, "/"); !strings.Contains(got, "let generation =  1 ;") {
		t.Errorf("treemap page does not carry generation 1:\n%s", got)
	}
	if got := obj.opened(); got != 2 {
		t.Errorf("binary opened %d times, want 2", got)
	}
}

func get(t *testing.T, url string) []byte {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("%s: status %d: %s", url, res.StatusCode, data)
	}
	return data
}

func TestGetHostAndPort(t *testing.T) {
	for _, tc := range []struct {
		hostport       string
		wantHost       string
		wantPort       int
		wantRandomPort bool
	}{
		{":", "localhost", 0, true},
		{":4681", "localhost", 4681, false},
		{"localhost:4681", "localhost", 4681, false},
		{"1.2.3.4:4681", "1.2.3.4", 4681, false},
		{"[::1]:4681", "::1", 4681, false},
	} {
		host, port, err := getHostAndPort(tc.hostport)
		if err != nil {
			t.Errorf("could not get host and port for %q: %v", tc.hostport, err)
		}
		if got, want := host, tc.wantHost; got != want {
			t.Errorf("for %s, got host %s, want %s", tc.hostport, got, want)
			continue
		}
		if !tc.wantRandomPort {
			if got, want := port, tc.wantPort; got != want {
				t.Errorf("for %s, got port %d, want %d", tc.hostport, got, want)
				continue
			}
		} else if port <= 0 {
			t.Errorf("for %s, got port %d, want a random port", tc.hostport, port)
		}
	}

	for _, bad := range []string{"4681", "localhost:port"} {
		if _, _, err := getHostAndPort(bad); err == nil {
			t.Errorf("getHostAndPort(%q) succeeded, want error", bad)
		}
	}
}

func TestIsLocalHost(t *testing.T) {
	for _, s := range []string{"localhost:10000", "[::1]:10000", "127.0.0.1:10000"} {
		host, _, err := net.SplitHostPort(s)
		if err != nil {
			t.Error("unexpected error when splitting", s)
			continue
		}
		if !isLocalhost(host) {
			t.Errorf("host %s from %s not considered local", host, s)
		}
	}
	if isLocalhost("example.com") {
		t.Errorf("example.com considered local")
	}
}

func TestCheckLocalHost(t *testing.T) {
	h := checkLocalHost(exactPath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})))
	for _, tc := range []struct {
		remote, path string
		want         int
	}{
		{"127.0.0.1:4681", "/", http.StatusOK},
		{"[::1]:4681", "/", http.StatusOK},
		{"192.0.2.1:4681", "/", http.StatusForbidden},
		{"127.0.0.1:4681", "/other", http.StatusNotFound},
	} {
		req := httptest.NewRequest("GET", tc.path, nil)
		req.RemoteAddr = tc.remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %s: status %d, want %d", tc.remote, tc.path, w.Code, tc.want)
		}
	}
}
