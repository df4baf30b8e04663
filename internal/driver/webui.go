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
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	gourl "net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/symtree/internal/plugin"
	"github.com/google/symtree/internal/report"
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheSize is the number of rendered responses kept by the web
// interface.
const cacheSize = 64

// webInterface holds the state needed for serving a browser based interface.
type webInterface struct {
	options *plugin.Options
	section string

	mu  sync.RWMutex
	bin *binary
	gen uint64 // incremented on every reload

	cache *lru.Cache[string, []byte]
}

func makeWebInterface(b *binary, o *plugin.Options) (*webInterface, error) {
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &webInterface{
		options: o,
		section: symtreeVariables["section"].value,
		bin:     b,
		cache:   cache,
	}, nil
}

// errorCatcher is a UI that captures errors for reporting to the browser.
type errorCatcher struct {
	plugin.UI
	errors []string
}

func (ec *errorCatcher) PrintErr(args ...interface{}) {
	ec.errors = append(ec.errors, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	ec.UI.PrintErr(args...)
}

func serveWebInterface(hostport string, b *binary, o *plugin.Options, disableBrowser, watch bool) error {
	host, port, err := getHostAndPort(hostport)
	if err != nil {
		return err
	}
	ui, err := makeWebInterface(b, o)
	if err != nil {
		return err
	}

	if watch {
		w, err := watchBinary(b.file, symtreeVariables["quiescence"].durationValue(), nil, ui.reload, o.UI)
		if err != nil {
			return err
		}
		defer w.Close()
	}

	args := &plugin.HTTPServerArgs{
		Hostport: net.JoinHostPort(host, strconv.Itoa(port)),
		Host:     host,
		Port:     port,
		Handlers: map[string]http.Handler{
			"/":            http.HandlerFunc(ui.treemap),
			"/groups.json": http.HandlerFunc(ui.groups),
			"/top":         http.HandlerFunc(ui.top),
			"/tree":        http.HandlerFunc(ui.tree),
			"/generation":  http.HandlerFunc(ui.generation),
		},
	}

	url := "http://" + args.Hostport

	o.UI.Print("Serving web UI on ", url)

	if o.UI.WantBrowser() && !disableBrowser {
		go openBrowser(url+"/", o)
	}
	return o.HTTPServer(args)
}

func getHostAndPort(hostport string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, fmt.Errorf("could not split http address: %v", err)
	}
	if host == "" {
		host = "localhost"
	}
	var port int
	if portStr == "" {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return "", 0, fmt.Errorf("could not generate random port: %v", err)
		}
		port = ln.Addr().(*net.TCPAddr).Port
		err = ln.Close()
		if err != nil {
			return "", 0, fmt.Errorf("could not generate random port: %v", err)
		}
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port number: %v", err)
		}
	}
	return host, port, nil
}

func defaultWebServer(args *plugin.HTTPServerArgs) error {
	ln, err := net.Listen("tcp", args.Hostport)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	for path, h := range args.Handlers {
		if path == "/" {
			h = exactPath(h)
		}
		mux.Handle(path, h)
	}
	var handler http.Handler = mux
	if isLocalhost(args.Host) {
		// Only allow local clients
		handler = checkLocalHost(handler)
	}
	s := &http.Server{Handler: handler}
	return s.Serve(ln)
}

// exactPath restricts a handler registered for "/" to that path.
func exactPath(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		h.ServeHTTP(w, req)
	})
}

func isLocalhost(host string) bool {
	for _, v := range []string{"localhost", "127.0.0.1", "[::1]", "::1"} {
		if host == v {
			return true
		}
	}
	return false
}

func checkLocalHost(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		host, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil || !isLocalhost(host) {
			http.Error(w, "permission denied", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, req)
	})
}

var openBrowser = func(url string, o *plugin.Options) {
	// Construct URL.
	u, _ := gourl.Parse(url)
	q := u.Query()
	for _, p := range []struct{ param, key string }{
		{"f", "focus"},
		{"i", "ignore"},
		{"h", "hide"},
	} {
		if v := symtreeVariables[p.key].value; v != "" {
			q.Set(p.param, v)
		}
	}
	u.RawQuery = q.Encode()

	// Give server a little time to get ready.
	time.Sleep(time.Millisecond * 500)

	for _, b := range browsers() {
		args := strings.Split(b, " ")
		if len(args) == 0 {
			continue
		}
		viewer := exec.Command(args[0], append(args[1:], u.String())...)
		viewer.Stderr = os.Stderr
		if err := viewer.Start(); err == nil {
			return
		}
	}
	// No visualizer succeeded, so just print URL.
	o.UI.PrintErr(u.String())
}

// reload reads the binary again and drops every cached response.
func (ui *webInterface) reload() {
	ui.mu.RLock()
	file := ui.bin.file
	ui.mu.RUnlock()

	b, err := load(file, ui.section, ui.options.Obj)
	if err != nil {
		ui.options.UI.PrintErr(err)
		return
	}

	ui.mu.Lock()
	ui.bin = b
	ui.gen++
	ui.mu.Unlock()
	ui.cache.Purge()
	ui.options.UI.Print("Reloaded ", file)
}

// current returns the binary being served and its generation.
func (ui *webInterface) current() (*binary, uint64) {
	ui.mu.RLock()
	defer ui.mu.RUnlock()
	return ui.bin, ui.gen
}

// makeReport generates a report for cmd, applying the filters in the
// request parameters.
func (ui *webInterface) makeReport(w http.ResponseWriter, req *http.Request, cmd []string) (*report.Report, []string) {
	b, _ := ui.current()

	vars := symtreeVariables.makeCopy()
	for _, p := range []struct{ param, key string }{
		{"f", "focus"},
		{"i", "ignore"},
		{"h", "hide"},
		{"d", "depth"},
		{"n", "nodecount"},
	} {
		if v := req.URL.Query().Get(p.param); v != "" {
			if err := vars.set(p.key, v); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				ui.options.UI.PrintErr(err)
				return nil, nil
			}
		}
	}
	vars = applyCommandOverrides(cmd, vars)

	// Capture any error messages generated while generating a report.
	catcher := &errorCatcher{UI: ui.options.UI}

	_, rpt, err := generateRawReport(b, cmd, vars, catcher)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		catcher.PrintErr(err)
		return nil, nil
	}
	return rpt, catcher.errors
}

// cached serves the response for req from the cache, or renders it with
// render and caches it.
func (ui *webInterface) cached(w http.ResponseWriter, req *http.Request, ctype string, render func() ([]byte, bool)) {
	_, gen := ui.current()
	key := fmt.Sprintf("%d %s?%s", gen, req.URL.Path, req.URL.Query().Encode())
	data, ok := ui.cache.Get(key)
	if !ok {
		if data, ok = render(); !ok {
			return
		}
		ui.cache.Add(key, data)
	}
	w.Header().Set("Content-Type", ctype)
	w.Write(data)
}

// treemap generates a web page containing the treemap of the binary.
func (ui *webInterface) treemap(w http.ResponseWriter, req *http.Request) {
	ui.cached(w, req, "text/html", func() ([]byte, bool) {
		rpt, errList := ui.makeReport(w, req, []string{"json"})
		if rpt == nil {
			return nil, false
		}
		groups := &bytes.Buffer{}
		if err := report.Generate(groups, rpt); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			ui.options.UI.PrintErr(err)
			return nil, false
		}
		_, gen := ui.current()
		legend := append(report.Labels(rpt), errList...)
		page := &bytes.Buffer{}
		if err := writeTreemap(page, treemapData{
			Title:      rpt.Title(),
			Legend:     legend,
			Groups:     strings.TrimSpace(groups.String()),
			Quiescence: symtreeVariables["quiescence"].durationValue(),
			Live:       true,
			Generation: gen,
		}); err != nil {
			http.Error(w, "internal template error", http.StatusInternalServerError)
			ui.options.UI.PrintErr(err)
			return nil, false
		}
		return page.Bytes(), true
	})
}

// groups serves the groups JSON of the binary.
func (ui *webInterface) groups(w http.ResponseWriter, req *http.Request) {
	ui.output(w, req, "json", "application/json")
}

// top serves the largest symbols in text form.
func (ui *webInterface) top(w http.ResponseWriter, req *http.Request) {
	ui.output(w, req, "top", "text/plain")
}

// tree serves the symbol tree in text form.
func (ui *webInterface) tree(w http.ResponseWriter, req *http.Request) {
	ui.output(w, req, "tree", "text/plain")
}

// output serves the output of the specified symtree cmd.
func (ui *webInterface) output(w http.ResponseWriter, req *http.Request, cmd, ctype string) {
	ui.cached(w, req, ctype, func() ([]byte, bool) {
		rpt, _ := ui.makeReport(w, req, []string{cmd})
		if rpt == nil {
			return nil, false
		}
		out := &bytes.Buffer{}
		if err := report.Generate(out, rpt); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			ui.options.UI.PrintErr(err)
			return nil, false
		}
		return out.Bytes(), true
	})
}

// generation serves the number of reloads of the binary.
func (ui *webInterface) generation(w http.ResponseWriter, req *http.Request) {
	_, gen := ui.current()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Generation uint64 `json:"generation"`
	}{gen})
}
