package browsertests

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"runtime"
	"testing"

	"github.com/google/symtree/driver"
	"github.com/google/symtree/flagset"
)

func makeTestServer(t testing.TB, flags testFlags) *httptest.Server {
	if runtime.GOOS == "nacl" || runtime.GOOS == "js" {
		t.Skip("test assumes tcp available")
	}

	// Custom http server creator
	var server *httptest.Server
	serverCreated := make(chan bool)
	creator := func(a *driver.HTTPServerArgs) error {
		server = httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if h := a.Handlers[r.URL.Path]; h != nil {
					h.ServeHTTP(w, r)
				}
			}))
		serverCreated <- true
		return nil
	}

	if flags == nil {
		flags = testFlags{}
	}
	flags["http"] = "unused:1234"
	flags["no_browser"] = true

	// Start server and wait for it to be initialized
	go func() {
		err := driver.Symtree(&driver.Options{
			Obj:        fakeObjTool{},
			UI:         testUI{t},
			HTTPServer: creator,
			Flagset:    flags,
		})
		if err != nil {
			panic(err)
		}
	}()
	<-serverCreated

	// Close the server when the test is done.
	t.Cleanup(server.Close)

	return server
}

// Fake test implementations of types needed by symtree driver.

const addrBase = 0x1000

type fakeObj struct{}

func (f fakeObj) Close() error    { return nil }
func (f fakeObj) Name() string    { return "testbin" }
func (f fakeObj) BuildID() string { return "f00d" }
func (f fakeObj) Symbols(section string, r *regexp.Regexp) ([]*driver.Sym, error) {
	if section != "" && section != ".text" {
		return nil, fmt.Errorf("no %s section", section)
	}
	return []*driver.Sym{
		{Name: []string{"std::vector::push_back"}, Section: ".text", Start: addrBase, End: addrBase + 0x3ff},
		{Name: []string{"std::vector::pop_back"}, Section: ".text", Start: addrBase + 0x400, End: addrBase + 0x5ff},
		{Name: []string{"core::fmt::write"}, Section: ".text", Start: addrBase + 0x600, End: addrBase + 0x6ff},
		{Name: []string{"main"}, Section: ".text", Start: addrBase + 0x700, End: addrBase + 0x77f},
	}, nil
}

type fakeObjTool struct{}

func (obj fakeObjTool) Open(file string) (driver.ObjFile, error) {
	return fakeObj{}, nil
}

type testFlags map[string]any

func (flags testFlags) Bool(name string, def bool, usage string) *bool {
	return getFlag(flags, name, def)
}
func (flags testFlags) Int(name string, def int, usage string) *int {
	return getFlag(flags, name, def)
}
func (flags testFlags) Float64(name string, def float64, usage string) *float64 {
	return getFlag(flags, name, def)
}
func (flags testFlags) String(name string, def string, usage string) *string {
	return getFlag(flags, name, def)
}
func (flags testFlags) StringList(name string, def string, usage string) *flagset.StringList {
	l := flagset.StringList{}
	if v, ok := flags[name]; ok {
		l = append(l, v.(string))
	}
	return &l
}
func (flags testFlags) ExtraUsage() string          { return "" }
func (flags testFlags) AddExtraUsage(eu string)     {}
func (flags testFlags) Parse(usage func()) []string { return []string{"testbin"} }

var _ driver.FlagSet = testFlags{}

func getFlag[T any](flags testFlags, name string, def T) *T {
	result := &def
	if v, ok := flags[name]; ok {
		*result = v.(T)
	}
	return result
}

type testUI struct {
	T testing.TB
}

func (ui testUI) ReadLine(_ string) (string, error)     { return "", io.EOF }
func (ui testUI) IsTerminal() bool                      { return false }
func (ui testUI) WantBrowser() bool                     { return false }
func (ui testUI) SetAutoComplete(_ func(string) string) {}
func (ui testUI) Print(args ...interface{})             {} // discard
func (ui testUI) PrintErr(args ...interface{}) {
	ui.T.Error("unexpected error: " + fmt.Sprint(args...))
}
