package browsertests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func maybeSkipBrowserTest(t *testing.T) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("This test only works on x86-64 Linux")
	}
	for _, b := range []string{"google-chrome", "chrome", "chromium"} {
		if _, err := exec.LookPath(b); err == nil {
			return
		}
	}
	t.Skip("chrome not available")
}

// browserDeadline is the deadline to use for browser tests. This is long to
// reduce flakiness in CI workflows.
const browserDeadline = time.Second * 60

// relayouts is a chromedp.Action that checks the number of treemap
// re-layouts performed by the page.
func relayouts(want int) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var got int
		if err := chromedp.Evaluate(`window.symtreeRelayouts`, &got).Do(ctx); err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("window.symtreeRelayouts = %d, want %d", got, want)
		}
		return nil
	}
}

func TestViewportResizeBurst(t *testing.T) {
	maybeSkipBrowserTest(t)

	server := makeTestServer(t, testFlags{"quiescence": "300ms"})
	ctx, cancel := context.WithTimeout(context.Background(), browserDeadline)
	defer cancel()
	ctx, cancel = chromedp.NewContext(ctx)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(800, 600),
		chromedp.Navigate(server.URL+"/"),
		chromedp.WaitReady(`#visualization`, chromedp.ByID),
		relayouts(0),

		// A burst of resizes, each well within the quiescence interval,
		// gives a single re-layout.
		chromedp.EmulateViewport(900, 600),
		chromedp.EmulateViewport(1000, 650),
		chromedp.EmulateViewport(1100, 700),
		chromedp.Sleep(time.Second),
		relayouts(1),

		// A later resize gives another one.
		chromedp.EmulateViewport(700, 500),
		chromedp.Sleep(time.Second),
		relayouts(2),
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestFocusedTreemap(t *testing.T) {
	maybeSkipBrowserTest(t)

	server := makeTestServer(t, testFlags{"focus": "std::"})
	ctx, cancel := context.WithTimeout(context.Background(), browserDeadline)
	defer cancel()
	ctx, cancel = chromedp.NewContext(ctx)
	defer cancel()

	var legend string
	var total int
	err := chromedp.Run(ctx,
		chromedp.Navigate(server.URL+"/"),
		chromedp.WaitReady(`#legend`, chromedp.ByID),
		chromedp.Text(`#legend`, &legend, chromedp.ByID),
		chromedp.Evaluate(`document.querySelectorAll("#legend div").length`, &total),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("legend:\n%s", legend)
	for _, want := range []string{"testbin", "Build ID: f00d", "Symbols: 2"} {
		if !strings.Contains(legend, want) {
			t.Errorf("legend does not contain %q", want)
		}
	}
	if total == 0 {
		t.Errorf("legend has no entries")
	}

	res, err := http.Get(server.URL + "/groups.json")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var groups []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].ID != "std" {
		t.Errorf("groups = %+v, want the single std group", groups)
	}
}
