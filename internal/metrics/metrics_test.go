package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestHandlerExportsCountersAndEscapes(t *testing.T) {
	c := New()
	c.IncCall("redacted")
	c.IncCall("redacted")
	c.IncCall("bar\n\"x\"")
	c.IncCompanionServed()
	c.IncCompanionFailed()
	c.IncReload(true)
	c.IncReload(false)
	c.IncReload(false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler(HandlerOptions{BlocklistEntries: func() int { return 7 }}).ServeHTTP(rec, req)

	body := rec.Body.String()
	assertContains := func(substr string) {
		t.Helper()
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics output missing %q. Got:\n%s", substr, body)
		}
	}

	assertContains("binderveil_up 1")
	assertContains("binderveil_calls_total 3")
	assertContains("binderveil_companion_served_total 1")
	assertContains("binderveil_companion_failed_total 1")
	assertContains(`binderveil_blocklist_reloads_total{result="ok"} 1`)
	assertContains(`binderveil_blocklist_reloads_total{result="failed"} 2`)
	assertContains(`binderveil_calls_by_outcome_total{outcome="bar\\n\\\"x\\\""} 1`)
	assertContains("binderveil_calls_by_outcome_total{outcome=\"redacted\"} 2")
	assertContains("binderveil_blocklist_entries 7")
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.IncCall("x")
	c.IncCompanionServed()
	c.IncCompanionFailed()
	c.IncReload(true)
	if got := c.Calls(""); got != 0 {
		t.Fatalf("nil collector calls = %d", got)
	}
}

func TestConcurrentIncCall(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.IncCall("passthrough")
			}
		}()
	}
	wg.Wait()

	if got := c.Calls("passthrough"); got != 8000 {
		t.Fatalf("passthrough = %d, want 8000", got)
	}
	if got := c.Calls(""); got != 8000 {
		t.Fatalf("total = %d, want 8000", got)
	}
	if got := c.Calls("missing"); got != 0 {
		t.Fatalf("missing = %d", got)
	}
}
