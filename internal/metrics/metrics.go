package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides a minimal Prometheus-compatible metrics exporter. All
// counters are lock-free so the dispatcher can record on every call.
type Collector struct {
	startedAt time.Time

	callsTotal atomic.Uint64
	byOutcome  sync.Map // string -> *atomic.Uint64

	companionServed atomic.Uint64
	companionFailed atomic.Uint64
	reloadsOK       atomic.Uint64
	reloadsFailed   atomic.Uint64
}

func New() *Collector {
	return &Collector{startedAt: time.Now().UTC()}
}

// IncCall records one intercepted call and how the dispatcher handled it.
func (c *Collector) IncCall(outcome string) {
	if c == nil {
		return
	}
	c.callsTotal.Add(1)
	if outcome == "" {
		outcome = "unknown"
	}
	ptr, ok := c.byOutcome.Load(outcome)
	if !ok {
		ptr, _ = c.byOutcome.LoadOrStore(outcome, &atomic.Uint64{})
	}
	ptr.(*atomic.Uint64).Add(1)
}

// Calls returns the number of calls recorded for outcome, or for all
// outcomes when outcome is empty.
func (c *Collector) Calls(outcome string) uint64 {
	if c == nil {
		return 0
	}
	if outcome == "" {
		return c.callsTotal.Load()
	}
	ptr, ok := c.byOutcome.Load(outcome)
	if !ok {
		return 0
	}
	return ptr.(*atomic.Uint64).Load()
}

func (c *Collector) IncCompanionServed() {
	if c == nil {
		return
	}
	c.companionServed.Add(1)
}

func (c *Collector) IncCompanionFailed() {
	if c == nil {
		return
	}
	c.companionFailed.Add(1)
}

func (c *Collector) IncReload(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.reloadsOK.Add(1)
		return
	}
	c.reloadsFailed.Add(1)
}

type HandlerOptions struct {
	BlocklistEntries func() int
}

func (c *Collector) Handler(opts HandlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, "# HELP binderveil_up Whether binderveil is running.\n")
		fmt.Fprint(w, "# TYPE binderveil_up gauge\n")
		fmt.Fprint(w, "binderveil_up 1\n")

		fmt.Fprint(w, "# HELP binderveil_uptime_seconds Seconds since the collector was created.\n")
		fmt.Fprint(w, "# TYPE binderveil_uptime_seconds gauge\n")
		fmt.Fprintf(w, "binderveil_uptime_seconds %d\n", int64(time.Since(c.startedAt).Seconds()))

		fmt.Fprint(w, "# HELP binderveil_calls_total Intercepted calls.\n")
		fmt.Fprint(w, "# TYPE binderveil_calls_total counter\n")
		fmt.Fprintf(w, "binderveil_calls_total %d\n", c.callsTotal.Load())

		fmt.Fprint(w, "# HELP binderveil_companion_served_total Blocklist requests answered with data.\n")
		fmt.Fprint(w, "# TYPE binderveil_companion_served_total counter\n")
		fmt.Fprintf(w, "binderveil_companion_served_total %d\n", c.companionServed.Load())

		fmt.Fprint(w, "# HELP binderveil_companion_failed_total Blocklist requests answered as unavailable.\n")
		fmt.Fprint(w, "# TYPE binderveil_companion_failed_total counter\n")
		fmt.Fprintf(w, "binderveil_companion_failed_total %d\n", c.companionFailed.Load())

		fmt.Fprint(w, "# HELP binderveil_blocklist_reloads_total Blocklist file reloads.\n")
		fmt.Fprint(w, "# TYPE binderveil_blocklist_reloads_total counter\n")
		fmt.Fprintf(w, "binderveil_blocklist_reloads_total{result=\"ok\"} %d\n", c.reloadsOK.Load())
		fmt.Fprintf(w, "binderveil_blocklist_reloads_total{result=\"failed\"} %d\n", c.reloadsFailed.Load())

		outcomes := snapshotKeys(&c.byOutcome)
		if len(outcomes) > 0 {
			fmt.Fprint(w, "# HELP binderveil_calls_by_outcome_total Intercepted calls by dispatcher outcome.\n")
			fmt.Fprint(w, "# TYPE binderveil_calls_by_outcome_total counter\n")
			for _, o := range outcomes {
				ptr, _ := c.byOutcome.Load(o)
				n := uint64(0)
				if ptr != nil {
					n = ptr.(*atomic.Uint64).Load()
				}
				fmt.Fprintf(w, "binderveil_calls_by_outcome_total{outcome=%q} %d\n", escapeLabelValue(o), n)
			}
		}

		if opts.BlocklistEntries != nil {
			fmt.Fprint(w, "# HELP binderveil_blocklist_entries Entries in the served blocklist.\n")
			fmt.Fprint(w, "# TYPE binderveil_blocklist_entries gauge\n")
			fmt.Fprintf(w, "binderveil_blocklist_entries %d\n", opts.BlocklistEntries())
		}
	})
}

func snapshotKeys(m *sync.Map) []string {
	var out []string
	m.Range(func(k, _ any) bool {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
		return true
	})
	sort.Strings(out)
	return out
}

func escapeLabelValue(v string) string {
	// Prometheus text format label escaping for " and \ and newlines.
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return v
}
