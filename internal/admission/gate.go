package admission

import (
	"net/http"
	"strings"
	"sync"

	"github.com/bundleserve/bundleserve/internal/metrics"
)

// Rule bounds concurrent and queued requests for the paths it matches.
// A rule matches either a set of exact paths or a set of suffixes, never
// both. MaxConcurrent must be at least 1; MaxQueued may be zero.
type Rule struct {
	Name          string
	Paths         []string
	Suffixes      []string
	MaxConcurrent int
	MaxQueued     int
}

func (r Rule) exact() bool {
	return len(r.Paths) > 0
}

// empty rules contribute no gate to the chain.
func (r Rule) empty() bool {
	return len(r.Paths) == 0 && len(r.Suffixes) == 0
}

// Gate is the runtime instance of a single rule. Its counters are guarded
// by one mutex; the paired acquire/release around the wrapped handler is
// the invariant that keeps capacity from leaking.
type Gate struct {
	rule  Rule
	paths map[string]struct{}
	next  http.Handler

	mu       sync.Mutex
	cond     *sync.Cond
	inflight int
	queued   int
}

func newGate(rule Rule, next http.Handler) *Gate {
	g := &Gate{
		rule: rule,
		next: next,
	}
	g.cond = sync.NewCond(&g.mu)
	if rule.exact() {
		g.paths = make(map[string]struct{}, len(rule.Paths))
		for _, p := range rule.Paths {
			g.paths[p] = struct{}{}
		}
	}
	return g
}

func (g *Gate) matches(path string) bool {
	if g.paths != nil {
		_, ok := g.paths[path]
		return ok
	}
	for _, suffix := range g.rule.Suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.matches(r.URL.Path) {
		g.next.ServeHTTP(w, r)
		return
	}

	if !g.acquire() {
		metrics.AdmissionRejected.WithLabelValues(g.rule.Name).Inc()
		http.Error(w, "too many requests in flight", http.StatusServiceUnavailable)
		return
	}
	defer g.release()

	g.next.ServeHTTP(w, r)
}

// acquire reserves a concurrency slot, blocking in the queue when the gate
// is saturated. It returns false when both the concurrent and queued
// capacity are exhausted.
func (g *Gate) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight < g.rule.MaxConcurrent {
		g.inflight++
		metrics.AdmissionAdmitted.WithLabelValues(g.rule.Name).Inc()
		return true
	}
	if g.queued >= g.rule.MaxQueued {
		return false
	}

	g.queued++
	metrics.AdmissionQueued.WithLabelValues(g.rule.Name).Inc()
	for g.inflight >= g.rule.MaxConcurrent {
		g.cond.Wait()
	}
	g.queued--
	g.inflight++
	return true
}

func (g *Gate) release() {
	g.mu.Lock()
	g.inflight--
	g.mu.Unlock()
	g.cond.Signal()
}

// counts is test-only visibility into the gate's state.
func (g *Gate) counts() (inflight, queued int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight, g.queued
}
