package pipeline

import (
	"net/http"
	"sync"
	"time"
)

// Drainer is the drain-aware wrapper at the edge of the request pipeline.
// Once draining, new requests are refused at the edge while requests that
// were already accepted run to completion.
type Drainer struct {
	mu       sync.Mutex
	draining bool
	inflight int
	idle     chan struct{}
	idleOnce sync.Once
}

func NewDrainer() *Drainer {
	return &Drainer{idle: make(chan struct{})}
}

// Wrap returns next guarded by this drainer.
func (d *Drainer) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !d.enter() {
			http.Error(w, "service is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer d.leave()
		next.ServeHTTP(w, r)
	})
}

func (d *Drainer) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draining {
		return false
	}
	d.inflight++
	return true
}

func (d *Drainer) leave() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight--
	if d.draining && d.inflight == 0 {
		d.idleOnce.Do(func() { close(d.idle) })
	}
}

// Drain stops admitting new requests. Idempotent.
func (d *Drainer) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draining = true
	if d.inflight == 0 {
		d.idleOnce.Do(func() { close(d.idle) })
	}
}

// Wait blocks until every in-flight request has completed or the timeout
// elapses, and reports whether the pipeline went idle in time. Call Drain
// first; Wait never unblocks otherwise.
func (d *Drainer) Wait(timeout time.Duration) bool {
	select {
	case <-d.idle:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	select {
	case <-d.idle:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Inflight reports the number of requests currently being served.
func (d *Drainer) Inflight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight
}
