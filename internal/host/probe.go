package host

import (
	"fmt"
	"net/http"
	"time"
)

const (
	probeAttempts = 5
	probeInterval = 100 * time.Millisecond
	probeTimeout  = 2 * time.Second
)

// probe confirms the hosted application actually answers through the
// primary listener, not just that the listener is bound. Any response
// below 500 counts as responsive.
func probe(addr, rootPath string) error {
	url := fmt.Sprintf("http://%s%s", addr, rootPath)
	client := &http.Client{Timeout: probeTimeout}

	var lastErr error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(probeInterval)
		}
		resp, err := client.Get(url)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			return nil
		}
		lastErr = fmt.Errorf("got status %d", resp.StatusCode)
	}
	return fmt.Errorf("%w: %s: %v", ErrProbeFailed, url, lastErr)
}
