package host

import (
	"runtime"

	"github.com/bundleserve/bundleserve/internal/config"
)

// Floors for the listener connection budgets. A single-core machine still
// gets enough headroom for the self-probe and an administrative shutdown.
const (
	minIOConns     = 2
	minWorkerConns = 8
)

// poolSizes computes the concurrent-connection budget for each listener:
// the configured value when set, otherwise derived from the processor
// count, clamped to a minimum floor either way.
func poolSizes(cfg *config.Config) (ioConns, workerConns int) {
	ioConns = cfg.IOConns
	if ioConns == 0 {
		ioConns = runtime.NumCPU()
	}
	if ioConns < minIOConns {
		ioConns = minIOConns
	}

	workerConns = cfg.WorkerConns
	if workerConns == 0 {
		workerConns = 4 * runtime.NumCPU()
	}
	if workerConns < minWorkerConns {
		workerConns = minWorkerConns
	}
	return ioConns, workerConns
}
