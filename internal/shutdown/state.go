package shutdown

import (
	"github.com/bundleserve/bundleserve/internal/metrics"
	"github.com/rs/zerolog"
)

// State is the process-wide service state. Transitions are monotonic:
// Starting may move to Running or FailedStartup, Running to Draining, and
// Draining to Stopped. Stopped and FailedStartup are terminal.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
	StateFailedStartup
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailedStartup:
		return "failed_startup"
	}
	return "unknown"
}

// Transition is published on every state change.
type Transition struct {
	From   State
	To     State
	Reason string
}

// StateLogger is a transition subscriber that logs each change and keeps
// the service-state gauge current.
type StateLogger struct {
	logger *zerolog.Logger
}

func NewStateLogger(logger *zerolog.Logger) *StateLogger {
	return &StateLogger{logger: logger}
}

func (l *StateLogger) ConsumeEvent(t *Transition) error {
	metrics.ServiceState.Set(float64(t.To))
	l.logger.Info().
		Str("from", t.From.String()).
		Str("to", t.To.String()).
		Str("reason", t.Reason).
		Msg("Service state changed")
	return nil
}
