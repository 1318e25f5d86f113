package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bundleserve/bundleserve/internal/app"
	"github.com/bundleserve/bundleserve/internal/pipeline"
	"github.com/bundleserve/bundleserve/internal/pubsub"
	"github.com/rs/zerolog/log"
)

// appStopTimeout bounds how long the hosted application gets to release
// its resources once the drain has finished or timed out.
const appStopTimeout = 10 * time.Second

// Trigger names for the two drain paths.
const (
	TriggerSignal = "signal"
	TriggerAdmin  = "admin"
)

// Outcome reports how a shutdown went and which trigger initiated it.
type Outcome struct {
	Graceful bool
	Trigger  string
}

// Coordinator owns the service state machine and runs the stop sequence
// exactly once, no matter how many triggers fire. Both the OS signal path
// and the administrative endpoint go through Trigger.
type Coordinator struct {
	drainer       *pipeline.Drainer
	application   app.HostedApplication
	gracefulDelay time.Duration
	publisher     pubsub.Publisher[Transition]

	mu      sync.Mutex
	state   State
	outcome Outcome
	done    chan struct{}
}

func NewCoordinator(
	drainer *pipeline.Drainer,
	application app.HostedApplication,
	gracefulDelay time.Duration,
	publisher pubsub.Publisher[Transition],
) *Coordinator {
	c := &Coordinator{
		drainer:       drainer,
		application:   application,
		gracefulDelay: gracefulDelay,
		publisher:     publisher,
		state:         StateStarting,
		done:          make(chan struct{}),
	}
	return c
}

// State returns the current service state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkRunning moves Starting to Running once the host's self-probe has
// confirmed the application is responsive.
func (c *Coordinator) MarkRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStarting {
		return fmt.Errorf("cannot mark running from state %s", c.state)
	}
	c.transitionLocked(StateRunning, "startup complete")
	return nil
}

// MarkFailed moves Starting to the FailedStartup terminal state.
func (c *Coordinator) MarkFailed(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStarting {
		return
	}
	c.transitionLocked(StateFailedStartup, reason)
}

// Done is closed once the stop sequence has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Outcome is valid once Done is closed.
func (c *Coordinator) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Trigger initiates the drain and blocks until the service is Stopped,
// returning the outcome. A second trigger while already Draining or
// Stopped performs nothing and observes the same outcome as the first.
func (c *Coordinator) Trigger(reason string) Outcome {
	c.mu.Lock()
	switch c.state {
	case StateDraining, StateStopped:
		c.mu.Unlock()
		<-c.done
		return c.Outcome()
	case StateFailedStartup:
		c.mu.Unlock()
		return Outcome{Graceful: false, Trigger: reason}
	}
	c.transitionLocked(StateDraining, reason)
	c.mu.Unlock()

	// The stop sequence runs on its own goroutine: the caller may be an
	// administrative request handler pinned to a connection, and a slow
	// drain must not be owned by it.
	go c.run(reason)

	<-c.done
	return c.Outcome()
}

func (c *Coordinator) run(reason string) {
	c.drainer.Drain()
	graceful := c.drainer.Wait(c.gracefulDelay)
	if !graceful {
		log.Warn().
			Dur("graceful_delay", c.gracefulDelay).
			Int("inflight", c.drainer.Inflight()).
			Msg("Grace period elapsed with requests still in flight")
	}

	// The application is stopped regardless of whether the drain
	// completed in time.
	ctx, cancel := context.WithTimeout(context.Background(), appStopTimeout)
	defer cancel()
	if err := c.application.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error stopping hosted application")
	}

	c.mu.Lock()
	c.outcome = Outcome{Graceful: graceful, Trigger: reason}
	c.transitionLocked(StateStopped, reason)
	c.mu.Unlock()
	close(c.done)
}

// transitionLocked records and publishes a state change. Publishing under
// the lock keeps the transition order identical for every subscriber.
func (c *Coordinator) transitionLocked(to State, reason string) {
	t := &Transition{From: c.state, To: to, Reason: reason}
	c.state = to
	if c.publisher != nil {
		if err := c.publisher.PublishEvent(t); err != nil {
			log.Error().Err(err).Msg("Error publishing state transition")
		}
	}
}
