package shutdown

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bundleserve/bundleserve/internal/app/mocks"
	"github.com/bundleserve/bundleserve/internal/pipeline"
	"github.com/bundleserve/bundleserve/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingSubscriber struct {
	mu          sync.Mutex
	transitions []Transition
}

func (s *recordingSubscriber) ConsumeEvent(t *Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, *t)
	return nil
}

func (s *recordingSubscriber) recorded() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition(nil), s.transitions...)
}

func newTestCoordinator(t *testing.T, drainer *pipeline.Drainer, delay time.Duration) (*Coordinator, *mocks.MockHostedApplication, *recordingSubscriber) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockApp := mocks.NewMockHostedApplication(ctrl)

	sub := &recordingSubscriber{}
	publisher := pubsub.NewSimplePublisher[Transition]()
	publisher.AddSubscriber(sub)

	return NewCoordinator(drainer, mockApp, delay, publisher), mockApp, sub
}

func TestCoordinatorGracefulShutdown(t *testing.T) {
	drainer := pipeline.NewDrainer()
	c, mockApp, sub := newTestCoordinator(t, drainer, time.Second)
	mockApp.EXPECT().Stop(gomock.Any()).Return(nil).Times(1)

	require.NoError(t, c.MarkRunning())
	assert.Equal(t, StateRunning, c.State())

	outcome := c.Trigger("signal")
	assert.True(t, outcome.Graceful)
	assert.Equal(t, "signal", outcome.Trigger)
	assert.Equal(t, StateStopped, c.State())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after Trigger returns")
	}

	assert.Equal(t, []Transition{
		{From: StateStarting, To: StateRunning, Reason: "startup complete"},
		{From: StateRunning, To: StateDraining, Reason: "signal"},
		{From: StateDraining, To: StateStopped, Reason: "signal"},
	}, sub.recorded())
}

func TestCoordinatorNonGracefulShutdown(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	drainer := pipeline.NewDrainer()
	srv := httptest.NewServer(drainer.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
	})))
	defer srv.Close()
	// Unblock the stuck request before srv.Close waits on it.
	defer close(release)

	c, mockApp, _ := newTestCoordinator(t, drainer, 30*time.Millisecond)
	mockApp.EXPECT().Stop(gomock.Any()).Return(nil).Times(1)
	require.NoError(t, c.MarkRunning())

	// Keep one request in flight past the grace period.
	go func() {
		resp, err := http.Get(srv.URL)
		if err == nil {
			resp.Body.Close()
		}
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the request to start")
	}

	outcome := c.Trigger("admin")
	assert.False(t, outcome.Graceful, "shutdown with stuck requests must be reported non-graceful")
	assert.Equal(t, StateStopped, c.State())
}

func TestCoordinatorTriggerIsIdempotent(t *testing.T) {
	drainer := pipeline.NewDrainer()
	c, mockApp, sub := newTestCoordinator(t, drainer, time.Second)
	// The whole point: the stop sequence runs exactly once.
	mockApp.EXPECT().Stop(gomock.Any()).Return(nil).Times(1)
	require.NoError(t, c.MarkRunning())

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int, reason string) {
			defer wg.Done()
			outcomes[i] = c.Trigger(reason)
		}(i, []string{"signal", "admin"}[i])
	}
	wg.Wait()

	assert.Equal(t, outcomes[0].Graceful, outcomes[1].Graceful)
	assert.Equal(t, outcomes[0].Trigger, outcomes[1].Trigger, "both triggers observe the outcome of the one that won")
	assert.Equal(t, StateStopped, c.State())

	// Exactly one Draining and one Stopped transition.
	var draining, stopped int
	for _, tr := range sub.recorded() {
		switch tr.To {
		case StateDraining:
			draining++
		case StateStopped:
			stopped++
		}
	}
	assert.Equal(t, 1, draining)
	assert.Equal(t, 1, stopped)
}

func TestCoordinatorFailedStartup(t *testing.T) {
	drainer := pipeline.NewDrainer()
	c, _, _ := newTestCoordinator(t, drainer, time.Second)

	c.MarkFailed("deployment failed")
	assert.Equal(t, StateFailedStartup, c.State())
	assert.Error(t, c.MarkRunning())

	// Nothing to drain or stop after a failed startup.
	outcome := c.Trigger("signal")
	assert.False(t, outcome.Graceful)
	assert.Equal(t, StateFailedStartup, c.State())
}
