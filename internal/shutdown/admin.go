package shutdown

import (
	"net/http"

	"github.com/bundleserve/bundleserve/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// NewAdminRouter builds the handler for the administrative listener:
// the authenticated shutdown endpoint plus the metrics endpoint.
// password is the configured administrative password; blank means the
// shutdown endpoint is disabled and always answers 403.
func NewAdminRouter(coordinator *Coordinator, password string) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/shutdown", &shutdownHandler{
		coordinator: coordinator,
		password:    password,
	})
	router.Handle("/metrics", metrics.Handler())
	return router
}

type shutdownHandler struct {
	coordinator *Coordinator
	password    string
}

// ServeHTTP authenticates the request, runs the drain, and reports the
// outcome: 200/OK when every in-flight request finished inside the grace
// period, 500/ERROR otherwise. The caller of the coordinator's Done
// channel decides process exit; by the time either response is written
// the drain has fully completed.
func (h *shutdownHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	if h.password == "" {
		log.Warn().Msg("Administrative shutdown requested but no password is configured")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
		return
	}
	if r.URL.Query().Get("password") != h.password {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Administrative shutdown request with wrong password")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
		return
	}

	log.Info().Str("remote", r.RemoteAddr).Msg("Administrative shutdown accepted")
	outcome := h.coordinator.Trigger(TriggerAdmin)
	if outcome.Graceful {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("ERROR"))
}
