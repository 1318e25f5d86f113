package pipeline

import (
	"net/http"

	"github.com/bundleserve/bundleserve/internal/admission"
	"github.com/gorilla/mux"
)

// New composes the primary-listener handler graph: the deployed
// application's handler behind the access log, the admission chain around
// both, routed under rootPath, with everything else redirected to
// rootPath. The whole graph sits behind the drainer so shutdown can stop
// admitting work at the edge.
func New(rootPath string, appHandler http.Handler, rules []admission.Rule, drainer *Drainer) http.Handler {
	guarded := admission.Chain(rules, AccessLog(http.StripPrefix(rootPath, appHandler)))

	router := mux.NewRouter()
	router.PathPrefix(rootPath).Handler(guarded)
	router.PathPrefix("/").Handler(http.RedirectHandler(rootPath, http.StatusFound))

	return drainer.Wrap(router)
}
