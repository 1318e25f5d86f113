package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/bundleserve/bundleserve/internal/deploy"
)

//go:generate mockgen -destination=mocks/mock_app.go -package=mocks github.com/bundleserve/bundleserve/internal/app HostedApplication

// HostedApplication is the capability contract the service host resolves
// from a staged deployment. The host never links against a concrete
// application; it only knows the driver name from configuration.
type HostedApplication interface {
	// Handler serves the application's traffic under the configured
	// root path.
	Handler() http.Handler
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory builds an application instance from the deployment's isolated
// load context.
type Factory func(lc deploy.LoadContext) (HostedApplication, error)

var (
	ErrDriverNotFound = errors.New("no application driver found")

	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes a driver available under the given name. Drivers register
// from init, before the host resolves anything.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("app: driver %q registered twice", name))
	}
	registry[name] = factory
}

// Resolve looks up the named driver and instantiates it against the load
// context produced by a successful deployment.
func Resolve(name string, lc deploy.LoadContext) (HostedApplication, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrDriverNotFound, name, Drivers())
	}
	return factory(lc)
}

// Drivers lists the registered driver names, sorted.
func Drivers() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
