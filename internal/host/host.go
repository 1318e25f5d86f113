package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bundleserve/bundleserve/internal/admission"
	"github.com/bundleserve/bundleserve/internal/app"
	"github.com/bundleserve/bundleserve/internal/config"
	"github.com/bundleserve/bundleserve/internal/deploy"
	"github.com/bundleserve/bundleserve/internal/pipeline"
	"github.com/bundleserve/bundleserve/internal/pubsub"
	"github.com/bundleserve/bundleserve/internal/shutdown"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDeployFailed = errors.New("deployment failed")
	ErrProbeFailed  = errors.New("startup probe failed")
)

// Result is the structured startup outcome. Callers decide exit behavior;
// Start itself never crashes the process.
type Result struct {
	Started bool
	Message string
}

// Runtime is the running service: both listeners, their serve loops, and
// the shutdown coordinator wired to the pipeline's drainer.
type Runtime struct {
	Coordinator *shutdown.Coordinator
	Deployment  *deploy.Descriptor

	primary   *http.Server
	admin     *http.Server
	primaryLn net.Listener
	adminLn   net.Listener
	group     *errgroup.Group
	groupCtx  context.Context
}

// Failed is done if either serve loop exits with an abnormal error.
func (rt *Runtime) Failed() <-chan struct{} {
	return rt.groupCtx.Done()
}

// PrimaryAddr is the bound address of the primary listener.
func (rt *Runtime) PrimaryAddr() string {
	return rt.primaryLn.Addr().String()
}

// AdminAddr is the bound address of the administrative listener.
func (rt *Runtime) AdminAddr() string {
	return rt.adminLn.Addr().String()
}

// Stop shuts down both listeners and waits for the serve loops to exit.
// The underlying engine stops exactly once; calling Stop after the
// listeners are already down is harmless.
func (rt *Runtime) Stop(ctx context.Context) error {
	if err := rt.primary.Shutdown(ctx); err != nil {
		log.Err(fmt.Errorf("error on primary listener shutdown: %v", err)).Send()
	}
	if err := rt.admin.Shutdown(ctx); err != nil {
		log.Err(fmt.Errorf("error on admin listener shutdown: %v", err)).Send()
	}
	return rt.group.Wait()
}

// Start runs the startup sequence: validate configuration, deploy the
// bundle, resolve and start the hosted application, build the request
// pipeline, bind both listeners, and self-probe the application through
// the primary listener. Every failure is caught and converted into a
// non-started Result.
func Start(ctx context.Context, cfg *config.Config) (result *Result, rt *Runtime) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Panic during startup: %v", r)
			result = &Result{Started: false, Message: fmt.Sprintf("panic during startup: %v", r)}
			rt = nil
		}
	}()

	if err := cfg.Validate(); err != nil {
		return startFailure(err), nil
	}

	desc := deploy.Deploy(cfg.ArchivePath, cfg.StagingRoot, cfg.ExtraLibDirs)
	if !desc.Succeeded {
		return startFailure(fmt.Errorf("%w: %v", ErrDeployFailed, desc.Err)), nil
	}

	ioConns, workerConns := poolSizes(cfg)
	log.Info().Int("io_conns", ioConns).Int("worker_conns", workerConns).Msg("Connection budgets computed")

	application, err := app.Resolve(cfg.AppDriver, desc.LoadContext())
	if err != nil {
		return startFailure(err), nil
	}
	if err := application.Start(ctx); err != nil {
		return startFailure(fmt.Errorf("starting hosted application: %w", err)), nil
	}

	drainer := pipeline.NewDrainer()
	rootPath := cfg.NormalizedRootPath()
	primaryHandler := pipeline.New(rootPath, application.Handler(), admissionRules(cfg), drainer)

	publisher := pubsub.NewSimplePublisher[shutdown.Transition]()
	publisher.AddSubscriber(shutdown.NewStateLogger(&log.Logger))
	coordinator := shutdown.NewCoordinator(drainer, application, cfg.GracefulDelay, publisher)

	adminRouter := shutdown.NewAdminRouter(coordinator, strings.TrimSpace(cfg.AdminPassword))

	primaryLn, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return startFailure(fmt.Errorf("binding primary listener: %w", err)), nil
	}
	adminLn, err := net.Listen("tcp", cfg.AdminAddr())
	if err != nil {
		primaryLn.Close()
		return startFailure(fmt.Errorf("binding admin listener: %w", err)), nil
	}

	rt = &Runtime{
		Coordinator: coordinator,
		Deployment:  desc,
		primary:     &http.Server{Handler: primaryHandler},
		admin:       &http.Server{Handler: adminRouter},
		primaryLn:   netutil.LimitListener(primaryLn, workerConns),
		adminLn:     netutil.LimitListener(adminLn, ioConns),
	}

	// The errgroup context reflects serve-loop failures only; cancelling
	// the startup context must not tear the listeners down.
	group, groupCtx := errgroup.WithContext(context.Background())
	rt.group = group
	rt.groupCtx = groupCtx
	group.Go(serveFn(rt.primary, rt.primaryLn, "primary"))
	group.Go(serveFn(rt.admin, rt.adminLn, "admin"))

	if err := probe(rt.PrimaryAddr(), rootPath); err != nil {
		coordinator.MarkFailed(err.Error())
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Stop(stopCtx)
		if stopErr := application.Stop(stopCtx); stopErr != nil {
			log.Error().Err(stopErr).Msg("Error stopping application after failed probe")
		}
		return startFailure(err), nil
	}

	if err := coordinator.MarkRunning(); err != nil {
		return startFailure(err), nil
	}

	msg := fmt.Sprintf("serving %s under %s on %s (admin on %s)",
		cfg.ArchivePath, rootPath, rt.PrimaryAddr(), rt.AdminAddr())
	log.Info().Msg("bundleserve started: " + msg)
	return &Result{Started: true, Message: msg}, rt
}

func startFailure(err error) *Result {
	log.Error().Err(err).Msg("Startup failed")
	return &Result{Started: false, Message: err.Error()}
}

// serveFn returns a callback for the errgroup that runs one listener's
// accept loop.
func serveFn(srv *http.Server, ln net.Listener, name string) func() error {
	return func() error {
		log.Info().Msgf("Starting %s listener at %s", name, ln.Addr())
		err := srv.Serve(ln)
		if err != http.ErrServerClosed {
			log.Err(fmt.Errorf("%s listener closed with abnormal error: %v", name, err)).Send()
			return err
		}
		return nil
	}
}

func admissionRules(cfg *config.Config) []admission.Rule {
	rules := make([]admission.Rule, 0, len(cfg.RateLimits))
	for _, r := range cfg.RateLimits {
		rules = append(rules, admission.Rule{
			Name:          r.Name,
			Paths:         r.Paths,
			Suffixes:      r.Suffixes,
			MaxConcurrent: r.MaxConcurrent,
			MaxQueued:     r.MaxQueued,
		})
	}
	return rules
}
