package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bundleserve/bundleserve/internal/config"
	"github.com/bundleserve/bundleserve/internal/host"
	"github.com/bundleserve/bundleserve/internal/logging"
	"github.com/bundleserve/bundleserve/internal/shutdown"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var log = logging.NewLogger()

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bundleserve",
	Short: "Host a bundled web application with admission control and graceful shutdown",
	Long: `Bundleserve stages a bundled web application archive into a working
directory on disk and serves it on a primary HTTP listener, throttling
traffic with per-rule admission gates. A separate administrative listener
accepts an authenticated shutdown request that drains in-flight work
before stopping, the same path a termination signal takes.`,
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Deploy the configured bundle and serve it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"bundleserve version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to bundleserve.yml")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}
	logging.SetLevel(cfg.LogLevel)

	// ctx.Done() returns when SIGINT or SIGTERM is received.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, rt := host.Start(ctx, cfg)
	if !result.Started {
		log.Error().Msgf("bundleserve failed to start: %s", result.Message)
		os.Exit(1)
	}

	listenerFailed := false
	select {
	case <-ctx.Done():
		log.Info().Msg("Termination signal received; draining")
		rt.Coordinator.Trigger(shutdown.TriggerSignal)
	case <-rt.Failed():
		log.Error().Msg("A listener exited abnormally; draining")
		listenerFailed = true
		rt.Coordinator.Trigger(shutdown.TriggerSignal)
	case <-rt.Coordinator.Done():
		// The administrative endpoint already ran the drain and has
		// responded to its caller by the time Done closes.
	}

	outcome := rt.Coordinator.Outcome()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := rt.Stop(stopCtx); err != nil {
		log.Err(err).Msg("Error stopping listeners")
	}

	if outcome.Graceful {
		log.Info().Str("trigger", outcome.Trigger).Msg("Shutdown complete")
	} else {
		log.Warn().Str("trigger", outcome.Trigger).Msg("Shutdown was not graceful")
	}
	if listenerFailed || (!outcome.Graceful && outcome.Trigger == shutdown.TriggerAdmin) {
		os.Exit(1)
	}
	return nil
}
