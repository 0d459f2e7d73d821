package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/recall/internal/config"
	"github.com/harun/recall/internal/observability"
	"github.com/harun/recall/internal/tracing"
	"github.com/harun/recall/pkg/graph"
	"github.com/harun/recall/pkg/memory"
	"github.com/harun/recall/pkg/probe"
)

var metricsAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the backend liveness monitor",
	Long: `Run in the foreground, probing the backend on the configured
interval and serving Prometheus metrics. The config file is watched;
edits apply without a restart.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:9091", "metrics listen address")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	// The active service is swapped on config reload; probes always
	// see the current one.
	var current atomic.Pointer[memory.Service]
	current.Store(rt.service)

	interval := rt.cfg.Probe.Interval
	if interval == "" {
		interval = "@every 5m"
	}

	monitor, err := probe.NewMonitor(probe.Config{
		Status: func(ctx context.Context) (*graph.Status, error) {
			return current.Load().Status(ctx)
		},
		Logger:   rt.log.GetZerolog(),
		Interval: interval,
	})
	if err != nil {
		return err
	}
	if err := monitor.Start(); err != nil {
		return err
	}
	defer monitor.Stop()

	loader := config.NewLoader(cfgFile)
	watcher, err := config.NewWatcher(loader, rt.log.GetZerolog(), func(cfg *config.Config) {
		svc, err := rebuildService(cfg)
		if err != nil {
			rt.log.Error().Err(err).Msg("Config reload rejected")
			return
		}
		current.Store(svc)
		rt.log.Info().Str("transport", svc.Transport()).Msg("Service rebuilt from new config")
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	observability.EnsureRegistered()
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	rt.log.Info().Str("addr", metricsAddr).Msg("Metrics endpoint up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		rt.log.Info().Str("signal", s.String()).Msg("Shutting down")
	case err := <-errCh:
		rt.log.Error().Err(err).Msg("Metrics server failed")
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stopping metrics server: %w", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		rt.log.Warn().Err(err).Msg("Tracer shutdown")
	}
	return nil
}

// rebuildService constructs a fresh service from a reloaded config.
// The logger is rebuilt too so level changes take effect.
func rebuildService(cfg *config.Config) (*memory.Service, error) {
	log, err := newLoggerFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return memory.NewService(memory.Config{
		Client:       buildClient(cfg, log),
		Logger:       log.GetZerolog(),
		GroupPrefix:  cfg.Memory.GroupPrefix,
		UserTag:      cfg.Memory.UserTag,
		ProjectTag:   cfg.Memory.ProjectTag,
		SearchLimit:  cfg.Limits.Search,
		ProfileLimit: cfg.Limits.Profile,
		EntityTypes:  cfg.Memory.EntityTypes,
	})
}
