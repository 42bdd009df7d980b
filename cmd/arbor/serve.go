package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dshills/arbor/internal/event"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/logging/logfields"
	"github.com/dshills/arbor/internal/metrics"
	"github.com/dshills/arbor/internal/path"
	"github.com/dshills/arbor/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var types string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Hold the seed document in memory and log its change events",
		Long: "serve loads the seed document and logs every change event. With --watch it\n" +
			"applies the file's new content as a root update whenever it is saved.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, c, types)
		},
	}

	flags := cmd.Flags()
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.Bool("watch", false, "Reload the seed document when the file changes")
	flags.Duration("debounce", watcher.DefaultDebounce, "Delay used to coalesce file events")
	flags.StringVar(&types, "events", "*", "Event types to log, comma separated")
	return cmd
}

func runServe(cmd *cobra.Command, c *cli, types string) error {
	s, err := c.openStore()
	if err != nil {
		return err
	}
	if _, err := s.On(event.ParseTypes(types), path.AnyPath(), logEvents(c.log)); err != nil {
		return err
	}

	if c.cfg.Watch.Enabled {
		format, err := c.cfg.SeedFormat()
		if err != nil {
			return err
		}
		reloader := watcher.NewReloader(c.cfg.Store.Seed, format, s, s.Queue(), c.log)
		w, err := watcher.New(c.cfg.Store.Seed, reloader.HandleChange,
			watcher.WithDebounce(c.cfg.Watch.Debounce),
			watcher.WithLogger(c.log),
		)
		if err != nil {
			return err
		}
		defer w.Close()
		c.log.WithField(logfields.File, w.Path()).Info("watching seed document")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.cfg.Metrics.Addr; addr != "" {
		srv, err := serveMetrics(c, s, addr)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	c.log.Info("document store running")
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	c.log.Info("shutting down")
	return nil
}

func serveMetrics(c *cli, src metrics.StatsSource, addr string) (*http.Server, error) {
	reg, err := metrics.NewRegistry(c.cfg.Metrics.Namespace, src)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.WithError(err).Error("metrics server stopped")
		}
	}()
	c.log.WithField("addr", addr).Info("serving metrics")
	return srv, nil
}

// logEvents returns a listener that logs each event it receives.
func logEvents(log *logging.Logger) event.Handler {
	log = log.WithComponent("events")
	return event.NewHandler(func(e *event.Event) error {
		log.WithFields(map[string]any{
			logfields.EventType: string(e.Type),
			logfields.Path:      e.PathString(),
			logfields.EventID:   e.ID.String(),
		}).Info("document changed")
		return nil
	})
}
