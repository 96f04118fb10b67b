package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/docrecall/internal/mcp"
)

func newServeCmd(st *state) *cobra.Command {
	var metricsAddr string
	var dropLast bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server on stdin/stdout. Logs go to stderr.

When a metrics address is configured (--metrics-addr, metrics.addr or
DOCRECALL_METRICS_ADDR) Prometheus metrics are served on /metrics.

Examples:
  docrecall serve
  docrecall serve --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cmd.Flags().Changed("metrics-addr") {
				st.cfg.Metrics.Addr = metricsAddr
			}

			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = a.Close() }()

			if addr := st.cfg.Metrics.Addr; addr != "" {
				srv := newMetricsServer(addr, a.registry)
				go func() {
					st.logger.Info("metrics listening", slog.String("addr", addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						st.logger.Error("metrics server failed", slog.Any("error", err))
					}
				}()
				defer shutdownMetrics(srv, st.logger)
			}

			a.chunker.DropLast = dropLast
			server := mcp.NewServer(a.service, a.chunker, st.logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				st.logger.Info("shutting down")
				return nil
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for Prometheus /metrics (empty disables)")
	cmd.Flags().BoolVar(&dropLast, "drop-last", false, "Discard the last paragraph of ingested summaries by default")

	return cmd
}

func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdownMetrics(srv *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown failed", slog.Any("error", err))
	}
}
