package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/binderveil/binderveil/internal/companion"
	"github.com/binderveil/binderveil/internal/metrics"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the blocklist to hooked processes over the companion socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()

			opts, err := cfg.BlocklistOptions()
			if err != nil {
				return err
			}
			mode, err := cfg.SocketMode()
			if err != nil {
				return err
			}
			m := metrics.New()
			srv, err := companion.NewServer(companion.ServerConfig{
				Paths:       cfg.BlocklistPaths(),
				SocketPath:  cfg.Companion.SocketPath,
				SocketMode:  mode,
				AllowedUIDs: cfg.Companion.AllowedUIDs,
				Blocklist:   opts,
				Metrics:     m,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 2)
			if cfg.Companion.Watch {
				if err := srv.Watch(ctx, cfg.ReloadDebounce()); err != nil {
					logger.Warn("blocklist watch disabled, reading per request", "error", err)
				}
			}

			if cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle(cfg.Metrics.Path, m.Handler(metrics.HandlerOptions{BlocklistEntries: srv.Entries}))
				hs := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- fmt.Errorf("metrics server: %w", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = hs.Shutdown(shutdownCtx)
				}()
				logger.Info("metrics listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			}

			go func() { errCh <- srv.ListenAndServe(ctx) }()
			logger.Info("companion listening", "socket", cfg.Companion.SocketPath, "paths", cfg.BlocklistPaths())
			fmt.Fprintf(cmd.OutOrStdout(), "binderveil companion listening on %s\n", cfg.Companion.SocketPath)

			// The companion returns nil once ctx is cancelled.
			return <-errCh
		},
	}
	return cmd
}
