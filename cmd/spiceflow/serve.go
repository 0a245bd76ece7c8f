package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/Veraticus/spiceflow/internal/api"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve the dashboard, override, rule and Plaid endpoints over HTTP.

Plaid endpoints respond with an error when no Plaid credentials are configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			provider, err := a.provider()
			if err != nil {
				slog.Warn("Plaid is not configured; provider endpoints will fail", "error", err)
				provider = unavailableProvider{err: err}
			}
			coordinator := a.coordinator(provider)

			deps := api.Deps{
				Dashboard: a.dashboard,
				Resolver:  a.resolver,
				Syncer:    coordinator,
				Linker:    syncer.NewLinker(provider, a.store),
				Seeder:    syncer.NewSeeder(provider, coordinator),
			}

			server := &http.Server{
				Addr: addr,
				Handler: api.NewServer(deps, api.Options{
					RateLimit: rate.Limit(a.cfg.Server.RateLimit),
					Burst:     a.cfg.Server.Burst,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("Serving API", "addr", addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				slog.Info("Shutting down API")
				return server.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config: 127.0.0.1:8080)")
	return cmd
}
