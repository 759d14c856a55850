package main

import (
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/api"
	"github.com/ajitpratap0/classcycle/internal/store"
)

func serveCmd() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			var st store.Store
			if !noStore {
				var err error
				st, err = newStore(cmd.Context(), logger)
				if err != nil {
					return fmt.Errorf("serve: connecting to store: %w", err)
				}
				defer func() { _ = st.Close() }()
				if err = st.EnsureSchema(cmd.Context()); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}

			srv := api.NewServer(scanOptions(), analyzeOptions(), st, logger, cfg.API.AuthToken)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set CLASSCYCLE_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      5 * time.Minute,
				IdleTimeout:       120 * time.Second,
			}

			servers := []*http.Server{httpSrv}
			if cfg.API.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("GET /debug/vars", expvar.Handler())
				servers = append(servers, &http.Server{
					Addr:              cfg.API.MetricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 10 * time.Second,
				})
			}

			errCh := make(chan error, len(servers))
			for _, s := range servers {
				go func() {
					logger.Info("HTTP server starting", "addr", s.Addr)
					if listenErr := s.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
						errCh <- fmt.Errorf("serve: HTTP server %s: %w", s.Addr, listenErr)
						return
					}
					errCh <- nil
				}()
			}

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				shutdownAll(servers)
				return startErr
			}

			if shutdownErr := shutdownAll(servers); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain errCh in case a server failed while shutting down.
			for range servers {
				if startErr := <-errCh; startErr != nil {
					return startErr
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "serve without Neo4j; run endpoints return 503")
	return cmd
}

func shutdownAll(servers []*http.Server) error {
	const shutdownTimeout = 10 * time.Second
	var errs []error
	for _, s := range servers {
		if err := api.Shutdown(s, shutdownTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
