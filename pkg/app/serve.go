package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chowspace/pkg/backend"
	"chowspace/pkg/checkout"
	"chowspace/pkg/dashboard"
	"chowspace/pkg/httpapi"
	"chowspace/pkg/menu"
	"chowspace/pkg/session"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(e *env) *cobra.Command {
	var (
		port   int
		domain string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				e.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("domain") {
				e.cfg.Server.Domain = domain
			}
			return e.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port for the HTTP server when not using --domain (overrides server.port)")
	cmd.Flags().StringVar(&domain, "domain", "", "Serve HTTPS on 80/443 for this domain with an ephemeral certificate")
	return cmd
}

// serve composes the domain services and runs the HTTP server until ctx is cancelled.
func (e *env) serve(ctx context.Context) error {
	logger := e.logger

	products, err := menu.Load(e.cfg.Menu.Path)
	if err != nil {
		return err
	}
	menuService, err := menu.NewService(products)
	if err != nil {
		return fmt.Errorf("unable to start menu: %w", err)
	}
	defer menuService.Close()

	sessions := session.NewManager(session.Config{
		TTL:           e.cfg.Session.TTL,
		SweepInterval: e.cfg.Session.SweepInterval,
	}, logger.Named("session"))
	defer sessions.Close()

	api, err := e.backendClient()
	if err != nil {
		return err
	}

	srv, err := httpapi.New(
		sessions,
		menuService,
		checkout.NewService(api, logger.Named("checkout")),
		dashboard.New(api, logger.Named("dashboard")),
		logger.Named("http"),
	)
	if err != nil {
		return fmt.Errorf("unable to build http server: %w", err)
	}

	if e.cfg.Server.Domain != "" {
		return e.runDomainServers(ctx, srv.Handler())
	}

	server := &http.Server{
		Addr:         e.cfg.Server.Address(),
		Handler:      srv.Handler(),
		ReadTimeout:  e.cfg.Server.ReadTimeout,
		WriteTimeout: e.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chowspace is running",
			zap.String("addr", server.Addr),
			zap.String("backend", e.cfg.Backend.URL),
			zap.Int("menu_items", len(products)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(logger, server)
	})
	return g.Wait()
}

func (e *env) backendClient() (*backend.Client, error) {
	client, err := backend.NewClient(backend.Config{
		BaseURL:       e.cfg.Backend.URL,
		Timeout:       e.cfg.Backend.Timeout,
		RatePerSecond: e.cfg.Backend.RatePerSecond,
		MaxRetries:    e.cfg.Backend.MaxRetries,
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("unable to configure backend: %w", err)
	}
	return client, nil
}

// shutdown drains in-flight requests before the process exits.
func shutdown(logger *zap.Logger, servers ...*http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, server := range servers {
		logger.Info("shutting down server", zap.String("addr", server.Addr))
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", server.Addr, err))
		}
	}
	return errors.Join(errs...)
}
