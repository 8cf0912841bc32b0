package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/httpapi"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := httpapi.NewServer(httpapi.Config{
				Host:            a.cfg.Server.Host,
				Port:            a.cfg.Server.Port,
				ReadTimeout:     a.cfg.Server.ReadTimeout.Duration(),
				WriteTimeout:    a.cfg.Server.WriteTimeout.Duration(),
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration(),
			}, a.service, a.logger)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			a.logger.Info(ctx, "server started",
				zap.String("address", a.cfg.Server.Address()),
				zap.String("index_backend", a.cfg.Index.Backend))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info(context.Background(), "shutting down")
			return srv.Shutdown(context.Background())
		},
	}
}
