package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the estimator HTTP API with run history, Prometheus metrics at
/metrics and a websocket trial feed at /api/v1/estimators/{id}/stream.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

// serve runs the API until ctx is done or the listener fails.
func (a *app) serve(ctx context.Context) error {
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	server := api.NewServer(db, a.scanner(0), a.log, api.Options{
		MaxTries:       a.cfg.Engine.MaxTries,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		Generator:      a.cfg.Engine.Generator,
	})
	listener := api.NewListener(api.ListenerConfig{
		Addr:         a.cfg.Server.Addr(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}, server.Routes(), a.log)

	if err := listener.Start(); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Server.Addr(), err)
	}
	a.log.Info("serving",
		zap.String("addr", listener.Addr()),
		zap.String("store", a.cfg.Store.Path),
		zap.String("version", api.GetVersionInfo().String()),
	)

	select {
	case err := <-listener.Done():
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := listener.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server shutdown error", zap.Error(err))
		return err
	}
	a.log.Info("server stopped")
	return nil
}
