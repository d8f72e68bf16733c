package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ListenerConfig holds the HTTP server's address and timeouts.
type ListenerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Listener serves a handler on a TCP address.
type Listener struct {
	cfg        ListenerConfig
	handler    http.Handler
	logger     *zap.Logger
	httpServer *http.Server
	ln         net.Listener
	done       chan error
}

// NewListener creates a listener for handler. Nothing is bound until Start.
func NewListener(cfg ListenerConfig, handler http.Handler, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{cfg: cfg, handler: handler, logger: logger.Named("http")}
}

// Start binds the address and serves in a goroutine. It returns once the socket is bound.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}
	l.ln = ln
	l.httpServer = &http.Server{
		Handler:      l.handler,
		ReadTimeout:  l.cfg.ReadTimeout,
		WriteTimeout: l.cfg.WriteTimeout,
	}
	l.done = make(chan error, 1)

	go func() {
		err := l.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		l.done <- err
	}()

	l.logger.Info("listening", zap.String("addr", l.Addr()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (l *Listener) Addr() string {
	if l.ln == nil {
		return l.cfg.Addr
	}
	return l.ln.Addr().String()
}

// Done reports the serve loop's exit. The error is nil after a clean Shutdown.
func (l *Listener) Done() <-chan error {
	return l.done
}

// Shutdown gracefully stops the HTTP server.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.httpServer == nil {
		return nil
	}
	l.logger.Info("shutting down", zap.String("addr", l.Addr()))
	return l.httpServer.Shutdown(ctx)
}
