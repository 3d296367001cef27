// Package server constructs and runs the HTTP service around the engine.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer configures an HTTP server with production timeouts.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer listens and serves until the server is shut down. A clean
// shutdown is not reported as an error.
func StartServer(srv *http.Server, log *slog.Logger) error {
	log.Info("server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer drains the HTTP server, waiting up to timeout for active
// requests to finish.
func ShutdownServer(srv *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown", "err", err)
		return err
	}
	return nil
}
