package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"

	"talkroom/internal/server"
	"talkroom/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run owns the whole lifecycle so deferred cleanup (store close, hub drain)
// always executes before the process exits.
func run() error {
	var cfg server.Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing message store")
		_ = st.Close()
	}()

	hub := server.NewHub(cfg, log, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go server.NewMonitor(hub).Run(ctx)

	srv := server.CreateServer(cfg.Addr(), server.SetupRoutes(hub))
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(srv, log)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := server.ShutdownServer(srv, shutdownTimeout, log); err != nil {
		return err
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn("hub shutdown incomplete", "err", err)
	}
	return <-errCh
}
