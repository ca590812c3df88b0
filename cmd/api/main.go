package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewilliams-labs/moodmix/internal/app"
	"github.com/ewilliams-labs/moodmix/internal/config"
	"github.com/ewilliams-labs/moodmix/internal/logging"
)

func main() {
	// 1. Configuration: defaults, then moodmix.yaml, then the environment.
	cfg, err := config.Load()
	if err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// 2. Adapters and core service.
	a, err := app.New(cfg)
	if err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("failed to initialize moodmix")
	}
	defer a.Close()

	// 3. Start the server.
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	a.Log.Info().Str("addr", cfg.Server.Addr).Msg("🎶 Moodmix API is running")

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			a.Log.Error().Err(err).Msg("server stopped")
			a.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		a.Log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.Log.Error().Err(err).Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutdown error")
		}
	}
}
