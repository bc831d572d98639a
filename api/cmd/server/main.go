package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bgRemover/api/handlers"
	"bgRemover/api/middleware"
	"bgRemover/worker/app"
	"bgRemover/worker/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, cleanup, err := app.NewSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sess.Start(context.Background())
	defer sess.Close()

	mux := http.NewServeMux()
	handlers.NewItemHandler(sess, logger.Named("http")).RegisterRoutes(mux)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: middleware.Chain(mux,
			middleware.TraceID,
			middleware.Logging(logger),
			middleware.Recovery(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started",
			zap.String("address", srv.Addr),
			zap.String("remover", cfg.Remover),
			zap.String("max_upload_size", cfg.MaxUploadSize),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}
