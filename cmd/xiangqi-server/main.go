package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	appcfg "github.com/park285/cheese-xiangqi/internal/config"
	"github.com/park285/cheese-xiangqi/internal/obslog"
	"github.com/park285/cheese-xiangqi/internal/xqbuilder"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := obslog.New(obslog.OptionsFromEnv())
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := xqbuilder.New(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.Fatal("startup_failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           deps.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server_failed", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Sockets are hijacked, so Shutdown does not wait for them; Close ends them.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	done := make(chan error, 1)
	go func() { done <- deps.Close() }()
	select {
	case err := <-done:
		if err != nil {
			logger.Warn("deps_close", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Warn("shutdown_timeout", zap.Duration("timeout", cfg.ShutdownTimeout))
	}
	logger.Info("server_stopped")
}
