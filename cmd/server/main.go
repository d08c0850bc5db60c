package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/dept-classifier/internal/app"
	"github.com/Brownie44l1/dept-classifier/internal/config"
	"github.com/Brownie44l1/dept-classifier/internal/handlers"
	"github.com/Brownie44l1/dept-classifier/internal/logger"
	"github.com/Brownie44l1/dept-classifier/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	root, err := app.ProjectRoot("server")
	if err != nil {
		return err
	}

	configPath := app.ConfigPath("", root)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ResolvePaths(root)

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if envErr != nil {
		log.Info("no .env file loaded", "error", envErr)
	}
	if configPath == "" {
		log.Info("no config file found, using defaults")
	} else {
		log.Info("config loaded", "path", configPath)
	}

	if cfg.Logger.LogLevel != config.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release model", "error", err)
		}
	}()
	if !a.Handle.Ready() {
		log.Warn("serving without a model, predictions will fail until restart")
	}

	r := router.New(handlers.NewHandler(a.Service, log), cfg.Server, log)
	return serve(r, cfg.Server, log)
}

func serve(h http.Handler, cfg config.ServerSettings, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Port)
		log.Info("endpoints",
			"health", "GET /health",
			"predict", "POST /predict",
			"upload", "POST /predict/image")
		log.Info(fmt.Sprintf("upload test: curl -X POST -F \"image=@photo.jpg\" http://localhost:%s/predict/image", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
