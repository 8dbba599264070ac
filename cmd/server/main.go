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

	"clinical-annotator/config"
	"clinical-annotator/handlers"
	"clinical-annotator/logging"
	"clinical-annotator/repository"
	"clinical-annotator/service"
	"clinical-annotator/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load .env from the working directory, falling back to the project root (relative to cmd/server/)
	envFile := ".env"
	if _, err := os.Stat(envFile); err != nil {
		envFile = "../../.env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize storage
	fileStorage, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	logger.Info("Storage initialized", zap.String("type", string(cfg.Storage.Type)))

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(fileStorage)

	// Initialize services
	annotationService := service.NewAnnotationService(
		service.WithDocumentRepository(docRepo),
		service.WithSessionStore(service.NewSessionStore(cfg.SessionIdleTimeout)),
		service.WithLogger(logger.Named("annotation")),
	)

	// Initialize handlers
	annotationHandler := handlers.NewAnnotationHandler(annotationService, cfg.MaxUploadBytes, logger.Named("http"))
	apiHandler := handlers.NewAPIHandler(annotationService)

	r, err := handlers.NewRouter(annotationHandler, apiHandler, logger.Named("http"))
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Shutting down", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}()

	logger.Info("Server starting", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
