package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/amsclient"
	"rotary-ams-gateway/internal/api"
	"rotary-ams-gateway/internal/db"
	"rotary-ams-gateway/internal/logging"
	"rotary-ams-gateway/internal/poller"
	"rotary-ams-gateway/internal/session"
	"rotary-ams-gateway/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Session.SigningKey == "" {
		return errors.New("session.signing_key must be configured")
	}
	if cfg.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	var webpushOptions *webpush.Options
	if cfg.PushEnabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Warn("VAPID keys are not configured, web push is disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	gormStore := store.NewGormStore(gormDB)
	var appStore store.Store = gormStore
	if cfg.Store.Backend == "redis" {
		redisClient := store.NewRedisClient(cfg.Store.RedisAddr)
		defer redisClient.Close()
		appStore = store.WithKV(gormStore, store.NewRedisKV(redisClient, cfg.Store.KeyPrefix))
		logger.Info("session keys are kept in redis", zap.String("addr", cfg.Store.RedisAddr))
	}

	httpClient, err := amsclient.NewHTTPClient(cfg.Upstream)
	if err != nil {
		return err
	}
	client := amsclient.New(cfg.Upstream.BaseURL, httpClient)
	sessions := session.NewManager(appStore, client)
	tokens := session.NewTokens(cfg.Session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollerSvc := poller.NewService(cfg, appStore, sessions, client, logger)
	go pollerSvc.Run(ctx)

	handler := api.NewHandler(appStore, sessions, tokens, client, logging.NewReporter(logger), webpushOptions)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port), zap.String("upstream", cfg.Upstream.BaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received, stopping services")
	case err := <-serveErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}
	handler.Wait()

	logger.Info("server gracefully stopped")
	return nil
}
