package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/foodorder/gateway"
	"github.com/example/foodorder/pkg/audit"
	"github.com/example/foodorder/pkg/auth"
	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/discovery"
	"github.com/example/foodorder/pkg/logger"
	"github.com/example/foodorder/pkg/menu"
	"github.com/example/foodorder/pkg/order"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to the config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting food order API",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Gateway.Addr()))

	ctx := context.Background()

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoRepo.Close(closeCtx)
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := mongoRepo.Ping(pingCtx); err != nil {
		cancel()
		log.Fatal("MongoDB ping failed", zap.Error(err))
	}
	if err := mongoRepo.EnsureIndexes(pingCtx); err != nil {
		log.Warn("Failed to ensure indexes", zap.Error(err))
	}
	cancel()
	log.Info("MongoDB connected", zap.String("database", cfg.MongoDB.Database))

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		log.Warn("Redis connection failed, caching and rate limiting degraded", zap.Error(err))
	} else {
		log.Info("Redis connected successfully")
	}

	recorder := audit.NewRecorder(cfg.Server.Name, mongoRepo, log)
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warn("Failed to flush audit log", zap.Error(err))
		}
	}()

	gw, err := payment.NewGateway(&cfg.Payment)
	if err != nil {
		log.Fatal("Failed to create payment gateway", zap.Error(err))
	}
	var signer *payment.Signer
	if cfg.Payment.Enabled() {
		signer = payment.NewSigner(cfg.Payment.KeySecret)
		log.Info("Online payment enabled", zap.String("provider", cfg.Payment.Provider))
	} else {
		log.Warn("Payment keys not configured, online payment disabled")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := auth.NewService(repository.NewUserRepository(mongoRepo), tokens, log)
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Error("Failed to seed admin account", zap.Error(err))
		}
	}

	menuRepo := repository.NewMenuRepository(mongoRepo)
	menuService := menu.NewService(menuRepo, redisRepo, recorder, log)
	orderService := order.NewService(menuRepo, repository.NewOrderRepository(mongoRepo), gw, signer, cfg.Payment.Currency, log).
		WithCache(redisRepo).
		WithAuditor(recorder)

	server := gateway.NewGateway(cfg, log, gateway.Services{
		Orders:  orderService,
		Menu:    menuService,
		Auth:    authService,
		Audit:   audit.NewHistory(mongoRepo),
		Tokens:  tokens,
		Limiter: redisRepo,
	})
	server.SetupRoutes()

	// Register in etcd when enabled
	var registry *discovery.Registry
	instance := discovery.Instance{Name: cfg.Server.Name, Host: cfg.Server.Host, Port: cfg.Gateway.Port}
	if cfg.Etcd.Enabled {
		registry, err = discovery.NewRegistry(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := registry.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		} else if peers, err := registry.Discover(ctx, cfg.Server.Name); err != nil {
			log.Warn("Failed to list peer instances", zap.Error(err))
		} else {
			log.Info("Service discovery ready", zap.Int("instances", len(peers)))
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if registry != nil {
		if err := registry.Deregister(shutdownCtx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
		registry.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}

	log.Info("Service stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
