package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/merchantkit/ogone-service/internal/adapters/ogone"
	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/internal/adapters/secrets"
	"github.com/merchantkit/ogone-service/internal/adapters/transport"
	"github.com/merchantkit/ogone-service/internal/config"
	paymentHandler "github.com/merchantkit/ogone-service/internal/handlers/payment"
	paymentService "github.com/merchantkit/ogone-service/internal/services/payment"
	pkghttp "github.com/merchantkit/ogone-service/pkg/http"
	"github.com/merchantkit/ogone-service/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting ogone-service",
		zap.String("pspid", cfg.Gateway.PSPID),
		zap.Bool("test_platform", cfg.Gateway.Test),
	)

	ctx := context.Background()

	// Resolve credential material before anything touches the network
	if err := loadSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal("Failed to load secrets", zap.Error(err))
	}

	// HTTP transport collaborator: pooled client + retries + circuit breaker
	clientCfg := pkghttp.DirectLinkClientConfig()
	clientCfg.Timeout = time.Duration(cfg.Gateway.Timeout) * time.Second
	httpClient := transport.NewClient(pkghttp.NewClient(clientCfg), transport.DefaultConfig(), logger)

	gatewayCfg := &ogone.Config{
		PSPID:             cfg.Gateway.PSPID,
		UserID:            cfg.Gateway.UserID,
		Password:          cfg.Gateway.Password,
		SHAIn:             cfg.Gateway.SHAIn,
		HashAlgorithm:     ogone.HashAlgorithm(cfg.Gateway.HashAlgorithm),
		SignAllParameters: cfg.Gateway.SignAllParameters,
		DefaultCurrency:   cfg.Gateway.DefaultCurrency,
		Test:              cfg.Gateway.Test,
		BaseURL:           cfg.Gateway.BaseURL,
	}

	gateway, err := ogone.NewGateway(gatewayCfg, httpClient, logger)
	if err != nil {
		logger.Fatal("Failed to initialize gateway", zap.Error(err))
	}

	service := paymentService.NewService(gateway, logger)
	handler := paymentHandler.NewHandler(service, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(observability.Middleware)
	router.Mount("/v1/payments", handler.Routes())

	metricsServer := observability.StartMetricsServer(cfg.Server.MetricsPort)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := observability.ShutdownMetricsServer(metricsServer); err != nil {
		logger.Error("Metrics server shutdown failed", zap.Error(err))
	}
}

// loadSecrets replaces the password and SHA-IN passphrase with values from
// the configured secret manager. Provider "env" leaves the config as-is.
func loadSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Secrets.Provider == "env" {
		return nil
	}

	manager, err := newSecretManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Secrets.PasswordPath != "" {
		secret, err := manager.GetSecret(ctx, cfg.Secrets.PasswordPath)
		if err != nil {
			return fmt.Errorf("failed to load password: %w", err)
		}
		cfg.Gateway.Password = secret.Value
	}

	if cfg.Secrets.SHAInPath != "" {
		secret, err := manager.GetSecret(ctx, cfg.Secrets.SHAInPath)
		if err != nil {
			return fmt.Errorf("failed to load SHA-IN passphrase: %w", err)
		}
		cfg.Gateway.SHAIn = secret.Value
	}

	return nil
}

func newSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Secrets.Provider {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
		awsCfg.Profile = cfg.Secrets.AWSProfile
		awsCfg.Endpoint = cfg.Secrets.AWSEndpoint
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
		vaultCfg.Token = cfg.Secrets.VaultToken
		vaultCfg.MountPath = cfg.Secrets.VaultMount
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)

	case "local":
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalPath, logger), nil

	default:
		return nil, fmt.Errorf("unsupported secrets provider: %s", cfg.Secrets.Provider)
	}
}

// initLogger creates a zap logger based on configuration
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
