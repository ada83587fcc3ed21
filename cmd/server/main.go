// Package main はライセンス管理APIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"license-management-service/config"
	"license-management-service/internal/handler"
	"license-management-service/internal/infra"
	"license-management-service/internal/repository"
	"license-management-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "operation", "startup", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "operation", "shutdown", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, infra.ParseLogLevel(cfg.LogLevel))

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set", "operation", "startup")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "operation", "startup", "error", err)
		os.Exit(1)
	}

	// KMSクライアント初期化
	if cfg.KMSKeyName == "" {
		slog.Error("KMS_KEY_NAME is not set", "operation", "startup")
		os.Exit(1)
	}
	kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
	if err != nil {
		slog.Error("failed to init KMS client", "operation", "startup", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kmsClient.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "operation", "shutdown", "error", closeErr)
		}
	}()

	// DI
	metrics := infra.NewMetrics()
	keyService := usecase.NewKeyService(repository.NewSigningKeyRepository(db), kmsClient, cfg.RSAKeyBits)
	licenseService := usecase.NewLicenseService(repository.NewLicenseRepository(db), keyService)

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metrics.Handler()
	}
	router := handler.NewRouter(
		handler.NewKeyHandler(keyService, metrics),
		handler.NewLicenseHandler(licenseService, metrics),
		metricsHandler,
		cfg,
	)

	// サーバー起動
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...", "operation", "shutdown")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "operation", "shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"operation", "startup",
		"port", cfg.Port,
		"version", infra.Version,
		"metrics_enabled", cfg.MetricsEnabled,
		"otel_enabled", cfg.OtelEnabled,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "operation", "serve", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped", "operation", "shutdown")
}
