// Package main запускает HTTP-сервер реферального сервиса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkazancev/referral-system/internal/attribution"
	"github.com/mkazancev/referral-system/internal/config"
	"github.com/mkazancev/referral-system/internal/engagement"
	"github.com/mkazancev/referral-system/internal/handler"
	"github.com/mkazancev/referral-system/internal/middleware"
	"github.com/mkazancev/referral-system/internal/repository"
	"github.com/mkazancev/referral-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var engagementClient *engagement.Client
	if cfg.EngagementSystemAddress != "" {
		engagementClient = engagement.NewClient(cfg.EngagementSystemAddress)
	}

	svc := service.NewService(repo, engagementClient, logger)
	defer svc.Close()

	secret := cfg.AuthSecret
	if secret == "" {
		secret = "referral-secret"
	}

	authMiddleware := middleware.NewAuthMiddleware(secret)
	attributionStore := attribution.NewCookieStore(secret)

	h := handler.NewHandler(svc, logger, authMiddleware, attributionStore, cfg.AdminKey)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового процесса обновления статусов рефералов
	g.Go(func() error {
		svc.StartEngagementUpdates(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting referral server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
