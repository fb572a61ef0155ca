package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/app"
	"github.com/nonyonah/hedwig/internal/config"
	"github.com/nonyonah/hedwig/internal/router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments inject environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}
	setupLogging(cfg)

	container, err := app.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("build application")
	}
	defer container.Cleanup()

	if cfg.Telegram.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := container.Telegram.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
			logrus.WithError(err).Warn("register telegram webhook")
		} else {
			logrus.WithField("url", cfg.Telegram.WebhookURL).Info("telegram webhook registered")
		}
		cancel()
	}

	if err := container.Reconciliation.Start(); err != nil {
		logrus.WithError(err).Fatal("start reconciliation job")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(cfg, container.Handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
