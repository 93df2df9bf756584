package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ssw-logs-capture/internal/config"
	"ssw-logs-capture/internal/httpapi"
	metricspkg "ssw-logs-capture/internal/metrics"
	"ssw-logs-capture/pkg/runtime"

	"github.com/sirupsen/logrus"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("SSW_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "/app/configs/config.yaml"
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	rt := runtime.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start runtime")
	}

	api := httpapi.NewServer(rt, logger)
	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsServer := metricspkg.NewServer(cfg.Metrics.Addr, logger)
	if err := metricsServer.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start metrics server")
	}

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("gateway: starting HTTP API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("gateway: HTTP API server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("gateway: HTTP API server did not shut down cleanly")
	}
	if err := metricsServer.Stop(); err != nil {
		logger.WithError(err).Warn("gateway: metrics server did not shut down cleanly")
	}
	if err := rt.Shutdown(); err != nil {
		logger.WithError(err).Error("gateway: runtime shutdown failed")
		os.Exit(1)
	}
}
