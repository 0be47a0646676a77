package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/adapter/handler"
	"github.com/vlima/comanda/internal/adapter/report"
	"github.com/vlima/comanda/internal/adapter/storage"
	"github.com/vlima/comanda/internal/config"
	"github.com/vlima/comanda/internal/core/service"
	"github.com/vlima/comanda/internal/port"
)

const (
	httpAddr        = ":8080"
	defaultStateDir = "./data"
	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateDir := os.Getenv("COMANDA_STATE_DIR")
	if stateDir == "" {
		stateDir = defaultStateDir
	}

	// The local store always exists: it is the fallback backend and the home
	// of the saved config slot.
	local := storage.NewLocalStore(stateDir, storage.DefaultPollInterval)
	cfg := config.Load(nil, local)

	var store port.Store = local
	remote := false
	if cfg.HasRemote() {
		client, err := config.Connect(ctx, cfg)
		if err != nil {
			logrus.WithError(err).Warn("remote backend unreachable, falling back to local store")
		} else {
			store = storage.NewRedisStore(client)
			remote = true
			logrus.WithField("addr", cfg.Addr).Info("connected to remote backend")
		}
	}
	if !remote {
		logrus.WithField("dir", stateDir).Info("running on local fallback store")
	}

	svc := service.NewPOSService(store)
	reporter := report.NewGenerator(cfg.ReportAPIURL, cfg.ReportAPIKey)

	httpHandler := handler.NewHTTPHandler(svc, reporter, local)
	wsHandler := handler.NewWSHandler(svc)
	server := handler.SetupRoutes(httpHandler, wsHandler)

	go func() {
		logrus.WithField("addr", httpAddr).Info("http server listening")
		if err := server.Run(httpAddr); err != nil {
			logrus.WithError(err).Info("http server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down...")
	if err := server.Shutdown(shutdownTimeout); err != nil {
		logrus.WithError(err).Error("http shutdown failed")
	}
	if err := store.Close(); err != nil {
		logrus.WithError(err).Error("store close failed")
	}
	logrus.Info("bye")
}
