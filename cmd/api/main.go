package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orro3790/drive-sub008/api/routes"
	"github.com/orro3790/drive-sub008/internal/app"
	"github.com/orro3790/drive-sub008/pkg/env"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Boot(ctx, app.BootOptions{Service: "api", Redis: true, Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(ctx, "startup failed", err)
		return 1
	}
	logg := rt.Logger
	defer func() {
		if err := rt.Close(); err != nil {
			logg.Error(context.Background(), "shutdown close failed", err)
		}
	}()

	addr := ":" + env.Get("PORT", rt.Config.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(routerParams(rt)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logCtx := logg.WithField(rt.LogContext(ctx), "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(logCtx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		return 1
	}
	logg.Info(logCtx, "api server stopped")
	return 0
}

func routerParams(rt *app.Runtime) routes.Params {
	eng := rt.Engine
	p := routes.Params{
		Config:        rt.Config,
		Logger:        rt.Logger,
		Gatherer:      prometheus.DefaultGatherer,
		DB:            rt.DB,
		BidWindows:    eng.BidWindows,
		Resolver:      eng.Resolution,
		Assign:        eng.Instant,
		Lifecycle:     eng.Assignments,
		Eligibility:   eng.Eligibility,
		NoShows:       eng.NoShows,
		Notifications: eng.Notifications,
	}
	// A nil *redis.Client must not land in the interface fields.
	if rt.Redis != nil {
		p.Redis = rt.Redis
		p.Idempotency = rt.Redis
	}
	return p
}
