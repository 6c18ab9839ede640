package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orro3790/drive-sub008/internal/app"
	"github.com/orro3790/drive-sub008/internal/cron"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Boot(ctx, app.BootOptions{Service: "cron-worker", Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "startup failed", err)
		return 1
	}
	logg := rt.Logger
	defer func() {
		if err := rt.Close(); err != nil {
			logg.Error(context.Background(), "shutdown close failed", err)
		}
	}()

	service, registry, err := newCronService(rt)
	if err != nil {
		logg.Error(ctx, "failed to build cron jobs", err)
		return 1
	}

	ctx = logg.WithField(rt.LogContext(ctx), "jobs", registry.Names())
	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "cron worker stopped")
	return 0
}

func newCronService(rt *app.Runtime) (*cron.Service, *cron.Registry, error) {
	closeJob, err := cron.NewCloseBidWindowsJob(cron.CloseBidWindowsJobParams{
		Logger:   rt.Logger,
		Sweeper:  rt.Engine.BidWindows,
		Interval: rt.Config.Cron.CloseWindowsInterval,
	})
	if err != nil {
		return nil, nil, err
	}
	noShowJob, err := cron.NewNoShowJob(cron.NoShowJobParams{
		Logger:   rt.Logger,
		Detector: rt.Engine.NoShows,
		Interval: rt.Config.Cron.NoShowInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	registry := cron.NewRegistry(closeJob, noShowJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: registry,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	return service, registry, err
}
