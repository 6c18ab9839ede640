package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

type bidWindowSweeper interface {
	CloseBidWindows(ctx context.Context, now time.Time) (bidwindows.CloseSummary, error)
}

type CloseBidWindowsJobParams struct {
	Logger   *logger.Logger
	Sweeper  bidWindowSweeper
	Interval time.Duration
}

func NewCloseBidWindowsJob(params CloseBidWindowsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("bid window sweeper required")
	}
	return &closeBidWindowsJob{
		logg:     params.Logger,
		sweeper:  params.Sweeper,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type closeBidWindowsJob struct {
	logg     *logger.Logger
	sweeper  bidWindowSweeper
	interval time.Duration
	now      func() time.Time
}

func (j *closeBidWindowsJob) Name() string { return "close-bid-windows" }

func (j *closeBidWindowsJob) Interval() time.Duration { return j.interval }

func (j *closeBidWindowsJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.CloseBidWindows(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed":    summary.Processed,
		"resolved":     summary.Resolved,
		"transitioned": summary.Transitioned,
		"closed":       summary.Closed,
		"errors":       summary.Errors,
	})
	if err != nil {
		return fmt.Errorf("close bid windows: %w", err)
	}
	j.logg.Info(logCtx, "close bid windows complete")
	return nil
}
