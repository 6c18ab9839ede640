package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orro3790/drive-sub008/internal/noshow"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

type noShowDetector interface {
	DetectNoShows(ctx context.Context, now time.Time) (noshow.BatchResult, error)
}

type NoShowJobParams struct {
	Logger   *logger.Logger
	Detector noShowDetector
	Interval time.Duration
}

func NewNoShowJob(params NoShowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Detector == nil {
		return nil, fmt.Errorf("no-show detector required")
	}
	return &noShowJob{
		logg:     params.Logger,
		detector: params.Detector,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type noShowJob struct {
	logg     *logger.Logger
	detector noShowDetector
	interval time.Duration
	now      func() time.Time
}

func (j *noShowJob) Name() string { return "no-show-detection" }

func (j *noShowJob) Interval() time.Duration { return j.interval }

func (j *noShowJob) Run(ctx context.Context) error {
	res, err := j.detector.DetectNoShows(ctx, j.now().UTC())
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"organizations":   res.Organizations,
		"evaluated":       res.Evaluated,
		"no_shows":        res.NoShows,
		"windows_created": res.WindowsCreated,
		"manager_alerts":  res.ManagerAlerts,
		"errors":          res.Errors,
	})
	if err != nil {
		return fmt.Errorf("detect no-shows: %w", err)
	}
	j.logg.Info(logCtx, "no-show detection complete")
	return nil
}
