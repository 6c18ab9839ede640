package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
)

const defaultTick = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Metrics  *metrics.CronJobMetrics
	// Interval is the wake-up tick and the cadence of jobs without their own.
	Interval time.Duration
	Now      func() time.Time
}

// Service wakes every tick and runs the jobs that are due. Every worker
// replica runs every job; the sweeps are idempotent, so overlap is harmless.
type Service struct {
	logg    *logger.Logger
	jobs    []Job
	metrics *metrics.CronJobMetrics
	tick    time.Duration
	now     func() time.Time
	nextRun map[string]time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	s := &Service{
		logg:    p.Logger,
		metrics: p.Metrics,
		tick:    p.Interval,
		now:     p.Now,
		nextRun: map[string]time.Time{},
	}
	if p.Registry != nil {
		s.jobs = p.Registry.Jobs()
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every job now regardless of when it last ran.
func (s *Service) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		s.runJob(ctx, job)
	}
}

func (s *Service) runCycle(ctx context.Context) {
	now := s.now()
	for _, job := range s.jobs {
		if next, ok := s.nextRun[job.Name()]; ok && now.Before(next) {
			continue
		}
		s.nextRun[job.Name()] = now.Add(s.cadence(job))
		s.runJob(ctx, job)
	}
}

func (s *Service) cadence(job Job) time.Duration {
	if iv, ok := job.(Interval); ok && iv.Interval() > 0 {
		return iv.Interval()
	}
	return s.tick
}

func (s *Service) runJob(ctx context.Context, job Job) {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := runGuarded(ctx, job)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), took, s.now(), err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.logg.Info(ctx, "cron.job_completed")
}

// runGuarded turns a panicking job into a failed run so the others still go.
func runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
