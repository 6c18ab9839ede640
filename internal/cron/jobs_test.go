package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/internal/noshow"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

type fakeSweeper struct {
	lastNow time.Time
	summary bidwindows.CloseSummary
	err     error
	called  int
}

func (f *fakeSweeper) CloseBidWindows(_ context.Context, now time.Time) (bidwindows.CloseSummary, error) {
	f.called++
	f.lastNow = now
	return f.summary, f.err
}

type fakeDetector struct {
	lastNow time.Time
	err     error
	called  int
}

func (f *fakeDetector) DetectNoShows(_ context.Context, now time.Time) (noshow.BatchResult, error) {
	f.called++
	f.lastNow = now
	return noshow.BatchResult{Organizations: 1}, f.err
}

func TestCloseBidWindowsJobPassesClock(t *testing.T) {
	now := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{summary: bidwindows.CloseSummary{Processed: 2, Resolved: 1, Transitioned: 1}}
	jobIface, err := NewCloseBidWindowsJob(CloseBidWindowsJobParams{
		Logger:   logger.Nop(),
		Sweeper:  sweeper,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewCloseBidWindowsJob: %v", err)
	}
	job := jobIface.(*closeBidWindowsJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.called != 1 || !sweeper.lastNow.Equal(now) {
		t.Fatalf("expected one sweep at %s, got %d at %s", now, sweeper.called, sweeper.lastNow)
	}
	if job.Interval() != time.Minute {
		t.Fatalf("unexpected interval %s", job.Interval())
	}
}

func TestCloseBidWindowsJobPropagatesErrors(t *testing.T) {
	jobIface, err := NewCloseBidWindowsJob(CloseBidWindowsJobParams{
		Logger:  logger.Nop(),
		Sweeper: &fakeSweeper{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewCloseBidWindowsJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNoShowJobPassesClock(t *testing.T) {
	now := time.Date(2026, 3, 9, 13, 20, 0, 0, time.UTC)
	detector := &fakeDetector{}
	jobIface, err := NewNoShowJob(NoShowJobParams{
		Logger:   logger.Nop(),
		Detector: detector,
		Interval: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewNoShowJob: %v", err)
	}
	job := jobIface.(*noShowJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if detector.called != 1 || !detector.lastNow.Equal(now) {
		t.Fatalf("expected one detection at %s, got %d at %s", now, detector.called, detector.lastNow)
	}
}

func TestNoShowJobPropagatesErrors(t *testing.T) {
	jobIface, err := NewNoShowJob(NoShowJobParams{
		Logger:   logger.Nop(),
		Detector: &fakeDetector{err: errors.New("boom")},
	})
	if err != nil {
		t.Fatalf("NewNoShowJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobConstructorsValidateDependencies(t *testing.T) {
	if _, err := NewCloseBidWindowsJob(CloseBidWindowsJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without sweeper")
	}
	if _, err := NewNoShowJob(NoShowJobParams{Detector: &fakeDetector{}}); err == nil {
		t.Fatal("expected error without logger")
	}
}
