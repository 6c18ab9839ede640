package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/orro3790/drive-sub008/internal/assignments"
	"github.com/orro3790/drive-sub008/internal/bidding"
	"github.com/orro3790/drive-sub008/internal/bidwindows"
	"github.com/orro3790/drive-sub008/internal/eligibility"
	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/internal/instantassign"
	"github.com/orro3790/drive-sub008/internal/noshow"
	"github.com/orro3790/drive-sub008/internal/notifications"
	"github.com/orro3790/drive-sub008/internal/resolution"
	"github.com/orro3790/drive-sub008/internal/settings"
	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/metrics"
)

// Params configure the dispatch engine. Publisher and Registerer may be nil.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Publisher  notifications.Publisher
	Registerer prometheus.Registerer
}

// Engine holds every dispatch service wired against one database.
type Engine struct {
	Assignments   *assignments.Service
	BidWindows    *bidwindows.Manager
	Resolution    *resolution.Engine
	Instant       *instantassign.Resolver
	NoShows       *noshow.Detector
	Eligibility   *eligibility.Checker
	Notifications notifications.Service
	Dispatcher    *notifications.InAppDispatcher
}

func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, errors.New("config required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.DB == nil {
		return nil, errors.New("db client required")
	}

	conn := p.DB.DB()
	dispatchCfg := p.Config.Dispatch
	m := metrics.NewDispatchMetrics(p.Registerer)

	assignmentRepo := assignments.NewRepository(conn)
	windowRepo := bidding.NewRepository(conn)
	settingsRepo := settings.NewRepository(conn, dispatchCfg)
	healthSvc := health.NewService(conn)
	checker := eligibility.NewChecker(conn, assignmentRepo, healthSvc)

	notificationRepo := notifications.NewRepository(conn)
	dispatcher := notifications.NewDispatcher(notificationRepo, p.Publisher, p.Logger)
	inbox, err := notifications.NewService(notificationRepo)
	if err != nil {
		return nil, err
	}

	engine := resolution.NewEngine(resolution.Deps{
		Tx:          p.DB,
		Windows:     windowRepo,
		Assignments: assignmentRepo,
		Settings:    settingsRepo,
		Eligibility: checker,
		Notifier:    dispatcher,
		Metrics:     m,
		Logger:      p.Logger,
	}, dispatchCfg)

	manager := bidwindows.NewManager(bidwindows.Deps{
		Windows:     windowRepo,
		Assignments: assignmentRepo,
		Settings:    settingsRepo,
		Eligibility: checker,
		Health:      healthSvc,
		Resolver:    engine,
		Notifier:    dispatcher,
		Metrics:     m,
		Logger:      p.Logger,
	}, dispatchCfg)

	instant := instantassign.NewResolver(instantassign.Deps{
		Tx:          p.DB,
		Windows:     windowRepo,
		Assignments: assignmentRepo,
		Settings:    settingsRepo,
		Eligibility: checker,
		Health:      healthSvc,
		Notifier:    dispatcher,
		Metrics:     m,
		Logger:      p.Logger,
	})

	detector := noshow.NewDetector(noshow.Deps{
		Tx:          p.DB,
		DB:          conn,
		Assignments: assignmentRepo,
		Windows:     windowRepo,
		Settings:    settingsRepo,
		Health:      healthSvc,
		Opener:      manager,
		Notifier:    dispatcher,
		Metrics:     m,
		Logger:      p.Logger,
	})

	return &Engine{
		Assignments:   assignments.NewService(p.DB, assignmentRepo, manager, p.Logger),
		BidWindows:    manager,
		Resolution:    engine,
		Instant:       instant,
		NoShows:       detector,
		Eligibility:   checker,
		Notifications: inbox,
		Dispatcher:    dispatcher,
	}, nil
}
