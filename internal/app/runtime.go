package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/instance"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/migrate"
	"github.com/orro3790/drive-sub008/pkg/pubsub"
	"github.com/orro3790/drive-sub008/pkg/redis"
)

// BootOptions select what a binary connects at startup.
type BootOptions struct {
	Service string
	// EnvFile defaults to .env in the working directory.
	EnvFile string
	// Redis connects the idempotency store when one is configured.
	Redis      bool
	Registerer prometheus.Registerer
}

// Runtime is a booted process: config, logger, connections and the engine.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client
	Redis  *redis.Client
	Engine *Engine

	closers []func() error
}

// Boot loads .env and the DRIVE_* environment, connects the database (running
// dev migrations when enabled) and the optional backends, then wires the
// engine. On error everything opened so far is closed again.
func Boot(ctx context.Context, opts BootOptions) (*Runtime, error) {
	var envFiles []string
	if opts.EnvFile != "" {
		envFiles = append(envFiles, opts.EnvFile)
	}
	envErr := godotenv.Load(envFiles...)
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = opts.Service

	logg := logger.New(logger.Options{
		ServiceName: opts.Service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	if envErr != nil {
		logg.Debug(ctx, ".env not loaded, using process environment")
	}

	rt := &Runtime{Config: cfg, Logger: logg}
	if err := rt.open(ctx, opts); err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts BootOptions) error {
	cfg, logg := rt.Config, rt.Logger

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	rt.DB = client
	rt.closers = append(rt.closers, client.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	switch {
	case !opts.Redis:
	case cfg.Redis.Enabled():
		rc, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = rc
		rt.closers = append(rt.closers, rc.Close)
	default:
		logg.Warn(ctx, "redis not configured, idempotency keys disabled")
	}

	params := Params{Config: cfg, Logger: logg, DB: client, Registerer: opts.Registerer}
	if cfg.PubSub.Enabled() {
		pub, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
		params.Publisher = pub
		rt.closers = append(rt.closers, pub.Close)
	}

	rt.Engine, err = New(params)
	return err
}

// LogContext tags ctx with the process identity for startup and shutdown logs.
func (rt *Runtime) LogContext(ctx context.Context) context.Context {
	return rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
		"instance":    instance.GetID(),
	})
}

// Close releases connections in reverse open order. It is safe to call twice.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, rt.closers[i]())
	}
	rt.closers = nil
	return err
}
