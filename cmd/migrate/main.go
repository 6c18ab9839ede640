package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/db"
	"github.com/orro3790/drive-sub008/pkg/logger"
	"github.com/orro3790/drive-sub008/pkg/migrate"
)

var (
	envFile string
	dirFlag string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and inspect the dispatch schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading DRIVE_* variables")
	root.PersistentFlags().StringVar(&dirFlag, "dir", "", "read migrations from this directory instead of the embedded set")

	root.AddCommand(
		migratorCmd("up", "Apply all pending migrations", cobra.NoArgs, func(ctx context.Context, m *migrate.Migrator, _ []string) ([]int64, error) {
			return m.Up(ctx)
		}),
		migratorCmd("down", "Roll back the most recent migration", cobra.NoArgs, func(ctx context.Context, m *migrate.Migrator, _ []string) ([]int64, error) {
			return m.Down(ctx)
		}),
		migratorCmd("to <version>", "Migrate up or down to a YYYYMMDDHHMMSS version", cobra.ExactArgs(1), func(ctx context.Context, m *migrate.Migrator, args []string) ([]int64, error) {
			target, err := migrate.ParseVersion(args[0])
			if err != nil {
				return nil, err
			}
			return m.To(ctx, target)
		}),
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *migrate.Migrator) error {
					rows, err := m.Status(ctx)
					if err != nil {
						return err
					}
					return printStatus(cmd.OutOrStdout(), rows)
				})
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Write an empty timestamped SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dir := dirFlag
				if dir == "" {
					dir = migrate.DefaultDir
				}
				path, err := migrate.CreateSQLMigration(dir, args[0], time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration file names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var err error
				if dirFlag != "" {
					err = migrate.ValidateDir(dirFlag)
				} else {
					err = migrate.ValidateEmbedded()
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations ok")
				return nil
			},
		},
	)
	return root
}

type migration func(ctx context.Context, m *migrate.Migrator, args []string) ([]int64, error)

func migratorCmd(use, short string, args cobra.PositionalArgs, run migration) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *migrate.Migrator) error {
				applied, err := run(ctx, m, argv)
				for _, v := range applied {
					fmt.Fprintln(cmd.OutOrStdout(), "migrated", v)
				}
				return err
			})
		},
	}
}

func printStatus(w io.Writer, rows []migrate.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, row := range rows {
		state, at := "pending", "-"
		if row.Applied {
			state, at = "applied", row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", row.Version, state, at, row.File)
	}
	return tw.Flush()
}

// withMigrator opens the configured database for one migration command.
func withMigrator(ctx context.Context, fn func(context.Context, *migrate.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	if cfg.DB.UseSQLite {
		return errors.New("migrations target postgres; sqlite schemas are synced from models by DRIVE_AUTO_MIGRATE")
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": dirFlag})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := migrate.New(sqlDB, dirFlag)
	if err != nil {
		return err
	}
	if err := fn(ctx, m); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration complete")
	return nil
}
