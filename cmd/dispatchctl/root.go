package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/orro3790/drive-sub008/internal/app"
)

var (
	envFile string
	atFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "dispatchctl",
	Short:         "Operator commands for the dispatch engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading DRIVE_* variables")
	rootCmd.PersistentFlags().StringVar(&atFlag, "at", "", "evaluate as of this RFC3339 instant instead of now")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// boot connects the engine for one command. Callers must Close the runtime.
func boot(ctx context.Context) (*app.Runtime, error) {
	return app.Boot(ctx, app.BootOptions{Service: "dispatchctl", EnvFile: envFile})
}

func evaluationTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339: %w", err)
	}
	return at.UTC(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
