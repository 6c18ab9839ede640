package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orro3790/drive-sub008/pkg/tenant"
)

const operatorActor = "operator:dispatchctl"

var orgFlag string

var closeWindowsCmd = &cobra.Command{
	Use:   "close-windows",
	Short: "Close or resolve every bid window past its deadline",
	Args:  cobra.NoArgs,
	RunE:  closeWindows,
}

var detectNoShowsCmd = &cobra.Command{
	Use:   "detect-noshows",
	Short: "Escalate confirmed assignments whose driver never arrived",
	Args:  cobra.NoArgs,
	RunE:  detectNoShows,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <bid-window-id>",
	Short: "Resolve one competitive bid window now",
	Args:  cobra.ExactArgs(1),
	RunE:  resolve,
}

func init() {
	detectNoShowsCmd.Flags().StringVar(&orgFlag, "org", "", "limit detection to one organization id")
	resolveCmd.Flags().StringVar(&orgFlag, "org", "", "organization owning the window (required)")
	_ = resolveCmd.MarkFlagRequired("org")

	rootCmd.AddCommand(closeWindowsCmd, detectNoShowsCmd, resolveCmd)
}

func closeWindows(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now, err := evaluationTime(atFlag)
	if err != nil {
		return err
	}
	rt, err := boot(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	summary, err := rt.Engine.BidWindows.CloseBidWindows(ctx, now)
	if err != nil {
		return fmt.Errorf("close bid windows: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), summary)
}

func detectNoShows(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now, err := evaluationTime(atFlag)
	if err != nil {
		return err
	}
	var scope tenant.Scope
	if orgFlag != "" {
		if scope, err = parseScope(orgFlag); err != nil {
			return err
		}
	}
	rt, err := boot(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if !scope.IsZero() {
		res, err := rt.Engine.NoShows.DetectNoShowsForOrganization(ctx, scope, now)
		if err != nil {
			return fmt.Errorf("detect no-shows: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	}
	res, err := rt.Engine.NoShows.DetectNoShows(ctx, now)
	if err != nil {
		return fmt.Errorf("detect no-shows: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func resolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	windowID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid bid window id: %w", err)
	}
	scope, err := parseScope(orgFlag)
	if err != nil {
		return err
	}
	now, err := evaluationTime(atFlag)
	if err != nil {
		return err
	}
	rt, err := boot(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	res, err := rt.Engine.Resolution.ResolveBidWindow(ctx, scope, windowID, operatorActor, now)
	if err != nil {
		return fmt.Errorf("resolve bid window: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func parseScope(raw string) (tenant.Scope, error) {
	orgID, err := uuid.Parse(raw)
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("invalid organization id: %w", err)
	}
	return tenant.NewScope(orgID)
}
