package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/progress"
	"github.com/felixgeelhaar/sqlvalley/internal/session"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show points, level, streak and achievements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app.App) error {
				printProgress(cmd.OutOrStdout(), a.Session.Progress(), a.Detector)
				return nil
			})
		},
	}
}

func newResetCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all progress and drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset erases all progress; rerun with --yes to confirm")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				return resetProgress(ctx, cmd.OutOrStdout(), a.Session)
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

// resetProgress reports keys the store could not erase without failing; the
// in-memory state is already reset.
func resetProgress(ctx context.Context, w io.Writer, svc session.LearnerService) error {
	err := svc.ResetAll(ctx)
	var resetErr *progress.ResetError
	if errors.As(err, &resetErr) {
		warnColor.Fprintf(w, "Progress reset, but these stored keys could not be erased: %v\n", resetErr.FailedKeys)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	passColor.Fprintln(w, "All progress has been reset.")
	return nil
}
