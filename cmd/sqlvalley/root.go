package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/config"
)

type rootOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlvalley",
		Short: "Learn SQL one unlocked exercise at a time",
		Long: `SQL Valley is a progressive SQL course played against a small company
dataset. Exercises unlock as their prerequisites are completed, every
submission is graded against weighted test cases, and points, levels and
achievements are kept between runs.

Practice mode opens every exercise without touching your progress.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level on stderr")

	cmd.AddCommand(newExercisesCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newNextCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.AddCommand(newShellCommand(opts))
	cmd.AddCommand(newMCPCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// withApp loads configuration, starts a session, runs fn and closes the
// session, saving drafts and progress.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := config.EnsureDir(); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg, app.Options{Stderr: cmd.ErrOrStderr(), Verbose: opts.verbose})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("save progress: %w", cerr)
		}
	}()

	return fn(ctx, a)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlvalley %s\n", Version)
		},
	}
}
