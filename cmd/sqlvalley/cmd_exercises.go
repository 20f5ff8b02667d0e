package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

func newExercisesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "exercises",
		Aliases: []string{"ls"},
		Short:   "List exercises with their lock and completion state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app.App) error {
				printExerciseList(cmd.OutOrStdout(), a.Session.Exercises())
				return nil
			})
		},
	}
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show an exercise (defaults to the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app.App) error {
				id := a.Session.Current().Exercise.ID
				if len(args) == 1 {
					n, err := parseExerciseID(args[0])
					if err != nil {
						return err
					}
					id = n
				}
				for _, st := range a.Session.Exercises() {
					if st.Exercise.ID == id {
						printExercise(cmd.OutOrStdout(), st.Exercise, st.Unlocked, st.Completed)
						return nil
					}
				}
				return fmt.Errorf("exercise %d: %w", id, domain.ErrExerciseNotFound)
			})
		},
	}
}

func newNextCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Recommend the next exercise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				ex, ok := a.Session.NextRecommended()
				if !ok {
					passColor.Fprintln(out, "Every exercise is complete. Well done!")
					return nil
				}
				fmt.Fprintf(out, "Next up: ")
				titleColor.Fprintf(out, "#%d %s\n", ex.ID, ex.Title)
				return nil
			})
		},
	}
}

func parseExerciseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid exercise id %q", s)
	}
	return id, nil
}
