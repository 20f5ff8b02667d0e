package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	var (
		exerciseID int
		file       string
		practice   bool
	)

	cmd := &cobra.Command{
		Use:   "submit [sql]",
		Short: "Run and grade a query",
		Long: `Run a query against the dataset and grade it for an exercise.

The query comes from the arguments, from --file, or, when neither is given,
from the saved draft of the exercise.

Examples:
  sqlvalley submit "SELECT * FROM employees"
  sqlvalley submit -e 3 -f answer.sql
  sqlvalley submit --practice -e 7 -f join.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if file != "" {
				if query != "" {
					return errors.New("pass the query as an argument or with --file, not both")
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read query: %w", err)
				}
				query = string(data)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if practice {
					if _, err := a.Session.EnterPractice(ctx); err != nil {
						return err
					}
				}
				if exerciseID != 0 && exerciseID != a.Session.Current().Exercise.ID {
					if _, err := a.Session.Select(ctx, exerciseID); err != nil {
						if errors.Is(err, domain.ErrExerciseLocked) {
							return fmt.Errorf("%w (use --practice to try it anyway)", err)
						}
						return err
					}
				}

				report, err := a.Session.Submit(ctx, query)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report, a.Detector)

				if practice {
					_, err = a.Session.ExitPractice(ctx)
				}
				return err
			})
		},
	}

	cmd.Flags().IntVarP(&exerciseID, "exercise", "e", 0, "Exercise id (defaults to the current exercise)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the query from a file")
	cmd.Flags().BoolVar(&practice, "practice", false, "Grade without recording progress; any exercise may be used")

	return cmd
}
