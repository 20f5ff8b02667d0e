package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/sqlvalley/internal/app"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

const shellHelp = `Type SQL and finish it with ';' to submit it for the current exercise.

Commands:
  :exercises       List exercises
  :select <id>     Open an exercise
  :show            Show the current exercise
  :code            Print the editor contents
  :restore         Restore the starter code
  :hint            Reveal the next hint
  :practice        Enter practice mode (nothing is recorded)
  :real            Leave practice mode
  :status          Show progress
  :next            Open the recommended exercise
  :schema          Show the dataset tables
  :reset           Erase all progress
  :help            Show this help
  :quit            Leave the shell`

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Work through exercises interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				sh := &shell{app: a, in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
				return sh.run(ctx)
			})
		},
	}
}

type shell struct {
	app *app.App
	in  *bufio.Scanner
	out io.Writer
}

var errQuit = errors.New("quit")

func (sh *shell) run(ctx context.Context) error {
	v := sh.app.Session.Current()
	printExercise(sh.out, v.Exercise, v.Unlocked, v.Completed)
	fmt.Fprintln(sh.out)
	dimColor.Fprintln(sh.out, "Type :help for commands.")

	var buf strings.Builder
	for {
		if ctx.Err() != nil {
			return nil
		}
		if buf.Len() == 0 {
			sh.prompt()
		} else {
			fmt.Fprint(sh.out, "   ...> ")
		}
		if !sh.in.Scan() {
			fmt.Fprintln(sh.out)
			return sh.in.Err()
		}
		line := sh.in.Text()
		trimmed := strings.TrimSpace(line)

		if buf.Len() == 0 && strings.HasPrefix(trimmed, ":") {
			if err := sh.command(ctx, trimmed); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				failColor.Fprintf(sh.out, "%v\n", err)
			}
			continue
		}
		if trimmed == "" && buf.Len() == 0 {
			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			sh.submit(ctx, buf.String())
			buf.Reset()
		}
	}
}

func (sh *shell) prompt() {
	v := sh.app.Session.Current()
	if v.Practice {
		practiceMark.Fprintf(sh.out, "practice[#%d]> ", v.Exercise.ID)
		return
	}
	fmt.Fprintf(sh.out, "sqlvalley[#%d]> ", v.Exercise.ID)
}

func (sh *shell) submit(ctx context.Context, query string) {
	report, err := sh.app.Session.Submit(ctx, query)
	if err != nil {
		failColor.Fprintf(sh.out, "%v\n", err)
		return
	}
	printReport(sh.out, report, sh.app.Detector)
	if report.Completed {
		if next, ok := sh.app.Session.NextRecommended(); ok {
			dimColor.Fprintf(sh.out, "Type :next to continue with #%d %s\n", next.ID, next.Title)
		}
	}
}

func (sh *shell) command(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	svc := sh.app.Session

	switch fields[0] {
	case ":quit", ":q", ":exit":
		return errQuit
	case ":help", ":h":
		fmt.Fprintln(sh.out, shellHelp)
	case ":exercises", ":ls":
		printExerciseList(sh.out, svc.Exercises())
	case ":select", ":s":
		if len(fields) != 2 {
			return errors.New("usage: :select <id>")
		}
		id, err := parseExerciseID(fields[1])
		if err != nil {
			return err
		}
		v, err := svc.Select(ctx, id)
		if errors.Is(err, domain.ErrExerciseLocked) {
			return fmt.Errorf("exercise %d is locked; finish its prerequisites or use :practice", id)
		}
		if err != nil {
			return err
		}
		printExercise(sh.out, v.Exercise, v.Unlocked, v.Completed)
	case ":show":
		v := svc.Current()
		printExercise(sh.out, v.Exercise, v.Unlocked, v.Completed)
	case ":code":
		fmt.Fprintln(sh.out, strings.TrimRight(svc.Current().Code, "\n"))
	case ":restore":
		fmt.Fprintln(sh.out, strings.TrimRight(svc.ResetCode(), "\n"))
	case ":hint":
		hint, err := svc.RevealHint(ctx)
		if errors.Is(err, domain.ErrNoMoreHints) {
			return errors.New("no more hints for this exercise")
		}
		if err != nil {
			return err
		}
		warnColor.Fprintf(sh.out, "Hint %d: ", hint.Level)
		fmt.Fprintln(sh.out, hint.Text)
		if hint.Penalty > 0 && !svc.InPractice() {
			dimColor.Fprintf(sh.out, "(-%d points on completion)\n", hint.Penalty)
		}
	case ":practice":
		if svc.InPractice() {
			return errors.New("already in practice mode")
		}
		if _, err := svc.EnterPractice(ctx); err != nil {
			return err
		}
		practiceMark.Fprintln(sh.out, "Practice mode: every exercise is open and nothing is recorded.")
	case ":real":
		if !svc.InPractice() {
			return errors.New("not in practice mode")
		}
		v, err := svc.ExitPractice(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Back to #%d %s\n", v.Exercise.ID, v.Exercise.Title)
	case ":status":
		printProgress(sh.out, svc.Progress(), sh.app.Detector)
	case ":next":
		ex, ok := svc.NextRecommended()
		if !ok {
			passColor.Fprintln(sh.out, "Every exercise is complete. Well done!")
			return nil
		}
		v, err := svc.Select(ctx, ex.ID)
		if err != nil {
			return err
		}
		printExercise(sh.out, v.Exercise, v.Unlocked, v.Completed)
	case ":schema":
		tables, err := sh.app.Engine.Schema(ctx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintf(sh.out, "%s;\n\n", t.SQL)
		}
	case ":reset":
		fmt.Fprint(sh.out, "Erase all progress? Type 'yes' to confirm: ")
		if !sh.in.Scan() || strings.TrimSpace(sh.in.Text()) != "yes" {
			fmt.Fprintln(sh.out, "Reset cancelled.")
			return nil
		}
		return resetProgress(ctx, sh.out, svc)
	default:
		return fmt.Errorf("unknown command %s (try :help)", fields[0])
	}
	return nil
}
