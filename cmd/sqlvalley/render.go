package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/felixgeelhaar/sqlvalley/internal/achievement"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/session"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	passColor    = color.New(color.FgGreen)
	failColor    = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	practiceMark = color.New(color.FgMagenta, color.Bold)
)

func printExerciseList(w io.Writer, statuses []session.ExerciseStatus) {
	titleColor.Fprintln(w, "Exercises")
	for _, st := range statuses {
		ex := st.Exercise
		var mark string
		switch {
		case st.Completed:
			mark = passColor.Sprint("✓")
		case st.Unlocked:
			mark = warnColor.Sprint("•")
		default:
			mark = dimColor.Sprint("🔒")
		}
		current := "  "
		if st.Current {
			current = "▶ "
		}
		fmt.Fprintf(w, "%s%s %2d. %-34s %-12s %3d pts\n", current, mark, ex.ID, ex.Title, ex.Difficulty, ex.Points)
	}
}

func printExercise(w io.Writer, ex *domain.Exercise, unlocked, completed bool) {
	titleColor.Fprintf(w, "#%d %s\n", ex.ID, ex.Title)
	fmt.Fprintf(w, "%s · %s · %d points", ex.Category, ex.Difficulty, ex.Points)
	switch {
	case completed:
		passColor.Fprint(w, " · completed")
	case !unlocked:
		dimColor.Fprintf(w, " · locked (needs %s)", joinIDs(ex.Prerequisites))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(ex.Description))
	if ex.Theory != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(ex.Theory))
	}
	if len(ex.LearningObjectives) > 0 {
		fmt.Fprintf(w, "\nObjectives: %s\n", strings.Join(ex.LearningObjectives, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimRight(ex.PristineCode(), "\n"))
	if len(ex.Hints) > 0 {
		dimColor.Fprintf(w, "\n%d hints available\n", len(ex.Hints))
	}
}

func printReport(w io.Writer, r *domain.GradeReport, det *achievement.Detector) {
	if r.Practice {
		practiceMark.Fprint(w, "[practice] ")
	}
	scoreColor := failColor
	switch {
	case r.Passed:
		scoreColor = passColor
	case r.Score >= 40:
		scoreColor = warnColor
	}
	scoreColor.Fprintf(w, "Score: %d%%\n", r.Score)
	fmt.Fprintln(w, r.Summary)

	for _, t := range r.Results {
		if t.Passed {
			passColor.Fprintf(w, "  ✓ %s\n", t.Name)
			continue
		}
		failColor.Fprintf(w, "  ✗ %s", t.Name)
		if t.Feedback != "" {
			fmt.Fprintf(w, ": %s", t.Feedback)
		}
		fmt.Fprintln(w)
	}
	for _, s := range r.Suggestions {
		warnColor.Fprintf(w, "  → %s\n", s)
	}
	for _, b := range r.Bonuses {
		if b.Earned {
			passColor.Fprintf(w, "  ★ %s (+%d)\n", b.Description, b.Points)
		}
	}
	if r.Completed {
		passColor.Fprintf(w, "Exercise complete! +%d points\n", r.PointsAwarded)
	}
	for _, rec := range r.AchievementsEarned {
		printAchievement(w, rec.ID, det)
	}
}

func printAchievement(w io.Writer, id string, det *achievement.Detector) {
	a, ok := det.Describe(id)
	if !ok {
		a = domain.Achievement{ID: id, Name: id}
	}
	titleColor.Fprintf(w, "%s Achievement unlocked: %s", a.Icon, a.Name)
	if a.Description != "" {
		fmt.Fprintf(w, " (%s)", a.Description)
	}
	fmt.Fprintln(w)
}

func printProgress(w io.Writer, p session.ProgressView, det *achievement.Detector) {
	titleColor.Fprintln(w, "Progress")
	if p.Practice {
		practiceMark.Fprintln(w, "Practice mode is on; nothing below changes until you leave it.")
	}
	fmt.Fprintf(w, "Level %d · %d points · next level at %d\n", p.Level, p.State.TotalPoints, p.NextLevelAt)
	fmt.Fprintf(w, "%s %d%% of exercises complete\n", renderProgressBar(float64(p.Percent)/100, 20), p.Percent)
	fmt.Fprintf(w, "Streak: %d\n", p.State.Streak)

	st := p.State.Statistics
	fmt.Fprintf(w, "Queries: %d (%d ran cleanly) · perfect scores: %d · hints used: %d\n",
		st.TotalQueries, st.SuccessfulQueries, st.PerfectScores, st.HintsUsed)
	if avg := st.AverageExecution(); avg > 0 {
		fmt.Fprintf(w, "Average query time: %s\n", avg)
	}

	if len(p.State.UnlockedAchievements) == 0 {
		return
	}
	fmt.Fprintln(w)
	titleColor.Fprintln(w, "Achievements")
	for _, rec := range p.State.UnlockedAchievements {
		a, ok := det.Describe(rec.ID)
		if !ok {
			a = domain.Achievement{Name: rec.ID}
		}
		fmt.Fprintf(w, "  %s %s", a.Icon, a.Name)
		dimColor.Fprintf(w, "  %s\n", rec.UnlockedAt.Format("2006-01-02"))
	}
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
