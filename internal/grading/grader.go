// Package grading scores query outcomes against exercise test cases.
package grading

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Grader evaluates submissions. It is stateless apart from its logger.
type Grader struct {
	logger *slog.Logger
}

// NewGrader creates a grader
func NewGrader(logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{logger: logger}
}

// Grade evaluates every test case of ex against outcome. A failed engine call
// fails every test. Bonuses are only evaluated for passing submissions.
func (g *Grader) Grade(ex *domain.Exercise, outcome domain.QueryOutcome, tel domain.Telemetry) *domain.GradeReport {
	report := &domain.GradeReport{
		ExerciseID: ex.ID,
		Results:    make([]domain.TestResult, len(ex.TestCases)),
	}

	for i, tc := range ex.TestCases {
		passed := outcome.Success && g.evaluate(ex.ID, tc, outcome.Result)
		result := domain.TestResult{Name: tc.Name, Weight: tc.Weight, Passed: passed}
		if !passed {
			result.Feedback = tc.FeedbackOnFail
		}
		report.Results[i] = result
	}

	report.Score = Score(report.Results)
	report.Passed = report.Score == 100

	if !outcome.Success {
		report.EngineError = outcome.Error
		report.Summary = "SQL Error: " + outcome.Error
		report.Suggestions = []string{"Check your syntax, table names and column names."}
		return report
	}

	report.Summary = summarize(ex, report.Score)
	report.Suggestions = suggest(ex, report)

	if report.Passed {
		for _, b := range ex.Bonuses {
			earned := g.evaluateBonus(ex.ID, b, tel)
			report.Bonuses = append(report.Bonuses, domain.BonusResult{
				Description: b.Description,
				Points:      b.Points,
				Earned:      earned,
			})
			if earned {
				report.BonusPoints += b.Points
			}
		}
	}

	return report
}

func (g *Grader) evaluate(exerciseID int, tc domain.TestCase, result domain.QueryResult) (passed bool) {
	if tc.Predicate == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Debug("predicate panicked", "exercise_id", exerciseID, "test", tc.Name, "panic", r)
			passed = false
		}
	}()
	return tc.Predicate(result)
}

func (g *Grader) evaluateBonus(exerciseID int, b domain.BonusObjective, tel domain.Telemetry) (earned bool) {
	if b.Check == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Debug("bonus check panicked", "exercise_id", exerciseID, "bonus", b.Description, "panic", r)
			earned = false
		}
	}()
	return b.Check(tel)
}

// Score returns round-half-up(100 * passed weight / total weight). Weights
// that are not positive finite numbers are ignored; with no usable weight the
// score is 0. Exact rational arithmetic keeps the result identical on every
// platform.
func Score(results []domain.TestResult) int {
	total := new(big.Rat)
	earned := new(big.Rat)
	for _, r := range results {
		w := new(big.Rat)
		if w.SetFloat64(r.Weight) == nil || w.Sign() <= 0 {
			continue
		}
		total.Add(total, w)
		if r.Passed {
			earned.Add(earned, w)
		}
	}
	if total.Sign() == 0 {
		return 0
	}

	ratio := new(big.Rat).Quo(earned, total)
	ratio.Mul(ratio, big.NewRat(100, 1))
	ratio.Add(ratio, big.NewRat(1, 2))
	return int(new(big.Int).Quo(ratio.Num(), ratio.Denom()).Int64())
}

func summarize(ex *domain.Exercise, score int) string {
	switch {
	case score == 100:
		return fmt.Sprintf("Perfect! You've mastered %s!", ex.Title)
	case score >= 70:
		return fmt.Sprintf("Good job! You're %d%% correct. Let's fix the remaining issues.", score)
	case score >= 40:
		return fmt.Sprintf("You're on the right track (%d%% correct), but there are some issues to address.", score)
	default:
		return fmt.Sprintf("Let's work through this step by step. Current score: %d%%", score)
	}
}

func suggest(ex *domain.Exercise, report *domain.GradeReport) []string {
	var noResults, wrongCount, wrongFilter, wrongSort bool
	failed := 0
	for _, r := range report.Results {
		if r.Passed {
			continue
		}
		failed++
		name := strings.ToLower(r.Name)
		noResults = noResults || strings.Contains(name, "returns results")
		wrongCount = wrongCount || strings.Contains(name, "count") || strings.Contains(name, "number")
		wrongFilter = wrongFilter || strings.Contains(name, "filter") || strings.Contains(name, "where")
		wrongSort = wrongSort || strings.Contains(name, "sort") || strings.Contains(name, "order")
	}
	if failed == 0 {
		return nil
	}

	var out []string
	if noResults {
		out = append(out, "Your query isn't returning any results. Check your syntax and table names.")
	}
	if wrongCount {
		out = append(out, "The number of results doesn't match. Review your WHERE conditions.")
	}
	if wrongFilter {
		out = append(out, "Your filtering conditions might be incorrect. Double-check the WHERE clause.")
	}
	if wrongSort {
		out = append(out, "The sorting isn't correct. Make sure to use ORDER BY with the right column and direction.")
	}
	if report.Score < 50 && len(ex.LearningObjectives) > 0 {
		out = append(out, "Review these concepts: "+strings.Join(ex.LearningObjectives, ", "))
	}
	return out
}
