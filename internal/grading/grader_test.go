package grading

import (
	"math"
	"testing"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(domain.QueryResult) bool { return true }
func fail(domain.QueryResult) bool { return false }

func results(weights []float64, passed ...bool) []domain.TestResult {
	out := make([]domain.TestResult, len(weights))
	for i, w := range weights {
		out[i] = domain.TestResult{Weight: w, Passed: passed[i]}
	}
	return out
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		results []domain.TestResult
		want    int
	}{
		{"all pass", results([]float64{20, 30, 50}, true, true, true), 100},
		{"none pass", results([]float64{20, 30, 50}, false, false, false), 0},
		{"thirty of seventy", results([]float64{30, 70}, true, false), 30},
		{"one third rounds down", results([]float64{1, 1, 1}, true, false, false), 33},
		{"two thirds rounds up", results([]float64{1, 1, 1}, true, true, false), 67},
		{"half rounds up", results([]float64{1, 7}, true, false), 13},
		{"three and a half eighths", results([]float64{3, 5}, true, false), 38},
		{"empty", nil, 0},
		{"zero weights", results([]float64{0, 0}, true, true), 0},
		{"negative weight ignored", results([]float64{-10, 10}, false, true), 100},
		{"nan ignored", results([]float64{math.NaN(), 10}, true, false), 0},
		{"infinite ignored", results([]float64{math.Inf(1), 10}, false, true), 100},
		{"fractional weights", results([]float64{0.1, 0.2}, false, true), 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.results))
		})
	}
}

func TestScore_MonotonicInPassedSet(t *testing.T) {
	weights := []float64{15, 25, 30, 30, 0.5, 7}
	n := len(weights)
	for mask := 0; mask < 1<<n; mask++ {
		for extra := 0; extra < n; extra++ {
			a := make([]bool, n)
			b := make([]bool, n)
			for i := 0; i < n; i++ {
				a[i] = mask&(1<<i) != 0
				b[i] = a[i] || i == extra
			}
			sa := Score(results(weights, a...))
			sb := Score(results(weights, b...))
			if sa > sb {
				t.Fatalf("Score decreased from %d to %d when adding test %d to %v", sa, sb, extra, a)
			}
			if sa < 0 || sa > 100 {
				t.Fatalf("Score = %d out of range", sa)
			}
		}
	}
}

func exercise() *domain.Exercise {
	return &domain.Exercise{
		ID:                 1,
		Title:              "SELECT Basics",
		Points:             10,
		LearningObjectives: []string{"SELECT", "WHERE"},
		TestCases: []domain.TestCase{
			{Name: "Returns results", Weight: 30, Predicate: pass, FeedbackOnFail: "need rows"},
			{Name: "Correct count", Weight: 70, Predicate: fail, FeedbackOnFail: "wrong count"},
		},
		Bonuses: []domain.BonusObjective{
			{Description: "No hints", Points: 5, Check: func(t domain.Telemetry) bool { return t.HintsUsed == 0 }},
		},
	}
}

func TestGrade_PartialCredit(t *testing.T) {
	g := NewGrader(nil)
	ex := exercise()

	report := g.Grade(ex, domain.QueryOutcome{Success: true}, domain.Telemetry{})

	assert.Equal(t, 30, report.Score)
	assert.False(t, report.Passed)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Passed)
	assert.Empty(t, report.Results[0].Feedback)
	assert.Equal(t, "wrong count", report.Results[1].Feedback)
	assert.Empty(t, report.Bonuses, "bonuses only apply to passing submissions")
	assert.Contains(t, report.Summary, "step by step")
	assert.Contains(t, report.Suggestions, "The number of results doesn't match. Review your WHERE conditions.")
	assert.Contains(t, report.Suggestions, "Review these concepts: SELECT, WHERE")
}

func TestGrade_EngineFailure(t *testing.T) {
	g := NewGrader(nil)
	ex := exercise()
	ex.TestCases[1].Predicate = pass

	report := g.Grade(ex, domain.FailedOutcome("no such table: employes", time.Millisecond), domain.Telemetry{})

	assert.Equal(t, 0, report.Score)
	assert.False(t, report.Passed)
	assert.Equal(t, "no such table: employes", report.EngineError)
	assert.Equal(t, "SQL Error: no such table: employes", report.Summary)
	for _, r := range report.Results {
		assert.False(t, r.Passed)
	}
}

func TestGrade_PanickingPredicateFails(t *testing.T) {
	g := NewGrader(nil)
	ex := exercise()
	ex.TestCases[0].Predicate = func(r domain.QueryResult) bool { return r.Rows[5][9] != nil }
	ex.TestCases[1].Predicate = pass

	report := g.Grade(ex, domain.QueryOutcome{Success: true}, domain.Telemetry{})

	assert.False(t, report.Results[0].Passed)
	assert.True(t, report.Results[1].Passed)
	assert.Equal(t, 70, report.Score)
	assert.Contains(t, report.Summary, "Good job")
}

func TestGrade_PassWithBonuses(t *testing.T) {
	g := NewGrader(nil)
	ex := exercise()
	ex.TestCases[1].Predicate = pass
	ex.Bonuses = append(ex.Bonuses,
		domain.BonusObjective{Description: "Fast", Points: 3, Check: func(t domain.Telemetry) bool { return t.TimeSpent < time.Minute }},
		domain.BonusObjective{Description: "Broken", Points: 100, Check: func(domain.Telemetry) bool { panic("boom") }},
	)

	report := g.Grade(ex, domain.QueryOutcome{Success: true}, domain.Telemetry{TimeSpent: 2 * time.Minute})

	assert.True(t, report.Passed)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, "Perfect! You've mastered SELECT Basics!", report.Summary)
	assert.Empty(t, report.Suggestions)
	require.Len(t, report.Bonuses, 3)
	assert.True(t, report.Bonuses[0].Earned)
	assert.False(t, report.Bonuses[1].Earned)
	assert.False(t, report.Bonuses[2].Earned)
	assert.Equal(t, 5, report.BonusPoints)
}

func TestGrade_ZeroRowsStillGraded(t *testing.T) {
	g := NewGrader(nil)
	ex := &domain.Exercise{
		ID:    2,
		Title: "Empty",
		TestCases: []domain.TestCase{
			{Name: "Returns results", Weight: 1, Predicate: func(r domain.QueryResult) bool { return r.RowCount() > 0 }},
			{Name: "Properly sorted", Weight: 1, Predicate: pass},
		},
	}

	report := g.Grade(ex, domain.QueryOutcome{Success: true, Result: domain.QueryResult{Columns: []string{"id"}}}, domain.Telemetry{})

	assert.Equal(t, 50, report.Score)
	assert.Contains(t, report.Suggestions, "Your query isn't returning any results. Check your syntax and table names.")
}

func TestGrade_NoTests(t *testing.T) {
	report := NewGrader(nil).Grade(domain.UnknownExercise(99), domain.QueryOutcome{Success: true}, domain.Telemetry{})
	assert.Equal(t, 0, report.Score)
	assert.False(t, report.Passed)
}
