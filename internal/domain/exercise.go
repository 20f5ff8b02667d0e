package domain

import (
	"sort"
	"time"
)

// DefaultInitialCode is shown in the editor when an exercise declares no starter query.
const DefaultInitialCode = "-- Write your SQL query here\n\n"

// Exercise represents a single SQL task in the learning path
type Exercise struct {
	ID                  int
	Title               string
	Category            string
	Difficulty          Difficulty
	Description         string
	Theory              string
	LearningObjectives  []string
	InitialCode         string
	Solution            string
	Points              int
	Prerequisites       []int
	TestCases           []TestCase
	Hints               []Hint
	Bonuses             []BonusObjective
	AchievementTriggers []string
	// MinAwardPercent floors the points awarded after hint penalties.
	MinAwardPercent int
}

// Difficulty represents exercise difficulty level
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// IsValid reports whether d is a known difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// Predicate decides whether a query result satisfies a test case.
type Predicate func(QueryResult) bool

// TestCase is a weighted check applied to a query result
type TestCase struct {
	Name           string
	Weight         float64
	Predicate      Predicate
	FeedbackOnFail string
}

// Hint is a progressively revealed clue. Revealing it costs Penalty points.
type Hint struct {
	Level   int
	Text    string
	Penalty int
}

// Telemetry captures how the learner arrived at a submission.
type Telemetry struct {
	HintsUsed int
	TimeSpent time.Duration
	Attempts  int
}

// BonusObjective grants extra points for a passing submission.
type BonusObjective struct {
	Description string
	Points      int
	Check       func(Telemetry) bool
}

// UnknownExercise returns the safe placeholder used when an id is not in the catalog.
// It has no tests and awards no points.
func UnknownExercise(id int) *Exercise {
	return &Exercise{
		ID:          id,
		Title:       "Unknown exercise",
		Difficulty:  DifficultyBeginner,
		Description: "This exercise does not exist.",
		InitialCode: DefaultInitialCode,
	}
}

// PristineCode returns the starter query for the exercise
func (e *Exercise) PristineCode() string {
	if e.InitialCode == "" {
		return DefaultInitialCode
	}
	return e.InitialCode
}

// HasPrerequisites reports whether the exercise depends on others
func (e *Exercise) HasPrerequisites() bool {
	return len(e.Prerequisites) > 0
}

// TotalWeight sums the positive test case weights.
func (e *Exercise) TotalWeight() float64 {
	var total float64
	for _, tc := range e.TestCases {
		if tc.Weight > 0 {
			total += tc.Weight
		}
	}
	return total
}

// SortedHints returns the hints ordered by level.
func (e *Exercise) SortedHints() []Hint {
	hints := make([]Hint, len(e.Hints))
	copy(hints, e.Hints)
	sort.SliceStable(hints, func(i, j int) bool {
		return hints[i].Level < hints[j].Level
	})
	return hints
}

// HintPenalty returns the cost of the first revealed hints.
func (e *Exercise) HintPenalty(revealed int) int {
	penalty := 0
	for i, h := range e.SortedHints() {
		if i >= revealed {
			break
		}
		penalty += h.Penalty
	}
	return penalty
}

// AwardPoints returns the points earned for completing the exercise after
// revealing the given number of hints.
func (e *Exercise) AwardPoints(hintsRevealed int) int {
	points := e.Points - e.HintPenalty(hintsRevealed)
	if floor := e.Points * e.MinAwardPercent / 100; points < floor {
		points = floor
	}
	if points < 0 {
		points = 0
	}
	return points
}
