package domain

// TestResult is the outcome of one test case
type TestResult struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Passed   bool    `json:"passed"`
	Feedback string  `json:"feedback,omitempty"`
}

// BonusResult is the outcome of one bonus objective
type BonusResult struct {
	Description string `json:"description"`
	Points      int    `json:"points"`
	Earned      bool   `json:"earned"`
}

// GradeReport is the graded result of a submission
type GradeReport struct {
	ExerciseID  int           `json:"exercise_id"`
	Score       int           `json:"score"`
	Passed      bool          `json:"passed"`
	Results     []TestResult  `json:"results"`
	Summary     string        `json:"summary"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Bonuses     []BonusResult `json:"bonuses,omitempty"`
	BonusPoints int           `json:"bonus_points"`
	EngineError string        `json:"engine_error,omitempty"`

	// Set by the session after the report is applied.
	Practice           bool                `json:"practice"`
	Completed          bool                `json:"completed"`
	PointsAwarded      int                 `json:"points_awarded"`
	AchievementsEarned []AchievementRecord `json:"achievements_earned,omitempty"`
}

// Completion describes the first successful pass of an exercise.
type Completion struct {
	ExerciseID     int
	Points         int
	BonusPoints    int
	AchievementIDs []string
}

// Total returns the points added to the learner's total.
func (c Completion) Total() int {
	return c.Points + c.BonusPoints
}
