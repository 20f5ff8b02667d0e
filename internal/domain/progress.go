package domain

import (
	"sort"
	"time"
)

// ExerciseSet is a set of exercise ids
type ExerciseSet map[int]struct{}

// NewExerciseSet creates a set from ids
func NewExerciseSet(ids ...int) ExerciseSet {
	s := make(ExerciseSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s ExerciseSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Achievement describes an unlockable badge
type Achievement struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon,omitempty" yaml:"icon"`
}

// AchievementRecord marks when an achievement was unlocked
type AchievementRecord struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Statistics aggregates real-mode activity. Queries the engine rejected
// are not counted.
type Statistics struct {
	TotalQueries      int       `json:"total_queries"`
	SuccessfulQueries int       `json:"successful_queries"` // scored above 0
	TotalExecutionMs  int64     `json:"total_execution_ms"`
	PerfectScores     int       `json:"perfect_scores"`
	HintsUsed         int       `json:"hints_used"`
	FastestMs         int64     `json:"fastest_completion_ms,omitempty"`
	LastActiveAt      time.Time `json:"last_active_at,omitempty"`
}

// AverageExecution returns the mean query execution time
func (s Statistics) AverageExecution() time.Duration {
	if s.TotalQueries == 0 {
		return 0
	}
	return time.Duration(s.TotalExecutionMs/int64(s.TotalQueries)) * time.Millisecond
}

// ProgressState is the learner's durable progress
type ProgressState struct {
	CompletedExerciseIDs []int               `json:"completed_exercises"`
	TotalPoints          int                 `json:"total_points"`
	UnlockedAchievements []AchievementRecord `json:"unlocked_achievements"`
	AttemptCounts        map[int]int         `json:"exercise_attempts"`
	Streak               int                 `json:"streak"`
	Statistics           Statistics          `json:"statistics"`
}

// NewProgressState returns the empty progress of a new learner
func NewProgressState() ProgressState {
	return ProgressState{
		CompletedExerciseIDs: []int{},
		UnlockedAchievements: []AchievementRecord{},
		AttemptCounts:        make(map[int]int),
	}
}

// IsCompleted reports whether the exercise was completed
func (p ProgressState) IsCompleted(id int) bool {
	for _, c := range p.CompletedExerciseIDs {
		if c == id {
			return true
		}
	}
	return false
}

// CompletedSet returns the completed ids as a set
func (p ProgressState) CompletedSet() ExerciseSet {
	return NewExerciseSet(p.CompletedExerciseIDs...)
}

// HasAchievement reports whether the achievement is unlocked
func (p ProgressState) HasAchievement(id string) bool {
	for _, a := range p.UnlockedAchievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Level derives the learner level from total points
func (p ProgressState) Level() int {
	return LevelForPoints(p.TotalPoints)
}

// Clone returns a deep copy
func (p ProgressState) Clone() ProgressState {
	c := p
	c.CompletedExerciseIDs = append([]int{}, p.CompletedExerciseIDs...)
	c.UnlockedAchievements = append([]AchievementRecord{}, p.UnlockedAchievements...)
	c.AttemptCounts = make(map[int]int, len(p.AttemptCounts))
	for k, v := range p.AttemptCounts {
		c.AttemptCounts[k] = v
	}
	return c
}

// SortedCompleted returns completed ids in ascending order
func (p ProgressState) SortedCompleted() []int {
	ids := append([]int{}, p.CompletedExerciseIDs...)
	sort.Ints(ids)
	return ids
}

var levelThresholds = []int{0, 50, 100, 200, 350, 500}

const pointsPerLevelBeyondTable = 150

// LevelForPoints maps a point total to a level starting at 1. Past the last
// threshold each additional 150 points adds a level.
func LevelForPoints(points int) int {
	if points < 0 {
		return 1
	}
	level := 0
	for _, threshold := range levelThresholds {
		if points >= threshold {
			level++
		}
	}
	last := levelThresholds[len(levelThresholds)-1]
	if points >= last {
		level += (points - last) / pointsPerLevelBeyondTable
	}
	return level
}

// PointsForNextLevel returns the threshold of the level after the given one.
func PointsForNextLevel(level int) int {
	if level < 1 {
		return 0
	}
	if level < len(levelThresholds) {
		return levelThresholds[level]
	}
	last := levelThresholds[len(levelThresholds)-1]
	return last + (level-len(levelThresholds)+1)*pointsPerLevelBeyondTable
}
