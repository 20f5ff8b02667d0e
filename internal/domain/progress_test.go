package domain

import (
	"testing"
	"time"
)

func TestLevelForPoints(t *testing.T) {
	tests := []struct {
		points int
		want   int
	}{
		{-10, 1},
		{0, 1},
		{49, 1},
		{50, 2},
		{99, 2},
		{100, 3},
		{199, 3},
		{200, 4},
		{350, 5},
		{499, 5},
		{500, 6},
		{649, 6},
		{650, 7},
		{800, 8},
	}

	for _, tt := range tests {
		if got := LevelForPoints(tt.points); got != tt.want {
			t.Errorf("LevelForPoints(%d) = %d, want %d", tt.points, got, tt.want)
		}
	}
}

func TestLevelForPoints_Monotonic(t *testing.T) {
	prev := LevelForPoints(0)
	for p := 1; p <= 2000; p++ {
		got := LevelForPoints(p)
		if got < prev {
			t.Fatalf("LevelForPoints(%d) = %d, below previous %d", p, got, prev)
		}
		prev = got
	}
}

func TestPointsForNextLevel(t *testing.T) {
	for level := 1; level <= 9; level++ {
		next := PointsForNextLevel(level)
		if LevelForPoints(next) != level+1 {
			t.Errorf("LevelForPoints(PointsForNextLevel(%d)=%d) = %d, want %d",
				level, next, LevelForPoints(next), level+1)
		}
		if LevelForPoints(next-1) != level {
			t.Errorf("LevelForPoints(%d) = %d, want %d", next-1, LevelForPoints(next-1), level)
		}
	}
}

func TestProgressState_Clone(t *testing.T) {
	p := NewProgressState()
	p.CompletedExerciseIDs = append(p.CompletedExerciseIDs, 1)
	p.AttemptCounts[1] = 2
	p.UnlockedAchievements = append(p.UnlockedAchievements, AchievementRecord{ID: "first_query", UnlockedAt: time.Now()})

	c := p.Clone()
	c.CompletedExerciseIDs[0] = 9
	c.AttemptCounts[1] = 7
	c.UnlockedAchievements[0].ID = "changed"

	if p.CompletedExerciseIDs[0] != 1 {
		t.Error("Clone() shares CompletedExerciseIDs")
	}
	if p.AttemptCounts[1] != 2 {
		t.Error("Clone() shares AttemptCounts")
	}
	if !p.HasAchievement("first_query") {
		t.Error("Clone() shares UnlockedAchievements")
	}
}

func TestProgressState_Queries(t *testing.T) {
	p := NewProgressState()
	p.CompletedExerciseIDs = []int{3, 1}
	p.TotalPoints = 120

	if !p.IsCompleted(3) || p.IsCompleted(2) {
		t.Error("IsCompleted() mismatch")
	}
	if got := p.SortedCompleted(); got[0] != 1 || got[1] != 3 {
		t.Errorf("SortedCompleted() = %v", got)
	}
	if !p.CompletedSet().Has(1) {
		t.Error("CompletedSet() missing 1")
	}
	if p.Level() != 3 {
		t.Errorf("Level() = %d, want 3", p.Level())
	}
}

func TestStatistics_AverageExecution(t *testing.T) {
	if (Statistics{}).AverageExecution() != 0 {
		t.Error("AverageExecution() of empty stats should be 0")
	}
	s := Statistics{TotalQueries: 4, TotalExecutionMs: 100}
	if s.AverageExecution() != 25*time.Millisecond {
		t.Errorf("AverageExecution() = %v", s.AverageExecution())
	}
}
