package achievement

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetector() *Detector {
	badges := []domain.Achievement{{ID: "first_select", Name: "First Query"}}
	return NewDetector(BuiltIn([]int{1, 2, 3, 4, 5, 6, 7}, DefaultThresholds()), badges, nil)
}

func TestDetect_FreshLearner(t *testing.T) {
	assert.Empty(t, newDetector().Detect(domain.NewProgressState()))
}

func TestDetect_Milestones(t *testing.T) {
	d := newDetector()

	tests := []struct {
		name   string
		mutate func(*domain.ProgressState)
		want   []string
	}{
		{
			name:   "first completion",
			mutate: func(p *domain.ProgressState) { p.CompletedExerciseIDs = []int{1} },
			want:   []string{FirstQuery},
		},
		{
			name: "three without hints",
			mutate: func(p *domain.ProgressState) {
				p.CompletedExerciseIDs = []int{1, 2, 3}
				p.Statistics.HintsUsed = 0
			},
			want: []string{FirstQuery, NoHints},
		},
		{
			name: "three with hints",
			mutate: func(p *domain.ProgressState) {
				p.CompletedExerciseIDs = []int{1, 2, 3}
				p.Statistics.HintsUsed = 1
			},
			want: []string{FirstQuery},
		},
		{
			name: "perfect and fast",
			mutate: func(p *domain.ProgressState) {
				p.Statistics.PerfectScores = 1
				p.Statistics.FastestMs = (30 * time.Second).Milliseconds()
			},
			want: []string{PerfectScore, SpeedDemon},
		},
		{
			name:   "points and level",
			mutate: func(p *domain.ProgressState) { p.TotalPoints = 360 },
			want:   []string{LevelFive, Points100},
		},
		{
			name:   "streak",
			mutate: func(p *domain.ProgressState) { p.Streak = 3 },
			want:   []string{StreakThree},
		},
		{
			name: "comeback",
			mutate: func(p *domain.ProgressState) {
				p.CompletedExerciseIDs = []int{2}
				p.AttemptCounts[2] = 5
			},
			want: []string{FirstQuery, Comeback},
		},
		{
			name: "everything",
			mutate: func(p *domain.ProgressState) {
				p.CompletedExerciseIDs = []int{1, 2, 3, 4, 5, 6, 7}
				p.Statistics.HintsUsed = 2
			},
			want: []string{FirstQuery, FiveComplete, AllComplete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := domain.NewProgressState()
			tt.mutate(&state)
			assert.Equal(t, tt.want, d.Detect(state))
		})
	}
}

func TestDetect_AllCompleteIgnoresIDsOutsideCatalog(t *testing.T) {
	d := NewDetector(BuiltIn([]int{1, 2, 3}, DefaultThresholds()), nil, nil)

	state := domain.NewProgressState()
	state.CompletedExerciseIDs = []int{1, 2, 7, 8, 9}
	state.Statistics.HintsUsed = 1
	assert.NotContains(t, d.Detect(state), AllComplete)

	state.CompletedExerciseIDs = []int{1, 2, 3, 7}
	assert.Contains(t, d.Detect(state), AllComplete)
}

func TestDetect_SkipsRecorded(t *testing.T) {
	d := newDetector()
	state := domain.NewProgressState()
	state.CompletedExerciseIDs = []int{1}
	state.UnlockedAchievements = []domain.AchievementRecord{{ID: FirstQuery}}

	assert.Empty(t, d.Detect(state))
}

func TestDetect_PanickingPredicate(t *testing.T) {
	d := NewDetector([]Definition{
		{Achievement: domain.Achievement{ID: "boom"}, Earned: func(domain.ProgressState) bool { panic("bad") }},
		{Achievement: domain.Achievement{ID: "ok"}, Earned: func(domain.ProgressState) bool { return true }},
		{Achievement: domain.Achievement{ID: "nil"}},
	}, nil, nil)

	assert.Equal(t, []string{"ok"}, d.Detect(domain.NewProgressState()))
}

func TestDescribeAndAll(t *testing.T) {
	d := newDetector()

	a, ok := d.Describe("first_select")
	require.True(t, ok)
	assert.Equal(t, "First Query", a.Name)

	a, ok = d.Describe(StreakThree)
	require.True(t, ok)
	assert.Equal(t, "On a Roll", a.Name)

	_, ok = d.Describe("nope")
	assert.False(t, ok)

	all := d.All()
	require.Len(t, all, 12)
	assert.Equal(t, FirstQuery, all[0].ID)
	assert.Equal(t, "first_select", all[11].ID)
}
