package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sqlvalley/internal/achievement"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/storage"
)

var errBroken = errors.New("store broken")

// faultyStore wraps a memory store and fails selected operations.
type faultyStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	failSet    map[string]bool
	failDelete map[string]bool
	failClear  bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: storage.NewMemoryStore(),
		failSet:     map[string]bool{},
		failDelete:  map[string]bool{},
	}
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet[key]
	f.mu.Unlock()
	if fail {
		return errBroken
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.failDelete[key] {
		return errBroken
	}
	return f.MemoryStore.Delete(ctx, key)
}

func (f *faultyStore) Clear(ctx context.Context) error {
	if f.failClear {
		return errBroken
	}
	return f.MemoryStore.Clear(ctx)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, store storage.Store) *Manager {
	t.Helper()
	det := achievement.NewDetector(achievement.BuiltIn([]int{1, 2, 3, 4, 5, 6, 7}, achievement.DefaultThresholds()), nil, nil)
	return NewManager(store, det, Options{Now: func() time.Time { return fixedNow }})
}

func achievementIDs(recs []domain.AchievementRecord) []string {
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestApplyCompletion(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())

	applied, unlocked := m.ApplyCompletion(ctx, domain.Completion{
		ExerciseID:     1,
		Points:         10,
		BonusPoints:    5,
		AchievementIDs: []string{"first_select"},
	})

	require.True(t, applied)
	assert.Equal(t, []string{"first_select", achievement.FirstQuery}, achievementIDs(unlocked))
	assert.Equal(t, fixedNow, unlocked[0].UnlockedAt)

	s := m.Snapshot()
	assert.Equal(t, []int{1}, s.CompletedExerciseIDs)
	assert.Equal(t, 15, s.TotalPoints)
	assert.Equal(t, 1, s.Streak)
}

func TestApplyCompletion_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())
	c := domain.Completion{ExerciseID: 2, Points: 20, AchievementIDs: []string{"filter_master"}}

	applied, _ := m.ApplyCompletion(ctx, c)
	require.True(t, applied)
	before := m.Snapshot()

	applied, unlocked := m.ApplyCompletion(ctx, c)
	assert.False(t, applied)
	assert.Empty(t, unlocked)
	assert.Equal(t, before, m.Snapshot())
}

func TestRecordGraded_PartialResetsStreak(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())
	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10})
	require.Equal(t, 1, m.Snapshot().Streak)

	m.RecordGraded(ctx, Graded{ExerciseID: 2, Score: 70, ExecutionTime: 3 * time.Millisecond})

	s := m.Snapshot()
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, 10, s.TotalPoints)
	assert.Equal(t, 1, s.Statistics.TotalQueries)
	assert.Equal(t, 1, s.Statistics.SuccessfulQueries)
	assert.Equal(t, 0, s.Statistics.PerfectScores)
	assert.Equal(t, fixedNow, s.Statistics.LastActiveAt)
}

func TestRecordGraded_EngineError(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())
	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10})

	before := m.Snapshot()

	unlocked := m.RecordGraded(ctx, Graded{ExerciseID: 2, EngineError: true, ExecutionTime: time.Millisecond})

	s := m.Snapshot()
	assert.Empty(t, unlocked)
	assert.Equal(t, 0, s.Streak)
	assert.Equal(t, before.Statistics, s.Statistics, "engine failures leave statistics alone")
	assert.Equal(t, before.TotalPoints, s.TotalPoints)
	assert.Equal(t, []int{1}, s.CompletedExerciseIDs)
}

func TestRecordGraded_PerfectUnlocksAchievements(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())

	unlocked := m.RecordGraded(ctx, Graded{ExerciseID: 1, Score: 100, TimeSpent: 30 * time.Second})

	assert.ElementsMatch(t, []string{achievement.PerfectScore, achievement.SpeedDemon}, achievementIDs(unlocked))
	assert.Equal(t, int64(30000), m.Snapshot().Statistics.FastestMs)

	// Fired once only.
	assert.Empty(t, m.RecordGraded(ctx, Graded{ExerciseID: 1, Score: 100, TimeSpent: 10 * time.Second}))
	assert.Equal(t, int64(10000), m.Snapshot().Statistics.FastestMs)
}

func TestRecordAttemptAndHint(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())

	m.RecordAttempt(ctx, 3)
	m.RecordAttempt(ctx, 3)
	m.RecordHint(ctx)

	s := m.Snapshot()
	assert.Equal(t, 2, s.AttemptCounts[3])
	assert.Equal(t, 1, s.Statistics.HintsUsed)
}

func TestLevel(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, storage.NewMemoryStore())
	assert.Equal(t, 1, m.Level())

	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 60})
	assert.Equal(t, 2, m.Level())
}

func TestLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	m := newManager(t, store)
	m.RecordAttempt(ctx, 1)
	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10, AchievementIDs: []string{"first_select"}})
	m.RecordGraded(ctx, Graded{ExerciseID: 1, Score: 100, TimeSpent: time.Minute})
	want := m.Snapshot()

	restored := newManager(t, store)
	require.NoError(t, restored.Load(ctx))
	got := restored.Snapshot()

	assert.Equal(t, want.CompletedExerciseIDs, got.CompletedExerciseIDs)
	assert.Equal(t, want.TotalPoints, got.TotalPoints)
	assert.Equal(t, want.Streak, got.Streak)
	assert.Equal(t, want.AttemptCounts, got.AttemptCounts)
	assert.Equal(t, achievementIDs(want.UnlockedAchievements), achievementIDs(got.UnlockedAchievements))
	assert.Equal(t, want.Statistics.PerfectScores, got.Statistics.PerfectScores)
}

func TestLoad_CorruptValueUsesDefault(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyTotalPoints, []byte("not json")))
	require.NoError(t, store.Set(ctx, KeyCompleted, []byte("[1,2]")))

	m := newManager(t, store)
	require.NoError(t, m.Load(ctx))

	s := m.Snapshot()
	assert.Equal(t, 0, s.TotalPoints)
	assert.Equal(t, []int{1, 2}, s.CompletedExerciseIDs)
	assert.NotNil(t, s.AttemptCounts)
}

func TestPersistFailure_RetriedOnNextMutation(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.failSet[KeyTotalPoints] = true

	var failures []string
	det := achievement.NewDetector(nil, nil, nil)
	m := NewManager(store, det, Options{OnPersistFailure: func(key string, _ error) {
		failures = append(failures, key)
	}})

	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10})

	assert.Equal(t, 10, m.Snapshot().TotalPoints, "memory stays authoritative")
	assert.Equal(t, []string{KeyTotalPoints}, m.Dirty())
	assert.Equal(t, []string{KeyTotalPoints}, failures)
	_, err := store.Get(ctx, KeyTotalPoints)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	store.mu.Lock()
	store.failSet[KeyTotalPoints] = false
	store.mu.Unlock()

	m.RecordAttempt(ctx, 2)

	assert.Empty(t, m.Dirty())
	data, err := store.Get(ctx, KeyTotalPoints)
	require.NoError(t, err)
	var points int
	require.NoError(t, json.Unmarshal(data, &points))
	assert.Equal(t, 10, points)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.failSet[KeyAttempts] = true
	m := newManager(t, store)

	m.RecordAttempt(ctx, 1)
	require.ErrorIs(t, m.Flush(ctx), errBroken)

	store.mu.Lock()
	store.failSet[KeyAttempts] = false
	store.mu.Unlock()
	require.NoError(t, m.Flush(ctx))
	assert.Empty(t, m.Dirty())
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "drafts/1", []byte(`"SELECT 1"`)))
	m := newManager(t, store)
	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10, AchievementIDs: []string{"first_select"}})

	require.NoError(t, m.ResetAll(ctx))

	s := m.Snapshot()
	assert.Empty(t, s.CompletedExerciseIDs)
	assert.Zero(t, s.TotalPoints)
	assert.Empty(t, s.UnlockedAchievements)
	assert.Equal(t, 1, s.Level())

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestResetAll_FallsBackToPerKeyDelete(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.failClear = true
	store.failDelete[KeyStreak] = true
	m := newManager(t, store)
	m.ApplyCompletion(ctx, domain.Completion{ExerciseID: 1, Points: 10})

	err := m.ResetAll(ctx)

	var resetErr *ResetError
	require.ErrorAs(t, err, &resetErr)
	assert.Equal(t, []string{KeyStreak}, resetErr.FailedKeys)
	assert.ErrorIs(t, err, errBroken)

	keys, _ := store.Keys(ctx)
	assert.Equal(t, []string{KeyStreak}, keys)
	assert.Zero(t, m.Snapshot().TotalPoints)
}

func TestResetAll_ClearFailsButDeletesSucceed(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.failClear = true
	m := newManager(t, store)
	m.RecordAttempt(ctx, 1)

	require.NoError(t, m.ResetAll(ctx))
	keys, _ := store.Keys(ctx)
	assert.Empty(t, keys)
}
