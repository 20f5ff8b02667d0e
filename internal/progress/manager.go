// Package progress owns the learner's durable progress state.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/storage"
)

// Detector finds achievements newly earned by a state
type Detector interface {
	Detect(state domain.ProgressState) []string
}

// Options configures a Manager
type Options struct {
	Logger *slog.Logger

	// Now stamps achievement records (default: time.Now)
	Now func() time.Time

	// OnPersistFailure is called for every failed key write
	OnPersistFailure func(key string, err error)
}

// Graded describes one graded real-mode submission
type Graded struct {
	ExerciseID    int
	Score         int
	EngineError   bool
	ExecutionTime time.Duration
	TimeSpent     time.Duration
}

// Manager is the only writer of ProgressState. In-memory state is
// authoritative; keys whose write failed stay dirty and are retried on the
// next mutation or Flush.
type Manager struct {
	mu       sync.Mutex
	store    storage.Store
	detector Detector
	logger   *slog.Logger
	now      func() time.Time
	onFail   func(key string, err error)

	state domain.ProgressState
	dirty map[string]bool
}

// NewManager creates a manager with empty progress. Call Load to restore
// persisted state.
func NewManager(store storage.Store, detector Detector, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:    store,
		detector: detector,
		logger:   opts.Logger,
		now:      opts.Now,
		onFail:   opts.OnPersistFailure,
		state:    domain.NewProgressState(),
		dirty:    make(map[string]bool),
	}
}

// Load restores progress from the store. Missing keys keep their defaults;
// corrupt values are logged and replaced with defaults.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := domain.NewProgressState()
	var errs []error
	for _, key := range AllKeys {
		data, err := m.store.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", key, err))
			continue
		}
		if err := decodeField(&state, key, data); err != nil {
			m.logger.Warn("discarding corrupt progress value", "key", key, "error", err)
		}
	}
	if state.CompletedExerciseIDs == nil {
		state.CompletedExerciseIDs = []int{}
	}
	if state.UnlockedAchievements == nil {
		state.UnlockedAchievements = []domain.AchievementRecord{}
	}
	if state.AttemptCounts == nil {
		state.AttemptCounts = make(map[int]int)
	}
	m.state = state

	m.logger.Debug("progress loaded",
		"completed", len(state.CompletedExerciseIDs),
		"points", state.TotalPoints,
		"achievements", len(state.UnlockedAchievements))
	return errors.Join(errs...)
}

// Snapshot returns a deep copy of the current state
func (m *Manager) Snapshot() domain.ProgressState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Level returns the learner level derived from total points
func (m *Manager) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Level()
}

// ApplyCompletion records the first pass of an exercise: the id is added,
// points and bonus are credited, the streak grows and the exercise's
// achievement triggers are granted. Applying the same exercise twice is a
// no-op that returns false.
func (m *Manager) ApplyCompletion(ctx context.Context, c domain.Completion) (bool, []domain.AchievementRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsCompleted(c.ExerciseID) {
		return false, nil
	}

	m.state.CompletedExerciseIDs = append(m.state.CompletedExerciseIDs, c.ExerciseID)
	m.state.TotalPoints += c.Total()
	m.state.Streak++

	unlocked := m.grant(c.AchievementIDs)
	unlocked = append(unlocked, m.detect()...)

	m.logger.Info("exercise completed",
		"exercise_id", c.ExerciseID,
		"points", c.Points,
		"bonus_points", c.BonusPoints,
		"total_points", m.state.TotalPoints)

	m.persist(ctx, KeyCompleted, KeyTotalPoints, KeyStreak, KeyAchievements)
	return true, unlocked
}

// RecordGraded folds a real-mode grading into the statistics. A submission
// that does not score 100 breaks the streak. A query the engine could not
// run only breaks the streak.
func (m *Manager) RecordGraded(ctx context.Context, g Graded) []domain.AchievementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g.EngineError {
		if m.state.Streak != 0 {
			m.state.Streak = 0
			m.persist(ctx, KeyStreak)
		}
		return nil
	}

	stats := &m.state.Statistics
	stats.TotalQueries++
	stats.TotalExecutionMs += g.ExecutionTime.Milliseconds()
	stats.LastActiveAt = m.now()
	if g.Score > 0 {
		stats.SuccessfulQueries++
	}

	if g.Score == 100 {
		stats.PerfectScores++
		if ms := g.TimeSpent.Milliseconds(); ms > 0 && (stats.FastestMs == 0 || ms < stats.FastestMs) {
			stats.FastestMs = ms
		}
	} else {
		m.state.Streak = 0
	}

	unlocked := m.detect()
	m.persist(ctx, KeyStatistics, KeyStreak, KeyAchievements)
	return unlocked
}

// RecordAttempt counts a selection of exercise id
func (m *Manager) RecordAttempt(ctx context.Context, id int) []domain.AchievementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.AttemptCounts[id]++
	unlocked := m.detect()
	m.persist(ctx, KeyAttempts, KeyAchievements)
	return unlocked
}

// RecordHint counts a revealed hint
func (m *Manager) RecordHint(ctx context.Context) []domain.AchievementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Statistics.HintsUsed++
	unlocked := m.detect()
	m.persist(ctx, KeyStatistics, KeyAchievements)
	return unlocked
}

// ResetAll clears every field and erases everything in the store. Clear is
// tried first; if it fails each key is deleted individually and the keys
// that could not be erased are reported in a *ResetError.
func (m *Manager) ResetAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = domain.NewProgressState()
	m.dirty = make(map[string]bool)

	clearErr := m.store.Clear(ctx)
	if clearErr == nil {
		m.logger.Info("progress reset")
		return nil
	}
	m.logger.Warn("store clear failed, deleting keys individually", "error", clearErr)

	keys, err := m.store.Keys(ctx)
	if err != nil {
		m.logger.Warn("listing keys failed, deleting known keys", "error", err)
		keys = AllKeys
	}

	var failed []string
	errs := []error{clearErr}
	for _, key := range keys {
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			failed = append(failed, key)
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	if len(failed) == 0 {
		m.logger.Info("progress reset")
		return nil
	}
	return &ResetError{FailedKeys: failed, Err: errors.Join(errs...)}
}

// Flush retries every dirty key and returns the remaining failures
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flush(ctx)
}

// Dirty returns the keys whose last write failed
func (m *Manager) Dirty() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, key := range AllKeys {
		if m.dirty[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

func (m *Manager) grant(ids []string) []domain.AchievementRecord {
	var out []domain.AchievementRecord
	for _, id := range ids {
		if id == "" || m.state.HasAchievement(id) {
			continue
		}
		rec := domain.AchievementRecord{ID: id, UnlockedAt: m.now()}
		m.state.UnlockedAchievements = append(m.state.UnlockedAchievements, rec)
		out = append(out, rec)
	}
	return out
}

func (m *Manager) detect() []domain.AchievementRecord {
	if m.detector == nil {
		return nil
	}
	return m.grant(m.detector.Detect(m.state.Clone()))
}

func (m *Manager) persist(ctx context.Context, keys ...string) {
	for _, key := range keys {
		m.dirty[key] = true
	}
	m.flush(ctx)
}

func (m *Manager) flush(ctx context.Context) error {
	var errs []error
	for _, key := range AllKeys {
		if !m.dirty[key] {
			continue
		}
		data, err := encodeField(&m.state, key)
		if err == nil {
			err = m.store.Set(ctx, key, data)
		}
		if err != nil {
			m.logger.Warn("failed to persist progress", "key", key, "error", err)
			if m.onFail != nil {
				m.onFail(key, err)
			}
			errs = append(errs, fmt.Errorf("persist %s: %w", key, err))
			continue
		}
		delete(m.dirty, key)
	}
	return errors.Join(errs...)
}
