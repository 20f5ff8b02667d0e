package progress

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Storage keys. Each progress field is persisted on its own so one failed
// write never loses the others.
const (
	KeyCompleted    = "progress/completed_exercises"
	KeyTotalPoints  = "progress/total_points"
	KeyAchievements = "progress/achievements"
	KeyAttempts     = "progress/exercise_attempts"
	KeyStreak       = "progress/streak"
	KeyStatistics   = "progress/statistics"
)

// AllKeys lists every progress key in persistence order
var AllKeys = []string{KeyCompleted, KeyTotalPoints, KeyAchievements, KeyAttempts, KeyStreak, KeyStatistics}

func encodeField(s *domain.ProgressState, key string) ([]byte, error) {
	var v any
	switch key {
	case KeyCompleted:
		v = s.CompletedExerciseIDs
	case KeyTotalPoints:
		v = s.TotalPoints
	case KeyAchievements:
		v = s.UnlockedAchievements
	case KeyAttempts:
		v = s.AttemptCounts
	case KeyStreak:
		v = s.Streak
	case KeyStatistics:
		v = s.Statistics
	default:
		return nil, fmt.Errorf("unknown progress key %q", key)
	}
	return json.Marshal(v)
}

func decodeField(s *domain.ProgressState, key string, data []byte) error {
	var target any
	switch key {
	case KeyCompleted:
		target = &s.CompletedExerciseIDs
	case KeyTotalPoints:
		target = &s.TotalPoints
	case KeyAchievements:
		target = &s.UnlockedAchievements
	case KeyAttempts:
		target = &s.AttemptCounts
	case KeyStreak:
		target = &s.Streak
	case KeyStatistics:
		target = &s.Statistics
	default:
		return fmt.Errorf("unknown progress key %q", key)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
