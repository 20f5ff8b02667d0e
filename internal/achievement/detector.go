// Package achievement detects milestone achievements from learner progress.
package achievement

import (
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Definition is a milestone achievement with the predicate that grants it
type Definition struct {
	domain.Achievement
	Earned func(domain.ProgressState) bool
}

// Built-in achievement ids
const (
	FirstQuery   = "first_query"
	FiveComplete = "five_complete"
	AllComplete  = "all_complete"
	PerfectScore = "perfect_score"
	NoHints      = "no_hints"
	SpeedDemon   = "speed_demon"
	LevelFive    = "level_5"
	Points100    = "points_100"
	Points500    = "points_500"
	StreakThree  = "streak_3"
	Comeback     = "comeback"
)

// Thresholds tunes the built-in definitions
type Thresholds struct {
	NoHintsCompletions int
	SpeedLimit         time.Duration
	StreakLength       int
	ComebackAttempts   int
}

// DefaultThresholds returns the standard tuning
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoHintsCompletions: 3,
		SpeedLimit:         time.Minute,
		StreakLength:       3,
		ComebackAttempts:   5,
	}
}

// BuiltIn returns the milestone definitions for a catalog holding
// exerciseIDs. Completed ids outside the catalog never count towards
// finishing it.
func BuiltIn(exerciseIDs []int, th Thresholds) []Definition {
	catalog := domain.NewExerciseSet(exerciseIDs...)
	completed := func(p domain.ProgressState) int { return len(p.CompletedExerciseIDs) }
	completedInCatalog := func(p domain.ProgressState) int {
		n := 0
		for id := range p.CompletedSet() {
			if catalog.Has(id) {
				n++
			}
		}
		return n
	}

	return []Definition{
		{
			Achievement: domain.Achievement{ID: FirstQuery, Name: "First Steps", Description: "Complete your first exercise", Icon: "🌱"},
			Earned:      func(p domain.ProgressState) bool { return completed(p) >= 1 },
		},
		{
			Achievement: domain.Achievement{ID: FiveComplete, Name: "Getting Serious", Description: "Complete five exercises", Icon: "🔥"},
			Earned:      func(p domain.ProgressState) bool { return completed(p) >= 5 },
		},
		{
			Achievement: domain.Achievement{ID: AllComplete, Name: "Valley Conqueror", Description: "Complete every exercise", Icon: "🏔"},
			Earned:      func(p domain.ProgressState) bool { return len(catalog) > 0 && completedInCatalog(p) == len(catalog) },
		},
		{
			Achievement: domain.Achievement{ID: PerfectScore, Name: "Perfectionist", Description: "Score 100 on a submission", Icon: "💯"},
			Earned:      func(p domain.ProgressState) bool { return p.Statistics.PerfectScores >= 1 },
		},
		{
			Achievement: domain.Achievement{ID: NoHints, Name: "Self Taught", Description: "Complete exercises without revealing a hint", Icon: "🧠"},
			Earned: func(p domain.ProgressState) bool {
				return completed(p) >= th.NoHintsCompletions && p.Statistics.HintsUsed == 0
			},
		},
		{
			Achievement: domain.Achievement{ID: SpeedDemon, Name: "Speed Demon", Description: "Complete an exercise in under a minute", Icon: "⚡"},
			Earned: func(p domain.ProgressState) bool {
				return p.Statistics.FastestMs > 0 && time.Duration(p.Statistics.FastestMs)*time.Millisecond < th.SpeedLimit
			},
		},
		{
			Achievement: domain.Achievement{ID: LevelFive, Name: "Rising Star", Description: "Reach level 5", Icon: "⭐"},
			Earned:      func(p domain.ProgressState) bool { return p.Level() >= 5 },
		},
		{
			Achievement: domain.Achievement{ID: Points100, Name: "Centurion", Description: "Earn 100 points", Icon: "🥉"},
			Earned:      func(p domain.ProgressState) bool { return p.TotalPoints >= 100 },
		},
		{
			Achievement: domain.Achievement{ID: Points500, Name: "High Roller", Description: "Earn 500 points", Icon: "🥇"},
			Earned:      func(p domain.ProgressState) bool { return p.TotalPoints >= 500 },
		},
		{
			Achievement: domain.Achievement{ID: StreakThree, Name: "On a Roll", Description: "Complete three exercises in a row without a miss", Icon: "🎳"},
			Earned:      func(p domain.ProgressState) bool { return p.Streak >= th.StreakLength },
		},
		{
			Achievement: domain.Achievement{ID: Comeback, Name: "Comeback Kid", Description: "Complete an exercise after many attempts", Icon: "💪"},
			Earned: func(p domain.ProgressState) bool {
				for _, id := range p.CompletedExerciseIDs {
					if p.AttemptCounts[id] >= th.ComebackAttempts {
						return true
					}
				}
				return false
			},
		},
	}
}

// Detector evaluates achievement predicates against progress
type Detector struct {
	definitions []Definition
	known       map[string]domain.Achievement
	logger      *slog.Logger
}

// NewDetector creates a detector. Badges are achievements granted by exercise
// completion rather than by a predicate; they are only used for lookups.
func NewDetector(definitions []Definition, badges []domain.Achievement, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	known := make(map[string]domain.Achievement, len(definitions)+len(badges))
	for _, b := range badges {
		known[b.ID] = b
	}
	for _, d := range definitions {
		known[d.ID] = d.Achievement
	}
	return &Detector{definitions: definitions, known: known, logger: logger}
}

// Detect returns the ids of definitions whose predicate holds for state but
// that state has not yet recorded, in definition order.
func (d *Detector) Detect(state domain.ProgressState) []string {
	var ids []string
	for _, def := range d.definitions {
		if state.HasAchievement(def.ID) {
			continue
		}
		if d.earned(def, state) {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

func (d *Detector) earned(def Definition, state domain.ProgressState) (ok bool) {
	if def.Earned == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("achievement predicate panicked", "achievement", def.ID, "panic", r)
			ok = false
		}
	}()
	return def.Earned(state)
}

// Describe returns the achievement metadata for id
func (d *Detector) Describe(id string) (domain.Achievement, bool) {
	a, ok := d.known[id]
	return a, ok
}

// All returns every known achievement: milestones first, then badges.
func (d *Detector) All() []domain.Achievement {
	out := make([]domain.Achievement, 0, len(d.known))
	seen := make(map[string]bool, len(d.known))
	for _, def := range d.definitions {
		out = append(out, def.Achievement)
		seen[def.ID] = true
	}
	milestones := len(out)
	for id, a := range d.known {
		if !seen[id] {
			out = append(out, a)
		}
	}
	badges := out[milestones:]
	sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
	return out
}
