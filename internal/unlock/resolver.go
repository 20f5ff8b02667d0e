// Package unlock decides which exercises a learner may attempt.
package unlock

import "github.com/felixgeelhaar/sqlvalley/internal/domain"

// Catalog is the read-only exercise source the resolver needs
type Catalog interface {
	Exercises() []*domain.Exercise
	Lookup(id int) (*domain.Exercise, bool)
}

// Resolver computes unlock state from a completed set. It holds no state of
// its own.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over catalog
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// IsUnlocked reports whether every prerequisite of id is completed. Exercises
// without prerequisites are always unlocked; unknown ids never are.
func (r *Resolver) IsUnlocked(id int, completed domain.ExerciseSet) bool {
	ex, ok := r.catalog.Lookup(id)
	if !ok {
		return false
	}
	for _, pre := range ex.Prerequisites {
		if !completed.Has(pre) {
			return false
		}
	}
	return true
}

// Unlocked returns the unlocked exercises in ascending id order
func (r *Resolver) Unlocked(completed domain.ExerciseSet) []*domain.Exercise {
	var out []*domain.Exercise
	for _, ex := range r.catalog.Exercises() {
		if r.IsUnlocked(ex.ID, completed) {
			out = append(out, ex)
		}
	}
	return out
}

// NextRecommended returns the first unlocked, incomplete exercise with an id
// greater than currentID, wrapping around to the lowest such exercise. It
// returns false when nothing is left to do.
func (r *Resolver) NextRecommended(currentID int, completed domain.ExerciseSet) (*domain.Exercise, bool) {
	var first *domain.Exercise
	for _, ex := range r.Unlocked(completed) {
		if completed.Has(ex.ID) {
			continue
		}
		if ex.ID > currentID {
			return ex, true
		}
		if first == nil {
			first = ex
		}
	}
	return first, first != nil
}

// HighestUnlocked returns the unlocked exercise with the largest id.
func (r *Resolver) HighestUnlocked(completed domain.ExerciseSet) (*domain.Exercise, bool) {
	unlocked := r.Unlocked(completed)
	if len(unlocked) == 0 {
		return nil, false
	}
	return unlocked[len(unlocked)-1], true
}

// ProgressPercent returns the share of catalog exercises completed, rounded
// down. Completed ids unknown to the catalog are not counted.
func (r *Resolver) ProgressPercent(completed domain.ExerciseSet) int {
	all := r.catalog.Exercises()
	if len(all) == 0 {
		return 0
	}
	done := 0
	for _, ex := range all {
		if completed.Has(ex.ID) {
			done++
		}
	}
	return done * 100 / len(all)
}
