package catalog

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Validate checks the structural rules every catalog must satisfy: unique ids,
// known prerequisites, an acyclic prerequisite graph with at least one root,
// and gradeable tests.
func Validate(exercises []*domain.Exercise) error {
	var errs []error
	if len(exercises) == 0 {
		return fmt.Errorf("%w: no exercises", domain.ErrInvalidCatalog)
	}

	byID := make(map[int]*domain.Exercise, len(exercises))
	for _, ex := range exercises {
		if _, dup := byID[ex.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate exercise id %d", ex.ID))
			continue
		}
		byID[ex.ID] = ex
	}

	hasRoot := false
	for _, ex := range exercises {
		if ex.Title == "" {
			errs = append(errs, fmt.Errorf("exercise %d: missing title", ex.ID))
		}
		if ex.Points <= 0 {
			errs = append(errs, fmt.Errorf("exercise %d: points must be positive", ex.ID))
		}
		if ex.MinAwardPercent < 0 || ex.MinAwardPercent > 100 {
			errs = append(errs, fmt.Errorf("exercise %d: min award percent out of range", ex.ID))
		}
		if len(ex.TestCases) == 0 {
			errs = append(errs, fmt.Errorf("exercise %d: no test cases", ex.ID))
		}
		for _, tc := range ex.TestCases {
			if !(tc.Weight > 0) {
				errs = append(errs, fmt.Errorf("exercise %d: test %q weight must be positive", ex.ID, tc.Name))
			}
			if tc.Predicate == nil {
				errs = append(errs, fmt.Errorf("exercise %d: test %q has no predicate", ex.ID, tc.Name))
			}
		}
		if !ex.HasPrerequisites() {
			hasRoot = true
		}
		for _, pre := range ex.Prerequisites {
			if pre == ex.ID {
				errs = append(errs, fmt.Errorf("exercise %d: depends on itself", ex.ID))
			} else if _, ok := byID[pre]; !ok {
				errs = append(errs, fmt.Errorf("exercise %d: unknown prerequisite %d", ex.ID, pre))
			}
		}
	}
	if !hasRoot {
		errs = append(errs, errors.New("no exercise without prerequisites"))
	}

	if cycle := findCycle(byID); cycle != nil {
		errs = append(errs, fmt.Errorf("prerequisite cycle through %v", cycle))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}

func findCycle(byID map[int]*domain.Exercise) []int {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(byID))
	var stack []int
	var cycle []int

	var visit func(id int) bool
	visit = func(id int) bool {
		switch state[id] {
		case visiting:
			for i, s := range stack {
				if s == id {
					cycle = append(append([]int{}, stack[i:]...), id)
					break
				}
			}
			return true
		case done:
			return false
		}
		state[id] = visiting
		stack = append(stack, id)
		ex, ok := byID[id]
		if ok {
			for _, pre := range ex.Prerequisites {
				if _, known := byID[pre]; known && pre != id && visit(pre) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for id := range byID {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}
