package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// Exercise errors
var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrExerciseLocked   = errors.New("exercise is locked")
	ErrNoMoreHints      = errors.New("no more hints available")
)

// Submission errors
var (
	ErrGradingInFlight = errors.New("a submission is already being graded")
	ErrStaleGrade      = errors.New("grade discarded: exercise context changed")
)

// Catalog errors
var (
	ErrInvalidCatalog = errors.New("invalid exercise catalog")
)
