package session

import (
	"context"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// QueryEngine executes learner SQL
type QueryEngine interface {
	Execute(ctx context.Context, query string) domain.QueryOutcome
}

// Catalog is the exercise source the session reads
type Catalog interface {
	Exercises() []*domain.Exercise
	Lookup(id int) (*domain.Exercise, bool)
	Get(id int) *domain.Exercise
	Root() *domain.Exercise
}

// LearnerService is the surface used by the CLI and the MCP server
type LearnerService interface {
	Current() View
	Select(ctx context.Context, id int) (View, error)
	EditCode(code string)
	ResetCode() string
	RevealHint(ctx context.Context) (domain.Hint, error)
	Submit(ctx context.Context, query string) (*domain.GradeReport, error)
	EnterPractice(ctx context.Context) (View, error)
	ExitPractice(ctx context.Context) (View, error)
	InPractice() bool
	NextRecommended() (*domain.Exercise, bool)
	Exercises() []ExerciseStatus
	Progress() ProgressView
	ResetAll(ctx context.Context) error
	Close(ctx context.Context) error
}

// Ensure Service implements LearnerService
var _ LearnerService = (*Service)(nil)
