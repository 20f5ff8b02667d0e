package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/progress"
	"github.com/felixgeelhaar/sqlvalley/internal/queryengine"
	"github.com/felixgeelhaar/sqlvalley/internal/session"
)

// SchemaSource describes the practice dataset
type SchemaSource interface {
	Schema(ctx context.Context) ([]queryengine.Table, error)
}

// Server wraps the MCP server with SQL Valley functionality
type Server struct {
	mcpServer *server.Server
	learner   session.LearnerService
	schema    SchemaSource
}

// Config contains configuration for the MCP server
type Config struct {
	Learner session.LearnerService
	Schema  SchemaSource
	Version string
}

// NewServer creates a new MCP server for SQL Valley
func NewServer(cfg Config) *Server {
	s := &Server{
		learner: cfg.Learner,
		schema:  cfg.Schema,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "sqlvalley",
		Version: version,
	}, server.WithInstructions(`
SQL Valley is a progressive SQL course played against a small company dataset
(departments, employees, projects). Exercises unlock as their prerequisites
are completed; each submission is graded against weighted test cases.

Available tools:
- sqlvalley_exercises: List exercises with lock and completion state
- sqlvalley_select: Open an exercise
- sqlvalley_submit: Run and grade a query for the current exercise
- sqlvalley_hint: Reveal the next hint (costs points outside practice)
- sqlvalley_practice: Enter or exit practice mode
- sqlvalley_status: Show points, level and achievements
- sqlvalley_next: Recommend the next exercise
- sqlvalley_reset: Erase all progress
- sqlvalley_schema: Show the dataset tables

Practice mode never changes progress.
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("sqlvalley_exercises").
		Description("List every exercise with its unlock and completion state").
		Handler(s.handleExercises)

	s.mcpServer.Tool("sqlvalley_select").
		Description("Open an exercise. Locked exercises can only be opened in practice mode.").
		Handler(s.handleSelect)

	s.mcpServer.Tool("sqlvalley_submit").
		Description("Run a SQL query for the current exercise and grade it. An empty query submits the current editor contents.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("sqlvalley_hint").
		Description("Reveal the next hint for the current exercise").
		Handler(s.handleHint)

	s.mcpServer.Tool("sqlvalley_practice").
		Description("Enter or exit practice mode").
		Handler(s.handlePractice)

	s.mcpServer.Tool("sqlvalley_status").
		Description("Show points, level, streak and achievements").
		Handler(s.handleStatus)

	s.mcpServer.Tool("sqlvalley_next").
		Description("Recommend the next exercise to work on").
		Handler(s.handleNext)

	s.mcpServer.Tool("sqlvalley_reset").
		Description("Erase all progress. Requires confirm=true.").
		Handler(s.handleReset)

	s.mcpServer.Tool("sqlvalley_schema").
		Description("Show the CREATE statements of the dataset tables").
		Handler(s.handleSchema)
}

// Input/Output types for tools

type EmptyInput struct{}

type ExerciseSummary struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	Points        int    `json:"points"`
	Prerequisites []int  `json:"prerequisites,omitempty"`
	Unlocked      bool   `json:"unlocked"`
	Completed     bool   `json:"completed"`
	Current       bool   `json:"current,omitempty"`
}

type ExercisesOutput struct {
	Exercises []ExerciseSummary `json:"exercises"`
}

type SelectInput struct {
	ExerciseID int `json:"exercise_id" jsonschema:"description=Numeric exercise id from sqlvalley_exercises"`
}

type ExerciseOutput struct {
	ID             int      `json:"id"`
	Title          string   `json:"title"`
	Difficulty     string   `json:"difficulty"`
	Description    string   `json:"description"`
	Theory         string   `json:"theory,omitempty"`
	Objectives     []string `json:"objectives,omitempty"`
	Points         int      `json:"points"`
	Code           string   `json:"code"`
	Practice       bool     `json:"practice"`
	Completed      bool     `json:"completed"`
	HintsRevealed  int      `json:"hints_revealed"`
	HintsAvailable int      `json:"hints_available"`
	Message        string   `json:"message,omitempty"`
}

type SubmitInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=SQL to run. Defaults to the current editor contents."`
}

type TestOutput struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Passed   bool    `json:"passed"`
	Feedback string  `json:"feedback,omitempty"`
}

type SubmitOutput struct {
	ExerciseID    int          `json:"exercise_id"`
	Score         int          `json:"score"`
	Passed        bool         `json:"passed"`
	Summary       string       `json:"summary"`
	Error         string       `json:"error,omitempty"`
	Tests         []TestOutput `json:"tests"`
	Suggestions   []string     `json:"suggestions,omitempty"`
	BonusPoints   int          `json:"bonus_points,omitempty"`
	PointsAwarded int          `json:"points_awarded"`
	Completed     bool         `json:"completed"`
	Practice      bool         `json:"practice"`
	Achievements  []string     `json:"achievements,omitempty"`
}

type HintOutput struct {
	Level     int    `json:"level"`
	Text      string `json:"text"`
	Penalty   int    `json:"penalty"`
	Remaining int    `json:"remaining"`
	Practice  bool   `json:"practice"`
}

type PracticeInput struct {
	Mode string `json:"mode" jsonschema:"description=enter or exit,enum=enter,enum=exit"`
}

type StatusOutput struct {
	TotalPoints       int      `json:"total_points"`
	Level             int      `json:"level"`
	NextLevelAt       int      `json:"next_level_at"`
	Percent           int      `json:"percent_complete"`
	Completed         []int    `json:"completed_exercises"`
	Streak            int      `json:"streak"`
	Achievements      []string `json:"achievements"`
	TotalQueries      int      `json:"total_queries"`
	SuccessfulQueries int      `json:"successful_queries"`
	HintsUsed         int      `json:"hints_used"`
	Practice          bool     `json:"practice"`
	CurrentExercise   int      `json:"current_exercise"`
}

type NextOutput struct {
	Found      bool   `json:"found"`
	ExerciseID int    `json:"exercise_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message"`
}

type ResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"description=Must be true to erase progress"`
}

type ResetOutput struct {
	Message    string   `json:"message"`
	FailedKeys []string `json:"failed_keys,omitempty"`
}

type TableOutput struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

type SchemaOutput struct {
	Tables []TableOutput `json:"tables"`
}

// Tool handlers

func (s *Server) handleExercises(_ context.Context, _ EmptyInput) (ExercisesOutput, error) {
	statuses := s.learner.Exercises()
	out := ExercisesOutput{Exercises: make([]ExerciseSummary, 0, len(statuses))}
	for _, st := range statuses {
		out.Exercises = append(out.Exercises, ExerciseSummary{
			ID:            st.Exercise.ID,
			Title:         st.Exercise.Title,
			Category:      st.Exercise.Category,
			Difficulty:    string(st.Exercise.Difficulty),
			Points:        st.Exercise.Points,
			Prerequisites: st.Exercise.Prerequisites,
			Unlocked:      st.Unlocked,
			Completed:     st.Completed,
			Current:       st.Current,
		})
	}
	return out, nil
}

func (s *Server) handleSelect(ctx context.Context, input SelectInput) (ExerciseOutput, error) {
	v, err := s.learner.Select(ctx, input.ExerciseID)
	switch {
	case errors.Is(err, domain.ErrExerciseLocked):
		return ExerciseOutput{}, fmt.Errorf("exercise %d is locked; complete its prerequisites or enter practice mode", input.ExerciseID)
	case err != nil:
		return ExerciseOutput{}, err
	}
	return exerciseOutput(v), nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	report, err := s.learner.Submit(ctx, input.Query)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("submit failed: %w", err)
	}

	out := SubmitOutput{
		ExerciseID:    report.ExerciseID,
		Score:         report.Score,
		Passed:        report.Passed,
		Summary:       report.Summary,
		Error:         report.EngineError,
		Tests:         make([]TestOutput, 0, len(report.Results)),
		Suggestions:   report.Suggestions,
		BonusPoints:   report.BonusPoints,
		PointsAwarded: report.PointsAwarded,
		Completed:     report.Completed,
		Practice:      report.Practice,
	}
	for _, r := range report.Results {
		out.Tests = append(out.Tests, TestOutput(r))
	}
	for _, a := range report.AchievementsEarned {
		out.Achievements = append(out.Achievements, a.ID)
	}
	return out, nil
}

func (s *Server) handleHint(ctx context.Context, _ EmptyInput) (HintOutput, error) {
	hint, err := s.learner.RevealHint(ctx)
	if errors.Is(err, domain.ErrNoMoreHints) {
		return HintOutput{}, fmt.Errorf("no more hints for this exercise")
	}
	if err != nil {
		return HintOutput{}, err
	}
	v := s.learner.Current()
	return HintOutput{
		Level:     hint.Level,
		Text:      hint.Text,
		Penalty:   hint.Penalty,
		Remaining: len(v.Exercise.Hints) - v.HintsRevealed,
		Practice:  v.Practice,
	}, nil
}

func (s *Server) handlePractice(ctx context.Context, input PracticeInput) (ExerciseOutput, error) {
	var (
		v   session.View
		err error
		msg string
	)
	switch input.Mode {
	case "enter":
		v, err = s.learner.EnterPractice(ctx)
		msg = "Practice mode: every exercise is open and nothing is recorded."
	case "exit":
		v, err = s.learner.ExitPractice(ctx)
		msg = "Back to your real progress."
	default:
		return ExerciseOutput{}, fmt.Errorf("unknown mode %q: use enter or exit", input.Mode)
	}
	if err != nil {
		return ExerciseOutput{}, err
	}
	out := exerciseOutput(v)
	out.Message = msg
	return out, nil
}

func (s *Server) handleStatus(_ context.Context, _ EmptyInput) (StatusOutput, error) {
	p := s.learner.Progress()
	out := StatusOutput{
		TotalPoints:       p.State.TotalPoints,
		Level:             p.Level,
		NextLevelAt:       p.NextLevelAt,
		Percent:           p.Percent,
		Completed:         p.State.CompletedExerciseIDs,
		Streak:            p.State.Streak,
		Achievements:      make([]string, 0, len(p.State.UnlockedAchievements)),
		TotalQueries:      p.State.Statistics.TotalQueries,
		SuccessfulQueries: p.State.Statistics.SuccessfulQueries,
		HintsUsed:         p.State.Statistics.HintsUsed,
		Practice:          p.Practice,
		CurrentExercise:   s.learner.Current().Exercise.ID,
	}
	for _, a := range p.State.UnlockedAchievements {
		out.Achievements = append(out.Achievements, a.ID)
	}
	return out, nil
}

func (s *Server) handleNext(_ context.Context, _ EmptyInput) (NextOutput, error) {
	ex, ok := s.learner.NextRecommended()
	if !ok {
		return NextOutput{Message: "Every exercise is complete."}, nil
	}
	return NextOutput{
		Found:      true,
		ExerciseID: ex.ID,
		Title:      ex.Title,
		Message:    fmt.Sprintf("Next up: #%d %s", ex.ID, ex.Title),
	}, nil
}

func (s *Server) handleReset(ctx context.Context, input ResetInput) (ResetOutput, error) {
	if !input.Confirm {
		return ResetOutput{}, fmt.Errorf("reset requires confirm=true")
	}
	err := s.learner.ResetAll(ctx)
	var resetErr *progress.ResetError
	switch {
	case errors.As(err, &resetErr):
		return ResetOutput{
			Message:    "Progress reset, but some stored keys could not be erased.",
			FailedKeys: resetErr.FailedKeys,
		}, nil
	case err != nil:
		return ResetOutput{}, fmt.Errorf("reset failed: %w", err)
	}
	return ResetOutput{Message: "All progress has been reset."}, nil
}

func (s *Server) handleSchema(ctx context.Context, _ EmptyInput) (SchemaOutput, error) {
	if s.schema == nil {
		return SchemaOutput{}, fmt.Errorf("schema not available")
	}
	tables, err := s.schema.Schema(ctx)
	if err != nil {
		return SchemaOutput{}, fmt.Errorf("read schema: %w", err)
	}
	out := SchemaOutput{Tables: make([]TableOutput, 0, len(tables))}
	for _, t := range tables {
		out.Tables = append(out.Tables, TableOutput(t))
	}
	return out, nil
}

func exerciseOutput(v session.View) ExerciseOutput {
	ex := v.Exercise
	return ExerciseOutput{
		ID:             ex.ID,
		Title:          ex.Title,
		Difficulty:     string(ex.Difficulty),
		Description:    ex.Description,
		Theory:         ex.Theory,
		Objectives:     ex.LearningObjectives,
		Points:         ex.Points,
		Code:           v.Code,
		Practice:       v.Practice,
		Completed:      v.Completed,
		HintsRevealed:  v.HintsRevealed,
		HintsAvailable: len(ex.Hints),
	}
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
