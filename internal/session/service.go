// Package session orchestrates a learner's session: exercise selection,
// submissions, practice mode and reset. One mutex serializes every state
// change; the query engine call is the only step run outside it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/drafts"
	"github.com/felixgeelhaar/sqlvalley/internal/grading"
	"github.com/felixgeelhaar/sqlvalley/internal/practice"
	"github.com/felixgeelhaar/sqlvalley/internal/progress"
	"github.com/felixgeelhaar/sqlvalley/internal/unlock"
)

// ErrNotStarted is returned when Start has not been called
var ErrNotStarted = errors.New("session not started")

// Discard reasons carried by SubmissionDiscardedEvent
const (
	ReasonInFlight = "grading_in_flight"
	ReasonStale    = "stale"
)

// Deps holds the collaborators of a Service
type Deps struct {
	Catalog    Catalog
	Engine     QueryEngine
	Grader     *grading.Grader
	Progress   *progress.Manager
	Drafts     *drafts.Queue
	Dispatcher *domain.EventDispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

// Ticket identifies one submission between BeginSubmit and CompleteSubmit
type Ticket struct {
	ID         uuid.UUID
	ExerciseID int
	Epoch      uint64
	Query      string
}

// View is the learner's current position
type View struct {
	Exercise      *domain.Exercise
	Code          string
	Practice      bool
	HintsRevealed int
	Completed     bool
	Unlocked      bool
}

// ExerciseStatus is one catalog entry with its unlock state
type ExerciseStatus struct {
	Exercise  *domain.Exercise
	Unlocked  bool
	Completed bool
	Current   bool
}

// ProgressView summarizes real progress
type ProgressView struct {
	State       domain.ProgressState
	Level       int
	NextLevelAt int
	Percent     int
	Practice    bool
}

// Service manages the learner session
type Service struct {
	mu       sync.Mutex
	catalog  Catalog
	resolver *unlock.Resolver
	engine   QueryEngine
	grader   *grading.Grader
	progress *progress.Manager
	drafts   *drafts.Queue
	overlay  *practice.Overlay
	events   *domain.EventDispatcher
	logger   *slog.Logger
	now      func() time.Time

	started       bool
	currentID     int
	code          string
	hintsRevealed int
	startedAt     time.Time
	submissions   int
	epoch         uint64
	inflight      *Ticket
}

// NewService creates a session. Call Start before use.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Grader == nil {
		deps.Grader = grading.NewGrader(deps.Logger)
	}
	s := &Service{
		catalog:  deps.Catalog,
		resolver: unlock.NewResolver(deps.Catalog),
		engine:   deps.Engine,
		grader:   deps.Grader,
		progress: deps.Progress,
		drafts:   deps.Drafts,
		events:   deps.Dispatcher,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	s.overlay = practice.NewOverlay(restorer{s})
	return s
}

// Start restores progress and drafts and opens the recommended exercise.
// Load failures are logged; the session starts from whatever was read.
func (s *Service) Start(ctx context.Context) error {
	if err := s.progress.Load(ctx); err != nil {
		s.logger.Warn("failed to load progress", "error", err)
	}
	if err := s.drafts.Load(ctx); err != nil {
		s.logger.Warn("failed to load drafts", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.catalog.Root()
	if root == nil {
		return fmt.Errorf("start session: %w", domain.ErrExerciseNotFound)
	}
	start := root
	if ex, ok := s.resolver.NextRecommended(0, s.completed()); ok {
		start = ex
	} else if ex, ok := s.resolver.HighestUnlocked(s.completed()); ok {
		start = ex
	}
	s.open(start)
	s.started = true
	return nil
}

func (s *Service) completed() domain.ExerciseSet {
	return s.progress.Snapshot().CompletedSet()
}

// open makes ex current. Callers hold s.mu.
func (s *Service) open(ex *domain.Exercise) {
	s.bump()
	s.currentID = ex.ID
	if s.overlay.Active() {
		s.code = ex.PristineCode()
	} else if code, ok := s.drafts.Draft(ex.ID); ok {
		s.code = code
	} else {
		s.code = ex.PristineCode()
	}
	s.hintsRevealed = 0
	s.submissions = 0
	s.startedAt = s.now()
}

// bump invalidates every outstanding ticket
func (s *Service) bump() {
	s.epoch++
	s.inflight = nil
}

func (s *Service) view() View {
	ex := s.catalog.Get(s.currentID)
	completed := s.completed()
	return View{
		Exercise:      ex,
		Code:          s.code,
		Practice:      s.overlay.Active(),
		HintsRevealed: s.hintsRevealed,
		Completed:     completed.Has(ex.ID),
		Unlocked:      s.resolver.IsUnlocked(ex.ID, completed),
	}
}

// Current returns the current position
func (s *Service) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Select opens exercise id. Outside practice a locked exercise is refused.
func (s *Service) Select(ctx context.Context, id int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.catalog.Lookup(id)
	if !ok {
		return s.view(), fmt.Errorf("select %d: %w", id, domain.ErrExerciseNotFound)
	}
	if !s.overlay.Active() && !s.resolver.IsUnlocked(id, s.completed()) {
		return s.view(), fmt.Errorf("select %d: %w", id, domain.ErrExerciseLocked)
	}

	s.open(ex)
	s.publishAll(s.progress.RecordAttempt(ctx, id))
	s.logger.Debug("exercise selected", "exercise_id", id, "practice", s.overlay.Active())
	return s.view(), nil
}

// EditCode replaces the editor contents. Outside practice the draft is
// scheduled for autosave.
func (s *Service) EditCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCode(code)
}

func (s *Service) setCode(code string) {
	s.code = code
	if !s.overlay.Active() {
		s.drafts.Schedule(s.currentID, code)
	}
}

// ResetCode restores the pristine code of the current exercise
func (s *Service) ResetCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCode(s.catalog.Get(s.currentID).PristineCode())
	return s.code
}

// RevealHint reveals the next hint of the current exercise
func (s *Service) RevealHint(ctx context.Context) (domain.Hint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hints := s.catalog.Get(s.currentID).SortedHints()
	if s.hintsRevealed >= len(hints) {
		return domain.Hint{}, domain.ErrNoMoreHints
	}
	hint := hints[s.hintsRevealed]
	s.hintsRevealed++
	if !s.overlay.Active() {
		s.publishAll(s.progress.RecordHint(ctx))
	}
	return hint, nil
}

// Submit executes query against the engine and grades it. An empty query
// submits the current editor contents.
func (s *Service) Submit(ctx context.Context, query string) (*domain.GradeReport, error) {
	ticket, err := s.BeginSubmit(query)
	if err != nil {
		return nil, err
	}
	outcome := s.engine.Execute(ctx, ticket.Query)
	return s.CompleteSubmit(ctx, ticket, outcome)
}

// BeginSubmit reserves the grading slot. Only one submission may be in
// flight.
func (s *Service) BeginSubmit(query string) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return Ticket{}, ErrNotStarted
	}
	if s.inflight != nil {
		s.events.Publish(domain.NewSubmissionDiscardedEvent(s.currentID, ReasonInFlight))
		return Ticket{}, domain.ErrGradingInFlight
	}
	if query == "" {
		query = s.code
	} else if query != s.code {
		s.setCode(query)
	}

	t := Ticket{ID: uuid.New(), ExerciseID: s.currentID, Epoch: s.epoch, Query: query}
	s.inflight = &t
	s.submissions++
	return t, nil
}

// CompleteSubmit grades outcome for ticket and applies it to progress. A
// ticket issued before the exercise context changed is discarded with
// ErrStaleGrade.
func (s *Service) CompleteSubmit(ctx context.Context, t Ticket, outcome domain.QueryOutcome) (*domain.GradeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil || s.inflight.ID != t.ID || t.Epoch != s.epoch {
		if s.inflight != nil && s.inflight.ID == t.ID {
			s.inflight = nil
		}
		s.events.Publish(domain.NewSubmissionDiscardedEvent(t.ExerciseID, ReasonStale))
		s.logger.Debug("discarding stale grade", "exercise_id", t.ExerciseID, "ticket", t.ID)
		return nil, domain.ErrStaleGrade
	}
	s.inflight = nil

	ex := s.catalog.Get(t.ExerciseID)
	tel := domain.Telemetry{
		HintsUsed: s.hintsRevealed,
		TimeSpent: s.now().Sub(s.startedAt),
		Attempts:  s.submissions,
	}
	report := s.grader.Grade(ex, outcome, tel)
	report.Practice = s.overlay.Active()

	if !report.Practice {
		s.apply(ctx, ex, report, outcome, tel)
	}

	s.events.Publish(domain.NewQueryGradedEvent(report, outcome.Duration))
	s.logger.Info("submission graded",
		"exercise_id", ex.ID,
		"score", report.Score,
		"passed", report.Passed,
		"practice", report.Practice)
	return report, nil
}

// apply folds a real-mode report into progress. Callers hold s.mu.
func (s *Service) apply(ctx context.Context, ex *domain.Exercise, report *domain.GradeReport, outcome domain.QueryOutcome, tel domain.Telemetry) {
	completed := s.completed()
	unlocked := s.progress.RecordGraded(ctx, progress.Graded{
		ExerciseID:    ex.ID,
		Score:         report.Score,
		EngineError:   !outcome.Success,
		ExecutionTime: outcome.Duration,
		TimeSpent:     tel.TimeSpent,
	})

	if report.Passed && !completed.Has(ex.ID) && s.resolver.IsUnlocked(ex.ID, completed) {
		c := domain.Completion{
			ExerciseID:     ex.ID,
			Points:         ex.AwardPoints(s.hintsRevealed),
			BonusPoints:    report.BonusPoints,
			AchievementIDs: ex.AchievementTriggers,
		}
		applied, recs := s.progress.ApplyCompletion(ctx, c)
		if applied {
			report.Completed = true
			report.PointsAwarded = c.Total()
			state := s.progress.Snapshot()
			s.events.Publish(domain.NewExerciseCompletedEvent(c, state.TotalPoints, state.Streak))
		}
		unlocked = append(unlocked, recs...)
	}

	report.AchievementsEarned = unlocked
	s.publishAll(unlocked)
}

func (s *Service) publishAll(recs []domain.AchievementRecord) {
	for _, rec := range recs {
		s.events.Publish(domain.NewAchievementUnlockedEvent(rec))
	}
}

// EnterPractice switches to practice mode on the current exercise. Pending
// drafts are saved first and autosave is suspended.
func (s *Service) EnterPractice(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlay.Active() {
		return s.view(), nil
	}
	var flushErr error
	if err := s.drafts.Suspend(ctx); err != nil {
		flushErr = fmt.Errorf("save drafts: %w", err)
		s.logger.Warn("failed to save drafts before practice", "error", err)
	}
	code, _ := s.overlay.Enter(s.currentID, s.code)
	s.bump()
	s.code = code
	s.hintsRevealed = 0
	s.submissions = 0
	s.startedAt = s.now()

	s.events.Publish(domain.NewPracticeEnteredEvent(s.currentID))
	return s.view(), flushErr
}

// ExitPractice returns to real mode, restoring the saved position when it is
// still reachable.
func (s *Service) ExitPractice(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored, ok := s.overlay.Exit(s.currentID)
	if !ok {
		return s.view(), nil
	}
	s.drafts.Resume()
	s.bump()
	s.currentID = restored.ExerciseID
	s.code = restored.Code
	s.hintsRevealed = 0
	s.submissions = 0
	s.startedAt = s.now()

	s.events.Publish(domain.NewPracticeExitedEvent(restored.ExerciseID, string(restored.Source)))
	return s.view(), nil
}

// InPractice reports whether practice mode is on
func (s *Service) InPractice() bool {
	return s.overlay.Active()
}

// NextRecommended returns the next exercise to work on
func (s *Service) NextRecommended() (*domain.Exercise, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.NextRecommended(s.currentID, s.completed())
}

// Exercises lists the catalog with unlock and completion flags
func (s *Service) Exercises() []ExerciseStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := s.completed()
	all := s.catalog.Exercises()
	out := make([]ExerciseStatus, 0, len(all))
	for _, ex := range all {
		out = append(out, ExerciseStatus{
			Exercise:  ex,
			Unlocked:  s.resolver.IsUnlocked(ex.ID, completed),
			Completed: completed.Has(ex.ID),
			Current:   ex.ID == s.currentID,
		})
	}
	return out
}

// Progress summarizes real progress
func (s *Service) Progress() ProgressView {
	state := s.progress.Snapshot()
	level := state.Level()
	return ProgressView{
		State:       state,
		Level:       level,
		NextLevelAt: domain.PointsForNextLevel(level),
		Percent:     s.resolver.ProgressPercent(state.CompletedSet()),
		Practice:    s.overlay.Active(),
	}
}

// ResetAll erases all progress and drafts and returns to the root exercise.
// A *progress.ResetError lists keys the store could not erase.
func (s *Service) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bump()
	s.overlay.Discard()
	s.drafts.Clear()
	err := s.progress.ResetAll(ctx)
	s.drafts.Resume()

	if root := s.catalog.Root(); root != nil {
		s.open(root)
	}

	var failed []string
	var resetErr *progress.ResetError
	if errors.As(err, &resetErr) {
		failed = resetErr.FailedKeys
	}
	s.events.Publish(domain.NewProgressResetEvent(failed))
	return err
}

// Close saves pending drafts and retries unsaved progress
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.drafts.Close(ctx), s.progress.Flush(ctx))
}

// restorer answers practice exit questions from real progress. It runs
// while Service.mu is held.
type restorer struct{ s *Service }

func (r restorer) IsUnlocked(id int) bool {
	return r.s.resolver.IsUnlocked(id, r.s.completed())
}

func (r restorer) SavedCode(id int) (string, bool) {
	return r.s.drafts.Draft(id)
}

func (r restorer) PristineCode(id int) string {
	return r.s.catalog.Get(id).PristineCode()
}

func (r restorer) HighestUnlocked() (int, bool) {
	ex, ok := r.s.resolver.HighestUnlocked(r.s.completed())
	if !ok {
		return 0, false
	}
	return ex.ID, true
}
