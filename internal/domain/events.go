package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Event Interface and Base Event
// -----------------------------------------------------------------------------

// Event represents a domain event
type Event interface {
	// EventID returns the unique identifier for this event
	EventID() uuid.UUID
	// EventType returns the type name of this event
	EventType() string
	// OccurredAt returns when this event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent creates a new BaseEvent
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// -----------------------------------------------------------------------------
// Event Types
// -----------------------------------------------------------------------------

const (
	EventExerciseCompleted   = "exercise.completed"
	EventQueryGraded         = "query.graded"
	EventAchievementUnlocked = "achievement.unlocked"
	EventProgressReset       = "progress.reset"
	EventPracticeEntered     = "practice.entered"
	EventPracticeExited      = "practice.exited"
	EventSubmissionDiscarded = "submission.discarded"
)

// ExerciseCompletedEvent is published on the first pass of an exercise
type ExerciseCompletedEvent struct {
	BaseEvent
	ExerciseID  int `json:"exercise_id"`
	Points      int `json:"points"`
	BonusPoints int `json:"bonus_points"`
	TotalPoints int `json:"total_points"`
	Streak      int `json:"streak"`
}

// NewExerciseCompletedEvent creates the event
func NewExerciseCompletedEvent(c Completion, total, streak int) ExerciseCompletedEvent {
	return ExerciseCompletedEvent{
		BaseEvent:   NewBaseEvent(EventExerciseCompleted),
		ExerciseID:  c.ExerciseID,
		Points:      c.Points,
		BonusPoints: c.BonusPoints,
		TotalPoints: total,
		Streak:      streak,
	}
}

// QueryGradedEvent is published for every graded submission
type QueryGradedEvent struct {
	BaseEvent
	ExerciseID  int           `json:"exercise_id"`
	Score       int           `json:"score"`
	Passed      bool          `json:"passed"`
	Practice    bool          `json:"practice"`
	EngineError bool          `json:"engine_error"`
	Duration    time.Duration `json:"duration"`
}

// NewQueryGradedEvent creates the event from a report
func NewQueryGradedEvent(r *GradeReport, elapsed time.Duration) QueryGradedEvent {
	return QueryGradedEvent{
		BaseEvent:   NewBaseEvent(EventQueryGraded),
		ExerciseID:  r.ExerciseID,
		Score:       r.Score,
		Passed:      r.Passed,
		Practice:    r.Practice,
		EngineError: r.EngineError != "",
		Duration:    elapsed,
	}
}

// AchievementUnlockedEvent is published once per unlocked achievement
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
}

// NewAchievementUnlockedEvent creates the event
func NewAchievementUnlockedEvent(rec AchievementRecord) AchievementUnlockedEvent {
	e := AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked),
		AchievementID: rec.ID,
	}
	if !rec.UnlockedAt.IsZero() {
		e.Timestamp = rec.UnlockedAt
	}
	return e
}

// ProgressResetEvent is published after a reset; FailedKeys lists keys that
// could not be erased.
type ProgressResetEvent struct {
	BaseEvent
	FailedKeys []string `json:"failed_keys,omitempty"`
}

// NewProgressResetEvent creates the event
func NewProgressResetEvent(failed []string) ProgressResetEvent {
	return ProgressResetEvent{
		BaseEvent:  NewBaseEvent(EventProgressReset),
		FailedKeys: failed,
	}
}

// PracticeEvent is published on practice mode transitions
type PracticeEvent struct {
	BaseEvent
	ExerciseID int    `json:"exercise_id"`
	Restored   string `json:"restored,omitempty"`
}

// NewPracticeEnteredEvent creates the event
func NewPracticeEnteredEvent(exerciseID int) PracticeEvent {
	return PracticeEvent{BaseEvent: NewBaseEvent(EventPracticeEntered), ExerciseID: exerciseID}
}

// NewPracticeExitedEvent creates the event
func NewPracticeExitedEvent(exerciseID int, restored string) PracticeEvent {
	return PracticeEvent{BaseEvent: NewBaseEvent(EventPracticeExited), ExerciseID: exerciseID, Restored: restored}
}

// SubmissionDiscardedEvent is published when a submission is rejected or its
// grade arrives after the learner moved on.
type SubmissionDiscardedEvent struct {
	BaseEvent
	ExerciseID int    `json:"exercise_id"`
	Reason     string `json:"reason"`
}

// NewSubmissionDiscardedEvent creates the event
func NewSubmissionDiscardedEvent(exerciseID int, reason string) SubmissionDiscardedEvent {
	return SubmissionDiscardedEvent{
		BaseEvent:  NewBaseEvent(EventSubmissionDiscarded),
		ExerciseID: exerciseID,
		Reason:     reason,
	}
}

// -----------------------------------------------------------------------------
// Event Handler and Dispatcher
// -----------------------------------------------------------------------------

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher manages event subscriptions and publishing
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler // handlers for all events
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers. A nil dispatcher
// drops the event.
func (d *EventDispatcher) Publish(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if handlers, ok := d.handlers[event.EventType()]; ok {
		for _, h := range handlers {
			h(event)
		}
	}

	for _, h := range d.allHandlers {
		h(event)
	}
}

// PublishAll dispatches multiple events
func (d *EventDispatcher) PublishAll(events []Event) {
	for _, event := range events {
		d.Publish(event)
	}
}
