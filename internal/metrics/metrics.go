// Package metrics exposes Prometheus metrics for grading and progress.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Metrics holds all Prometheus metrics for SQL Valley
type Metrics struct {
	registry *prometheus.Registry

	// Grading metrics
	Submissions   *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	Scores        *prometheus.HistogramVec
	Discarded     *prometheus.CounterVec

	// Progress metrics
	Completions      prometheus.Counter
	PointsAwarded    prometheus.Counter
	Achievements     *prometheus.CounterVec
	Resets           prometheus.Counter
	PracticeSessions prometheus.Counter

	// System metrics
	PersistFailures *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlvalley_submissions_total",
				Help: "Total number of graded submissions",
			},
			[]string{"outcome", "mode"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlvalley_query_duration_seconds",
				Help:    "Query engine execution time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"mode"},
		),
		Scores: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqlvalley_submission_score",
				Help:    "Score of graded submissions",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"mode"},
		),
		Discarded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlvalley_submissions_discarded_total",
				Help: "Submissions rejected while grading or graded after the context changed",
			},
			[]string{"reason"},
		),
		Completions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sqlvalley_exercise_completions_total",
				Help: "Total number of first-time exercise completions",
			},
		),
		PointsAwarded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sqlvalley_points_awarded_total",
				Help: "Total points credited including bonuses",
			},
		),
		Achievements: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlvalley_achievements_unlocked_total",
				Help: "Total number of unlocked achievements",
			},
			[]string{"achievement"},
		),
		Resets: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sqlvalley_progress_resets_total",
				Help: "Total number of progress resets",
			},
		),
		PracticeSessions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sqlvalley_practice_sessions_total",
				Help: "Total number of practice sessions entered",
			},
		),
		PersistFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlvalley_persist_failures_total",
				Help: "Failed writes to the durable store",
			},
			[]string{"kind"},
		),
		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlvalley_events_published_total",
				Help: "Domain events forwarded to the message broker",
			},
			[]string{"event_type", "status"},
		),
	}
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Attach subscribes the recorder to domain events
func (m *Metrics) Attach(d *domain.EventDispatcher) {
	d.SubscribeAll(m.Record)
}

// Record updates metrics for one domain event
func (m *Metrics) Record(e domain.Event) {
	switch ev := e.(type) {
	case domain.QueryGradedEvent:
		mode := modeLabel(ev.Practice)
		m.Submissions.WithLabelValues(outcomeLabel(ev), mode).Inc()
		m.QueryDuration.WithLabelValues(mode).Observe(ev.Duration.Seconds())
		m.Scores.WithLabelValues(mode).Observe(float64(ev.Score))
	case domain.ExerciseCompletedEvent:
		m.Completions.Inc()
		m.PointsAwarded.Add(float64(ev.Points + ev.BonusPoints))
	case domain.AchievementUnlockedEvent:
		m.Achievements.WithLabelValues(ev.AchievementID).Inc()
	case domain.ProgressResetEvent:
		m.Resets.Inc()
	case domain.SubmissionDiscardedEvent:
		m.Discarded.WithLabelValues(ev.Reason).Inc()
	case domain.PracticeEvent:
		if ev.EventType() == domain.EventPracticeEntered {
			m.PracticeSessions.Inc()
		}
	}
}

// RecordPersistFailure counts a failed store write. Keys are labelled by
// their first segment to bound cardinality.
func (m *Metrics) RecordPersistFailure(key string, _ error) {
	kind, _, _ := strings.Cut(key, "/")
	m.PersistFailures.WithLabelValues(kind).Inc()
}

// RecordEventPublished counts an event forwarded to the broker
func (m *Metrics) RecordEventPublished(eventType string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, status).Inc()
}

func modeLabel(practice bool) string {
	if practice {
		return "practice"
	}
	return "real"
}

func outcomeLabel(ev domain.QueryGradedEvent) string {
	switch {
	case ev.EngineError:
		return "engine_error"
	case ev.Passed:
		return "passed"
	default:
		return "partial"
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
