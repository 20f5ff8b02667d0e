// Package drafts persists per-exercise draft code through a coalescing,
// debounced write queue.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/storage"
)

// DefaultDelay is the debounce window between the last edit and the write
const DefaultDelay = time.Second

const keyPrefix = "drafts/"

// ErrClosed is returned after Close
var ErrClosed = errors.New("draft queue closed")

// Key returns the storage key for an exercise draft
func Key(exerciseID int) string {
	return keyPrefix + strconv.Itoa(exerciseID)
}

// Options configures a Queue
type Options struct {
	Clock            Clock
	Delay            time.Duration
	Logger           *slog.Logger
	OnPersistFailure func(key string, err error)
}

// Queue buffers the latest edit per exercise and writes them together once
// edits have been quiet for the debounce delay. While suspended, edits are
// dropped.
type Queue struct {
	mu        sync.Mutex
	store     storage.Store
	clock     Clock
	delay     time.Duration
	logger    *slog.Logger
	onFail    func(key string, err error)
	pending   map[int]string
	saved     map[int]string
	timer     Timer
	gen       uint64
	suspended bool
	closed    bool
}

// NewQueue creates a queue writing to store
func NewQueue(store storage.Store, opts Options) *Queue {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		store:   store,
		clock:   opts.Clock,
		delay:   opts.Delay,
		logger:  opts.Logger,
		onFail:  opts.OnPersistFailure,
		pending: make(map[int]string),
		saved:   make(map[int]string),
	}
}

// Load reads every persisted draft into the cache
func (q *Queue) Load(ctx context.Context) error {
	keys, err := q.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list drafts: %w", err)
	}

	saved := make(map[int]string)
	for _, key := range keys {
		id, ok := parseKey(key)
		if !ok {
			continue
		}
		data, err := q.store.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			q.logger.Warn("discarding corrupt draft", "key", key, "error", err)
			continue
		}
		saved[id] = code
	}

	q.mu.Lock()
	q.saved = saved
	q.mu.Unlock()
	return nil
}

func parseKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	return id, err == nil
}

// Schedule buffers code as the latest draft of exerciseID and restarts the
// debounce timer. It reports false when the edit was dropped.
func (q *Queue) Schedule(exerciseID int, code string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.suspended || q.closed {
		return false
	}
	q.pending[exerciseID] = code
	q.restartTimer()
	return true
}

func (q *Queue) restartTimer() {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.timer = q.clock.AfterFunc(q.delay, func() { q.fire(gen) })
}

func (q *Queue) stopTimer() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.gen++
}

func (q *Queue) fire(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	q.timer = nil
	q.flush(context.Background())
}

// Flush writes every pending draft now
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimer()
	return q.flush(ctx)
}

func (q *Queue) flush(ctx context.Context) error {
	if len(q.pending) == 0 {
		return nil
	}
	ids := make([]int, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var errs []error
	for _, id := range ids {
		code := q.pending[id]
		key := Key(id)
		data, _ := json.Marshal(code)
		if err := q.store.Set(ctx, key, data); err != nil {
			q.logger.Warn("failed to save draft", "exercise_id", id, "error", err)
			if q.onFail != nil {
				q.onFail(key, err)
			}
			errs = append(errs, fmt.Errorf("save %s: %w", key, err))
			continue
		}
		q.saved[id] = code
		delete(q.pending, id)
	}
	if len(q.pending) > 0 && !q.closed && !q.suspended {
		q.restartTimer()
	}
	return errors.Join(errs...)
}

// Discard drops an unsaved edit of exerciseID
func (q *Queue) Discard(exerciseID int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, exerciseID)
	if len(q.pending) == 0 {
		q.stopTimer()
	}
}

// Suspend flushes pending edits and then drops every edit until Resume.
// Drafts whose write failed stay pending and are retried after Resume or
// on Close.
func (q *Queue) Suspend(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimer()
	err := q.flush(ctx)
	q.suspended = true
	return err
}

// Resume re-enables scheduling and re-arms the write of any draft left
// over from a failed flush.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.suspended = false
	if len(q.pending) > 0 && !q.closed {
		q.restartTimer()
	}
}

// Suspended reports whether edits are being dropped
func (q *Queue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// Clear forgets every pending and cached draft without touching the store.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimer()
	q.pending = make(map[int]string)
	q.saved = make(map[int]string)
}

// Draft returns the newest known draft of exerciseID, pending edits first.
func (q *Queue) Draft(exerciseID int) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if code, ok := q.pending[exerciseID]; ok {
		return code, true
	}
	code, ok := q.saved[exerciseID]
	return code, ok
}

// Pending returns the number of unsaved drafts
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close flushes and stops accepting edits
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.stopTimer()
	err := q.flush(ctx)
	q.closed = true
	return err
}
