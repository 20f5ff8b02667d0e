package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Sink receives encoded events
type Sink interface {
	PublishJSON(ctx context.Context, routingKey string, data any) error
}

// PublisherConfig holds publisher settings
type PublisherConfig struct {
	Buffer         int           // queued events before new ones are dropped (default: 256)
	PublishTimeout time.Duration // per event (default: 5s)
	Logger         *slog.Logger

	// OnPublish is called after every publish attempt
	OnPublish func(eventType string, err error)
}

// ErrPublisherClosed is returned by Close when called twice
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher forwards domain events to a Sink from a background worker so a
// slow broker never stalls the caller. When the buffer is full events are
// dropped and logged.
type Publisher struct {
	sink    Sink
	cfg     PublisherConfig
	queue   chan domain.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped int
}

// NewPublisher creates a publisher and starts its worker
func NewPublisher(sink Sink, cfg PublisherConfig) *Publisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Publisher{sink: sink, cfg: cfg, queue: make(chan domain.Event, cfg.Buffer)}
	p.wg.Add(1)
	go p.worker()
	return p
}

// Attach subscribes the publisher to every domain event
func (p *Publisher) Attach(d *domain.EventDispatcher) {
	d.SubscribeAll(p.Enqueue)
}

// Enqueue schedules e for publishing
func (p *Publisher) Enqueue(e domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.dropped++
		p.cfg.Logger.Warn("event buffer full, dropping event", "type", e.EventType(), "dropped", p.dropped)
	}
}

// Dropped returns how many events were dropped because the buffer was full
func (p *Publisher) Dropped() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for e := range p.queue {
		p.publish(e)
	}
}

func (p *Publisher) publish(e domain.Event) {
	env, err := Wrap(e)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
		err = p.sink.PublishJSON(ctx, e.EventType(), env)
		cancel()
	}
	if err != nil {
		p.cfg.Logger.Warn("failed to publish event", "type", e.EventType(), "error", err)
	} else {
		p.cfg.Logger.Debug("published event", "type", e.EventType(), "id", e.EventID())
	}
	if p.cfg.OnPublish != nil {
		p.cfg.OnPublish(e.EventType(), err)
	}
}

// Close stops accepting events and waits for queued ones to be published or
// for ctx to end.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
