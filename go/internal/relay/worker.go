package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Worker queues events and fans them out to every publisher.
//
// Emit never blocks: when the queue is full the event is dropped and counted.
type Worker struct {
	publishers []Publisher
	config     Config
	queue      chan Event

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewWorker(cfg Config, publishers ...Publisher) *Worker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Worker{
		publishers: publishers,
		config:     cfg,
		queue:      make(chan Event, cfg.QueueSize),
		stopChan:   make(chan struct{}),
	}
}

// Emit enqueues an event for publishing
func (w *Worker) Emit(event Event) {
	select {
	case w.queue <- event:
	default:
		w.dropped.Add(1)
		log.Warn().
			Str("event_type", event.EventType).
			Str("room_code", event.RoomCode).
			Msg("relay queue full, dropping event")
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("relay worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Int("publishers", len(w.publishers)).
		Int("queue_size", w.config.QueueSize).
		Msg("relay worker started")
	return nil
}

// Stop flushes queued events and waits for the worker to exit
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("relay worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().
		Uint64("published", w.published.Load()).
		Uint64("failed", w.failed.Load()).
		Uint64("dropped", w.dropped.Load()).
		Msg("relay worker stopped")
	return nil
}

// Stats returns delivery counters
func (w *Worker) Stats() (published, failed, dropped uint64) {
	return w.published.Load(), w.failed.Load(), w.dropped.Load()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			w.flush(ctx)
			return
		case event := <-w.queue:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	for {
		select {
		case event := <-w.queue:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	for _, p := range w.publishers {
		if err := w.publishWithRetry(ctx, p, event); err != nil {
			w.failed.Add(1)
			log.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Str("room_code", event.RoomCode).
				Msg("failed to publish event")
			continue
		}
		w.published.Add(1)
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, p Publisher, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := p.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
