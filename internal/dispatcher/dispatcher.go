// Package dispatcher fans route changes out to the sinks that follow them.
// Sinks either run inline with the request or drain a queue of their own.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spraywall/spraywall/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrQueueFull is returned when a buffered sink drops an event.
	ErrQueueFull = errors.New("queue full")
)

// Event is one stored change to a route.
type Event struct {
	Action    string
	Route     core.Route
	RequestID string
	Timestamp time.Time
}

// HandlerFunc processes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type sink struct {
	name string
	h    HandlerFunc
}

// Dispatcher hands every event to each registered sink in registration order.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// mu guards sinks, buffers and closed. Dispatch holds the read lock while
	// queueing so Close never closes a buffer under a pending send.
	mu      sync.RWMutex
	sinks   []sink
	buffers map[string]chan Event
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher. A nil meter falls back to the global OTel meter
// (no-op if not configured).
func New(logger Logger, m metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		buffers: make(map[string]chan Event),
		logger:  logger,
	}
	if m == nil {
		m = meter()
	}

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"spraywall.dispatcher.queue.size",
		metric.WithDescription("Current number of route events waiting in a sink queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("sink", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"spraywall.dispatcher.events.processed",
		metric.WithDescription("Total route events processed by queued sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"spraywall.dispatcher.events.dropped",
		metric.WithDescription("Total route events dropped due to a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a named sink with optional configuration. Names must be
// unique; registering after Close is a no-op.
func (d *Dispatcher) Register(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blocking, handler)
	}

	d.sinks = append(d.sinks, sink{name: name, h: handler})
}

// Dispatch hands e to every sink. Errors from inline sinks and full queues
// are joined; the remaining sinks still run.
func (d *Dispatcher) Dispatch(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	var errs []error
	for _, s := range d.sinks {
		if err := s.h(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// HasSink returns true if a sink is registered under name.
func (d *Dispatcher) HasSink(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.sinks {
		if s.name == name {
			return true
		}
	}
	return false
}

// Close stops accepting events and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// withBuffer must be called with d.mu held.
func (d *Dispatcher) withBuffer(name string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)
	d.buffers[name] = buffer

	sinkAttr := attribute.String("sink", name)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			_ = h(e)
			d.processed.Add(context.Background(), 1, metric.WithAttributes(sinkAttr))
		}
	}()

	if blocking {
		return func(e Event) error {
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(sinkAttr))
			return ErrQueueFull
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling route event", "sink", name, "action", e.Action, "route", e.Route.ID)

		err := h(e)

		if err != nil {
			d.logger.Error("route event failed", "sink", name, "action", e.Action, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("route event complete", "sink", name, "action", e.Action, "duration", time.Since(start))
		}

		return err
	}
}
