// Package dispatcher routes extension commands to handlers. Handlers can be
// queued behind a single worker, serialized, or logged.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Queued is returned for events accepted by a buffered handler.
const Queued = "queued"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Event is one callExtension invocation from the game.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
	serialized bool
}

// Buffered queues events for one worker, which handles them in arrival order.
func Buffered(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// Blocking makes a buffered handler wait for room instead of dropping.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Serialized runs calls of a synchronous handler one at a time, in arrival order.
func Serialized() Option {
	return func(o *options) { o.serialized = true }
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

type queue struct {
	mu     sync.RWMutex
	events chan Event
	closed bool
	done   chan struct{}
}

// Dispatcher routes events to registered handlers. Handlers may be registered
// while the game is already dispatching.
type Dispatcher struct {
	logger Logger
	ins    *instruments

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	queues   map[string]*queue
}

// New creates a new Dispatcher with the given logger.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]*queue),
	}
	ins, err := newInstruments(d.queueLengths)
	if err != nil {
		return nil, err
	}
	d.ins = ins
	return d, nil
}

// Register adds a handler for the given command, replacing any earlier one.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.withMetrics(command, h)
	if o.serialized {
		handler = withLock(handler)
	}
	if o.bufferSize > 0 {
		handler = d.withQueue(command, o.bufferSize, o.blocking, handler)
	}
	if o.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Close stops accepting queued events and waits for the workers to finish what
// is already queued, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.RLock()
	queues := make([]*queue, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.RUnlock()

	for _, q := range queues {
		q.mu.Lock()
		if !q.closed {
			q.closed = true
			close(q.events)
		}
		q.mu.Unlock()
	}
	for _, q := range queues {
		select {
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) queueLengths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.queues))
	for cmd, q := range d.queues {
		out[cmd] = len(q.events)
	}
	return out
}

func (d *Dispatcher) withQueue(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := &queue{events: make(chan Event, size), done: make(chan struct{})}

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	attrs := metric.WithAttributes(commandAttr(command))

	go func() {
		defer close(q.done)
		for e := range q.events {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.ins.processed.Add(context.Background(), 1, attrs)
		}
	}()

	return func(e Event) (any, error) {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}
		if blocking {
			q.events <- e
			return Queued, nil
		}
		select {
		case q.events <- e:
			return Queued, nil
		default:
			d.ins.dropped.Add(context.Background(), 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(commandAttr(command))
	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)
		d.ins.duration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000, attrs)
		if err != nil {
			d.ins.failed.Add(context.Background(), 1, attrs)
		}
		return result, err
	}
}

func withLock(h HandlerFunc) HandlerFunc {
	var mu sync.Mutex
	return func(e Event) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		return h(e)
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
