// Package notifications publishes change events of resources to external
// systems. Events are queued in memory and delivered by a pool of workers,
// so a slow or failing broker never blocks a request.
package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Event is a change notification of a single resource
type Event struct {
	Resource   string          `json:"resource"`
	Operation  core.Operation  `json:"operation"`
	ResourceID uuid.UUID       `json:"resource_id"`
	Payload    json.RawMessage `json:"payload"`
	RequestID  string          `json:"request_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`

	// serialized request logger, restored for the workers
	loggerContext []byte
}

// Publisher delivers events to one destination
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Options configures a Dispatcher
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	// Backoff is the delay before the second attempt, doubled for every further attempt
	Backoff time.Duration
}

// DefaultOptions are used for every zero value in Options
var DefaultOptions = Options{
	Workers:     4,
	QueueSize:   1000,
	MaxAttempts: 3,
	Backoff:     200 * time.Millisecond,
}

// Dispatcher implements core.Notifier on top of a set of publishers
type Dispatcher struct {
	publishers []Publisher
	options    Options
	queue      chan Event
	wg         sync.WaitGroup

	mutex  sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher and starts its workers
func NewDispatcher(options Options, publishers ...Publisher) *Dispatcher {
	if options.Workers <= 0 {
		options.Workers = DefaultOptions.Workers
	}
	if options.QueueSize <= 0 {
		options.QueueSize = DefaultOptions.QueueSize
	}
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if options.Backoff < 0 {
		options.Backoff = DefaultOptions.Backoff
	}
	d := &Dispatcher{
		publishers: publishers,
		options:    options,
		queue:      make(chan Event, options.QueueSize),
	}
	for _, p := range publishers {
		logger.Default().Infoln("notifications publisher:", p.Name())
	}
	d.wg.Add(options.Workers)
	for i := 0; i < options.Workers; i++ {
		go d.worker()
	}
	return d
}

// Notify implements core.Notifier. It never blocks: when the queue is full the
// event is dropped and logged.
func (d *Dispatcher) Notify(ctx context.Context, resource string, operation core.Operation, id uuid.UUID, payload []byte) {
	event := Event{
		Resource:      resource,
		Operation:     operation,
		ResourceID:    id,
		Payload:       json.RawMessage(payload),
		RequestID:     logger.RequestIDFromContext(ctx),
		CreatedAt:     time.Now().UTC(),
		loggerContext: logger.SerializeLoggerContext(ctx),
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()
	rlog := logger.FromContext(ctx)
	if d.closed {
		rlog.Warnf("notification %s %s %s after close dropped", resource, operation, id)
		return
	}
	select {
	case d.queue <- event:
	default:
		rlog.Errorf("Error 5001: notification queue full, %s %s %s dropped", resource, operation, id)
	}
}

// Close stops accepting events, delivers everything queued and closes the publishers
func (d *Dispatcher) Close() error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mutex.Unlock()

	d.wg.Wait()
	var firstErr error
	for _, p := range d.publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", p.Name(), err)
		}
	}
	return firstErr
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		ctx := logger.ContextWithLoggerFromData(context.Background(), event.loggerContext)
		for _, p := range d.publishers {
			d.deliver(ctx, p, event)
		}
	}
}

// deliver publishes event with retries and reports whether it succeeded
func (d *Dispatcher) deliver(ctx context.Context, p Publisher, event Event) bool {
	rlog := logger.FromContext(ctx)
	backoff := d.options.Backoff
	for attempt := 1; ; attempt++ {
		err := publishWithPanicEnvelope(ctx, p, event)
		if err == nil {
			return true
		}
		if attempt >= d.options.MaxAttempts {
			rlog.WithError(err).Errorf("Error 5002: %s failed to publish %s %s %s after %d attempts",
				p.Name(), event.Resource, event.Operation, event.ResourceID, attempt)
			return false
		}
		rlog.WithError(err).Warnf("%s failed to publish %s %s, attempt %d", p.Name(), event.Resource, event.ResourceID, attempt)
		time.Sleep(backoff)
		backoff *= 2
	}
}

func publishWithPanicEnvelope(ctx context.Context, p Publisher, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()
	err = p.Publish(ctx, event)
	return
}
