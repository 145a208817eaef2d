package notify

import (
	"context"
	"errors"
	"time"

	"usos/internal/log"
)

// ErrQueueFull is returned when the queue cannot take another event
var ErrQueueFull = errors.New("notification queue full")

// Queue decouples callers from slow notifiers. Notify only enqueues;
// Run delivers in the background until its context ends.
type Queue struct {
	target  Notifier
	events  chan Event
	timeout time.Duration
	logger  *log.Logger
}

// NewQueue creates a queue in front of target
func NewQueue(target Notifier, size int, logger *log.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		target:  target,
		events:  make(chan Event, size),
		timeout: 30 * time.Second,
		logger:  logger.WithComponent(log.ComponentNotify),
	}
}

// Notify enqueues the event
func (q *Queue) Notify(_ context.Context, e Event) error {
	select {
	case q.events <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-q.events:
			q.deliver(ctx, e)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.target.Notify(ctx, e); err != nil {
		q.logger.WarnContext(ctx, "Event delivery failed",
			log.FieldEntity, string(e.EntityType),
			log.FieldAction, string(e.Action),
			log.FieldFamilyID, e.FamilyID,
			log.FieldError, err)
	}
}
