package service

import (
	"context"
	"time"

	"usos/internal/log"
	"usos/internal/notify"
)

// emitter sends change events after a successful write. Failures are
// logged and never reach the caller.
type emitter struct {
	notifier notify.Notifier
	logger   *log.Logger
}

func newEmitter(notifier notify.Notifier, logger *log.Logger) emitter {
	if notifier == nil {
		notifier = notify.Nop
	}
	return emitter{notifier: notifier, logger: logger}
}

func (e emitter) emit(ctx context.Context, events ...notify.Event) {
	for _, ev := range events {
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish change event",
				log.FieldEntity, string(ev.EntityType),
				log.FieldAction, string(ev.Action),
				log.FieldFamilyID, ev.FamilyID,
				log.FieldError, err)
		}
	}
}
