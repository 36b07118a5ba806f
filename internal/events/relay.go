package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointments/internal/appointment"
)

// Relay moves unpublished outbox rows to a Publisher. Rows are marked
// published only after the broker accepted them, so a crash between the two
// steps re-sends rather than drops.
type Relay struct {
	outbox    appointment.Outbox
	publisher Publisher
	batch     int
	log       *zap.Logger
}

func NewRelay(outbox appointment.Outbox, publisher Publisher, batch int, logger *zap.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		batch:     batch,
		log:       logger,
	}
}

// RunOnce publishes one batch in id order and stops at the first publish
// failure so events for one appointment are never reordered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.PendingEvents(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("load pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(pending))
	var publishErr error
	for _, ev := range pending {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			publishErr = err
			r.log.Warn("event publish failed",
				zap.Int64("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Error(err),
			)
			break
		}
		published = append(published, ev.ID)
	}

	if len(published) > 0 {
		if err := r.outbox.MarkPublished(ctx, published); err != nil {
			return 0, fmt.Errorf("mark %d events published: %w", len(published), err)
		}
	}

	return len(published), publishErr
}
