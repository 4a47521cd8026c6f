package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher hands an event to the transport.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher decouples state mutations from event delivery. Notify never
// blocks; Run drains the queue into the Publisher.
type Dispatcher struct {
	queue   chan Event
	pub     Publisher
	logger  zerolog.Logger
	now     func() time.Time
	dropped atomic.Int64
}

func NewDispatcher(pub Publisher, buffer int, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  make(chan Event, buffer),
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Notify queues an event for clinicianID. It drops the event when the queue
// is full.
func (d *Dispatcher) Notify(clinicianID uuid.UUID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("type", eventType).Msg("realtime: marshal payload")
		return
	}
	event := Event{
		Type:      eventType,
		Topic:     ClinicianTopic(clinicianID),
		Timestamp: d.now().UTC(),
		Data:      data,
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn().Str("type", eventType).Str("topic", event.Topic).Msg("realtime: dispatch queue full, event dropped")
	}
}

// Dropped reports how many events Notify discarded.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run publishes queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.queue:
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := d.pub.Publish(pubCtx, event); err != nil {
				d.logger.Warn().Err(err).Str("type", event.Type).Str("topic", event.Topic).Msg("realtime: publish failed, event dropped")
			}
			cancel()
		}
	}
}
