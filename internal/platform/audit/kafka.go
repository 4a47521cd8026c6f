package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON keyed by patient id so a patient's
// history stays ordered within one partition.
type KafkaSink struct {
	writer MessageWriter
	logger zerolog.Logger
}

// NewKafkaWriter builds an async writer; delivery errors are reported through
// the writer's completion callback to logger.
func NewKafkaWriter(brokers []string, topic string, logger zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn().Err(err).Int("messages", len(messages)).Msg("audit kafka delivery failed")
			}
		},
	}
}

func NewKafkaSink(writer MessageWriter, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger}
}

func (s *KafkaSink) Record(ctx context.Context, e Event) {
	value, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn().Err(err).Str("action", e.Action).Msg("audit event marshal failed")
		return
	}
	key := e.PatientID
	if key == "" {
		key = e.EntityID
	}
	// The request context may be cancelled as soon as the handler returns.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		s.logger.Warn().Err(err).Str("action", e.Action).Str("entity_id", e.EntityID).Msg("audit kafka write failed")
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
