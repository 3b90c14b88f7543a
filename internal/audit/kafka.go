package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jastip-settlement-go/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventSettlementCompleted = "settlement.completed"
	EventReturnRefunded      = "return.refunded"
	EventRunFinished         = "job.run_finished"
)

// envelope is the message value published for every event.
type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit events to a single topic, keyed by transaction id
// (or job name for run summaries) so events for one transaction stay ordered.
type KafkaSink struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink requires a topic")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				zap.L().Warn("Failed to publish audit events",
					zap.Int("count", len(messages)),
					zap.Error(err))
			}
		},
	}

	zap.L().Info("Kafka audit sink enabled",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))
	return &KafkaSink{writer: writer, topic: topic, now: time.Now}, nil
}

func (k *KafkaSink) SettlementCompleted(ctx context.Context, event SettlementEvent) {
	k.publish(ctx, EventSettlementCompleted, event.TransactionId, event)
}

func (k *KafkaSink) ReturnRefunded(ctx context.Context, event RefundEvent) {
	k.publish(ctx, EventReturnRefunded, event.TransactionId, event)
}

func (k *KafkaSink) RunFinished(ctx context.Context, summary models.JobSummary) {
	k.publish(ctx, EventRunFinished, summary.Job, summary)
}

func (k *KafkaSink) publish(ctx context.Context, eventType, key string, data any) {
	payload, err := json.Marshal(envelope{Type: eventType, OccurredAt: k.now().UTC(), Data: data})
	if err != nil {
		zap.L().Warn("Failed to encode audit event", zap.String("type", eventType), zap.Error(err))
		return
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		zap.L().Warn("Failed to publish audit event",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
