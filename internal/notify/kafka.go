package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier hands pushes to a delivery worker through a topic, one
// message per device keyed by token.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka notifier requires a topic")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
	}

	zap.L().Info("Kafka push notifier enabled",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))
	return &KafkaNotifier{writer: writer, topic: topic}, nil
}

func (k *KafkaNotifier) Send(ctx context.Context, messages []Message) (Result, error) {
	if len(messages) == 0 {
		return Result{}, nil
	}

	msgs := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		payload, err := json.Marshal(m)
		if err != nil {
			return Result{}, fmt.Errorf("encode push message: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: k.topic,
			Key:   []byte(m.Token),
			Value: payload,
		})
	}

	err := k.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return Result{SuccessCount: len(msgs)}, nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		failed := writeErrs.Count()
		zap.L().Warn("Some push messages were not published",
			zap.Int("failed", failed),
			zap.Int("total", len(msgs)))
		return Result{SuccessCount: len(msgs) - failed, FailureCount: failed}, nil
	}
	return Result{FailureCount: len(msgs)}, fmt.Errorf("publish push messages: %w", err)
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
