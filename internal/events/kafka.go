package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes transfer events to a Kafka topic, keyed by namespace and
// token id so per-token ordering survives partitioning.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// kafkaPayload is the JSON structure consumed by off-chain indexers.
type kafkaPayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	TokenID   int64  `json:"token_id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	At        string `json:"at"`
}

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, ev Transfer) error {
	payload := kafkaPayload{
		ID:        uuid.NewString(),
		From:      ev.From.String(),
		To:        ev.To.String(),
		TokenID:   int64(ev.TokenID),
		Namespace: ev.Namespace.String(),
		Name:      ev.Name,
		At:        ev.At.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	record := &kgo.Record{
		Key:   fmt.Appendf(nil, "%s/%d", ev.Namespace, ev.TokenID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce transfer event: %w", err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}
