// Package bus publishes outbox events to the external message bus.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher publishes events to Kafka with acknowledged writes.
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaPublisher connects a synchronous producer. The producer waits for
// acknowledgement from all in-sync replicas; sendTimeout bounds the wait so
// a stalled broker surfaces as a publish failure the dispatcher can retry.
func NewKafkaPublisher(brokers []string, sendTimeout time.Duration) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = sendTimeout
	cfg.Net.DialTimeout = sendTimeout
	cfg.Net.WriteTimeout = sendTimeout
	cfg.Net.ReadTimeout = sendTimeout

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer}, nil
}

// Publish sends one message and waits for broker acknowledgement. The key
// selects the partition, preserving per-key ordering on the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
