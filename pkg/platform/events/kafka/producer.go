// Package kafka wraps the franz-go client for the event relay. The producer
// publishes outbox entries to the events topic; EnsureTopic makes startup
// idempotent against a fresh broker.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic is the single stream all ledger events relay to, keyed by aggregate
// id so per-soul ordering survives partitioning.
const Topic = "soulledger.events"

// Producer publishes event records to Kafka.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the given brokers. Records are produced with
// idempotence enabled (the kgo default) and await acks from all replicas.
func NewProducer(brokers []string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Producer{client: client}, nil
}

// EnsureTopic creates the events topic if the broker does not have it yet.
// Existing topics are left untouched.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", Topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", Topic, resp.Err)
	}
	return nil
}

// Publish produces one record synchronously and returns once the broker has
// acknowledged it.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	record := &kgo.Record{Topic: Topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", Topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
