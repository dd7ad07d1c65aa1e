package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/events"
)

const (
	clientID = "catalogd"
	// A record nobody can accept fails instead of buffering forever.
	recordDeliveryTimeout = 30 * time.Second
)

// Producer mirrors catalog events onto a single Redpanda topic. Records are
// keyed by event type, so each type keeps its order within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewProducer creates a producer for topic. The topic is created on first
// write if the broker allows it.
func NewProducer(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(recordDeliveryTimeout),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda client: %w", err)
	}

	return &Producer{
		client: client,
		topic:  topic,
		logger: logger.With("component", "redpanda-producer"),
	}, nil
}

// Publish writes env and waits for the broker to acknowledge it.
func (p *Producer) Publish(ctx context.Context, env *events.Envelope) error {
	record, err := newRecord(p.topic, env)
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", env.Type, p.topic, err)
	}

	p.logger.Debug("event published",
		"topic", p.topic,
		"event_id", env.EventID,
		"event_type", env.Type,
		"partition", record.Partition,
		"offset", record.Offset,
	)
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
	p.logger.Info("Redpanda producer closed")
}

func newRecord(topic string, env *events.Envelope) (*kgo.Record, error) {
	value, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	r := kgo.KeySliceRecord([]byte(env.Type), value)
	r.Topic = topic
	r.Headers = []kgo.RecordHeader{
		{Key: "event_type", Value: []byte(env.Type)},
		{Key: "event_id", Value: []byte(env.EventID.String())},
	}
	return r, nil
}

var _ events.Publisher = (*Producer)(nil)
