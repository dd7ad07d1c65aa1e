//go:build integration

package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaBrokers returns INTEGRATION_REDPANDA_BROKERS split on commas, or
// the local broker.
func RedpandaBrokers() []string {
	if brokers := os.Getenv("INTEGRATION_REDPANDA_BROKERS"); brokers != "" {
		return strings.Split(brokers, ",")
	}
	return []string{"localhost:9092"}
}

var topicSanitizer = strings.NewReplacer("/", "-", " ", "-", "_", "-")

// UniqueTopic names a fresh topic for t so runs never see each other's records.
func UniqueTopic(t *testing.T) string {
	t.Helper()
	return "it-" + strings.ToLower(topicSanitizer.Replace(t.Name())) + "-" + uuid.Must(uuid.NewV7()).String()[:8]
}

// ConsumeRecords reads topic from the start until want records arrive or
// five seconds pass, and returns what it got.
func ConsumeRecords(t *testing.T, topic string, want int) []*kgo.Record {
	t.Helper()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(RedpandaBrokers()...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		t.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < want && ctx.Err() == nil {
		consumer.PollFetches(ctx).EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}
