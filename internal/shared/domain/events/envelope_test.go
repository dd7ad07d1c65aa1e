package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/catalog-ingest/internal/shared/domain/clock"
)

func TestNewEnvelope(t *testing.T) {
	fixed := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	clock.Set(clock.FixedClock{Time: fixed})
	t.Cleanup(clock.Reset)

	env, err := NewEnvelope(UploadCompleted, UploadSummary{JobID: 42, TotalRows: 2500})
	require.NoError(t, err)

	assert.False(t, env.EventID.IsNil(), "EventID should not be nil")
	assert.Equal(t, byte(7), env.EventID.Version())
	assert.Equal(t, UploadCompleted, env.Type)
	assert.Equal(t, fixed, env.OccurredAt)
	assert.JSONEq(t, `{"job_id":42,"total_rows":2500}`, string(env.Payload))
}

func TestNewEnvelope_UniqueIDs(t *testing.T) {
	a, err := NewEnvelope(ProductCreated, ProductRef{ID: 1, SKU: "A1", Name: "Widget"})
	require.NoError(t, err)
	b, err := NewEnvelope(ProductCreated, ProductRef{ID: 1, SKU: "A1", Name: "Widget"})
	require.NoError(t, err)

	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestNewEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope(ProductCreated, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product.created")
}

func TestParsePayload(t *testing.T) {
	env, err := NewEnvelope(ProductUpdated, ProductRef{ID: 7, SKU: "B2", Name: "Gadget"})
	require.NoError(t, err)

	var ref ProductRef
	require.NoError(t, env.ParsePayload(&ref))
	assert.Equal(t, ProductRef{ID: 7, SKU: "B2", Name: "Gadget"}, ref)
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseType("product.archived")
	assert.Error(t, err)

	_, err = ParseType("")
	assert.Error(t, err)
}

func TestEnvelope_JSONShape(t *testing.T) {
	env, err := NewEnvelope(ProductDeleted, ProductRef{ID: 3, SKU: "C3", Name: "Thing"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "product.deleted", decoded["event_type"])
	assert.Contains(t, decoded, "event_id")
	assert.Contains(t, decoded, "occurred_at")
	assert.Equal(t, map[string]any{"id": float64(3), "sku": "C3", "name": "Thing"}, decoded["payload"])
}
