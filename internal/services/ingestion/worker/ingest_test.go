package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cornjacket/catalog-ingest/internal/services/ingestion"
)

func newRiverJob(jobID int64) *river.Job[IngestArgs] {
	return &river.Job[IngestArgs]{
		JobRow: &rivertype.JobRow{ID: 900, Attempt: 1, Kind: IngestArgs{}.Kind()},
		Args:   IngestArgs{JobID: jobID},
	}
}

func TestIngestArgs_InsertOpts(t *testing.T) {
	opts := IngestArgs{}.InsertOpts()
	assert.Equal(t, QueueIngest, opts.Queue)
	assert.Equal(t, 1, opts.MaxAttempts)
	assert.Equal(t, "catalog_ingest", IngestArgs{}.Kind())
}

func TestIngestWorker_RunsJobWithStoredContent(t *testing.T) {
	var ranWith []byte
	w := NewIngestWorker(
		&mockJobSource{
			ContentFn: func(ctx context.Context, id int64) ([]byte, error) {
				assert.Equal(t, int64(5), id)
				return []byte("sku,name\na1,Widget\n"), nil
			},
		},
		&mockJobRunner{
			RunFn: func(ctx context.Context, jobID int64, content []byte) error {
				ranWith = content
				return nil
			},
		},
		time.Hour, testLogger(),
	)

	require.NoError(t, w.Work(context.Background(), newRiverJob(5)))
	assert.Equal(t, "sku,name\na1,Widget\n", string(ranWith))
}

func TestIngestWorker_RunFailureIsNotRetried(t *testing.T) {
	runErr := errors.New("line 4: price: invalid price")
	w := NewIngestWorker(
		&mockJobSource{ContentFn: func(context.Context, int64) ([]byte, error) { return []byte("x"), nil }},
		&mockJobRunner{RunFn: func(context.Context, int64, []byte) error { return runErr }},
		time.Hour, testLogger(),
	)

	err := w.Work(context.Background(), newRiverJob(5))
	require.Error(t, err)

	assert.ErrorIs(t, err, runErr)
	assert.Contains(t, err.Error(), "invalid price")
}

func TestIngestWorker_MissingContent(t *testing.T) {
	w := NewIngestWorker(
		&mockJobSource{
			ContentFn: func(context.Context, int64) ([]byte, error) { return nil, ingestion.ErrJobNotFound },
			MarkFailedFn: func(context.Context, int64, string, time.Time) error {
				t.Fatal("MarkFailed should not be called for a finished job")
				return nil
			},
		},
		&mockJobRunner{RunFn: func(context.Context, int64, []byte) error {
			t.Fatal("Run should not be called without content")
			return nil
		}},
		time.Hour, testLogger(),
	)

	err := w.Work(context.Background(), newRiverJob(5))
	assert.ErrorIs(t, err, ingestion.ErrJobNotFound)
}

func TestIngestWorker_ContentLoadErrorFailsJob(t *testing.T) {
	var failedWith string
	w := NewIngestWorker(
		&mockJobSource{
			ContentFn: func(context.Context, int64) ([]byte, error) { return nil, errors.New("too many connections") },
			MarkFailedFn: func(_ context.Context, id int64, message string, _ time.Time) error {
				failedWith = message
				return nil
			},
		},
		&mockJobRunner{},
		time.Hour, testLogger(),
	)

	require.Error(t, w.Work(context.Background(), newRiverJob(5)))
	assert.Equal(t, "failed to load upload: too many connections", failedWith)
}

func TestIngestWorker_Timeout(t *testing.T) {
	assert.Equal(t, 2*time.Hour, NewIngestWorker(nil, nil, 2*time.Hour, testLogger()).Timeout(nil))
	assert.Equal(t, time.Duration(-1), NewIngestWorker(nil, nil, 0, testLogger()).Timeout(nil))
}
