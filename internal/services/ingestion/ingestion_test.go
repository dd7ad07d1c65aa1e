package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule() (*Module, *memCatalog, *recordingEmitter) {
	catalogStore := newMemCatalog()
	emitter := &recordingEmitter{}
	m := New(Config{BatchSize: 2, MaxFileSize: 1024}, newMemJobStore(), catalogStore, &mockJobQueue{}, emitter, testLogger())
	return m, catalogStore, emitter
}

func TestImport_RunsToCompletion(t *testing.T) {
	m, catalogStore, emitter := newTestModule()

	progress, err := m.Import(context.Background(), "products.csv", []byte("sku,name,price\na1,Widget,1.50\nb2,Gadget,\nc3,Thing,3\n"))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, progress.Status)
	assert.Equal(t, 100, progress.Progress)
	assert.Equal(t, 3, progress.TotalRows)
	assert.Equal(t, 3, catalogStore.len())
	require.Len(t, emitter.uploads, 1)
	assert.Equal(t, 3, emitter.uploads[0].TotalRows)
}

func TestImport_FailedRunReturnsProgress(t *testing.T) {
	m, _, emitter := newTestModule()

	progress, err := m.Import(context.Background(), "products.csv", []byte("sku,name,price\na1,Widget,abc\n"))
	require.Error(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, StatusFailed, progress.Status)
	require.NotNil(t, progress.ErrorMessage)
	assert.Contains(t, *progress.ErrorMessage, "line 2")
	assert.Empty(t, emitter.uploads)
}

func TestImport_RejectsBeforeCreatingAJob(t *testing.T) {
	m, _, _ := newTestModule()

	_, err := m.Import(context.Background(), "products.txt", []byte("sku,name\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = m.Service.Progress(context.Background(), 1)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
