package worker

import (
	"context"
	"io"
	"log/slog"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobSource implements JobSource for testing.
type mockJobSource struct {
	ContentFn    func(ctx context.Context, id int64) ([]byte, error)
	MarkFailedFn func(ctx context.Context, id int64, message string, at time.Time) error
}

func (m *mockJobSource) Content(ctx context.Context, id int64) ([]byte, error) {
	return m.ContentFn(ctx, id)
}

func (m *mockJobSource) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return m.MarkFailedFn(ctx, id, message, at)
}

// mockJobRunner implements JobRunner for testing.
type mockJobRunner struct {
	RunFn func(ctx context.Context, jobID int64, content []byte) error
}

func (m *mockJobRunner) Run(ctx context.Context, jobID int64, content []byte) error {
	return m.RunFn(ctx, jobID, content)
}
