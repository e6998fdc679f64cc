package archive

import (
	"context"
	"log/slog"

	"github.com/kass/go-aqi-viz/pkg/models"
	"github.com/kass/go-aqi-viz/pkg/provider"
)

// Recorder persists a directory snapshot
type Recorder interface {
	Record(ctx context.Context, dir models.Directory) (int, error)
}

// RecordingFetcher archives every snapshot fetched through it. Archive
// failures are logged and never reach the caller.
type RecordingFetcher struct {
	next     provider.Fetcher
	recorder Recorder
	logger   *slog.Logger
}

// NewRecordingFetcher wraps next so that successful fetches are recorded
func NewRecordingFetcher(next provider.Fetcher, recorder Recorder, logger *slog.Logger) *RecordingFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingFetcher{next: next, recorder: recorder, logger: logger}
}

// FetchStations fetches from the wrapped fetcher and records the result
func (f *RecordingFetcher) FetchStations(ctx context.Context) (models.Directory, error) {
	dir, err := f.next.FetchStations(ctx)
	if err != nil {
		return dir, err
	}

	n, err := f.recorder.Record(context.WithoutCancel(ctx), dir)
	if err != nil {
		f.logger.Warn("archive write failed", "stations", len(dir.Stations), "error", err)
	} else {
		f.logger.Debug("archived snapshot", "rows", n, "fetched_at", dir.FetchedAt)
	}
	return dir, nil
}
