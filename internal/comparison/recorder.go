package comparison

import (
	"context"
	"errors"
	"log/slog"

	"github.com/waveform-labs/trackduel/internal/rating"
	"github.com/waveform-labs/trackduel/internal/song"
)

// maxAttempts bounds internal retries when an apply loses a concurrency
// race before the failure is surfaced as ErrTransient.
const maxAttempts = 3

// Recorder validates and records comparison outcomes. It owns the only
// write path for ratings.
type Recorder struct {
	store   Store
	metrics *Metrics
	logger  *slog.Logger
}

// NewRecorder creates a Recorder. metrics may be nil to disable
// instrumentation; logger falls back to slog.Default.
func NewRecorder(store Store, metrics *Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, metrics: metrics, logger: logger}
}

// Record applies the winner/loser decision: both ratings are read,
// updated via the Elo formula and persisted together with the ledger row
// as one unit. formID optionally ties the row to a feedback form.
//
// Validation failures (same pair, unknown song) are never retried.
// Concurrency conflicts inside the store are retried up to maxAttempts
// before ErrTransient is returned.
func (r *Recorder) Record(ctx context.Context, winnerID, loserID string, formID *string) (*Result, error) {
	if winnerID == loserID {
		return nil, ErrSamePair
	}
	if winnerID == "" || loserID == "" {
		return nil, song.ErrSongNotFound
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := r.store.Apply(ctx, winnerID, loserID, formID, rating.Update)
		if err == nil {
			if r.metrics != nil {
				r.metrics.IncRecorded()
			}
			return res, nil
		}
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}

		lastErr = err
		if r.metrics != nil {
			r.metrics.IncConflicts()
		}
		r.logger.Warn("comparison apply lost a concurrency race, retrying",
			"winner_id", winnerID,
			"loser_id", loserID,
			"attempt", attempt,
		)
	}
	return nil, lastErr
}
