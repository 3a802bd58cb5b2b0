package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/waveform-labs/trackduel/internal/comparison"
	"github.com/waveform-labs/trackduel/internal/middleware"
	"github.com/waveform-labs/trackduel/internal/song"
)

// RecordComparisonRequest represents the request body for recording a
// comparison outcome.
type RecordComparisonRequest struct {
	WinnerID string  `json:"winner_id"`
	LoserID  string  `json:"loser_id"`
	FormID   *string `json:"form_id,omitempty"`
}

// ComparisonHandlers holds dependencies for comparison HTTP handlers.
type ComparisonHandlers struct {
	recorder *comparison.Recorder
	ledger   comparison.Ledger
}

// NewComparisonHandlers creates a new ComparisonHandlers instance.
func NewComparisonHandlers(recorder *comparison.Recorder, ledger comparison.Ledger) *ComparisonHandlers {
	return &ComparisonHandlers{recorder: recorder, ledger: ledger}
}

// RecordComparison handles POST /comparisons - records a decided matchup
// and applies the rating update atomically. The endpoint sits behind the
// idempotency middleware, so retried submissions with the same
// Idempotency-Key replay the original response instead of double-counting.
func (h *ComparisonHandlers) RecordComparison(w http.ResponseWriter, r *http.Request) {
	var req RecordComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.WinnerID == "" || req.LoserID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "winner_id and loser_id are required")
		return
	}

	result, err := h.recorder.Record(r.Context(), req.WinnerID, req.LoserID, req.FormID)
	if err != nil {
		switch {
		case errors.Is(err, comparison.ErrSamePair):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "winner_id and loser_id must be different songs")
		case errors.Is(err, song.ErrSongNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Song not found")
		case errors.Is(err, comparison.ErrTransient):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Comparison could not be recorded, please retry")
		default:
			slog.ErrorContext(r.Context(), "failed to record comparison", "error", err,
				"winner_id", req.WinnerID, "loser_id", req.LoserID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record comparison")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// SongHistory handles GET /songs/{id}/comparisons - lists the ledger rows
// in which the song appears, newest first. History survives song deletion,
// so this endpoint does not check that the song still exists.
func (h *ComparisonHandlers) SongHistory(w http.ResponseWriter, r *http.Request) {
	songID, err := extractSongID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Song ID is required")
		return
	}

	rows, err := h.ledger.ListBySong(r.Context(), songID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list comparisons", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list comparisons")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string][]*comparison.Comparison{"comparisons": rows}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
