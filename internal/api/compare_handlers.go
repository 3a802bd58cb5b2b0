package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/matchup"
	"github.com/waveform-labs/trackduel/internal/middleware"
	"github.com/waveform-labs/trackduel/internal/song"
)

// PairSide is one half of a matchup in the wire format.
type PairSide struct {
	Song      *song.Song `json:"song"`
	URL       string     `json:"url"`
	ExpiresAt string     `json:"expires_at"`
}

// PairResponse is a presented matchup.
type PairResponse struct {
	Left  PairSide `json:"left"`
	Right PairSide `json:"right"`
}

// CompareHandlers holds dependencies for matchup HTTP handlers.
type CompareHandlers struct {
	selector *matchup.Selector
}

// NewCompareHandlers creates a new CompareHandlers instance.
func NewCompareHandlers(selector *matchup.Selector) *CompareHandlers {
	return &CompareHandlers{selector: selector}
}

func pairResponse(p *matchup.Pair) PairResponse {
	return PairResponse{
		Left: PairSide{
			Song:      p.Left.Song,
			URL:       p.Left.SignedURL,
			ExpiresAt: p.Left.ExpiresAt.UTC().Format(time.RFC3339),
		},
		Right: PairSide{
			Song:      p.Right.Song,
			URL:       p.Right.SignedURL,
			ExpiresAt: p.Right.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}
}

// NextAdaptivePair handles GET /compare?artist_id={id} - picks the next
// adaptive matchup among the artist's songs.
func (h *CompareHandlers) NextAdaptivePair(w http.ResponseWriter, r *http.Request) {
	artistID := r.URL.Query().Get("artist_id")
	if artistID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "artist_id query parameter is required")
		return
	}

	pair, err := h.selector.AdaptivePair(r.Context(), artistID)
	if err != nil {
		if errors.Is(err, matchup.ErrInsufficientSongs) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInsufficientSongs)
			WriteError(w, ctx, http.StatusConflict, ErrCodeInsufficientSongs, "At least two songs are required for a matchup")
			return
		}
		slog.ErrorContext(r.Context(), "failed to select adaptive pair", "error", err, "artist_id", artistID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to select a matchup")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(pairResponse(pair)); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// NextScriptedPair handles GET /feedback/{id}/next-pair?index={n} - returns
// the pair at the caller-carried cursor in the form's scripted sequence.
func (h *CompareHandlers) NextScriptedPair(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/feedback/"), "/")
	if len(pathParts) < 2 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Form ID is required")
		return
	}
	formID := pathParts[0]

	cursor := 0
	if indexStr := r.URL.Query().Get("index"); indexStr != "" {
		parsed, err := strconv.Atoi(indexStr)
		if err != nil || parsed < 0 {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "index must be a non-negative integer")
			return
		}
		cursor = parsed
	}

	pair, err := h.selector.ScriptedPair(r.Context(), formID, cursor)
	if err != nil {
		switch {
		case errors.Is(err, feedback.ErrFormNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Feedback form not found")
		case errors.Is(err, matchup.ErrSequenceExhausted):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeSequenceExhausted)
			WriteError(w, ctx, http.StatusGone, ErrCodeSequenceExhausted, "No pairs remain in this sequence")
		case errors.Is(err, song.ErrSongNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "A song in this pair no longer exists")
		default:
			slog.ErrorContext(r.Context(), "failed to select scripted pair", "error", err, "form_id", formID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to select a matchup")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(pairResponse(pair)); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
