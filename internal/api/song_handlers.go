package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/waveform-labs/trackduel/internal/middleware"
	"github.com/waveform-labs/trackduel/internal/song"
	"github.com/waveform-labs/trackduel/internal/storage"
	"github.com/waveform-labs/trackduel/internal/validate"
)

// ObjectStore is the slice of the storage service the song handlers use.
type ObjectStore interface {
	SignPlaybackURL(ctx context.Context, key string) (*storage.SignedURL, error)
	SignUploadURL(ctx context.Context, artistID, songName, contentType string, sizeBytes int64) (*storage.SignedURL, error)
	DeleteObject(ctx context.Context, key string) error
}

// CreateSongRequest represents the request body for registering a song.
// Either file_path references an already-uploaded object, or content_type
// and size_bytes request a signed upload URL for a new object.
type CreateSongRequest struct {
	Name        string `json:"name"`
	FilePath    string `json:"file_path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// CreateSongResponse is the created song plus, when a new object was
// requested, a signed PUT URL to upload the audio to.
type CreateSongResponse struct {
	Song      *song.Song         `json:"song"`
	UploadURL *storage.SignedURL `json:"upload_url,omitempty"`
}

// PlaybackURLResponse is a time-limited streaming URL for a song.
type PlaybackURLResponse struct {
	SongID    string `json:"song_id"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

// SongHandlers holds dependencies for song HTTP handlers.
type SongHandlers struct {
	repo  song.Repository
	store ObjectStore
}

// NewSongHandlers creates a new SongHandlers instance.
func NewSongHandlers(repo song.Repository, store ObjectStore) *SongHandlers {
	return &SongHandlers{
		repo:  repo,
		store: store,
	}
}

// extractSongID extracts the song ID from the URL path.
func extractSongID(r *http.Request) (string, error) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/songs/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return "", fmt.Errorf("song ID is required")
	}
	return pathParts[0], nil
}

// requireArtist resolves the authenticated artist id or writes a 401.
func requireArtist(w http.ResponseWriter, r *http.Request) (string, bool) {
	artistID := middleware.GetArtistID(r.Context())
	if artistID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return "", false
	}
	return artistID, true
}

// CreateSong handles POST /songs - registers a new song for the
// authenticated artist. The song starts at the default rating.
func (h *SongHandlers) CreateSong(w http.ResponseWriter, r *http.Request) {
	artistID, ok := requireArtist(w, r)
	if !ok {
		return
	}

	var req CreateSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	name, err := validate.DisplayName(req.Name)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid song name: "+err.Error())
		return
	}

	var uploadURL *storage.SignedURL
	filePath := req.FilePath
	if filePath == "" {
		if req.ContentType == "" {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Either file_path or content_type is required")
			return
		}
		uploadURL, err = h.store.SignUploadURL(r.Context(), artistID, name, req.ContentType, req.SizeBytes)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrUnsupportedType):
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnsupportedType)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType, "Unsupported audio content type")
			case errors.Is(err, storage.ErrFileTooLarge):
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
				WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
			default:
				slog.ErrorContext(r.Context(), "failed to sign upload url", "error", err)
				ctx := middleware.SetErrorCode(r.Context(), ErrCodeStorageFailure)
				WriteError(w, ctx, http.StatusBadGateway, ErrCodeStorageFailure, "Failed to prepare upload")
			}
			return
		}
		filePath = uploadURL.Key
	}

	newSong := &song.Song{
		ArtistID: artistID,
		Name:     name,
		FilePath: filePath,
	}
	if err := h.repo.Create(r.Context(), newSong); err != nil {
		slog.ErrorContext(r.Context(), "failed to create song", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create song")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(CreateSongResponse{Song: newSong, UploadURL: uploadURL}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ListSongs handles GET /songs - lists the authenticated artist's songs.
func (h *SongHandlers) ListSongs(w http.ResponseWriter, r *http.Request) {
	artistID, ok := requireArtist(w, r)
	if !ok {
		return
	}

	songs, err := h.repo.ListByArtist(r.Context(), artistID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list songs", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list songs")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string][]*song.Song{"songs": songs}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// PlaybackURL handles GET /songs/{id}/url - returns a time-limited
// streaming URL for the song's audio object.
func (h *SongHandlers) PlaybackURL(w http.ResponseWriter, r *http.Request) {
	songID, err := extractSongID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Song ID is required")
		return
	}

	s, err := h.repo.GetByID(r.Context(), songID)
	if err != nil {
		if errors.Is(err, song.ErrSongNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Song not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve song", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve song")
		return
	}

	signed, err := h.store.SignPlaybackURL(r.Context(), s.FilePath)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to sign playback url", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStorageFailure)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeStorageFailure, "Failed to sign playback URL")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := PlaybackURLResponse{
		SongID:    s.ID,
		URL:       signed.URL,
		ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// DeleteSong handles DELETE /songs/{id} - removes the stored audio object
// first, then the song row. Only the owning artist may delete.
func (h *SongHandlers) DeleteSong(w http.ResponseWriter, r *http.Request) {
	artistID, ok := requireArtist(w, r)
	if !ok {
		return
	}

	songID, err := extractSongID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Song ID is required")
		return
	}

	s, err := h.repo.GetByID(r.Context(), songID)
	if err != nil {
		if errors.Is(err, song.ErrSongNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Song not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve song", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve song")
		return
	}

	if s.ArtistID != artistID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You do not own this song")
		return
	}

	// The object goes first. If storage fails the row stays, so the
	// delete can be retried without leaving an orphaned object.
	if err := h.store.DeleteObject(r.Context(), s.FilePath); err != nil {
		slog.ErrorContext(r.Context(), "failed to delete audio object", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStorageFailure)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeStorageFailure, "Failed to delete audio object")
		return
	}

	if err := h.repo.Delete(r.Context(), songID); err != nil {
		slog.ErrorContext(r.Context(), "failed to delete song", "error", err, "song_id", songID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to delete song")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
