package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/middleware"
)

// CreateFormRequest represents the request body for creating a feedback form.
type CreateFormRequest struct {
	Name  string      `json:"name"`
	Pairs [][2]string `json:"song_pairs"`
}

// FeedbackHandlers holds dependencies for feedback form HTTP handlers.
type FeedbackHandlers struct {
	service *feedback.Service
	repo    feedback.Repository
}

// NewFeedbackHandlers creates a new FeedbackHandlers instance.
func NewFeedbackHandlers(service *feedback.Service, repo feedback.Repository) *FeedbackHandlers {
	return &FeedbackHandlers{
		service: service,
		repo:    repo,
	}
}

// CreateForm handles POST /feedback - creates a feedback form for the
// authenticated artist. Validation is all-or-nothing: any invalid pair
// rejects the whole form.
func (h *FeedbackHandlers) CreateForm(w http.ResponseWriter, r *http.Request) {
	artistID, ok := requireArtist(w, r)
	if !ok {
		return
	}

	var req CreateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	pairs := make([]feedback.Pair, len(req.Pairs))
	for i, p := range req.Pairs {
		pairs[i] = feedback.Pair(p)
	}

	form, err := h.service.Create(r.Context(), artistID, req.Name, pairs)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalidForm) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "failed to create feedback form", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create feedback form")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(form); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ListForms handles GET /feedback - lists the authenticated artist's forms.
func (h *FeedbackHandlers) ListForms(w http.ResponseWriter, r *http.Request) {
	artistID, ok := requireArtist(w, r)
	if !ok {
		return
	}

	forms, err := h.repo.ListByArtist(r.Context(), artistID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list feedback forms", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list feedback forms")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string][]*feedback.Form{"forms": forms}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// GetForm handles GET /feedback/{id} - fetches a form so listeners can
// start a scripted session. This endpoint is public.
func (h *FeedbackHandlers) GetForm(w http.ResponseWriter, r *http.Request) {
	formID := strings.TrimPrefix(r.URL.Path, "/feedback/")
	if formID == "" || strings.Contains(formID, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Form ID is required")
		return
	}

	form, err := h.repo.GetByID(r.Context(), formID)
	if err != nil {
		if errors.Is(err, feedback.ErrFormNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Feedback form not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to retrieve feedback form", "error", err, "form_id", formID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve feedback form")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(form); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
