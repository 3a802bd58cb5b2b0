package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/waveform-labs/trackduel/internal/feedback"
	"github.com/waveform-labs/trackduel/internal/song"
)

func newFeedbackFixture(t *testing.T) (*FeedbackHandlers, *song.InMemoryRepository, *feedback.InMemoryRepository) {
	t.Helper()
	songs := song.NewInMemoryRepository()
	forms := feedback.NewInMemoryRepository()
	service := feedback.NewService(songs, forms)
	return NewFeedbackHandlers(service, forms), songs, forms
}

func TestCreateForm(t *testing.T) {
	h, songs, _ := newFeedbackFixture(t)
	a := seedTestSong(t, songs, "artist-1", "alpha", 1500)
	b := seedTestSong(t, songs, "artist-1", "beta", 1600)

	body := `{"name": "Single Picks", "song_pairs": [["` + a.ID + `", "` + b.ID + `"]]}`
	req := authedRequest(http.MethodPost, "/feedback", strings.NewReader(body), "artist-1")
	rec := httptest.NewRecorder()
	h.CreateForm(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var form feedback.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &form); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if form.ID == "" {
		t.Error("expected form ID to be assigned")
	}
	if form.ArtistID != "artist-1" {
		t.Errorf("expected artist_id artist-1, got %q", form.ArtistID)
	}
	if len(form.Pairs) != 1 || form.Pairs[0][0] != a.ID {
		t.Errorf("unexpected pairs in response: %v", form.Pairs)
	}
}

func TestCreateForm_Unauthenticated(t *testing.T) {
	h, _, _ := newFeedbackFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{"name": "x"}`))
	rec := httptest.NewRecorder()
	h.CreateForm(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestCreateForm_InvalidJSON(t *testing.T) {
	h, _, _ := newFeedbackFixture(t)

	req := authedRequest(http.MethodPost, "/feedback", strings.NewReader(`{broken`), "artist-1")
	rec := httptest.NewRecorder()
	h.CreateForm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("expected code bad_request, got %q", resp.Error.Code)
	}
}

func TestCreateForm_ValidationRejectsWholeForm(t *testing.T) {
	h, songs, forms := newFeedbackFixture(t)
	a := seedTestSong(t, songs, "artist-1", "alpha", 1500)
	b := seedTestSong(t, songs, "artist-1", "beta", 1600)

	// Second pair references a song of a different artist.
	other := seedTestSong(t, songs, "artist-2", "foreign", 1500)
	body := `{"name": "Mixed", "song_pairs": [["` + a.ID + `", "` + b.ID + `"], ["` + a.ID + `", "` + other.ID + `"]]}`
	req := authedRequest(http.MethodPost, "/feedback", strings.NewReader(body), "artist-1")
	rec := httptest.NewRecorder()
	h.CreateForm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeErrorResponse(t, rec)
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected code validation_error, got %q", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "pair 1") {
		t.Errorf("expected message to name the failing pair, got %q", resp.Error.Message)
	}

	stored, err := forms.ListByArtist(req.Context(), "artist-1")
	if err != nil {
		t.Fatalf("ListByArtist failed: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected no form stored after a failed validation, got %d", len(stored))
	}
}

func TestListForms(t *testing.T) {
	h, songs, _ := newFeedbackFixture(t)
	a := seedTestSong(t, songs, "artist-1", "alpha", 1500)
	b := seedTestSong(t, songs, "artist-1", "beta", 1600)

	for _, name := range []string{"First", "Second"} {
		body := `{"name": "` + name + `", "song_pairs": [["` + a.ID + `", "` + b.ID + `"]]}`
		req := authedRequest(http.MethodPost, "/feedback", strings.NewReader(body), "artist-1")
		rec := httptest.NewRecorder()
		h.CreateForm(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	req := authedRequest(http.MethodGet, "/feedback", nil, "artist-1")
	rec := httptest.NewRecorder()
	h.ListForms(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string][]*feedback.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp["forms"]) != 2 {
		t.Errorf("expected 2 forms, got %d", len(resp["forms"]))
	}
}

func TestListForms_OtherArtistEmpty(t *testing.T) {
	h, _, _ := newFeedbackFixture(t)

	req := authedRequest(http.MethodGet, "/feedback", nil, "artist-9")
	rec := httptest.NewRecorder()
	h.ListForms(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string][]*feedback.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp["forms"]) != 0 {
		t.Errorf("expected no forms, got %d", len(resp["forms"]))
	}
}

func TestGetForm(t *testing.T) {
	h, _, forms := newFeedbackFixture(t)
	form := seedTestForm(t, forms, []feedback.Pair{{"s1", "s2"}})

	req := httptest.NewRequest(http.MethodGet, "/feedback/"+form.ID, nil)
	rec := httptest.NewRecorder()
	h.GetForm(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var got feedback.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != form.ID {
		t.Errorf("expected form %q, got %q", form.ID, got.ID)
	}
	if len(got.Pairs) != 1 {
		t.Errorf("expected 1 pair, got %d", len(got.Pairs))
	}
}

func TestGetForm_NotFound(t *testing.T) {
	h, _, _ := newFeedbackFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/feedback/missing", nil)
	rec := httptest.NewRecorder()
	h.GetForm(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeErrorResponse(t, rec); resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected code not_found, got %q", resp.Error.Code)
	}
}

func TestGetForm_BadPath(t *testing.T) {
	h, _, _ := newFeedbackFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/feedback/form-1/extra", nil)
	rec := httptest.NewRecorder()
	h.GetForm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}
