package song

import (
	"context"
	"errors"
	"testing"

	"github.com/waveform-labs/trackduel/internal/rating"
)

func TestInMemoryRepository_Create(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{
		ArtistID: "artist-1",
		Name:     "First Track",
		FilePath: "songs/artist-1/first.mp3",
	}

	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if s.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if s.Elo != rating.Default {
		t.Errorf("Expected default rating %d, got %d", rating.Default, s.Elo)
	}
	if s.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	retrieved, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Name != "First Track" {
		t.Errorf("Expected name 'First Track', got %s", retrieved.Name)
	}
}

func TestInMemoryRepository_Create_PreservesRating(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{
		ArtistID: "artist-1",
		Name:     "Ranked Track",
		FilePath: "songs/artist-1/ranked.mp3",
		Elo:      1720,
	}

	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Elo != 1720 {
		t.Errorf("Expected rating 1720, got %d", retrieved.Elo)
	}
}

func TestInMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound, got %v", err)
	}
}

func TestInMemoryRepository_GetByIDs(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := &Song{ArtistID: "artist-1", Name: "One", FilePath: "songs/artist-1/one.mp3"}
	second := &Song{ArtistID: "artist-1", Name: "Two", FilePath: "songs/artist-1/two.mp3"}
	for _, s := range []*Song{first, second} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Input order is preserved
	songs, err := repo.GetByIDs(ctx, []string{second.ID, first.ID})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("Expected 2 songs, got %d", len(songs))
	}
	if songs[0].ID != second.ID || songs[1].ID != first.ID {
		t.Errorf("Expected input order [%s, %s], got [%s, %s]", second.ID, first.ID, songs[0].ID, songs[1].ID)
	}
}

func TestInMemoryRepository_GetByIDs_MissingSong(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{ArtistID: "artist-1", Name: "Only", FilePath: "songs/artist-1/only.mp3"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := repo.GetByIDs(ctx, []string{s.ID, "nonexistent"})
	if !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ListByArtist(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		s := &Song{ArtistID: "artist-1", Name: name, FilePath: "songs/artist-1/" + name + ".mp3"}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	other := &Song{ArtistID: "artist-2", Name: "Other", FilePath: "songs/artist-2/other.mp3"}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	songs, err := repo.ListByArtist(ctx, "artist-1")
	if err != nil {
		t.Fatalf("ListByArtist failed: %v", err)
	}
	if len(songs) != 3 {
		t.Errorf("Expected 3 songs for artist-1, got %d", len(songs))
	}
	for _, s := range songs {
		if s.ArtistID != "artist-1" {
			t.Errorf("Expected only artist-1 songs, got artist %s", s.ArtistID)
		}
	}

	empty, err := repo.ListByArtist(ctx, "artist-3")
	if err != nil {
		t.Fatalf("ListByArtist failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no songs for unknown artist, got %d", len(empty))
	}
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{ArtistID: "artist-1", Name: "Doomed", FilePath: "songs/artist-1/doomed.mp3"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.GetByID(ctx, s.ID); !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound after delete, got %v", err)
	}

	if err := repo.Delete(ctx, s.ID); !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound on second delete, got %v", err)
	}
}

func TestInMemoryRepository_UpdateRating(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{ArtistID: "artist-1", Name: "Rated", FilePath: "songs/artist-1/rated.mp3"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateRating(s.ID, 1612); err != nil {
		t.Fatalf("UpdateRating failed: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Elo != 1612 {
		t.Errorf("Expected rating 1612, got %d", retrieved.Elo)
	}

	if err := repo.UpdateRating("nonexistent", 1500); !errors.Is(err, ErrSongNotFound) {
		t.Errorf("Expected ErrSongNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	s := &Song{ArtistID: "artist-1", Name: "Shielded", FilePath: "songs/artist-1/shielded.mp3"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	retrieved.Elo = 9999

	again, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Elo == 9999 {
		t.Error("Mutating a returned song should not affect stored state")
	}
}
