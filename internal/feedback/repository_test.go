package feedback

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRepository_Create(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f := &Form{
		ArtistID: "artist-1",
		Name:     "EP Feedback",
		Pairs:    []Pair{{"s1", "s2"}, {"s3", "s4"}},
	}

	if err := repo.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if f.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if f.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	retrieved, err := repo.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if retrieved.Name != "EP Feedback" {
		t.Errorf("Expected name 'EP Feedback', got %s", retrieved.Name)
	}
	if len(retrieved.Pairs) != 2 {
		t.Errorf("Expected 2 pairs, got %d", len(retrieved.Pairs))
	}
}

func TestInMemoryRepository_Create_PreservesGivenID(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f := &Form{
		ID:       "fixed-id",
		ArtistID: "artist-1",
		Name:     "Fixed",
		Pairs:    []Pair{{"s1", "s2"}},
	}

	if err := repo.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if f.ID != "fixed-id" {
		t.Errorf("Expected ID fixed-id, got %s", f.ID)
	}
}

func TestInMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrFormNotFound) {
		t.Errorf("Expected ErrFormNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ListByArtist_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	base := time.Now()
	older := &Form{ArtistID: "artist-1", Name: "Older", Pairs: []Pair{{"s1", "s2"}}, CreatedAt: base.Add(-time.Hour)}
	newer := &Form{ArtistID: "artist-1", Name: "Newer", Pairs: []Pair{{"s3", "s4"}}, CreatedAt: base}
	other := &Form{ArtistID: "artist-2", Name: "Other", Pairs: []Pair{{"s5", "s6"}}, CreatedAt: base}

	for _, f := range []*Form{older, newer, other} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	forms, err := repo.ListByArtist(ctx, "artist-1")
	if err != nil {
		t.Fatalf("ListByArtist failed: %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("Expected 2 forms, got %d", len(forms))
	}
	if forms[0].Name != "Newer" || forms[1].Name != "Older" {
		t.Errorf("Expected newest first [Newer, Older], got [%s, %s]", forms[0].Name, forms[1].Name)
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f := &Form{ArtistID: "artist-1", Name: "Shielded", Pairs: []Pair{{"s1", "s2"}}}
	if err := repo.Create(ctx, f); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	retrieved.Pairs[0] = Pair{"x", "y"}

	again, err := repo.GetByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Pairs[0] != (Pair{"s1", "s2"}) {
		t.Error("Mutating a returned form's pairs should not affect stored state")
	}
}
