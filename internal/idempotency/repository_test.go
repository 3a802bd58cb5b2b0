package idempotency

import (
	"strings"
	"testing"
)

func TestInMemoryRepository_Get(t *testing.T) {
	repo := NewInMemoryRepository()

	// Key not found
	_, err := repo.Get("nonexistent")
	if err != ErrKeyNotFound {
		t.Errorf("Get() error = %v, want %v", err, ErrKeyNotFound)
	}

	key := &IdempotencyKey{
		Key:                "listener-key-1",
		Method:             "POST",
		Route:              "/comparisons",
		ResponseHash:       "abc123",
		Status:             StatusCompleted,
		ResponseBody:       `{"winner_id":"s1","loser_id":"s2"}`,
		ResponseStatusCode: 201,
	}
	if err := repo.Store(key); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	retrieved, err := repo.Get("listener-key-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if retrieved.Key != key.Key {
		t.Errorf("Get() Key = %v, want %v", retrieved.Key, key.Key)
	}
	if retrieved.Route != key.Route {
		t.Errorf("Get() Route = %v, want %v", retrieved.Route, key.Route)
	}
	if retrieved.ResponseBody != key.ResponseBody {
		t.Errorf("Get() ResponseBody = %v, want %v", retrieved.ResponseBody, key.ResponseBody)
	}
}

func TestInMemoryRepository_Store_Duplicate(t *testing.T) {
	repo := NewInMemoryRepository()

	key := &IdempotencyKey{
		Key:                "listener-key-1",
		Method:             "POST",
		Route:              "/comparisons",
		ResponseHash:       "abc123",
		Status:             StatusCompleted,
		ResponseBody:       `{"winner_id":"s1","loser_id":"s2"}`,
		ResponseStatusCode: 201,
	}

	if err := repo.Store(key); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	err := repo.Store(key)
	if err != ErrKeyExists {
		t.Errorf("Store() duplicate error = %v, want %v", err, ErrKeyExists)
	}
}

func TestInMemoryRepository_Store_InvalidKey(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		name      string
		key       string
		expectErr error
	}{
		{
			name:      "empty key",
			key:       "",
			expectErr: ErrInvalidKey,
		},
		{
			name:      "key too long",
			key:       strings.Repeat("a", MaxKeyLength+1),
			expectErr: ErrKeyTooLong,
		},
		{
			name:      "key at max length",
			key:       strings.Repeat("a", MaxKeyLength),
			expectErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &IdempotencyKey{
				Key:    tt.key,
				Method: "POST",
				Route:  "/comparisons",
				Status: StatusProcessing,
			}
			err := repo.Store(record)
			if err != tt.expectErr {
				t.Errorf("Store() error = %v, want %v", err, tt.expectErr)
			}
		})
	}
}

func TestInMemoryRepository_Store_CopiesRecord(t *testing.T) {
	repo := NewInMemoryRepository()

	key := &IdempotencyKey{
		Key:          "listener-key-1",
		Method:       "POST",
		Route:        "/comparisons",
		Status:       StatusCompleted,
		ResponseBody: `{"winner_id":"a"}`,
	}
	if err := repo.Store(key); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// Stored record is a copy: mutating the original must not leak
	key.ResponseBody = "mutated"
	retrieved, err := repo.Get("listener-key-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if retrieved.ResponseBody != `{"winner_id":"a"}` {
		t.Errorf("Stored ResponseBody changed to %q after external mutation", retrieved.ResponseBody)
	}
}
