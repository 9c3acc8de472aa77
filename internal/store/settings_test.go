package store

import (
	"context"
	"testing"

	"github.com/erazemk/popis/internal/db"
)

func TestSecretIsStable(t *testing.T) {
	s := New(db.NewTestDB(t))
	ctx := context.Background()

	first, err := s.Secret(ctx, TokenSecretKey)
	if err != nil {
		t.Fatalf("Secret: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}

	second, err := s.Secret(ctx, TokenSecretKey)
	if err != nil {
		t.Fatalf("Secret: %v", err)
	}
	if first != second {
		t.Error("expected the stored secret to be returned on subsequent calls")
	}
}
