package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenSecretKey is the settings key holding the actor token signing secret.
const TokenSecretKey = "token_secret"

// Secret returns the random secret stored under key, generating and storing
// one first if none exists. The insert-then-read order keeps concurrent
// callers agreeing on a single value.
func (s *Store) Secret(ctx context.Context, key string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", key, err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := s.exec(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var secret string
	err = s.queryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return secret, nil
}
