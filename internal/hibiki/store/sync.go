package store

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSyncValue returns the stored Matrix sync value for (userID, key), or ""
// when none is recorded.
func (s *Store) GetSyncValue(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM matrix_sync_state WHERE user_id = ? AND key = ?",
		userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync value %s/%s: %w", userID, key, err)
	}
	return value, nil
}

// SetSyncValue stores a Matrix sync value for (userID, key).
func (s *Store) SetSyncValue(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matrix_sync_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	if err != nil {
		return fmt.Errorf("set sync value %s/%s: %w", userID, key, err)
	}
	return nil
}
