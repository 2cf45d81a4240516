package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ScriptSummaryRow is one cached script summary.
type ScriptSummaryRow struct {
	Name              string
	Description       string
	RequiresArguments bool
	ExampleUsage      string
	UpdatedAt         time.Time
}

// UpsertScriptSummary inserts or replaces the cached summary for a script.
func (s *Store) UpsertScriptSummary(ctx context.Context, row ScriptSummaryRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO script_summaries (name, description, requires_arguments, example_usage, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description        = excluded.description,
			requires_arguments = excluded.requires_arguments,
			example_usage      = excluded.example_usage,
			updated_at         = excluded.updated_at
	`, row.Name, row.Description, row.RequiresArguments, row.ExampleUsage, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert script summary %s: %w", row.Name, err)
	}
	return nil
}

// GetScriptSummary returns the cached summary for one script, or (nil, nil)
// when none is cached.
func (s *Store) GetScriptSummary(ctx context.Context, name string) (*ScriptSummaryRow, error) {
	var row ScriptSummaryRow
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, requires_arguments, example_usage, updated_at
		FROM script_summaries WHERE name = ?
	`, name).Scan(&row.Name, &row.Description, &row.RequiresArguments, &row.ExampleUsage, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script summary %s: %w", name, err)
	}
	return &row, nil
}

// ListScriptSummaries returns all cached summaries ordered by name.
func (s *Store) ListScriptSummaries(ctx context.Context) ([]ScriptSummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, requires_arguments, example_usage, updated_at
		FROM script_summaries ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list script summaries: %w", err)
	}
	defer rows.Close()

	var out []ScriptSummaryRow
	for rows.Next() {
		var row ScriptSummaryRow
		if err := rows.Scan(&row.Name, &row.Description, &row.RequiresArguments, &row.ExampleUsage, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan script summary: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PruneScriptSummaries deletes cached summaries for scripts no longer in
// keep. Called after a catalogue refresh so removed scripts drop out of the
// cache. An empty keep list clears the cache.
func (s *Store) PruneScriptSummaries(ctx context.Context, keep []string) error {
	if len(keep) == 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM script_summaries"); err != nil {
			return fmt.Errorf("clear script summaries: %w", err)
		}
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
	args := make([]any, len(keep))
	for i, name := range keep {
		args[i] = name
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM script_summaries WHERE name NOT IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("prune script summaries: %w", err)
	}
	return nil
}
