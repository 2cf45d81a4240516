package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/store"
)

type countingInterp struct {
	summarized int
	fail       bool
}

func (f *countingInterp) ClassifyIntent(ctx context.Context, message string) (*nlp.IntentResult, error) {
	return nil, errors.New("not implemented")
}

func (f *countingInterp) CalendarDetails(ctx context.Context, message string, events []nlp.EventContext, now time.Time) (*nlp.CalendarDetails, error) {
	return nil, errors.New("not implemented")
}

func (f *countingInterp) ScriptDetails(ctx context.Context, message string, scripts []nlp.ScriptInfo) ([]nlp.ScriptRequest, error) {
	return nil, errors.New("not implemented")
}

func (f *countingInterp) CommandDetails(ctx context.Context, message string) (*nlp.CommandDetails, error) {
	return nil, errors.New("not implemented")
}

func (f *countingInterp) Chat(ctx context.Context, message string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *countingInterp) SummarizeScript(ctx context.Context, name, content string) (*nlp.ScriptSummary, error) {
	f.summarized++
	if f.fail {
		return nil, errors.New("model unavailable")
	}
	return &nlp.ScriptSummary{Description: "summary of " + name}, nil
}

func (f *countingInterp) ExplainError(ctx context.Context, command, stderr string) (string, error) {
	return "", nil
}

func writeScript(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newFixture(t *testing.T) (string, *store.Store, *countingInterp, *Catalog) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	interp := &countingInterp{}
	return dir, st, interp, New(dir, st, interp)
}

func TestRefreshSummarizesNewScripts(t *testing.T) {
	dir, _, _, cat := newFixture(t)
	writeScript(t, dir, "backup.sh")
	writeScript(t, dir, "report.py")

	added, removed, err := cat.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if added != 2 || removed != 0 {
		t.Fatalf("added=%d removed=%d, want 2/0", added, removed)
	}

	snapshot := cat.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d scripts, want 2", len(snapshot))
	}
	// Sorted by name.
	if snapshot[0].Name != "backup.sh" || snapshot[1].Name != "report.py" {
		t.Errorf("snapshot order: %v, %v", snapshot[0].Name, snapshot[1].Name)
	}
	if snapshot[0].Description != "summary of backup.sh" {
		t.Errorf("description = %q", snapshot[0].Description)
	}

	if _, ok := cat.Lookup("backup.sh"); !ok {
		t.Error("Lookup should find backup.sh")
	}
	if _, ok := cat.Lookup("ghost.sh"); ok {
		t.Error("Lookup should not invent scripts")
	}
}

func TestRefreshUsesCache(t *testing.T) {
	dir, st, interp, cat := newFixture(t)
	writeScript(t, dir, "backup.sh")

	if _, _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if interp.summarized != 1 {
		t.Fatalf("summarize calls = %d, want 1", interp.summarized)
	}

	// A fresh catalogue over the same store must not re-summarize.
	cat2 := New(dir, st, interp)
	added, _, err := cat2.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if added != 0 {
		t.Fatalf("added = %d, want 0 (cached)", added)
	}
	if interp.summarized != 1 {
		t.Fatalf("summarize calls = %d, cache should prevent re-summarizing", interp.summarized)
	}
}

func TestRefreshPrunesRemovedScripts(t *testing.T) {
	dir, st, _, cat := newFixture(t)
	writeScript(t, dir, "backup.sh")
	writeScript(t, dir, "old.sh")

	if _, _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "old.sh")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, removed, err := cat.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := cat.Lookup("old.sh"); ok {
		t.Error("removed script still in catalogue")
	}

	rows, err := st.ListScriptSummaries(context.Background())
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "backup.sh" {
		t.Errorf("cache rows = %+v, want only backup.sh", rows)
	}
}

func TestRefreshIgnoresNonScripts(t *testing.T) {
	dir, _, _, cat := newFixture(t)
	writeScript(t, dir, "backup.sh")
	writeScript(t, dir, "notes.txt")
	writeScript(t, dir, ".hidden.sh")

	if _, _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := len(cat.Snapshot()); got != 1 {
		t.Fatalf("snapshot has %d scripts, want 1", got)
	}
}

func TestSummarizationFailureFallsBack(t *testing.T) {
	dir, _, interp, cat := newFixture(t)
	interp.fail = true
	writeScript(t, dir, "backup.sh")

	if _, _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	s, ok := cat.Lookup("backup.sh")
	if !ok {
		t.Fatal("script should be catalogued despite summary failure")
	}
	if s.Description != "No description available." {
		t.Errorf("description = %q, want fallback", s.Description)
	}
}

func TestInfosMatchesSnapshot(t *testing.T) {
	dir, _, _, cat := newFixture(t)
	writeScript(t, dir, "backup.sh")
	if _, _, err := cat.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	infos := cat.Infos()
	if len(infos) != 1 || infos[0].Name != "backup.sh" {
		t.Fatalf("infos = %+v", infos)
	}
}
