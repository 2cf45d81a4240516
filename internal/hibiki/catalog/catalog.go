// Package catalog maintains the inventory of operator scripts: the files on
// disk, a generated one-line summary for each, and a persistent cache of
// those summaries so restarts don't re-summarize unchanged scripts.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/store"
)

// maxSummarizeBytes bounds how much of a script is sent for summarization.
const maxSummarizeBytes = 8 * 1024

// fallbackDescription is used when summarization fails; the script stays
// runnable, just undescribed until the next refresh.
const fallbackDescription = "No description available."

// Script is one runnable script known to the bot.
type Script struct {
	// Name is the filename including extension, e.g. "backup_db.sh".
	Name string
	// Path is the absolute host path.
	Path string

	Description       string
	RequiresArguments bool
	ExampleUsage      string
}

// Catalog is the in-memory script inventory backed by the on-disk scripts
// directory and the summary cache. Safe for concurrent use.
type Catalog struct {
	dir    string
	store  *store.Store
	interp nlp.Interpreter

	mu      sync.RWMutex
	scripts map[string]Script
}

// New creates an empty catalog for the given scripts directory. Call Refresh
// to populate it.
func New(dir string, st *store.Store, interp nlp.Interpreter) *Catalog {
	return &Catalog{
		dir:     dir,
		store:   st,
		interp:  interp,
		scripts: make(map[string]Script),
	}
}

// runnable reports whether a directory entry is a script the bot will offer.
func runnable(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch filepath.Ext(name) {
	case ".sh", ".py":
		return true
	}
	return false
}

// Refresh re-scans the scripts directory, summarizes scripts that have no
// cached summary, prunes cache entries for scripts that disappeared, and
// swaps in the new inventory. Returns the number of newly summarized and
// removed scripts.
func (c *Catalog) Refresh(ctx context.Context) (added, removed int, err error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read scripts directory %s: %w", c.dir, err)
	}

	cached := make(map[string]store.ScriptSummaryRow)
	rows, err := c.store.ListScriptSummaries(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		cached[row.Name] = row
	}

	next := make(map[string]Script)
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !runnable(name) {
			continue
		}
		names = append(names, name)

		script := Script{
			Name: name,
			Path: filepath.Join(c.dir, name),
		}

		if row, ok := cached[name]; ok {
			script.Description = row.Description
			script.RequiresArguments = row.RequiresArguments
			script.ExampleUsage = row.ExampleUsage
		} else {
			summary := c.summarize(ctx, script)
			script.Description = summary.Description
			script.RequiresArguments = summary.RequiresArguments
			script.ExampleUsage = summary.ExampleUsage
			added++

			if err := c.store.UpsertScriptSummary(ctx, store.ScriptSummaryRow{
				Name:              name,
				Description:       script.Description,
				RequiresArguments: script.RequiresArguments,
				ExampleUsage:      script.ExampleUsage,
				UpdatedAt:         time.Now().UTC(),
			}); err != nil {
				slog.Warn("failed to cache script summary", "script", name, "error", err)
			}
		}

		next[name] = script
	}

	for name := range cached {
		if _, ok := next[name]; !ok {
			removed++
		}
	}
	if err := c.store.PruneScriptSummaries(ctx, names); err != nil {
		slog.Warn("failed to prune script summary cache", "error", err)
	}

	c.mu.Lock()
	c.scripts = next
	c.mu.Unlock()

	slog.Info("script catalogue refreshed", "scripts", len(next), "summarized", added, "removed", removed)
	return added, removed, nil
}

// summarize generates a summary for one script, falling back to a
// placeholder when the file is unreadable or summarization fails.
func (c *Catalog) summarize(ctx context.Context, script Script) nlp.ScriptSummary {
	content, err := os.ReadFile(script.Path)
	if err != nil {
		slog.Warn("cannot read script for summary", "script", script.Name, "error", err)
		return nlp.ScriptSummary{Description: fallbackDescription}
	}
	if len(content) > maxSummarizeBytes {
		content = content[:maxSummarizeBytes]
	}

	summary, err := c.interp.SummarizeScript(ctx, script.Name, string(content))
	if err != nil {
		slog.Warn("script summarization failed", "script", script.Name, "error", err)
		return nlp.ScriptSummary{Description: fallbackDescription}
	}
	return *summary
}

// Snapshot returns a point-in-time copy of the inventory sorted by name.
// Resolution and execution both work from a snapshot so a concurrent refresh
// cannot change the set mid-decision.
func (c *Catalog) Snapshot() []Script {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Script, 0, len(c.scripts))
	for _, s := range c.scripts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the script with the given name, if present.
func (c *Catalog) Lookup(name string) (Script, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[name]
	return s, ok
}

// Infos converts the current inventory to the form the interpreter consumes.
func (c *Catalog) Infos() []nlp.ScriptInfo {
	snapshot := c.Snapshot()
	infos := make([]nlp.ScriptInfo, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, nlp.ScriptInfo{
			Name:              s.Name,
			Description:       s.Description,
			RequiresArguments: s.RequiresArguments,
			ExampleUsage:      s.ExampleUsage,
		})
	}
	return infos
}
