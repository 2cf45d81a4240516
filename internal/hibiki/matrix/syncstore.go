package matrix

// syncstore.go implements mautrix.SyncStore on top of the Hibiki SQLite
// store. Persisting the next_batch token across restarts keeps the bot from
// replaying old history and re-answering messages it already handled.

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/dmoraru/hibiki/internal/hibiki/store"
)

var _ mautrix.SyncStore = (*syncStore)(nil)

type syncStore struct {
	store *store.Store
}

func newSyncStore(st *store.Store) *syncStore {
	return &syncStore{store: st}
}

func (s *syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.store.SetSyncValue(ctx, userID.String(), "filter_id", filterID)
}

// LoadFilterID returns ("", nil) when no filter has been saved yet.
func (s *syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.store.GetSyncValue(ctx, userID.String(), "filter_id")
}

func (s *syncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.store.SetSyncValue(ctx, userID.String(), "next_batch", nextBatchToken)
}

// LoadNextBatch returns ("", nil) on first run.
func (s *syncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.store.GetSyncValue(ctx, userID.String(), "next_batch")
}
