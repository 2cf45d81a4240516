package dispatch

import "sync"

// PendingStore holds at most one pending action per user. A new proposal
// replaces the previous one; confirmation and cancellation consume the slot.
// Entries never expire on their own — a stale action stays pending until the
// user decides, and the engine annotates its age instead.
type PendingStore struct {
	mu      sync.Mutex
	actions map[string]*Action
}

// NewPendingStore creates an empty store.
func NewPendingStore() *PendingStore {
	return &PendingStore{actions: make(map[string]*Action)}
}

// Put stores the action as the user's pending action and returns the one it
// replaced, if any.
func (p *PendingStore) Put(userID string, a *Action) (replaced *Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	replaced = p.actions[userID]
	p.actions[userID] = a
	return replaced
}

// Peek returns the user's pending action without consuming it.
func (p *PendingStore) Peek(userID string) *Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actions[userID]
}

// Take removes and returns the user's pending action, or nil when none is
// pending.
func (p *PendingStore) Take(userID string) *Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.actions[userID]
	delete(p.actions, userID)
	return a
}
