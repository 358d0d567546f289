package clinic

import (
	"context"
	"sync"
)

// MemoryStore keeps SavedState in memory. It is the store used when nothing
// should outlive the process.
type MemoryStore struct {
	mu    sync.Mutex
	st    SavedState
	saved bool
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (SavedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := copyState(m.st)
	st.Saved = m.saved
	return st, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st SavedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = copyState(st)
	m.saved = true
	return nil
}

func copyState(st SavedState) SavedState {
	out := SavedState{Settings: st.Settings, Tally: st.Tally.Clone()}
	for _, b := range st.Bots {
		out.Bots = append(out.Bots, b.Clone())
	}
	return out
}
