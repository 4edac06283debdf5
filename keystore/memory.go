package keystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stegseal/stegseal-go/internal/crypto"
)

type memoryEntry struct {
	kp        *crypto.KeyPair
	createdAt time.Time
}

// Memory is a process-local Store. Key pairs are copied on the way in and
// out, so callers cannot mutate stored state.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, identity string) (*crypto.KeyPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return e.kp.Clone(), nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, identity string, kp *crypto.KeyPair) error {
	if err := checkPut(identity, kp); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	createdAt := timeNow().UTC()
	if old, ok := m.entries[identity]; ok {
		createdAt = old.createdAt
	}
	m.entries[identity] = memoryEntry{kp: kp.Clone(), createdAt: createdAt}
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[identity]; !ok {
		return ErrNotFound
	}
	delete(m.entries, identity)
	return nil
}

// List implements Store. Entries are sorted by identity.
func (m *Memory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, Entry{Identity: id, PublicKey: e.kp.PublicKey, CreatedAt: e.createdAt})
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Identity < entries[j].Identity })
}
