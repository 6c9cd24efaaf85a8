package session

import (
	"io"
	"sort"
	"sync"
	"time"
)

// DefaultMaxSessions is the default maximum number of concurrent sessions.
const DefaultMaxSessions = 64

// Entry describes one live session tracked by a Table.
type Entry struct {
	// ID uniquely identifies the connection.
	ID string

	// Remote is the peer's network address.
	Remote string

	// Peer is the authenticated peer fingerprint; empty until the
	// handshake completes.
	Peer string

	// Started is when the connection was accepted or dialed.
	Started time.Time

	// Closer tears the session down. Optional.
	Closer io.Closer
}

// Table tracks live sessions by connection ID.
type Table struct {
	entries     map[string]*Entry
	maxSessions int

	mu sync.RWMutex
}

// NewTable creates a new session table.
// maxSessions limits the number of concurrent sessions (0 uses DefaultMaxSessions).
func NewTable(maxSessions int) *Table {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Table{
		entries:     make(map[string]*Entry),
		maxSessions: maxSessions,
	}
}

// Add inserts an entry.
func (t *Table) Add(e *Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.maxSessions {
		return ErrSessionTableFull
	}
	if _, exists := t.entries[e.ID]; exists {
		return ErrDuplicateSession
	}
	t.entries[e.ID] = e
	return nil
}

// SetPeer records the authenticated peer fingerprint of an entry.
func (t *Table) SetPeer(id, peer string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.Peer = peer
	return nil
}

// Remove deletes an entry. Removing an unknown ID is a no-op.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Find returns a copy of the entry with the given ID.
func (t *Table) Find(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// FindByPeer returns all entries authenticated as peer, oldest first.
func (t *Table) FindByPeer(peer string) []Entry {
	var out []Entry
	for _, e := range t.Snapshot() {
		if e.Peer == peer {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns copies of all entries, oldest first.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Count returns the number of live entries.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// IsFull returns true if no more entries can be added.
func (t *Table) IsFull() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) >= t.maxSessions
}

// MaxSessions returns the table capacity.
func (t *Table) MaxSessions() int {
	return t.maxSessions
}

// CloseAll closes every entry's Closer and empties the table.
// It returns the number of entries removed.
func (t *Table) CloseAll() int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*Entry)
	t.mu.Unlock()

	for _, e := range entries {
		if e.Closer != nil {
			_ = e.Closer.Close()
		}
	}
	return len(entries)
}
