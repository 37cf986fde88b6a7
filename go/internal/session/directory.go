package session

import "sync"

// Entry links a connection to the room and player it occupies
type Entry struct {
	RoomCode string
	PlayerID string
}

// Directory maps connection ids to their room membership. It is a lookup aid
// only; the room store stays the authority over room state.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewDirectory creates an empty Directory
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]Entry)}
}

// Set records or replaces the entry for connID
func (d *Directory) Set(connID string, e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[connID] = e
}

// Get returns the entry for connID
func (d *Directory) Get(connID string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[connID]
	return e, ok
}

// Remove deletes and returns the entry for connID
func (d *Directory) Remove(connID string) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[connID]
	if ok {
		delete(d.entries, connID)
	}
	return e, ok
}

// Len returns the number of tracked connections
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
