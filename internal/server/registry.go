// Package server tracks identified connections and their liveness in the
// connection registry.
package server

import (
	"sync"
	"time"
)

// Entry is one registered connection as seen in a snapshot.
type Entry struct {
	Session  *Session
	Username string
}

type registryRecord struct {
	username      string
	lastHeartbeat time.Time
}

// Registry is the single shared view of identified connections. Session
// goroutines and the liveness monitor mutate it concurrently, so every
// operation takes the mutex; iteration always happens over snapshots, never
// over the live map.
type Registry struct {
	mu      sync.RWMutex
	entries map[*Session]*registryRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[*Session]*registryRecord)}
}

// Register adds s under username, or updates the username when s is already
// present. The heartbeat clock starts at now.
func (r *Registry) Register(s *Session, username string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.entries[s]; ok {
		rec.username = username
		rec.lastHeartbeat = now
		return
	}
	r.entries[s] = &registryRecord{username: username, lastHeartbeat: now}
}

// Unregister removes s and reports whether it was present.
func (r *Registry) Unregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[s]; !ok {
		return false
	}
	delete(r.entries, s)
	return true
}

// Touch refreshes the heartbeat of s and reports whether s is registered.
// A false return tells the session to ask the client to re-identify.
func (r *Registry) Touch(s *Session, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.entries[s]
	if !ok {
		return false
	}
	rec.lastHeartbeat = now
	return true
}

// Username returns the display name of s, if registered.
func (r *Registry) Username(s *Session) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[s]
	if !ok {
		return "", false
	}
	return rec.username, true
}

// Snapshot returns a point-in-time copy of all entries, safe to iterate while
// registrations and evictions proceed concurrently.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for s, rec := range r.entries {
		out = append(out, Entry{Session: s, Username: rec.username})
	}
	return out
}

// EvictStale removes every entry whose heartbeat is older than cutoff and
// returns the removed entries. After a call returns, no surviving entry is
// staler than cutoff.
func (r *Registry) EvictStale(cutoff time.Time) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []Entry
	for s, rec := range r.entries {
		if rec.lastHeartbeat.Before(cutoff) {
			evicted = append(evicted, Entry{Session: s, Username: rec.username})
			delete(r.entries, s)
		}
	}
	return evicted
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
