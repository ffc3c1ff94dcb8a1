// Package registry holds the in-memory table of watched accounts.
//
// The registry is the single piece of state shared between the control
// surface and the background poller. Every method copies data in and out
// under the lock; callers never see the internal map, and no network I/O
// happens while the lock is held.
package registry

import (
	"strings"
	"sync"

	"twitter-watcher/pkg/watcher"
)

// Key normalizes a handle for map lookups. Handles are case-insensitive
// on Twitter, so "Alice" and "ALICE" are the same account.
func Key(handle string) string {
	return strings.ToUpper(handle)
}

// Registry is the watch list: one entry per account, keyed by the
// uppercased handle. Insertion order is preserved for List and export.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*watcher.Account
	order    []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		accounts: make(map[string]*watcher.Account),
	}
}

// Len returns the number of watched accounts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// Lookup returns a copy of the entry for handle, if present.
func (r *Registry) Lookup(handle string) (watcher.Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[Key(handle)]
	if !ok {
		return watcher.Account{}, false
	}
	return *acct, true
}

// Insert adds a new account. It returns false if an entry with the same
// normalized handle already exists; the existing entry is left untouched.
func (r *Registry) Insert(acct watcher.Account) bool {
	key := Key(acct.Handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[key]; exists {
		return false
	}

	stored := acct
	r.accounts[key] = &stored
	r.order = append(r.order, key)
	return true
}

// Remove deletes the entry for handle and reports whether it existed.
func (r *Registry) Remove(handle string) bool {
	key := Key(handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[key]; !exists {
		return false
	}

	delete(r.accounts, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Advance moves the watermark for handle forward to sinceID. It is a
// silent no-op if the entry was removed concurrently or if sinceID is not
// newer than the current watermark; the watermark never moves backward
// except through ReplaceAll.
func (r *Registry) Advance(handle, sinceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[Key(handle)]
	if !ok {
		return false
	}
	if acct.SinceID != "" && !watcher.NewerID(sinceID, acct.SinceID) {
		return false
	}
	acct.SinceID = sinceID
	return true
}

// Snapshot returns copies of all entries in insertion order. The poller
// iterates over the snapshot so a concurrent add or remove can never tear
// the iteration.
func (r *Registry) Snapshot() []watcher.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]watcher.Account, 0, len(r.accounts))
	for _, key := range r.order {
		out = append(out, *r.accounts[key])
	}
	return out
}

// ReplaceAll atomically clears the registry and repopulates it from
// entries. Entries without a handle or user ID are skipped, as are
// duplicates of an already-loaded key. This is the restore path and the
// only operation allowed to move a watermark backward. Returns the number
// of entries loaded.
func (r *Registry) ReplaceAll(entries []watcher.Account) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = make(map[string]*watcher.Account, len(entries))
	r.order = r.order[:0]

	for _, entry := range entries {
		if entry.Handle == "" || entry.UserID == "" {
			continue
		}
		key := Key(entry.Handle)
		if _, exists := r.accounts[key]; exists {
			continue
		}
		stored := entry
		r.accounts[key] = &stored
		r.order = append(r.order, key)
	}
	return len(r.accounts)
}
