package timetable

import (
	"fmt"
	"sort"
	"sync"
)

// OwnerKind identifies whose calendar a registry guards.
type OwnerKind string

// Registry owner kinds.
const (
	OwnerRoom    OwnerKind = "ROOM"
	OwnerTeacher OwnerKind = "TEACHER"
	OwnerStudent OwnerKind = "STUDENT"
)

// ConflictError is returned when a window collides with one already held by
// a registry. It carries the colliding window for diagnostics.
type ConflictError struct {
	OwnerKind OwnerKind
	OwnerID   string
	Existing  *Window
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("schedule conflict for %s %s", e.OwnerKind, e.OwnerID)
	if e.Existing != nil && e.Existing.Tag() != "" {
		msg += fmt.Sprintf(" with %s", e.Existing.Tag())
	}
	return msg
}

// Registry holds the booked windows of a single owner (one room, one teacher
// or one student) and guarantees that no two held windows conflict. All
// mutation happens under the registry's own lock so unrelated owners never
// contend.
type Registry struct {
	mu      sync.Mutex
	kind    OwnerKind
	ownerID string
	windows []*Window
}

// NewRegistry creates an empty registry for one owner.
func NewRegistry(kind OwnerKind, ownerID string) *Registry {
	return &Registry{kind: kind, ownerID: ownerID}
}

// OwnerKind returns the registry's owner kind.
func (r *Registry) OwnerKind() OwnerKind { return r.kind }

// OwnerID returns the registry's owner identity.
func (r *Registry) OwnerID() string { return r.ownerID }

// Add appends the window after verifying it conflicts with none of the held
// windows. The scan and the append run under one lock, so the registry is
// left untouched on failure.
func (r *Registry) Add(w *Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflictLocked(w); err != nil {
		return err
	}
	r.windows = append(r.windows, w)
	return nil
}

// Remove deletes a window by identity. It reports whether a window was
// actually removed; removing an absent window is a no-op, not an error.
func (r *Registry) Remove(w *Window) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, held := range r.windows {
		if held == w {
			r.windows = append(r.windows[:i], r.windows[i+1:]...)
			return true
		}
	}
	return false
}

// Windows returns a snapshot of the held windows.
func (r *Registry) Windows() []*Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Window, len(r.windows))
	copy(out, r.windows)
	return out
}

// Len returns the number of held windows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *Registry) conflictLocked(w *Window) error {
	for _, held := range r.windows {
		if Conflicts(held, w) {
			return &ConflictError{OwnerKind: r.kind, OwnerID: r.ownerID, Existing: held}
		}
	}
	return nil
}

// BookAll atomically registers a window with every given registry: either the
// window ends up in all of them or, on any conflict, in none. Registries are
// locked in deterministic owner order so concurrent bookings touching the
// same owners cannot deadlock.
func BookAll(w *Window, registries ...*Registry) error {
	unique := make([]*Registry, 0, len(registries))
	seen := make(map[*Registry]bool, len(registries))
	for _, r := range registries {
		if r == nil || seen[r] {
			continue
		}
		seen[r] = true
		unique = append(unique, r)
	}
	sort.Slice(unique, func(i, j int) bool {
		if unique[i].kind != unique[j].kind {
			return unique[i].kind < unique[j].kind
		}
		return unique[i].ownerID < unique[j].ownerID
	})

	for _, r := range unique {
		r.mu.Lock()
	}
	defer func() {
		for i := len(unique) - 1; i >= 0; i-- {
			unique[i].mu.Unlock()
		}
	}()

	for _, r := range unique {
		if err := r.conflictLocked(w); err != nil {
			return err
		}
	}
	for _, r := range unique {
		r.windows = append(r.windows, w)
	}
	return nil
}

// ReleaseAll removes a window from every given registry.
func ReleaseAll(w *Window, registries ...*Registry) {
	for _, r := range registries {
		if r != nil {
			r.Remove(w)
		}
	}
}

// Directory maps owners to their registries, creating them lazily. Lookups
// take a read lock; only first-touch creation takes the write lock.
type Directory struct {
	mu         sync.RWMutex
	registries map[string]*Registry
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{registries: make(map[string]*Registry)}
}

// For returns the registry for an owner, creating it on first use.
func (d *Directory) For(kind OwnerKind, ownerID string) *Registry {
	key := string(kind) + ":" + ownerID
	d.mu.RLock()
	r, ok := d.registries[key]
	d.mu.RUnlock()
	if ok {
		return r
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.registries[key]; ok {
		return r
	}
	r = NewRegistry(kind, ownerID)
	d.registries[key] = r
	return r
}

// Size returns the number of materialised registries.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.registries)
}
