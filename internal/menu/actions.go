package menu

import (
	"context"
	"fmt"
	"sync"

	"github.com/OCAP2/cctv/pkg/core"
)

// ActionTable keeps the entries of the last menu built for each observer, so the
// widget can report a selection by id.
type ActionTable struct {
	mu      sync.Mutex
	entries map[core.EntityRef]map[string]core.MenuEntry
}

func NewActionTable() *ActionTable {
	return &ActionTable{entries: make(map[core.EntityRef]map[string]core.MenuEntry)}
}

// Store replaces observer's entries and returns them unchanged.
func (t *ActionTable) Store(observer core.EntityRef, entries []core.MenuEntry) []core.MenuEntry {
	m := make(map[string]core.MenuEntry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	t.mu.Lock()
	t.entries[observer] = m
	t.mu.Unlock()
	return entries
}

// Invoke runs the entry id from observer's last menu. The entry stays usable until
// the next Store for that observer.
func (t *ActionTable) Invoke(ctx context.Context, observer core.EntityRef, id string) error {
	t.mu.Lock()
	e, ok := t.entries[observer][id]
	t.mu.Unlock()
	if !ok || e.Action == nil {
		return fmt.Errorf("menu action %q for %q: %w", id, observer, core.ErrNotFound)
	}
	return e.Action(ctx)
}

// Forget drops observer's entries.
func (t *ActionTable) Forget(observer core.EntityRef) {
	t.mu.Lock()
	delete(t.entries, observer)
	t.mu.Unlock()
}

// Reset drops every observer's entries.
func (t *ActionTable) Reset() {
	t.mu.Lock()
	t.entries = make(map[core.EntityRef]map[string]core.MenuEntry)
	t.mu.Unlock()
}
