// Package entity tracks the game objects the CCTV core refers to. References are
// weak: the table is asked whether a handle is still valid instead of assuming it.
package entity

import (
	"sort"
	"strings"
	"sync"

	"github.com/OCAP2/cctv/pkg/core"
)

// nullRef is what netId returns for objNull.
const nullRef core.EntityRef = "0:0"

// Listener is told about an entity that stopped being valid.
type Listener func(ref core.EntityRef)

// Table is the last reported state of every known entity.
type Table struct {
	mu        sync.RWMutex
	entities  map[core.EntityRef]core.Entity
	destroyed map[core.EntityRef]struct{}
	listeners []Listener
}

func NewTable() *Table {
	return &Table{
		entities:  make(map[core.EntityRef]core.Entity),
		destroyed: make(map[core.EntityRef]struct{}),
	}
}

// IsNull reports whether ref cannot name any object.
func IsNull(ref core.EntityRef) bool {
	r := core.EntityRef(strings.TrimSpace(string(ref)))
	return r == "" || r == nullRef
}

// Valid reports whether ref names an object that has not been destroyed or removed.
// Objects the game never described are assumed valid until told otherwise.
func (t *Table) Valid(ref core.EntityRef) bool {
	if IsNull(ref) {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, gone := t.destroyed[ref]
	return !gone
}

// Upsert stores the latest state of an entity.
func (t *Table) Upsert(e core.Entity) {
	if IsNull(e.Ref) {
		return
	}
	t.mu.Lock()
	t.entities[e.Ref] = cloneEntity(e)
	if e.Alive {
		delete(t.destroyed, e.Ref)
	}
	t.mu.Unlock()
}

// Get returns a copy of the entity state.
func (t *Table) Get(ref core.EntityRef) (core.Entity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entities[ref]
	if !ok {
		return core.Entity{}, false
	}
	return cloneEntity(e), true
}

// Killed marks the entity dead and invalidates it.
func (t *Table) Killed(ref core.EntityRef) {
	t.mu.Lock()
	if e, ok := t.entities[ref]; ok {
		e.Alive = false
		t.entities[ref] = e
	}
	t.mu.Unlock()
	t.invalidate(ref)
}

// Removed forgets the entity (deleted object, disconnected player) and invalidates it.
func (t *Table) Removed(ref core.EntityRef) {
	t.mu.Lock()
	delete(t.entities, ref)
	t.mu.Unlock()
	t.invalidate(ref)
}

func (t *Table) invalidate(ref core.EntityRef) {
	if IsNull(ref) {
		return
	}
	t.mu.Lock()
	if _, already := t.destroyed[ref]; already {
		t.mu.Unlock()
		return
	}
	t.destroyed[ref] = struct{}{}
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(ref)
	}
}

// OnInvalidate registers fn to run whenever an entity becomes invalid.
func (t *Table) OnInvalidate(fn Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Refs returns every known entity ref in sorted order.
func (t *Table) Refs() []core.EntityRef {
	t.mu.RLock()
	refs := make([]core.EntityRef, 0, len(t.entities))
	for ref := range t.entities {
		refs = append(refs, ref)
	}
	t.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Len returns the number of known entities.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entities)
}

// Reset drops all state and listeners for a new mission.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entities = make(map[core.EntityRef]core.Entity)
	t.destroyed = make(map[core.EntityRef]struct{})
	t.listeners = nil
}

func cloneEntity(e core.Entity) core.Entity {
	if e.Items != nil {
		e.Items = append([]string(nil), e.Items...)
	}
	return e
}
