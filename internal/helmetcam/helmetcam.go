// Package helmetcam runs the per-entity helmet camera state machine.
package helmetcam

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/cctv/internal/registry"
	"github.com/OCAP2/cctv/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/cctv/internal/helmetcam"

// Entities is the read side of the entity table.
type Entities interface {
	Get(ref core.EntityRef) (core.Entity, bool)
	Valid(ref core.EntityRef) bool
	Refs() []core.EntityRef
}

// Cameras is the part of the registry the machine needs.
type Cameras interface {
	Register(reg registry.Registration) (core.CameraID, error)
	Lookup(id core.CameraID) (core.CameraRecord, error)
}

// Options configures eligibility and the auto-enable policy.
type Options struct {
	Items      []string
	AutoEnable bool
}

type entry struct {
	mu           sync.Mutex
	state        core.HelmetCamState
	lastEligible bool
}

// Machine holds the INACTIVE/ACTIVE state of every entity that ever had a helmet cam
// evaluated. Each entity's transitions are serialized by its own lock.
type Machine struct {
	mu      sync.Mutex
	entries map[core.EntityRef]*entry

	entities   Entities
	cameras    Cameras
	items      map[string]struct{}
	autoEnable bool

	hookMu   sync.RWMutex
	onChange []func(core.HelmetEvent)

	logger  *slog.Logger
	toggles metric.Int64Counter
	now     func() time.Time
}

func New(entities Entities, cameras Cameras, opts Options, logger *slog.Logger) (*Machine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	items := make(map[string]struct{}, len(opts.Items))
	for _, it := range opts.Items {
		items[it] = struct{}{}
	}
	m := &Machine{
		entries:    make(map[core.EntityRef]*entry),
		entities:   entities,
		cameras:    cameras,
		items:      items,
		autoEnable: opts.AutoEnable,
		logger:     logger.With("component", "helmetcam"),
		now:        time.Now,
	}

	var err error
	m.toggles, err = otel.Meter(instrumentationName).Int64Counter(
		"cctv.helmet.toggles",
		metric.WithDescription("Helmet cam starts and stops"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating toggles counter: %w", err)
	}
	return m, nil
}

// OnChange adds a hook run after every start or stop.
func (m *Machine) OnChange(fn func(core.HelmetEvent)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// IsEligible reports whether ref is a known, alive, locally controlled entity
// carrying one of the helmet cam items.
func (m *Machine) IsEligible(ref core.EntityRef) bool {
	if !m.entities.Valid(ref) {
		return false
	}
	e, ok := m.entities.Get(ref)
	if !ok || !e.Alive || !e.Local {
		return false
	}
	for _, it := range e.Items {
		if _, ok := m.items[it]; ok {
			return true
		}
	}
	return false
}

func (m *Machine) entry(ref core.EntityRef) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[ref]
	if !ok {
		e = &entry{state: core.HelmetCamState{Entity: ref}}
		m.entries[ref] = e
	}
	return e
}

// Start activates the helmet cam of ref and returns its camera id. The HELMET
// record registered on first start is reused for as long as it stays active.
func (m *Machine) Start(ref core.EntityRef) (core.CameraID, error) {
	e := m.entry(ref)
	e.mu.Lock()
	id, changed, err := m.startLocked(e)
	e.mu.Unlock()
	if changed {
		m.emit(core.HelmetEvent{Entity: ref, Camera: id, Active: true, Time: m.now()})
	}
	return id, err
}

func (m *Machine) startLocked(e *entry) (core.CameraID, bool, error) {
	ref := e.state.Entity
	if e.state.Active {
		return e.state.Camera, false, nil
	}
	if !m.IsEligible(ref) {
		return 0, false, fmt.Errorf("start helmet cam on %q: %w", ref, core.ErrNotEligible)
	}
	// a later tick must not see this eligibility as newly gained
	e.lastEligible = true

	id := e.state.Camera
	if id != 0 {
		if rec, err := m.cameras.Lookup(id); err != nil || !rec.Active {
			id = 0
		}
	}
	if id == 0 {
		ent, _ := m.entities.Get(ref)
		label := "Helmet Cam"
		if ent.Name != "" {
			label = fmt.Sprintf("Helmet Cam (%s)", ent.Name)
		}
		var err error
		id, err = m.cameras.Register(registry.Registration{
			Owner:  ref,
			Label:  label,
			Side:   ent.Side,
			Kind:   core.SourceHelmet,
			Origin: core.OriginHelmet,
		})
		if err != nil {
			return 0, false, err
		}
	}

	e.state.Active = true
	e.state.Camera = id
	return id, true, nil
}

// Stop deactivates the helmet cam of ref. The camera record stays registered.
func (m *Machine) Stop(ref core.EntityRef) {
	m.mu.Lock()
	e, ok := m.entries[ref]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	changed := e.state.Active
	e.state.Active = false
	id := e.state.Camera
	e.mu.Unlock()
	if changed {
		m.emit(core.HelmetEvent{Entity: ref, Camera: id, Active: false, Time: m.now()})
	}
}

// Toggle stops an active helmet cam or starts an inactive one.
func (m *Machine) Toggle(ref core.EntityRef) (core.HelmetCamState, error) {
	if m.Active(ref) {
		m.Stop(ref)
		return m.State(ref), nil
	}
	_, err := m.Start(ref)
	return m.State(ref), err
}

// AutoToggleTick re-evaluates eligibility for ref. It stops an active cam that lost
// eligibility and, when auto-enable is set, starts an inactive one that just gained
// it. Repeated ticks under unchanged eligibility do nothing.
func (m *Machine) AutoToggleTick(ref core.EntityRef) {
	if !m.entities.Valid(ref) {
		m.Forget(ref)
		return
	}

	e := m.entry(ref)
	eligible := m.IsEligible(ref)

	e.mu.Lock()
	gained := eligible && !e.lastEligible
	e.lastEligible = eligible

	var ev *core.HelmetEvent
	switch {
	case e.state.Active && !eligible:
		e.state.Active = false
		ev = &core.HelmetEvent{Entity: ref, Camera: e.state.Camera, Active: false, Auto: true}
	case !e.state.Active && gained && m.autoEnable:
		id, changed, err := m.startLocked(e)
		if err != nil {
			m.logger.Warn("Auto start failed", "entity", ref, "error", err)
		} else if changed {
			ev = &core.HelmetEvent{Entity: ref, Camera: id, Active: true, Auto: true}
		}
	}
	e.mu.Unlock()

	if ev != nil {
		ev.Time = m.now()
		m.emit(*ev)
	}
}

// Forget stops and drops the state of an entity that is gone.
func (m *Machine) Forget(ref core.EntityRef) {
	m.mu.Lock()
	e, ok := m.entries[ref]
	delete(m.entries, ref)
	m.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	wasActive := e.state.Active
	e.state.Active = false
	id := e.state.Camera
	e.mu.Unlock()
	if wasActive {
		m.emit(core.HelmetEvent{Entity: ref, Camera: id, Active: false, Auto: true, Time: m.now()})
	}
}

// Active reports whether ref's helmet cam is running.
func (m *Machine) Active(ref core.EntityRef) bool {
	return m.State(ref).Active
}

// State returns a copy of ref's helmet cam state.
func (m *Machine) State(ref core.EntityRef) core.HelmetCamState {
	m.mu.Lock()
	e, ok := m.entries[ref]
	m.mu.Unlock()
	if !ok {
		return core.HelmetCamState{Entity: ref}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ActiveCamera reports whether id belongs to a helmet cam that is currently running.
func (m *Machine) ActiveCamera(id core.CameraID) bool {
	for _, s := range m.States() {
		if s.Camera == id {
			return s.Active
		}
	}
	return false
}

// States returns every tracked state ordered by entity ref.
func (m *Machine) States() []core.HelmetCamState {
	m.mu.Lock()
	list := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		list = append(list, e)
	}
	m.mu.Unlock()

	out := make([]core.HelmetCamState, 0, len(list))
	for _, e := range list {
		e.mu.Lock()
		out = append(out, e.state)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// Tracked returns the refs with state, in sorted order.
func (m *Machine) Tracked() []core.EntityRef {
	states := m.States()
	refs := make([]core.EntityRef, len(states))
	for i, s := range states {
		refs[i] = s.Entity
	}
	return refs
}

func (m *Machine) emit(ev core.HelmetEvent) {
	m.toggles.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("active", ev.Active), attribute.Bool("auto", ev.Auto)))
	m.logger.Debug("Helmet cam changed", "entity", ev.Entity, "camera", ev.Camera, "active", ev.Active, "auto", ev.Auto)

	m.hookMu.RLock()
	hooks := m.onChange
	m.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ev)
	}
}
