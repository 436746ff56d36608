// Package screen implements the per-screen view state machine:
// OFF, IDLE, or VIEWING exactly one camera.
package screen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/cctv/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/cctv/internal/screen"

// CameraLookup resolves camera ids. *registry.Registry satisfies it.
type CameraLookup interface {
	Lookup(id core.CameraID) (core.CameraRecord, error)
}

// Validator answers whether an entity handle still names a live object.
type Validator interface {
	Valid(ref core.EntityRef) bool
}

// Placement is one screen declared by the mission.
type Placement struct {
	Owner    core.EntityRef
	Side     core.Side
	StartOff bool
}

type screen struct {
	mu  sync.Mutex
	rec core.ScreenRecord
}

// Manager owns every screen of the mission. Transitions on one screen are
// serialized by that screen's lock, so concurrent calls resolve in arrival order.
type Manager struct {
	mu        sync.RWMutex
	cameras   CameraLookup
	validator Validator
	screens   map[core.ScreenID]*screen
	byOwner   map[core.EntityRef]core.ScreenID
	nextID    core.ScreenID

	hookMu       sync.RWMutex
	onTransition []func(core.Transition)

	logger      *slog.Logger
	transitions metric.Int64Counter
	now         func() time.Time
}

func NewManager(cameras CameraLookup, validator Validator, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cameras:   cameras,
		validator: validator,
		screens:   make(map[core.ScreenID]*screen),
		byOwner:   make(map[core.EntityRef]core.ScreenID),
		logger:    logger.With("component", "screen"),
		now:       time.Now,
	}

	var err error
	m.transitions, err = otel.Meter(instrumentationName).Int64Counter(
		"cctv.screen.transitions",
		metric.WithDescription("Applied screen state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	return m, nil
}

// OnTransition adds a hook run after every transition that changed state.
func (m *Manager) OnTransition(fn func(core.Transition)) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onTransition = append(m.onTransition, fn)
}

// Create adds a screen in OFF when StartOff is set, else IDLE. Creating a screen
// twice for the same owner returns the existing id.
func (m *Manager) Create(p Placement) (core.ScreenID, error) {
	if m.validator != nil && !m.validator.Valid(p.Owner) {
		return 0, fmt.Errorf("create screen for %q: %w", p.Owner, core.ErrInvalidOwner)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byOwner[p.Owner]; ok {
		return id, nil
	}

	m.nextID++
	state := core.StateIdle
	if p.StartOff {
		state = core.StateOff
	}
	m.screens[m.nextID] = &screen{rec: core.ScreenRecord{
		ID:       m.nextID,
		Owner:    p.Owner,
		Side:     p.Side,
		StartOff: p.StartOff,
		State:    state,
	}}
	m.byOwner[p.Owner] = m.nextID

	m.logger.Debug("Screen created", "id", m.nextID, "owner", p.Owner, "side", p.Side.String(), "state", state.String())
	return m.nextID, nil
}

func (m *Manager) get(id core.ScreenID) (*screen, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.screens[id]
	if !ok {
		return nil, fmt.Errorf("screen %d: %w", id, core.ErrNotFound)
	}
	return s, nil
}

// Get returns a copy of the screen record.
func (m *Manager) Get(id core.ScreenID) (core.ScreenRecord, error) {
	s, err := m.get(id)
	if err != nil {
		return core.ScreenRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

// ByOwner returns the screen hosted by the display entity ref.
func (m *Manager) ByOwner(ref core.EntityRef) (core.ScreenRecord, error) {
	m.mu.RLock()
	id, ok := m.byOwner[ref]
	m.mu.RUnlock()
	if !ok {
		return core.ScreenRecord{}, fmt.Errorf("screen on %q: %w", ref, core.ErrNotFound)
	}
	return m.Get(id)
}

// All returns every screen by ascending id.
func (m *Manager) All() []core.ScreenRecord {
	m.mu.RLock()
	list := make([]*screen, 0, len(m.screens))
	for _, s := range m.screens {
		list = append(list, s)
	}
	m.mu.RUnlock()

	out := make([]core.ScreenRecord, 0, len(list))
	for _, s := range list {
		s.mu.Lock()
		out = append(out, s.rec)
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// apply runs fn under the screen lock. fn returns the next state or an error.
func (m *Manager) apply(id core.ScreenID, actor core.EntityRef, fn func(rec core.ScreenRecord) (core.ViewState, error)) (core.Transition, error) {
	s, err := m.get(id)
	if err != nil {
		return core.Transition{}, err
	}

	s.mu.Lock()
	from := s.rec.State
	to, err := fn(s.rec)
	if err != nil {
		s.mu.Unlock()
		return core.Transition{}, err
	}
	if to != from {
		s.rec.State = to
		s.rec.Version++
	}
	t := core.Transition{
		Screen:  id,
		Owner:   s.rec.Owner,
		From:    from,
		To:      to,
		Version: s.rec.Version,
		Actor:   actor,
		Time:    m.now(),
	}
	s.mu.Unlock()

	if t.Changed() {
		m.transitions.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("to", to.Mode.String())))
		m.logger.Debug("Screen transition", "id", id, "from", from.String(), "to", to.String(), "version", t.Version)
		m.hookMu.RLock()
		hooks := m.onTransition
		m.hookMu.RUnlock()
		for _, fn := range hooks {
			fn(t)
		}
	}
	return t, nil
}

// PowerOn moves OFF to IDLE. It does nothing when already powered.
func (m *Manager) PowerOn(id core.ScreenID, actor core.EntityRef) (core.Transition, error) {
	return m.apply(id, actor, func(rec core.ScreenRecord) (core.ViewState, error) {
		if rec.State.Mode == core.ModeOff {
			return core.StateIdle, nil
		}
		return rec.State, nil
	})
}

// PowerOff moves any state to OFF and drops the bound camera.
func (m *Manager) PowerOff(id core.ScreenID, actor core.EntityRef) (core.Transition, error) {
	return m.apply(id, actor, func(core.ScreenRecord) (core.ViewState, error) {
		return core.StateOff, nil
	})
}

// SelectCamera binds cam to a powered screen. The camera must exist, be active
// and be on ANY or the screen's side; otherwise the state is left unchanged.
func (m *Manager) SelectCamera(id core.ScreenID, cam core.CameraID, actor core.EntityRef) (core.Transition, error) {
	return m.apply(id, actor, func(rec core.ScreenRecord) (core.ViewState, error) {
		if rec.State.Mode == core.ModeOff {
			return rec.State, fmt.Errorf("select camera %d on screen %d: %w", cam, id, core.ErrScreenOff)
		}
		camera, err := m.cameras.Lookup(cam)
		if err != nil {
			return rec.State, err
		}
		if !camera.Active {
			return rec.State, fmt.Errorf("camera %d is inactive: %w", cam, core.ErrNotFound)
		}
		if !camera.Side.CompatibleWith(rec.Side) {
			return rec.State, fmt.Errorf("camera %d (%s) on screen %d (%s): %w",
				cam, camera.Side, id, rec.Side, core.ErrIncompatibleCamera)
		}
		return core.Viewing(cam), nil
	})
}

// Release moves VIEWING back to IDLE.
func (m *Manager) Release(id core.ScreenID, actor core.EntityRef) (core.Transition, error) {
	return m.apply(id, actor, func(rec core.ScreenRecord) (core.ViewState, error) {
		if rec.State.Mode == core.ModeViewing {
			return core.StateIdle, nil
		}
		return rec.State, nil
	})
}

// Revert undoes t if nothing else has happened to the screen since.
// It reports false when the screen has moved on. The resulting transition has no actor.
func (m *Manager) Revert(t core.Transition) (core.Transition, bool) {
	var stale bool
	rt, err := m.apply(t.Screen, "", func(rec core.ScreenRecord) (core.ViewState, error) {
		if rec.Version != t.Version {
			stale = true
			return rec.State, nil
		}
		return t.From, nil
	})
	if err != nil || stale {
		return core.Transition{}, false
	}
	return rt, true
}

// Confirm reports whether an acknowledgement for version still matches the screen.
// Late confirmations for superseded states return false and are ignored.
func (m *Manager) Confirm(id core.ScreenID, version uint64) bool {
	rec, err := m.Get(id)
	if err != nil {
		return false
	}
	return rec.Version == version
}

// CameraInvalidated moves every screen showing cam back to IDLE.
func (m *Manager) CameraInvalidated(cam core.CameraID) []core.Transition {
	var out []core.Transition
	for _, rec := range m.All() {
		if bound, ok := rec.BoundCamera(); !ok || bound != cam {
			continue
		}
		t, err := m.apply(rec.ID, "", func(cur core.ScreenRecord) (core.ViewState, error) {
			if cur.State == core.Viewing(cam) {
				return core.StateIdle, nil
			}
			return cur.State, nil
		})
		if err == nil && t.Changed() {
			out = append(out, t)
		}
	}
	return out
}

// CameraChanged re-checks every screen showing cam after its record changed and
// moves those it no longer fits back to IDLE.
func (m *Manager) CameraChanged(cam core.CameraID) []core.Transition {
	camera, err := m.cameras.Lookup(cam)
	if err != nil {
		return nil
	}
	var out []core.Transition
	for _, rec := range m.All() {
		if bound, ok := rec.BoundCamera(); !ok || bound != cam {
			continue
		}
		t, err := m.apply(rec.ID, "", func(cur core.ScreenRecord) (core.ViewState, error) {
			if cur.State == core.Viewing(cam) && (!camera.Active || !camera.Side.CompatibleWith(cur.Side)) {
				return core.StateIdle, nil
			}
			return cur.State, nil
		})
		if err == nil && t.Changed() {
			out = append(out, t)
		}
	}
	return out
}
