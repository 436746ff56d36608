// Package registry is the single source of truth for camera identity during a mission.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/OCAP2/cctv/pkg/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/cctv/internal/registry"

// Validator answers whether an entity handle still names a live object.
type Validator interface {
	Valid(ref core.EntityRef) bool
}

// Registration describes a camera to add.
type Registration struct {
	Owner      core.EntityRef
	Label      string
	Side       core.Side
	Kind       core.SourceKind
	Vehicle    core.EntityRef
	TurretPath core.TurretPath
	Position   *core.Position3D
	Origin     string
}

type turretKey struct {
	vehicle core.EntityRef
	path    string
}

// Registry assigns camera ids and keeps every CameraRecord of the run.
// Records are never deleted; ids are never reused.
type Registry struct {
	mu        sync.RWMutex
	validator Validator
	records   []core.CameraRecord // index id-1
	byOwner   map[core.EntityRef][]core.CameraID
	byTurret  map[turretKey]core.CameraID
	closed    bool

	onRegister   []func(core.CameraRecord)
	onInvalidate []func(core.CameraRecord)
	onUpdate     []func(old, updated core.CameraRecord)

	logger     *slog.Logger
	registered metric.Int64Counter
	now        func() time.Time
}

// New creates an empty registry. Uses the global OTel meter for metrics (no-op if not configured).
func New(validator Validator, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		validator: validator,
		byOwner:   make(map[core.EntityRef][]core.CameraID),
		byTurret:  make(map[turretKey]core.CameraID),
		logger:    logger.With("component", "registry"),
		now:       time.Now,
	}

	var err error
	r.registered, err = otel.Meter(instrumentationName).Int64Counter(
		"cctv.cameras.registered",
		metric.WithDescription("Cameras added to the registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registered counter: %w", err)
	}
	return r, nil
}

// OnRegister adds a hook called after every new record.
func (r *Registry) OnRegister(fn func(core.CameraRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRegister = append(r.onRegister, fn)
}

// OnInvalidate adds a hook called for every record that becomes inactive.
func (r *Registry) OnInvalidate(fn func(core.CameraRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onInvalidate = append(r.onInvalidate, fn)
}

// OnUpdate adds a hook called when label or side of a record changes.
func (r *Registry) OnUpdate(fn func(old, updated core.CameraRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// Register adds a camera and returns its id. An empty label becomes "Camera <id>".
// It fails with core.ErrInvalidOwner, leaving the registry untouched, when the owner
// is not a valid entity.
func (r *Registry) Register(reg Registration) (core.CameraID, error) {
	r.mu.Lock()
	rec, err := r.insertLocked(reg)
	hooks := r.onRegister
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	r.afterRegister(rec, hooks)
	return rec.ID, nil
}

// UpsertTurret registers the turret camera for (reg.Vehicle, reg.TurretPath), or
// updates label and side of the existing one. created reports which happened.
func (r *Registry) UpsertTurret(reg Registration) (id core.CameraID, created bool, err error) {
	reg.Kind = core.SourceTurret
	if reg.Owner == "" {
		reg.Owner = reg.Vehicle
	}
	key := turretKey{vehicle: reg.Vehicle, path: reg.TurretPath.Key()}

	r.mu.Lock()
	if existing, ok := r.byTurret[key]; ok && r.records[existing-1].Active {
		old, updated, changed := r.updateLocked(existing, reg.Label, reg.Side)
		hooks := r.onUpdate
		r.mu.Unlock()
		if changed {
			r.afterUpdate(old, updated, hooks)
		}
		return existing, false, nil
	}
	rec, err := r.insertLocked(reg)
	if err == nil {
		r.byTurret[key] = rec.ID
	}
	hooks := r.onRegister
	r.mu.Unlock()
	if err != nil {
		return 0, false, err
	}

	r.afterRegister(rec, hooks)
	return rec.ID, true, nil
}

func (r *Registry) insertLocked(reg Registration) (core.CameraRecord, error) {
	if r.closed {
		return core.CameraRecord{}, core.ErrRegistryClosed
	}
	if r.validator != nil && !r.validator.Valid(reg.Owner) {
		return core.CameraRecord{}, fmt.Errorf("register %s camera for %q: %w", reg.Kind, reg.Owner, core.ErrInvalidOwner)
	}

	id := core.CameraID(len(r.records) + 1)
	label := reg.Label
	if label == "" {
		label = "Camera " + strconv.Itoa(int(id))
	}

	rec := core.CameraRecord{
		ID:           id,
		Owner:        reg.Owner,
		Label:        label,
		Side:         reg.Side,
		Kind:         reg.Kind,
		Active:       true,
		Origin:       reg.Origin,
		RegisteredAt: r.now(),
	}
	if reg.Kind == core.SourceTurret {
		rec.Vehicle = reg.Vehicle
		rec.TurretPath = append(core.TurretPath{}, reg.TurretPath...)
	}
	if reg.Position != nil {
		p := *reg.Position
		rec.Position = &p
	}

	r.records = append(r.records, rec)
	r.byOwner[rec.Owner] = append(r.byOwner[rec.Owner], id)
	return rec.Clone(), nil
}

func (r *Registry) afterRegister(rec core.CameraRecord, hooks []func(core.CameraRecord)) {
	r.registered.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", rec.Kind.String())))
	r.logger.Debug("Camera registered",
		"id", rec.ID, "label", rec.Label, "side", rec.Side.String(), "kind", rec.Kind.String(), "owner", rec.Owner)
	for _, fn := range hooks {
		fn(rec.Clone())
	}
}

// Lookup returns a copy of the record for id.
func (r *Registry) Lookup(id core.CameraID) (core.CameraRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.records) {
		return core.CameraRecord{}, fmt.Errorf("camera %d: %w", id, core.ErrNotFound)
	}
	return r.records[id-1].Clone(), nil
}

// LookupTurret returns the camera registered for a vehicle turret.
func (r *Registry) LookupTurret(vehicle core.EntityRef, path core.TurretPath) (core.CameraRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byTurret[turretKey{vehicle: vehicle, path: path.Key()}]
	if !ok {
		return core.CameraRecord{}, fmt.Errorf("turret %s on %q: %w", path, vehicle, core.ErrNotFound)
	}
	return r.records[id-1].Clone(), nil
}

// ByOwner returns the records owned by ref in ascending id order.
func (r *Registry) ByOwner(ref core.EntityRef) []core.CameraRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byOwner[ref]
	out := make([]core.CameraRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.records[id-1].Clone())
	}
	return out
}

// ListVisibleTo returns active records on ANY or on side, by ascending id.
func (r *Registry) ListVisibleTo(side core.Side) []core.CameraRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.CameraRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Active && rec.Side.Sees(side) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// All returns every record, active or not, by ascending id.
func (r *Registry) All() []core.CameraRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.CameraRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Update changes label and side of an active record. An empty label keeps the
// current one.
func (r *Registry) Update(id core.CameraID, label string, side core.Side) error {
	r.mu.Lock()
	if id == 0 || int(id) > len(r.records) {
		r.mu.Unlock()
		return fmt.Errorf("camera %d: %w", id, core.ErrNotFound)
	}
	if rec := r.records[id-1]; !rec.Active {
		r.mu.Unlock()
		return fmt.Errorf("camera %d owner %q: %w", id, rec.Owner, core.ErrInvalidOwner)
	}
	old, updated, changed := r.updateLocked(id, label, side)
	hooks := r.onUpdate
	r.mu.Unlock()

	if changed {
		r.afterUpdate(old, updated, hooks)
	}
	return nil
}

func (r *Registry) updateLocked(id core.CameraID, label string, side core.Side) (old, updated core.CameraRecord, changed bool) {
	rec := &r.records[id-1]
	old = rec.Clone()
	if label != "" {
		rec.Label = label
	}
	rec.Side = side
	return old, rec.Clone(), old.Label != rec.Label || old.Side != rec.Side
}

func (r *Registry) afterUpdate(old, updated core.CameraRecord, hooks []func(old, updated core.CameraRecord)) {
	r.logger.Debug("Camera updated",
		"id", updated.ID, "label", updated.Label, "side", updated.Side.String(), "previousSide", old.Side.String())
	for _, fn := range hooks {
		fn(old.Clone(), updated.Clone())
	}
}

// Invalidate marks every record owned by ref inactive and returns their ids.
// Ids stay reserved.
func (r *Registry) Invalidate(ref core.EntityRef) []core.CameraID {
	r.mu.Lock()
	var changed []core.CameraRecord
	for _, id := range r.byOwner[ref] {
		rec := &r.records[id-1]
		if rec.Active {
			rec.Active = false
			changed = append(changed, rec.Clone())
		}
	}
	hooks := r.onInvalidate
	r.mu.Unlock()

	ids := make([]core.CameraID, 0, len(changed))
	for _, rec := range changed {
		ids = append(ids, rec.ID)
		r.logger.Debug("Camera invalidated", "id", rec.ID, "owner", ref)
		for _, fn := range hooks {
			fn(rec)
		}
	}
	return ids
}

// Close stops accepting registrations. Reads keep working.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Closed reports whether Close was called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Count returns the number of ids handed out.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
