// Package cctv wires the registry, the state machines, replication and the
// journal into one System per mission.
package cctv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/cctv/internal/entity"
	"github.com/OCAP2/cctv/internal/helmetcam"
	"github.com/OCAP2/cctv/internal/menu"
	"github.com/OCAP2/cctv/internal/registry"
	"github.com/OCAP2/cctv/internal/replication"
	"github.com/OCAP2/cctv/internal/screen"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/internal/turret"
	"github.com/OCAP2/cctv/pkg/core"
)

// DialogOpener shows the director's camera setup dialog in the game.
type DialogOpener interface {
	OpenCameraDialog(ctx context.Context, zeus, target core.EntityRef) error
}

// Notifier tells an actor that an action of theirs did not take effect.
type Notifier interface {
	NotifyError(actor core.EntityRef, err error)
}

// Options are the per-mission switches and tunables.
type Options struct {
	Enabled            bool
	AllowZeusPlacement bool
	HelmetItems        []string
	HelmetAutoEnable   bool
	HelmetTick         time.Duration
	VehicleSide        core.Side
	Retries            int
	Timeout            time.Duration
}

// Deps are the collaborators that outlive a single System.
type Deps struct {
	Entities    *entity.Table
	Catalog     *turret.Catalog
	Broadcaster replication.Broadcaster
	Journal     storage.Backend
	Dialogs     DialogOpener
	Notifier    Notifier
	Logger      *slog.Logger
}

// System is everything that lives for one mission. Mutations go through the
// state machines; their hooks journal and replicate each change.
type System struct {
	Cameras *registry.Registry
	Screens *screen.Manager
	Helmets *helmetcam.Machine
	Turrets *turret.Enumerator
	Menus   *menu.Builder
	Actions *menu.ActionTable

	journal    storage.Backend
	dialogs    DialogOpener
	notifier   Notifier
	poller     *helmetcam.Poller
	replicator *replication.Retrying
	versions   atomic.Uint64
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// ScreenUpdate is the payload replicated for a screen.
type ScreenUpdate struct {
	Screen core.ScreenID      `json:"screen"`
	Owner  core.EntityRef     `json:"owner"`
	Side   core.Side          `json:"side"`
	State  core.ViewState     `json:"state"`
	Camera *core.CameraRecord `json:"camera,omitempty"`
	Actor  core.EntityRef     `json:"actor,omitempty"`
}

// New builds a System. The registry is created first; every other component
// reads cameras through it.
func New(deps Deps, opts Options) (*System, error) {
	if deps.Entities == nil {
		return nil, errors.New("cctv: entity table is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = turret.NewCatalog()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = replication.Discard
	}
	if deps.Journal == nil {
		deps.Journal = storage.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger

	cameras, err := registry.New(deps.Entities, logger)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}
	screens, err := screen.NewManager(cameras, deps.Entities, logger)
	if err != nil {
		return nil, fmt.Errorf("creating screen manager: %w", err)
	}
	helmets, err := helmetcam.New(deps.Entities, cameras, helmetcam.Options{
		Items:      opts.HelmetItems,
		AutoEnable: opts.HelmetAutoEnable,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating helmet cam machine: %w", err)
	}
	replicator, err := replication.NewRetrying(deps.Broadcaster, opts.Retries, opts.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating replicator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		Cameras:    cameras,
		Screens:    screens,
		Helmets:    helmets,
		Turrets:    turret.NewEnumerator(deps.Catalog, cameras, opts.VehicleSide, logger),
		Actions:    menu.NewActionTable(),
		journal:    deps.Journal,
		dialogs:    deps.Dialogs,
		notifier:   deps.Notifier,
		poller:     helmetcam.NewPoller(helmets, opts.HelmetTick, logger),
		replicator: replicator,
		logger:     logger.With("component", "cctv"),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.Menus = menu.NewBuilder(menu.Deps{
		Entities: deps.Entities,
		Screens:  screens,
		Cameras:  cameras,
		Helmets:  helmets,
		Vehicles: deps.Catalog,
		Actions:  s,
	}, menu.Options{Enabled: opts.Enabled, AllowZeusPlacement: opts.AllowZeusPlacement})

	cameras.OnRegister(s.cameraRegistered)
	cameras.OnInvalidate(s.cameraInvalidated)
	cameras.OnUpdate(s.cameraUpdated)
	screens.OnTransition(s.screenChanged)
	helmets.OnChange(s.helmetChanged)
	return s, nil
}

// Start runs the helmet cam poller while the system is enabled.
func (s *System) Start() error {
	if !s.Menus.Enabled() {
		return nil
	}
	return s.poller.Start()
}

// Close stops accepting registrations, stops the poller and waits for pending
// broadcasts to finish or be cancelled.
func (s *System) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Cameras.Close()
	s.poller.Stop()
	s.cancel()
	s.wg.Wait()
	s.Actions.Reset()
	s.logger.Info("CCTV system closed", "cameras", s.Cameras.Count())
}

// SetEnabled switches menus and automatic helmet cams on or off.
func (s *System) SetEnabled(v bool) {
	s.Menus.SetEnabled(v)
	if !v {
		s.poller.Stop()
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		if err := s.poller.Start(); err != nil {
			s.logger.Warn("Failed to start helmet cam poller", "error", err)
		}
	}
}

func (s *System) SetAllowZeusPlacement(v bool) { s.Menus.SetAllowZeusPlacement(v) }

// Poller exposes the helmet cam poll loop.
func (s *System) Poller() *helmetcam.Poller { return s.poller }

// replicate broadcasts u in the background. onFail runs after the final failed
// attempt unless the update went stale or the system closed.
func (s *System) replicate(u replication.Update, stillCurrent func() bool, onFail func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := s.replicator.BroadcastGuarded(s.ctx, u, stillCurrent)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrStale):
			s.logger.Debug("Dropped stale update", "topic", u.Topic, "key", u.Key, "version", u.Version)
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Error("Replication failed", "topic", u.Topic, "key", u.Key, "version", u.Version, "error", err)
			if onFail != nil {
				onFail(err)
			}
		}
	}()
}

func (s *System) notify(actor core.EntityRef, err error) {
	if s.notifier == nil || actor == "" {
		return
	}
	s.notifier.NotifyError(actor, err)
}

func (s *System) cameraRegistered(rec core.CameraRecord) {
	if err := s.journal.RecordCamera(&rec); err != nil {
		s.logger.Warn("Failed to journal camera", "id", rec.ID, "error", err)
	}
	s.replicate(replication.Update{
		Topic:   replication.TopicCamera,
		Key:     strconv.FormatUint(uint64(rec.ID), 10),
		Version: s.versions.Add(1),
		Payload: rec,
	}, nil, nil)
}

// cameraUpdated journals and replicates a relabel or side change, then releases
// the screens that may no longer show the camera.
func (s *System) cameraUpdated(old, rec core.CameraRecord) {
	if err := s.journal.RecordCamera(&rec); err != nil {
		s.logger.Warn("Failed to journal camera", "id", rec.ID, "error", err)
	}
	s.replicate(replication.Update{
		Topic:   replication.TopicCamera,
		Key:     strconv.FormatUint(uint64(rec.ID), 10),
		Version: s.versions.Add(1),
		Payload: rec,
	}, nil, nil)
	if old.Side != rec.Side {
		s.Screens.CameraChanged(rec.ID)
	}
}

// cameraInvalidated releases every screen still showing the camera. The journal
// keeps the registration only; the screen transitions record the loss.
func (s *System) cameraInvalidated(rec core.CameraRecord) {
	s.Screens.CameraInvalidated(rec.ID)
	s.replicate(replication.Update{
		Topic:   replication.TopicCamera,
		Key:     strconv.FormatUint(uint64(rec.ID), 10),
		Version: s.versions.Add(1),
		Payload: rec,
	}, nil, nil)
}

func (s *System) screenChanged(t core.Transition) {
	if err := s.journal.RecordTransition(&t); err != nil {
		s.logger.Warn("Failed to journal transition", "screen", t.Screen, "error", err)
	}

	payload := ScreenUpdate{Screen: t.Screen, Owner: t.Owner, State: t.To, Actor: t.Actor}
	if rec, err := s.Screens.Get(t.Screen); err == nil {
		payload.Side = rec.Side
	}
	if t.To.Mode == core.ModeViewing {
		if cam, err := s.Cameras.Lookup(t.To.Camera); err == nil {
			payload.Camera = &cam
		}
	}

	var onFail func(error)
	if t.Actor != "" {
		onFail = func(err error) {
			if _, ok := s.Screens.Revert(t); ok {
				s.logger.Info("Reverted screen transition", "screen", t.Screen, "to", t.From.String())
			}
			s.notify(t.Actor, err)
		}
	}
	s.replicate(replication.Update{
		Topic:   replication.TopicScreen,
		Key:     strconv.FormatUint(uint64(t.Screen), 10),
		Version: t.Version,
		Payload: payload,
	}, func() bool { return s.Screens.Confirm(t.Screen, t.Version) }, onFail)
}

func (s *System) helmetChanged(ev core.HelmetEvent) {
	if err := s.journal.RecordHelmetEvent(&ev); err != nil {
		s.logger.Warn("Failed to journal helmet event", "entity", ev.Entity, "error", err)
	}
	s.replicate(replication.Update{
		Topic:   replication.TopicHelmet,
		Key:     string(ev.Entity),
		Version: s.versions.Add(1),
		Payload: core.HelmetCamState{Entity: ev.Entity, Active: ev.Active, Camera: ev.Camera},
	}, nil, nil)
}

// EntityInvalidated drops everything tied to a dead or removed entity.
func (s *System) EntityInvalidated(ref core.EntityRef) {
	if ids := s.Cameras.Invalidate(ref); len(ids) > 0 {
		s.logger.Debug("Entity invalidated", "entity", ref, "cameras", ids)
	}
	s.Helmets.Forget(ref)
	s.Actions.Forget(ref)
}

// PlaceScreens creates one screen per target. Invalid targets are skipped and
// reported in the joined error.
func (s *System) PlaceScreens(side core.Side, startOff bool, targets []core.EntityRef) ([]core.ScreenID, error) {
	var (
		ids  []core.ScreenID
		errs []error
	)
	for _, target := range targets {
		id, err := s.Screens.Create(screen.Placement{Owner: target, Side: side, StartOff: startOff})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
		if rec, err := s.Screens.Get(id); err == nil {
			s.replicate(replication.Update{
				Topic:   replication.TopicScreen,
				Key:     strconv.FormatUint(uint64(id), 10),
				Version: rec.Version,
				Payload: ScreenUpdate{Screen: id, Owner: rec.Owner, Side: rec.Side, State: rec.State},
			}, func() bool { return s.Screens.Confirm(id, rec.Version) }, nil)
		}
	}
	return ids, errors.Join(errs...)
}

// PlaceCameras registers a STATIC camera on every target. With several targets a
// non-empty label is numbered "<label> <n>". positions[i], when present, is the
// position of targets[i].
func (s *System) PlaceCameras(side core.Side, label string, targets []core.EntityRef, positions []*core.Position3D) ([]core.CameraID, error) {
	var (
		ids  []core.CameraID
		errs []error
	)
	for i, target := range targets {
		l := label
		if l != "" && len(targets) > 1 {
			l = fmt.Sprintf("%s %d", label, i+1)
		}
		reg := registry.Registration{
			Owner:  target,
			Label:  l,
			Side:   side,
			Kind:   core.SourceStatic,
			Origin: core.OriginInit,
		}
		if i < len(positions) {
			reg.Position = positions[i]
		}
		id, err := s.Cameras.Register(reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}

// RegisterZeus adds a STATIC camera chosen by the director.
func (s *System) RegisterZeus(zeus, target core.EntityRef, label string, side core.Side) (core.CameraID, error) {
	if !s.Menus.Enabled() || !s.Menus.AllowZeusPlacement() {
		return 0, fmt.Errorf("zeus placement by %q: %w", zeus, core.ErrDisabled)
	}
	// a second placement on the same object relabels its camera
	for _, rec := range s.Cameras.ByOwner(target) {
		if rec.Active && rec.Kind == core.SourceStatic {
			if err := s.Cameras.Update(rec.ID, label, side); err != nil {
				return 0, err
			}
			return rec.ID, nil
		}
	}
	return s.Cameras.Register(registry.Registration{
		Owner:  target,
		Label:  label,
		Side:   side,
		Kind:   core.SourceStatic,
		Origin: core.OriginZeus,
	})
}

// EnumerateTurrets registers the turret cameras of a vehicle.
func (s *System) EnumerateTurrets(ctx context.Context, req turret.Request) ([]core.CameraID, error) {
	return s.Turrets.Enumerate(ctx, req)
}

// Menu builds observer's menu on target and remembers its actions.
func (s *System) Menu(observer core.Observer, target core.EntityRef) []core.MenuEntry {
	return s.Actions.Store(observer.Ref, s.Menus.Build(observer, target))
}

// Invoke runs an entry of observer's last menu.
func (s *System) Invoke(ctx context.Context, observer core.EntityRef, id string) error {
	return s.Actions.Invoke(ctx, observer, id)
}

// ToggleHelmet flips ref's helmet cam.
func (s *System) ToggleHelmet(ref core.EntityRef) (core.HelmetCamState, error) {
	return s.Helmets.Toggle(ref)
}

// VisibleCameras is ListVisibleTo without helmet cams whose wearer stopped them.
func (s *System) VisibleCameras(side core.Side) []core.CameraRecord {
	recs := s.Cameras.ListVisibleTo(side)
	out := recs[:0]
	for _, rec := range recs {
		if rec.Kind == core.SourceHelmet && !s.Helmets.ActiveCamera(rec.ID) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ScreenState returns the screen placed on owner.
func (s *System) ScreenState(owner core.EntityRef) (core.ScreenRecord, error) {
	return s.Screens.ByOwner(owner)
}

// Usage counts what is in use right now.
func (s *System) Usage() core.Usage {
	u := core.Usage{Time: time.Now()}
	for _, rec := range s.Cameras.All() {
		u.Cameras++
		if rec.Active {
			u.ActiveCameras++
		}
	}
	for _, rec := range s.Screens.All() {
		u.Screens++
		if rec.State.Mode == core.ModeViewing {
			u.ViewingScreens++
		}
	}
	for _, st := range s.Helmets.States() {
		if st.Active {
			u.ActiveHelmets++
		}
	}
	return u
}

// menu.Actions

func (s *System) PowerOn(_ context.Context, id core.ScreenID, actor core.EntityRef) error {
	_, err := s.Screens.PowerOn(id, actor)
	return err
}

func (s *System) PowerOff(_ context.Context, id core.ScreenID, actor core.EntityRef) error {
	_, err := s.Screens.PowerOff(id, actor)
	return err
}

func (s *System) SelectCamera(_ context.Context, id core.ScreenID, cam core.CameraID, actor core.EntityRef) error {
	_, err := s.Screens.SelectCamera(id, cam, actor)
	return err
}

func (s *System) Release(_ context.Context, id core.ScreenID, actor core.EntityRef) error {
	_, err := s.Screens.Release(id, actor)
	return err
}

func (s *System) StartHelmet(_ context.Context, ref core.EntityRef) error {
	_, err := s.Helmets.Start(ref)
	return err
}

func (s *System) StopHelmet(_ context.Context, ref core.EntityRef) error {
	s.Helmets.Stop(ref)
	return nil
}

// AddCamera registers target with side ANY and an automatic label.
func (s *System) AddCamera(_ context.Context, zeus, target core.EntityRef) error {
	id, err := s.Cameras.Register(registry.Registration{
		Owner:  target,
		Side:   core.SideAny,
		Kind:   core.SourceStatic,
		Origin: core.OriginZeus,
	})
	if err != nil {
		return err
	}
	s.logger.Info("Director added camera", "zeus", zeus, "target", target, "id", id)
	return nil
}

func (s *System) OpenCameraDialog(ctx context.Context, zeus, target core.EntityRef) error {
	if s.dialogs == nil {
		return fmt.Errorf("camera dialog for %q: %w", zeus, core.ErrDisabled)
	}
	return s.dialogs.OpenCameraDialog(ctx, zeus, target)
}

func (s *System) AddTurretCameras(ctx context.Context, zeus, vehicle core.EntityRef, class string) error {
	ids, err := s.Turrets.Enumerate(ctx, turret.Request{Vehicle: vehicle, Class: class, Origin: core.OriginZeus})
	if err != nil {
		return err
	}
	s.logger.Info("Director added turret cameras", "zeus", zeus, "vehicle", vehicle, "cameras", ids)
	return nil
}
