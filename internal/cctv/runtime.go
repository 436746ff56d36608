package cctv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/cctv/internal/entity"
	"github.com/OCAP2/cctv/internal/readiness"
	"github.com/OCAP2/cctv/internal/replication"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/internal/turret"
	"github.com/OCAP2/cctv/pkg/core"
)

// RuntimeDeps configure a Runtime. Options holds the configured defaults; the
// flags sent with each init can only narrow them.
type RuntimeDeps struct {
	Options      Options
	ReadyTimeout time.Duration
	Broadcaster  replication.Broadcaster
	Journal      storage.Backend
	Dialogs      DialogOpener
	Notifier     Notifier
	Logger       *slog.Logger

	// OnBuild runs after a new System is started and before readiness fires.
	OnBuild func(*System)
}

// Runtime owns the System across missions. The entity table and the vehicle
// catalog live here, so they are fed before the first init and between missions.
type Runtime struct {
	entities *entity.Table
	catalog  *turret.Catalog
	deps     RuntimeDeps
	logger   *slog.Logger

	mu     sync.RWMutex
	system *System
	ready  *readiness.Signal
}

func NewRuntime(deps RuntimeDeps) *Runtime {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ReadyTimeout <= 0 {
		deps.ReadyTimeout = 30 * time.Second
	}
	r := &Runtime{
		entities: entity.NewTable(),
		catalog:  turret.NewCatalog(),
		deps:     deps,
		logger:   deps.Logger.With("component", "runtime"),
		ready:    readiness.New(),
	}
	r.entities.OnInvalidate(r.forwardInvalidation)
	return r
}

func (r *Runtime) Entities() *entity.Table { return r.entities }

func (r *Runtime) Catalog() *turret.Catalog { return r.catalog }

func (r *Runtime) forwardInvalidation(ref core.EntityRef) {
	if sys := r.Current(); sys != nil {
		sys.EntityInvalidated(ref)
	}
}

// Init builds and starts a new System, replacing any previous one, and fires
// readiness. enabled and allowZeus are ANDed with the configured switches.
func (r *Runtime) Init(enabled, allowZeus bool) (*System, error) {
	opts := r.deps.Options
	opts.Enabled = opts.Enabled && enabled
	opts.AllowZeusPlacement = opts.AllowZeusPlacement && allowZeus

	sys, err := New(Deps{
		Entities:    r.entities,
		Catalog:     r.catalog,
		Broadcaster: r.deps.Broadcaster,
		Journal:     r.deps.Journal,
		Dialogs:     r.deps.Dialogs,
		Notifier:    r.deps.Notifier,
		Logger:      r.deps.Logger,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("building cctv system: %w", err)
	}
	if err := sys.Start(); err != nil {
		sys.Close()
		return nil, fmt.Errorf("starting cctv system: %w", err)
	}
	if r.deps.OnBuild != nil {
		r.deps.OnBuild(sys)
	}

	r.mu.Lock()
	old := r.system
	r.system = sys
	ready := r.ready
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	ready.Fire()
	r.logger.Info("CCTV system ready", "enabled", opts.Enabled, "allowZeusPlacement", opts.AllowZeusPlacement)
	return sys, nil
}

// Current returns the running System, or nil before init.
func (r *Runtime) Current() *System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.system
}

// Ready reports whether the current mission's System is up.
func (r *Runtime) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready.Fired()
}

// Await blocks until the System is ready, bounded by the ready timeout.
// It fails with core.ErrNotReady when the timeout passes first.
func (r *Runtime) Await(ctx context.Context) (*System, error) {
	r.mu.RLock()
	ready := r.ready
	r.mu.RUnlock()

	wctx, cancel := context.WithTimeout(ctx, r.deps.ReadyTimeout)
	defer cancel()
	if err := ready.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("waited %s: %w", r.deps.ReadyTimeout, core.ErrNotReady)
		}
		return nil, err
	}

	sys := r.Current()
	if sys == nil {
		return nil, core.ErrNotReady
	}
	return sys, nil
}

// End closes the current System and clears the entity table. Callers of Await
// block again until the next Init.
func (r *Runtime) End() {
	r.mu.Lock()
	sys := r.system
	r.system = nil
	r.ready = readiness.New()
	r.mu.Unlock()

	if sys != nil {
		sys.Close()
	}
	r.entities.Reset()
	r.entities.OnInvalidate(r.forwardInvalidation)
	r.logger.Info("CCTV system ended")
}
