// Package menu builds the interaction menu an observer sees on a target entity.
package menu

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/OCAP2/cctv/pkg/core"
)

// Entry ids. Camera entries use IDView followed by the camera id.
const (
	IDPowerOn     = "power_on"
	IDPowerOff    = "power_off"
	IDStopViewing = "stop_viewing"
	IDView        = "view_"
	IDHelmetStart = "helmet_start"
	IDHelmetStop  = "helmet_stop"
	IDAddCamera   = "zeus_add"
	IDCameraSetup = "zeus_dialog"
	IDAddTurrets  = "zeus_turrets"
)

type Entities interface {
	Get(ref core.EntityRef) (core.Entity, bool)
	Valid(ref core.EntityRef) bool
}

type Screens interface {
	ByOwner(ref core.EntityRef) (core.ScreenRecord, error)
}

type Cameras interface {
	ListVisibleTo(side core.Side) []core.CameraRecord
	ByOwner(ref core.EntityRef) []core.CameraRecord
}

type Helmets interface {
	IsEligible(ref core.EntityRef) bool
	Active(ref core.EntityRef) bool
	ActiveCamera(id core.CameraID) bool
}

type Vehicles interface {
	Has(class string) bool
}

// Actions performs what a selected entry asks for. The composition root implements
// it so every mutation is replicated and journaled the same way.
type Actions interface {
	PowerOn(ctx context.Context, screen core.ScreenID, actor core.EntityRef) error
	PowerOff(ctx context.Context, screen core.ScreenID, actor core.EntityRef) error
	SelectCamera(ctx context.Context, screen core.ScreenID, cam core.CameraID, actor core.EntityRef) error
	Release(ctx context.Context, screen core.ScreenID, actor core.EntityRef) error
	StartHelmet(ctx context.Context, ref core.EntityRef) error
	StopHelmet(ctx context.Context, ref core.EntityRef) error
	AddCamera(ctx context.Context, zeus, target core.EntityRef) error
	OpenCameraDialog(ctx context.Context, zeus, target core.EntityRef) error
	AddTurretCameras(ctx context.Context, zeus, vehicle core.EntityRef, class string) error
}

type Deps struct {
	Entities Entities
	Screens  Screens
	Cameras  Cameras
	Helmets  Helmets
	Vehicles Vehicles
	Actions  Actions
}

type Options struct {
	Enabled            bool
	AllowZeusPlacement bool
}

// Builder assembles menus. Entry order is fixed actions first, then cameras by
// ascending id.
type Builder struct {
	deps      Deps
	enabled   atomic.Bool
	allowZeus atomic.Bool
}

func NewBuilder(deps Deps, opts Options) *Builder {
	b := &Builder{deps: deps}
	b.enabled.Store(opts.Enabled)
	b.allowZeus.Store(opts.AllowZeusPlacement)
	return b
}

// SetEnabled switches the whole system on or off. A disabled builder returns no entries.
func (b *Builder) SetEnabled(v bool) { b.enabled.Store(v) }

func (b *Builder) Enabled() bool { return b.enabled.Load() }

func (b *Builder) SetAllowZeusPlacement(v bool) { b.allowZeus.Store(v) }

func (b *Builder) AllowZeusPlacement() bool { return b.allowZeus.Load() }

// Build returns the entries observer gets on target.
func (b *Builder) Build(observer core.Observer, target core.EntityRef) []core.MenuEntry {
	if !b.enabled.Load() || !b.deps.Entities.Valid(target) {
		return nil
	}

	if scr, err := b.deps.Screens.ByOwner(target); err == nil {
		return b.screenEntries(observer, scr)
	}

	var out []core.MenuEntry
	if observer.Ref == target {
		out = append(out, b.helmetEntries(observer.Ref)...)
	}
	if observer.IsZeus && b.allowZeus.Load() && observer.Ref != target {
		out = append(out, b.zeusEntries(observer.Ref, target)...)
	}
	return out
}

func (b *Builder) screenEntries(observer core.Observer, scr core.ScreenRecord) []core.MenuEntry {
	if !scr.UsableBy(observer.Side) && !observer.IsZeus {
		return nil
	}
	actor := observer.Ref
	act := b.deps.Actions
	var out []core.MenuEntry

	if scr.State.Mode == core.ModeOff {
		return append(out, core.MenuEntry{ID: IDPowerOn, Label: "Power On", Action: func(ctx context.Context) error {
			return act.PowerOn(ctx, scr.ID, actor)
		}})
	}
	out = append(out, core.MenuEntry{ID: IDPowerOff, Label: "Power Off", Action: func(ctx context.Context) error {
		return act.PowerOff(ctx, scr.ID, actor)
	}})
	if scr.State.Mode == core.ModeViewing {
		out = append(out, core.MenuEntry{ID: IDStopViewing, Label: "Stop Viewing", Action: func(ctx context.Context) error {
			return act.Release(ctx, scr.ID, actor)
		}})
	}

	for _, cam := range b.deps.Cameras.ListVisibleTo(observer.Side) {
		if !cam.Side.CompatibleWith(scr.Side) {
			continue
		}
		if cam.Kind == core.SourceHelmet && !b.deps.Helmets.ActiveCamera(cam.ID) {
			continue
		}
		id := cam.ID
		out = append(out, core.MenuEntry{
			ID:    IDView + strconv.FormatUint(uint64(id), 10),
			Label: fmt.Sprintf("View %q", cam.Label),
			Action: func(ctx context.Context) error {
				return act.SelectCamera(ctx, scr.ID, id, actor)
			},
		})
	}
	return out
}

func (b *Builder) helmetEntries(ref core.EntityRef) []core.MenuEntry {
	act := b.deps.Actions
	if b.deps.Helmets.Active(ref) {
		return []core.MenuEntry{{ID: IDHelmetStop, Label: "Stop Helmet Cam", Action: func(ctx context.Context) error {
			return act.StopHelmet(ctx, ref)
		}}}
	}
	if b.deps.Helmets.IsEligible(ref) {
		return []core.MenuEntry{{ID: IDHelmetStart, Label: "Start Helmet Cam", Action: func(ctx context.Context) error {
			return act.StartHelmet(ctx, ref)
		}}}
	}
	return nil
}

func (b *Builder) zeusEntries(zeus, target core.EntityRef) []core.MenuEntry {
	act := b.deps.Actions
	var out []core.MenuEntry

	if !hasStatic(b.deps.Cameras.ByOwner(target)) {
		out = append(out, core.MenuEntry{ID: IDAddCamera, Label: "Add as Camera", Action: func(ctx context.Context) error {
			return act.AddCamera(ctx, zeus, target)
		}})
	}
	out = append(out, core.MenuEntry{ID: IDCameraSetup, Label: "Add Camera...", Action: func(ctx context.Context) error {
		return act.OpenCameraDialog(ctx, zeus, target)
	}})

	if e, ok := b.deps.Entities.Get(target); ok && e.Class != "" && b.deps.Vehicles.Has(e.Class) {
		class := e.Class
		out = append(out, core.MenuEntry{ID: IDAddTurrets, Label: "Add Turret Cameras", Action: func(ctx context.Context) error {
			return act.AddTurretCameras(ctx, zeus, target, class)
		}})
	}
	return out
}

func hasStatic(recs []core.CameraRecord) bool {
	for _, r := range recs {
		if r.Active && r.Kind == core.SourceStatic {
			return true
		}
	}
	return false
}
