package parser

import "github.com/OCAP2/cctv/pkg/core"

// InitCommand carries the init module's switches.
type InitCommand struct {
	Enabled            bool
	AllowZeusPlacement bool
}

// ScreenInit places one screen on each synced object.
type ScreenInit struct {
	Side     core.Side
	StartOff bool
	Targets  []core.EntityRef
}

// CameraInit registers one STATIC camera on each synced object. Positions, when
// sent, line up with Targets; a missing entry is nil.
type CameraInit struct {
	Side      core.Side
	Label     string
	Targets   []core.EntityRef
	Positions []*core.Position3D
}

// MenuRequest asks for the entries observer gets on Target.
type MenuRequest struct {
	Observer core.Observer
	Target   core.EntityRef
}

// ActionRequest reports a menu entry selected by Observer.
type ActionRequest struct {
	Observer core.EntityRef
	ID       string
}

// ZeusRegister is the director dialog's confirmation.
type ZeusRegister struct {
	Zeus   core.EntityRef
	Target core.EntityRef
	Label  string
	Side   core.Side
}

// SyncAck confirms an update was applied on the game side.
type SyncAck struct {
	Topic   string
	Key     string
	Version uint64
}
