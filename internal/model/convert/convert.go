package convert

import (
	"encoding/json"

	"github.com/OCAP2/cctv/internal/geo"
	"github.com/OCAP2/cctv/internal/model"
	"github.com/OCAP2/cctv/pkg/core"
)

// WorldToCore converts a GORM World to a core.World.
func WorldToCore(w model.World) core.World {
	return core.World{
		ID:          w.ID,
		Author:      w.Author,
		DisplayName: w.DisplayName,
		WorldName:   w.WorldName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
	}
}

// MissionToCore converts a GORM Mission to a core.Mission.
func MissionToCore(m model.Mission) core.Mission {
	return core.Mission{
		ID:               m.ID,
		SessionID:        m.SessionID,
		MissionName:      m.MissionName,
		BriefingName:     m.BriefingName,
		Author:           m.Author,
		ServerName:       m.ServerName,
		StartTime:        m.StartTime,
		AddonVersion:     m.AddonVersion,
		ExtensionVersion: m.ExtensionVersion,
	}
}

// CameraToCore converts a GORM Camera to a core.CameraRecord.
// The journal keeps no liveness, so Active is always true.
func CameraToCore(c model.Camera) core.CameraRecord {
	side, _ := core.ParseSide(c.Side)
	kind, _ := core.ParseSourceKind(c.Kind)

	var path core.TurretPath
	if len(c.TurretPath) > 0 {
		var raw []int
		if err := json.Unmarshal(c.TurretPath, &raw); err == nil && len(raw) > 0 {
			path = raw
		}
	}

	return core.CameraRecord{
		ID:           core.CameraID(c.CameraID),
		Owner:        core.EntityRef(c.Owner),
		Label:        c.Label,
		Side:         side,
		Kind:         kind,
		Vehicle:      core.EntityRef(c.Vehicle),
		TurretPath:   path,
		Active:       true,
		Position:     geo.PositionFromPoint(c.Position),
		Origin:       c.Origin,
		RegisteredAt: c.RegisteredAt,
	}
}

// ScreenTransitionToCore converts a GORM ScreenTransition to a core.Transition.
func ScreenTransitionToCore(t model.ScreenTransition) core.Transition {
	from, _ := core.ParseViewMode(t.FromMode)
	to, _ := core.ParseViewMode(t.ToMode)
	return core.Transition{
		Screen:  core.ScreenID(t.ScreenID),
		Owner:   core.EntityRef(t.Owner),
		From:    core.ViewState{Mode: from, Camera: core.CameraID(t.FromCamera)},
		To:      core.ViewState{Mode: to, Camera: core.CameraID(t.ToCamera)},
		Version: t.Version,
		Actor:   core.EntityRef(t.Actor),
		Time:    t.Time,
	}
}

// HelmetEventToCore converts a GORM HelmetEvent to a core.HelmetEvent.
func HelmetEventToCore(e model.HelmetEvent) core.HelmetEvent {
	return core.HelmetEvent{
		Entity: core.EntityRef(e.Entity),
		Camera: core.CameraID(e.CameraID),
		Active: e.Active,
		Auto:   e.Auto,
		Time:   e.Time,
	}
}
