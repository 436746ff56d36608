// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/OCAP2/cctv/internal/geo"
	"github.com/OCAP2/cctv/internal/model"
	"github.com/OCAP2/cctv/pkg/core"
	"gorm.io/datatypes"
)

// turretPathToJSON stores a turret path as a JSON array. Non-turret cameras get "[]".
func turretPathToJSON(p core.TurretPath) datatypes.JSON {
	if len(p) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal([]int(p))
	return datatypes.JSON(data)
}

// CoreToWorld converts a core.World to a GORM model.World.
// The location is projected from the world's latitude and longitude.
func CoreToWorld(w core.World) model.World {
	out := model.World{
		Author:      w.Author,
		DisplayName: w.DisplayName,
		WorldName:   w.WorldName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
	}
	out.ID = w.ID
	if pt, err := geo.Coords3857From4326(float64(w.Longitude), float64(w.Latitude)); err == nil {
		out.Location = pt
	}
	return out
}

// CoreToMission converts a core.Mission to a GORM model.Mission.
func CoreToMission(m core.Mission) model.Mission {
	out := model.Mission{
		SessionID:        m.SessionID,
		MissionName:      m.MissionName,
		BriefingName:     m.BriefingName,
		Author:           m.Author,
		ServerName:       m.ServerName,
		StartTime:        m.StartTime,
		AddonVersion:     m.AddonVersion,
		ExtensionVersion: m.ExtensionVersion,
	}
	out.ID = m.ID
	return out
}

// CoreToCamera converts a core.CameraRecord to a GORM model.Camera.
// MissionID is left for the caller.
func CoreToCamera(c core.CameraRecord) model.Camera {
	return model.Camera{
		CameraID:     uint32(c.ID),
		RegisteredAt: c.RegisteredAt,
		Owner:        string(c.Owner),
		Label:        c.Label,
		Side:         c.Side.String(),
		Kind:         c.Kind.String(),
		Vehicle:      string(c.Vehicle),
		TurretPath:   turretPathToJSON(c.TurretPath),
		Origin:       c.Origin,
		Position:     geo.PointFromPosition(c.Position),
	}
}

// CoreToScreenTransition converts a core.Transition to a GORM model.ScreenTransition.
func CoreToScreenTransition(t core.Transition) model.ScreenTransition {
	return model.ScreenTransition{
		Time:       t.Time,
		ScreenID:   uint32(t.Screen),
		Owner:      string(t.Owner),
		FromMode:   t.From.Mode.String(),
		FromCamera: uint32(t.From.Camera),
		ToMode:     t.To.Mode.String(),
		ToCamera:   uint32(t.To.Camera),
		Version:    t.Version,
		Actor:      string(t.Actor),
	}
}

// CoreToHelmetEvent converts a core.HelmetEvent to a GORM model.HelmetEvent.
func CoreToHelmetEvent(e core.HelmetEvent) model.HelmetEvent {
	return model.HelmetEvent{
		Time:     e.Time,
		Entity:   string(e.Entity),
		CameraID: uint32(e.Camera),
		Active:   e.Active,
		Auto:     e.Auto,
	}
}
