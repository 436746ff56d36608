package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&CctvInfo{},
	&World{},
	&Mission{},
	&Camera{},
	&ScreenTransition{},
	&HelmetEvent{},
	&UsageSample{},
}

// DatabaseModelsSQLite are migrated when the journal runs on SQLite.
// Point columns are stored as WKB blobs there.
var DatabaseModelsSQLite = []interface{}{
	&CctvInfo{},
	&World{},
	&Mission{},
	&Camera{},
	&ScreenTransition{},
	&HelmetEvent{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// CctvInfo identifies the server instance writing the journal
type CctvInfo struct {
	gorm.Model
	ServerName  string `json:"serverName" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
}

func (*CctvInfo) TableName() string {
	return "cctv_infos"
}

// UsageSample is a periodic snapshot of registry and screen counters
type UsageSample struct {
	Time           time.Time `json:"time" gorm:"type:timestamptz;index:idx_usage_time"`
	MissionID      uint      `json:"missionId" gorm:"index:idx_usage_mission_id"`
	Mission        Mission   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MissionID;"`
	Cameras        uint16    `json:"cameras"`
	ActiveCameras  uint16    `json:"activeCameras"`
	Screens        uint16    `json:"screens"`
	ViewingScreens uint16    `json:"viewingScreens"`
	ActiveHelmets  uint16    `json:"activeHelmets"`
}

func (*UsageSample) TableName() string {
	return "usage_samples"
}

////////////////////////
// MISSION MODELS
////////////////////////

// World is the map a mission runs on
type World struct {
	gorm.Model
	Author      string     `json:"author" gorm:"size:64"`
	DisplayName string     `json:"displayName" gorm:"size:127"`
	WorldName   string     `json:"worldName" gorm:"size:127"`
	WorldSize   float32    `json:"worldSize"`
	Latitude    float32    `json:"latitude" gorm:"-"`
	Longitude   float32    `json:"longitude" gorm:"-"`
	Location    geom.Point `json:"location"`
	Missions    []Mission
}

func (*World) TableName() string {
	return "worlds"
}

// Mission is one run of a scenario
type Mission struct {
	gorm.Model
	SessionID        string    `json:"sessionId" gorm:"size:36;index:idx_mission_session"`
	MissionName      string    `json:"missionName" gorm:"size:200"`
	BriefingName     string    `json:"briefingName" gorm:"size:200"`
	Author           string    `json:"author" gorm:"size:200"`
	ServerName       string    `json:"serverName" gorm:"size:200"`
	StartTime        time.Time `json:"missionStart" gorm:"type:timestamptz;index:idx_mission_start"`
	WorldID          uint
	World            World  `gorm:"foreignkey:WorldID"`
	AddonVersion     string `json:"addonVersion" gorm:"size:64"`
	ExtensionVersion string `json:"extensionVersion" gorm:"size:64"`

	Cameras           []Camera
	ScreenTransitions []ScreenTransition
	HelmetEvents      []HelmetEvent
}

func (*Mission) TableName() string {
	return "missions"
}

////////////////////////
// JOURNAL MODELS
////////////////////////

// Camera is a registered camera source.
// Uses composite primary key (MissionID, CameraID); CameraID is the registry id.
type Camera struct {
	MissionID    uint           `json:"missionId" gorm:"primaryKey;autoIncrement:false"`
	Mission      Mission        `gorm:"foreignkey:MissionID"`
	CameraID     uint32         `json:"cameraId" gorm:"primaryKey;autoIncrement:false"`
	RegisteredAt time.Time      `json:"registeredAt" gorm:"type:timestamptz"`
	Owner        string         `json:"owner" gorm:"size:32;index:idx_camera_owner"`
	Label        string         `json:"label" gorm:"size:127"`
	Side         string         `json:"side" gorm:"size:8"`
	Kind         string         `json:"kind" gorm:"size:8"`
	Vehicle      string         `json:"vehicle" gorm:"size:32"`
	TurretPath   datatypes.JSON `json:"turretPath"`
	Origin       string         `json:"origin" gorm:"size:16"`
	Position     geom.Point     `json:"position"`
}

func (*Camera) TableName() string {
	return "cameras"
}

// ScreenTransition is one applied change of a screen's view state
type ScreenTransition struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"type:timestamptz;index:idx_transition_time"`
	MissionID  uint      `json:"missionId" gorm:"index:idx_transition_mission_id"`
	Mission    Mission   `gorm:"foreignkey:MissionID"`
	ScreenID   uint32    `json:"screenId" gorm:"index:idx_transition_screen"`
	Owner      string    `json:"owner" gorm:"size:32"`
	FromMode   string    `json:"fromMode" gorm:"size:8"`
	FromCamera uint32    `json:"fromCamera"`
	ToMode     string    `json:"toMode" gorm:"size:8"`
	ToCamera   uint32    `json:"toCamera"`
	Version    uint64    `json:"version"`
	Actor      string    `json:"actor" gorm:"size:32"`
}

func (*ScreenTransition) TableName() string {
	return "screen_transitions"
}

// HelmetEvent is a helmet cam start or stop
type HelmetEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;index:idx_helmet_time"`
	MissionID uint      `json:"missionId" gorm:"index:idx_helmet_mission_id"`
	Mission   Mission   `gorm:"foreignkey:MissionID"`
	Entity    string    `json:"entity" gorm:"size:32"`
	CameraID  uint32    `json:"cameraId"`
	Active    bool      `json:"active"`
	Auto      bool      `json:"auto"`
}

func (*HelmetEvent) TableName() string {
	return "helmet_events"
}
