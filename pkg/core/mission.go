// pkg/core/mission.go
package core

import "time"

// World represents a map/terrain
type World struct {
	ID          uint    `json:"id"`
	Author      string  `json:"author"`
	DisplayName string  `json:"displayName"`
	WorldName   string  `json:"worldName"`
	WorldSize   float32 `json:"worldSize"`
	Latitude    float32 `json:"latitude"`
	Longitude   float32 `json:"longitude"`
}

// Mission represents one run of a scenario
type Mission struct {
	ID               uint      `json:"id"`
	SessionID        string    `json:"sessionId"`
	MissionName      string    `json:"missionName"`
	BriefingName     string    `json:"briefingName"`
	Author           string    `json:"author"`
	ServerName       string    `json:"serverName"`
	StartTime        time.Time `json:"startTime"`
	AddonVersion     string    `json:"addonVersion"`
	ExtensionVersion string    `json:"extensionVersion"`
}

// Transition records one applied screen state change.
type Transition struct {
	Screen  ScreenID  `json:"screen"`
	Owner   EntityRef `json:"owner"`
	From    ViewState `json:"from"`
	To      ViewState `json:"to"`
	Version uint64    `json:"version"`
	Actor   EntityRef `json:"actor,omitempty"`
	Time    time.Time `json:"time"`
}

// Changed reports whether the transition moved the screen to a different state.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// HelmetEvent records a helmet cam start or stop.
type HelmetEvent struct {
	Entity EntityRef `json:"entity"`
	Camera CameraID  `json:"camera"`
	Active bool      `json:"active"`
	Auto   bool      `json:"auto"`
	Time   time.Time `json:"time"`
}

// Usage is a point-in-time count of cameras, screens and helmet cams.
type Usage struct {
	Time           time.Time `json:"time"`
	Cameras        int       `json:"cameras"`
	ActiveCameras  int       `json:"activeCameras"`
	Screens        int       `json:"screens"`
	ViewingScreens int       `json:"viewingScreens"`
	ActiveHelmets  int       `json:"activeHelmets"`
}
