// pkg/core/helmet.go
package core

// HelmetCamState is the per-entity helmet camera state.
type HelmetCamState struct {
	Entity EntityRef `json:"entity"`
	Active bool      `json:"active"`
	Camera CameraID  `json:"camera,omitempty"`
}

// Entity is the last known game-side view of a world object.
type Entity struct {
	Ref   EntityRef `json:"ref"`
	Name  string    `json:"name"`
	Class string    `json:"class"`
	Side  Side      `json:"side"`
	Alive bool      `json:"alive"`
	Local bool      `json:"local"`
	Items []string  `json:"items"`
}

// Observer is whoever opened an interaction menu.
type Observer struct {
	Ref    EntityRef `json:"ref"`
	Side   Side      `json:"side"`
	IsZeus bool      `json:"isZeus"`
}
