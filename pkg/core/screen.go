// pkg/core/screen.go
package core

import (
	"encoding/json"
	"fmt"
)

// ScreenID identifies a screen created from a placement.
type ScreenID uint32

// ViewMode is the coarse state of a screen.
type ViewMode uint8

const (
	ModeOff ViewMode = iota
	ModeIdle
	ModeViewing
)

func (m ViewMode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeIdle:
		return "IDLE"
	case ModeViewing:
		return "VIEWING"
	}
	return fmt.Sprintf("ViewMode(%d)", uint8(m))
}

func (m ViewMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *ViewMode) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseViewMode(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseViewMode is the inverse of ViewMode.String.
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "OFF":
		return ModeOff, nil
	case "IDLE":
		return ModeIdle, nil
	case "VIEWING":
		return ModeViewing, nil
	}
	return ModeOff, fmt.Errorf("unknown view mode %q", s)
}

// ViewState is exactly one of OFF, IDLE or VIEWING(Camera).
type ViewState struct {
	Mode   ViewMode `json:"mode"`
	Camera CameraID `json:"camera,omitempty"`
}

var (
	StateOff  = ViewState{Mode: ModeOff}
	StateIdle = ViewState{Mode: ModeIdle}
)

// Viewing returns the VIEWING state bound to id.
func Viewing(id CameraID) ViewState {
	return ViewState{Mode: ModeViewing, Camera: id}
}

func (s ViewState) String() string {
	if s.Mode == ModeViewing {
		return fmt.Sprintf("VIEWING(%d)", s.Camera)
	}
	return s.Mode.String()
}

// ScreenRecord is a display entity and its current view state.
type ScreenRecord struct {
	ID       ScreenID  `json:"id"`
	Owner    EntityRef `json:"owner"`
	Side     Side      `json:"side"`
	StartOff bool      `json:"startOff"`
	State    ViewState `json:"state"`
	Version  uint64    `json:"version"`
}

// BoundCamera returns the camera shown on the screen, if any.
func (r ScreenRecord) BoundCamera() (CameraID, bool) {
	if r.State.Mode == ModeViewing {
		return r.State.Camera, true
	}
	return 0, false
}

// UsableBy reports whether an observer on side may operate the screen.
func (r ScreenRecord) UsableBy(side Side) bool {
	return r.Side.Sees(side)
}
