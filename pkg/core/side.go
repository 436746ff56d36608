// pkg/core/side.go
package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side is the visibility scope of a camera or screen.
type Side uint8

const (
	SideAny  Side = iota
	SideWest      // FACTION_A
	SideEast      // FACTION_B
	SideGuer      // FACTION_C
	SideCiv       // FACTION_D
)

var sideNames = [...]string{"ANY", "WEST", "EAST", "GUER", "CIV"}

// String returns the Arma name of the side.
func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// ParseSide converts an SQF side string into a Side. Empty input is ANY.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ANY":
		return SideAny, nil
	case "WEST", "BLUFOR":
		return SideWest, nil
	case "EAST", "OPFOR":
		return SideEast, nil
	case "GUER", "INDEPENDENT", "RESISTANCE":
		return SideGuer, nil
	case "CIV", "CIVILIAN":
		return SideCiv, nil
	}
	return SideAny, fmt.Errorf("unknown side %q", s)
}

// Sees reports whether something scoped to s is visible to an observer on side observer.
func (s Side) Sees(observer Side) bool {
	return s == SideAny || s == observer
}

// CompatibleWith reports whether a camera on side s may be shown on a screen of side screen.
func (s Side) CompatibleWith(screen Side) bool {
	return s == SideAny || s == screen
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
