// pkg/core/camera.go
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityRef is the game's network id for an object, e.g. "2:145".
// It is only a handle; liveness is answered by the entity table.
type EntityRef string

// SourceKind tells where a camera feed comes from.
type SourceKind uint8

const (
	SourceStatic SourceKind = iota
	SourceHelmet
	SourceTurret
)

func (k SourceKind) String() string {
	switch k {
	case SourceStatic:
		return "STATIC"
	case SourceHelmet:
		return "HELMET"
	case SourceTurret:
		return "TURRET"
	}
	return fmt.Sprintf("SourceKind(%d)", uint8(k))
}

func (k SourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *SourceKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSourceKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseSourceKind is the inverse of SourceKind.String.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToUpper(s) {
	case "STATIC":
		return SourceStatic, nil
	case "HELMET":
		return SourceHelmet, nil
	case "TURRET":
		return SourceTurret, nil
	}
	return SourceStatic, fmt.Errorf("unknown source kind %q", s)
}

// CameraID identifies a registered camera. Zero means none.
type CameraID uint32

// TurretPath is the index path of a turret inside a vehicle config, e.g. [0,1].
type TurretPath []int

// Key returns a comparable representation of the path.
func (p TurretPath) Key() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (p TurretPath) String() string {
	return "[" + p.Key() + "]"
}

// Equal reports whether both paths address the same turret.
func (p TurretPath) Equal(o TurretPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Position3D is an ASL world position.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CameraRecord is the registry's view of one camera source.
type CameraRecord struct {
	ID           CameraID    `json:"id"`
	Owner        EntityRef   `json:"owner"`
	Label        string      `json:"label"`
	Side         Side        `json:"side"`
	Kind         SourceKind  `json:"kind"`
	Vehicle      EntityRef   `json:"vehicle,omitempty"`
	TurretPath   TurretPath  `json:"turretPath,omitempty"`
	Active       bool        `json:"active"`
	Position     *Position3D `json:"position,omitempty"`
	Origin       string      `json:"origin"`
	RegisteredAt time.Time   `json:"registeredAt"`
}

// Clone returns a deep copy safe to hand out of the registry.
func (r CameraRecord) Clone() CameraRecord {
	if r.TurretPath != nil {
		r.TurretPath = append(TurretPath(nil), r.TurretPath...)
	}
	if r.Position != nil {
		p := *r.Position
		r.Position = &p
	}
	return r
}

// Registration origins.
const (
	OriginInit   = "init"
	OriginTurret = "turret"
	OriginZeus   = "zeus"
	OriginHelmet = "helmet"
)
