package turret

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/cctv/internal/registry"
	"github.com/OCAP2/cctv/pkg/core"
)

// Cameras is the registry side of enumeration.
type Cameras interface {
	UpsertTurret(reg registry.Registration) (core.CameraID, bool, error)
}

// Enumerator registers one TURRET camera per slot of a vehicle.
type Enumerator struct {
	catalog     *Catalog
	cameras     Cameras
	defaultSide core.Side
	logger      *slog.Logger
}

func NewEnumerator(catalog *Catalog, cameras Cameras, defaultSide core.Side, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enumerator{
		catalog:     catalog,
		cameras:     cameras,
		defaultSide: defaultSide,
		logger:      logger.With("component", "turret"),
	}
}

// Request names the vehicle instance to enumerate. Side overrides the configured
// vehicle camera side when set.
type Request struct {
	Vehicle core.EntityRef
	Class   string
	Side    *core.Side
	Origin  string
}

// Label returns the camera label of a slot: its role, or the turret path.
func Label(slot TurretSlot) string {
	if slot.Role != "" {
		return slot.Role
	}
	return "Turret " + slot.Path.String()
}

// Enumerate registers or updates the turret cameras of req.Vehicle and returns their
// ids in slot order. Running it again on the same vehicle returns the same ids.
// Slots whose owner is invalid are logged and skipped.
func (e *Enumerator) Enumerate(ctx context.Context, req Request) ([]core.CameraID, error) {
	def, err := e.catalog.Lookup(req.Class)
	if err != nil {
		return nil, err
	}
	side := e.defaultSide
	if req.Side != nil {
		side = *req.Side
	}
	origin := req.Origin
	if origin == "" {
		origin = core.OriginTurret
	}

	ids := make([]core.CameraID, 0, len(def.Turrets))
	for _, slot := range def.Turrets {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, created, err := e.cameras.UpsertTurret(registry.Registration{
			Vehicle:    req.Vehicle,
			TurretPath: slot.Path,
			Label:      Label(slot),
			Side:       side,
			Origin:     origin,
		})
		if errors.Is(err, core.ErrInvalidOwner) {
			e.logger.Warn("Skipping turret camera", "vehicle", req.Vehicle, "turret", slot.Path.String(), "error", err)
			continue
		}
		if err != nil {
			return ids, fmt.Errorf("enumerate %s on %q: %w", slot.Path, req.Vehicle, err)
		}
		e.logger.Debug("Turret camera", "vehicle", req.Vehicle, "turret", slot.Path.String(), "id", id, "created", created)
		ids = append(ids, id)
	}
	return ids, nil
}
