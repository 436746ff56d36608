package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/cctv/internal/turret"
	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"
)

// ParseVehicleDefinition parses a vehicle class layout: class, display name and
// turrets as [[path, role], ...], e.g. [[[0],"Gunner"],[[0,0],"Commander"]].
func (p *Parser) ParseVehicleDefinition(data []string) (turret.VehicleDefinition, error) {
	var def turret.VehicleDefinition
	if err := need(":CCTV:VEHICLE:DEFINE:", data, 3); err != nil {
		return def, err
	}
	util.CleanArgs(data)

	def.ClassName = data[0]
	def.DisplayName = data[1]

	var raw [][]json.RawMessage
	if err := json.Unmarshal([]byte(data[2]), &raw); err != nil {
		return def, fmt.Errorf("error unmarshalling turrets: %w", err)
	}
	for i, entry := range raw {
		if len(entry) < 1 {
			return def, fmt.Errorf("turret %d: empty entry", i)
		}
		var path []float64
		if err := json.Unmarshal(entry[0], &path); err != nil {
			return def, fmt.Errorf("turret %d path: %w", i, err)
		}
		slot := turret.TurretSlot{Path: make(core.TurretPath, len(path))}
		for j, v := range path {
			slot.Path[j] = int(v)
		}
		if len(entry) > 1 {
			if err := json.Unmarshal(entry[1], &slot.Role); err != nil {
				return def, fmt.Errorf("turret %d role: %w", i, err)
			}
		}
		def.Turrets = append(def.Turrets, slot)
	}

	p.logger.Debug("Parsed vehicle definition", "class", def.ClassName, "turrets", len(def.Turrets))
	return def, nil
}

// ParseEnumerate parses a turret enumeration request: vehicle ref, class and an
// optional side override.
func (p *Parser) ParseEnumerate(data []string, origin string) (turret.Request, error) {
	var req turret.Request
	if err := need(":CCTV:VEHICLE:ENUMERATE:", data, 2); err != nil {
		return req, err
	}
	util.CleanArgs(data)

	var err error
	if req.Vehicle, err = parseRef(data[0]); err != nil {
		return req, err
	}
	req.Class = data[1]
	req.Origin = origin
	if len(data) > 2 && data[2] != "" {
		side, err := core.ParseSide(data[2])
		if err != nil {
			return req, err
		}
		req.Side = &side
	}
	return req, nil
}
