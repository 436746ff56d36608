package parser

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"
)

// ParseScreenInit parses a screen module: side, startOff, targets.
func (p *Parser) ParseScreenInit(data []string) (ScreenInit, error) {
	var cmd ScreenInit
	if err := need(":CCTV:SCREEN:INIT:", data, 3); err != nil {
		return cmd, err
	}
	util.CleanArgs(data)

	var err error
	if cmd.Side, err = core.ParseSide(data[0]); err != nil {
		return cmd, err
	}
	if cmd.StartOff, err = util.ParseSQFBool(data[1]); err != nil {
		return cmd, fmt.Errorf("startOff: %w", err)
	}
	if cmd.Targets, err = parseRefs(data[2]); err != nil {
		return cmd, fmt.Errorf("targets: %w", err)
	}
	return cmd, nil
}

// ParseCameraInit parses a camera module: side, label, targets and optionally
// positions as [[x,y,z],...].
func (p *Parser) ParseCameraInit(data []string) (CameraInit, error) {
	var cmd CameraInit
	if err := need(":CCTV:CAMERA:INIT:", data, 3); err != nil {
		return cmd, err
	}
	util.CleanArgs(data)

	var err error
	if cmd.Side, err = core.ParseSide(data[0]); err != nil {
		return cmd, err
	}
	cmd.Label = data[1]
	if cmd.Targets, err = parseRefs(data[2]); err != nil {
		return cmd, fmt.Errorf("targets: %w", err)
	}

	cmd.Positions = make([]*core.Position3D, len(cmd.Targets))
	if len(data) < 4 || data[3] == "" {
		return cmd, nil
	}
	var raw [][]float64
	if err := json.Unmarshal([]byte(data[3]), &raw); err != nil {
		p.logger.Warn("Ignoring camera positions", "data", data[3], "error", err)
		return cmd, nil
	}
	for i := range cmd.Positions {
		if i >= len(raw) || len(raw[i]) < 2 {
			continue
		}
		pos := core.Position3D{X: raw[i][0], Y: raw[i][1]}
		if len(raw[i]) > 2 {
			pos.Z = raw[i][2]
		}
		cmd.Positions[i] = &pos
	}
	return cmd, nil
}

// ParseZeusRegister parses the director dialog result: zeus, target, label, side.
func (p *Parser) ParseZeusRegister(data []string) (ZeusRegister, error) {
	var cmd ZeusRegister
	if err := need(":CCTV:ZEUS:REGISTER:", data, 4); err != nil {
		return cmd, err
	}
	util.CleanArgs(data)

	var err error
	if cmd.Zeus, err = parseRef(data[0]); err != nil {
		return cmd, fmt.Errorf("zeus: %w", err)
	}
	if cmd.Target, err = parseRef(data[1]); err != nil {
		return cmd, fmt.Errorf("target: %w", err)
	}
	cmd.Label = data[2]
	if cmd.Side, err = core.ParseSide(data[3]); err != nil {
		return cmd, err
	}
	return cmd, nil
}
