package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// ArmA 3's SQF has no integer type, so the extension API may serialize numbers as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// need checks that a command got at least n arguments.
func need(command string, data []string, n int) error {
	if len(data) < n {
		return fmt.Errorf("%s expects %d args, got %d", command, n, len(data))
	}
	return nil
}

func parseRef(s string) (core.EntityRef, error) {
	if s == "" {
		return "", fmt.Errorf("empty entity ref")
	}
	return core.EntityRef(s), nil
}

func parseRefs(s string) ([]core.EntityRef, error) {
	raw, err := util.ParseSQFStringArray(s)
	if err != nil {
		return nil, err
	}
	out := make([]core.EntityRef, 0, len(raw))
	for _, r := range raw {
		if r == "" {
			continue
		}
		out = append(out, core.EntityRef(r))
	}
	return out, nil
}

// Parser provides pure []string -> command struct conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	// Static config set at creation time
	addonVersion     string
	extensionVersion string
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger, addonVersion, extensionVersion string) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:           logger.With("component", "parser"),
		addonVersion:     addonVersion,
		extensionVersion: extensionVersion,
	}
}

// ParseInit parses the init module flags: enabled, allowZeusPlacement.
func (p *Parser) ParseInit(data []string) (InitCommand, error) {
	var cmd InitCommand
	if err := need(":CCTV:INIT:", data, 2); err != nil {
		return cmd, err
	}
	util.CleanArgs(data)

	var err error
	if cmd.Enabled, err = util.ParseSQFBool(data[0]); err != nil {
		return cmd, fmt.Errorf("enabled: %w", err)
	}
	if cmd.AllowZeusPlacement, err = util.ParseSQFBool(data[1]); err != nil {
		return cmd, fmt.Errorf("allowZeusPlacement: %w", err)
	}
	return cmd, nil
}

// ParseMission parses world and mission JSON objects.
// NO journal writes, NO session assignment.
func (p *Parser) ParseMission(data []string) (core.Mission, core.World, error) {
	var mission core.Mission
	var world core.World
	if err := need(":CCTV:MISSION:", data, 2); err != nil {
		return mission, world, err
	}
	util.CleanArgs(data)

	if err := json.Unmarshal([]byte(data[0]), &world); err != nil {
		return mission, world, fmt.Errorf("error unmarshalling world data: %w", err)
	}
	if err := json.Unmarshal([]byte(data[1]), &mission); err != nil {
		return mission, world, fmt.Errorf("error unmarshalling mission data: %w", err)
	}

	// ids and session belong to the journal and mission context
	mission.ID = 0
	world.ID = 0
	mission.SessionID = ""

	// received at extension init and saved to local memory
	mission.AddonVersion = p.addonVersion
	mission.ExtensionVersion = p.extensionVersion

	p.logger.Debug("Parsed mission data",
		"missionName", mission.MissionName,
		"worldName", world.WorldName)

	return mission, world, nil
}
