package parser

import (
	"log/slog"
	"testing"

	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	p := NewParser(slog.Default(), "1.0.0", "2.0.0")
	return p
}

func TestNewParser(t *testing.T) {
	p := newTestParser()
	require.NotNil(t, p)
	require.NotNil(t, NewParser(nil, "", ""))
}

func TestParseUintFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"float with decimals", "32.00", 32, false},
		{"float with trailing zero", "30.0", 30, false},
		{"large integer", "65535", 65535, false},
		{"large float", "65535.00", 65535, false},
		{"fractional rejects", "10.99", 0, true},
		{"empty string", "", 0, true},
		{"non-numeric", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUintFromFloat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseInit(t *testing.T) {
	p := newTestParser()

	cmd, err := p.ParseInit([]string{"true", "false"})
	require.NoError(t, err)
	assert.Equal(t, InitCommand{Enabled: true, AllowZeusPlacement: false}, cmd)

	_, err = p.ParseInit([]string{"true"})
	assert.Error(t, err)

	_, err = p.ParseInit([]string{"maybe", "true"})
	assert.Error(t, err)
}

func TestParseMission(t *testing.T) {
	p := newTestParser()

	mission, world, err := p.ParseMission([]string{
		`"{""worldName"":""Altis"",""displayName"":""Altis"",""worldSize"":30720,""latitude"":-40.2,""longitude"":30.1,""id"":9}"`,
		`"{""missionName"":""Op Nightwatch"",""author"":""Bravo"",""serverName"":""Main"",""sessionId"":""x""}"`,
	})
	require.NoError(t, err)

	assert.Equal(t, "Altis", world.WorldName)
	assert.Equal(t, float32(30720), world.WorldSize)
	assert.Equal(t, float32(-40.2), world.Latitude)
	assert.Zero(t, world.ID)

	assert.Equal(t, "Op Nightwatch", mission.MissionName)
	assert.Equal(t, "Bravo", mission.Author)
	assert.Empty(t, mission.SessionID)
	assert.Equal(t, "1.0.0", mission.AddonVersion)
	assert.Equal(t, "2.0.0", mission.ExtensionVersion)
}

func TestParseMission_Errors(t *testing.T) {
	p := newTestParser()

	_, _, err := p.ParseMission([]string{"{}"})
	assert.Error(t, err)

	_, _, err = p.ParseMission([]string{"not json", "{}"})
	assert.Error(t, err)

	_, _, err = p.ParseMission([]string{"{}", "[1]"})
	assert.Error(t, err)
}

func TestParseSide(t *testing.T) {
	p := newTestParser()

	side, err := p.ParseSide(nil)
	require.NoError(t, err)
	assert.Equal(t, core.SideAny, side)

	side, err = p.ParseSide([]string{`"EAST"`})
	require.NoError(t, err)
	assert.Equal(t, core.SideEast, side)

	_, err = p.ParseSide([]string{"purple"})
	assert.Error(t, err)
}
