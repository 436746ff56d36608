package parser

import (
	"testing"

	"github.com/OCAP2/cctv/internal/turret"
	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVehicleDefinition(t *testing.T) {
	p := newTestParser()

	def, err := p.ParseVehicleDefinition([]string{
		`"B_APC_Wheeled_01_cannon_F"`,
		`"AMV-7 Marshall"`,
		`"[[[0],""Gunner""],[[0,0],""Commander""],[[1.0]]]"`,
	})
	require.NoError(t, err)

	assert.Equal(t, "B_APC_Wheeled_01_cannon_F", def.ClassName)
	assert.Equal(t, "AMV-7 Marshall", def.DisplayName)
	assert.Equal(t, []turret.TurretSlot{
		{Path: core.TurretPath{0}, Role: "Gunner"},
		{Path: core.TurretPath{0, 0}, Role: "Commander"},
		{Path: core.TurretPath{1}},
	}, def.Turrets)
}

func TestParseVehicleDefinition_Errors(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		turrets string
	}{
		{"not json", "turrets"},
		{"empty entry", "[[]]"},
		{"bad path", `[["x","Gunner"]]`},
		{"bad role", `[[[0],5]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseVehicleDefinition([]string{"C", "D", tt.turrets})
			assert.Error(t, err)
		})
	}
}

func TestParseEnumerate(t *testing.T) {
	p := newTestParser()

	req, err := p.ParseEnumerate([]string{`"2:60"`, `"B_MRAP_01_hmg_F"`}, "turret")
	require.NoError(t, err)
	assert.Equal(t, core.EntityRef("2:60"), req.Vehicle)
	assert.Equal(t, "B_MRAP_01_hmg_F", req.Class)
	assert.Equal(t, "turret", req.Origin)
	assert.Nil(t, req.Side)

	req, err = p.ParseEnumerate([]string{"2:60", "B_MRAP_01_hmg_F", "WEST"}, "zeus")
	require.NoError(t, err)
	require.NotNil(t, req.Side)
	assert.Equal(t, core.SideWest, *req.Side)

	_, err = p.ParseEnumerate([]string{"2:60", "C", "MARS"}, "")
	assert.Error(t, err)
}
