package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		input   string
		want    Side
		wantErr bool
	}{
		{"", SideAny, false},
		{"ANY", SideAny, false},
		{"west", SideWest, false},
		{"BLUFOR", SideWest, false},
		{"EAST", SideEast, false},
		{"opfor", SideEast, false},
		{"GUER", SideGuer, false},
		{"Independent", SideGuer, false},
		{"CIV", SideCiv, false},
		{" civilian ", SideCiv, false},
		{"LOGIC", SideAny, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSide(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSide_Sees(t *testing.T) {
	assert.True(t, SideAny.Sees(SideEast))
	assert.True(t, SideWest.Sees(SideWest))
	assert.False(t, SideWest.Sees(SideEast))
	assert.False(t, SideCiv.Sees(SideAny))
}

func TestSide_CompatibleWith(t *testing.T) {
	assert.True(t, SideAny.CompatibleWith(SideEast))
	assert.True(t, SideEast.CompatibleWith(SideEast))
	assert.False(t, SideWest.CompatibleWith(SideEast))
	assert.False(t, SideWest.CompatibleWith(SideAny))
}

func TestSide_JSON(t *testing.T) {
	data, err := json.Marshal(SideGuer)
	require.NoError(t, err)
	assert.Equal(t, `"GUER"`, string(data))

	var s Side
	require.NoError(t, json.Unmarshal([]byte(`"east"`), &s))
	assert.Equal(t, SideEast, s)

	assert.Error(t, json.Unmarshal([]byte(`"sideLogic"`), &s))
}

func TestViewState_JSON(t *testing.T) {
	data, err := json.Marshal(Viewing(4))
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"VIEWING","camera":4}`, string(data))

	var st ViewState
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, Viewing(4), st)

	var k SourceKind
	require.NoError(t, json.Unmarshal([]byte(`"turret"`), &k))
	assert.Equal(t, SourceTurret, k)
	assert.Error(t, json.Unmarshal([]byte(`"drone"`), &k))
	assert.Error(t, json.Unmarshal([]byte(`"idle"`), &st.Mode))
}

func TestTurretPath(t *testing.T) {
	p := TurretPath{0, 1}
	assert.Equal(t, "0,1", p.Key())
	assert.Equal(t, "[0,1]", p.String())
	assert.True(t, p.Equal(TurretPath{0, 1}))
	assert.False(t, p.Equal(TurretPath{0}))
	assert.False(t, p.Equal(TurretPath{1, 0}))
	assert.Equal(t, "", TurretPath{}.Key())
}

func TestCameraRecord_CloneIsDeep(t *testing.T) {
	orig := CameraRecord{ID: 1, TurretPath: TurretPath{0, 1}, Position: &Position3D{X: 1}}
	clone := orig.Clone()

	clone.TurretPath[0] = 9
	clone.Position.X = 9

	assert.Equal(t, 0, orig.TurretPath[0])
	assert.Equal(t, float64(1), orig.Position.X)
}

func TestViewState(t *testing.T) {
	assert.Equal(t, "OFF", StateOff.String())
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "VIEWING(3)", Viewing(3).String())

	rec := ScreenRecord{State: Viewing(3)}
	id, ok := rec.BoundCamera()
	assert.True(t, ok)
	assert.Equal(t, CameraID(3), id)

	rec.State = StateIdle
	_, ok = rec.BoundCamera()
	assert.False(t, ok)
}

func TestTransition_Changed(t *testing.T) {
	assert.False(t, Transition{From: StateIdle, To: StateIdle}.Changed())
	assert.True(t, Transition{From: StateIdle, To: Viewing(1)}.Changed())
	assert.True(t, Transition{From: Viewing(1), To: Viewing(2)}.Changed())
}

func TestMenuEntry_MarshalJSON(t *testing.T) {
	data, err := json.Marshal([]MenuEntry{{ID: "a#1", Label: "Power On"}})
	require.NoError(t, err)
	assert.Equal(t, `[["a#1","Power On"]]`, string(data))
}
