package geo

import (
	"testing"

	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition3DFromString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    core.Position3D
		wantErr bool
	}{
		{"xyz", "6123.5,4211.25,12.5", core.Position3D{X: 6123.5, Y: 4211.25, Z: 12.5}, false},
		{"xy", "100,200", core.Position3D{X: 100, Y: 200}, false},
		{"bracketed", "[1,2,3]", core.Position3D{X: 1, Y: 2, Z: 3}, false},
		{"spaces", " 1, 2 , 3 ", core.Position3D{X: 1, Y: 2, Z: 3}, false},
		{"negative", "-5,-6,-7", core.Position3D{X: -5, Y: -6, Z: -7}, false},
		{"scientific", "1e3,2E2", core.Position3D{X: 1000, Y: 200}, false},
		{"empty", "", core.Position3D{}, true},
		{"one component", "1", core.Position3D{}, true},
		{"four components", "1,2,3,4", core.Position3D{}, true},
		{"not a number", "a,2", core.Position3D{}, true},
		{"bad z", "1,2,z", core.Position3D{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Position3DFromString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinates)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPointRoundTrip(t *testing.T) {
	pos := &core.Position3D{X: 10, Y: 20, Z: 30}
	pt := PointFromPosition(pos)
	assert.False(t, pt.IsEmpty())
	assert.Equal(t, pos, PositionFromPoint(pt))

	empty := PointFromPosition(nil)
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, PositionFromPoint(empty))
}

func TestCoords3857From4326(t *testing.T) {
	pt, err := Coords3857From4326(0, 0)
	require.NoError(t, err)
	c, ok := pt.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 0, c.XY.X, 1e-6)
	assert.InDelta(t, 0, c.XY.Y, 1e-6)

	pt, err = Coords3857From4326(10, 50)
	require.NoError(t, err)
	c, _ = pt.Coordinates()
	assert.InDelta(t, 1113194.9, c.XY.X, 1)
	assert.Greater(t, c.XY.Y, 6000000.0)

	_, err = Coords3857From4326(0, 91)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}
