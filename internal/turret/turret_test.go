package turret

import (
	"context"
	"testing"

	"github.com/OCAP2/cctv/internal/entity"
	"github.com/OCAP2/cctv/internal/registry"
	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshall() VehicleDefinition {
	return VehicleDefinition{
		ClassName:   "B_APC_Wheeled_01_cannon_F",
		DisplayName: "AMV-7 Marshall",
		Turrets: []TurretSlot{
			{Path: core.TurretPath{0}, Role: "Gunner"},
			{Path: core.TurretPath{0, 0}, Role: "Commander"},
		},
	}
}

func setup(t *testing.T) (*Enumerator, *registry.Registry, *entity.Table) {
	t.Helper()
	tbl := entity.NewTable()
	reg, err := registry.New(tbl, nil)
	require.NoError(t, err)
	cat := NewCatalog()
	require.NoError(t, cat.Define(marshall()))
	return NewEnumerator(cat, reg, core.SideAny, nil), reg, tbl
}

func TestCatalog(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Define(marshall()))
	assert.Error(t, cat.Define(VehicleDefinition{}))

	def, err := cat.Lookup("b_apc_wheeled_01_cannon_f")
	require.NoError(t, err)
	assert.Len(t, def.Turrets, 2)
	assert.True(t, cat.Has("B_APC_Wheeled_01_cannon_F"))
	assert.Equal(t, []string{"B_APC_Wheeled_01_cannon_F"}, cat.Classes())

	_, err = cat.Lookup("C_Offroad_01_F")
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Gunner", Label(TurretSlot{Path: core.TurretPath{0}, Role: "Gunner"}))
	assert.Equal(t, "Turret [0,1]", Label(TurretSlot{Path: core.TurretPath{0, 1}}))
}

func TestEnumerate_TwoSlots(t *testing.T) {
	e, reg, _ := setup(t)

	ids, err := e.Enumerate(context.Background(), Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	for i, id := range ids {
		rec, err := reg.Lookup(id)
		require.NoError(t, err)
		assert.Equal(t, core.SourceTurret, rec.Kind)
		assert.Equal(t, core.SideAny, rec.Side)
		assert.Equal(t, marshall().Turrets[i].Role, rec.Label)
		assert.Equal(t, core.OriginTurret, rec.Origin)
	}
}

func TestEnumerate_Idempotent(t *testing.T) {
	e, reg, _ := setup(t)
	ctx := context.Background()
	req := Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F"}

	first, err := e.Enumerate(ctx, req)
	require.NoError(t, err)
	second, err := e.Enumerate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, reg.Count())

	other, err := e.Enumerate(ctx, Request{Vehicle: "2:51", Class: "B_APC_Wheeled_01_cannon_F"})
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "another vehicle gets its own cameras")
}

func TestEnumerate_SideOverrideUpdatesExisting(t *testing.T) {
	e, reg, _ := setup(t)
	ctx := context.Background()

	ids, err := e.Enumerate(ctx, Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F"})
	require.NoError(t, err)

	west := core.SideWest
	again, err := e.Enumerate(ctx, Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F", Side: &west})
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	rec, _ := reg.Lookup(ids[0])
	assert.Equal(t, core.SideWest, rec.Side)
}

func TestEnumerate_UnknownClass(t *testing.T) {
	e, reg, _ := setup(t)

	_, err := e.Enumerate(context.Background(), Request{Vehicle: "2:50", Class: "Nope"})
	assert.ErrorIs(t, err, core.ErrUnknownVehicle)
	assert.Equal(t, 0, reg.Count())
}

func TestEnumerate_InvalidVehicleSkipped(t *testing.T) {
	e, reg, tbl := setup(t)
	tbl.Killed("2:50")

	ids, err := e.Enumerate(context.Background(), Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 0, reg.Count())
}

func TestEnumerate_Cancelled(t *testing.T) {
	e, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Enumerate(ctx, Request{Vehicle: "2:50", Class: "B_APC_Wheeled_01_cannon_F"})
	assert.ErrorIs(t, err, context.Canceled)
}
