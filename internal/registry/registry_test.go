package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/OCAP2/cctv/internal/entity"
	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *entity.Table) {
	t.Helper()
	tbl := entity.NewTable()
	r, err := New(tbl, nil)
	require.NoError(t, err)
	return r, tbl
}

func TestRegister_EmptyLabelDerivedFromID(t *testing.T) {
	r, _ := newTestRegistry(t)

	id, err := r.Register(Registration{Owner: "2:1", Side: core.SideAny})
	require.NoError(t, err)
	assert.Equal(t, core.CameraID(1), id)

	rec, err := r.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, "Camera 1", rec.Label)
	assert.True(t, rec.Active)
	assert.Equal(t, core.SourceStatic, rec.Kind)
}

func TestRegister_IDsUniqueAndStrictlyIncreasing(t *testing.T) {
	r, _ := newTestRegistry(t)

	var last core.CameraID
	for i := 0; i < 50; i++ {
		id, err := r.Register(Registration{Owner: "2:1", Label: "cam"})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	assert.Equal(t, 50, r.Count())
}

func TestRegister_ConcurrentCallsNeverShareIDs(t *testing.T) {
	r, _ := newTestRegistry(t)

	const n = 100
	ids := make(chan core.CameraID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Register(Registration{Owner: "2:1"})
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[core.CameraID]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestRegister_InvalidOwnerDoesNotMutate(t *testing.T) {
	r, tbl := newTestRegistry(t)
	tbl.Removed("2:9")

	registered := 0
	r.OnRegister(func(core.CameraRecord) { registered++ })

	_, err := r.Register(Registration{Owner: "2:9", Label: "Gate"})
	assert.ErrorIs(t, err, core.ErrInvalidOwner)

	_, err = r.Register(Registration{Owner: "", Label: "Null"})
	assert.ErrorIs(t, err, core.ErrInvalidOwner)

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 0, registered)

	id, err := r.Register(Registration{Owner: "2:1"})
	require.NoError(t, err)
	assert.Equal(t, core.CameraID(1), id, "failed registrations consume no ids")
}

func TestRegister_ClosedRegistry(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Close()

	_, err := r.Register(Registration{Owner: "2:1"})
	assert.ErrorIs(t, err, core.ErrRegistryClosed)
	assert.True(t, r.Closed())
}

func TestLookup_NotFound(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Lookup(0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = r.Lookup(7)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, err := r.Register(Registration{Owner: "2:1", Label: "Gate", Position: &core.Position3D{X: 10}})
	require.NoError(t, err)

	rec, _ := r.Lookup(id)
	rec.Label = "changed"
	rec.Position.X = 99

	again, _ := r.Lookup(id)
	assert.Equal(t, "Gate", again.Label)
	assert.Equal(t, float64(10), again.Position.X)
}

func TestListVisibleTo_FiltersBySide(t *testing.T) {
	r, _ := newTestRegistry(t)
	sides := []core.Side{core.SideAny, core.SideWest, core.SideEast, core.SideWest, core.SideCiv}
	for _, s := range sides {
		_, err := r.Register(Registration{Owner: "2:1", Side: s})
		require.NoError(t, err)
	}

	for _, observer := range []core.Side{core.SideAny, core.SideWest, core.SideEast, core.SideGuer, core.SideCiv} {
		list := r.ListVisibleTo(observer)
		for i, rec := range list {
			assert.True(t, rec.Side == core.SideAny || rec.Side == observer,
				"observer %s got camera on %s", observer, rec.Side)
			if i > 0 {
				assert.Greater(t, rec.ID, list[i-1].ID)
			}
		}
	}

	west := r.ListVisibleTo(core.SideWest)
	require.Len(t, west, 3)
	assert.Equal(t, []core.CameraID{1, 2, 4}, []core.CameraID{west[0].ID, west[1].ID, west[2].ID})

	assert.Len(t, r.ListVisibleTo(core.SideGuer), 1)
}

func TestInvalidate_MarksInactiveKeepsIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	a, _ := r.Register(Registration{Owner: "2:1"})
	b, _ := r.Register(Registration{Owner: "2:2"})
	c, _ := r.Register(Registration{Owner: "2:1"})

	var hooked []core.CameraID
	r.OnInvalidate(func(rec core.CameraRecord) { hooked = append(hooked, rec.ID) })

	ids := r.Invalidate("2:1")
	assert.Equal(t, []core.CameraID{a, c}, ids)
	assert.Equal(t, []core.CameraID{a, c}, hooked)

	assert.Empty(t, r.Invalidate("2:1"), "second invalidation is a no-op")

	visible := r.ListVisibleTo(core.SideAny)
	require.Len(t, visible, 1)
	assert.Equal(t, b, visible[0].ID)

	rec, err := r.Lookup(a)
	require.NoError(t, err)
	assert.False(t, rec.Active)

	next, _ := r.Register(Registration{Owner: "2:3"})
	assert.Equal(t, core.CameraID(4), next)
}

func TestUpdate(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Register(Registration{Owner: "2:1", Label: "Old"})

	require.NoError(t, r.Update(id, "New", core.SideEast))
	rec, _ := r.Lookup(id)
	assert.Equal(t, "New", rec.Label)
	assert.Equal(t, core.SideEast, rec.Side)

	require.NoError(t, r.Update(id, "", core.SideWest))
	rec, _ = r.Lookup(id)
	assert.Equal(t, "New", rec.Label, "empty label keeps the current one")

	assert.ErrorIs(t, r.Update(42, "x", core.SideAny), core.ErrNotFound)

	r.Invalidate("2:1")
	assert.ErrorIs(t, r.Update(id, "x", core.SideAny), core.ErrInvalidOwner)
}

func TestUpsertTurret_Idempotent(t *testing.T) {
	r, _ := newTestRegistry(t)

	reg := Registration{Vehicle: "2:50", TurretPath: core.TurretPath{0}, Label: "Gunner", Side: core.SideWest}
	id, created, err := r.UpsertTurret(reg)
	require.NoError(t, err)
	assert.True(t, created)

	reg.Label = "Main Gun"
	reg.Side = core.SideEast
	again, created, err := r.UpsertTurret(reg)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, r.Count())

	rec, err := r.LookupTurret("2:50", core.TurretPath{0})
	require.NoError(t, err)
	assert.Equal(t, "Main Gun", rec.Label)
	assert.Equal(t, core.SideEast, rec.Side)
	assert.Equal(t, core.SourceTurret, rec.Kind)
	assert.Equal(t, core.EntityRef("2:50"), rec.Owner)
}

func TestOnUpdate_FiresOnlyOnChange(t *testing.T) {
	r, _ := newTestRegistry(t)

	type change struct{ old, updated core.CameraRecord }
	var changes []change
	r.OnUpdate(func(old, updated core.CameraRecord) {
		changes = append(changes, change{old, updated})
	})

	reg := Registration{Vehicle: "2:50", TurretPath: core.TurretPath{0}, Label: "Gunner", Side: core.SideAny}
	id, _, err := r.UpsertTurret(reg)
	require.NoError(t, err)
	assert.Empty(t, changes, "a new record is not an update")

	_, _, err = r.UpsertTurret(reg)
	require.NoError(t, err)
	assert.Empty(t, changes, "same label and side")

	reg.Side = core.SideEast
	_, _, err = r.UpsertTurret(reg)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, id, changes[0].updated.ID)
	assert.Equal(t, core.SideAny, changes[0].old.Side)
	assert.Equal(t, core.SideEast, changes[0].updated.Side)

	require.NoError(t, r.Update(id, "Main Gun", core.SideEast))
	require.Len(t, changes, 2)
	assert.Equal(t, "Gunner", changes[1].old.Label)
	assert.Equal(t, "Main Gun", changes[1].updated.Label)
}

func TestUpsertTurret_InvalidVehicle(t *testing.T) {
	r, tbl := newTestRegistry(t)
	tbl.Killed("2:50")

	_, _, err := r.UpsertTurret(Registration{Vehicle: "2:50", TurretPath: core.TurretPath{0}})
	assert.True(t, errors.Is(err, core.ErrInvalidOwner))

	_, err = r.LookupTurret("2:50", core.TurretPath{0})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestByOwnerAndAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, _ = r.Register(Registration{Owner: "2:1", Label: "a"})
	_, _ = r.Register(Registration{Owner: "2:2", Label: "b"})
	_, _ = r.Register(Registration{Owner: "2:1", Label: "c"})
	r.Invalidate("2:2")

	owned := r.ByOwner("2:1")
	require.Len(t, owned, 2)
	assert.Equal(t, "a", owned[0].Label)
	assert.Equal(t, "c", owned[1].Label)

	assert.Len(t, r.All(), 3)
}
