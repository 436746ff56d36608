package screen

import (
	"sync"
	"testing"

	"github.com/OCAP2/cctv/internal/entity"
	"github.com/OCAP2/cctv/internal/registry"
	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	entities *entity.Table
	cameras  *registry.Registry
	screens  *Manager
	applied  []core.Transition
	mu       sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{entities: entity.NewTable()}
	var err error
	f.cameras, err = registry.New(f.entities, nil)
	require.NoError(t, err)
	f.screens, err = NewManager(f.cameras, f.entities, nil)
	require.NoError(t, err)
	f.screens.OnTransition(func(tr core.Transition) {
		f.mu.Lock()
		f.applied = append(f.applied, tr)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) camera(t *testing.T, owner core.EntityRef, side core.Side) core.CameraID {
	t.Helper()
	id, err := f.cameras.Register(registry.Registration{Owner: owner, Side: side})
	require.NoError(t, err)
	return id
}

func (f *fixture) screen(t *testing.T, side core.Side, startOff bool) core.ScreenID {
	t.Helper()
	id, err := f.screens.Create(Placement{Owner: core.EntityRef("2:" + string(rune('a'+len(f.screens.All())))), Side: side, StartOff: startOff})
	require.NoError(t, err)
	return id
}

func (f *fixture) state(t *testing.T, id core.ScreenID) core.ViewState {
	t.Helper()
	rec, err := f.screens.Get(id)
	require.NoError(t, err)
	return rec.State
}

func TestCreate_InitialState(t *testing.T) {
	f := newFixture(t)

	off := f.screen(t, core.SideAny, true)
	idle := f.screen(t, core.SideAny, false)

	assert.Equal(t, core.StateOff, f.state(t, off))
	assert.Equal(t, core.StateIdle, f.state(t, idle))
	assert.Empty(t, f.applied, "creation is not a transition")
}

func TestCreate_InvalidOwner(t *testing.T) {
	f := newFixture(t)
	f.entities.Removed("2:77")

	_, err := f.screens.Create(Placement{Owner: "2:77"})
	assert.ErrorIs(t, err, core.ErrInvalidOwner)
	assert.Empty(t, f.screens.All())
}

func TestCreate_SameOwnerReturnsExisting(t *testing.T) {
	f := newFixture(t)
	a, err := f.screens.Create(Placement{Owner: "2:1"})
	require.NoError(t, err)
	b, err := f.screens.Create(Placement{Owner: "2:1", StartOff: true})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, f.screens.All(), 1)

	rec, err := f.screens.ByOwner("2:1")
	require.NoError(t, err)
	assert.Equal(t, a, rec.ID)
}

func TestPowerOnOff(t *testing.T) {
	f := newFixture(t)
	id := f.screen(t, core.SideAny, true)

	tr, err := f.screens.PowerOn(id, "2:9")
	require.NoError(t, err)
	assert.True(t, tr.Changed())
	assert.Equal(t, core.StateIdle, tr.To)
	assert.Equal(t, core.EntityRef("2:9"), tr.Actor)

	tr, err = f.screens.PowerOn(id, "2:9")
	require.NoError(t, err)
	assert.False(t, tr.Changed(), "power on while powered is a no-op")

	cam := f.camera(t, "2:50", core.SideAny)
	_, err = f.screens.SelectCamera(id, cam, "")
	require.NoError(t, err)

	tr, err = f.screens.PowerOff(id, "")
	require.NoError(t, err)
	assert.Equal(t, core.StateOff, tr.To)

	rec, _ := f.screens.Get(id)
	_, bound := rec.BoundCamera()
	assert.False(t, bound, "power off clears the bound camera")
	assert.Len(t, f.applied, 3)
}

func TestSelectCamera_AnyOnAny(t *testing.T) {
	f := newFixture(t)
	cam := f.camera(t, "2:50", core.SideAny)
	id := f.screen(t, core.SideAny, false)

	tr, err := f.screens.SelectCamera(id, cam, "")
	require.NoError(t, err)
	assert.Equal(t, core.Viewing(1), tr.To)
	assert.Equal(t, core.Viewing(1), f.state(t, id))
}

func TestSelectCamera_IncompatibleLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	west := f.camera(t, "2:50", core.SideWest)
	id := f.screen(t, core.SideEast, false)

	before, _ := f.screens.Get(id)
	_, err := f.screens.SelectCamera(id, west, "")
	assert.ErrorIs(t, err, core.ErrIncompatibleCamera)

	after, _ := f.screens.Get(id)
	assert.Equal(t, before, after)
	assert.Empty(t, f.applied)
}

func TestSelectCamera_SideCompatibility(t *testing.T) {
	tests := []struct {
		name       string
		cameraSide core.Side
		screenSide core.Side
		ok         bool
	}{
		{"any camera on west screen", core.SideAny, core.SideWest, true},
		{"west camera on west screen", core.SideWest, core.SideWest, true},
		{"west camera on any screen", core.SideWest, core.SideAny, false},
		{"east camera on guer screen", core.SideEast, core.SideGuer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cam := f.camera(t, "2:50", tt.cameraSide)
			id := f.screen(t, tt.screenSide, false)

			_, err := f.screens.SelectCamera(id, cam, "")
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrIncompatibleCamera)
			}
		})
	}
}

func TestSelectCamera_Failures(t *testing.T) {
	f := newFixture(t)
	cam := f.camera(t, "2:50", core.SideAny)
	off := f.screen(t, core.SideAny, true)
	on := f.screen(t, core.SideAny, false)

	_, err := f.screens.SelectCamera(off, cam, "")
	assert.ErrorIs(t, err, core.ErrScreenOff)

	_, err = f.screens.SelectCamera(on, 99, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.screens.SelectCamera(42, cam, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	f.cameras.Invalidate("2:50")
	_, err = f.screens.SelectCamera(on, cam, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, core.StateIdle, f.state(t, on))
}

func TestSelectCamera_SwitchAndShared(t *testing.T) {
	f := newFixture(t)
	a := f.camera(t, "2:50", core.SideAny)
	b := f.camera(t, "2:51", core.SideAny)
	s1 := f.screen(t, core.SideAny, false)
	s2 := f.screen(t, core.SideAny, false)

	_, err := f.screens.SelectCamera(s1, a, "")
	require.NoError(t, err)
	_, err = f.screens.SelectCamera(s2, a, "")
	require.NoError(t, err, "several screens may view the same camera")

	tr, err := f.screens.SelectCamera(s1, b, "")
	require.NoError(t, err)
	assert.Equal(t, core.Viewing(a), tr.From)
	assert.Equal(t, core.Viewing(b), tr.To)

	tr, err = f.screens.SelectCamera(s1, b, "")
	require.NoError(t, err)
	assert.False(t, tr.Changed())
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	cam := f.camera(t, "2:50", core.SideAny)
	id := f.screen(t, core.SideAny, false)

	tr, err := f.screens.Release(id, "")
	require.NoError(t, err)
	assert.False(t, tr.Changed())

	_, _ = f.screens.SelectCamera(id, cam, "")
	tr, err = f.screens.Release(id, "")
	require.NoError(t, err)
	assert.Equal(t, core.StateIdle, tr.To)
}

func TestConcurrentSelect_SingleFinalState(t *testing.T) {
	f := newFixture(t)
	id := f.screen(t, core.SideAny, false)
	var cams []core.CameraID
	for i := 0; i < 10; i++ {
		cams = append(cams, f.camera(t, core.EntityRef("2:"+string(rune('A'+i))), core.SideAny))
	}

	var wg sync.WaitGroup
	for _, c := range cams {
		wg.Add(1)
		go func(c core.CameraID) {
			defer wg.Done()
			_, _ = f.screens.SelectCamera(id, c, "")
		}(c)
	}
	wg.Wait()

	rec, _ := f.screens.Get(id)
	assert.Equal(t, core.ModeViewing, rec.State.Mode)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.applied, len(cams))
	seen := make(map[uint64]bool)
	for _, tr := range f.applied {
		assert.False(t, seen[tr.Version], "version %d applied twice", tr.Version)
		seen[tr.Version] = true
		if tr.Version == rec.Version {
			assert.Equal(t, rec.State, tr.To, "final state comes from the last applied transition")
		}
	}
	assert.Equal(t, uint64(len(cams)), rec.Version)
}

func TestRevert(t *testing.T) {
	f := newFixture(t)
	a := f.camera(t, "2:50", core.SideAny)
	b := f.camera(t, "2:51", core.SideAny)
	id := f.screen(t, core.SideAny, false)

	tr, err := f.screens.SelectCamera(id, a, "")
	require.NoError(t, err)

	rt, ok := f.screens.Revert(tr)
	require.True(t, ok)
	assert.Equal(t, core.StateIdle, rt.To)
	assert.Equal(t, core.StateIdle, f.state(t, id))

	tr, _ = f.screens.SelectCamera(id, a, "")
	_, _ = f.screens.SelectCamera(id, b, "")
	_, ok = f.screens.Revert(tr)
	assert.False(t, ok, "stale revert is ignored")
	assert.Equal(t, core.Viewing(b), f.state(t, id))
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	cam := f.camera(t, "2:50", core.SideAny)
	id := f.screen(t, core.SideAny, false)

	tr, _ := f.screens.SelectCamera(id, cam, "")
	assert.True(t, f.screens.Confirm(id, tr.Version))

	_, _ = f.screens.Release(id, "")
	assert.False(t, f.screens.Confirm(id, tr.Version))
	assert.False(t, f.screens.Confirm(99, 1))
}

func TestCameraInvalidated_RevertsViewingScreens(t *testing.T) {
	f := newFixture(t)
	a := f.camera(t, "2:50", core.SideAny)
	b := f.camera(t, "2:51", core.SideAny)
	s1 := f.screen(t, core.SideAny, false)
	s2 := f.screen(t, core.SideAny, false)
	s3 := f.screen(t, core.SideAny, false)

	_, _ = f.screens.SelectCamera(s1, a, "")
	_, _ = f.screens.SelectCamera(s2, a, "")
	_, _ = f.screens.SelectCamera(s3, b, "")

	out := f.screens.CameraInvalidated(a)
	require.Len(t, out, 2)
	assert.Equal(t, core.StateIdle, f.state(t, s1))
	assert.Equal(t, core.StateIdle, f.state(t, s2))
	assert.Equal(t, core.Viewing(b), f.state(t, s3))
}

func TestCameraChanged_ReleasesIncompatibleScreens(t *testing.T) {
	f := newFixture(t)
	cam := f.camera(t, "2:60", core.SideAny)
	west := f.screen(t, core.SideWest, false)
	east := f.screen(t, core.SideEast, false)

	_, err := f.screens.SelectCamera(west, cam, "")
	require.NoError(t, err)
	_, err = f.screens.SelectCamera(east, cam, "")
	require.NoError(t, err)

	require.NoError(t, f.cameras.Update(cam, "", core.SideEast))
	out := f.screens.CameraChanged(cam)

	require.Len(t, out, 1)
	assert.Equal(t, west, out[0].Screen)
	assert.Equal(t, core.StateIdle, f.state(t, west))
	assert.Equal(t, core.Viewing(cam), f.state(t, east))

	// nothing left to release
	assert.Empty(t, f.screens.CameraChanged(cam))
	assert.Empty(t, f.screens.CameraChanged(99))
}
