package gormstorage

import (
	"fmt"
	"testing"
	"time"

	"github.com/OCAP2/cctv/internal/model"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Compile-time interface checks
var (
	_ storage.Backend       = (*Backend)(nil)
	_ storage.UsageRecorder = (*Backend)(nil)
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(Dependencies{FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newSQLiteBackend(t *testing.T) *Backend {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Models: model.DatabaseModels, FlushInterval: time.Hour, ServerName: "test"})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestInitClose(t *testing.T) {
	b := New(Dependencies{})
	require.NoError(t, b.Init())
	require.NotNil(t, b.queues)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
}

func TestRecord_QueuesWithoutDB(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.RecordCamera(&core.CameraRecord{ID: 1, Label: "Gate"}))
	require.NoError(t, b.RecordTransition(&core.Transition{Screen: 1, To: core.Viewing(1)}))
	require.NoError(t, b.RecordHelmetEvent(&core.HelmetEvent{Entity: "2:7", Camera: 2, Active: true}))
	require.NoError(t, b.RecordUsage(&core.Usage{Cameras: 2}))

	assert.Equal(t, map[string]int{
		"cameras":            1,
		"screen_transitions": 1,
		"helmet_events":      1,
		"usage_samples":      1,
	}, b.Pending())

	require.NoError(t, b.Flush(), "no DB means nothing to write")
	assert.Equal(t, 1, b.queues.Cameras.Len())
}

func TestStartMission_NoDB(t *testing.T) {
	b := newTestBackend(t)
	m := &core.Mission{MissionName: "Op"}
	require.NoError(t, b.StartMission(m, &core.World{WorldName: "Altis"}))
	assert.Zero(t, m.ID)
}

func TestSetMissionID(t *testing.T) {
	b := newTestBackend(t)
	b.SetMissionID(42)
	assert.Equal(t, uint(42), b.MissionID())
}

func TestSQLite_JournalRoundTrip(t *testing.T) {
	b := newSQLiteBackend(t)
	db := b.DB()

	assert.Equal(t, int64(1), count(t, db, &model.CctvInfo{}))

	mission := &core.Mission{MissionName: "Op Lens", StartTime: time.Now()}
	world := &core.World{WorldName: "Stratis", Latitude: 40, Longitude: 25}
	require.NoError(t, b.StartMission(mission, world))
	assert.NotZero(t, mission.ID)
	assert.NotZero(t, world.ID)

	require.NoError(t, b.RecordCamera(&core.CameraRecord{
		ID: 1, Owner: "2:50", Label: "Gate", Kind: core.SourceStatic,
		Position: &core.Position3D{X: 1, Y: 2, Z: 3}, RegisteredAt: time.Now(),
	}))
	require.NoError(t, b.RecordCamera(&core.CameraRecord{
		ID: 2, Owner: "2:60", Label: "Gunner", Kind: core.SourceTurret,
		Vehicle: "2:60", TurretPath: core.TurretPath{0}, RegisteredAt: time.Now(),
	}))
	require.NoError(t, b.RecordTransition(&core.Transition{Screen: 1, Owner: "2:1", From: core.StateIdle, To: core.Viewing(1), Version: 1, Time: time.Now()}))
	require.NoError(t, b.RecordHelmetEvent(&core.HelmetEvent{Entity: "2:7", Camera: 3, Active: true, Time: time.Now()}))
	require.NoError(t, b.RecordUsage(&core.Usage{Time: time.Now(), Cameras: 2}))

	require.NoError(t, b.EndMission())
	assert.Zero(t, b.MissionID())

	assert.Equal(t, int64(2), count(t, db, &model.Camera{}))
	assert.Equal(t, int64(1), count(t, db, &model.ScreenTransition{}))
	assert.Equal(t, int64(1), count(t, db, &model.HelmetEvent{}))
	assert.Equal(t, int64(1), count(t, db, &model.UsageSample{}))

	var cam model.Camera
	require.NoError(t, db.Where("camera_id = ?", 2).First(&cam).Error)
	assert.Equal(t, mission.ID, cam.MissionID)
	assert.Equal(t, "TURRET", cam.Kind)
	assert.Equal(t, "[0]", string(cam.TurretPath))

	for _, v := range b.Pending() {
		assert.Zero(t, v)
	}
}

func TestSQLite_WorldReused(t *testing.T) {
	b := newSQLiteBackend(t)

	w1 := &core.World{WorldName: "Tanoa"}
	require.NoError(t, b.StartMission(&core.Mission{MissionName: "A"}, w1))
	w2 := &core.World{WorldName: "Tanoa"}
	require.NoError(t, b.StartMission(&core.Mission{MissionName: "B"}, w2))

	assert.Equal(t, w1.ID, w2.ID)
	assert.Equal(t, int64(1), count(t, b.DB(), &model.World{}))
	assert.Equal(t, int64(2), count(t, b.DB(), &model.Mission{}))
}

func TestWriteQueue_FailureRequeues(t *testing.T) {
	b := newSQLiteBackend(t)
	b.SetMissionID(1)
	require.NoError(t, b.DB().Migrator().DropTable(&model.HelmetEvent{}))

	require.NoError(t, b.RecordHelmetEvent(&core.HelmetEvent{Entity: "2:7"}))
	require.NoError(t, b.RecordHelmetEvent(&core.HelmetEvent{Entity: "2:8"}))

	assert.Error(t, b.Flush())
	assert.Equal(t, 2, b.queues.HelmetEvents.Len())
}

func TestSQLite_CameraUpdateReplacesRow(t *testing.T) {
	b := newSQLiteBackend(t)
	db := b.DB()
	mission := &core.Mission{MissionName: "Op Relabel", StartTime: time.Now()}
	require.NoError(t, b.StartMission(mission, &core.World{WorldName: "Stratis"}))

	rec := core.CameraRecord{ID: 1, Owner: "2:60", Label: "Gunner", Side: core.SideAny, Kind: core.SourceTurret, RegisteredAt: time.Now()}
	require.NoError(t, b.RecordCamera(&rec))
	rec.Side = core.SideWest
	require.NoError(t, b.RecordCamera(&rec))
	require.NoError(t, b.Flush())
	assert.Equal(t, int64(1), count(t, db, &model.Camera{}))

	rec.Label = "Main Gun"
	rec.Side = core.SideEast
	require.NoError(t, b.RecordCamera(&rec))
	require.NoError(t, b.Flush())

	var cam model.Camera
	require.NoError(t, db.Where("mission_id = ? AND camera_id = ?", mission.ID, 1).First(&cam).Error)
	assert.Equal(t, int64(1), count(t, db, &model.Camera{}))
	assert.Equal(t, "Main Gun", cam.Label)
	assert.Equal(t, "EAST", cam.Side)
}

func TestLatestCameras(t *testing.T) {
	out := latestCameras([]model.Camera{
		{CameraID: 1, Label: "a"},
		{CameraID: 2, Label: "b"},
		{CameraID: 1, Label: "c"},
	}, 7)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].Label)
	assert.Equal(t, "b", out[1].Label)
	assert.Equal(t, uint(7), out[0].MissionID)
}
