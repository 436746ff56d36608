// Package gormstorage implements the storage.Backend interface on top of GORM.
// Records are queued and a background writer drains the queues into the
// database in one transaction per table.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/cctv/internal/model"
	"github.com/OCAP2/cctv/internal/model/convert"
	"github.com/OCAP2/cctv/internal/queue"
	"github.com/OCAP2/cctv/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// queueLimit caps every write queue while the database is unreachable.
const queueLimit = 50000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB may be nil, in which case records only accumulate in the queues.
	DB *gorm.DB
	// Models are auto-migrated on Init. Defaults to model.DatabaseModels.
	Models        []any
	FlushInterval time.Duration
	ServerName    string
	Logger        *slog.Logger
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Cameras      *queue.Queue[model.Camera]
	Transitions  *queue.Queue[model.ScreenTransition]
	HelmetEvents *queue.Queue[model.HelmetEvent]
	Usage        *queue.Queue[model.UsageSample]
}

func newQueues() *queues {
	return &queues{
		Cameras:      queue.NewBounded[model.Camera](queueLimit),
		Transitions:  queue.NewBounded[model.ScreenTransition](queueLimit),
		HelmetEvents: queue.NewBounded[model.HelmetEvent](queueLimit),
		Usage:        queue.NewBounded[model.UsageSample](queueLimit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	missionID atomic.Uint64
	stopChan  chan struct{}
	done      chan struct{}
	writeMu   sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Models == nil {
		deps.Models = model.DatabaseModels
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = 2 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps: deps,
		log:  log.With("component", "journal"),
	}
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB != nil {
		if err := b.setupDB(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	go b.writerLoop()
	return nil
}

// setupDB migrates tables and writes the instance info row if missing.
func (b *Backend) setupDB() error {
	db := b.deps.DB

	if !db.Migrator().HasTable(&model.CctvInfo{}) {
		if err := db.AutoMigrate(&model.CctvInfo{}); err != nil {
			return fmt.Errorf("failed to auto-migrate CctvInfo: %w", err)
		}
		if err := db.Create(&model.CctvInfo{
			ServerName:  b.deps.ServerName,
			Description: "CCTV journal",
		}).Error; err != nil {
			return fmt.Errorf("failed to create cctv_info entry: %w", err)
		}
	}

	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
		b.log.Info("PostGIS extension created")
	}

	b.log.Info("Migrating schema", "tables", len(b.deps.Models))
	if err := db.AutoMigrate(b.deps.Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close stops the writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return nil
}

// StartMission gets or inserts the world and creates the mission row.
func (b *Backend) StartMission(coreMission *core.Mission, coreWorld *core.World) error {
	if b.deps.DB == nil {
		return nil
	}
	db := b.deps.DB

	gormWorld := convert.CoreToWorld(*coreWorld)
	if err := db.Where(model.World{WorldName: gormWorld.WorldName}).FirstOrCreate(&gormWorld).Error; err != nil {
		return fmt.Errorf("failed to get or insert world: %w", err)
	}

	gormMission := convert.CoreToMission(*coreMission)
	gormMission.WorldID = gormWorld.ID
	if err := db.Omit("World").Create(&gormMission).Error; err != nil {
		return fmt.Errorf("failed to insert new mission: %w", err)
	}

	coreMission.ID = gormMission.ID
	coreWorld.ID = gormWorld.ID
	b.missionID.Store(uint64(gormMission.ID))
	b.log.Info("Mission started", "missionId", gormMission.ID, "world", gormWorld.WorldName)
	return nil
}

// SetMissionID sets the mission rows are stamped with (used by CLI tools).
func (b *Backend) SetMissionID(id uint) {
	b.missionID.Store(uint64(id))
}

// MissionID returns the current mission's row id, 0 if none.
func (b *Backend) MissionID() uint {
	return uint(b.missionID.Load())
}

// EndMission flushes everything queued for the current mission.
func (b *Backend) EndMission() error {
	err := b.Flush()
	b.missionID.Store(0)
	return err
}

// RecordCamera converts and queues a camera record. A later record with the
// same id replaces the stored row.
func (b *Backend) RecordCamera(c *core.CameraRecord) error {
	b.queues.Cameras.Push(convert.CoreToCamera(*c))
	return nil
}

// RecordTransition converts and queues a screen transition.
func (b *Backend) RecordTransition(t *core.Transition) error {
	b.queues.Transitions.Push(convert.CoreToScreenTransition(*t))
	return nil
}

// RecordHelmetEvent converts and queues a helmet event.
func (b *Backend) RecordHelmetEvent(e *core.HelmetEvent) error {
	b.queues.HelmetEvents.Push(convert.CoreToHelmetEvent(*e))
	return nil
}

// RecordUsage queues a usage sample.
func (b *Backend) RecordUsage(u *core.Usage) error {
	b.queues.Usage.Push(model.UsageSample{
		Time:           u.Time,
		Cameras:        uint16(u.Cameras),
		ActiveCameras:  uint16(u.ActiveCameras),
		Screens:        uint16(u.Screens),
		ViewingScreens: uint16(u.ViewingScreens),
		ActiveHelmets:  uint16(u.ActiveHelmets),
	})
	return nil
}

// Pending returns the number of queued rows per table.
func (b *Backend) Pending() map[string]int {
	return map[string]int{
		"cameras":            b.queues.Cameras.Len(),
		"screen_transitions": b.queues.Transitions.Len(),
		"helmet_events":      b.queues.HelmetEvents.Len(),
		"usage_samples":      b.queues.Usage.Len(),
	}
}

// Flush writes every queue now. Without a DB or a mission it is a no-op.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	missionID := uint(b.missionID.Load())
	if missionID == 0 {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db := b.deps.DB
	return errors.Join(
		writeQueue(db, b.queues.Cameras, func(items []model.Camera) []model.Camera {
			return latestCameras(items, missionID)
		}, clause.OnConflict{UpdateAll: true}),
		writeQueue(db, b.queues.Transitions, func(items []model.ScreenTransition) []model.ScreenTransition {
			for i := range items {
				items[i].MissionID = missionID
			}
			return items
		}),
		writeQueue(db, b.queues.HelmetEvents, func(items []model.HelmetEvent) []model.HelmetEvent {
			for i := range items {
				items[i].MissionID = missionID
			}
			return items
		}),
		writeQueue(db, b.queues.Usage, func(items []model.UsageSample) []model.UsageSample {
			for i := range items {
				items[i].MissionID = missionID
			}
			return items
		}),
	)
}

// latestCameras stamps the mission and keeps only the last record per camera,
// so one upsert batch never touches a row twice.
func latestCameras(items []model.Camera, missionID uint) []model.Camera {
	seen := make(map[uint32]int, len(items))
	out := make([]model.Camera, 0, len(items))
	for _, c := range items {
		c.MissionID = missionID
		if i, ok := seen[c.CameraID]; ok {
			out[i] = c
			continue
		}
		seen[c.CameraID] = len(out)
		out = append(out, c)
	}
	return out
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], prepare func([]T) []T, clauses ...clause.Expression) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	if prepare != nil {
		items = prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Mission").Clauses(clauses...).Create(&items).Error
	})
	if err != nil {
		q.Requeue(items...)
		var zero T
		return fmt.Errorf("write %T batch of %d: %w", zero, len(items), err)
	}
	return nil
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			if err := b.Flush(); err != nil {
				b.log.Error("Final flush failed", "error", err)
			}
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Error("Error writing journal", "error", err)
			}
		}
	}
}
