// internal/storage/memory/memory.go
package memory

import (
	"sort"
	"sync"

	"github.com/OCAP2/cctv/internal/config"
	"github.com/OCAP2/cctv/pkg/core"
)

// Backend keeps the journal in memory and exports it to JSON on EndMission.
type Backend struct {
	cfg     config.MemoryConfig
	mission *core.Mission
	world   *core.World

	cameras      map[core.CameraID]core.CameraRecord
	transitions  []core.Transition
	helmetEvents []core.HelmetEvent
	usage        []core.Usage

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		cameras: make(map[core.CameraID]core.CameraRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMission begins a new journal, discarding the previous one.
func (b *Backend) StartMission(mission *core.Mission, world *core.World) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mission = mission
	b.world = world

	b.cameras = make(map[core.CameraID]core.CameraRecord)
	b.transitions = nil
	b.helmetEvents = nil
	b.usage = nil
	b.lastExportPath = ""

	return nil
}

// EndMission exports the journal. Without a started mission nothing is written.
func (b *Backend) EndMission() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mission == nil {
		return nil
	}
	return b.exportJSON()
}

// RecordCamera stores c. A later record with the same id replaces it.
func (b *Backend) RecordCamera(c *core.CameraRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cameras[c.ID] = c.Clone()
	return nil
}

func (b *Backend) RecordTransition(t *core.Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitions = append(b.transitions, *t)
	return nil
}

func (b *Backend) RecordHelmetEvent(e *core.HelmetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.helmetEvents = append(b.helmetEvents, *e)
	return nil
}

func (b *Backend) RecordUsage(u *core.Usage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage = append(b.usage, *u)
	return nil
}

// Cameras returns the recorded cameras by ascending id.
func (b *Backend) Cameras() []core.CameraRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sortedCameras()
}

func (b *Backend) sortedCameras() []core.CameraRecord {
	out := make([]core.CameraRecord, 0, len(b.cameras))
	for _, c := range b.cameras {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transitions returns the recorded transitions in arrival order.
func (b *Backend) Transitions() []core.Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Transition(nil), b.transitions...)
}

// HelmetEvents returns the recorded helmet events in arrival order.
func (b *Backend) HelmetEvents() []core.HelmetEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.HelmetEvent(nil), b.helmetEvents...)
}

// Usage returns the recorded usage samples.
func (b *Backend) Usage() []core.Usage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Usage(nil), b.usage...)
}

// ExportedFilePath returns the path of the last export, empty before one.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
