// internal/storage/storage.go
package storage

import "github.com/OCAP2/cctv/pkg/core"

// Backend is the interface all journal implementations must satisfy.
// Records are appended after the state change they describe has been applied.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Mission management
	StartMission(mission *core.Mission, world *core.World) error
	EndMission() error

	// Journal
	RecordCamera(c *core.CameraRecord) error
	RecordTransition(t *core.Transition) error
	RecordHelmetEvent(e *core.HelmetEvent) error
}

// UsageRecorder is an optional interface for backends that keep usage samples.
type UsageRecorder interface {
	RecordUsage(u *core.Usage) error
}

// Exportable is an optional interface for backends that write a file when a
// mission ends.
type Exportable interface {
	ExportedFilePath() string
}

// Discard accepts every record and keeps nothing.
type Discard struct{}

func (Discard) Init() error { return nil }
func (Discard) Close() error { return nil }
func (Discard) StartMission(*core.Mission, *core.World) error { return nil }
func (Discard) EndMission() error { return nil }
func (Discard) RecordCamera(*core.CameraRecord) error { return nil }
func (Discard) RecordTransition(*core.Transition) error { return nil }
func (Discard) RecordHelmetEvent(*core.HelmetEvent) error { return nil }
