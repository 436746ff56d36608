package mission

import (
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/cctv/pkg/core"
	"github.com/google/uuid"
)

// Context holds the current mission and world state
type Context struct {
	mu      sync.RWMutex
	mission *core.Mission
	world   *core.World
	active  bool
}

// NewContext creates a new Context with placeholder values
func NewContext() *Context {
	c := &Context{}
	c.reset()
	return c
}

func (mc *Context) reset() {
	mc.mission = &core.Mission{MissionName: "No mission loaded"}
	mc.world = &core.World{WorldName: "No world loaded"}
	mc.active = false
}

// GetMission returns a copy of the current mission
func (mc *Context) GetMission() core.Mission {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return *mc.mission
}

// GetWorld returns a copy of the current world
func (mc *Context) GetWorld() core.World {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return *mc.world
}

// Active reports whether a mission has started and not yet ended.
func (mc *Context) Active() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.active
}

// Start makes mission current. A missing session id or start time is filled in.
// The stored values are returned.
func (mc *Context) Start(mission core.Mission, world core.World) (core.Mission, core.World) {
	if mission.SessionID == "" {
		mission.SessionID = uuid.NewString()
	}
	if mission.StartTime.IsZero() {
		mission.StartTime = time.Now().UTC()
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.mission = &mission
	mc.world = &world
	mc.active = true
	return mission, world
}

// End puts the placeholders back.
func (mc *Context) End() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.reset()
}

// LogAttrs is a logging.ContextProvider that tags records with the session.
func (mc *Context) LogAttrs() []slog.Attr {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if !mc.active {
		return nil
	}
	return []slog.Attr{
		slog.String("mission", mc.mission.MissionName),
		slog.String("session", mc.mission.SessionID),
	}
}
