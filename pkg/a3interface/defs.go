package a3interface

import (
	"sync"

	"github.com/OCAP2/cctv/internal/dispatcher"
)

const defaultVersion = "No version set"

// extensionState is read by the RVExtension exports on the game's threads and
// written once during init.
type extensionState struct {
	mu         sync.RWMutex
	version    string
	dispatcher *dispatcher.Dispatcher
}

var state = &extensionState{version: defaultVersion}

func (s *extensionState) current() (string, *dispatcher.Dispatcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, s.dispatcher
}

// SetVersion sets what RVExtensionVersion reports when the game loads the extension.
func SetVersion(version string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if version == "" {
		version = defaultVersion
	}
	state.version = version
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	_, d := state.current()
	return d
}
