package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/cctv/internal/mission"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/pkg/core"
)

// UsageWriter receives every sample. The influx manager implements it.
type UsageWriter interface {
	WriteUsage(u core.Usage, missionName, worldName string) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Snapshot       func() core.Usage
	MissionContext *mission.Context
	Journal        storage.Backend
	Metrics        UsageWriter
	StatusPath     string
	Interval       time.Duration
	Logger         *slog.Logger
}

// status is what ends up in the status file.
type status struct {
	Mission   string     `json:"mission"`
	Session   string     `json:"session"`
	Usage     core.Usage `json:"usage"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Service samples usage counters while a mission runs
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deps:   deps,
		logger: logger.With("component", "monitor"),
	}
}

// IsRunning returns whether the sampler is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample takes one snapshot and hands it to every sink. It does nothing while
// no mission is active.
func (s *Service) Sample() (core.Usage, bool) {
	if s.deps.MissionContext == nil || !s.deps.MissionContext.Active() {
		return core.Usage{}, false
	}
	u := s.deps.Snapshot()
	if u.Time.IsZero() {
		u.Time = time.Now().UTC()
	}
	m := s.deps.MissionContext.GetMission()
	w := s.deps.MissionContext.GetWorld()

	if rec, ok := s.deps.Journal.(storage.UsageRecorder); ok {
		if err := rec.RecordUsage(&u); err != nil {
			s.logger.Error("Error recording usage sample", "error", err)
		}
	}
	if s.deps.Metrics != nil {
		if err := s.deps.Metrics.WriteUsage(u, m.MissionName, w.WorldName); err != nil {
			s.logger.Error("Error writing usage metric", "error", err)
		}
	}
	if s.deps.StatusPath != "" {
		if err := writeStatus(s.deps.StatusPath, status{
			Mission:   m.MissionName,
			Session:   m.SessionID,
			Usage:     u,
			UpdatedAt: u.Time,
		}); err != nil {
			s.logger.Error("Error writing status file", "error", err)
		}
	}
	return u, true
}

func writeStatus(path string, st status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Start starts the sampler goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Snapshot == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor: no snapshot source")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.logger.Debug("Starting usage monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Sample()
			}
		}
	}()

	return nil
}

// Stop stops the sampler and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
