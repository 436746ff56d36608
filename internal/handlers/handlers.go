package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/cctv/internal/api"
	"github.com/OCAP2/cctv/internal/cctv"
	"github.com/OCAP2/cctv/internal/dispatcher"
	"github.com/OCAP2/cctv/internal/influx"
	"github.com/OCAP2/cctv/internal/mission"
	"github.com/OCAP2/cctv/internal/parser"
	"github.com/OCAP2/cctv/internal/replication"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MetricWriter takes points sent by mission scripts. *influx.Manager implements it.
type MetricWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Uploader sends an exported journal to the collector. *api.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, filePath string, meta api.UploadMetadata) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Parser         *parser.Parser
	Runtime        *cctv.Runtime
	MissionContext *mission.Context
	Journal        storage.Backend
	Metrics        MetricWriter
	Acks           *replication.Acks
	Callbacks      *Callbacks
	Uploader       Uploader
	UploadTag      string
	Logger         *slog.Logger
}

// Service turns :CCTV:* commands into calls on the current System.
type Service struct {
	deps    Dependencies
	logger  *slog.Logger
	uploads sync.WaitGroup
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Journal == nil {
		deps.Journal = storage.Discard{}
	}
	if deps.Acks == nil {
		deps.Acks = replication.NewAcks()
	}
	if deps.MissionContext == nil {
		deps.MissionContext = mission.NewContext()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With("component", "handlers")}
}

// GetMissionContext returns the mission context
func (s *Service) GetMissionContext() *mission.Context {
	return s.deps.MissionContext
}

// RegisterHandlers registers every :CCTV:* command with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Lifecycle - sync, in order
	d.Register(":CCTV:INIT:", s.handleInit, dispatcher.Serialized(), dispatcher.Logged())
	d.Register(":CCTV:END:", s.handleEnd, dispatcher.Serialized(), dispatcher.Logged())
	d.Register(":CCTV:MISSION:", s.handleMission, dispatcher.Serialized(), dispatcher.Logged())

	// Entity table - sync so menus never see an older state than the game
	d.Register(":CCTV:ENTITY:UPDATE:", s.handleEntityUpdate)
	d.Register(":CCTV:ENTITY:KILLED:", s.handleEntityKilled, dispatcher.Logged())
	d.Register(":CCTV:ENTITY:REMOVED:", s.handleEntityRemoved, dispatcher.Logged())

	// Placement - buffered, waits for readiness
	d.Register(":CCTV:SCREEN:INIT:", s.handleScreenInit, dispatcher.Buffered(500), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(":CCTV:CAMERA:INIT:", s.handleCameraInit, dispatcher.Buffered(500), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(":CCTV:VEHICLE:DEFINE:", s.handleVehicleDefine, dispatcher.Logged())
	d.Register(":CCTV:VEHICLE:ENUMERATE:", s.handleVehicleEnumerate, dispatcher.Buffered(500), dispatcher.Blocking(), dispatcher.Logged())

	// Interaction
	d.Register(":CCTV:MENU:", s.handleMenu, dispatcher.Logged())
	d.Register(":CCTV:ACTION:", s.handleAction, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":CCTV:ZEUS:REGISTER:", s.handleZeusRegister, dispatcher.Logged())
	d.Register(":CCTV:HELMET:TOGGLE:", s.handleHelmetToggle, dispatcher.Logged())

	// Replication and queries
	d.Register(":CCTV:SYNC:ACK:", s.handleSyncAck)
	d.Register(":CCTV:CAMERAS:", s.handleCameras)
	d.Register(":CCTV:SCREEN:STATE:", s.handleScreenState)

	// Mission script metrics - buffered
	d.Register(":CCTV:METRIC:", s.handleMetric, dispatcher.Buffered(1000))
}

// system returns the running System, or core.ErrNotReady.
func (s *Service) system() (*cctv.System, error) {
	if sys := s.deps.Runtime.Current(); sys != nil {
		return sys, nil
	}
	return nil, core.ErrNotReady
}

func (s *Service) handleInit(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseInit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse init: %w", err)
	}
	s.deps.Acks.Reset()
	sys, err := s.deps.Runtime.Init(cmd.Enabled, cmd.AllowZeusPlacement)
	if err != nil {
		return nil, err
	}
	if s.deps.Callbacks != nil {
		if err := s.deps.Callbacks.Ready(sys.Menus.Enabled()); err != nil {
			s.logger.Warn("Failed to send ready callback", "error", err)
		}
	}
	return nil, nil
}

func (s *Service) handleEnd(e dispatcher.Event) (any, error) {
	s.deps.Runtime.End()
	s.deps.Acks.Reset()

	m := s.deps.MissionContext.GetMission()
	w := s.deps.MissionContext.GetWorld()
	active := s.deps.MissionContext.Active()
	s.deps.MissionContext.End()
	if !active {
		return nil, nil
	}

	if err := s.deps.Journal.EndMission(); err != nil {
		return nil, fmt.Errorf("failed to end journal mission: %w", err)
	}
	if exp, ok := s.deps.Journal.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		path := exp.ExportedFilePath()
		s.logger.Info("Journal exported", "mission", m.MissionName, "path", path)
		s.upload(path, api.UploadMetadata{
			WorldName:       w.WorldName,
			MissionName:     m.MissionName,
			SessionID:       m.SessionID,
			MissionDuration: time.Since(m.StartTime).Seconds(),
			Tag:             s.deps.UploadTag,
		})
		return path, nil
	}
	return nil, nil
}

// upload sends the journal in the background; failures are only logged.
func (s *Service) upload(path string, meta api.UploadMetadata) {
	if s.deps.Uploader == nil {
		return
	}
	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.deps.Uploader.Upload(ctx, path, meta); err != nil {
			s.logger.Error("Failed to upload journal", "path", path, "error", err)
			return
		}
		s.logger.Info("Journal uploaded", "path", path, "mission", meta.MissionName)
	}()
}

// WaitUploads blocks until pending journal uploads finish.
func (s *Service) WaitUploads() {
	s.uploads.Wait()
}

func (s *Service) handleMission(e dispatcher.Event) (any, error) {
	m, w, err := s.deps.Parser.ParseMission(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mission: %w", err)
	}
	m, w = s.deps.MissionContext.Start(m, w)
	if err := s.deps.Journal.StartMission(&m, &w); err != nil {
		return nil, fmt.Errorf("failed to start journal mission: %w", err)
	}
	s.logger.Info("Mission started", "mission", m.MissionName, "world", w.WorldName, "session", m.SessionID)
	return m.SessionID, nil
}

func (s *Service) handleEntityUpdate(e dispatcher.Event) (any, error) {
	ent, err := s.deps.Parser.ParseEntity(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity: %w", err)
	}
	s.deps.Runtime.Entities().Upsert(ent)
	return nil, nil
}

func (s *Service) handleEntityKilled(e dispatcher.Event) (any, error) {
	ref, err := s.deps.Parser.ParseRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse killed entity: %w", err)
	}
	s.deps.Runtime.Entities().Killed(ref)
	return nil, nil
}

func (s *Service) handleEntityRemoved(e dispatcher.Event) (any, error) {
	ref, err := s.deps.Parser.ParseRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse removed entity: %w", err)
	}
	s.deps.Runtime.Entities().Removed(ref)
	return nil, nil
}

func (s *Service) handleScreenInit(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseScreenInit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse screen init: %w", err)
	}
	sys, err := s.deps.Runtime.Await(context.Background())
	if err != nil {
		return nil, fmt.Errorf("screen init: %w", err)
	}
	ids, err := sys.PlaceScreens(cmd.Side, cmd.StartOff, cmd.Targets)
	if err != nil {
		s.logger.Warn("Some screens were not placed", "placed", len(ids), "targets", len(cmd.Targets), "error", err)
		if len(ids) == 0 {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Service) handleCameraInit(e dispatcher.Event) (any, error) {
	cmd, err := s.deps.Parser.ParseCameraInit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse camera init: %w", err)
	}
	sys, err := s.deps.Runtime.Await(context.Background())
	if err != nil {
		return nil, fmt.Errorf("camera init: %w", err)
	}
	ids, err := sys.PlaceCameras(cmd.Side, cmd.Label, cmd.Targets, cmd.Positions)
	if err != nil {
		s.logger.Warn("Some cameras were not registered", "registered", len(ids), "targets", len(cmd.Targets), "error", err)
		if len(ids) == 0 {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Service) handleVehicleDefine(e dispatcher.Event) (any, error) {
	def, err := s.deps.Parser.ParseVehicleDefinition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vehicle definition: %w", err)
	}
	if err := s.deps.Runtime.Catalog().Define(def); err != nil {
		return nil, err
	}
	return len(def.Turrets), nil
}

func (s *Service) handleVehicleEnumerate(e dispatcher.Event) (any, error) {
	req, err := s.deps.Parser.ParseEnumerate(e.Args, core.OriginTurret)
	if err != nil {
		return nil, fmt.Errorf("failed to parse enumerate: %w", err)
	}
	sys, err := s.deps.Runtime.Await(context.Background())
	if err != nil {
		return nil, fmt.Errorf("enumerate %q: %w", req.Vehicle, err)
	}
	return sys.EnumerateTurrets(context.Background(), req)
}

func (s *Service) handleMenu(e dispatcher.Event) (any, error) {
	req, err := s.deps.Parser.ParseMenuRequest(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse menu request: %w", err)
	}
	sys, err := s.system()
	if err != nil {
		return nil, err
	}
	entries := sys.Menu(req.Observer, req.Target)
	if entries == nil {
		entries = []core.MenuEntry{}
	}
	return entries, nil
}

// handleAction runs on the action queue. Errors go back to the observer, since
// nothing waits for the result.
func (s *Service) handleAction(e dispatcher.Event) (any, error) {
	req, err := s.deps.Parser.ParseAction(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action: %w", err)
	}
	sys, err := s.system()
	if err == nil {
		err = sys.Invoke(context.Background(), req.Observer, req.ID)
	}
	if err != nil {
		if s.deps.Callbacks != nil {
			s.deps.Callbacks.NotifyError(req.Observer, err)
		}
		return nil, fmt.Errorf("action %q by %q: %w", req.ID, req.Observer, err)
	}
	return nil, nil
}

func (s *Service) handleZeusRegister(e dispatcher.Event) (any, error) {
	req, err := s.deps.Parser.ParseZeusRegister(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse zeus register: %w", err)
	}
	sys, err := s.system()
	if err != nil {
		return nil, err
	}
	return sys.RegisterZeus(req.Zeus, req.Target, req.Label, req.Side)
}

func (s *Service) handleHelmetToggle(e dispatcher.Event) (any, error) {
	ref, err := s.deps.Parser.ParseRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse helmet toggle: %w", err)
	}
	sys, err := s.system()
	if err != nil {
		return nil, err
	}
	return sys.ToggleHelmet(ref)
}

func (s *Service) handleSyncAck(e dispatcher.Event) (any, error) {
	ack, err := s.deps.Parser.ParseSyncAck(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync ack: %w", err)
	}
	if !s.deps.Acks.Ack(ack.Topic, ack.Key, ack.Version) {
		s.logger.Debug("Ignored stale ack", "topic", ack.Topic, "key", ack.Key, "version", ack.Version)
	}
	return nil, nil
}

func (s *Service) handleCameras(e dispatcher.Event) (any, error) {
	side, err := s.deps.Parser.ParseSide(e.Args)
	if err != nil {
		return nil, err
	}
	sys, err := s.system()
	if err != nil {
		return nil, err
	}
	return sys.VisibleCameras(side), nil
}

func (s *Service) handleScreenState(e dispatcher.Event) (any, error) {
	ref, err := s.deps.Parser.ParseRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse screen ref: %w", err)
	}
	sys, err := s.system()
	if err != nil {
		return nil, err
	}
	return sys.ScreenState(ref)
}

func (s *Service) handleMetric(e dispatcher.Event) (any, error) {
	if s.deps.Metrics == nil {
		return nil, nil
	}
	bucket, point, err := influx.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	return nil, s.deps.Metrics.WritePoint(bucket, point)
}
