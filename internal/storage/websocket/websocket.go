package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/cctv/pkg/core"
	"github.com/OCAP2/cctv/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams the journal over WebSocket to a collector.
// Mission boundaries wait for an ack; everything else is fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "journal-ws")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Connected reports whether a socket is currently up.
func (b *Backend) Connected() bool {
	return b.conn.connected.Load()
}

// Dropped returns how many messages were discarded on a full send buffer.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartMission sends mission and world data and waits for server ack.
func (b *Backend) StartMission(mission *core.Mission, world *core.World) error {
	data, err := marshalEnvelope(streaming.TypeStartMission, streaming.StartMissionPayload{Mission: mission, World: world})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	return b.conn.sendAndWait(ctx, data, streaming.TypeStartMission)
}

// EndMission sends end_mission and waits for server ack.
func (b *Backend) EndMission() error {
	data, err := marshalEnvelope(streaming.TypeEndMission, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	err = b.conn.sendAndWait(ctx, data, streaming.TypeEndMission)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordCamera(c *core.CameraRecord) error {
	return b.sendEnvelope(streaming.TypeCamera, c)
}

func (b *Backend) RecordTransition(t *core.Transition) error {
	return b.sendEnvelope(streaming.TypeTransition, t)
}

func (b *Backend) RecordHelmetEvent(e *core.HelmetEvent) error {
	return b.sendEnvelope(streaming.TypeHelmetEvent, e)
}

func (b *Backend) RecordUsage(u *core.Usage) error {
	return b.sendEnvelope(streaming.TypeUsage, u)
}
