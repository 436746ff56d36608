// Package streaming defines the wire messages the websocket journal sends.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/cctv/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartMission = "start_mission"
	TypeEndMission   = "end_mission"
	TypeCamera       = "camera"
	TypeTransition   = "transition"
	TypeHelmetEvent  = "helmet_event"
	TypeUsage        = "usage"

	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartMissionPayload carries mission and world data.
type StartMissionPayload struct {
	Mission *core.Mission `json:"mission"`
	World   *core.World   `json:"world"`
}
