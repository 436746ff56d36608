package handlers

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/OCAP2/cctv/internal/replication"
	"github.com/OCAP2/cctv/pkg/core"
)

// Callback function names raised in the game.
const (
	CallbackReady      = ":CCTV:READY:"
	CallbackDialogOpen = ":CCTV:DIALOG:OPEN:"
	CallbackError      = ":CCTV:ERROR:"
)

// Callbacks raises extension events in the game. It is the DialogOpener and
// Notifier of the cctv runtime.
type Callbacks struct {
	send   replication.SendFunc
	logger *slog.Logger
}

func NewCallbacks(send replication.SendFunc, logger *slog.Logger) *Callbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Callbacks{send: send, logger: logger.With("component", "callbacks")}
}

// Ready tells the game the system for this mission is up.
func (c *Callbacks) Ready(enabled bool) error {
	return c.send(CallbackReady, strconv.FormatBool(enabled))
}

// OpenCameraDialog asks zeus's client to show the camera setup dialog for target.
func (c *Callbacks) OpenCameraDialog(_ context.Context, zeus, target core.EntityRef) error {
	return c.send(CallbackDialogOpen, string(zeus), string(target))
}

// NotifyError shows err to actor. Failures are only logged; the actor has
// nobody else to tell.
func (c *Callbacks) NotifyError(actor core.EntityRef, err error) {
	if err == nil {
		return
	}
	if serr := c.send(CallbackError, string(actor), err.Error()); serr != nil {
		c.logger.Warn("Failed to notify actor", "actor", actor, "error", err, "callbackError", serr)
	}
}
