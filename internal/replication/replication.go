// Package replication pushes authoritative state changes to remote observers and
// waits for their acknowledgement.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
)

// Topics
const (
	TopicScreen = "screen"
	TopicCamera = "camera"
	TopicHelmet = "helmet"
)

// SyncFunction is the callback function name updates are sent under.
const SyncFunction = ":CCTV:SYNC:"

// Update is one replicated state change. Key identifies the object within Topic;
// Version orders updates of the same object.
type Update struct {
	Topic   string `json:"topic"`
	Key     string `json:"key"`
	Version uint64 `json:"version"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster delivers an update to every observer.
type Broadcaster interface {
	Broadcast(ctx context.Context, u Update) error
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ctx context.Context, u Update) error

func (f BroadcasterFunc) Broadcast(ctx context.Context, u Update) error {
	return f(ctx, u)
}

// Discard acknowledges every update without sending it anywhere.
var Discard Broadcaster = BroadcasterFunc(func(context.Context, Update) error { return nil })

// SendFunc writes a callback to the game, e.g. a3interface.WriteArmaCallback bound
// to the extension name.
type SendFunc func(function string, data ...string) error

// CallbackBroadcaster sends updates through the extension callback and blocks until
// the matching :CCTV:SYNC:ACK: arrives or ctx ends.
type CallbackBroadcaster struct {
	send SendFunc
	acks *Acks
}

func NewCallbackBroadcaster(send SendFunc, acks *Acks) *CallbackBroadcaster {
	return &CallbackBroadcaster{send: send, acks: acks}
}

func (b *CallbackBroadcaster) Broadcast(ctx context.Context, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", u.Topic, u.Key, err)
	}

	p := b.acks.Expect(u.Topic, u.Key, u.Version)
	defer p.Cancel()

	if err := b.send(SyncFunction, string(data)); err != nil {
		return fmt.Errorf("send %s/%s: %w", u.Topic, u.Key, err)
	}
	return p.Wait(ctx)
}
