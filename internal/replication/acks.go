package replication

import (
	"context"
	"fmt"
	"sync"

	"github.com/OCAP2/cctv/pkg/core"
)

type ackKey struct {
	topic string
	key   string
}

type waiter struct {
	version uint64
	ch      chan error
}

// Acks matches acknowledgements from the game to pending broadcasts.
type Acks struct {
	mu      sync.Mutex
	waiters map[ackKey][]*waiter
	latest  map[ackKey]uint64
}

func NewAcks() *Acks {
	return &Acks{
		waiters: make(map[ackKey][]*waiter),
		latest:  make(map[ackKey]uint64),
	}
}

// Pending is a registered expectation of one acknowledgement.
type Pending struct {
	acks *Acks
	key  ackKey
	w    *waiter
}

// Expect registers interest in the ack for (topic, key, version). Register before
// sending so a fast ack is not lost.
func (a *Acks) Expect(topic, key string, version uint64) *Pending {
	k := ackKey{topic: topic, key: key}
	w := &waiter{version: version, ch: make(chan error, 1)}
	a.mu.Lock()
	a.waiters[k] = append(a.waiters[k], w)
	a.mu.Unlock()
	return &Pending{acks: a, key: k, w: w}
}

// Wait blocks until the ack arrives, a newer version supersedes it (core.ErrStale),
// or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case err := <-p.w.ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel drops the expectation. Safe to call after the ack arrived.
func (p *Pending) Cancel() {
	p.acks.mu.Lock()
	defer p.acks.mu.Unlock()
	p.acks.removeLocked(p.key, p.w)
}

func (a *Acks) removeLocked(k ackKey, w *waiter) {
	list := a.waiters[k]
	for i, cur := range list {
		if cur == w {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(a.waiters, k)
	} else {
		a.waiters[k] = list
	}
}

// Ack records an acknowledgement. Acks older than the newest seen for the same key
// are ignored and reported as false. Waiters for older versions are released
// with core.ErrStale.
func (a *Acks) Ack(topic, key string, version uint64) bool {
	k := ackKey{topic: topic, key: key}
	a.mu.Lock()
	defer a.mu.Unlock()

	if version < a.latest[k] {
		return false
	}
	a.latest[k] = version

	for _, w := range append([]*waiter(nil), a.waiters[k]...) {
		switch {
		case w.version == version:
			w.ch <- nil
		case w.version < version:
			w.ch <- fmt.Errorf("%s/%s v%d superseded by v%d: %w", topic, key, w.version, version, core.ErrStale)
		default:
			continue
		}
		a.removeLocked(k, w)
	}
	return true
}

// Reset forgets every waiter and version, for a new mission.
func (a *Acks) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.waiters = make(map[ackKey][]*waiter)
	a.latest = make(map[ackKey]uint64)
}
