package replication

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OCAP2/cctv/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcks_MatchingVersionReleasesWaiter(t *testing.T) {
	a := NewAcks()
	p := a.Expect(TopicScreen, "1", 3)

	assert.True(t, a.Ack(TopicScreen, "1", 3))
	assert.NoError(t, p.Wait(context.Background()))
}

func TestAcks_NewerVersionMarksOlderStale(t *testing.T) {
	a := NewAcks()
	old := a.Expect(TopicScreen, "1", 3)
	cur := a.Expect(TopicScreen, "1", 4)

	require.True(t, a.Ack(TopicScreen, "1", 4))
	assert.ErrorIs(t, old.Wait(context.Background()), core.ErrStale)
	assert.NoError(t, cur.Wait(context.Background()))
}

func TestAcks_LateAckIgnored(t *testing.T) {
	a := NewAcks()
	require.True(t, a.Ack(TopicScreen, "1", 5))
	assert.False(t, a.Ack(TopicScreen, "1", 4))
	assert.True(t, a.Ack(TopicScreen, "2", 1), "keys are independent")
}

func TestAcks_WaitHonoursContext(t *testing.T) {
	a := NewAcks()
	p := a.Expect(TopicScreen, "1", 1)
	defer p.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
}

func TestAcks_CancelRemovesWaiter(t *testing.T) {
	a := NewAcks()
	p := a.Expect(TopicScreen, "1", 1)
	p.Cancel()
	p.Cancel()

	a.mu.Lock()
	assert.Empty(t, a.waiters)
	a.mu.Unlock()
}

func TestCallbackBroadcaster_RoundTrip(t *testing.T) {
	acks := NewAcks()
	var mu sync.Mutex
	var sent []string

	b := NewCallbackBroadcaster(func(function string, data ...string) error {
		mu.Lock()
		sent = append(sent, function)
		mu.Unlock()
		require.Len(t, data, 1)
		var u Update
		require.NoError(t, json.Unmarshal([]byte(data[0]), &u))
		go acks.Ack(u.Topic, u.Key, u.Version)
		return nil
	}, acks)

	err := b.Broadcast(context.Background(), Update{Topic: TopicScreen, Key: "7", Version: 2, Payload: map[string]int{"camera": 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{SyncFunction}, sent)
}

func TestCallbackBroadcaster_SendError(t *testing.T) {
	b := NewCallbackBroadcaster(func(string, ...string) error { return errors.New("no callback") }, NewAcks())
	err := b.Broadcast(context.Background(), Update{Topic: TopicScreen, Key: "1", Version: 1})
	assert.ErrorContains(t, err, "no callback")
}

func TestRetrying_SucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	next := BroadcasterFunc(func(ctx context.Context, u Update) error {
		if calls.Add(1) < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})
	r, err := NewRetrying(next, 3, time.Second, nil)
	require.NoError(t, err)

	assert.NoError(t, r.Broadcast(context.Background(), Update{Topic: TopicScreen, Key: "1"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_TimeoutBecomesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	next := BroadcasterFunc(func(ctx context.Context, u Update) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})
	r, err := NewRetrying(next, 3, 5*time.Millisecond, nil)
	require.NoError(t, err)

	err = r.Broadcast(context.Background(), Update{Topic: TopicScreen, Key: "1", Version: 1})
	assert.ErrorIs(t, err, core.ErrTransientNetworkFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetrying_StaleGuardStopsEarly(t *testing.T) {
	var calls atomic.Int32
	next := BroadcasterFunc(func(context.Context, Update) error {
		calls.Add(1)
		return errors.New("lost")
	})
	r, err := NewRetrying(next, 5, time.Second, nil)
	require.NoError(t, err)

	current := true
	err = r.BroadcastGuarded(context.Background(), Update{Topic: TopicScreen, Key: "1"}, func() bool {
		ok := current
		current = false
		return ok
	})
	assert.ErrorIs(t, err, core.ErrStale)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrying_StaleFromNextIsFinal(t *testing.T) {
	var calls atomic.Int32
	next := BroadcasterFunc(func(context.Context, Update) error {
		calls.Add(1)
		return core.ErrStale
	})
	r, err := NewRetrying(next, 3, time.Second, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Broadcast(context.Background(), Update{}), core.ErrStale)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Broadcast(context.Background(), Update{}))
}
