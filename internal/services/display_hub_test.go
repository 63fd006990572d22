package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	messages  []WSMessage
	deadlines int
	closed    bool
	fail      bool

	// when set, writes block until the connection is closed
	stall    chan struct{}
	released sync.Once
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.stall != nil {
		<-c.stall
		return errors.New("use of closed network connection")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if c.stall != nil {
		c.released.Do(func() { close(c.stall) })
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.messages {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeConn) first() WSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[0]
}

const settle = time.Second

func requireTypes(t *testing.T, c *fakeConn, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.types()) == len(want) }, settle, 5*time.Millisecond)
	require.Equal(t, want, c.types())
}

func TestHubDisplayChanged(t *testing.T) {
	hub := NewDisplayHub()
	a, b, elsewhere := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(1, "", a)
	hub.Register(1, "token", b)
	hub.Register(2, "", elsewhere)

	hub.DisplayChanged(1)

	requireTypes(t, a, MessageDisplayUpdated)
	requireTypes(t, b, MessageDisplayUpdated)
	require.Empty(t, elsewhere.types())
	require.Equal(t, 2, hub.ViewerCount(1))
	require.Equal(t, int64(1), a.first().DisplayID)

	a.mu.Lock()
	defer a.mu.Unlock()
	require.Equal(t, 1, a.deadlines)
}

func TestHubTokenRevokedDropsOnlyThatToken(t *testing.T) {
	hub := NewDisplayHub()
	session, old, fresh := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(1, "", session)
	hub.Register(1, "old", old)
	hub.Register(1, "fresh", fresh)

	hub.TokenRevoked(1, "old")

	require.Equal(t, 2, hub.ViewerCount(1))
	require.Eventually(t, old.isClosed, settle, 5*time.Millisecond)
	require.Equal(t, []string{MessageTokenRevoked}, old.types())
	require.False(t, session.isClosed())
	require.False(t, fresh.isClosed())
}

func TestHubDisplayDeletedDropsEveryone(t *testing.T) {
	hub := NewDisplayHub()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(1, "", a)
	hub.Register(1, "t", b)

	hub.DisplayDeleted(1)

	require.Equal(t, 0, hub.ViewerCount(1))
	require.Eventually(t, func() bool { return a.isClosed() && b.isClosed() }, settle, 5*time.Millisecond)
	require.Equal(t, []string{MessageDisplayDeleted}, a.types())
}

func TestHubDropsBrokenConnections(t *testing.T) {
	hub := NewDisplayHub()
	healthy, broken := &fakeConn{}, &fakeConn{fail: true}
	hub.Register(1, "", healthy)
	v := hub.Register(1, "", broken)

	hub.DisplayChanged(1)

	require.Eventually(t, broken.isClosed, settle, 5*time.Millisecond)
	require.Equal(t, 1, hub.ViewerCount(1))
	requireTypes(t, healthy, MessageDisplayUpdated)

	// unregistering again is harmless
	hub.Unregister(v)
	require.Equal(t, 1, hub.ViewerCount(1))
}

func TestHubStalledViewerDoesNotBlockBroadcast(t *testing.T) {
	hub := NewDisplayHub()
	stalled := &fakeConn{stall: make(chan struct{})}
	hub.Register(1, "", stalled)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// one message is stuck in the write, the rest overflow the queue
		for i := 0; i < viewerQueueSize+2; i++ {
			hub.DisplayChanged(1)
		}
	}()

	select {
	case <-done:
	case <-time.After(settle):
		t.Fatal("DisplayChanged blocked on a stalled viewer")
	}

	require.True(t, stalled.isClosed())
	require.Equal(t, 0, hub.ViewerCount(1))

	healthy := &fakeConn{}
	hub.Register(1, "", healthy)
	hub.DisplayChanged(1)
	requireTypes(t, healthy, MessageDisplayUpdated)
}

func TestHubCloseAll(t *testing.T) {
	hub := NewDisplayHub()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(1, "", a)
	hub.Register(2, "t", b)

	hub.CloseAll()

	require.True(t, a.isClosed())
	require.True(t, b.isClosed())
	require.Equal(t, 0, hub.ViewerCount(1))
	require.Equal(t, 0, hub.ViewerCount(2))
}
