package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type hubEnv struct {
	hub    *Hub
	srv    *httptest.Server
	cancel context.CancelFunc
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()

	hub := NewHub(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &hubEnv{hub: hub, srv: srv, cancel: cancel}
}

func (e *hubEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_BroadcastReachesAllObservers(t *testing.T) {
	e := newHubEnv(t)

	first := e.dial(t)
	second := e.dial(t)

	// Registration races the broadcast; give the run loop a beat.
	time.Sleep(50 * time.Millisecond)
	e.hub.Broadcast([]byte(`{"event":"new_order"}`))

	assert.Equal(t, `{"event":"new_order"}`, readFrame(t, first))
	assert.Equal(t, `{"event":"new_order"}`, readFrame(t, second))
}

func TestHub_LateJoinerSeesOnlyNewFrames(t *testing.T) {
	e := newHubEnv(t)

	early := e.dial(t)
	time.Sleep(50 * time.Millisecond)
	e.hub.Broadcast([]byte(`first`))
	require.Equal(t, "first", readFrame(t, early))

	late := e.dial(t)
	time.Sleep(50 * time.Millisecond)
	e.hub.Broadcast([]byte(`second`))

	// The late joiner gets the second frame directly; nothing is replayed.
	assert.Equal(t, "second", readFrame(t, late))
	assert.Equal(t, "second", readFrame(t, early))
}

func TestHub_DisconnectedObserverIsForgotten(t *testing.T) {
	e := newHubEnv(t)

	conn := e.dial(t)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())
	time.Sleep(50 * time.Millisecond)

	// Broadcasting after the disconnect must not wedge the loop.
	e.hub.Broadcast([]byte(`after`))

	survivor := e.dial(t)
	time.Sleep(50 * time.Millisecond)
	e.hub.Broadcast([]byte(`still alive`))
	assert.Equal(t, "still alive", readFrame(t, survivor))
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	e := newHubEnv(t)

	conn := e.dial(t)
	time.Sleep(50 * time.Millisecond)

	e.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection must be closed by the hub")
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	// Run loop intentionally not started: the queue fills up.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Broadcast([]byte("frame"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked with a full queue")
	}
}
