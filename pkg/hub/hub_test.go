package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/nlweb-voice/internal/log"
)

// fakeConn records writes; reads block until Close.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, cancel
}

func TestHubPublish(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn()
	client := NewClient(h, conn)
	go client.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.Publish("transition", map[string]string{"to": "active"}))

	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)

	var event struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(conn.messages()[0], &event))
	assert.Equal(t, "transition", event.Type)
	assert.Equal(t, "active", event.Data["to"])
}

func TestHubClientDisconnect(t *testing.T) {
	h, _ := startHub(t)

	conn := newFakeConn()
	client := NewClient(h, conn)
	done := make(chan struct{})
	go func() {
		client.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	<-done
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	h, _ := startHub(t)

	// No pumps run, so the client's queue fills up.
	client := NewClient(h, newFakeConn())
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	for i := 0; i <= clientBuffer; i++ {
		h.Broadcast(Message{Data: []byte(`{}`)})
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
	assert.False(t, client.Send(Message{Data: []byte(`{}`)}))
}

func TestHubStopClosesClients(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client := NewClient(h, newFakeConn())
	cancel()
	<-h.Done()

	_, ok := <-client.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())

	// Registering after the hub stopped does not block.
	late := NewClient(h, newFakeConn())
	_, ok = <-late.send
	assert.False(t, ok)
}

func TestClientSend(t *testing.T) {
	h, _ := startHub(t)
	client := NewClient(h, newFakeConn())

	assert.True(t, client.Send(Message{Data: []byte(`{"type":"status"}`)}))
	msg := <-client.send
	assert.JSONEq(t, `{"type":"status"}`, string(msg.Data))
}

func TestEventEncode(t *testing.T) {
	msg, err := NewEvent("status", nil).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"type":"status"`)
	assert.NotContains(t, string(msg.Data), `"data"`)

	_, err = NewEvent("bad", make(chan int)).Encode()
	assert.Error(t, err)
}
