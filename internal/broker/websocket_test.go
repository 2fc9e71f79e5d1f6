package broker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer upgrades one connection, records what the client sends and
// lets the test push frames back.
type wsTestServer struct {
	srv    *httptest.Server
	frames chan frame
	conns  chan *websocket.Conn

	mu   sync.Mutex
	auth string
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	ts := &wsTestServer{
		frames: make(chan frame, 32),
		conns:  make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}

	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.auth = r.Header.Get("Authorization")
		ts.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ts.frames <- f
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *wsTestServer) authorization() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.auth
}

// recvFrame receives one client frame with a timeout so tests never hang.
func recvFrame(t *testing.T, ch <-chan frame, within time.Duration) frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return frame{}
	}
}

func recvBody(t *testing.T, ch <-chan []byte, within time.Duration) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(within):
		t.Fatalf("timed out waiting for dispatched body")
		return nil
	}
}

func dialTestBroker(t *testing.T, ts *wsTestServer) (*WebSocketBroker, *websocket.Conn) {
	t.Helper()
	b, err := DialWebSocket(DefaultWebSocketConfig(ts.url(), "tok-ws"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	select {
	case conn := <-ts.conns:
		return b, conn
	case <-time.After(time.Second):
		t.Fatal("server never saw the connection")
		return nil, nil
	}
}

func TestWebSocketDialSendsBearerToken(t *testing.T) {
	ts := newWSTestServer(t)
	dialTestBroker(t, ts)
	assert.Equal(t, "Bearer tok-ws", ts.authorization())
}

func TestWebSocketDialFailureIsConnectionError(t *testing.T) {
	// Plain HTTP endpoint that refuses the upgrade.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no sockets here", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := DialWebSocket(DefaultWebSocketConfig("ws"+strings.TrimPrefix(srv.URL, "http"), "tok"))
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
}

func TestWebSocketSubscribeDispatchesInOrder(t *testing.T) {
	ts := newWSTestServer(t)
	b, conn := dialTestBroker(t, ts)

	topic := GameTopic("s-1")
	received := make(chan []byte, 8)
	_, err := b.Subscribe(topic, func(body []byte) { received <- body })
	require.NoError(t, err)

	sub := recvFrame(t, ts.frames, time.Second)
	assert.Equal(t, opSubscribe, sub.Op)
	assert.Equal(t, topic, sub.Topic)

	for _, payload := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, conn.WriteJSON(frame{Op: opMessage, Topic: topic, Body: json.RawMessage(payload)}))
	}
	assert.JSONEq(t, `{"n":1}`, string(recvBody(t, received, time.Second)))
	assert.JSONEq(t, `{"n":2}`, string(recvBody(t, received, time.Second)))
	assert.JSONEq(t, `{"n":3}`, string(recvBody(t, received, time.Second)))

	// Frames for other topics never reach this handler.
	require.NoError(t, conn.WriteJSON(frame{Op: opMessage, Topic: ChatTopic("s-1"), Body: json.RawMessage(`{}`)}))
	select {
	case body := <-received:
		t.Fatalf("handler got frame for foreign topic: %s", body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebSocketSecondHandlerSharesSubscription(t *testing.T) {
	ts := newWSTestServer(t)
	b, conn := dialTestBroker(t, ts)

	topic := ProgressTopic("s-1")
	first := make(chan []byte, 1)
	second := make(chan []byte, 1)

	sub1, err := b.Subscribe(topic, func(body []byte) { first <- body })
	require.NoError(t, err)
	recvFrame(t, ts.frames, time.Second) // the one subscribe frame

	_, err = b.Subscribe(topic, func(body []byte) { second <- body })
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(frame{Op: opMessage, Topic: topic, Body: json.RawMessage(`{"submitted":1,"total":2}`)}))
	recvBody(t, first, time.Second)
	recvBody(t, second, time.Second)

	// Dropping one handler keeps the topic alive; dropping the last one
	// tells the server.
	require.NoError(t, sub1.Unsubscribe())
	require.NoError(t, conn.WriteJSON(frame{Op: opMessage, Topic: topic, Body: json.RawMessage(`{"submitted":2,"total":2}`)}))
	recvBody(t, second, time.Second)

	b.mu.RLock()
	remaining := len(b.subs[topic])
	b.mu.RUnlock()
	assert.Equal(t, 1, remaining)
}

func TestWebSocketUnsubscribeLastHandlerNotifiesServer(t *testing.T) {
	ts := newWSTestServer(t)
	b, _ := dialTestBroker(t, ts)

	topic := PhaseTopic("s-1")
	sub, err := b.Subscribe(topic, func([]byte) {})
	require.NoError(t, err)
	recvFrame(t, ts.frames, time.Second)

	require.NoError(t, sub.Unsubscribe())
	f := recvFrame(t, ts.frames, time.Second)
	assert.Equal(t, opUnsubscribe, f.Op)
	assert.Equal(t, topic, f.Topic)
}

func TestWebSocketPublishFraming(t *testing.T) {
	ts := newWSTestServer(t)
	b, _ := dialTestBroker(t, ts)

	topic := CommandTopic("s-1", "chat")
	require.NoError(t, b.Publish(topic, []byte(`{"content":"hi"}`)))

	f := recvFrame(t, ts.frames, time.Second)
	assert.Equal(t, opPublish, f.Op)
	assert.Equal(t, topic, f.Topic)
	assert.JSONEq(t, `{"content":"hi"}`, string(f.Body))
}

func TestWebSocketMalformedFrameDoesNotKillReadLoop(t *testing.T) {
	ts := newWSTestServer(t)
	b, conn := dialTestBroker(t, ts)

	topic := GameTopic("s-1")
	received := make(chan []byte, 1)
	_, err := b.Subscribe(topic, func(body []byte) { received <- body })
	require.NoError(t, err)
	recvFrame(t, ts.frames, time.Second)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not a frame")))
	require.NoError(t, conn.WriteJSON(frame{Op: opMessage, Topic: topic, Body: json.RawMessage(`{"ok":true}`)}))

	assert.JSONEq(t, `{"ok":true}`, string(recvBody(t, received, time.Second)))
}

func TestWebSocketSendAfterCloseFails(t *testing.T) {
	ts := newWSTestServer(t)
	b, _ := dialTestBroker(t, ts)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	err := b.Publish(GameTopic("s-1"), []byte(`{}`))
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
}
