package broker

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds settings for the raw WebSocket transport, used
// against servers that expose a socket endpoint instead of NATS.
type WebSocketConfig struct {
	URL            string
	Token          string
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns default WebSocket transport settings.
func DefaultWebSocketConfig(url, token string) WebSocketConfig {
	return WebSocketConfig{
		URL:            url,
		Token:          token,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// frame is the wire envelope on the WebSocket transport.
type frame struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPublish     = "publish"
	opMessage     = "message"
)

// WebSocketBroker multiplexes topics over a single socket. One read loop
// dispatches inbound frames, which keeps per-topic delivery FIFO.
type WebSocketBroker struct {
	conn   *websocket.Conn
	config WebSocketConfig

	send   chan []byte
	closed chan struct{}
	once   sync.Once

	mu   sync.RWMutex
	subs map[string][]*wsSubscription
}

// DialWebSocket opens the socket and authenticates with the player token.
func DialWebSocket(cfg WebSocketConfig) (*WebSocketBroker, error) {
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, header)
	if err != nil {
		return nil, &ConnectionError{URL: cfg.URL, Err: err}
	}

	b := &WebSocketBroker{
		conn:   conn,
		config: cfg,
		send:   make(chan []byte, 256),
		closed: make(chan struct{}),
		subs:   make(map[string][]*wsSubscription),
	}

	go b.writePump()
	go b.readPump()

	log.Info().Str("url", cfg.URL).Msg("broker connected")
	return b, nil
}

type wsSubscription struct {
	broker  *WebSocketBroker
	topic   string
	handler Handler
}

func (s *wsSubscription) Unsubscribe() error {
	return s.broker.unsubscribe(s)
}

func (b *WebSocketBroker) Subscribe(topic string, h Handler) (Subscription, error) {
	sub := &wsSubscription{broker: b, topic: topic, handler: h}

	b.mu.Lock()
	first := len(b.subs[topic]) == 0
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	if first {
		if err := b.sendFrame(frame{Op: opSubscribe, Topic: topic}); err != nil {
			b.unsubscribe(sub)
			return nil, err
		}
	}
	log.Debug().Str("topic", topic).Msg("subscribed")
	return sub, nil
}

func (b *WebSocketBroker) unsubscribe(sub *wsSubscription) error {
	b.mu.Lock()
	handlers := b.subs[sub.topic]
	for i, s := range handlers {
		if s == sub {
			b.subs[sub.topic] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	last := len(b.subs[sub.topic]) == 0
	if last {
		delete(b.subs, sub.topic)
	}
	b.mu.Unlock()

	if last {
		return b.sendFrame(frame{Op: opUnsubscribe, Topic: sub.topic})
	}
	return nil
}

func (b *WebSocketBroker) Publish(topic string, body []byte) error {
	return b.sendFrame(frame{Op: opPublish, Topic: topic, Body: body})
}

func (b *WebSocketBroker) sendFrame(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	// Checked first so a send after Close fails even while the buffered
	// send channel still has room.
	select {
	case <-b.closed:
		return &ConnectionError{URL: b.config.URL, Err: errClosed}
	default:
	}
	select {
	case b.send <- data:
		return nil
	case <-b.closed:
		return &ConnectionError{URL: b.config.URL, Err: errClosed}
	}
}

func (b *WebSocketBroker) Close() error {
	b.once.Do(func() {
		close(b.closed)
		b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(b.config.WriteTimeout))
		b.conn.Close()
	})
	return nil
}

// writePump owns all writes to the socket: outbound frames plus pings.
func (b *WebSocketBroker) writePump() {
	ticker := time.NewTicker(b.config.PingInterval)
	defer func() {
		ticker.Stop()
		b.Close()
	}()

	for {
		select {
		case <-b.closed:
			return
		case message := <-b.send:
			b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := b.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write frame to socket")
				return
			}
		case <-ticker.C:
			b.conn.SetWriteDeadline(time.Now().Add(b.config.WriteTimeout))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads inbound frames and dispatches message frames to the
// topic's handlers in arrival order.
func (b *WebSocketBroker) readPump() {
	defer b.Close()

	b.conn.SetReadLimit(b.config.MaxMessageSize)
	b.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
	b.conn.SetPongHandler(func(string) error {
		b.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected socket close")
			}
			return
		}
		b.conn.SetReadDeadline(time.Now().Add(b.config.ReadTimeout))

		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			log.Error().Err(err).Msg("malformed socket frame, dropping")
			continue
		}
		if f.Op != opMessage {
			continue
		}

		b.mu.RLock()
		handlers := make([]*wsSubscription, len(b.subs[f.Topic]))
		copy(handlers, b.subs[f.Topic])
		b.mu.RUnlock()

		for _, sub := range handlers {
			sub.handler(f.Body)
		}
	}
}
