// Package session implements the synchronization engine for one game
// session: connection lifecycle, topic dispatch, snapshot reconciliation,
// countdown prediction and phase derivation. The server is the only
// writer of truth; everything here is a projection of what it pushes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/emojinious/emojinious-client/internal/broker"
	"github.com/emojinious/emojinious-client/internal/creds"
	"github.com/emojinious/emojinious-client/internal/models"
)

// ConnState is the connection lifecycle state of the engine.
type ConnState string

const (
	StateDisconnected  ConnState = "DISCONNECTED"
	StateConnecting    ConnState = "CONNECTING"
	StateConnected     ConnState = "CONNECTED"
	StateDisconnecting ConnState = "DISCONNECTING"
)

// DialFunc opens a broker connection authenticated with the player's
// credentials.
type DialFunc func(c creds.Credentials) (broker.Broker, error)

// SettingsUpdater is the request/response boundary for the host-only
// settings call. Implemented by the REST client.
type SettingsUpdater interface {
	UpdateSettings(ctx context.Context, sessionID string, settings models.GameSettings, token string) error
}

// Config configures an Engine.
type Config struct {
	// SessionID is the session this engine's view belongs to, taken from
	// the route. It must match the session id persisted at join time.
	SessionID string

	Creds    creds.Store
	Dial     DialFunc
	Settings SettingsUpdater

	// Clock drives the countdown prediction. Defaults to the real clock.
	Clock clockwork.Clock

	// ChatLimit bounds the in-memory chat log (default 512).
	ChatLimit int

	// EventBuffer sizes the Events channel (default 64).
	EventBuffer int

	// OnConnected, if set, is invoked once the subscriptions are live.
	OnConnected func()
}

// ConnectionHandle is the one live connection for a session. At most one
// handle is active per engine at any time.
type ConnectionHandle struct {
	ID        string
	SessionID string

	broker broker.Broker
	subs   []broker.Subscription
	loop   chan func()
	stop   chan struct{}
	done   chan struct{}
}

// View is a consistent read of the engine's derived state. All fields
// reflect the same snapshot; they are written together, atomically, when
// that snapshot is applied.
type View struct {
	ConnState        ConnState
	Game             *models.GameState
	IsHost           bool
	Mode             Mode
	Keyword          string
	ImageURL         string
	RemainingSeconds int
	Progress         models.ProgressSnapshot
	Chat             []models.ChatMessage
}

// Engine is the session synchronization engine. All inbound handlers and
// timer ticks are serialized onto a single loop goroutine, so no apply
// ever observes another apply half-done.
type Engine struct {
	cfg   Config
	clock clockwork.Clock

	// connectMu serializes Connect and Close so connect attempts never
	// overlap.
	connectMu sync.Mutex

	mu         sync.RWMutex
	connState  ConnState
	terminated bool
	handle     *ConnectionHandle
	playerID  string
	token     string
	game      *models.GameState
	isHost    bool
	timer     timerReconciler
	phases    *phaseController
	chat      *chatLog
	progress  models.ProgressSnapshot

	events chan Event
}

// New creates an engine for the given session. Nothing connects until
// Connect is called.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	buf := cfg.EventBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Engine{
		cfg:       cfg,
		clock:     clock,
		connState: StateDisconnected,
		phases:    newPhaseController(),
		chat:      newChatLog(cfg.ChatLimit),
		events:    make(chan Event, buf),
	}
}

// Events returns the engine's consolidated update stream. When the buffer
// is full, updates are dropped with a warning; View always has the latest
// consistent state regardless. The channel is closed once Close has torn
// the connection down, after which the engine cannot be reconnected.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// State returns the current connection state.
func (e *Engine) State() ConnState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connState
}

// Connect reads credentials, dials the broker and binds the session's
// subscriptions. Calling it while a handle is already live is a no-op
// that returns the existing handle. A persisted session id that does not
// match the engine's session refuses with ErrSessionMismatch so the
// caller can navigate away from the stale view.
//
// Cancelling ctx after a successful connect tears the engine down.
func (e *Engine) Connect(ctx context.Context) (*ConnectionHandle, error) {
	e.connectMu.Lock()
	defer e.connectMu.Unlock()

	e.mu.RLock()
	state, existing, terminated := e.connState, e.handle, e.terminated
	e.mu.RUnlock()

	switch {
	case state == StateConnected:
		log.Debug().Str("session_id", e.cfg.SessionID).Msg("connect ignored, already connected")
		return existing, nil
	case state == StateDisconnecting || terminated:
		return nil, ErrClosed
	}

	c, err := e.cfg.Creds.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if c.SessionID != e.cfg.SessionID {
		log.Warn().
			Str("session_id", e.cfg.SessionID).
			Str("stored_session_id", c.SessionID).
			Msg("refusing to connect stale session view")
		return nil, ErrSessionMismatch
	}

	e.setConnState(StateConnecting)

	b, err := e.cfg.Dial(c)
	if err != nil {
		e.setConnState(StateDisconnected)
		return nil, err
	}

	h := &ConnectionHandle{
		ID:        uuid.New().String(),
		SessionID: e.cfg.SessionID,
		broker:    b,
		loop:      make(chan func(), 128),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	subs, err := e.bindSubscriptions(b, h, c)
	if err != nil {
		for _, s := range subs {
			s.Unsubscribe()
		}
		b.Close()
		e.setConnState(StateDisconnected)
		return nil, &broker.ConnectionError{Err: fmt.Errorf("bind subscriptions: %w", err)}
	}
	h.subs = subs

	// The handle and the Connected state land in one critical section:
	// applyIfActive keys off connState under this same lock, so the loop
	// (started below) can apply everything that queued up during subscribe.
	e.mu.Lock()
	e.handle = h
	e.playerID = c.PlayerID
	e.token = c.Token
	e.connState = StateConnected
	e.mu.Unlock()
	e.emit(Event{Type: EventConnState, ConnState: StateConnected})

	go e.run(h)
	go func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-h.stop:
		}
	}()

	log.Info().
		Str("session_id", e.cfg.SessionID).
		Str("player_id", c.PlayerID).
		Str("connection_id", h.ID).
		Msg("session connected")

	if e.cfg.OnConnected != nil {
		e.cfg.OnConnected()
	}
	return h, nil
}

// Close tears the connection down: no handler applies once teardown
// begins, then subscriptions and the broker connection are released and
// the event stream is closed. It is idempotent and safe on a
// never-connected engine; a torn-down engine stays closed — re-entering
// the session means a fresh engine.
func (e *Engine) Close() error {
	e.connectMu.Lock()
	defer e.connectMu.Unlock()

	// Teardown begins here: once connState leaves Connected under e.mu,
	// applyIfActive rejects every apply, including ones already queued on
	// the loop.
	e.mu.Lock()
	h := e.handle
	if h == nil {
		e.connState = StateDisconnected
		e.mu.Unlock()
		return nil
	}
	e.handle = nil
	e.connState = StateDisconnecting
	e.mu.Unlock()
	e.emit(Event{Type: EventConnState, ConnState: StateDisconnecting})

	close(h.stop)
	<-h.done

	for _, s := range h.subs {
		s.Unsubscribe()
	}
	h.broker.Close()

	e.mu.Lock()
	e.connState = StateDisconnected
	e.terminated = true
	e.mu.Unlock()
	e.emit(Event{Type: EventConnState, ConnState: StateDisconnected})

	// The loop has exited and applies are inert, so nothing can emit
	// anymore.
	close(e.events)

	log.Info().
		Str("session_id", e.cfg.SessionID).
		Str("connection_id", h.ID).
		Msg("session disconnected")
	return nil
}

// View returns a copy of the current derived state. Game and IsHost
// always come from the same snapshot.
func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v := View{
		ConnState:        e.connState,
		IsHost:           e.isHost,
		Mode:             e.phases.mode,
		Keyword:          e.phases.keyword,
		ImageURL:         e.phases.imageURL,
		RemainingSeconds: e.timer.remaining,
		Progress:         e.progress,
		Chat:             e.chat.messages(),
	}
	if e.game != nil {
		g := *e.game
		g.Players = append([]models.Player(nil), e.game.Players...)
		v.Game = &g
	}
	return v
}

// run is the engine's single thread of control: subscription handlers and
// timer ticks all apply here, one at a time.
func (e *Engine) run(h *ConnectionHandle) {
	ticker := e.clock.NewTicker(time.Second)
	defer func() {
		ticker.Stop()
		close(h.done)
	}()

	for {
		select {
		case <-h.stop:
			return
		case apply := <-h.loop:
			apply()
		case <-ticker.Chan():
			e.applyTick()
		}
	}
}

// enqueue hands an apply function to the loop, discarding it once
// teardown has begun. This alone is not the teardown guard: an apply
// already buffered when stop closes can still be drawn by the loop's
// select, so every apply re-checks liveness via applyIfActive.
func (e *Engine) enqueue(h *ConnectionHandle, apply func()) {
	select {
	case h.loop <- apply:
	case <-h.stop:
	}
}

// applyIfActive runs fn under the engine lock only while the engine is
// still connected. Close moves connState off Connected under this same
// lock before it signals the loop, so an apply that was queued before
// teardown began can no longer mutate state or emit. Reports whether fn
// ran.
func (e *Engine) applyIfActive(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connState != StateConnected {
		return false
	}
	fn()
	return true
}

func (e *Engine) setConnState(s ConnState) {
	e.mu.Lock()
	e.connState = s
	e.mu.Unlock()
	e.emit(Event{Type: EventConnState, ConnState: s})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Warn().Str("event_type", string(ev.Type)).Msg("event buffer full, dropping event")
	}
}

// applySnapshot replaces the stored state wholesale and recomputes every
// derived value in the same critical section, so readers never see Game
// and IsHost from two different snapshots.
func (e *Engine) applySnapshot(g *models.GameState) {
	ok := e.applyIfActive(func() {
		e.game = g
		e.isHost = g.IsHost(e.playerID)
		e.timer.reset(g.RemainingTimeMs)
		e.phases.applySnapshot(g)
	})
	if ok {
		e.emit(Event{Type: EventSnapshot})
	}
}

func (e *Engine) applyChat(m models.ChatMessage) {
	if e.applyIfActive(func() { e.chat.append(m) }) {
		e.emit(Event{Type: EventChat, Chat: &m})
	}
}

func (e *Engine) applyProgress(p models.ProgressSnapshot) {
	if e.applyIfActive(func() { e.progress = p }) {
		e.emit(Event{Type: EventProgress, Progress: &p})
	}
}

func (e *Engine) applyPersonal(p models.PersonalPayload) {
	var badTag error
	if !e.applyIfActive(func() { badTag = e.phases.applyPersonal(p) }) {
		return
	}
	if badTag != nil {
		logDropped(&DeserializationError{Topic: "personal", Err: badTag})
		return
	}
	e.emit(Event{Type: EventPersonal, Personal: &p})
}

func (e *Engine) applyBanner(b models.PhaseBanner) {
	if e.applyIfActive(func() {}) {
		e.emit(Event{Type: EventBanner, Banner: b.Message})
	}
}

func (e *Engine) applyTick() {
	var changed bool
	var remaining int
	ok := e.applyIfActive(func() {
		changed = e.timer.tick()
		remaining = e.timer.remaining
	})
	if ok && changed {
		e.emit(Event{Type: EventTick, RemainingSeconds: remaining})
	}
}
