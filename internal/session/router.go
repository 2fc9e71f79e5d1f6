package session

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/emojinious/emojinious-client/internal/broker"
	"github.com/emojinious/emojinious-client/internal/creds"
	"github.com/emojinious/emojinious-client/internal/models"
)

// bindSubscriptions subscribes the fixed topic set for the session and
// binds each topic to its decode-then-apply handler. On any failure the
// caller releases whatever was already subscribed.
//
// Handlers decode on the broker's delivery goroutine and enqueue the
// decoded value onto the loop, so a slow decode never reorders frames
// within a topic and a bad frame never reaches the loop at all.
func (e *Engine) bindSubscriptions(b broker.Broker, h *ConnectionHandle, c creds.Credentials) ([]broker.Subscription, error) {
	bindings := []struct {
		topic   string
		handler broker.Handler
	}{
		{broker.GameTopic(c.SessionID), e.gameHandler(h)},
		{broker.ChatTopic(c.SessionID), e.chatHandler(h)},
		{broker.ProgressTopic(c.SessionID), e.progressHandler(h)},
		{broker.PhaseTopic(c.SessionID), e.bannerHandler(h)},
		{broker.PersonalTopic(c.SessionID, c.PlayerID), e.personalHandler(h)},
	}

	subs := make([]broker.Subscription, 0, len(bindings))
	for _, bind := range bindings {
		sub, err := b.Subscribe(bind.topic, bind.handler)
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// logDropped records a malformed frame. The frame is dropped and every
// other topic keeps flowing.
func logDropped(err *DeserializationError) {
	log.Error().Err(err.Err).Str("topic", err.Topic).Msg("dropping malformed frame")
}

func (e *Engine) gameHandler(h *ConnectionHandle) broker.Handler {
	topic := broker.GameTopic(e.cfg.SessionID)
	return func(body []byte) {
		var g models.GameState
		if err := json.Unmarshal(body, &g); err != nil {
			logDropped(&DeserializationError{Topic: topic, Err: err})
			return
		}
		e.enqueue(h, func() { e.applySnapshot(&g) })
	}
}

func (e *Engine) chatHandler(h *ConnectionHandle) broker.Handler {
	topic := broker.ChatTopic(e.cfg.SessionID)
	return func(body []byte) {
		var m models.ChatMessage
		if err := json.Unmarshal(body, &m); err != nil {
			logDropped(&DeserializationError{Topic: topic, Err: err})
			return
		}
		e.enqueue(h, func() { e.applyChat(m) })
	}
}

func (e *Engine) progressHandler(h *ConnectionHandle) broker.Handler {
	topic := broker.ProgressTopic(e.cfg.SessionID)
	return func(body []byte) {
		var p models.ProgressSnapshot
		if err := json.Unmarshal(body, &p); err != nil {
			logDropped(&DeserializationError{Topic: topic, Err: err})
			return
		}
		e.enqueue(h, func() { e.applyProgress(p) })
	}
}

func (e *Engine) bannerHandler(h *ConnectionHandle) broker.Handler {
	topic := broker.PhaseTopic(e.cfg.SessionID)
	return func(body []byte) {
		var b models.PhaseBanner
		if err := json.Unmarshal(body, &b); err != nil {
			logDropped(&DeserializationError{Topic: topic, Err: err})
			return
		}
		e.enqueue(h, func() { e.applyBanner(b) })
	}
}

func (e *Engine) personalHandler(h *ConnectionHandle) broker.Handler {
	return func(body []byte) {
		var p models.PersonalPayload
		if err := json.Unmarshal(body, &p); err != nil {
			logDropped(&DeserializationError{Topic: "personal", Err: err})
			return
		}
		e.enqueue(h, func() { e.applyPersonal(p) })
	}
}
