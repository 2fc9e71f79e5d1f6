package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/emojinious/emojinious-client/internal/broker"
	"github.com/emojinious/emojinious-client/internal/models"
)

// Player actions, addressed per session on the command destinations.
const (
	actionChat   = "chat"
	actionStart  = "start"
	actionPrompt = "prompt"
	actionGuess  = "guess"
)

// command is the outbound envelope for a fire-and-forget player action.
type command struct {
	MessageID string    `json:"messageId"`
	PlayerID  string    `json:"playerId"`
	Content   string    `json:"content,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// publishCommand sends one action to the server. No local state changes:
// every visible effect of a command arrives back through a subscription.
func (e *Engine) publishCommand(action, content string) error {
	e.mu.RLock()
	state, h, playerID := e.connState, e.handle, e.playerID
	e.mu.RUnlock()

	if state != StateConnected || h == nil {
		return ErrNotConnected
	}

	cmd := command{
		MessageID: uuid.New().String(),
		PlayerID:  playerID,
		Content:   content,
		SentAt:    e.clock.Now(),
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", action, err)
	}

	if err := h.broker.Publish(broker.CommandTopic(e.cfg.SessionID, action), body); err != nil {
		return fmt.Errorf("publish %s command: %w", action, err)
	}
	log.Debug().
		Str("action", action).
		Str("message_id", cmd.MessageID).
		Msg("command published")
	return nil
}

// SendChat publishes a chat message. The message shows up in the local
// log only once the server broadcasts it back.
func (e *Engine) SendChat(content string) error {
	return e.publishCommand(actionChat, content)
}

// StartGame asks the server to start the game. Host only; the server
// enforces it and the state change arrives via the next snapshot.
func (e *Engine) StartGame() error {
	return e.publishCommand(actionStart, "")
}

// SubmitPrompt submits the player's description for the current keyword.
func (e *Engine) SubmitPrompt(text string) error {
	return e.publishCommand(actionPrompt, text)
}

// SubmitGuess submits the player's guess for the current image.
func (e *Engine) SubmitGuess(text string) error {
	return e.publishCommand(actionGuess, text)
}

// UpdateSettings sends new settings over the request/response call. On
// success the accepted settings come back through the next snapshot; on
// failure local state is untouched and the typed error is returned for
// the caller to surface.
func (e *Engine) UpdateSettings(ctx context.Context, settings models.GameSettings) error {
	if e.cfg.Settings == nil {
		return fmt.Errorf("no settings updater configured")
	}

	e.mu.RLock()
	token := e.token
	e.mu.RUnlock()

	if err := e.cfg.Settings.UpdateSettings(ctx, e.cfg.SessionID, settings, token); err != nil {
		log.Error().Err(err).Str("session_id", e.cfg.SessionID).Msg("settings update failed")
		return err
	}
	return nil
}
