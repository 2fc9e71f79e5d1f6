package session

import "github.com/emojinious/emojinious-client/internal/models"

// chatLog is an append-only message list with a ring bound so a long
// session cannot grow it without limit.
type chatLog struct {
	max  int
	msgs []models.ChatMessage
}

func newChatLog(max int) *chatLog {
	if max <= 0 {
		max = 512
	}
	return &chatLog{max: max}
}

func (c *chatLog) append(m models.ChatMessage) {
	c.msgs = append(c.msgs, m)
	if len(c.msgs) > c.max {
		c.msgs = c.msgs[len(c.msgs)-c.max:]
	}
}

func (c *chatLog) messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}
