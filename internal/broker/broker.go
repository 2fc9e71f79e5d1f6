// Package broker abstracts the push channel between the game server and
// the client. Topics use the server's slash-separated destination names;
// each transport maps them onto its own wire form.
package broker

import (
	"errors"
	"fmt"
	"strings"
)

var errClosed = errors.New("broker connection closed")

// Handler receives the raw body of one inbound frame. Handlers for the
// same topic are invoked in broker delivery order.
type Handler func(body []byte)

// Subscription is one active topic binding.
type Subscription interface {
	Unsubscribe() error
}

// Broker is a connected transport to the message broker.
type Broker interface {
	Subscribe(topic string, h Handler) (Subscription, error)
	Publish(topic string, body []byte) error
	Close() error
}

// ConnectionError reports a transport or auth failure while establishing
// the broker connection. It is surfaced as a blocking error; there is no
// automatic retry of the initial connect.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("broker connect failed: %v", e.Err)
	}
	return fmt.Sprintf("broker connect to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Server-side destination names, addressed per session.

func GameTopic(sessionID string) string {
	return "/topic/game/" + sessionID
}

func ChatTopic(sessionID string) string {
	return "/topic/game/" + sessionID + "/chat"
}

func ProgressTopic(sessionID string) string {
	return "/topic/game/" + sessionID + "/progress"
}

func PhaseTopic(sessionID string) string {
	return "/topic/game/" + sessionID + "/phase"
}

// PersonalTopic is the player's private queue. Keyword and generated-image
// payloads arrive here and nowhere else.
func PersonalTopic(sessionID, playerID string) string {
	return "/user/queue/game/" + sessionID + "/" + playerID
}

// CommandTopic addresses an outbound player action.
func CommandTopic(sessionID, action string) string {
	return "/app/game/" + sessionID + "/" + action
}

// subjectForm converts a slash destination to the dotted subject form the
// NATS transport publishes on, e.g. /topic/game/S -> topic.game.S.
func subjectForm(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}
