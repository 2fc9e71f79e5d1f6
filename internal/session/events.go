package session

import "github.com/emojinious/emojinious-client/internal/models"

// EventType tags entries on the engine's event stream.
type EventType string

const (
	EventConnState EventType = "ConnStateChanged"
	EventSnapshot  EventType = "SnapshotApplied"
	EventChat      EventType = "ChatAppended"
	EventProgress  EventType = "ProgressUpdated"
	EventPersonal  EventType = "PersonalPayload"
	EventBanner    EventType = "PhaseBanner"
	EventTick      EventType = "TimerTick"
)

// Event is one update on the engine's consolidated stream. Only the
// fields relevant to the Type are set; the full consistent view is always
// available through Engine.View.
type Event struct {
	Type EventType

	ConnState        ConnState
	Chat             *models.ChatMessage
	Progress         *models.ProgressSnapshot
	Personal         *models.PersonalPayload
	Banner           string
	RemainingSeconds int
}
