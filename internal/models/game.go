package models

import "time"

// SessionState is the coarse lifecycle state of a game session.
type SessionState string

const (
	StateWaiting    SessionState = "WAITING"
	StateInProgress SessionState = "IN_PROGRESS"
	StateFinished   SessionState = "FINISHED"
)

// Phase numbers within a turn, in play order.
const (
	PhaseDescription = 1
	PhaseGeneration  = 2
	PhaseGuessing    = 3
	PhaseResult      = 4
)

// Player is one participant as reported by the server.
type Player struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	CharacterID int    `json:"characterId"`
	IsHost      bool   `json:"isHost"`
	Score       int    `json:"score"`
}

// GameSettings are mutable only by the host, over the REST settings call.
type GameSettings struct {
	PromptTimeLimit int    `json:"promptTimeLimit"`
	GuessTimeLimit  int    `json:"guessTimeLimit"`
	Difficulty      string `json:"difficulty"`
	Turns           int    `json:"turns"`
}

// GameState is the authoritative snapshot pushed by the server. Each
// inbound snapshot replaces the previous one wholesale.
type GameState struct {
	State           SessionState `json:"state"`
	CurrentTurn     int          `json:"currentTurn"`
	CurrentPhase    int          `json:"currentPhase"`
	RemainingTimeMs int64        `json:"remainingTimeMs"`
	Players         []Player     `json:"players"`
	Settings        GameSettings `json:"settings"`
}

// ChatMessage is one broadcast chat entry. Ordering is arrival order on
// the chat topic.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressSnapshot counts submissions for the current phase.
type ProgressSnapshot struct {
	Submitted int `json:"submitted"`
	Total     int `json:"total"`
}

// PersonalPayload tags.
const (
	PersonalKeyword = "keyword"
	PersonalImage   = "image"
)

// PersonalPayload is delivered only on the requesting player's private
// queue: the keyword to describe, or the generated image URL.
type PersonalPayload struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// PhaseBanner is the transient notification pushed on the phase topic.
type PhaseBanner struct {
	Message string `json:"message"`
}

// IsHost reports whether playerID is the host in the snapshot's player
// list. Absent players are not hosts, which covers the window before the
// local player shows up in a snapshot.
func (g *GameState) IsHost(playerID string) bool {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p.IsHost
		}
	}
	return false
}

// Winner returns the first player holding the maximum score, in list
// order. Ties go to the earliest entry.
func (g *GameState) Winner() (Player, bool) {
	if len(g.Players) == 0 {
		return Player{}, false
	}
	winner := g.Players[0]
	for _, p := range g.Players[1:] {
		if p.Score > winner.Score {
			winner = p
		}
	}
	return winner, true
}
