package session

import (
	"fmt"

	"github.com/emojinious/emojinious-client/internal/models"
)

// Mode is the UI mode derived from the snapshot's (state, currentPhase).
type Mode string

const (
	ModeLobby       Mode = "LOBBY"
	ModeDescription Mode = "DESCRIPTION"
	ModeGeneration  Mode = "GENERATION"
	ModeGuessing    Mode = "GUESSING"
	ModeResult      Mode = "RESULT"
	ModeFinished    Mode = "FINISHED"
)

// DeriveMode projects a snapshot onto a UI mode. It is a pure projection:
// all transitions are driven by inbound snapshots, never initiated here.
func DeriveMode(state models.SessionState, currentPhase int) Mode {
	switch state {
	case models.StateFinished:
		return ModeFinished
	case models.StateInProgress:
		switch currentPhase {
		case models.PhaseDescription:
			return ModeDescription
		case models.PhaseGeneration:
			return ModeGeneration
		case models.PhaseGuessing:
			return ModeGuessing
		case models.PhaseResult:
			return ModeResult
		}
	}
	return ModeLobby
}

// phaseController tracks the current mode and the turn-scoped personal
// data (keyword, generated image). A payload survives re-renders and the
// phase hops within its turn, until the turn moves on or a payload with
// the same tag overwrites it. Clearing per phase would lose payloads that
// arrive just ahead of the snapshot announcing their phase; the two
// topics carry no ordering guarantee relative to each other.
type phaseController struct {
	mode     Mode
	turn     int
	keyword  string
	imageURL string
}

func newPhaseController() *phaseController {
	return &phaseController{mode: ModeLobby}
}

// applySnapshot recomputes the mode and clears ephemeral data when the
// turn moved.
func (p *phaseController) applySnapshot(g *models.GameState) {
	if g.CurrentTurn != p.turn {
		p.keyword = ""
		p.imageURL = ""
		p.turn = g.CurrentTurn
	}
	p.mode = DeriveMode(g.State, g.CurrentPhase)
}

// applyPersonal stores a keyword or image payload. Unknown tags are a
// decode-level problem and rejected.
func (p *phaseController) applyPersonal(payload models.PersonalPayload) error {
	switch payload.Type {
	case models.PersonalKeyword:
		p.keyword = payload.Data
	case models.PersonalImage:
		p.imageURL = payload.Data
	default:
		return fmt.Errorf("unknown personal payload type %q", payload.Type)
	}
	return nil
}
