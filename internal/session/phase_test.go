package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emojinious/emojinious-client/internal/broker"
	"github.com/emojinious/emojinious-client/internal/models"
)

func TestDeriveMode(t *testing.T) {
	tests := []struct {
		name  string
		state models.SessionState
		phase int
		want  Mode
	}{
		{"waiting", models.StateWaiting, 0, ModeLobby},
		{"description", models.StateInProgress, models.PhaseDescription, ModeDescription},
		{"generation", models.StateInProgress, models.PhaseGeneration, ModeGeneration},
		{"guessing", models.StateInProgress, models.PhaseGuessing, ModeGuessing},
		{"result", models.StateInProgress, models.PhaseResult, ModeResult},
		{"finished", models.StateFinished, models.PhaseResult, ModeFinished},
		{"in progress with unknown phase", models.StateInProgress, 9, ModeLobby},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveMode(tt.state, tt.phase))
		})
	}
}

func TestPhaseCyclingAcrossTurns(t *testing.T) {
	fb := newFakeBroker()
	e := newTestEngine(t, fb, nil)
	_, err := e.Connect(context.Background())
	require.NoError(t, err)

	const turns = 3
	var observed []Mode

	push := func(g models.GameState) {
		fb.push(t, broker.GameTopic(testSession), snapshotBody(t, g))
		waitEvent(t, e, EventSnapshot, time.Second)
		observed = append(observed, e.View().Mode)
	}

	push(waitingSnapshot(models.Player{ID: testPlayer}))

	for turn := 1; turn <= turns; turn++ {
		for phase := models.PhaseDescription; phase <= models.PhaseResult; phase++ {
			g := waitingSnapshot(models.Player{ID: testPlayer})
			g.State = models.StateInProgress
			g.CurrentTurn = turn
			g.CurrentPhase = phase
			push(g)
		}
	}

	final := waitingSnapshot(models.Player{ID: testPlayer, Score: 42})
	final.State = models.StateFinished
	push(final)

	want := []Mode{ModeLobby}
	for i := 0; i < turns; i++ {
		want = append(want, ModeDescription, ModeGeneration, ModeGuessing, ModeResult)
	}
	want = append(want, ModeFinished)
	assert.Equal(t, want, observed)
}

func TestPersonalPayloadRetainedUntilPhaseChange(t *testing.T) {
	fb := newFakeBroker()
	e := newTestEngine(t, fb, nil)
	_, err := e.Connect(context.Background())
	require.NoError(t, err)

	inProgress := func(turn, phase int) models.GameState {
		g := waitingSnapshot(models.Player{ID: testPlayer})
		g.State = models.StateInProgress
		g.CurrentTurn = turn
		g.CurrentPhase = phase
		return g
	}
	pushSnap := func(g models.GameState) {
		fb.push(t, broker.GameTopic(testSession), snapshotBody(t, g))
		waitEvent(t, e, EventSnapshot, time.Second)
	}
	pushPersonal := func(p models.PersonalPayload) {
		body, err := json.Marshal(p)
		require.NoError(t, err)
		fb.push(t, broker.PersonalTopic(testSession, testPlayer), body)
	}

	pushSnap(inProgress(1, models.PhaseDescription))
	pushPersonal(models.PersonalPayload{Type: models.PersonalKeyword, Data: "toast"})
	waitEvent(t, e, EventPersonal, time.Second)
	assert.Equal(t, "toast", e.View().Keyword)

	// Another snapshot for the same (turn, phase) is a re-render, not a
	// phase change: data is retained.
	pushSnap(inProgress(1, models.PhaseDescription))
	assert.Equal(t, "toast", e.View().Keyword)

	// Same-tag overwrite wins.
	pushPersonal(models.PersonalPayload{Type: models.PersonalKeyword, Data: "butter"})
	waitEvent(t, e, EventPersonal, time.Second)
	assert.Equal(t, "butter", e.View().Keyword)

	// The image may arrive just before the snapshot that announces the
	// generation phase; the two topics carry no relative ordering, so the
	// payload must survive the phase hop within its turn.
	pushPersonal(models.PersonalPayload{Type: models.PersonalImage, Data: "https://cdn/img.png"})
	waitEvent(t, e, EventPersonal, time.Second)
	pushSnap(inProgress(1, models.PhaseGeneration))

	v := e.View()
	assert.Equal(t, ModeGeneration, v.Mode)
	assert.Equal(t, "butter", v.Keyword, "keyword lives for the whole turn")
	assert.Equal(t, "https://cdn/img.png", v.ImageURL)

	// The next turn starts from a clean slate.
	pushSnap(inProgress(2, models.PhaseDescription))
	v = e.View()
	assert.Empty(t, v.Keyword)
	assert.Empty(t, v.ImageURL)
}

func TestUnknownPersonalTagDropped(t *testing.T) {
	fb := newFakeBroker()
	e := newTestEngine(t, fb, nil)
	_, err := e.Connect(context.Background())
	require.NoError(t, err)

	body, _ := json.Marshal(models.PersonalPayload{Type: "confetti", Data: "???"})
	fb.push(t, broker.PersonalTopic(testSession, testPlayer), body)

	expectNoEvent(t, e, EventPersonal, 50*time.Millisecond)
	v := e.View()
	assert.Empty(t, v.Keyword)
	assert.Empty(t, v.ImageURL)
}

func TestPhaseBannerSurfacedAsEvent(t *testing.T) {
	fb := newFakeBroker()
	e := newTestEngine(t, fb, nil)
	_, err := e.Connect(context.Background())
	require.NoError(t, err)

	body, _ := json.Marshal(models.PhaseBanner{Message: "Guessing phase begins!"})
	fb.push(t, broker.PhaseTopic(testSession), body)

	ev := waitEvent(t, e, EventBanner, time.Second)
	assert.Equal(t, "Guessing phase begins!", ev.Banner)
}
