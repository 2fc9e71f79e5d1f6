package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHost(t *testing.T) {
	g := GameState{Players: []Player{
		{ID: "a", IsHost: true},
		{ID: "b"},
	}}

	assert.True(t, g.IsHost("a"))
	assert.False(t, g.IsHost("b"))
	assert.False(t, g.IsHost("ghost"), "player not yet in the list is never host")
	assert.False(t, (&GameState{}).IsHost("a"))
}

func TestWinnerFirstSeenTieBreak(t *testing.T) {
	g := GameState{Players: []Player{
		{ID: "a", Nickname: "amy", Score: 10},
		{ID: "b", Nickname: "bob", Score: 25},
		{ID: "c", Nickname: "cho", Score: 25},
	}}

	winner, ok := g.Winner()
	assert.True(t, ok)
	assert.Equal(t, "b", winner.ID, "tie goes to the first player in list order")
}

func TestWinnerEmptyList(t *testing.T) {
	_, ok := (&GameState{}).Winner()
	assert.False(t, ok)
}
