package creds

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundtrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))

	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoCredentials)

	want := Credentials{
		PlayerID:    "p-1",
		Token:       "tok-abc",
		SessionID:   "s-9",
		CharacterID: 4,
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	// Clearing twice is fine.
	assert.NoError(t, store.Clear())
}

func TestFileStoreRejectsIncompleteCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(Credentials{PlayerID: "p-1"}))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoCredentials, "credentials without a session id are unusable")
}
