package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "sqware.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	store := newTestStore(t)

	created, err := store.CreateUser("alice", "hunter2", "🟥")
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Pseudo)
	assert.Equal(t, "🟥", created.Avatar)
	assert.Zero(t, created.BestScore)

	got, err := store.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Pseudo)
	assert.Equal(t, "🟥", got.Avatar)

	_, err = store.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, errBadLogin)

	_, err = store.Authenticate("nobody", "hunter2")
	assert.ErrorIs(t, err, errBadLogin)
}

func TestCreateUserRejectsDuplicatePseudo(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateUser("alice", "hunter2", "🟥")
	require.NoError(t, err)

	_, err = store.CreateUser("alice", "different", "🟦")
	assert.ErrorIs(t, err, errPseudoTaken)
}

func TestUpdateBestScoreOnlyRaises(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateUser("alice", "hunter2", "🟥")
	require.NoError(t, err)

	require.NoError(t, store.UpdateBestScore("alice", 15))
	got, err := store.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 15, got.BestScore)

	// A worse round must not lower the record.
	require.NoError(t, store.UpdateBestScore("alice", 8))
	got, err = store.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 15, got.BestScore)
}

func TestTopScoresOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, u := range []struct {
		pseudo string
		score  int
	}{
		{pseudo: "alice", score: 15},
		{pseudo: "bob", score: 40},
		{pseudo: "carol", score: 0},
		{pseudo: "dave", score: 15},
	} {
		_, err := store.CreateUser(u.pseudo, "pw", "🟩")
		require.NoError(t, err)
		require.NoError(t, store.UpdateBestScore(u.pseudo, u.score))
	}

	scores, err := store.TopScores(10)
	require.NoError(t, err)
	require.Len(t, scores, 3, "zero scores are omitted")

	assert.Equal(t, "bob", scores[0].Pseudo)
	assert.Equal(t, 40, scores[0].BestScore)
	assert.Equal(t, "alice", scores[1].Pseudo, "ties break alphabetically")
	assert.Equal(t, "dave", scores[2].Pseudo)

	limited, err := store.TopScores(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "bob", limited[0].Pseudo)
}
