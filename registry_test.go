package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachUnknownIdentity(t *testing.T) {
	reg := newRegistry()

	err := reg.Attach("nobody", "conn-1")
	assert.ErrorIs(t, err, errUnknownIdentity)
}

func TestAttachResolveDetach(t *testing.T) {
	reg := newRegistry()
	p := &Player{ID: "id-1", Pseudo: "alice"}
	reg.AddIdentity(p)

	require.NoError(t, reg.Attach(p.ID, "conn-1"))

	got, err := reg.Resolve("conn-1")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, "conn-1", reg.ConnOf(p))

	reg.Detach("conn-1")

	_, err = reg.Resolve("conn-1")
	assert.ErrorIs(t, err, errNotConnected)
	assert.Empty(t, reg.ConnOf(p))
}

func TestReconnectOverwritesBinding(t *testing.T) {
	reg := newRegistry()
	p := &Player{ID: "id-1", Pseudo: "alice"}
	reg.AddIdentity(p)

	require.NoError(t, reg.Attach(p.ID, "conn-old"))
	require.NoError(t, reg.Attach(p.ID, "conn-new"))

	// The stale binding is gone, the fresh one resolves to the same
	// logical player.
	_, err := reg.Resolve("conn-old")
	assert.ErrorIs(t, err, errNotConnected)

	got, err := reg.Resolve("conn-new")
	require.NoError(t, err)
	assert.Same(t, p, got)

	// A late detach of the old connection must not clear the new one.
	reg.Detach("conn-old")
	assert.Equal(t, "conn-new", reg.ConnOf(p))
}

func TestAttachIsIdempotentPerConnection(t *testing.T) {
	reg := newRegistry()
	p := &Player{ID: "id-1", Pseudo: "alice"}
	reg.AddIdentity(p)

	require.NoError(t, reg.Attach(p.ID, "conn-1"))
	require.NoError(t, reg.Attach(p.ID, "conn-1"))

	got, err := reg.Resolve("conn-1")
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestRemoveIdentityClearsBinding(t *testing.T) {
	reg := newRegistry()
	p := &Player{ID: "id-1", Pseudo: "alice"}
	reg.AddIdentity(p)
	require.NoError(t, reg.Attach(p.ID, "conn-1"))

	assert.True(t, reg.IsLogged("alice"))

	reg.RemoveIdentity(p.ID)

	assert.False(t, reg.IsLogged("alice"))
	_, err := reg.Resolve("conn-1")
	assert.ErrorIs(t, err, errNotConnected)
}
