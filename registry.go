package main

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Player is an authenticated identity. Identity fields are owned by the
// auth layer; the transient fields are bound and cleared by the Registry
// as the player's websocket comes and goes.
type Player struct {
	ID        string
	Pseudo    string
	Avatar    string
	BestScore int

	connID string
	roomID string
}

// Registry tracks logged-in identities and maps live connection IDs to
// player records. All access goes through its mutex; per-room game state
// is owned by the room's session actor instead.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player // identity ID -> player
	byConn  map[string]*Player // connection ID -> player
}

func newRegistry() *Registry {
	return &Registry{
		players: make(map[string]*Player),
		byConn:  make(map[string]*Player),
	}
}

// AddIdentity registers an authenticated player so connections can attach
// to it. Called by the login/signup handlers.
func (reg *Registry) AddIdentity(p *Player) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.players[p.ID] = p
}

// RemoveIdentity drops an identity entirely (logout).
func (reg *Registry) RemoveIdentity(playerID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if p, ok := reg.players[playerID]; ok {
		if p.connID != "" {
			delete(reg.byConn, p.connID)
		}
		delete(reg.players, playerID)
	}
}

// Attach binds a connection ID to an existing identity. A second attach
// for the same player replaces the previous binding: that is a reconnect
// of the same logical player, not a new join.
func (reg *Registry) Attach(playerID, connID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	p, ok := reg.players[playerID]
	if !ok {
		return errUnknownIdentity
	}

	if p.connID != "" && p.connID != connID {
		delete(reg.byConn, p.connID)
	}

	p.connID = connID
	reg.byConn[connID] = p

	return nil
}

// Resolve returns the player bound to a connection ID.
func (reg *Registry) Resolve(connID string) (*Player, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	p, ok := reg.byConn[connID]
	if !ok {
		return nil, errNotConnected
	}

	return p, nil
}

// Detach clears a connection binding. Callers must notify the player's
// room first, so forfeit handling still sees the binding.
func (reg *Registry) Detach(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	p, ok := reg.byConn[connID]
	if !ok {
		return
	}

	// A reconnect may already have rebound the player elsewhere.
	if p.connID == connID {
		p.connID = ""
	}
	delete(reg.byConn, connID)
}

// ConnOf returns the player's current connection ID, or "" if offline.
func (reg *Registry) ConnOf(p *Player) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return p.connID
}

// IsLogged reports whether some identity with this pseudo is registered,
// used to refuse a second concurrent login.
func (reg *Registry) IsLogged(pseudo string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, p := range reg.players {
		if p.Pseudo == pseudo {
			return true
		}
	}
	return false
}

func newID(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
