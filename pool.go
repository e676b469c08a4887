package main

import (
	"sync"
	"time"
)

const (
	roomOpen     = "open"     // 0 or 1 players
	roomFull     = "full"     // 2 players, session not started yet
	roomActive   = "active"   // session running
	roomFinished = "finished" // terminal, accepts no further events
)

// Room pairs exactly two players and owns their session once full.
type Room struct {
	ID        string
	Players   []*Player // join order, at most 2
	State     string
	CreatedAt time.Time

	session *Session
}

// Pool holds every room in creation order. Matchmaking only ever looks at
// the newest room: join it if it still has space, otherwise open a new
// one. Older under-filled rooms are never revisited.
type Pool struct {
	mu     sync.Mutex
	rooms  []*Room
	byID   map[string]*Room
	onFull func(*Room)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newPool(onFull func(*Room)) *Pool {
	return &Pool{
		byID:   make(map[string]*Room),
		onFull: onFull,
		stopCh: make(chan struct{}),
	}
}

// JoinOrCreate assigns a player to a room. The whole decision runs under
// one mutex so two simultaneous joiners cannot both fill the same slot or
// both open a "newest" room.
func (pl *Pool) JoinOrCreate(p *Player) (*Room, error) {
	pl.mu.Lock()

	if p.roomID != "" {
		if existing, ok := pl.byID[p.roomID]; ok && existing.State != roomFinished {
			pl.mu.Unlock()
			return existing, nil
		}
		p.roomID = ""
	}

	var room *Room

	if n := len(pl.rooms); n > 0 {
		last := pl.rooms[n-1]
		if last.State == roomOpen && len(last.Players) < 2 {
			room = last
		}
	}

	if room == nil {
		room = &Room{
			ID:        newID(8),
			State:     roomOpen,
			CreatedAt: time.Now(),
		}
		pl.rooms = append(pl.rooms, room)
		pl.byID[room.ID] = room
	}

	if len(room.Players) >= 2 {
		// Unreachable while joins stay serialized; fatal to this
		// request only.
		pl.mu.Unlock()
		return nil, errRoomFull
	}

	room.Players = append(room.Players, p)
	p.roomID = room.ID

	full := len(room.Players) == 2
	if full {
		room.State = roomFull
	}

	pl.mu.Unlock()

	// Fired exactly once, on the 1→2 transition. The room is no longer
	// the join target, so running the callback outside the lock is safe.
	if full && pl.onFull != nil {
		pl.onFull(room)
	}

	return room, nil
}

// Get returns a room by ID, or nil.
func (pl *Pool) Get(roomID string) *Room {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.byID[roomID]
}

// RoomOf returns the ID of the room the player currently occupies.
func (pl *Pool) RoomOf(p *Player) string {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return p.roomID
}

// Activate records the room's running session.
func (pl *Pool) Activate(room *Room, s *Session) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	room.session = s
	room.State = roomActive
}

// ActiveSession returns the running session for a room, or nil if the
// room is unknown or not active.
func (pl *Pool) ActiveSession(roomID string) *Session {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	room, ok := pl.byID[roomID]
	if !ok || room.State != roomActive {
		return nil
	}
	return room.session
}

// Finish marks a room terminal and releases its members for rematching.
func (pl *Pool) Finish(room *Room) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	room.State = roomFinished
	for _, p := range room.Players {
		if p.roomID == room.ID {
			p.roomID = ""
		}
	}
}

// Leave removes a player from a room that has not started yet, so a
// half-filled room does not trap its remaining slot on disconnect.
func (pl *Pool) Leave(room *Room, p *Player) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if room.State != roomOpen {
		return
	}

	dst := room.Players[:0]
	for _, member := range room.Players {
		if member == p {
			continue
		}
		dst = append(dst, member)
	}
	room.Players = dst

	if p.roomID == room.ID {
		p.roomID = ""
	}
	if len(room.Players) == 0 {
		room.State = roomFinished
	}
}

// StartReaper periodically drops finished rooms, plus open rooms nobody
// has joined within the idle timeout.
func (pl *Pool) StartReaper(cfg *Config) {
	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()

		ticker := time.NewTicker(cfg.sessionTimeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reaped := pl.reap(time.Now().Add(-cfg.sessionTimeout))
				if reaped > 0 {
					logf(cfg, "GAMES: Reaped %d finished rooms", reaped)
				}
			case <-pl.stopCh:
				return
			}
		}
	}()
}

func (pl *Pool) reap(cutoff time.Time) int {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	dst := pl.rooms[:0]
	reaped := 0

	for i, room := range pl.rooms {
		// The newest open room is the live join target; only older
		// ones (orphaned by a race or a disconnect) are stale.
		newest := i == len(pl.rooms)-1
		stale := room.State == roomOpen && !newest && room.CreatedAt.Before(cutoff)

		if room.State == roomFinished || stale {
			for _, p := range room.Players {
				if p.roomID == room.ID {
					p.roomID = ""
				}
			}
			delete(pl.byID, room.ID)
			reaped++
			continue
		}
		dst = append(dst, room)
	}
	pl.rooms = dst

	return reaped
}

// Stop halts the reaper.
func (pl *Pool) Stop() {
	close(pl.stopCh)
	pl.wg.Wait()
}
