package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlayer(n int) *Player {
	return &Player{ID: fmt.Sprintf("id-%03d", n), Pseudo: fmt.Sprintf("player-%03d", n)}
}

func TestJoinOrCreateFillsNewest(t *testing.T) {
	var fullCount atomic.Int32
	pool := newPool(func(r *Room) {
		fullCount.Add(1)
	})

	p1, p2, p3, p4 := testPlayer(1), testPlayer(2), testPlayer(3), testPlayer(4)

	room1, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)
	assert.Equal(t, roomOpen, room1.State)
	assert.Len(t, room1.Players, 1)
	assert.Equal(t, room1.ID, pool.RoomOf(p1))

	room2, err := pool.JoinOrCreate(p2)
	require.NoError(t, err)
	assert.Equal(t, room1.ID, room2.ID, "second join fills the open room")
	assert.Equal(t, int32(1), fullCount.Load(), "onRoomFull fires on the 1→2 transition")

	room3, err := pool.JoinOrCreate(p3)
	require.NoError(t, err)
	assert.NotEqual(t, room1.ID, room3.ID, "a full newest room forces a new one")
	assert.Len(t, room3.Players, 1)

	room4, err := pool.JoinOrCreate(p4)
	require.NoError(t, err)
	assert.Equal(t, room3.ID, room4.ID)
	assert.Equal(t, int32(2), fullCount.Load())
}

func TestJoinOrCreateIsIdempotentPerPlayer(t *testing.T) {
	pool := newPool(nil)
	p1 := testPlayer(1)

	room, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)

	again, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID, "a player already in a room stays there")
	assert.Len(t, room.Players, 1)
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	const players = 100

	var fullCount atomic.Int32
	pool := newPool(func(r *Room) {
		fullCount.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := pool.JoinOrCreate(testPlayer(n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	pool.mu.Lock()
	defer pool.mu.Unlock()

	seated := 0
	for _, room := range pool.rooms {
		assert.LessOrEqual(t, len(room.Players), 2, "no room may ever exceed two members")
		seated += len(room.Players)
	}
	assert.Equal(t, players, seated)
	assert.Equal(t, int32(players/2), fullCount.Load())
}

func TestFinishReleasesMembers(t *testing.T) {
	pool := newPool(nil)
	p1, p2 := testPlayer(1), testPlayer(2)

	room, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)
	_, err = pool.JoinOrCreate(p2)
	require.NoError(t, err)

	pool.Finish(room)

	assert.Equal(t, roomFinished, room.State)
	assert.Empty(t, pool.RoomOf(p1))
	assert.Empty(t, pool.RoomOf(p2))

	// Both players can be rematched into a fresh room.
	next, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)
	assert.NotEqual(t, room.ID, next.ID)
}

func TestLeaveOpenRoom(t *testing.T) {
	pool := newPool(nil)
	p1 := testPlayer(1)

	room, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)

	pool.Leave(room, p1)

	assert.Empty(t, pool.RoomOf(p1))
	assert.Equal(t, roomFinished, room.State, "an emptied room is terminal")
}

func TestReap(t *testing.T) {
	pool := newPool(nil)

	p1, p2, p3 := testPlayer(1), testPlayer(2), testPlayer(3)

	finished, err := pool.JoinOrCreate(p1)
	require.NoError(t, err)
	_, err = pool.JoinOrCreate(p2)
	require.NoError(t, err)
	pool.Finish(finished)

	waiting, err := pool.JoinOrCreate(p3)
	require.NoError(t, err)

	reaped := pool.reap(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, reaped, "only the finished room is reaped")

	assert.Nil(t, pool.Get(finished.ID))
	assert.NotNil(t, pool.Get(waiting.ID), "the newest open room is the live join target")
	assert.Equal(t, waiting.ID, pool.RoomOf(p3))
}
