/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"fmt"
	"time"
)

const (
	sessionActive   = "active"
	sessionFinished = "finished"

	shapeCount = 24

	matchGain    = 5
	mismatchLoss = 2
)

var palette = []string{
	"#ff0000", "#00ff00", "#0000ff", "#ffff00",
	"#ff00ff", "#00ffff", "#ff8800", "#8800ff",
}

// Shape is one clickable square. The styling fields are sent verbatim to
// the client; clickability and color checks always use the server copy.
type Shape struct {
	ID       string `json:"id"`
	Color    string `json:"color"`
	Position string `json:"position"`
	Width    string `json:"width"`
	Top      string `json:"top"`
	Left     string `json:"left"`
	Rotate   string `json:"rotate"`
	Border   string `json:"border"`

	clickable bool
}

// sender delivers a message to a player's current connection, dropping it
// if the player is offline.
type sender interface {
	toPlayer(p *Player, msg any)
}

type clickRequest struct {
	playerID string
	shapeID  string
}

// Session is the per-room authority for shapes, target color, scores and
// the countdown. One actor goroutine owns all of its state: clicks, ticks
// and disconnects arrive as requests on its channels, which makes
// at-most-once shape removal structural rather than incidental.
type Session struct {
	cfg     *Config
	room    *Room
	out     sender
	pool    *Pool
	store   *Store
	results *resultPublisher

	state       string
	target      string
	shapes      map[string]*Shape
	order       []*Shape
	scores      map[string]int // player ID -> round score
	secondsLeft int

	clicks chan clickRequest
	starts chan string
	drops  chan string
	ticker *time.Ticker
	tick   <-chan time.Time // nil until the counter starts

	done chan struct{}
}

// startSession generates the round, broadcasts the synchronized start
// state to both members and launches the session actor. Called exactly
// once, from the pool's onRoomFull hook.
func startSession(cfg *Config, room *Room, out sender, pool *Pool, store *Store, results *resultPublisher) *Session {
	s := &Session{
		cfg:     cfg,
		room:    room,
		out:     out,
		pool:    pool,
		store:   store,
		results: results,
		state:   sessionActive,
		scores:  make(map[string]int, 2),
		clicks:  make(chan clickRequest, 32),
		starts:  make(chan string, 4),
		drops:   make(chan string, 2),
		done:    make(chan struct{}),
	}

	s.generateRound()
	s.secondsLeft = int(cfg.countdown / time.Second)

	for _, p := range room.Players {
		s.scores[p.ID] = 0
	}

	pool.Activate(room, s)

	one, two := room.Players[0], room.Players[1]
	out.toPlayer(one, playersLabelMessage{Type: "initPlayersLabel", Self: s.label(one), Opponent: s.label(two)})
	out.toPlayer(two, playersLabelMessage{Type: "initPlayersLabel", Self: s.label(two), Opponent: s.label(one)})

	s.broadcast(initGameMessage{
		Type:        "initGame",
		Sqwares:     s.order,
		TargetColor: s.target,
		Room:        roomRef{ID: room.ID},
	})
	s.broadcast(startGameMessage{Type: "startGame", Room: roomRef{ID: room.ID}})

	logf(cfg, "GAMES: Room %s started (%s vs %s, target %s)", room.ID, one.Pseudo, two.Pseudo, s.target)

	go s.run()

	return s
}

// Click queues a click for resolution. No-op once the session finished.
func (s *Session) Click(playerID, shapeID string) {
	select {
	case s.clicks <- clickRequest{playerID: playerID, shapeID: shapeID}:
	case <-s.done:
	}
}

// StartCounter queues a countdown start request. Both clients send one;
// only the first has any effect.
func (s *Session) StartCounter(playerID string) {
	select {
	case s.starts <- playerID:
	case <-s.done:
	}
}

// Drop reports that a member's connection is gone.
func (s *Session) Drop(playerID string) {
	select {
	case s.drops <- playerID:
	case <-s.done:
	}
}

// Done is closed once the session has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run() {
	defer func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
	}()

	for {
		select {
		case req := <-s.clicks:
			s.handleClick(req)
		case <-s.starts:
			s.startCounter()
		case playerID := <-s.drops:
			s.handleDrop(playerID)
		case <-s.tick:
			s.handleTick()
		}

		if s.state == sessionFinished {
			return
		}
	}
}

func (s *Session) startCounter() {
	if s.tick != nil {
		return
	}

	s.ticker = time.NewTicker(time.Second)
	s.tick = s.ticker.C

	s.broadcast(counterMessage{Type: "updateCounter", Counter: s.secondsLeft})
}

func (s *Session) handleTick() {
	s.secondsLeft--
	s.broadcast(counterMessage{Type: "updateCounter", Counter: s.secondsLeft})

	if s.secondsLeft <= 0 {
		s.finish(false, nil)
	}
}

// handleClick resolves one click. Failures are absorbed: no score change,
// no removal, no broadcast.
func (s *Session) handleClick(req clickRequest) {
	if err := s.resolveClick(req); err != nil {
		logf(s.cfg, "GAMES: Dropped click in room %s: %v", s.room.ID, err)
	}
}

// resolveClick removes the shape and applies the score in one step, so no
// concurrent click can re-score the same shape.
func (s *Session) resolveClick(req clickRequest) error {
	if s.state != sessionActive {
		return errSessionNotActive
	}

	if _, ok := s.scores[req.playerID]; !ok {
		return errNotAMember
	}

	shape, ok := s.shapes[req.shapeID]
	if !ok || !shape.clickable {
		return errUnknownShape
	}

	delete(s.shapes, req.shapeID)

	if shape.Color == s.target {
		s.scores[req.playerID] += matchGain
	} else {
		s.scores[req.playerID] -= mismatchLoss
	}

	s.broadcast(deleteSqwareMessage{
		Type:     "deleteSqware",
		SqwareID: shape.ID,
		Room:     roomRef{ID: s.room.ID},
	})

	one, two := s.room.Players[0], s.room.Players[1]
	s.out.toPlayer(one, scoresMessage{Type: "game.updateScores", Self: s.scores[one.ID], Opponent: s.scores[two.ID]})
	s.out.toPlayer(two, scoresMessage{Type: "game.updateScores", Self: s.scores[two.ID], Opponent: s.scores[one.ID]})

	return nil
}

func (s *Session) handleDrop(playerID string) {
	if s.state != sessionActive {
		return
	}

	if _, ok := s.scores[playerID]; !ok {
		return
	}

	var survivor *Player
	for _, p := range s.room.Players {
		if p.ID != playerID {
			survivor = p
		}
	}

	s.finish(true, survivor)
}

// finish runs the single Active → Finished transition: the ticker stops,
// remaining shapes are discarded, the outcome goes out, and the room is
// released back to the pool.
func (s *Session) finish(forfeit bool, survivor *Player) {
	s.state = sessionFinished

	if s.ticker != nil {
		s.ticker.Stop()
		s.tick = nil
	}
	s.shapes = nil

	one, two := s.room.Players[0], s.room.Players[1]

	end := endGameMessage{Type: "endGame", Forfeit: forfeit}
	if forfeit {
		if survivor != nil {
			end.Winner = s.label(survivor)
		}
	} else {
		winner, looser := one, two
		if s.scores[two.ID] > s.scores[one.ID] {
			winner, looser = two, one
		}
		end.Winner = s.label(winner)
		end.Looser = s.label(looser)

		s.recordBestScores()
	}

	s.broadcast(end)
	s.pool.Finish(s.room)

	if s.results != nil {
		s.results.publish(gameResult{
			RoomID:     s.room.ID,
			Players:    []string{one.Pseudo, two.Pseudo},
			Scores:     []int{s.scores[one.ID], s.scores[two.ID]},
			Forfeit:    forfeit,
			Winner:     end.winnerPseudo(),
			FinishedAt: time.Now().UTC(),
		})
	}

	logf(s.cfg, "GAMES: Room %s finished (forfeit: %t, %s %d - %s %d)",
		s.room.ID, forfeit, one.Pseudo, s.scores[one.ID], two.Pseudo, s.scores[two.ID])

	close(s.done)
}

func (s *Session) recordBestScores() {
	if s.store == nil {
		return
	}

	for _, p := range s.room.Players {
		score := s.scores[p.ID]
		if score <= p.BestScore {
			continue
		}
		p.BestScore = score
		if err := s.store.UpdateBestScore(p.Pseudo, score); err != nil {
			logf(s.cfg, "ERROR: Recording best score for %q: %v", p.Pseudo, err)
		}
	}
}

// Score returns a player's current round score. Only meaningful once the
// session has finished; live scores belong to the actor goroutine.
func (s *Session) Score(p *Player) int {
	return s.scores[p.ID]
}

func (s *Session) broadcast(msg any) {
	for _, p := range s.room.Players {
		s.out.toPlayer(p, msg)
	}
}

func (s *Session) label(p *Player) *playerLabel {
	return &playerLabel{
		Pseudo: p.Pseudo,
		Avatar: p.Avatar,
		Score:  s.scores[p.ID],
	}
}

// generateRound picks the target color and lays out the round's shapes.
// At least one shape always matches the target.
func (s *Session) generateRound() {
	s.target = palette[randInt(len(palette))]
	s.shapes = make(map[string]*Shape, shapeCount)
	s.order = make([]*Shape, 0, shapeCount)

	round := newID(3)
	matched := false

	for i := 0; i < shapeCount; i++ {
		color := palette[randInt(len(palette))]
		if color == s.target {
			matched = true
		}

		shape := &Shape{
			ID:        fmt.Sprintf("sqware-%s-%d", round, i),
			Color:     color,
			Position:  "absolute",
			Width:     fmt.Sprintf("%dpx", 40+randInt(50)),
			Top:       fmt.Sprintf("%d%%", randInt(90)),
			Left:      fmt.Sprintf("%d%%", randInt(90)),
			Rotate:    fmt.Sprintf("%ddeg", randInt(360)),
			Border:    "1px solid #222",
			clickable: true,
		}

		s.shapes[shape.ID] = shape
		s.order = append(s.order, shape)
	}

	if !matched {
		s.order[randInt(len(s.order))].Color = s.target
	}
}

func randInt(max int) int {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		return int(time.Now().UnixNano()) % max
	}
	return int(b[0]) % max
}
