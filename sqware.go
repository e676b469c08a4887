// Sqware: a two-player color-clicking duel.
//
// Two players are matched into a room. Both see the same board of colored
// squares and a target color; clicking a square matching the target scores
// 5 points, a mismatch costs 2, and every clicked square disappears for
// both players. Highest score when the countdown hits zero wins. If a
// player disconnects mid-round, the other wins by forfeit.
//
// Features:
// - FIFO matchmaking: joins always fill the newest room, or open a new one
// - One actor goroutine per running session (single writer per room)
// - Clicks validated against server-side shape state, never client fields
// - Accounts with per-player avatars and persistent best scores (sqlite)
// - Optional kafka publishing of finished-game results
// - In-browser QR button to share the game URL, backed by go-qrcode

package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type clientMessage struct {
	Type string `json:"type"` // "openRoom", "startCounter", "clickSqware"

	// clickSqware fields. Color, Class and Target are what the client
	// believes it clicked; the server re-derives all three from its own
	// shape table and only ever trusts the ID.
	SqwareID string `json:"id,omitempty"`
	Color    string `json:"color,omitempty"`
	Class    string `json:"class,omitempty"`
	Target   string `json:"target,omitempty"`
	Room     string `json:"room,omitempty"`
}

type roomRef struct {
	ID string `json:"id"`
}

type playerLabel struct {
	Pseudo string `json:"pseudo"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}

// Sent individually to each member, perspective-correct.
type playersLabelMessage struct {
	Type     string       `json:"type"` // "initPlayersLabel"
	Self     *playerLabel `json:"self"`
	Opponent *playerLabel `json:"opponent"`
}

type initGameMessage struct {
	Type        string   `json:"type"` // "initGame"
	Sqwares     []*Shape `json:"sqwares"`
	TargetColor string   `json:"targetColor"`
	Room        roomRef  `json:"room"`
}

type startGameMessage struct {
	Type string  `json:"type"` // "startGame"
	Room roomRef `json:"room"`
}

type counterMessage struct {
	Type    string `json:"type"` // "updateCounter"
	Counter int    `json:"counter"`
}

type deleteSqwareMessage struct {
	Type     string  `json:"type"` // "deleteSqware"
	SqwareID string  `json:"id"`
	Room     roomRef `json:"room"`
}

// Perspective-correct per recipient.
type scoresMessage struct {
	Type     string `json:"type"` // "game.updateScores"
	Self     int    `json:"self"`
	Opponent int    `json:"opponent"`
}

// Terminal broadcast. On forfeit only Winner and the flag are set.
type endGameMessage struct {
	Type    string       `json:"type"` // "endGame"
	Winner  *playerLabel `json:"winner"`
	Looser  *playerLabel `json:"looser"`
	Forfeit bool         `json:"forfeit"`
}

func (m endGameMessage) winnerPseudo() string {
	if m.Winner == nil {
		return ""
	}
	return m.Winner.Pseudo
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
}

// Gateway translates the websocket event protocol into registry, pool and
// session calls, and fans session broadcasts back out to exactly the two
// member connections.
type Gateway struct {
	cfg     *Config
	reg     *Registry
	pool    *Pool
	store   *Store
	results *resultPublisher

	mu    sync.Mutex
	conns map[string]*Client
}

func newGateway(cfg *Config, reg *Registry, store *Store, results *resultPublisher) *Gateway {
	gw := &Gateway{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		results: results,
		conns:   make(map[string]*Client),
	}
	gw.pool = newPool(gw.onRoomFull)

	return gw
}

func (gw *Gateway) onRoomFull(room *Room) {
	startSession(gw.cfg, room, gw, gw.pool, gw.store, gw.results)
}

// toPlayer implements sender. Slow consumers are disconnected rather than
// allowed to block a session.
func (gw *Gateway) toPlayer(p *Player, msg any) {
	connID := gw.reg.ConnOf(p)
	if connID == "" {
		return
	}

	gw.mu.Lock()
	c, ok := gw.conns[connID]
	if !ok {
		gw.mu.Unlock()
		return
	}

	select {
	case c.send <- msg:
		gw.mu.Unlock()
	default:
		delete(gw.conns, connID)
		gw.mu.Unlock()
		close(c.send)
	}
}

func (gw *Gateway) addConn(c *Client) {
	gw.mu.Lock()
	gw.conns[c.connID] = c
	gw.mu.Unlock()
}

func (gw *Gateway) removeConn(connID string) {
	gw.mu.Lock()
	c, ok := gw.conns[connID]
	if ok {
		delete(gw.conns, connID)
	}
	gw.mu.Unlock()

	if ok {
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (gw *Gateway) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity := sessionIdentity(r)
		if identity == "" {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}

		connID := newID(16)
		if err := gw.reg.Attach(identity, connID); err != nil {
			http.Error(w, "unknown identity", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 8),
			connID: connID,
		}
		gw.addConn(client)

		go client.writePump()
		client.readPump(gw)
	}
}

func (c *Client) readPump(gw *Gateway) {
	defer func() {
		gw.disconnect(c.connID)
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "openRoom":
			gw.handleOpenRoom(c.connID)
		case "startCounter":
			gw.handleStartCounter(c.connID)
		case "clickSqware":
			gw.handleClick(c.connID, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (gw *Gateway) handleOpenRoom(connID string) {
	p, err := gw.reg.Resolve(connID)
	if err != nil {
		return
	}

	room, err := gw.pool.JoinOrCreate(p)
	if err != nil {
		logf(gw.cfg, "ERROR: Join for %q: %v", p.Pseudo, err)
		return
	}

	logf(gw.cfg, "GAMES: Player %q joined room %s (%d/2)", p.Pseudo, room.ID, len(room.Players))
}

func (gw *Gateway) handleStartCounter(connID string) {
	p, err := gw.reg.Resolve(connID)
	if err != nil {
		return
	}

	if s := gw.activeSession(connID, ""); s != nil {
		s.StartCounter(p.ID)
	}
}

func (gw *Gateway) handleClick(connID string, msg clientMessage) {
	p, err := gw.reg.Resolve(connID)
	if err != nil {
		return
	}

	s := gw.activeSession(connID, msg.Room)
	if s == nil {
		return
	}

	s.Click(p.ID, msg.SqwareID)
}

// activeSession returns the running session for the connection's room.
// Events naming a room the sender is not a member of are dropped here.
func (gw *Gateway) activeSession(connID, claimedRoom string) *Session {
	p, err := gw.reg.Resolve(connID)
	if err != nil {
		return nil
	}

	roomID := gw.pool.RoomOf(p)
	if roomID == "" {
		return nil
	}

	if claimedRoom != "" && claimedRoom != roomID {
		logf(gw.cfg, "GAMES: Dropped event from %q for foreign room %s", p.Pseudo, claimedRoom)
		return nil
	}

	return gw.pool.ActiveSession(roomID)
}

// disconnect tears a connection down. The room and session are notified
// before the registry binding is cleared, so forfeit handling can still
// resolve the player.
func (gw *Gateway) disconnect(connID string) {
	p, err := gw.reg.Resolve(connID)
	if err == nil {
		if roomID := gw.pool.RoomOf(p); roomID != "" {
			if s := gw.pool.ActiveSession(roomID); s != nil {
				s.Drop(p.ID)
			} else if room := gw.pool.Get(roomID); room != nil {
				gw.pool.Leave(room, p)
			}
		}
	}

	gw.reg.Detach(connID)
	gw.removeConn(connID)

	if err == nil {
		logf(gw.cfg, "GAMES: Player %q disconnected", p.Pseudo)
	}
}

// QR handler: generates a PNG QR code for the game URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the game URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (gw *Gateway) serveBestScores() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scores, err := gw.store.TopScores(10)
		if err != nil {
			http.Error(w, "unable to load scores", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(scores)
	}
}

// registerSqwareGame sets up routes so that:
//   - $path            → HTML client
//   - $path/ws         → the game websocket
//   - $path/qr         → PNG QR code for the game URL
//   - $path/scores     → best-scores JSON
func registerSqwareGame(cfg *Config, path string, mux *httprouter.Router, gw *Gateway) {
	mux.GET(cfg.prefix+path, getIndexHandler(cfg))

	mux.GET(cfg.prefix+"/assets/sqware/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/sqware/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+path+"/ws", gw.serveWS())

	mux.GET(cfg.prefix+path+"/qr", qrHandler)

	mux.GET(cfg.prefix+path+"/scores", gw.serveBestScores())
}

// sessionIdentity extracts the logged-in identity from the session cookie
// set at login/signup.
func sessionIdentity(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	return c.Value
}
