package gateway

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"slaphard/apps/server/internal/codec"
	"slaphard/apps/server/internal/metrics"
	"slaphard/apps/server/internal/room"
)

const (
	maxFrameBytes = 65536
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 256

	// Minimum gap between consecutive gameplay commands per socket.
	gameCommandMinGap = 40 * time.Millisecond
)

// Gateway owns the websocket endpoint: it upgrades connections, frames
// messages, rate-limits gameplay traffic and dispatches decoded commands
// to the hub.
type Gateway struct {
	hub      *room.Hub
	met      *metrics.Metrics
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Connection
}

func New(hub *room.Hub, met *metrics.Metrics, log zerolog.Logger) *Gateway {
	g := &Gateway{
		hub:   hub,
		met:   met,
		log:   log.With().Str("component", "gateway").Logger(),
		conns: make(map[string]*Connection),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(),
	}
	return g
}

// originChecker builds the Origin allow-list from CORS_ORIGINS. A "*"
// entry allows everything, but never in production.
func originChecker() func(*http.Request) bool {
	raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	production := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")
	allowAll := false
	allowed := make(map[string]bool)
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(o), "/"))
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(o)] = true
	}
	if allowAll && production {
		allowAll = false
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients carry no Origin.
			return true
		}
		if allowAll {
			return true
		}
		if len(allowed) == 0 && !production {
			return true
		}
		return allowed[strings.ToLower(strings.TrimSuffix(origin, "/"))]
	}
}

// Connection is one websocket client. It implements room.Conn.
type Connection struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	gateway *Gateway

	// readPump only.
	lastGameCmd time.Time
}

func (c *Connection) ID() string { return c.id }

// Send queues a frame without blocking; a full queue drops the frame and
// the client resyncs from the next snapshot.
func (c *Connection) Send(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// HandleWebSocket is the /ws endpoint.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &Connection{
		id:      uuid.NewString(),
		ws:      ws,
		send:    make(chan []byte, sendQueueSize),
		gateway: g,
	}
	g.mu.Lock()
	g.conns[c.id] = c
	total := len(g.conns)
	g.mu.Unlock()
	g.log.Info().Str("socket", c.id).Int("total", total).Msg("client connected")

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	g := c.gateway
	defer func() {
		g.dropConnection(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxFrameBytes)
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.Warn().Str("socket", c.id).Err(err).Msg("read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handleFrame(data)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) dropConnection(c *Connection) {
	g.mu.Lock()
	delete(g.conns, c.id)
	total := len(g.conns)
	g.mu.Unlock()
	g.hub.Disconnect(c)
	g.log.Info().Str("socket", c.id).Int("total", total).Msg("client disconnected")
}

func (c *Connection) handleFrame(data []byte) {
	g := c.gateway
	env, err := codec.DecodeClient(data)
	if err != nil {
		c.Send(codec.NewError(codec.CodeInternalError, "malformed frame"))
		return
	}
	if g.met != nil {
		g.met.Commands.WithLabelValues(env.Cmd).Inc()
	}

	if env.Cmd == codec.CmdGameFlip || env.Cmd == codec.CmdGameSlap {
		now := time.Now()
		if now.Sub(c.lastGameCmd) < gameCommandMinGap {
			c.sendCode(codec.CodeRateLimited, "slow down")
			return
		}
		c.lastGameCmd = now
	}

	switch env.Cmd {
	case codec.CmdPing:
		var p codec.PingPayload
		if err := env.DecodePayload(&p); err != nil {
			c.sendCode(codec.CodeInternalError, err.Error())
			return
		}
		c.Send(codec.NewPong(p.ClientTime))

	case codec.CmdRoomCreate:
		var p codec.CreateRoomPayload
		if !c.decodeAndValidate(env, &p) {
			return
		}
		g.hub.CreateRoom(c, p)

	case codec.CmdRoomJoin:
		var p codec.JoinRoomPayload
		if !c.decodeAndValidate(env, &p) {
			return
		}
		g.hub.JoinRoom(c, p)

	case codec.CmdRoomLeave:
		g.hub.LeaveRoom(c)

	case codec.CmdLobbyReady:
		var p codec.ReadyPayload
		if err := env.DecodePayload(&p); err != nil {
			c.sendCode(codec.CodeInternalError, err.Error())
			return
		}
		g.hub.SetReady(c, p)

	case codec.CmdLobbyKick:
		var p codec.KickPayload
		if !c.decodeAndValidate(env, &p) {
			return
		}
		g.hub.Kick(c, p)

	case codec.CmdLobbyStart:
		g.hub.StartGame(c)

	case codec.CmdGameStop:
		g.hub.StopGame(c)

	case codec.CmdGameFlip:
		var p codec.FlipPayload
		if !c.decodeAndValidate(env, &p) {
			return
		}
		g.hub.Flip(c, p)

	case codec.CmdGameSlap:
		var p codec.SlapPayload
		if !c.decodeAndValidate(env, &p) {
			return
		}
		g.hub.Slap(c, p)

	default:
		c.sendCode(codec.CodeInternalError, "unknown command "+env.Cmd)
	}
}

// validator is implemented by payloads that carry schema rules beyond
// their JSON shape.
type validator interface {
	Validate() error
}

func (c *Connection) decodeAndValidate(env *codec.ClientEnvelope, p validator) bool {
	if err := env.DecodePayload(p); err != nil {
		c.sendCode(codec.CodeInternalError, err.Error())
		return false
	}
	if err := p.Validate(); err != nil {
		if ve, ok := err.(*codec.ValidationError); ok {
			c.sendCode(ve.Code, ve.Message)
		} else {
			c.sendCode(codec.CodeInternalError, err.Error())
		}
		return false
	}
	return true
}

func (c *Connection) sendCode(code, msg string) {
	if c.gateway.met != nil {
		c.gateway.met.CommandErrors.WithLabelValues(code).Inc()
	}
	c.Send(codec.NewError(code, msg))
}
