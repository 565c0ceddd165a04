package gateway

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"slaphard/apps/server/internal/codec"
	"slaphard/apps/server/internal/journal"
	"slaphard/apps/server/internal/room"
)

func testGateway() *Gateway {
	hub := room.NewHub(room.NewMemoryStore(), journal.NewNoopService(), nil, zerolog.Nop())
	return New(hub, nil, zerolog.Nop())
}

func testConn(g *Gateway) *Connection {
	return &Connection{
		id:      "test-socket",
		send:    make(chan []byte, sendQueueSize),
		gateway: g,
	}
}

func drainEvents(t *testing.T, c *Connection) []string {
	t.Helper()
	var out []string
	for {
		select {
		case data := <-c.send:
			var env codec.ServerEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out = append(out, env.Event)
		default:
			return out
		}
	}
}

func lastErrorCode(t *testing.T, c *Connection) string {
	t.Helper()
	code := ""
	for {
		select {
		case data := <-c.send:
			var env struct {
				Event   string             `json:"event"`
				Payload codec.ErrorPayload `json:"payload"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if env.Event == codec.EvtError {
				code = env.Payload.Code
			}
		default:
			return code
		}
	}
}

func frame(t *testing.T, cmd string, payload any) []byte {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = data
	}
	data, err := json.Marshal(codec.ClientEnvelope{Cmd: cmd, Payload: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestPingAnswersPong(t *testing.T) {
	g := testGateway()
	c := testConn(g)
	c.handleFrame(frame(t, codec.CmdPing, codec.PingPayload{ClientTime: 123}))

	select {
	case data := <-c.send:
		var env struct {
			Event   string            `json:"event"`
			Payload codec.PongPayload `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Event != codec.EvtPong || env.Payload.ClientTimeEcho != 123 {
			t.Fatalf("pong = %+v", env)
		}
	default:
		t.Fatal("no pong sent")
	}
}

func TestMalformedFrameRejected(t *testing.T) {
	g := testGateway()
	c := testConn(g)
	c.handleFrame([]byte("{not json"))
	if code := lastErrorCode(t, c); code != codec.CodeInternalError {
		t.Fatalf("error = %q, want INTERNAL_ERROR", code)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	g := testGateway()
	c := testConn(g)
	c.handleFrame(frame(t, "game.cheat", nil))
	if code := lastErrorCode(t, c); code != codec.CodeInternalError {
		t.Fatalf("error = %q, want INTERNAL_ERROR", code)
	}
}

func TestGameCommandRateLimit(t *testing.T) {
	g := testGateway()
	c := testConn(g)
	payload := codec.FlipPayload{ClientSeq: 1, ClientTime: time.Now().UnixMilli()}

	c.handleFrame(frame(t, codec.CmdGameFlip, payload))
	drainEvents(t, c)

	c.handleFrame(frame(t, codec.CmdGameFlip, payload))
	if code := lastErrorCode(t, c); code != codec.CodeRateLimited {
		t.Fatalf("error = %q, want RATE_LIMITED", code)
	}
}

func TestRateLimitSparesLobbyCommands(t *testing.T) {
	g := testGateway()
	c := testConn(g)

	c.handleFrame(frame(t, codec.CmdGameFlip, codec.FlipPayload{ClientSeq: 1}))
	drainEvents(t, c)

	// Immediately after a flip, non-gameplay traffic still flows.
	c.handleFrame(frame(t, codec.CmdPing, codec.PingPayload{ClientTime: 1}))
	evts := drainEvents(t, c)
	if len(evts) != 1 || evts[0] != codec.EvtPong {
		t.Fatalf("events = %v, want [pong]", evts)
	}
}

func TestValidationErrorsCarryWireCodes(t *testing.T) {
	g := testGateway()
	c := testConn(g)

	c.handleFrame(frame(t, codec.CmdRoomCreate, codec.CreateRoomPayload{DisplayName: "x"}))
	if code := lastErrorCode(t, c); code != codec.CodeInvalidName {
		t.Fatalf("short name = %q, want INVALID_NAME", code)
	}

	c.handleFrame(frame(t, codec.CmdRoomJoin, codec.JoinRoomPayload{RoomCode: "abc", DisplayName: "Alice"}))
	if code := lastErrorCode(t, c); code != codec.CodeRoomNotFound {
		t.Fatalf("bad code = %q, want ROOM_NOT_FOUND", code)
	}
}

func TestCreateRoomRoundTrip(t *testing.T) {
	g := testGateway()
	c := testConn(g)
	c.handleFrame(frame(t, codec.CmdRoomCreate, codec.CreateRoomPayload{DisplayName: "Alice"}))
	evts := drainEvents(t, c)
	if len(evts) != 1 || evts[0] != codec.EvtRoomState {
		t.Fatalf("events = %v, want [room.state]", evts)
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	t.Run("allow list", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "https://slaphard.example, https://staging.example")
		t.Setenv("APP_ENV", "production")
		check := originChecker()
		if !check(req("https://slaphard.example")) {
			t.Fatal("listed origin rejected")
		}
		if !check(req("HTTPS://SLAPHARD.EXAMPLE")) {
			t.Fatal("origin match must be case-insensitive")
		}
		if check(req("https://evil.example")) {
			t.Fatal("unlisted origin allowed")
		}
		if !check(req("")) {
			t.Fatal("non-browser client rejected")
		}
	})

	t.Run("wildcard outside production", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "*")
		t.Setenv("APP_ENV", "development")
		if !originChecker()(req("https://anything.example")) {
			t.Fatal("wildcard ignored in development")
		}
	})

	t.Run("wildcard refused in production", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "*")
		t.Setenv("APP_ENV", "production")
		if originChecker()(req("https://anything.example")) {
			t.Fatal("wildcard honored in production")
		}
	})

	t.Run("empty list in development allows all", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "")
		t.Setenv("APP_ENV", "development")
		if !originChecker()(req("http://localhost:5173")) {
			t.Fatal("dev default rejected localhost")
		}
	})
}
