package codec

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeClient(t *testing.T) {
	env, err := DecodeClient([]byte(`{"cmd":"room.join","payload":{"roomCode":"abc234","displayName":" Ada "}}`))
	if err != nil {
		t.Fatalf("DecodeClient: %v", err)
	}
	if env.Cmd != CmdRoomJoin {
		t.Fatalf("cmd = %q", env.Cmd)
	}
	var p JoinRoomPayload
	if err := env.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.RoomCode != "ABC234" {
		t.Fatalf("roomCode = %q, want upcased ABC234", p.RoomCode)
	}
	if p.DisplayName != "Ada" {
		t.Fatalf("displayName = %q, want trimmed Ada", p.DisplayName)
	}
}

func TestDecodeClientRejectsGarbage(t *testing.T) {
	if _, err := DecodeClient([]byte("not json")); err == nil {
		t.Fatalf("accepted non-json frame")
	}
	if _, err := DecodeClient([]byte(`{"payload":{}}`)); err == nil {
		t.Fatalf("accepted frame without cmd")
	}
}

func TestDisplayNameValidation(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"Ada", true},
		{"  padded name  ", true},
		{"x", false},
		{"", false},
		{strings.Repeat("n", 25), false},
		{strings.Repeat("n", 24), true},
	}
	for _, tc := range cases {
		_, err := NormalizeDisplayName(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("NormalizeDisplayName(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
		}
	}
}

func TestRoomCodeValidation(t *testing.T) {
	if _, err := NormalizeRoomCode("AB10CD"); err == nil {
		t.Fatalf("accepted ambiguous characters 1 and 0")
	}
	if _, err := NormalizeRoomCode("ABC"); err == nil {
		t.Fatalf("accepted short code")
	}
	code, err := NormalizeRoomCode("abc234")
	if err != nil || code != "ABC234" {
		t.Fatalf("code=%q err=%v", code, err)
	}
}

func TestSlapPayloadValidation(t *testing.T) {
	p := SlapPayload{EventID: "slap-00000001", Gesture: "GORILLA"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.GestureCard().String() != "GORILLA" {
		t.Fatalf("gesture = %v", p.GestureCard())
	}

	bad := SlapPayload{EventID: "slap-00000001", Gesture: "TACO"}
	err := bad.Validate()
	if err == nil {
		t.Fatalf("accepted normal card as gesture")
	}
	// A malformed gesture is a schema violation, not an eventId problem.
	if ve, ok := err.(*ValidationError); !ok || ve.Code != CodeInternalError {
		t.Fatalf("gesture err = %v, want INTERNAL_ERROR", err)
	}
	missing := SlapPayload{}
	err = missing.Validate()
	if err == nil {
		t.Fatalf("accepted empty eventId")
	}
	if ve, ok := err.(*ValidationError); !ok || ve.Code != CodeInvalidEventID {
		t.Fatalf("err = %v, want INVALID_EVENT_ID", err)
	}
}

func TestEncodeEnvelope(t *testing.T) {
	data := NewError(CodeRateLimited, "slow down")
	var env struct {
		Event      string       `json:"event"`
		ServerTsMs int64        `json:"serverTsMs"`
		Payload    ErrorPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EvtError || env.Payload.Code != CodeRateLimited {
		t.Fatalf("envelope = %+v", env)
	}
	if env.ServerTsMs == 0 {
		t.Fatalf("serverTsMs missing")
	}
}

func TestPongEchoesClientTime(t *testing.T) {
	data := NewPong(12345)
	var env struct {
		Event   string      `json:"event"`
		Payload PongPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EvtPong || env.Payload.ClientTimeEcho != 12345 {
		t.Fatalf("pong = %+v", env)
	}
}
