package chat

import (
	"encoding/json"
	"errors"
	"testing"

	errs "SupportChat/tools/errs"

	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	req := require.New(t)

	f, err := ParseFrame([]byte(`{"type":"send","conversation_id":"conv-1","body":"hi"}`))
	req.NoError(err)
	req.Equal(FrameSend, f.Type)
	req.Equal("conv-1", f.ConversationID)
	req.Equal("hi", f.Body)

	_, err = ParseFrame([]byte(`{"conversation_id":"conv-1"}`))
	req.Error(err, "frames without a type are rejected")

	_, err = ParseFrame([]byte(`not json`))
	req.Error(err)
}

func TestExtractConnectPayload(t *testing.T) {
	req := require.New(t)

	f, err := ParseFrame([]byte(`{
		"type": "connect",
		"payload": {
			"identity": "alice",
			"role": "end-user",
			"session_token": "tok-1",
			"manual_login": true,
			"meta": {"ua": "firefox"}
		}
	}`))
	req.NoError(err)

	p, err := ExtractConnectPayload(f)
	req.NoError(err)
	req.Equal("alice", p.Identity)
	req.Equal(RoleUser, ParseRole(p.Role))
	req.Equal("tok-1", p.SessionToken)
	req.True(p.ManualLogin)
	req.Equal("firefox", p.Meta["ua"])

	_, err = ExtractConnectPayload(&Frame{Type: FrameConnect})
	req.Error(err, "missing payload")

	_, err = ExtractConnectPayload(&Frame{Type: FrameConnect, Payload: map[string]any{"role": "staff"}})
	req.Error(err, "missing identity")
}

func TestParseRole(t *testing.T) {
	req := require.New(t)
	req.Equal(RoleStaff, ParseRole("staff"))
	req.Equal(RoleStaff, ParseRole("admin"))
	req.Equal(RoleUser, ParseRole("end-user"))
	req.Equal(RoleUser, ParseRole(""))
	req.Equal(RoleUser, ParseRole("whatever"))
}

func TestBuildError(t *testing.T) {
	req := require.New(t)

	f := BuildError("conv-1", errs.ErrConversationClosed.WithDetail("conv-1"))
	req.Equal(FrameError, f.Type)
	req.Equal("conv-1", f.ConversationID)
	req.Equal(errs.ErrConversationClosed.Code, f.Error.Code)

	// errors without a code surface as internal
	f = BuildError("", errors.New("boom"))
	req.Equal(errs.ErrInternal.Code, f.Error.Code)
	req.Contains(f.Error.Detail, "boom")
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	req := require.New(t)

	out := EncodeFrame(BuildConnectAck("conn-1", "conn-0"))

	var m map[string]any
	req.NoError(json.Unmarshal(out, &m))
	req.Equal(string(FrameConnectAck), m["type"])
	req.Equal("conn-1", m["conn_id"])
	req.Equal("conn-0", m["superseded"])
	req.NotZero(m["ts"])
}
