package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SupportChat/module/support/model"
	"SupportChat/tools/decode"
	errs "SupportChat/tools/errs"
)

// JSON wire frames. The engine never touches these; only the
// transport files in this package encode and decode them.

type FrameType string

const (
	// client -> server
	FrameConnect FrameType = "connect"
	FrameJoin    FrameType = "join"
	FrameLeave   FrameType = "leave"
	FrameSend    FrameType = "send"
	FrameHistory FrameType = "history"

	// server -> client
	FrameConnectAck FrameType = "connect_ack"
	FrameSendAck    FrameType = "send_ack"
	FrameDeliver    FrameType = "deliver"
	FramePresence   FrameType = "presence"
	FrameKick       FrameType = "kick"
	FrameError      FrameType = "error"
)

type Frame struct {
	Type           FrameType `json:"type"`
	ConnID         string    `json:"conn_id,omitempty"`
	Superseded     string    `json:"superseded,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Body           string    `json:"body,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Ts             int64     `json:"ts,omitempty"`

	// Payload carries the connect handshake fields; decoded with
	// tools/decode into a typed struct.
	Payload map[string]any `json:"payload,omitempty"`

	Message  *model.ChatMessage   `json:"message,omitempty"`
	Messages []*model.ChatMessage `json:"messages,omitempty"`
	Event    *PresenceEvent       `json:"event,omitempty"`
	Error    *errs.CodeError      `json:"error,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Type == "" {
		return nil, errors.New("frame missing type")
	}
	return f, nil
}

func EncodeFrame(f *Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		// frames are built from plain structs; this cannot fail at runtime
		panic(fmt.Sprintf("encode frame: %v", err))
	}
	return b
}

// ConnectPayload is the handshake the client sends as the first
// frame. The session token is opaque here: authentication happened
// upstream, this only correlates.
type ConnectPayload struct {
	Identity     string            `json:"identity"`
	Role         string            `json:"role"`
	SessionToken string            `json:"session_token,omitempty"`
	ManualLogin  bool              `json:"manual_login,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

func ExtractConnectPayload(f *Frame) (*ConnectPayload, error) {
	if f == nil || f.Payload == nil {
		return nil, errors.New("connect frame missing payload")
	}
	p, err := decode.DecodeMap[ConnectPayload](f.Payload)
	if err != nil {
		return nil, err
	}
	if p.Identity == "" {
		return nil, errors.New("connect payload missing identity")
	}
	return p, nil
}

// ---- server-side frame builders ----

func BuildConnectAck(connID, superseded string) *Frame {
	return &Frame{
		Type:       FrameConnectAck,
		ConnID:     connID,
		Superseded: superseded,
		Ts:         time.Now().UnixMilli(),
	}
}

func BuildSendAck(msg *model.ChatMessage) *Frame {
	return &Frame{
		Type:           FrameSendAck,
		ConversationID: msg.ConversationID,
		Message:        msg,
		Ts:             time.Now().UnixMilli(),
	}
}

func BuildDeliver(msg *model.ChatMessage) *Frame {
	return &Frame{
		Type:           FrameDeliver,
		ConversationID: msg.ConversationID,
		Message:        msg,
		Ts:             time.Now().UnixMilli(),
	}
}

func BuildHistory(conversationID string, msgs []*model.ChatMessage) *Frame {
	return &Frame{
		Type:           FrameHistory,
		ConversationID: conversationID,
		Messages:       msgs,
		Ts:             time.Now().UnixMilli(),
	}
}

func BuildPresence(ev PresenceEvent) *Frame {
	e := ev
	return &Frame{
		Type:  FramePresence,
		Event: &e,
		Ts:    time.Now().UnixMilli(),
	}
}

func BuildKick(reason string) *Frame {
	return &Frame{
		Type:   FrameKick,
		Reason: reason,
		Ts:     time.Now().UnixMilli(),
	}
}

// BuildError reports a rejected operation back to the sender; the
// conversation id tells the client which pending action failed.
func BuildError(conversationID string, err error) *Frame {
	ce, ok := asCodeError(err)
	if !ok {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	return &Frame{
		Type:           FrameError,
		ConversationID: conversationID,
		Error:          ce,
		Ts:             time.Now().UnixMilli(),
	}
}

func asCodeError(err error) (*errs.CodeError, bool) {
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
