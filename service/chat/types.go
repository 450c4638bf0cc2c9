package chat

import (
	"context"
	"time"

	"SupportChat/module/support/model"
)

// Role of a connected principal.
type Role string

const (
	RoleUser  Role = "end-user"
	RoleStaff Role = "staff"
)

// Sender maps the connection role onto the persisted sender role.
func (r Role) Sender() model.SenderRole {
	if r == RoleStaff {
		return model.SenderAdmin
	}
	return model.SenderUser
}

// ParseRole is lenient about the wire spelling; anything that is not
// staff is an end-user.
func ParseRole(s string) Role {
	switch s {
	case "staff", "admin":
		return RoleStaff
	default:
		return RoleUser
	}
}

// Conn is one physical transport channel, owned by the Registry from
// Register until Unregister.
type Conn struct {
	ID            string
	Identity      string
	Role          Role
	ConnectedAt   time.Time
	LastActivity  time.Time
	LastHeartbeat time.Time
}

// Session is the logical presence of one identity. It survives a
// reconnect: the connection id is swapped, the session stays.
type Session struct {
	Identity    string
	Role        Role
	ConnID      string
	Meta        map[string]string
	Token       string // opaque correlation id, never validated here
	ManualLogin bool
	StartedAt   time.Time
}

// OnlineIdentity is the read-model row behind listOnlineIdentities().
type OnlineIdentity struct {
	Identity       string    `json:"identity"`
	Role           Role      `json:"role"`
	ConnID         string    `json:"conn_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// EventKind of a presence transition.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventReconnected  EventKind = "reconnected"
	EventDisconnected EventKind = "disconnected"
)

// PresenceEvent is published to staff connections (and optional
// external exporters) on every registry transition. Fire-and-forget:
// a staff dashboard that misses one resyncs via the full online list.
type PresenceEvent struct {
	Kind        EventKind `json:"kind"`
	Identity    string    `json:"identity"`
	Role        Role      `json:"role"`
	ManualLogin bool      `json:"manual_login,omitempty"`
	At          time.Time `json:"at"`
}

// Sink is the transport side of one live connection. Implementations
// must not block: deliveries go to a bounded per-connection queue and
// a slow client loses frames rather than stalling the engine.
type Sink interface {
	DeliverMessage(msg *model.ChatMessage)
	DeliverPresence(ev PresenceEvent)
	// Ping sends a liveness probe. An error means the connection is
	// already gone; the monitor treats that as a no-op.
	Ping() error
	// Kick tells a superseded connection it was replaced; the
	// transport closes it afterwards.
	Kick(reason string)
}

// ConversationStore is the persistence collaborator. CreateMessage is
// transactional from the engine's point of view: on error no partial
// message exists and nothing is fanned out.
type ConversationStore interface {
	GetConversation(ctx context.Context, conversationID string) (*model.ChatConversation, error)
	CreateMessage(ctx context.Context, conversationID, sender string, role model.SenderRole, body string) (*model.ChatMessage, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error)
	MarkRead(ctx context.Context, conversationID string, readerRole model.SenderRole) error
}

// MessageArchiver receives every persisted message after fan-out;
// used for the Kafka archival topic. Must not block.
type MessageArchiver interface {
	Archive(msg *model.ChatMessage)
}

// EventExporter mirrors presence events off-gateway (NATS). Must not
// block; failures are logged, never surfaced.
type EventExporter interface {
	Export(ev PresenceEvent)
}
