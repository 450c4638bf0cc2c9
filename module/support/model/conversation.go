package model

import (
	"time"

	"SupportChat/service/mgo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ConversationStatus lifecycle: open -> pending -> closed. Only an
// explicit staff/user action moves a conversation out of closed; the
// routing engine never does.
type ConversationStatus string

const (
	StatusOpen    ConversationStatus = "open"
	StatusPending ConversationStatus = "pending"
	StatusClosed  ConversationStatus = "closed"
)

// ChatConversation
// {
// "conversation_id": "7346178392817664001",
// "owner": "alice",
// "subject": "cannot connect since update",
// "status": "open",
// "priority": 2,
// "last_activity_at": "2025-09-20T13:00:00Z"
// }
// db.support_conversation.createIndex({ conversation_id: 1 }, { unique: true, name: "uniq_conversation" })
// db.support_conversation.createIndex({ owner: 1, last_activity_at: -1 })
// db.support_conversation.createIndex({ status: 1, last_activity_at: -1 })
type ChatConversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"    json:"_id,omitempty"`
	ConversationID string             `bson:"conversation_id"  json:"conversation_id"`
	Owner          string             `bson:"owner"            json:"owner"` // end-user identity
	Subject        string             `bson:"subject"          json:"subject"`
	Status         ConversationStatus `bson:"status"           json:"status"`
	Priority       int                `bson:"priority"         json:"priority"`

	// LastActivityAt drives the staff-side sort; touched on every
	// routed message.
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time `bson:"created_at"       json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"       json:"updated_at"`
}

func (c *ChatConversation) GetTableName() string {
	return "support_conversation"
}

func (c *ChatConversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(c.GetTableName())
}
