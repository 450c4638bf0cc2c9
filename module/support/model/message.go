package model

import (
	"time"

	"SupportChat/service/mgo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// SenderRole on a persisted message.
type SenderRole string

const (
	SenderUser  SenderRole = "user"
	SenderAdmin SenderRole = "admin"
)

// ChatMessage
// {
// "message_id": "7346178392817664002",
// "conversation_id": "7346178392817664001",
// "sender": "alice",
// "sender_role": "user",
// "body": "hello",
// "read": false,
// "created_at": "2025-09-20T13:00:05Z"
// }
// db.support_message.createIndex({ conversation_id: 1, created_at: 1 })
// db.support_message.createIndex({ message_id: 1 }, { unique: true, name: "uniq_message" })
type ChatMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"   json:"_id,omitempty"`
	MessageID      string             `bson:"message_id"      json:"message_id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Sender         string             `bson:"sender"          json:"sender"`
	SenderRole     SenderRole         `bson:"sender_role"     json:"sender_role"`
	Body           string             `bson:"body"            json:"body"`

	// Read is false until the opposite side fetched the message;
	// created unread for the recipient role by definition.
	Read      bool      `bson:"read"       json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (m *ChatMessage) GetTableName() string {
	return "support_message"
}

func (m *ChatMessage) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}
