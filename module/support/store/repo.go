package store

import (
	"context"
	"time"

	"SupportChat/module/support/model"
	errs "SupportChat/tools/errs"
	"SupportChat/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repo is the Mongo-backed conversation store. It owns the durable
// side of routing: the engine calls CreateMessage before any fan-out
// happens, so a delivered message is always already persisted.
type Repo struct {
	DB *mongo.Database
}

func NewRepo(db *mongo.Database) *Repo { return &Repo{DB: db} }

func (r *Repo) conversations() *mongo.Collection {
	return r.DB.Collection((&model.ChatConversation{}).GetTableName())
}

func (r *Repo) messages() *mongo.Collection {
	return r.DB.Collection((&model.ChatMessage{}).GetTableName())
}

// CreateConversation opens a new conversation owned by an end-user.
func (r *Repo) CreateConversation(ctx context.Context, owner, subject string, priority int) (*model.ChatConversation, error) {
	now := time.Now().UTC()
	conv := &model.ChatConversation{
		ConversationID: ids.GenerateString(),
		Owner:          owner,
		Subject:        subject,
		Status:         model.StatusOpen,
		Priority:       priority,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := r.conversations().InsertOne(ctx, conv); err != nil {
		return nil, errs.ErrInternal.Wrap(err)
	}
	return conv, nil
}

func (r *Repo) GetConversation(ctx context.Context, conversationID string) (*model.ChatConversation, error) {
	var conv model.ChatConversation
	err := r.conversations().FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrConversationMissing
	}
	if err != nil {
		return nil, errs.ErrInternal.Wrap(err)
	}
	return &conv, nil
}

// UpdateStatus applies the explicit staff/user transition
// (open/pending/closed). The routing engine never calls this.
func (r *Repo) UpdateStatus(ctx context.Context, conversationID string, status model.ConversationStatus) error {
	res, err := r.conversations().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.ErrInternal.Wrap(err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrConversationMissing
	}
	return nil
}

// CreateMessage persists one message; the id is assigned here so the
// write is the single source of message identity and order.
func (r *Repo) CreateMessage(ctx context.Context, conversationID, sender string, role model.SenderRole, body string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		MessageID:      ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		SenderRole:     role,
		Body:           body,
		Read:           false,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := r.messages().InsertOne(ctx, msg); err != nil {
		return nil, errs.ErrMessageNotSent.Wrap(err)
	}
	return msg, nil
}

// TouchConversation bumps the staff-side sort key.
func (r *Repo) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := r.conversations().UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"last_activity_at": at}},
	)
	if err != nil {
		return errs.ErrInternal.Wrap(err)
	}
	return nil
}

// ListRecentMessages returns up to limit newest messages, oldest
// first, for best-effort redelivery after a reconnect.
func (r *Repo) ListRecentMessages(ctx context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := r.messages().Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, errs.ErrInternal.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.ChatMessage
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrInternal.Wrap(err)
	}
	// newest-first from Mongo; flip to delivery order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead flags every message in the conversation sent by the
// opposite role as read.
func (r *Repo) MarkRead(ctx context.Context, conversationID string, readerRole model.SenderRole) error {
	opposite := model.SenderAdmin
	if readerRole == model.SenderAdmin {
		opposite = model.SenderUser
	}
	_, err := r.messages().UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_role": opposite, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errs.ErrInternal.Wrap(err)
	}
	return nil
}
