package store

import (
	"context"
	"sync"
	"time"

	"SupportChat/module/support/model"
	errs "SupportChat/tools/errs"
	"SupportChat/tools/ids"
)

// Memory is the in-process store used by tests and single-node dev
// runs. Same contract as Repo, no I/O.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*model.ChatConversation
	messages      map[string][]*model.ChatMessage // conversation id -> in insert order

	// FailCreate, when set, makes the next CreateMessage calls fail
	// with it; lets tests exercise the persistence-failure path.
	FailCreate error
}

func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.ChatConversation),
		messages:      make(map[string][]*model.ChatMessage),
	}
}

func (m *Memory) CreateConversation(_ context.Context, owner, subject string, priority int) (*model.ChatConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.conversations[conv.ConversationID] = conv
	return conv, nil
}

func (m *Memory) GetConversation(_ context.Context, conversationID string) (*model.ChatConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, errs.ErrConversationMissing
	}
	cp := *conv
	return &cp, nil
}

func (m *Memory) UpdateStatus(_ context.Context, conversationID string, status model.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return errs.ErrConversationMissing
	}
	conv.Status = status
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CreateMessage(_ context.Context, conversationID, sender string, role model.SenderRole, body string) (*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		return nil, errs.ErrMessageNotSent.Wrap(m.FailCreate)
	}
	msg := &model.ChatMessage{
		MessageID:      ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		SenderRole:     role,
		Body:           body,
		Read:           false,
		CreatedAt:      time.Now().UTC(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return msg, nil
}

func (m *Memory) TouchConversation(_ context.Context, conversationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[conversationID]; ok {
		conv.LastActivityAt = at
	}
	return nil
}

func (m *Memory) ListRecentMessages(_ context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	out := make([]*model.ChatMessage, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

// MarkRead flags every message in the conversation sent by the
// opposite role as read.
func (m *Memory) MarkRead(_ context.Context, conversationID string, readerRole model.SenderRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[conversationID] {
		if msg.SenderRole != readerRole {
			msg.Read = true
		}
	}
	return nil
}

// MessageCount reports how many messages a conversation holds;
// test helper.
func (m *Memory) MessageCount(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[conversationID])
}
