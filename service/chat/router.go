package chat

import (
	"context"
	"sync"

	"SupportChat/logger"
	"SupportChat/module/support/model"
	errs "SupportChat/tools/errs"
)

// Router persists then fans out. The order is the contract: a message
// any recipient observes is already durable. Per conversation,
// persist + fan-out run as one critical section so concurrent senders
// deliver in persisted order, not arrival order.
type Router struct {
	store    ConversationStore
	registry *Registry
	rooms    *Rooms
	sink     func(connID string) Sink
	archive  MessageArchiver // optional, nil-safe

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex // lives for the process lifetime
}

func NewRouter(store ConversationStore, registry *Registry, rooms *Rooms, sink func(string) Sink, archive MessageArchiver) *Router {
	return &Router{
		store:     store,
		registry:  registry,
		rooms:     rooms,
		sink:      sink,
		archive:   archive,
		convLocks: make(map[string]*sync.Mutex),
	}
}

func (rt *Router) lockFor(conversationID string) *sync.Mutex {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	l, ok := rt.convLocks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		rt.convLocks[conversationID] = l
	}
	return l
}

// Route validates the conversation, persists the message, then fans
// it out to the conversation room plus the staff broadcast room,
// skipping the sender's own connection. Any error leaves conversation
// state untouched and nothing delivered.
func (rt *Router) Route(ctx context.Context, senderConnID, conversationID, body string) (*model.ChatMessage, error) {
	if conversationID == "" || body == "" {
		return nil, errs.ErrArgs.WithDetail("conversation/body empty")
	}
	sender, ok := rt.registry.Get(senderConnID)
	if !ok {
		return nil, errs.ErrNotRegistered.WithDetail(senderConnID)
	}

	l := rt.lockFor(conversationID)
	l.Lock()
	defer l.Unlock()

	conv, err := rt.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.StatusClosed {
		// rejected, not dropped: the client may prompt to reopen
		return nil, errs.ErrConversationClosed.WithDetail(conversationID)
	}

	msg, err := rt.store.CreateMessage(ctx, conversationID, sender.Identity, sender.Role.Sender(), body)
	if err != nil {
		return nil, err
	}

	// message is durable from here on; bookkeeping failures only log
	if terr := rt.store.TouchConversation(ctx, conversationID, msg.CreatedAt); terr != nil {
		logger.Warnf("[router] touch conversation %s: %v", conversationID, terr)
	}
	rt.registry.TouchActivity(senderConnID)

	for _, connID := range rt.recipients(conversationID, senderConnID) {
		if s := rt.sink(connID); s != nil {
			s.DeliverMessage(msg)
		}
	}

	if rt.archive != nil {
		rt.archive.Archive(msg)
	}
	return msg, nil
}

// recipients is the union of the conversation room and the staff
// broadcast room, deduplicated, sender excluded (the sender's client
// renders its own message optimistically).
func (rt *Router) recipients(conversationID, senderConnID string) []string {
	room := rt.rooms.Members(conversationID)
	broadcast := rt.rooms.Members(BroadcastRoom)

	seen := make(map[string]struct{}, len(room)+len(broadcast))
	out := make([]string, 0, len(room)+len(broadcast))
	for _, list := range [][]string{room, broadcast} {
		for _, connID := range list {
			if connID == senderConnID {
				continue
			}
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			out = append(out, connID)
		}
	}
	return out
}
