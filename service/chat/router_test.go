package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"SupportChat/module/support/model"
	"SupportChat/module/support/store"
	errs "SupportChat/tools/errs"

	"github.com/stretchr/testify/require"
)

// fakeSink records everything the engine pushes at a connection.
type fakeSink struct {
	mu      sync.Mutex
	msgs    []*model.ChatMessage
	events  []PresenceEvent
	kicked  []string
	pingErr error
}

func (f *fakeSink) DeliverMessage(msg *model.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeSink) DeliverPresence(ev PresenceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeSink) Kick(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, reason)
}

func (f *fakeSink) messages() []*model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ChatMessage(nil), f.msgs...)
}

func (f *fakeSink) presence() []PresenceEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PresenceEvent(nil), f.events...)
}

func (f *fakeSink) kicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kicked...)
}

// fakeArchiver captures archived messages.
type fakeArchiver struct {
	mu   sync.Mutex
	msgs []*model.ChatMessage
}

func (f *fakeArchiver) Archive(msg *model.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeArchiver) archived() []*model.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ChatMessage(nil), f.msgs...)
}

// routerFixture wires a Router against the in-memory store with
// hand-picked connection ids.
type routerFixture struct {
	reg     *Registry
	rooms   *Rooms
	mem     *store.Memory
	sinks   map[string]*fakeSink
	archive *fakeArchiver
	router  *Router
	conv    *model.ChatConversation
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		reg:     NewRegistry(RegistryConf{}),
		rooms:   NewRooms(),
		mem:     store.NewMemory(),
		sinks:   make(map[string]*fakeSink),
		archive: &fakeArchiver{},
	}
	sinkFn := func(connID string) Sink {
		s, ok := f.sinks[connID]
		if !ok {
			return nil
		}
		return s
	}
	f.router = NewRouter(f.mem, f.reg, f.rooms, sinkFn, f.archive)

	conv, err := f.mem.CreateConversation(context.Background(), "alice", "printer on fire", 1)
	require.NoError(t, err)
	f.conv = conv
	return f
}

func (f *routerFixture) connect(t *testing.T, connID, identity string, role Role) *fakeSink {
	t.Helper()
	s := &fakeSink{}
	f.sinks[connID] = s
	_, err := f.reg.Register(connID, identity, role, RegisterOpts{})
	require.NoError(t, err)
	if role == RoleStaff {
		f.rooms.Join(connID, BroadcastRoom)
	}
	return s
}

func TestRouter_PersistThenFanout(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	alice := f.connect(t, "c-alice", "alice", RoleUser)
	bob := f.connect(t, "c-bob", "bob", RoleUser)
	f.rooms.Join("c-alice", f.conv.ConversationID)
	f.rooms.Join("c-bob", f.conv.ConversationID)

	msg, err := f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "hello")
	req.NoError(err)
	req.Equal("hello", msg.Body)
	req.Equal("alice", msg.Sender)
	req.Equal(model.SenderUser, msg.SenderRole)

	// persisted exactly once, delivered to bob, never echoed to alice
	req.Equal(1, f.mem.MessageCount(f.conv.ConversationID))
	req.Len(bob.messages(), 1)
	req.Equal(msg.MessageID, bob.messages()[0].MessageID)
	req.Empty(alice.messages())

	// durable messages also reach the archive
	req.Len(f.archive.archived(), 1)
}

func TestRouter_StaffBroadcastReceivesEveryConversation(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.connect(t, "c-alice", "alice", RoleUser)
	agent := f.connect(t, "c-agent", "agent-1", RoleStaff)
	f.rooms.Join("c-alice", f.conv.ConversationID)
	// the agent never joined the conversation room, broadcast membership
	// alone routes the message to them

	_, err := f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "anyone there?")
	req.NoError(err)
	req.Len(agent.messages(), 1)
}

func TestRouter_SenderInBothRoomsGetsNoDuplicate(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	agent := f.connect(t, "c-agent", "agent-1", RoleStaff)
	alice := f.connect(t, "c-alice", "alice", RoleUser)
	f.rooms.Join("c-agent", f.conv.ConversationID)
	f.rooms.Join("c-alice", f.conv.ConversationID)

	// staff sender sits in the conversation room and the broadcast room
	msg, err := f.router.Route(context.Background(), "c-agent", f.conv.ConversationID, "how can I help?")
	req.NoError(err)
	req.Equal(model.SenderAdmin, msg.SenderRole)

	req.Empty(agent.messages(), "sender must not receive its own message")
	req.Len(alice.messages(), 1)
}

func TestRouter_ClosedConversationRejects(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.connect(t, "c-alice", "alice", RoleUser)
	f.rooms.Join("c-alice", f.conv.ConversationID)
	bob := f.connect(t, "c-bob", "bob", RoleUser)
	f.rooms.Join("c-bob", f.conv.ConversationID)

	_, err := f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "first")
	req.NoError(err)

	req.NoError(f.mem.UpdateStatus(context.Background(), f.conv.ConversationID, model.StatusClosed))

	// rejected synchronously, nothing persisted, nothing delivered
	_, err = f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "second")
	req.True(errs.IsCode(err, errs.ErrConversationClosed))
	req.Equal(1, f.mem.MessageCount(f.conv.ConversationID))
	req.Len(bob.messages(), 1)
}

func TestRouter_UnknownConversation(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.connect(t, "c-alice", "alice", RoleUser)

	_, err := f.router.Route(context.Background(), "c-alice", "no-such-conversation", "hi")
	req.True(errs.IsCode(err, errs.ErrConversationMissing))
}

func TestRouter_UnregisteredSender(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	_, err := f.router.Route(context.Background(), "ghost", f.conv.ConversationID, "hi")
	req.True(errs.IsCode(err, errs.ErrNotRegistered))
}

func TestRouter_EmptyArgs(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.connect(t, "c-alice", "alice", RoleUser)

	_, err := f.router.Route(context.Background(), "c-alice", "", "hi")
	req.True(errs.IsCode(err, errs.ErrArgs))

	_, err = f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "")
	req.True(errs.IsCode(err, errs.ErrArgs))
	req.Equal(0, f.mem.MessageCount(f.conv.ConversationID))
}

func TestRouter_PersistFailureDeliversNothing(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.connect(t, "c-alice", "alice", RoleUser)
	bob := f.connect(t, "c-bob", "bob", RoleUser)
	f.rooms.Join("c-alice", f.conv.ConversationID)
	f.rooms.Join("c-bob", f.conv.ConversationID)

	f.mem.FailCreate = context.DeadlineExceeded

	_, err := f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "hello")
	req.True(errs.IsCode(err, errs.ErrMessageNotSent))
	req.True(errs.Retryable(err))

	req.Equal(0, f.mem.MessageCount(f.conv.ConversationID))
	req.Empty(bob.messages())
	req.Empty(f.archive.archived())
}

func TestRouter_ConcurrentSendersPersistOnceDeliverInPersistedOrder(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.connect(t, "c-alice", "alice", RoleUser)
	f.connect(t, "c-agent", "agent-1", RoleStaff)
	observer := f.connect(t, "c-carol", "carol", RoleStaff)
	f.rooms.Join("c-alice", f.conv.ConversationID)
	f.rooms.Join("c-agent", f.conv.ConversationID)
	f.rooms.Join("c-carol", f.conv.ConversationID)

	// two senders race on one conversation
	const perSender = 50
	errc := make(chan error, 2*perSender)
	var wg sync.WaitGroup
	for _, connID := range []string{"c-alice", "c-agent"} {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.router.Route(context.Background(), connID, f.conv.ConversationID,
					fmt.Sprintf("%s says %d", connID, i))
				if err != nil {
					errc <- err
				}
			}
		}(connID)
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		req.NoError(err)
	}

	// exactly one persisted record per send
	req.Equal(2*perSender, f.mem.MessageCount(f.conv.ConversationID))

	persisted, err := f.mem.ListRecentMessages(context.Background(), f.conv.ConversationID, 4*perSender)
	req.NoError(err)
	req.Len(persisted, 2*perSender)

	// the observer sees every message, in persisted order, not
	// arrival order of the racing senders
	delivered := observer.messages()
	req.Len(delivered, 2*perSender)
	for i := range persisted {
		req.Equal(persisted[i].MessageID, delivered[i].MessageID)
	}

	// archive got each message exactly once
	req.Len(f.archive.archived(), 2*perSender)
}

func TestRouter_JoinAfterSendGetsNoBackfill(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	f.connect(t, "c-alice", "alice", RoleUser)
	f.rooms.Join("c-alice", f.conv.ConversationID)

	_, err := f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "early message")
	req.NoError(err)

	// bob joins after the send; live fan-out is not retroactive,
	// history replay is a separate explicit request
	bob := f.connect(t, "c-bob", "bob", RoleUser)
	f.rooms.Join("c-bob", f.conv.ConversationID)
	req.Empty(bob.messages())

	_, err = f.router.Route(context.Background(), "c-alice", f.conv.ConversationID, "later message")
	req.NoError(err)
	req.Len(bob.messages(), 1)
	req.Equal("later message", bob.messages()[0].Body)
}
