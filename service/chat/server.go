package chat

import (
	"context"
	"sync"
	"time"

	"SupportChat/logger"
	"SupportChat/module/support/model"
	storage "SupportChat/service/storage"
	errs "SupportChat/tools/errs"
	"SupportChat/tools/ids"
	"SupportChat/tools/safe"
)

// ===== options =====

type Options struct {
	Registry  RegistryConf
	Heartbeat MonitorConf

	FanoutWorkers int
	FanoutQueue   int
	HistoryLimit  int64

	Store   ConversationStore // required
	Mirror  *storage.Mirror   // optional redis presence mirror
	Archive MessageArchiver   // optional kafka archival
	Export  EventExporter     // optional nats presence export
}

func (o *Options) norm() {
	if o.FanoutWorkers <= 0 {
		o.FanoutWorkers = 4
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 256
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
}

// Server wires the engine together and is the only surface the
// transport layer talks to. Registry owns connection state, Rooms
// owns membership, Router reads both; mutations only ever flow
// through here, so no two components can diverge on one connection.
type Server struct {
	opts      Options
	registry  *Registry
	rooms     *Rooms
	router    *Router
	monitor   *Monitor
	publisher *Publisher

	mu    sync.RWMutex
	sinks map[string]Sink // conn id -> transport sink
}

func NewServer(opts Options) *Server {
	opts.norm()
	if opts.Store == nil {
		panic("chat.NewServer: Store is required")
	}

	s := &Server{
		opts:  opts,
		sinks: make(map[string]Sink),
	}
	s.registry = NewRegistry(opts.Registry)
	s.rooms = NewRooms()
	s.router = NewRouter(opts.Store, s.registry, s.rooms, s.Sink, opts.Archive)
	s.monitor = NewMonitor(opts.Heartbeat, s.registry.ConnIDs, s.probe, s.evict)
	s.publisher = NewPublisher(s.registry, s.rooms, s.Sink, NewFanout(opts.FanoutWorkers, opts.FanoutQueue), opts.Export)
	return s
}

func (s *Server) Start() {
	s.publisher.Start()
	s.monitor.Start()
}

func (s *Server) Stop() {
	s.monitor.Stop()
	s.publisher.Stop()
}

// Registry exposes read-only queries for the HTTP surface.
func (s *Server) Registry() *Registry { return s.registry }

// Rooms is exposed for tests and the transport layer.
func (s *Server) Rooms() *Rooms { return s.rooms }

// ===== connection lifecycle =====

type ConnectOpts struct {
	Meta         map[string]string
	SessionToken string
	ManualLogin  bool
}

// Connect registers an authenticated principal's new connection and
// returns its generated connection id. When the identity was already
// live the superseded connection id is returned; that connection got
// a Kick and is expected to close shortly.
func (s *Server) Connect(identity string, role Role, o ConnectOpts, sink Sink) (connID, superseded string, err error) {
	if sink == nil {
		return "", "", errs.ErrArgs.WithDetail("nil sink")
	}
	connID = ids.GenerateString()

	s.mu.Lock()
	s.sinks[connID] = sink
	s.mu.Unlock()

	superseded, err = s.registry.Register(connID, identity, role, RegisterOpts{
		Meta:        o.Meta,
		Token:       o.SessionToken,
		ManualLogin: o.ManualLogin,
	})
	if err != nil {
		s.takeSink(connID)
		return "", "", err
	}

	if role == RoleStaff {
		s.rooms.Join(connID, BroadcastRoom)
	}

	if superseded != "" {
		s.monitor.Forget(superseded)
		s.rooms.Drop(superseded)
		if old := s.takeSink(superseded); old != nil {
			old.Kick("signed in from another connection")
		}
		logger.Infof("[server] %s superseded conn=%s with conn=%s", identity, superseded, connID)
	}

	if mirror := s.opts.Mirror; mirror != nil {
		safe.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if merr := mirror.Online(ctx, identity, connID); merr != nil {
				logger.Warnf("[server] presence mirror online %s: %v", identity, merr)
			}
		})
	}
	return connID, superseded, nil
}

// Disconnect tears a connection down: explicit logout, transport
// close, and heartbeat eviction all land here, so all three are
// observationally identical.
func (s *Server) Disconnect(connID, reason string) {
	s.monitor.Forget(connID)
	s.rooms.Drop(connID)
	s.takeSink(connID)

	c, had := s.registry.Get(connID)
	if !s.registry.Unregister(connID) {
		return // already gone; eviction is idempotent
	}
	logger.Infof("[server] conn=%s identity=%s disconnected: %s", connID, c.Identity, reason)

	if mirror := s.opts.Mirror; mirror != nil && had {
		safe.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if merr := mirror.Offline(ctx, c.Identity, connID); merr != nil {
				logger.Warnf("[server] presence mirror offline %s: %v", c.Identity, merr)
			}
		})
	}
}

// HeartbeatAck handles a liveness ack from the transport (a websocket
// pong). Out-of-order acks relative to application frames are fine:
// everything keys on the connection id.
func (s *Server) HeartbeatAck(connID string) {
	s.monitor.Ack(connID)
	s.registry.TouchHeartbeat(connID)

	if c, ok := s.registry.Get(connID); ok && s.opts.Mirror != nil {
		mirror := s.opts.Mirror
		safe.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if merr := mirror.Refresh(ctx, c.Identity, connID); merr != nil {
				logger.Warnf("[server] presence mirror refresh %s: %v", c.Identity, merr)
			}
		})
	}
}

// TouchActivity is called on every inbound frame; informational only.
func (s *Server) TouchActivity(connID string) {
	s.registry.TouchActivity(connID)
}

// ===== rooms =====

func (s *Server) JoinRoom(connID, conversationID string) error {
	if _, ok := s.registry.Get(connID); !ok {
		return errs.ErrNotRegistered.WithDetail(connID)
	}
	s.rooms.Join(connID, conversationID)
	return nil
}

func (s *Server) LeaveRoom(connID, conversationID string) {
	s.rooms.Leave(connID, conversationID)
}

// ===== messaging =====

func (s *Server) SendMessage(ctx context.Context, connID, conversationID, body string) (*model.ChatMessage, error) {
	return s.router.Route(ctx, connID, conversationID, body)
}

// History returns the most recent persisted messages of a
// conversation for best-effort redelivery after a reconnect; the
// caller delivers them to the requesting connection only.
func (s *Server) History(ctx context.Context, connID, conversationID string) ([]*model.ChatMessage, error) {
	c, ok := s.registry.Get(connID)
	if !ok {
		return nil, errs.ErrNotRegistered.WithDetail(connID)
	}
	msgs, err := s.opts.Store.ListRecentMessages(ctx, conversationID, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	// reading the conversation marks the other side's messages read
	if merr := s.opts.Store.MarkRead(ctx, conversationID, c.Role.Sender()); merr != nil {
		logger.Warnf("[server] mark read %s: %v", conversationID, merr)
	}
	return msgs, nil
}

// ===== queries =====

func (s *Server) ListOnlineIdentities() []OnlineIdentity {
	return s.registry.ListOnline()
}

func (s *Server) IsOnline(identity string) bool {
	return s.registry.IsOnline(identity)
}

// ===== internals =====

// Sink resolves a connection id to its transport sink; nil when the
// connection is gone.
func (s *Server) Sink(connID string) Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sinks[connID]
}

func (s *Server) takeSink(connID string) Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	sink := s.sinks[connID]
	delete(s.sinks, connID)
	return sink
}

func (s *Server) probe(connID string) error {
	sink := s.Sink(connID)
	if sink == nil {
		return errs.ErrNotRegistered.WithDetail(connID)
	}
	return sink.Ping()
}

func (s *Server) evict(connID string) {
	s.Disconnect(connID, "heartbeat timeout")
}
