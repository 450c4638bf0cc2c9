package chat

import (
	"sort"
	"sync"
	"time"

	"SupportChat/logger"
	errs "SupportChat/tools/errs"
)

// ===== config =====

type RegistryConf struct {
	Clock       func() time.Time // injectable for tests; nil => time.Now
	EventBuffer int              // presence event queue depth
}

func (c *RegistryConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 1024
	}
}

// Registry is the single source of truth for who is online. It is a
// passive registry: it never closes transports, it only tells the
// caller which connection id lost a supersede so the transport layer
// can act.
//
// Invariant: at most one live Session per identity. A second Register
// for a live identity applies last-writer-wins and reports the old
// connection id as superseded.
type Registry struct {
	mu         sync.RWMutex
	byConn     map[string]*Conn
	byIdentity map[string]*Session

	conf   RegistryConf
	events chan PresenceEvent
}

func NewRegistry(conf RegistryConf) *Registry {
	conf.norm()
	return &Registry{
		byConn:     make(map[string]*Conn),
		byIdentity: make(map[string]*Session),
		conf:       conf,
		events:     make(chan PresenceEvent, conf.EventBuffer),
	}
}

// Events is drained by the presence publisher.
func (r *Registry) Events() <-chan PresenceEvent { return r.events }

type RegisterOpts struct {
	Meta        map[string]string
	Token       string
	ManualLogin bool
}

// Register records a new connection claiming an identity. If the
// identity already has a live session the new connection supersedes
// the old one and the old connection id is returned; the caller must
// close or downgrade it. Exactly one presence event is queued per
// transition: connected on a fresh claim, reconnected on supersede.
func (r *Registry) Register(connID, identity string, role Role, o RegisterOpts) (superseded string, err error) {
	if connID == "" || identity == "" {
		return "", errs.ErrArgs.WithDetail("connID/identity empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byConn[connID]; dup {
		// connection ids are generated, a duplicate is a programming fault
		return "", errs.ErrConnExists.WithDetail(connID)
	}

	now := r.conf.Clock()
	c := &Conn{
		ID:            connID,
		Identity:      identity,
		Role:          role,
		ConnectedAt:   now,
		LastActivity:  now,
		LastHeartbeat: now,
	}
	r.byConn[connID] = c

	kind := EventConnected
	if s, live := r.byIdentity[identity]; live {
		superseded = s.ConnID
		delete(r.byConn, superseded)
		s.ConnID = connID
		s.Role = role
		s.Meta = o.Meta
		s.Token = o.Token
		s.ManualLogin = o.ManualLogin
		kind = EventReconnected
	} else {
		r.byIdentity[identity] = &Session{
			Identity:    identity,
			Role:        role,
			ConnID:      connID,
			Meta:        o.Meta,
			Token:       o.Token,
			ManualLogin: o.ManualLogin,
			StartedAt:   now,
		}
	}

	r.emitLocked(PresenceEvent{
		Kind:        kind,
		Identity:    identity,
		Role:        role,
		ManualLogin: o.ManualLogin,
		At:          now,
	})
	return superseded, nil
}

// Unregister removes a connection. Removing the authoritative
// connection destroys the session and queues one disconnect event.
// Unknown ids are a silent no-op (already evicted or superseded).
func (r *Registry) Unregister(connID string) bool {
	if connID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)

	if s, live := r.byIdentity[c.Identity]; live && s.ConnID == connID {
		delete(r.byIdentity, c.Identity)
		r.emitLocked(PresenceEvent{
			Kind:     EventDisconnected,
			Identity: c.Identity,
			Role:     c.Role,
			At:       r.conf.Clock(),
		})
	}
	return true
}

func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byIdentity[identity]
	return ok
}

// ListOnline snapshots the online identities, sorted for stable
// dashboard output.
func (r *Registry) ListOnline() []OnlineIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OnlineIdentity, 0, len(r.byIdentity))
	for _, s := range r.byIdentity {
		entry := OnlineIdentity{
			Identity: s.Identity,
			Role:     s.Role,
			ConnID:   s.ConnID,
		}
		if c, ok := r.byConn[s.ConnID]; ok {
			entry.ConnectedAt = c.ConnectedAt
			entry.LastActivityAt = c.LastActivity
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// TouchActivity refreshes the "last seen" timestamp. Informational
// only; liveness is the heartbeat monitor's job.
func (r *Registry) TouchActivity(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byConn[connID]; ok {
		c.LastActivity = r.conf.Clock()
	}
}

func (r *Registry) TouchHeartbeat(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byConn[connID]; ok {
		c.LastHeartbeat = r.conf.Clock()
	}
}

// Get returns a snapshot of one connection.
func (r *Registry) Get(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byConn[connID]
	if !ok {
		return Conn{}, false
	}
	return *c, true
}

// SessionOf returns a snapshot of an identity's live session.
func (r *Registry) SessionOf(identity string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byIdentity[identity]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ConnIDs snapshots every registered connection id; the heartbeat
// monitor iterates this each cycle.
func (r *Registry) ConnIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byConn))
	for id := range r.byConn {
		out = append(out, id)
	}
	return out
}

// emitLocked queues exactly one event per transition, in transition
// order. Publication is fire-and-forget, so when the publisher is
// that far behind we drop instead of blocking the registry.
func (r *Registry) emitLocked(ev PresenceEvent) {
	select {
	case r.events <- ev:
	default:
		logger.Warnf("[registry] event queue full, drop %s for %s", ev.Kind, ev.Identity)
	}
}
