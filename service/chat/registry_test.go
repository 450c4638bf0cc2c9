package chat

import (
	"testing"
	"time"

	errs "SupportChat/tools/errs"

	"github.com/stretchr/testify/require"
)

func drainEvent(t *testing.T, r *Registry) PresenceEvent {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	default:
		t.Fatal("expected a queued presence event")
		return PresenceEvent{}
	}
}

func requireNoEvent(t *testing.T, r *Registry) {
	t.Helper()
	select {
	case ev := <-r.Events():
		t.Fatalf("unexpected presence event: %+v", ev)
	default:
	}
}

func TestRegistry_Register_FreshClaim(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	// When alice connects for the first time
	superseded, err := r.Register("c1", "alice", RoleUser, RegisterOpts{ManualLogin: true})

	// Then a session exists and one connected event is queued
	req.NoError(err)
	req.Empty(superseded)
	req.True(r.IsOnline("alice"))

	ev := drainEvent(t, r)
	req.Equal(EventConnected, ev.Kind)
	req.Equal("alice", ev.Identity)
	req.True(ev.ManualLogin)
	requireNoEvent(t, r)
}

func TestRegistry_Register_EmptyArgs(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	_, err := r.Register("", "alice", RoleUser, RegisterOpts{})
	req.True(errs.IsCode(err, errs.ErrArgs))

	_, err = r.Register("c1", "", RoleUser, RegisterOpts{})
	req.True(errs.IsCode(err, errs.ErrArgs))
	requireNoEvent(t, r)
}

func TestRegistry_Register_DuplicateConnID(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	_, err := r.Register("c1", "alice", RoleUser, RegisterOpts{})
	req.NoError(err)
	drainEvent(t, r)

	_, err = r.Register("c1", "bob", RoleUser, RegisterOpts{})
	req.True(errs.IsCode(err, errs.ErrConnExists))
	requireNoEvent(t, r)
}

func TestRegistry_Register_SupersedeLastWriterWins(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	// Given alice is live on c1
	_, err := r.Register("c1", "alice", RoleUser, RegisterOpts{})
	req.NoError(err)
	drainEvent(t, r)

	// When alice opens a second connection
	superseded, err := r.Register("c2", "alice", RoleUser, RegisterOpts{})

	// Then c1 is reported superseded and c2 is authoritative
	req.NoError(err)
	req.Equal("c1", superseded)

	s, ok := r.SessionOf("alice")
	req.True(ok)
	req.Equal("c2", s.ConnID)

	_, ok = r.Get("c1")
	req.False(ok, "superseded connection must be gone from the registry")

	ev := drainEvent(t, r)
	req.Equal(EventReconnected, ev.Kind)
	requireNoEvent(t, r)

	// And exactly one online entry remains
	online := r.ListOnline()
	req.Len(online, 1)
	req.Equal("c2", online[0].ConnID)
}

func TestRegistry_Unregister_SupersededIDIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	r.Register("c1", "alice", RoleUser, RegisterOpts{})
	r.Register("c2", "alice", RoleUser, RegisterOpts{})
	drainEvent(t, r)
	drainEvent(t, r)

	// The old transport closing late must not destroy the session
	req.False(r.Unregister("c1"))
	req.True(r.IsOnline("alice"))
	requireNoEvent(t, r)

	// Dropping the authoritative connection destroys it
	req.True(r.Unregister("c2"))
	req.False(r.IsOnline("alice"))
	ev := drainEvent(t, r)
	req.Equal(EventDisconnected, ev.Kind)
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	r.Register("c1", "alice", RoleUser, RegisterOpts{})
	drainEvent(t, r)

	req.True(r.Unregister("c1"))
	drainEvent(t, r)
	req.False(r.Unregister("c1"))
	requireNoEvent(t, r)
}

func TestRegistry_TouchTimestamps(t *testing.T) {
	req := require.New(t)

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	r := NewRegistry(RegistryConf{Clock: clock})

	r.Register("c1", "alice", RoleUser, RegisterOpts{})

	now = now.Add(5 * time.Second)
	r.TouchActivity("c1")
	now = now.Add(5 * time.Second)
	r.TouchHeartbeat("c1")

	c, ok := r.Get("c1")
	req.True(ok)
	req.Equal(time.Unix(1000, 0), c.ConnectedAt)
	req.Equal(time.Unix(1005, 0), c.LastActivity)
	req.Equal(time.Unix(1010, 0), c.LastHeartbeat)

	// Touching an unknown connection is a no-op
	r.TouchActivity("ghost")
}

func TestRegistry_ListOnline_Sorted(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(RegistryConf{})

	r.Register("c3", "carol", RoleStaff, RegisterOpts{})
	r.Register("c1", "alice", RoleUser, RegisterOpts{})
	r.Register("c2", "bob", RoleUser, RegisterOpts{})

	online := r.ListOnline()
	req.Len(online, 3)
	req.Equal("alice", online[0].Identity)
	req.Equal("bob", online[1].Identity)
	req.Equal("carol", online[2].Identity)
	req.Equal(RoleStaff, online[2].Role)
}
