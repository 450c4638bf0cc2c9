package storage

import (
	"context"
	"time"

	redisc "SupportChat/service/storage/redis"

	"github.com/redis/go-redis/v9"
)

// Mirror keeps a best-effort copy of the gateway's online state in
// Redis so ops tooling and other processes can answer "is this
// identity online" without a hop through the gateway. The in-memory
// registry stays authoritative; every write here is fire-and-forget
// and entries age out by TTL if a node dies without cleaning up.

type MirrorConfig struct {
	NodeID string
	TTL    time.Duration // session key TTL; refreshed on heartbeat ack
	Prefix string        // key namespace, default "sc"
}

func (c *MirrorConfig) norm() {
	if c.TTL <= 0 {
		c.TTL = 40 * time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "sc"
	}
}

type Mirror struct {
	rdb  *redis.Client
	conf MirrorConfig
}

// Guarded SET: only the connection that owns the session key may
// refresh or delete it, so a stale goroutine of a superseded
// connection cannot clobber the new session.
// KEYS[1] = session key, ARGV[1] = conn id, ARGV[2] = ttl seconds
const luaRefresh = `
local cur = redis.call("GET", KEYS[1])
if cur == ARGV[1] then
  redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
  return 1
end
return 0
`

// KEYS[1] = session key, ARGV[1] = conn id
const luaOffline = `
local cur = redis.call("GET", KEYS[1])
if cur == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`

var (
	refreshScript = redis.NewScript(luaRefresh)
	offlineScript = redis.NewScript(luaOffline)
)

// NewMirror wires against the shared client from service/storage/redis.
// Returns nil when Redis was never initialized; all methods are
// nil-safe so the gateway runs without a mirror.
func NewMirror(conf MirrorConfig) *Mirror {
	if !redisc.Ready() {
		return nil
	}
	conf.norm()
	return &Mirror{rdb: redisc.GetRedis(), conf: conf}
}

func (m *Mirror) key(identity string) string {
	return m.conf.Prefix + ":online:" + identity
}

// Online records identity -> connID. A plain SET: last writer wins,
// which matches the registry's supersede rule.
func (m *Mirror) Online(ctx context.Context, identity, connID string) error {
	if m == nil {
		return nil
	}
	return m.rdb.Set(ctx, m.key(identity), connID, m.conf.TTL).Err()
}

// Refresh extends the TTL iff connID still owns the session.
func (m *Mirror) Refresh(ctx context.Context, identity, connID string) error {
	if m == nil {
		return nil
	}
	secs := int64(m.conf.TTL / time.Second)
	return refreshScript.Run(ctx, m.rdb, []string{m.key(identity)}, connID, secs).Err()
}

// Offline removes the mirror entry iff connID still owns it; a
// superseded connection going away leaves the new session untouched.
func (m *Mirror) Offline(ctx context.Context, identity, connID string) error {
	if m == nil {
		return nil
	}
	return offlineScript.Run(ctx, m.rdb, []string{m.key(identity)}, connID).Err()
}

// IsOnline answers from the mirror only; may lag the registry by up
// to the heartbeat detection latency.
func (m *Mirror) IsOnline(ctx context.Context, identity string) (bool, error) {
	if m == nil {
		return false, nil
	}
	n, err := m.rdb.Exists(ctx, m.key(identity)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
