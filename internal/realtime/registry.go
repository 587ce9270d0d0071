package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Registry counts live connections per user.
type Registry interface {
	// Connect records a new connection and reports whether it is the user's first.
	Connect(ctx context.Context, userID uuid.UUID) bool
	// Disconnect removes a connection and reports whether it was the user's last.
	Disconnect(ctx context.Context, userID uuid.UUID) bool
	IsOnline(ctx context.Context, userID uuid.UUID) bool
}

// MemoryRegistry tracks connections of this process only.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]int
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[uuid.UUID]int)}
}

func (r *MemoryRegistry) Connect(ctx context.Context, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID]++
	return r.conns[userID] == 1
}

func (r *MemoryRegistry) Disconnect(ctx context.Context, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.conns[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(r.conns, userID)
		return true
	}
	r.conns[userID] = n - 1
	return false
}

func (r *MemoryRegistry) IsOnline(ctx context.Context, userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[userID] > 0
}

// Count returns the number of users with at least one connection.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// PresenceKey is the Redis hash of user id to connection count.
const PresenceKey = "dealer:presence"

// RedisRegistry mirrors connection counts into a Redis hash so every instance
// and worker sees the same presence. First and last connection are decided
// by the shared counter.
type RedisRegistry struct {
	rdb   *redis.Client
	local *MemoryRegistry
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, local: NewMemoryRegistry()}
}

func (r *RedisRegistry) Connect(ctx context.Context, userID uuid.UUID) bool {
	first := r.local.Connect(ctx, userID)
	n, err := r.rdb.HIncrBy(ctx, PresenceKey, userID.String(), 1).Result()
	if err != nil {
		slog.WarnContext(ctx, "presence: redis connect failed", "user_id", userID, "error", err)
		return first
	}
	return n == 1
}

// releaseScript decrements a user's count and drops the field once it reaches
// zero, in one step so a concurrent connect cannot be deleted.
var releaseScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`)

func (r *RedisRegistry) Disconnect(ctx context.Context, userID uuid.UUID) bool {
	last := r.local.Disconnect(ctx, userID)
	n, err := releaseScript.Run(ctx, r.rdb, []string{PresenceKey}, userID.String()).Int64()
	if err != nil {
		slog.WarnContext(ctx, "presence: redis disconnect failed", "user_id", userID, "error", err)
		return last
	}
	return n <= 0
}

func (r *RedisRegistry) IsOnline(ctx context.Context, userID uuid.UUID) bool {
	n, err := r.rdb.HGet(ctx, PresenceKey, userID.String()).Int()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "presence: redis lookup failed", "user_id", userID, "error", err)
			return r.local.IsOnline(ctx, userID)
		}
		return false
	}
	return n > 0
}
