package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garnizeh/leadscout/pkg/repository"
)

// Revoker records per-user revocation instants. Tokens issued at or before
// the instant are rejected.
type Revoker interface {
	RevokeUser(ctx context.Context, userID int64, at time.Time) error
	RevokedAt(ctx context.Context, userID int64) (time.Time, bool, error)
}

// StoreRevoker persists revocations in the application database.
type StoreRevoker struct {
	repo repository.RevocationRepo
}

func NewStoreRevoker(repo repository.RevocationRepo) *StoreRevoker {
	return &StoreRevoker{repo: repo}
}

func (s *StoreRevoker) RevokeUser(ctx context.Context, userID int64, at time.Time) error {
	return s.repo.RevokeUserTokens(ctx, userID, at)
}

func (s *StoreRevoker) RevokedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	at, err := s.repo.GetUserRevocation(ctx, userID)
	if err != nil {
		return time.Time{}, false, err
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return *at, true, nil
}

// RedisRevoker keeps revocations in Redis so every API instance sees them.
// Keys expire after ttl, which should be at least the token lifetime.
type RedisRevoker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisRevoker(client *redis.Client, ttl time.Duration) *RedisRevoker {
	return &RedisRevoker{client: client, keyPrefix: "leadscout:revoked:", ttl: ttl}
}

func (r *RedisRevoker) key(userID int64) string {
	return r.keyPrefix + strconv.FormatInt(userID, 10)
}

func (r *RedisRevoker) RevokeUser(ctx context.Context, userID int64, at time.Time) error {
	if err := r.client.Set(ctx, r.key(userID), at.UnixNano(), r.ttl).Err(); err != nil {
		return fmt.Errorf("revoke user %d tokens: %w", userID, err)
	}
	return nil
}

func (r *RedisRevoker) RevokedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	v, err := r.client.Get(ctx, r.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read user %d revocation: %w", userID, err)
	}
	return time.Unix(0, v), true, nil
}

// MemoryRevoker is a process-local Revoker for tests and single-node setups.
type MemoryRevoker struct {
	mu sync.RWMutex
	at map[int64]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{at: make(map[int64]time.Time)}
}

func (m *MemoryRevoker) RevokeUser(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at[userID] = at
	return nil
}

func (m *MemoryRevoker) RevokedAt(_ context.Context, userID int64) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.at[userID]
	return at, ok, nil
}

var (
	_ Revoker = (*StoreRevoker)(nil)
	_ Revoker = (*RedisRevoker)(nil)
	_ Revoker = (*MemoryRevoker)(nil)
)
