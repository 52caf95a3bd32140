package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"agroquote/quoter/internal/domain"
)

// ErrNoSnapshot is returned when no shared snapshot is stored.
var ErrNoSnapshot = errors.New("no price snapshot stored")

// SnapshotStore shares the last fetched price snapshot between processes so
// that one refresh per TTL window serves all of them.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (*domain.Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot, ttl time.Duration) error
}

type redisSnapshotStore struct {
	redisClient *redis.Client
	key         string
}

func NewRedisSnapshotStore(redisClient *redis.Client, key string) SnapshotStore {
	return &redisSnapshotStore{
		redisClient: redisClient,
		key:         key,
	}
}

func (s *redisSnapshotStore) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	val, err := s.redisClient.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to get price snapshot %s: %w", s.key, err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode price snapshot %s: %w", s.key, err)
	}
	return &snapshot, nil
}

func (s *redisSnapshotStore) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode price snapshot: %w", err)
	}
	if err := s.redisClient.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set price snapshot %s: %w", s.key, err)
	}
	return nil
}

// MemorySnapshotStore keeps the snapshot in process. It is used when Redis
// is disabled.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshot  *domain.Snapshot
	expiresAt time.Time
	now       func() time.Time
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{now: time.Now}
}

func (s *MemorySnapshotStore) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil || (!s.expiresAt.IsZero() && s.now().After(s.expiresAt)) {
		return nil, ErrNoSnapshot
	}
	return s.snapshot, nil
}

func (s *MemorySnapshotStore) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snapshot
	s.expiresAt = time.Time{}
	if ttl > 0 {
		s.expiresAt = s.now().Add(ttl)
	}
	return nil
}
