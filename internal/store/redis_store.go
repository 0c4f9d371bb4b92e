package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/live-cursors/internal/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// redisStore implements PresenceStore using Redis.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed presence store.
func NewRedisStore(cfg RedisConfig) (PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{client: client}, nil
}

// Redis key patterns:
// cursors:room:{room_id}:seq        STRING<int>                  - connection id counter
// cursors:room:{room_id}:presence   HASH<connection_id, json>    - member presence

func roomSeqKey(roomID string) string {
	return fmt.Sprintf("cursors:room:%s:seq", roomID)
}

func roomPresenceKey(roomID string) string {
	return fmt.Sprintf("cursors:room:%s:presence", roomID)
}

func (s *redisStore) NextConnectionID(ctx context.Context, roomID string) (int, error) {
	// INCR starts at 1; connection ids start at 0.
	n, err := s.client.Incr(ctx, roomSeqKey(roomID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n - 1), nil
}

func (s *redisStore) Put(ctx context.Context, roomID string, peer domain.Peer, ttl time.Duration) error {
	data, err := json.Marshal(peer.Presence)
	if err != nil {
		return err
	}

	key := roomPresenceKey(roomID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(peer.ConnectionID), data)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
		pipe.Expire(ctx, roomSeqKey(roomID), ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Remove(ctx context.Context, roomID string, connectionID int) error {
	return s.client.HDel(ctx, roomPresenceKey(roomID), strconv.Itoa(connectionID)).Err()
}

func (s *redisStore) List(ctx context.Context, roomID string) ([]domain.Peer, error) {
	fields, err := s.client.HGetAll(ctx, roomPresenceKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	peers := make([]domain.Peer, 0, len(fields))
	for field, raw := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var presence domain.Presence
		if err := json.Unmarshal([]byte(raw), &presence); err != nil {
			continue
		}
		peers = append(peers, domain.Peer{ConnectionID: id, Presence: presence})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ConnectionID < peers[j].ConnectionID })
	return peers, nil
}

func (s *redisStore) Refresh(ctx context.Context, roomID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Expire(ctx, roomPresenceKey(roomID), ttl)
	pipe.Expire(ctx, roomSeqKey(roomID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
