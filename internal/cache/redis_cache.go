package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

const ackKeyPrefix = "stockmaster:ack:"

// RedisAckStore keeps each session's set under its own key with no expiry;
// the key is deleted when the session ends.
type RedisAckStore struct {
	client *redis.Client
}

func NewRedisAckStore(addr string, password string, db int) *RedisAckStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAckStore{client: client}
}

func (c *RedisAckStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAckStore) Close() error {
	return c.client.Close()
}

func (c *RedisAckStore) Members(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	ids, err := c.client.SMembers(ctx, ackKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Add issues a single SADD, which Redis applies atomically.
func (c *RedisAckStore) Add(ctx context.Context, sessionID string, saleIDs ...string) error {
	if len(saleIDs) == 0 {
		return nil
	}
	members := make([]any, 0, len(saleIDs))
	for _, id := range saleIDs {
		members = append(members, id)
	}
	return c.client.SAdd(ctx, ackKeyPrefix+sessionID, members...).Err()
}

func (c *RedisAckStore) Clear(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, ackKeyPrefix+sessionID).Err()
}
