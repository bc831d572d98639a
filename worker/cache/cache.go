package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bgRemover/worker/events"
)

const (
	statusKeyPrefix = "item:status:"
	indexKey        = "item:index"
	statusTTL       = 30 * time.Minute
)

// StatusCache mirrors item status into Redis so out-of-process observers can poll it.
// Entries expire with the session and are dropped on delete or clear.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client, ttl: statusTTL}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type Entry struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Name     string `json:"name,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (c *StatusCache) Get(ctx context.Context, itemID string) (*Entry, error) {
	data, err := c.client.Get(ctx, statusKeyPrefix+itemID).Result()
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("decode status entry: %w", err)
	}
	return &entry, nil
}

func (c *StatusCache) Set(ctx context.Context, itemID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, statusKeyPrefix+itemID, data, c.ttl)
	pipe.SAdd(ctx, indexKey, itemID)
	pipe.Expire(ctx, indexKey, c.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *StatusCache) Delete(ctx context.Context, itemID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, statusKeyPrefix+itemID)
	pipe.SRem(ctx, indexKey, itemID)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *StatusCache) DeleteAll(ctx context.Context) error {
	ids, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, statusKeyPrefix+id)
	}
	keys = append(keys, indexKey)
	return c.client.Del(ctx, keys...).Err()
}

// Publish applies a lifecycle event to the mirror.
func (c *StatusCache) Publish(ctx context.Context, evt events.Event) error {
	switch evt.Type {
	case events.TypeDeleted:
		return c.Delete(ctx, evt.ItemID)
	case events.TypeCleared:
		return c.DeleteAll(ctx)
	default:
		return c.Set(ctx, evt.ItemID, Entry{
			Status:   string(evt.Status),
			Progress: evt.Progress,
			Name:     evt.Name,
			Error:    evt.Error,
		})
	}
}
