package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"boardsync/domain"
	"boardsync/internal/consts"
)

// Cache wraps a Storage implementation with Redis-backed caching for the
// board view reads (card and task listings). Every cached key for a board is
// tracked in a per-board index set so any mutation can evict the whole view.
type Cache struct {
	base  domain.Storage
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base domain.Storage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	return c.base.GetBoard(ctx, boardID)
}

func (c *Cache) InsertBoard(ctx context.Context, b domain.Board) error {
	return c.base.InsertBoard(ctx, b)
}

func (c *Cache) UpdateBoard(ctx context.Context, b domain.Board) error {
	return c.base.UpdateBoard(ctx, b)
}

func (c *Cache) GetCard(ctx context.Context, boardID, cardID string) (*domain.Card, error) {
	return c.base.GetCard(ctx, boardID, cardID)
}

func (c *Cache) ListCards(ctx context.Context, boardID string) ([]domain.Card, error) {
	key := cardsCacheKey(boardID)
	if cards, ok := loadFromCache[[]domain.Card](ctx, c, key); ok {
		return cards, nil
	}

	cards, err := c.base.ListCards(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, boardID, key, cards)
	return cards, nil
}

func (c *Cache) InsertCard(ctx context.Context, card domain.Card) error {
	if err := c.base.InsertCard(ctx, card); err != nil {
		return err
	}
	c.evict(ctx, card.BoardID)
	return nil
}

func (c *Cache) UpdateCard(ctx context.Context, card domain.Card) error {
	if err := c.base.UpdateCard(ctx, card); err != nil {
		return err
	}
	c.evict(ctx, card.BoardID)
	return nil
}

func (c *Cache) DeleteCard(ctx context.Context, boardID, cardID string) error {
	if err := c.base.DeleteCard(ctx, boardID, cardID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) GetTask(ctx context.Context, boardID, taskID string) (*domain.Task, error) {
	return c.base.GetTask(ctx, boardID, taskID)
}

func (c *Cache) ListTasks(ctx context.Context, boardID, cardID string) ([]domain.Task, error) {
	key := tasksCacheKey(boardID, cardID)
	if tasks, ok := loadFromCache[[]domain.Task](ctx, c, key); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, boardID, cardID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, boardID, key, tasks)
	return tasks, nil
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.BoardID)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.BoardID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, boardID, taskID string) error {
	if err := c.base.DeleteTask(ctx, boardID, taskID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func loadFromCache[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	if c.redis == nil {
		return zero, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return zero, false
	}
	var val T
	if err := json.Unmarshal(data, &val); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return zero, false
	}
	return val, true
}

func (c *Cache) store(ctx context.Context, boardID, key string, val any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
	_ = c.redis.SAdd(ctx, indexCacheKey(boardID), key).Err()
	_ = c.redis.Expire(ctx, indexCacheKey(boardID), c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	keys, err := c.redis.SMembers(ctx, indexCacheKey(boardID)).Result()
	if err != nil {
		return
	}
	keys = append(keys, indexCacheKey(boardID))
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func cardsCacheKey(boardID string) string {
	return consts.BoardViewKeyPrefix + boardID + ":cards"
}

func tasksCacheKey(boardID, cardID string) string {
	return consts.BoardViewKeyPrefix + boardID + ":tasks:" + cardID
}

func indexCacheKey(boardID string) string {
	return consts.BoardViewKeyPrefix + boardID + ":keys"
}
