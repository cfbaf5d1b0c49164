package services

import (
	"context"
	"encoding/json"
	"fmt"
	"saathi/models"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

const locationHistoryKeyPrefix = "sos:location:"

// RedisLocationTracker keeps the victim trail of an active event in a
// capped Redis list that expires after ttl without updates.
type RedisLocationTracker struct {
	redis     *redis.Client
	ttl       time.Duration
	maxPoints int
}

func NewRedisLocationTracker(client *redis.Client, ttl time.Duration, maxPoints int) *RedisLocationTracker {
	return &RedisLocationTracker{
		redis:     client,
		ttl:       ttl,
		maxPoints: maxPoints,
	}
}

func (t *RedisLocationTracker) Append(ctx context.Context, eventID string, point models.LocationPoint) error {
	payload, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("failed to encode location point: %w", err)
	}

	key := locationHistoryKeyPrefix + eventID
	pipe := t.redis.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(t.maxPoints-1))
	pipe.Expire(ctx, key, t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append location point: %w", err)
	}
	return nil
}

// History returns up to limit points, oldest first.
func (t *RedisLocationTracker) History(ctx context.Context, eventID string, limit int) ([]models.LocationPoint, error) {
	if limit <= 0 || limit > t.maxPoints {
		limit = t.maxPoints
	}

	raw, err := t.redis.LRange(ctx, locationHistoryKeyPrefix+eventID, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read location history: %w", err)
	}

	points := make([]models.LocationPoint, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var point models.LocationPoint
		if err := json.Unmarshal([]byte(raw[i]), &point); err != nil {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

func (t *RedisLocationTracker) Clear(ctx context.Context, eventID string) error {
	return t.redis.Del(ctx, locationHistoryKeyPrefix+eventID).Err()
}

// MemoryLocationTracker is the single-process variant. Trails live in a
// go-cache keyed by event id and expire ttl after their last append; the
// trail is lost on restart. Expired trails are removed by Sweep.
type MemoryLocationTracker struct {
	trails    *gocache.Cache // eventID -> []models.LocationPoint
	maxPoints int
	mu        sync.Mutex
}

func NewMemoryLocationTracker(ttl time.Duration, maxPoints int) *MemoryLocationTracker {
	return &MemoryLocationTracker{
		trails:    gocache.New(ttl, 0),
		maxPoints: maxPoints,
	}
}

func (t *MemoryLocationTracker) Append(ctx context.Context, eventID string, point models.LocationPoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var points []models.LocationPoint
	if value, found := t.trails.Get(eventID); found {
		points = value.([]models.LocationPoint)
	}

	start := 0
	if overflow := len(points) + 1 - t.maxPoints; overflow > 0 {
		start = overflow
	}
	next := make([]models.LocationPoint, 0, len(points)-start+1)
	next = append(next, points[start:]...)
	next = append(next, point)

	t.trails.SetDefault(eventID, next)
	return nil
}

func (t *MemoryLocationTracker) History(ctx context.Context, eventID string, limit int) ([]models.LocationPoint, error) {
	value, found := t.trails.Get(eventID)
	if !found {
		return []models.LocationPoint{}, nil
	}

	points := value.([]models.LocationPoint)
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return append([]models.LocationPoint{}, points...), nil
}

func (t *MemoryLocationTracker) Clear(ctx context.Context, eventID string) error {
	t.trails.Delete(eventID)
	return nil
}

// Sweep drops trails idle for longer than the TTL and reports how many
// were removed.
func (t *MemoryLocationTracker) Sweep(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.trails.ItemCount()
	t.trails.DeleteExpired()
	return before - t.trails.ItemCount(), nil
}
