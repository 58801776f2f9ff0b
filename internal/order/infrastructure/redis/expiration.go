package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ExpirationMarker flags pending orders in Redis for the length of their
// hold window.
type ExpirationMarker struct {
	rdb goredis.Cmdable
}

func NewExpirationMarker(rdb goredis.Cmdable) *ExpirationMarker {
	return &ExpirationMarker{rdb: rdb}
}

func Key(orderID string) string {
	return fmt.Sprintf("order:%s:expiration", orderID)
}

func (m *ExpirationMarker) Set(ctx context.Context, orderID string, ttl time.Duration) error {
	return m.rdb.Set(ctx, Key(orderID), "pending", ttl).Err()
}

func (m *ExpirationMarker) Clear(ctx context.Context, orderID string) error {
	return m.rdb.Del(ctx, Key(orderID)).Err()
}

// Pending reports whether the order's marker is still live.
func (m *ExpirationMarker) Pending(ctx context.Context, orderID string) (bool, error) {
	n, err := m.rdb.Exists(ctx, Key(orderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
