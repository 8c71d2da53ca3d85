package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nightreign-lobby/internal/config"

	"github.com/redis/go-redis/v9"
)

// OpenTestRedis connects to TEST_REDIS_ADDR and returns a client plus a queue
// name unique to the calling test. The queue is deleted on cleanup.
func OpenTestRedis(t *testing.T) (*redis.Client, string) {
	t.Helper()
	cfg, err := config.LoadTestRedis()
	if err != nil {
		t.Skipf("skip test redis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.TestRedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("skip test redis: %v", err)
	}
	queue := fmt.Sprintf("test:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		_ = rdb.Del(context.Background(), queue).Err()
		rdb.Close()
	})
	return rdb, queue
}
