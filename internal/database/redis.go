package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenRedis はREDIS_URL形式（例: "redis://localhost:6379/0"）からRedisクライアントを生成する。
// NewClientは接続を試行しないため、実際の接続確認にはPingを使用すること。
func OpenRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// RedisPinger はredis.ClientをPingContext(ctx) errorの形に適合させる。
// ヘルスチェックでsql.DBと同じインターフェースで扱うために使用する。
type RedisPinger struct {
	Client *redis.Client
}

// PingContext はRedisにPINGを送信する。
func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
