package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist は失効済みリフレッシュトークン（jti）の管理インターフェース。
type TokenBlacklist interface {
	// Revoke はjtiをuntilまで失効させる。既に失効済みの場合はfalseを返す。
	Revoke(ctx context.Context, jti string, until time.Time) (bool, error)
}

func blacklistKey(jti string) string { return fmt.Sprintf("auth:blacklist:%s", jti) }

// RedisTokenBlacklist はRedisを使用したTokenBlacklist実装。
// キーのTTLはトークンの有効期限までとし、期限後は自然に消える。
type RedisTokenBlacklist struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRedisTokenBlacklist はRedisTokenBlacklistを生成する。
func NewRedisTokenBlacklist(rdb redis.Cmdable) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{rdb: rdb, now: time.Now}
}

// Revoke はSET NXでjtiを登録する。同じトークンでの並行リフレッシュは1つだけが成功する。
func (b *RedisTokenBlacklist) Revoke(ctx context.Context, jti string, until time.Time) (bool, error) {
	ttl := until.Sub(b.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := b.rdb.SetNX(ctx, blacklistKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return ok, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)
