package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func codeKey(email string) string     { return fmt.Sprintf("otp:code:%s", email) }
func attemptsKey(email string) string { return fmt.Sprintf("otp:attempts:%s", email) }
func cooldownKey(email string) string { return fmt.Sprintf("otp:cooldown:%s", email) }

// RedisStore はRedisを使用したStore実装。
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Save はコードをTTL付きで保存し、失敗回数をリセットする。
func (s *RedisStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codeKey(email), code, ttl)
		pipe.Del(ctx, attemptsKey(email))
		return nil
	})
	return err
}

// Get は保存中のコードを返す。
func (s *RedisStore) Get(ctx context.Context, email string) (string, bool, error) {
	code, err := s.rdb.Get(ctx, codeKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, true, nil
}

// IncrementAttempts は失敗回数を1増やす。カウンタはコードと同じTTLで失効する。
func (s *RedisStore) IncrementAttempts(ctx context.Context, email string, ttl time.Duration) (int, error) {
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey(email))
		pipe.Expire(ctx, attemptsKey(email), ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// Delete はコードと失敗回数を削除する。
func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, codeKey(email), attemptsKey(email)).Err()
}

// StartCooldown は再送信クールダウンを開始する。
func (s *RedisStore) StartCooldown(ctx context.Context, email string, d time.Duration, onlyIfAbsent bool) (bool, error) {
	if d <= 0 {
		return true, nil
	}
	if !onlyIfAbsent {
		if err := s.rdb.Set(ctx, cooldownKey(email), 1, d).Err(); err != nil {
			return false, err
		}
		return true, nil
	}
	return s.rdb.SetNX(ctx, cooldownKey(email), 1, d).Result()
}

// CooldownRemaining はクールダウンの残り時間を返す。キーが存在しない場合は0。
func (s *RedisStore) CooldownRemaining(ctx context.Context, email string) (time.Duration, error) {
	d, err := s.rdb.TTL(ctx, cooldownKey(email)).Result()
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

var _ Store = (*RedisStore)(nil)
