package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"multisend/pkg/logger"
)

const (
	defaultKeyPrefix = "multisend"
	defaultTTL       = 10 * time.Minute
)

// ErrLocked 同一身份已有提交在进行
var ErrLocked = errors.New("guard: another submission holds the lock")

// Option 锁配置
type Option struct {
	KeyPrefix string
	TTL       time.Duration // 需覆盖整个提交过程，进程崩溃后由过期释放
}

// RedisLocker 基于 SET NX PX 的单实例互斥锁，按 (chain, address) 串行化提交
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisLocker 创建提交锁
func NewRedisLocker(rdb *redis.Client, opt Option) *RedisLocker {
	if opt.KeyPrefix == "" {
		opt.KeyPrefix = defaultKeyPrefix
	}
	if opt.TTL <= 0 {
		opt.TTL = defaultTTL
	}
	return &RedisLocker{rdb: rdb, prefix: opt.KeyPrefix, ttl: opt.TTL}
}

// getKey 构造 Redis key，按链与地址区分
func (l *RedisLocker) getKey(chainName, address string) string {
	return fmt.Sprintf("%s:submit:%s:%s", l.prefix, chainName, address)
}

// Lock 获取锁，返回的 unlock 可安全重复调用
func (l *RedisLocker) Lock(ctx context.Context, chainName, address string) (func(context.Context) error, error) {
	key := l.getKey(chainName, address)
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	switch {
	case err != nil:
		return nil, fmt.Errorf("redis setnx error: %w", err)
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	logger.Debugf("[guard] acquired %s ttl=%s", key, l.ttl)

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		n, err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis unlock error: %w", err)
		}
		if n == 0 {
			logger.Warnf("[guard] lock %s expired before release", key)
		}
		return nil
	}, nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("guard: generate lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
