package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Denylist 记录账号删除时间，之前签发的令牌视为失效
type Denylist interface {
	Revoke(ctx context.Context, playerID int64, at time.Time) error
	// RevokedSince 返回失效时间点，未登记时 ok 为 false
	RevokedSince(ctx context.Context, playerID int64) (since time.Time, ok bool, err error)
}

// MemoryDenylist 单进程黑名单
type MemoryDenylist struct {
	mu      sync.RWMutex
	revoked map[int64]time.Time
}

// NewMemoryDenylist 创建内存黑名单
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[int64]time.Time)}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, playerID int64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[playerID] = at
	return nil
}

func (d *MemoryDenylist) RevokedSince(ctx context.Context, playerID int64) (time.Time, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	at, ok := d.revoked[playerID]
	return at, ok, nil
}

// RedisDenylist 多实例共享的黑名单，条目在令牌最长有效期后过期
type RedisDenylist struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDenylist 创建 Redis 黑名单
func NewRedisDenylist(client *redis.Client, prefix string, ttl time.Duration) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDenylist) key(playerID int64) string {
	return d.prefix + strconv.FormatInt(playerID, 10)
}

func (d *RedisDenylist) Revoke(ctx context.Context, playerID int64, at time.Time) error {
	if err := d.client.Set(ctx, d.key(playerID), at.Unix(), d.ttl).Err(); err != nil {
		return fmt.Errorf("写入令牌黑名单失败: %w", err)
	}
	return nil
}

func (d *RedisDenylist) RevokedSince(ctx context.Context, playerID int64) (time.Time, bool, error) {
	sec, err := d.client.Get(ctx, d.key(playerID)).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("读取令牌黑名单失败: %w", err)
	}
	return time.Unix(sec, 0), true, nil
}
