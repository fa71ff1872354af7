package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// DefaultQueueKey Redis中修复队列的键名
const DefaultQueueKey = "reconcile:repairs"

// Queue 修复队列，Pop 在队列为空时返回 nil
type Queue interface {
	Push(ctx context.Context, r Repair) error
	Pop(ctx context.Context) (*Repair, error)
	Len(ctx context.Context) (int64, error)
}

// MemoryQueue 进程内队列
type MemoryQueue struct {
	mu    sync.Mutex
	items []Repair
}

// NewMemoryQueue 创建进程内队列
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(ctx context.Context, r Repair) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (*Repair, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	r := q.items[0]
	q.items = q.items[1:]
	return &r, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// RedisQueue 基于Redis列表的队列，多个实例共享
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue 创建Redis队列
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, r Repair) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("序列化修复失败: %w", err)
	}
	return q.client.RPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (*Repair, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Repair
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("解析修复失败: %w", err)
	}
	return &r, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
