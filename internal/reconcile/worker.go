package reconcile

import (
	"context"
	"log"

	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// DefaultMaxAttempts 超过后丢弃修复
const DefaultMaxAttempts = 5

// Stats 一次排空的统计
type Stats struct {
	Applied  int
	Requeued int
	Dropped  int
}

// Worker 排空修复队列
type Worker struct {
	Queue       Queue
	Store       storage.Store
	MaxAttempts int
}

// Drain 处理当前队列中的全部修复，失败的重新入队，超过次数的丢弃
func (w *Worker) Drain(ctx context.Context) (Stats, error) {
	var stats Stats
	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	// 只处理开始时已在队列中的条目，重新入队的留给下一轮
	n, err := w.Queue.Len(ctx)
	if err != nil {
		return stats, err
	}
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r, err := w.Queue.Pop(ctx)
		if err != nil {
			return stats, err
		}
		if r == nil {
			break
		}

		if err := Apply(ctx, w.Store, *r); err != nil {
			r.Attempts++
			if r.Attempts >= maxAttempts {
				log.Printf("修复 %s (%s) 重试 %d 次后丢弃: %v", r.ID, r.Kind, r.Attempts, err)
				stats.Dropped++
				continue
			}
			if err := w.Queue.Push(ctx, *r); err != nil {
				return stats, err
			}
			stats.Requeued++
			continue
		}
		stats.Applied++
	}
	return stats, nil
}
