// Package engine 玩家成长与战斗引擎：余额、收藏、抽卡、好友关系、对战与成就
package engine

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/leaderboard"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Random 均匀随机源
type Random interface {
	// IntN 返回 [0, n) 内的整数
	IntN(n int) int
}

// Notifier 推送玩家通知
type Notifier interface {
	Publish(name, message string)
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int {
	return rand.IntN(n)
}

// Engine 引擎
type Engine struct {
	store    storage.Store
	cfg      config.GameConfig
	random   Random
	ranker   leaderboard.Ranker
	notifier Notifier
	repairs  reconcile.Queue
	now      func() time.Time
}

// Option 引擎配置项
type Option func(*Engine)

// WithRandom 指定随机源
func WithRandom(r Random) Option {
	return func(e *Engine) {
		e.random = r
	}
}

// WithRanker 指定排行榜
func WithRanker(r leaderboard.Ranker) Option {
	return func(e *Engine) {
		e.ranker = r
	}
}

// WithNotifier 指定通知推送
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithRepairQueue 指定双写失败的修复队列
func WithRepairQueue(q reconcile.Queue) Option {
	return func(e *Engine) {
		e.repairs = q
	}
}

// WithClock 指定时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New 创建引擎
func New(store storage.Store, cfg config.GameConfig, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		cfg:     cfg,
		random:  globalRandom{},
		repairs: reconcile.NewMemoryQueue(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ranker == nil {
		e.ranker = leaderboard.NewStoreRanker(store)
	}
	return e
}

// Repairs 返回修复队列
func (e *Engine) Repairs() reconcile.Queue {
	return e.repairs
}

func (e *Engine) publish(name, message string) {
	if e.notifier != nil {
		e.notifier.Publish(name, message)
	}
}

// WriteOutcome 双写结果
type WriteOutcome string

const (
	// OutcomeComplete 两侧均写入
	OutcomeComplete WriteOutcome = "complete"
	// OutcomePartial 一侧失败，已加入修复队列
	OutcomePartial WriteOutcome = "partial"
)

// WriteReport 双写报告
type WriteReport struct {
	Outcome WriteOutcome `json:"outcome"`
	// Repairs 已入队的修复ID
	Repairs []string `json:"repairs,omitempty"`
}

// dualWrite 依次应用每一侧，一侧失败不影响其余侧
func (e *Engine) dualWrite(ctx context.Context, sides ...reconcile.Repair) (WriteReport, error) {
	errs := make([]error, len(sides))
	for i, side := range sides {
		errs[i] = reconcile.Apply(ctx, e.store, side)
	}
	return e.settle(ctx, sides, errs)
}

// settle 汇总各侧写入结果
// 部分失败时失败侧加入修复队列，全部失败时不入队并返回 ErrWriteFailed
func (e *Engine) settle(ctx context.Context, sides []reconcile.Repair, errs []error) (WriteReport, error) {
	report := WriteReport{Outcome: OutcomeComplete}
	var (
		failed   []reconcile.Repair
		firstErr error
	)
	for i, side := range sides {
		if errs[i] == nil {
			continue
		}
		log.Printf("双写失败 (%s): %v", side.Kind, errs[i])
		if firstErr == nil {
			firstErr = errs[i]
		}
		failed = append(failed, side)
	}

	if len(failed) == 0 {
		return report, nil
	}
	if len(failed) == len(sides) {
		return report, wrap(ErrWriteFailed, firstErr)
	}

	report.Outcome = OutcomePartial
	for _, side := range failed {
		side.Attempts = 1
		if err := e.repairs.Push(ctx, side); err != nil {
			log.Printf("加入修复队列失败 %s: %v", side.ID, err)
			continue
		}
		report.Repairs = append(report.Repairs, side.ID)
	}
	return report, nil
}
