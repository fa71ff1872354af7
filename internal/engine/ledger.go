package engine

import (
	"context"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Credit 增加金币
func (e *Engine) Credit(ctx context.Context, playerID, amount int64) (models.Balance, error) {
	if amount < 0 {
		return models.Balance{}, ErrInvalidInput
	}
	bal, err := e.store.AdjustBalance(ctx, playerID, amount, 0)
	return bal, notFound(err, ErrPlayerNotFound)
}

// Debit 扣除金币，余额不足时扣到 0 而不报错
func (e *Engine) Debit(ctx context.Context, playerID, amount int64) (models.Balance, error) {
	if amount < 0 {
		return models.Balance{}, ErrInvalidInput
	}
	bal, err := e.store.AdjustBalance(ctx, playerID, -amount, 0)
	return bal, notFound(err, ErrPlayerNotFound)
}

// AdjustPoints 调整积分，下限为 0
func (e *Engine) AdjustPoints(ctx context.Context, playerID, delta int64) (models.Balance, error) {
	bal, err := e.store.AdjustBalance(ctx, playerID, 0, delta)
	return bal, notFound(err, ErrPlayerNotFound)
}

// ClaimStarterPack 领取一次性新手礼包，金额在配置区间内均匀随机
func (e *Engine) ClaimStarterPack(ctx context.Context, id models.Identity, name string) (models.Balance, error) {
	if !id.Owns(name) {
		return models.Balance{}, ErrUnauthorized
	}

	var bal models.Balance
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPlayerByName(ctx, name)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}

		amount := e.starterPackAmount()
		ok, err := tx.ClaimStarterPack(ctx, p.PlayerID, amount)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		if !ok {
			return ErrStarterPackTaken
		}
		bal = models.Balance{PlayerID: p.PlayerID, Money: amount, Points: p.Points}
		return nil
	})
	return bal, err
}

func (e *Engine) starterPackAmount() int64 {
	lo, hi := e.cfg.StarterPackMin, e.cfg.StarterPackMax
	if hi <= lo {
		return lo
	}
	return lo + int64(e.random.IntN(int(hi-lo+1)))
}
