package engine

import (
	"context"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// ChestStatus 开箱状态
type ChestStatus string

const (
	// ChestOpened 已扣款并授予角色
	ChestOpened ChestStatus = "opened"
	// ChestDeclined 余额不足，未做任何修改
	ChestDeclined ChestStatus = "declined"
)

// ChestResult 开箱结果
type ChestResult struct {
	Status    ChestStatus               `json:"status"`
	Chest     string                    `json:"chest"`
	Price     int64                     `json:"price"`
	Character *models.CharacterInstance `json:"character,omitempty"`
	IsNew     bool                      `json:"isNew"`
	MoneyLeft int64                     `json:"money"`

	CollectionCompleted bool `json:"collectionCompleted,omitempty"`
}

// Err 余额不足时返回 ErrInsufficientFunds
func (r *ChestResult) Err() error {
	if r.Status == ChestDeclined {
		return ErrInsufficientFunds
	}
	return nil
}

// OpenChest 购买宝箱：余额不足时返回 declined 结果，不视为错误
// 抽中已拥有的角色时照常扣款并强化
func (e *Engine) OpenChest(ctx context.Context, id models.Identity, playerName, chestName string) (*ChestResult, error) {
	if !id.Owns(playerName) {
		return nil, ErrUnauthorized
	}

	var res *ChestResult
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPlayerByName(ctx, playerName)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		if p, err = tx.LockPlayer(ctx, p.PlayerID); err != nil {
			return notFound(err, ErrPlayerNotFound)
		}

		chest, err := tx.GetChest(ctx, chestName)
		if err != nil {
			return notFound(err, ErrChestNotFound)
		}
		if p.Money < chest.Price {
			res = &ChestResult{Status: ChestDeclined, Chest: chest.Name, Price: chest.Price, MoneyLeft: p.Money}
			return nil
		}
		if len(chest.Characters) == 0 {
			return ErrEmptyChest
		}

		drawn := chest.Characters[e.random.IntN(len(chest.Characters))]

		bal, ok, err := tx.DebitIfAffordable(ctx, p.PlayerID, chest.Price)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		if !ok {
			res = &ChestResult{Status: ChestDeclined, Chest: chest.Name, Price: chest.Price, MoneyLeft: bal.Money}
			return nil
		}

		grant, err := e.grantCharacter(ctx, tx, p.PlayerID, drawn)
		if err != nil {
			return err
		}
		res = &ChestResult{
			Status:              ChestOpened,
			Chest:               chest.Name,
			Price:               chest.Price,
			Character:           &grant.Character,
			IsNew:               grant.IsNew,
			MoneyLeft:           bal.Money,
			CollectionCompleted: grant.CollectionCompleted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListChests 列出所有宝箱
func (e *Engine) ListChests(ctx context.Context) ([]models.Chest, error) {
	return e.store.ListChests(ctx)
}
