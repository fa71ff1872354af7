// Package reconcile 记录双写失败的一侧，并在之后重新应用
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Kind 修复类型
type Kind string

const (
	// KindLinkPut 写入一条好友关系
	KindLinkPut Kind = "link_put"
	// KindLinkTransition 好友关系状态迁移
	KindLinkTransition Kind = "link_transition"
	// KindLinkDelete 删除好友关系
	KindLinkDelete Kind = "link_delete"
	// KindPayout 胜者奖励，玩家不存在时创建存根
	KindPayout Kind = "payout"
	// KindPenalty 败者扣分，玩家不存在时丢弃
	KindPenalty Kind = "penalty"
)

// ErrNotApplied 当前状态不允许应用该修复
var ErrNotApplied = errors.New("修复无法应用")

// Repair 一次待应用的单侧写入
type Repair struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	OwnerID   int64            `json:"owner_id,omitempty"`
	OtherID   int64            `json:"other_id,omitempty"`
	State     models.LinkState `json:"state,omitempty"`
	FromState models.LinkState `json:"from_state,omitempty"`

	Name         string `json:"name,omitempty"`
	Money        int64  `json:"money,omitempty"`
	Points       int64  `json:"points,omitempty"`
	Notification string `json:"notification,omitempty"`
	Achievement  string `json:"achievement,omitempty"`

	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

func newRepair(kind Kind) Repair {
	return Repair{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// LinkPut 构造关系写入
func LinkPut(owner, other int64, state models.LinkState) Repair {
	r := newRepair(KindLinkPut)
	r.OwnerID, r.OtherID, r.State = owner, other, state
	return r
}

// LinkTransition 构造关系迁移
func LinkTransition(owner, other int64, from, to models.LinkState) Repair {
	r := newRepair(KindLinkTransition)
	r.OwnerID, r.OtherID, r.FromState, r.State = owner, other, from, to
	return r
}

// LinkDelete 构造关系删除
func LinkDelete(owner, other int64, state models.LinkState) Repair {
	r := newRepair(KindLinkDelete)
	r.OwnerID, r.OtherID, r.State = owner, other, state
	return r
}

// Payout 构造胜者奖励
func Payout(name string, money, points int64, notification, achievement string) Repair {
	r := newRepair(KindPayout)
	r.Name, r.Money, r.Points = name, money, points
	r.Notification, r.Achievement = notification, achievement
	return r
}

// Penalty 构造败者扣分
func Penalty(name string, points int64, notification string) Repair {
	r := newRepair(KindPenalty)
	r.Name, r.Points, r.Notification = name, points, notification
	return r
}

// Apply 在单个事务中应用修复，重复应用关系类修复不会产生额外效果
func Apply(ctx context.Context, store storage.Store, r Repair) error {
	return store.WithTx(ctx, func(tx storage.Tx) error {
		switch r.Kind {
		case KindLinkPut:
			return tx.PutLink(ctx, r.OwnerID, r.OtherID, r.State)
		case KindLinkTransition:
			return EnsureLink(ctx, tx, r.OwnerID, r.OtherID, r.FromState, r.State)
		case KindLinkDelete:
			return removeLink(ctx, tx, r.OwnerID, r.OtherID, r.State)
		case KindPayout:
			return payout(ctx, tx, r)
		case KindPenalty:
			return penalty(ctx, tx, r)
		default:
			return fmt.Errorf("未知的修复类型: %s", r.Kind)
		}
	})
}

// EnsureLink 将关系从 from 迁移到 to，已处于 to 时视为成功，缺失时直接写入 to
func EnsureLink(ctx context.Context, tx storage.Tx, owner, other int64, from, to models.LinkState) error {
	ok, err := tx.TransitionLink(ctx, owner, other, from, to)
	if err != nil || ok {
		return err
	}
	cur, err := tx.GetLink(ctx, owner, other)
	if err != nil {
		return err
	}
	switch cur {
	case to:
		return nil
	case models.LinkNone:
		return tx.PutLink(ctx, owner, other, to)
	default:
		return fmt.Errorf("%w: 关系 %d->%d 当前为 %s", ErrNotApplied, owner, other, cur)
	}
}

func removeLink(ctx context.Context, tx storage.Tx, owner, other int64, state models.LinkState) error {
	ok, err := tx.DeleteLink(ctx, owner, other, state)
	if err != nil || ok {
		return err
	}
	cur, err := tx.GetLink(ctx, owner, other)
	if err != nil {
		return err
	}
	if cur != models.LinkNone {
		return fmt.Errorf("%w: 关系 %d->%d 当前为 %s", ErrNotApplied, owner, other, cur)
	}
	return nil
}

func payout(ctx context.Context, tx storage.Tx, r Repair) error {
	bal, err := tx.UpsertBalanceByName(ctx, r.Name, r.Money, r.Points)
	if err != nil {
		return err
	}
	if r.Notification != "" {
		if err := tx.SetNotification(ctx, r.Name, r.Notification); err != nil {
			return err
		}
	}
	if r.Achievement != "" {
		if _, err := tx.AddAchievement(ctx, bal.PlayerID, r.Achievement); err != nil {
			return err
		}
	}
	return nil
}

func penalty(ctx context.Context, tx storage.Tx, r Repair) error {
	p, err := tx.GetPlayerByName(ctx, r.Name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.AdjustBalance(ctx, p.PlayerID, 0, -r.Points); err != nil {
		return err
	}
	if r.Notification != "" {
		return tx.SetNotification(ctx, r.Name, r.Notification)
	}
	return nil
}
