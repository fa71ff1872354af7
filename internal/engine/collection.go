package engine

import (
	"context"
	"errors"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// GrantResult 授予角色的结果
type GrantResult struct {
	Character models.CharacterInstance `json:"character"`
	// IsNew 为 false 表示已拥有，本次为强化
	IsNew bool `json:"isNew"`
	// CollectionCompleted 本次授予解锁了完整图鉴成就
	CollectionCompleted bool `json:"collectionCompleted,omitempty"`
}

func (e *Engine) boost() models.StatBoost {
	return models.StatBoost{
		Health: e.cfg.PowerUpHealth,
		Attack: e.cfg.PowerUpAttack,
		Speed:  e.cfg.PowerUpSpeed,
	}
}

// grantCharacter 已拥有则强化现有实例，否则新建实例追加到收藏末尾
// 调用方需先在同一事务中锁定玩家
func (e *Engine) grantCharacter(ctx context.Context, tx storage.Tx, playerID int64, templateName string) (*GrantResult, error) {
	tmpl, err := tx.GetTemplate(ctx, templateName)
	if err != nil {
		return nil, notFound(err, ErrCharacterNotFound)
	}

	owned, err := tx.FindOwned(ctx, playerID, templateName)
	switch {
	case err == nil:
		return e.powerUp(ctx, tx, owned.InstanceID)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	inst, err := tx.AppendOwned(ctx, playerID, *tmpl)
	if errors.Is(err, storage.ErrConflict) {
		// 并发授予了同一角色
		owned, err := tx.FindOwned(ctx, playerID, templateName)
		if err != nil {
			return nil, err
		}
		return e.powerUp(ctx, tx, owned.InstanceID)
	}
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}

	completed, err := e.afterGrant(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}
	return &GrantResult{Character: *inst, IsNew: true, CollectionCompleted: completed}, nil
}

func (e *Engine) powerUp(ctx context.Context, tx storage.Tx, instanceID int64) (*GrantResult, error) {
	inst, err := tx.PowerUp(ctx, instanceID, e.boost())
	if err != nil {
		return nil, notFound(err, ErrCharacterMissing)
	}
	return &GrantResult{Character: *inst, IsNew: false}, nil
}

// GrantCharacter 向玩家授予角色
func (e *Engine) GrantCharacter(ctx context.Context, playerID int64, templateName string) (*GrantResult, error) {
	var res *GrantResult
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.LockPlayer(ctx, playerID); err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		var err error
		res, err = e.grantCharacter(ctx, tx, playerID, templateName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SelectChampion 选择出战角色
func (e *Engine) SelectChampion(ctx context.Context, id models.Identity, name, characterName string) (*models.SelectedCharacter, error) {
	if !id.Owns(name) {
		return nil, ErrUnauthorized
	}

	var sel models.SelectedCharacter
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPlayerByName(ctx, name)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		owned, err := tx.FindOwned(ctx, p.PlayerID, characterName)
		if err != nil {
			return notFound(err, ErrNotOwned)
		}
		if _, err := tx.GetInstance(ctx, owned.InstanceID); err != nil {
			return notFound(err, ErrCharacterMissing)
		}
		sel = models.SelectedCharacter{Name: owned.Name, InstanceID: owned.InstanceID}
		return tx.SetSelected(ctx, p.PlayerID, sel)
	})
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// ProfileView 玩家本人可见的完整资料
type ProfileView struct {
	*models.Player
	Characters []models.CharacterView `json:"characters"`
}

// Profile 读取本人资料，管理员可读取任意玩家
func (e *Engine) Profile(ctx context.Context, id models.Identity, name string) (*ProfileView, error) {
	if !id.Owns(name) && !id.IsAdmin() {
		return nil, ErrUnauthorized
	}
	p, err := e.store.GetPlayerByName(ctx, name)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}

	view := &ProfileView{Player: p, Characters: make([]models.CharacterView, 0, len(p.Collection.Owned))}
	for _, o := range p.Collection.Owned {
		cv := models.CharacterView{OwnedCharacter: o}
		if inst, err := e.store.GetInstance(ctx, o.InstanceID); err == nil {
			cv.Stats = inst
		}
		view.Characters = append(view.Characters, cv)
	}
	return view, nil
}

// PublicProfile 其他玩家可见的资料
type PublicProfile struct {
	Name         string                     `json:"name"`
	Gender       string                     `json:"gender,omitempty"`
	Points       int64                      `json:"points"`
	Achievements []string                   `json:"achievements"`
	Characters   []models.CharacterTemplate `json:"characters"`
	Friends      []models.FriendSummary     `json:"friends"`
}

// GetPublicProfile 读取公开资料，角色数值取自模板
func (e *Engine) GetPublicProfile(ctx context.Context, name string) (*PublicProfile, error) {
	p, err := e.store.GetPlayerByName(ctx, name)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	friends, err := e.store.ListFriendSummaries(ctx, p.PlayerID)
	if err != nil {
		return nil, err
	}

	out := &PublicProfile{
		Name:         p.Name,
		Gender:       p.Gender,
		Points:       p.Points,
		Achievements: p.Achievements,
		Characters:   make([]models.CharacterTemplate, 0, len(p.Collection.Owned)),
		Friends:      friends,
	}
	for _, o := range p.Collection.Owned {
		tmpl, err := e.store.GetTemplate(ctx, o.Name)
		if err != nil {
			out.Characters = append(out.Characters, models.CharacterTemplate{Name: o.Name})
			continue
		}
		out.Characters = append(out.Characters, *tmpl)
	}
	return out, nil
}
