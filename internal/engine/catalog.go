package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// 以下为管理员维护宝箱与角色模板的操作

func requireAdmin(id models.Identity) error {
	if !id.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

func conflict(err error, base *Error) error {
	if errors.Is(err, storage.ErrConflict) {
		return wrap(base, err)
	}
	return err
}

// CreateChest 创建宝箱，角色必须已存在
func (e *Engine) CreateChest(ctx context.Context, id models.Identity, chest models.Chest) (*models.Chest, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(chest.Name) == "" || chest.Price < 0 {
		return nil, ErrInvalidInput
	}

	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		seen := make(map[string]bool, len(chest.Characters))
		unique := chest.Characters[:0:0]
		for _, name := range chest.Characters {
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, err := tx.GetTemplate(ctx, name); err != nil {
				return notFound(err, ErrCharacterNotFound)
			}
			unique = append(unique, name)
		}
		chest.Characters = unique
		return conflict(tx.CreateChest(ctx, chest), ErrChestExists)
	})
	if err != nil {
		return nil, err
	}
	return &chest, nil
}

// DeleteChest 删除宝箱
func (e *Engine) DeleteChest(ctx context.Context, id models.Identity, name string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return notFound(e.store.DeleteChest(ctx, name), ErrChestNotFound)
}

// AddCharacterToChest 向宝箱添加角色
func (e *Engine) AddCharacterToChest(ctx context.Context, id models.Identity, chest, character string) (*models.Chest, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}

	var out *models.Chest
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetTemplate(ctx, character); err != nil {
			return notFound(err, ErrCharacterNotFound)
		}
		if err := tx.AddChestCharacter(ctx, chest, character); err != nil {
			return conflict(notFound(err, ErrChestNotFound), ErrCharacterInChest)
		}
		var err error
		out, err = tx.GetChest(ctx, chest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveCharacter 从宝箱移除角色
func (e *Engine) RemoveCharacter(ctx context.Context, id models.Identity, chest, character string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	removed, err := e.store.RemoveChestCharacter(ctx, chest, character)
	if err != nil {
		return notFound(err, ErrChestNotFound)
	}
	if !removed {
		return ErrCharacterNotFound
	}
	return nil
}

func validTemplate(t models.CharacterTemplate) bool {
	return strings.TrimSpace(t.Name) != "" && t.Health > 0 && t.Attack >= 0 && t.Speed >= 0
}

// CreateCharacter 创建角色模板
func (e *Engine) CreateCharacter(ctx context.Context, id models.Identity, t models.CharacterTemplate) (*models.CharacterTemplate, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if !validTemplate(t) {
		return nil, ErrInvalidInput
	}
	if err := e.store.CreateTemplate(ctx, t); err != nil {
		return nil, conflict(err, ErrCharacterExists)
	}
	return &t, nil
}

// UpdateCharacter 修改角色模板，已发放的实例不受影响
func (e *Engine) UpdateCharacter(ctx context.Context, id models.Identity, t models.CharacterTemplate) (*models.CharacterTemplate, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if !validTemplate(t) {
		return nil, ErrInvalidInput
	}
	if err := e.store.UpdateTemplate(ctx, t); err != nil {
		return nil, notFound(err, ErrCharacterNotFound)
	}
	return &t, nil
}

// ListCharacters 列出角色模板
func (e *Engine) ListCharacters(ctx context.Context) ([]models.CharacterTemplate, error) {
	return e.store.ListTemplates(ctx)
}
