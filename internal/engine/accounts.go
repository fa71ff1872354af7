package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// RegisterInput 注册参数，密码由网关哈希
type RegisterInput struct {
	Name         string
	Email        string
	PasswordHash string
	Gender       string
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.PasswordHash == "" {
		return ErrInvalidInput
	}
	return nil
}

// Register 注册玩家：余额为 0，获得并出战默认角色，授予新手成就
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*models.Player, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var playerID int64
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		p := &models.Player{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: in.PasswordHash,
			Gender:       in.Gender,
			Role:         models.RolePlayer,
			Achievements: []string{models.AchievementBeginner},
		}
		if err := tx.CreatePlayer(ctx, p); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return ErrNameTaken
			}
			return err
		}
		playerID = p.PlayerID

		grant, err := e.grantCharacter(ctx, tx, p.PlayerID, e.cfg.DefaultCharacter)
		if err != nil {
			return err
		}
		return tx.SetSelected(ctx, p.PlayerID, models.SelectedCharacter{
			Name:       grant.Character.Template,
			InstanceID: grant.Character.InstanceID,
		})
	})
	if err != nil {
		return nil, err
	}
	p, err := e.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	e.syncRank(ctx, p)
	return p, nil
}

// CreateAdmin 创建管理员账号，管理员不参与对战与排行
func (e *Engine) CreateAdmin(ctx context.Context, in RegisterInput) (*models.Player, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &models.Player{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Gender:       in.Gender,
		Role:         models.RoleAdmin,
	}
	if err := e.store.CreatePlayer(ctx, p); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	return p, nil
}

// Authenticate 按邮箱查找账号，密码校验由网关完成
func (e *Engine) Authenticate(ctx context.Context, email string) (*models.Player, error) {
	p, err := e.store.GetPlayerByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, ErrPlayerNotFound)
	}
	return p, nil
}

// UpdateInput 资料修改，空字段保持不变
type UpdateInput struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
}

// UpdateProfile 修改本人资料
func (e *Engine) UpdateProfile(ctx context.Context, id models.Identity, name string, in UpdateInput) (*models.Player, error) {
	if !id.Owns(name) {
		return nil, ErrUnauthorized
	}

	var playerID int64
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPlayerByName(ctx, name)
		if err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
		playerID = p.PlayerID

		newName, email, gender := p.Name, p.Email, p.Gender
		if v := strings.TrimSpace(in.Name); v != "" {
			newName = v
		}
		if v := strings.TrimSpace(in.Email); v != "" {
			email = v
		}
		if v := strings.TrimSpace(in.Gender); v != "" {
			gender = v
		}

		err = tx.UpdatePlayerProfile(ctx, p.PlayerID, newName, email, gender)
		if errors.Is(err, storage.ErrConflict) {
			return ErrNameTaken
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	p, err := e.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	// 改名后刷新排行榜缓存中的名字
	e.syncRank(ctx, p)
	return p, nil
}

// DeleteAccount 删除账号并移出排行榜，对战记录保留
func (e *Engine) DeleteAccount(ctx context.Context, id models.Identity, name string) error {
	if !id.Owns(name) && !id.IsAdmin() {
		return ErrUnauthorized
	}
	p, err := e.store.GetPlayerByName(ctx, name)
	if err != nil {
		return notFound(err, ErrPlayerNotFound)
	}
	if err := e.store.DeletePlayer(ctx, name); err != nil {
		return notFound(err, ErrPlayerNotFound)
	}
	if err := e.ranker.Remove(ctx, p.PlayerID); err != nil {
		log.Printf("移出排行榜失败 %s: %v", name, err)
	}
	return nil
}
