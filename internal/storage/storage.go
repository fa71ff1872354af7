// Package storage 定义玩家、角色、宝箱、好友关系与对战记录的持久化契约
package storage

import (
	"context"
	"errors"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// ErrConflict 唯一约束冲突
var ErrConflict = errors.New("记录已存在")

// PlayerStore 玩家账号
type PlayerStore interface {
	// CreatePlayer 插入玩家并分配 player_id = max(existing)+1
	CreatePlayer(ctx context.Context, p *models.Player) error
	// GetPlayerByID 读取玩家（含收藏、好友、成就）
	GetPlayerByID(ctx context.Context, playerID int64) (*models.Player, error)
	GetPlayerByName(ctx context.Context, name string) (*models.Player, error)
	GetPlayerByEmail(ctx context.Context, email string) (*models.Player, error)
	// LockPlayer 在事务内锁定玩家行后读取
	LockPlayer(ctx context.Context, playerID int64) (*models.Player, error)
	UpdatePlayerProfile(ctx context.Context, playerID int64, name, email, gender string) error
	DeletePlayer(ctx context.Context, name string) error
	// SampleOpponent 从普通玩家中均匀随机取一个，排除 excludeID
	SampleOpponent(ctx context.Context, excludeID int64) (*models.Player, error)
	// ListLeaderboard 按积分降序
	ListLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	SetNotification(ctx context.Context, name, message string) error
}

// LedgerStore 余额与积分，所有写操作在语句内钳制到 0
type LedgerStore interface {
	AdjustBalance(ctx context.Context, playerID int64, money, points int64) (models.Balance, error)
	// DebitIfAffordable 余额不低于 amount 时扣款，否则返回 ok=false 且不修改
	DebitIfAffordable(ctx context.Context, playerID int64, amount int64) (models.Balance, bool, error)
	// UpsertBalanceByName 按名字调整余额，玩家不存在时创建最小存根
	UpsertBalanceByName(ctx context.Context, name string, money, points int64) (models.Balance, error)
	// ClaimStarterPack 仅当尚未领取时设置余额，返回是否领取成功
	ClaimStarterPack(ctx context.Context, playerID int64, amount int64) (bool, error)
}

// CollectionStore 玩家收藏与角色实例
type CollectionStore interface {
	FindOwned(ctx context.Context, playerID int64, name string) (*models.OwnedCharacter, error)
	// AppendOwned 以模板创建新实例（ID取自全局单调序列）并追加到收藏末尾
	AppendOwned(ctx context.Context, playerID int64, tmpl models.CharacterTemplate) (*models.CharacterInstance, error)
	PowerUp(ctx context.Context, instanceID int64, boost models.StatBoost) (*models.CharacterInstance, error)
	CountOwned(ctx context.Context, playerID int64) (int, error)
	SetSelected(ctx context.Context, playerID int64, sel models.SelectedCharacter) error
	GetInstance(ctx context.Context, instanceID int64) (*models.CharacterInstance, error)
}

// CatalogStore 角色模板与宝箱
type CatalogStore interface {
	CreateTemplate(ctx context.Context, t models.CharacterTemplate) error
	UpdateTemplate(ctx context.Context, t models.CharacterTemplate) error
	GetTemplate(ctx context.Context, name string) (*models.CharacterTemplate, error)
	DeleteTemplate(ctx context.Context, name string) error
	ListTemplates(ctx context.Context) ([]models.CharacterTemplate, error)

	CreateChest(ctx context.Context, c models.Chest) error
	GetChest(ctx context.Context, name string) (*models.Chest, error)
	ListChests(ctx context.Context) ([]models.Chest, error)
	DeleteChest(ctx context.Context, name string) error
	AddChestCharacter(ctx context.Context, chest, character string) error
	RemoveChestCharacter(ctx context.Context, chest, character string) (bool, error)
}

// FriendStore 有向好友关系，每个 (owner, other) 至多一行
type FriendStore interface {
	GetLink(ctx context.Context, ownerID, otherID int64) (models.LinkState, error)
	// PutLink 写入关系；已存在同状态时为空操作
	PutLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) error
	// TransitionLink 仅当当前状态为 from 时改为 to
	TransitionLink(ctx context.Context, ownerID, otherID int64, from, to models.LinkState) (bool, error)
	// DeleteLink 仅当当前状态为 state 时删除
	DeleteLink(ctx context.Context, ownerID, otherID int64, state models.LinkState) (bool, error)
	CountLinks(ctx context.Context, ownerID int64, state models.LinkState) (int, error)
	ListFriendSummaries(ctx context.Context, ownerID int64) ([]models.FriendSummary, error)
}

// BattleStore 对战记录
type BattleStore interface {
	AppendBattleRecord(ctx context.Context, rec models.BattleRecord) error
	ListBattleRecords(ctx context.Context, name string) ([]models.BattleRecord, error)
	PurgeBattleRecords(ctx context.Context, attacker string) (int64, error)
}

// AchievementStore 成就集合
type AchievementStore interface {
	// AddAchievement 集合语义，已拥有时返回 false
	AddAchievement(ctx context.Context, playerID int64, id string) (bool, error)
}

// Tx 一次逻辑事务内可用的全部操作
type Tx interface {
	PlayerStore
	LedgerStore
	CollectionStore
	CatalogStore
	FriendStore
	BattleStore
	AchievementStore
}

// Store 存储实现
type Store interface {
	Tx
	// WithTx 在单个事务中执行 fn，fn 返回错误时回滚
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
