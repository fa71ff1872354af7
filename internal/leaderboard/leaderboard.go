// Package leaderboard 积分排行榜
package leaderboard

import (
	"context"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Ranker 排行榜
type Ranker interface {
	// Record 写入玩家最新积分
	Record(ctx context.Context, entry models.LeaderboardEntry) error
	// Remove 账号删除后移出排行榜
	Remove(ctx context.Context, playerID int64) error
	// Top 按积分降序返回前 limit 名
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// StoreRanker 直接查询存储
type StoreRanker struct {
	store storage.PlayerStore
}

// NewStoreRanker 创建基于存储的排行榜
func NewStoreRanker(store storage.PlayerStore) *StoreRanker {
	return &StoreRanker{store: store}
}

// Record 积分已在存储中，无需额外写入
func (r *StoreRanker) Record(ctx context.Context, entry models.LeaderboardEntry) error {
	return nil
}

// Remove 删除玩家时存储中的记录已一并删除
func (r *StoreRanker) Remove(ctx context.Context, playerID int64) error {
	return nil
}

func (r *StoreRanker) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return r.store.ListLeaderboard(ctx, limit)
}
