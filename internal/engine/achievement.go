package engine

import (
	"context"
	"log"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// 成就只在状态变更之后评估，读操作不授予成就

// afterGrant 收藏达到完整图鉴时授予成就
func (e *Engine) afterGrant(ctx context.Context, tx storage.Tx, playerID int64) (bool, error) {
	n, err := tx.CountOwned(ctx, playerID)
	if err != nil {
		return false, err
	}
	if n < e.cfg.RosterSize {
		return false, nil
	}
	return tx.AddAchievement(ctx, playerID, models.AchievementCollector)
}

// afterAccept 以写入后的好友数判断社交成就
func (e *Engine) afterAccept(ctx context.Context, playerID int64) (bool, error) {
	var granted bool
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		n, err := tx.CountLinks(ctx, playerID, models.LinkFriend)
		if err != nil {
			return err
		}
		if n < e.cfg.SocialThreshold {
			return nil
		}
		granted, err = tx.AddAchievement(ctx, playerID, models.AchievementSocial)
		return err
	})
	return granted, err
}

// syncRank 将玩家当前名字与积分写入排行榜，管理员不上榜，失败只记录日志
func (e *Engine) syncRank(ctx context.Context, p *models.Player) {
	if p.Role != models.RolePlayer {
		return
	}
	entry := models.LeaderboardEntry{PlayerID: p.PlayerID, Name: p.Name, Gender: p.Gender, Points: p.Points}
	if err := e.ranker.Record(ctx, entry); err != nil {
		log.Printf("更新排行榜失败 %s: %v", p.Name, err)
	}
}

// afterBattle 同步排行榜并授予当前第一名成就，失败只记录日志
func (e *Engine) afterBattle(ctx context.Context, names ...string) {
	for _, name := range names {
		p, err := e.store.GetPlayerByName(ctx, name)
		if err != nil {
			continue
		}
		e.syncRank(ctx, p)
	}

	top, err := e.ranker.Top(ctx, 1)
	if err != nil || len(top) == 0 {
		return
	}
	if _, err := e.store.AddAchievement(ctx, top[0].PlayerID, models.AchievementTopRank); err != nil {
		log.Printf("授予排行榜成就失败 %s: %v", top[0].Name, err)
	}
}
