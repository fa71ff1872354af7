package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// 排行榜Redis键名
const (
	PointsKey = "leaderboard:points"

	// 玩家详细信息键前缀
	PlayerInfoPrefix = "player:info:"

	// 玩家信息缓存时间
	PlayerInfoTTL = 5 * time.Minute

	// 重建时从存储加载的人数
	rebuildLimit = 1000
)

// RedisRanker Redis排行榜，Redis为空或出错时回退到存储
type RedisRanker struct {
	client *redis.Client
	store  storage.PlayerStore
}

// NewRedisRanker 创建Redis排行榜
func NewRedisRanker(client *redis.Client, store storage.PlayerStore) *RedisRanker {
	return &RedisRanker{client: client, store: store}
}

// Record 更新玩家积分与缓存信息
func (r *RedisRanker) Record(ctx context.Context, entry models.LeaderboardEntry) error {
	if err := r.client.ZAdd(ctx, PointsKey, &redis.Z{
		Score:  float64(entry.Points),
		Member: strconv.FormatInt(entry.PlayerID, 10),
	}).Err(); err != nil {
		return fmt.Errorf("更新排行榜失败: %w", err)
	}
	return r.cacheInfo(ctx, entry)
}

// Remove 从排行榜移除玩家
func (r *RedisRanker) Remove(ctx context.Context, playerID int64) error {
	member := strconv.FormatInt(playerID, 10)
	if err := r.client.ZRem(ctx, PointsKey, member).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, PlayerInfoPrefix+member).Err()
}

// Top 获取排行榜
func (r *RedisRanker) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = rebuildLimit
	}

	// 从Redis获取排行榜（按分数降序）
	members, err := r.client.ZRevRangeWithScores(ctx, PointsKey, 0, int64(limit-1)).Result()
	if err != nil {
		log.Printf("读取Redis排行榜失败，回退到数据库: %v", err)
		return r.store.ListLeaderboard(ctx, limit)
	}
	if len(members) == 0 {
		if err := r.Rebuild(ctx); err != nil {
			log.Printf("重建排行榜失败: %v", err)
		}
		return r.store.ListLeaderboard(ctx, limit)
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	for _, member := range members {
		id, ok := member.Member.(string)
		if !ok {
			continue
		}
		playerID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}

		info, err := r.getInfo(ctx, playerID)
		if err != nil {
			// Redis中没有玩家信息，从数据库获取
			p, err := r.store.GetPlayerByID(ctx, playerID)
			if err != nil {
				continue
			}
			info = &models.LeaderboardEntry{PlayerID: p.PlayerID, Name: p.Name, Gender: p.Gender}
			if err := r.cacheInfo(ctx, *info); err != nil {
				log.Printf("缓存玩家信息失败: %v", err)
			}
		}

		info.Points = int64(member.Score)
		info.Rank = len(entries) + 1
		entries = append(entries, *info)
	}
	return entries, nil
}

// Rebuild 从存储重新加载排行榜
func (r *RedisRanker) Rebuild(ctx context.Context) error {
	entries, err := r.store.ListLeaderboard(ctx, rebuildLimit)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, PointsKey).Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := r.Record(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisRanker) cacheInfo(ctx context.Context, entry models.LeaderboardEntry) error {
	key := fmt.Sprintf("%s%d", PlayerInfoPrefix, entry.PlayerID)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, PlayerInfoTTL).Err()
}

func (r *RedisRanker) getInfo(ctx context.Context, playerID int64) (*models.LeaderboardEntry, error) {
	key := fmt.Sprintf("%s%d", PlayerInfoPrefix, playerID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var entry models.LeaderboardEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
