package engine

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

// zsetRanker 与Redis有序集合一样只保存写入过的玩家
type zsetRanker struct {
	mu      sync.Mutex
	entries map[int64]models.LeaderboardEntry
}

func newZsetRanker() *zsetRanker {
	return &zsetRanker{entries: make(map[int64]models.LeaderboardEntry)}
}

func (r *zsetRanker) Record(ctx context.Context, entry models.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.PlayerID] = entry
	return nil
}

func (r *zsetRanker) Remove(ctx context.Context, playerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, playerID)
	return nil
}

func (r *zsetRanker) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LeaderboardEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (r *zsetRanker) get(id int64) (models.LeaderboardEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

func TestRankerFollowsAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	ranker := newZsetRanker()
	e := newTestEngine(t, memory.New(), nil, WithRanker(ranker))

	carol := register(t, e, "carol")
	if entry, ok := ranker.get(carol.PlayerID); !ok || entry.Name != "carol" || entry.Points != 0 {
		t.Fatalf("expected carol on the leaderboard after register, got %+v (%v)", entry, ok)
	}

	admin, err := e.CreateAdmin(ctx, RegisterInput{Name: "root", Email: "root@example.com", PasswordHash: "hash", Gender: "m"})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, ok := ranker.get(admin.PlayerID); ok {
		t.Fatalf("expected admin to stay off the leaderboard")
	}

	if _, err := e.UpdateProfile(ctx, identity(carol), "carol", UpdateInput{Name: "caroline"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if entry, _ := ranker.get(carol.PlayerID); entry.Name != "caroline" {
		t.Fatalf("expected renamed entry, got %q", entry.Name)
	}

	renamed := identity(carol)
	renamed.Name = "caroline"
	if err := e.DeleteAccount(ctx, renamed, "caroline"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := ranker.get(carol.PlayerID); ok {
		t.Fatalf("expected deleted player removed from the leaderboard")
	}
}

func TestTopRankSkipsDeletedLeader(t *testing.T) {
	ctx := context.Background()
	ranker := newZsetRanker()
	e := newTestEngine(t, memory.New(), nil, WithRanker(ranker))
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")

	if _, err := e.AdjustPoints(ctx, alice.PlayerID, 9); err != nil {
		t.Fatalf("points: %v", err)
	}
	if _, err := e.AdjustPoints(ctx, bob.PlayerID, 4); err != nil {
		t.Fatalf("points: %v", err)
	}
	e.afterBattle(ctx, "alice", "bob")

	if err := e.DeleteAccount(ctx, identity(alice), "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	e.afterBattle(ctx, "bob")

	top, err := e.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 1 || top[0].Name != "bob" {
		t.Fatalf("expected only bob, got %+v", top)
	}
	after := reload(t, e, "bob")
	if !containsString(after.Achievements, models.AchievementTopRank) {
		t.Fatalf("expected bob to hold the top rank achievement, got %v", after.Achievements)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
