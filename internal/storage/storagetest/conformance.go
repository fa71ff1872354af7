// Package storagetest 提供所有存储实现共用的行为测试
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Factory 为每个子测试创建一个空存储
type Factory func(t *testing.T) storage.Store

// RunConformance 对存储实现执行统一的行为测试
func RunConformance(t *testing.T, open Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"PlayerIDsAreMaxPlusOne", testPlayerIDs},
		{"UniqueNameAndEmail", testUniqueNameAndEmail},
		{"BalanceNeverNegative", testBalanceClamp},
		{"DebitIfAffordable", testDebitIfAffordable},
		{"StarterPackOneShot", testStarterPackOneShot},
		{"UpsertCreatesStub", testUpsertCreatesStub},
		{"OwnedSequenceIsOrdered", testOwnedSequence},
		{"PowerUpKeepsRoster", testPowerUp},
		{"ChestCharacters", testChestCharacters},
		{"FriendLinks", testFriendLinks},
		{"BattleRecords", testBattleRecords},
		{"AchievementsAreASet", testAchievements},
		{"LeaderboardOrder", testLeaderboard},
		{"SampleOpponentSkipsAdmins", testSampleOpponent},
		{"TxRollback", testTxRollback},
		{"DeletePlayerKeepsRecords", testDeletePlayer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

func createPlayer(t *testing.T, s storage.Store, name string) *models.Player {
	t.Helper()
	p := &models.Player{Name: name, Email: name + "@example.com", Role: models.RolePlayer}
	if err := s.CreatePlayer(context.Background(), p); err != nil {
		t.Fatalf("create player %s: %v", name, err)
	}
	return p
}

func testPlayerIDs(t *testing.T, s storage.Store) {
	a := createPlayer(t, s, "alice")
	b := createPlayer(t, s, "bob")
	if a.PlayerID != 1 || b.PlayerID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a.PlayerID, b.PlayerID)
	}
	got, err := s.GetPlayerByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.PlayerID != b.PlayerID {
		t.Fatalf("expected player %d, got %d", b.PlayerID, got.PlayerID)
	}
}

func testUniqueNameAndEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	createPlayer(t, s, "alice")

	dup := &models.Player{Name: "alice", Email: "other@example.com", Role: models.RolePlayer}
	if err := s.CreatePlayer(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
	dup = &models.Player{Name: "other", Email: "alice@example.com", Role: models.RolePlayer}
	if err := s.CreatePlayer(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
	if _, err := s.GetPlayerByName(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testBalanceClamp(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")

	bal, err := s.AdjustBalance(ctx, p.PlayerID, 100, 2)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal.Money != 100 || bal.Points != 2 {
		t.Fatalf("expected 100/2, got %d/%d", bal.Money, bal.Points)
	}
	bal, err = s.AdjustBalance(ctx, p.PlayerID, -500, -10)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal.Money != 0 || bal.Points != 0 {
		t.Fatalf("expected clamp to 0/0, got %d/%d", bal.Money, bal.Points)
	}
	if _, err := s.AdjustBalance(ctx, 999, 1, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testDebitIfAffordable(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")
	if _, err := s.AdjustBalance(ctx, p.PlayerID, 300, 0); err != nil {
		t.Fatalf("credit: %v", err)
	}

	bal, ok, err := s.DebitIfAffordable(ctx, p.PlayerID, 500)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if ok || bal.Money != 300 {
		t.Fatalf("expected declined debit with money 300, got ok=%v money=%d", ok, bal.Money)
	}
	bal, ok, err = s.DebitIfAffordable(ctx, p.PlayerID, 300)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !ok || bal.Money != 0 {
		t.Fatalf("expected debit to 0, got ok=%v money=%d", ok, bal.Money)
	}
}

func testStarterPackOneShot(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")

	ok, err := s.ClaimStarterPack(ctx, p.PlayerID, 1500)
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = s.ClaimStarterPack(ctx, p.PlayerID, 1800)
	if err != nil || ok {
		t.Fatalf("expected second claim to be refused, got ok=%v err=%v", ok, err)
	}
	got, err := s.GetPlayerByID(ctx, p.PlayerID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Money != 1500 || !got.StarterPackTaken {
		t.Fatalf("expected money 1500 and pack taken, got %d %v", got.Money, got.StarterPackTaken)
	}
}

func testUpsertCreatesStub(t *testing.T, s storage.Store) {
	ctx := context.Background()
	createPlayer(t, s, "alice")

	bal, err := s.UpsertBalanceByName(ctx, "ghost", 500, 3)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if bal.Money != 500 || bal.Points != 3 || bal.PlayerID != 2 {
		t.Fatalf("expected stub 2 with 500/3, got %+v", bal)
	}
	ghost, err := s.GetPlayerByName(ctx, "ghost")
	if err != nil {
		t.Fatalf("get stub: %v", err)
	}
	if ghost.Email != "" {
		t.Fatalf("expected empty email on stub, got %q", ghost.Email)
	}
}

func testOwnedSequence(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createPlayer(t, s, "alice")
	b := createPlayer(t, s, "bob")

	var last int64
	for i, name := range []string{"Lillia", "Ahri", "Garen"} {
		owner := a.PlayerID
		if i == 1 {
			owner = b.PlayerID
		}
		inst, err := s.AppendOwned(ctx, owner, models.CharacterTemplate{Name: name, Health: 100, Attack: 10, Speed: 1})
		if err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
		if inst.InstanceID <= last {
			t.Fatalf("expected increasing instance ids, got %d after %d", inst.InstanceID, last)
		}
		last = inst.InstanceID
	}
	if _, err := s.AppendOwned(ctx, a.PlayerID, models.CharacterTemplate{Name: "Lillia"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate template, got %v", err)
	}

	got, err := s.GetPlayerByID(ctx, a.PlayerID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	names := got.Collection.CharacterList()
	ids := got.Collection.CharIDs()
	if len(names) != 2 || names[0] != "Lillia" || names[1] != "Garen" {
		t.Fatalf("expected [Lillia Garen], got %v", names)
	}
	if len(ids) != len(names) || ids[0] >= ids[1] {
		t.Fatalf("expected aligned increasing ids, got %v", ids)
	}
	if n, _ := s.CountOwned(ctx, a.PlayerID); n != 2 {
		t.Fatalf("expected 2 owned, got %d", n)
	}

	owned, err := s.FindOwned(ctx, a.PlayerID, "Garen")
	if err != nil {
		t.Fatalf("find owned: %v", err)
	}
	if err := s.SetSelected(ctx, a.PlayerID, models.SelectedCharacter{Name: owned.Name, InstanceID: owned.InstanceID}); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, _ = s.GetPlayerByID(ctx, a.PlayerID)
	if got.Collection.Selected == nil || got.Collection.Selected.InstanceID != owned.InstanceID {
		t.Fatalf("expected selected %d, got %+v", owned.InstanceID, got.Collection.Selected)
	}
}

func testPowerUp(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")
	inst, err := s.AppendOwned(ctx, p.PlayerID, models.CharacterTemplate{Name: "Lillia", Health: 500, Attack: 100, Speed: 1})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	boosted, err := s.PowerUp(ctx, inst.InstanceID, models.StatBoost{Health: 100, Attack: 100, Speed: 0.1})
	if err != nil {
		t.Fatalf("power up: %v", err)
	}
	if boosted.Health != 600 || boosted.Attack != 200 {
		t.Fatalf("expected 600/200, got %v/%v", boosted.Health, boosted.Attack)
	}
	if n, _ := s.CountOwned(ctx, p.PlayerID); n != 1 {
		t.Fatalf("expected roster of 1, got %d", n)
	}
	if _, err := s.PowerUp(ctx, 12345, models.StatBoost{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testChestCharacters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.CreateChest(ctx, models.Chest{Name: "gold", Price: 1000, Characters: []string{"Ahri", "Garen"}}); err != nil {
		t.Fatalf("create chest: %v", err)
	}
	if err := s.CreateChest(ctx, models.Chest{Name: "gold"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.AddChestCharacter(ctx, "gold", "Lux"); err != nil {
		t.Fatalf("add character: %v", err)
	}
	if err := s.AddChestCharacter(ctx, "gold", "Lux"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	removed, err := s.RemoveChestCharacter(ctx, "gold", "Ahri")
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	chest, err := s.GetChest(ctx, "gold")
	if err != nil {
		t.Fatalf("get chest: %v", err)
	}
	if len(chest.Characters) != 2 || chest.Characters[0] != "Garen" || chest.Characters[1] != "Lux" {
		t.Fatalf("expected [Garen Lux], got %v", chest.Characters)
	}
	if err := s.DeleteChest(ctx, "gold"); err != nil {
		t.Fatalf("delete chest: %v", err)
	}
	if _, err := s.GetChest(ctx, "gold"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testFriendLinks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createPlayer(t, s, "alice")
	b := createPlayer(t, s, "bob")

	if err := s.PutLink(ctx, a.PlayerID, b.PlayerID, models.LinkSent); err != nil {
		t.Fatalf("put sent: %v", err)
	}
	if err := s.PutLink(ctx, a.PlayerID, b.PlayerID, models.LinkSent); err != nil {
		t.Fatalf("expected idempotent put, got %v", err)
	}
	if err := s.PutLink(ctx, a.PlayerID, b.PlayerID, models.LinkFriend); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.PutLink(ctx, b.PlayerID, a.PlayerID, models.LinkPending); err != nil {
		t.Fatalf("put pending: %v", err)
	}

	ok, err := s.TransitionLink(ctx, b.PlayerID, a.PlayerID, models.LinkSent, models.LinkFriend)
	if err != nil || ok {
		t.Fatalf("expected no transition from wrong state, got %v %v", ok, err)
	}
	for _, pair := range [][2]int64{{a.PlayerID, b.PlayerID}, {b.PlayerID, a.PlayerID}} {
		from := models.LinkSent
		if pair[0] == b.PlayerID {
			from = models.LinkPending
		}
		ok, err := s.TransitionLink(ctx, pair[0], pair[1], from, models.LinkFriend)
		if err != nil || !ok {
			t.Fatalf("transition %v: %v %v", pair, ok, err)
		}
	}

	got, _ := s.GetPlayerByID(ctx, a.PlayerID)
	if len(got.Friends.FriendList) != 1 || got.Friends.FriendList[0] != b.PlayerID {
		t.Fatalf("expected friend %d, got %v", b.PlayerID, got.Friends.FriendList)
	}
	if len(got.Friends.SentRequests) != 0 {
		t.Fatalf("expected no sent requests, got %v", got.Friends.SentRequests)
	}
	if n, _ := s.CountLinks(ctx, b.PlayerID, models.LinkFriend); n != 1 {
		t.Fatalf("expected 1 friend, got %d", n)
	}
	summaries, err := s.ListFriendSummaries(ctx, b.PlayerID)
	if err != nil || len(summaries) != 1 || summaries[0].Name != "alice" {
		t.Fatalf("expected alice in summaries, got %v %v", summaries, err)
	}

	deleted, err := s.DeleteLink(ctx, a.PlayerID, b.PlayerID, models.LinkFriend)
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	state, _ := s.GetLink(ctx, a.PlayerID, b.PlayerID)
	if state != models.LinkNone {
		t.Fatalf("expected no link, got %q", state)
	}
	if err := s.PutLink(ctx, a.PlayerID, 999, models.LinkSent); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testBattleRecords(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	records := []models.BattleRecord{
		{ID: "r1", Attacker: "alice", Defender: "bob", BattleRound: 5, Winner: "alice", Date: base},
		{ID: "r2", Attacker: "bob", Defender: "alice", BattleRound: 3, Winner: "alice", Date: base.Add(time.Minute)},
		{ID: "r3", Attacker: "carol", Defender: "dave", BattleRound: 2, Winner: "dave", Date: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := s.AppendBattleRecord(ctx, r); err != nil {
			t.Fatalf("append %s: %v", r.ID, err)
		}
	}
	got, err := s.ListBattleRecords(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("expected [r1 r2], got %+v", got)
	}
	if !got[0].Date.Equal(base) {
		t.Fatalf("expected date %v, got %v", base, got[0].Date)
	}
	n, err := s.PurgeBattleRecords(ctx, "alice")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged, got %d %v", n, err)
	}
	got, _ = s.ListBattleRecords(ctx, "alice")
	if len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("expected [r2] after purge, got %+v", got)
	}
}

func testAchievements(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")
	added, err := s.AddAchievement(ctx, p.PlayerID, models.AchievementFirstWin)
	if err != nil || !added {
		t.Fatalf("expected first grant, got %v %v", added, err)
	}
	added, err = s.AddAchievement(ctx, p.PlayerID, models.AchievementFirstWin)
	if err != nil || added {
		t.Fatalf("expected no-op regrant, got %v %v", added, err)
	}
	got, _ := s.GetPlayerByID(ctx, p.PlayerID)
	if len(got.Achievements) != 1 {
		t.Fatalf("expected one achievement, got %v", got.Achievements)
	}
}

func testLeaderboard(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i, name := range []string{"alice", "bob", "carol"} {
		p := createPlayer(t, s, name)
		if _, err := s.AdjustBalance(ctx, p.PlayerID, 0, int64(10*(i%2)+i)); err != nil {
			t.Fatalf("points: %v", err)
		}
	}
	admin := &models.Player{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin, Points: 1000}
	if err := s.CreatePlayer(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	entries, err := s.ListLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "bob" || entries[0].Rank != 1 || entries[1].Name != "carol" {
		t.Fatalf("expected bob then carol, got %+v", entries)
	}
	top, _ := s.ListLeaderboard(ctx, 1)
	if len(top) != 1 {
		t.Fatalf("expected limit 1, got %d", len(top))
	}
}

func testSampleOpponent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createPlayer(t, s, "alice")
	admin := &models.Player{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin}
	if err := s.CreatePlayer(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := s.SampleOpponent(ctx, a.PlayerID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without opponents, got %v", err)
	}
	b := createPlayer(t, s, "bob")
	for i := 0; i < 5; i++ {
		got, err := s.SampleOpponent(ctx, a.PlayerID)
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		if got.PlayerID != b.PlayerID {
			t.Fatalf("expected bob, got %s", got.Name)
		}
	}
}

func testTxRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := createPlayer(t, s, "alice")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.AdjustBalance(ctx, p.PlayerID, 700, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.GetPlayerByID(ctx, p.PlayerID)
	if got.Money != 0 {
		t.Fatalf("expected rollback to 0, got %d", got.Money)
	}

	err = s.WithTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AdjustBalance(ctx, p.PlayerID, 700, 0)
		return err
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ = s.GetPlayerByID(ctx, p.PlayerID)
	if got.Money != 700 {
		t.Fatalf("expected 700 after commit, got %d", got.Money)
	}
}

func testDeletePlayer(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := createPlayer(t, s, "alice")
	b := createPlayer(t, s, "bob")
	if err := s.PutLink(ctx, b.PlayerID, a.PlayerID, models.LinkFriend); err != nil {
		t.Fatalf("put link: %v", err)
	}
	rec := models.BattleRecord{ID: "r1", Attacker: "alice", Defender: "bob", BattleRound: 1, Winner: "alice", Date: time.Now()}
	if err := s.AppendBattleRecord(ctx, rec); err != nil {
		t.Fatalf("append record: %v", err)
	}

	if err := s.DeletePlayer(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeletePlayer(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	records, _ := s.ListBattleRecords(ctx, "alice")
	if len(records) != 1 {
		t.Fatalf("expected battle record to remain, got %d", len(records))
	}
	got, _ := s.GetPlayerByID(ctx, b.PlayerID)
	if len(got.Friends.FriendList) != 0 {
		t.Fatalf("expected dangling link removed, got %v", got.Friends.FriendList)
	}
}
