package engine

import (
	"context"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

func TestOpenChestInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store, nil)
	p := register(t, e, "alice")
	if err := store.CreateChest(ctx, models.Chest{Name: "Gold", Price: 5000, Characters: []string{"Ahri"}}); err != nil {
		t.Fatalf("create chest: %v", err)
	}

	res, err := e.OpenChest(ctx, identity(p), "alice", "Gold")
	if err != nil {
		t.Fatalf("expected declined result without error, got %v", err)
	}
	if res.Status != ChestDeclined {
		t.Fatalf("expected declined, got %s", res.Status)
	}
	expectErr(t, res.Err(), ErrInsufficientFunds)

	after := reload(t, e, "alice")
	if after.Money != 0 || len(after.Collection.Owned) != 1 {
		t.Fatalf("expected nothing to change, got money=%d owned=%d", after.Money, len(after.Collection.Owned))
	}
}

func TestOpenChestNotFound(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	p := register(t, e, "alice")
	_, err := e.OpenChest(context.Background(), identity(p), "alice", "Nope")
	expectErr(t, err, ErrChestNotFound)
}

func TestOpenChestNewThenPowerUp(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store, nil)
	p := register(t, e, "alice")
	if err := store.CreateChest(ctx, models.Chest{Name: "Silver", Price: 400, Characters: []string{"Ahri"}}); err != nil {
		t.Fatalf("create chest: %v", err)
	}
	if _, err := e.Credit(ctx, p.PlayerID, 1000); err != nil {
		t.Fatalf("credit: %v", err)
	}

	first, err := e.OpenChest(ctx, identity(p), "alice", "Silver")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if first.Status != ChestOpened || !first.IsNew || first.MoneyLeft != 600 {
		t.Fatalf("expected new Ahri with 600 left, got %+v", first)
	}

	second, err := e.OpenChest(ctx, identity(p), "alice", "Silver")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if second.IsNew {
		t.Fatal("expected power-up on duplicate draw")
	}
	if second.MoneyLeft != 200 {
		t.Fatalf("expected power-up to still cost money, got %d left", second.MoneyLeft)
	}
	if second.Character.InstanceID != first.Character.InstanceID {
		t.Fatalf("expected same instance, got %d and %d", first.Character.InstanceID, second.Character.InstanceID)
	}
	if second.Character.Health != 520 || second.Character.Attack != 220 {
		t.Fatalf("expected boosted stats 520/220, got %v/%v", second.Character.Health, second.Character.Attack)
	}

	after := reload(t, e, "alice")
	if len(after.Collection.Owned) != 2 {
		t.Fatalf("expected roster of 2 after power-up, got %d", len(after.Collection.Owned))
	}
	if len(after.Collection.CharacterList()) != len(after.Collection.CharIDs()) {
		t.Fatal("expected aligned character list and ids")
	}
}

func TestOpenChestUniformDraw(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store, nil, WithRandom(&fixedRandom{values: []int{1}}))
	p := register(t, e, "alice")
	if err := store.CreateChest(ctx, models.Chest{Name: "Mixed", Price: 0, Characters: []string{"Ahri", "Garen"}}); err != nil {
		t.Fatalf("create chest: %v", err)
	}
	res, err := e.OpenChest(ctx, identity(p), "alice", "Mixed")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if res.Character.Template != "Garen" {
		t.Fatalf("expected Garen, got %s", res.Character.Template)
	}
}

func TestCompleteCollectionAchievement(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), func(c *config.GameConfig) { c.RosterSize = 3 })
	p := register(t, e, "alice")

	res, err := e.GrantCharacter(ctx, p.PlayerID, "Ahri")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if res.CollectionCompleted {
		t.Fatal("expected no achievement at 2 characters")
	}
	res, err = e.GrantCharacter(ctx, p.PlayerID, "Garen")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !res.CollectionCompleted {
		t.Fatal("expected achievement at full roster")
	}

	after := reload(t, e, "alice")
	if !after.HasAchievement(models.AchievementCollector) {
		t.Fatalf("expected collector achievement, got %v", after.Achievements)
	}
	ids := after.Collection.CharIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("expected strictly increasing ids, got %v", ids)
		}
	}

	// 再次强化不会重复授予
	if _, err := e.GrantCharacter(ctx, p.PlayerID, "Garen"); err != nil {
		t.Fatalf("power up: %v", err)
	}
	after = reload(t, e, "alice")
	count := 0
	for _, a := range after.Achievements {
		if a == models.AchievementCollector {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected collector once, got %d", count)
	}
}

func TestSelectChampion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	p := register(t, e, "alice")

	_, err := e.SelectChampion(ctx, identity(p), "alice", "Ahri")
	expectErr(t, err, ErrNotOwned)

	if _, err := e.GrantCharacter(ctx, p.PlayerID, "Ahri"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	sel, err := e.SelectChampion(ctx, identity(p), "alice", "Ahri")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	owned, _ := reload(t, e, "alice").Collection.Find("Ahri")
	if sel.InstanceID != owned.InstanceID {
		t.Fatalf("expected instance %d, got %d", owned.InstanceID, sel.InstanceID)
	}

	_, err = e.SelectChampion(ctx, adminID, "alice", "Ahri")
	expectErr(t, err, ErrUnauthorized)
}
