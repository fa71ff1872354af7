package engine

import (
	"context"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

func TestChestAdministration(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	alice := register(t, e, "alice")

	chest := models.Chest{Name: "Bronze", Price: 500, Characters: []string{"Ahri", "Garen", "Ahri"}}
	_, err := e.CreateChest(ctx, identity(alice), chest)
	expectErr(t, err, ErrUnauthorized)

	created, err := e.CreateChest(ctx, adminID, chest)
	if err != nil {
		t.Fatalf("create chest: %v", err)
	}
	if len(created.Characters) != 2 {
		t.Fatalf("expected duplicates dropped, got %v", created.Characters)
	}
	_, err = e.CreateChest(ctx, adminID, chest)
	expectErr(t, err, ErrChestExists)
	_, err = e.CreateChest(ctx, adminID, models.Chest{Name: "Silver", Price: 10, Characters: []string{"Nobody"}})
	expectErr(t, err, ErrCharacterNotFound)
	_, err = e.CreateChest(ctx, adminID, models.Chest{Name: "Broken", Price: -1})
	expectErr(t, err, ErrInvalidInput)

	updated, err := e.AddCharacterToChest(ctx, adminID, "Bronze", "Squire")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := updated.Characters; len(got) != 3 || got[2] != "Squire" {
		t.Fatalf("expected Squire appended, got %v", got)
	}
	_, err = e.AddCharacterToChest(ctx, adminID, "Bronze", "Squire")
	expectErr(t, err, ErrCharacterInChest)
	_, err = e.AddCharacterToChest(ctx, adminID, "Missing", "Squire")
	expectErr(t, err, ErrChestNotFound)

	if err := e.RemoveCharacter(ctx, adminID, "Bronze", "Ahri"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	expectErr(t, e.RemoveCharacter(ctx, adminID, "Bronze", "Ahri"), ErrCharacterNotFound)

	chests, err := e.ListChests(ctx)
	if err != nil || len(chests) != 1 {
		t.Fatalf("expected one chest, got %v, %v", chests, err)
	}
	if got := chests[0].Characters; len(got) != 2 || got[0] != "Garen" || got[1] != "Squire" {
		t.Fatalf("expected [Garen Squire], got %v", got)
	}

	if err := e.DeleteChest(ctx, adminID, "Bronze"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectErr(t, e.DeleteChest(ctx, adminID, "Bronze"), ErrChestNotFound)
}

func TestCharacterTemplateAdministration(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)

	jinx := models.CharacterTemplate{Name: "Jinx", Health: 480, Attack: 130, Speed: 1.2, Type: "Marksman"}
	_, err := e.CreateCharacter(ctx, models.Identity{PlayerID: 1, Name: "alice", Role: models.RolePlayer}, jinx)
	expectErr(t, err, ErrUnauthorized)

	if _, err := e.CreateCharacter(ctx, adminID, jinx); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = e.CreateCharacter(ctx, adminID, jinx)
	expectErr(t, err, ErrCharacterExists)
	_, err = e.CreateCharacter(ctx, adminID, models.CharacterTemplate{Name: "Ghost"})
	expectErr(t, err, ErrInvalidInput)

	jinx.Attack = 140
	if _, err := e.UpdateCharacter(ctx, adminID, jinx); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, err = e.UpdateCharacter(ctx, adminID, models.CharacterTemplate{Name: "Ghost", Health: 1})
	expectErr(t, err, ErrCharacterNotFound)

	list, err := e.ListCharacters(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var found bool
	for _, tmpl := range list {
		if tmpl.Name == "Jinx" {
			found = tmpl.Attack == 140
		}
	}
	if !found || len(list) != len(testTemplates)+1 {
		t.Fatalf("expected updated Jinx among %d templates, got %+v", len(testTemplates)+1, list)
	}
}
