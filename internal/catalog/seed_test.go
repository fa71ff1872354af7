package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

const sample = `
characters:
  - {name: Lillia, health: 500, attack: 100, speed: 1.0, type: Fighter}
  - {name: Garen, health: 650, attack: 80, speed: 0.9, type: Tank}
chests:
  - chest: Bronze
    price: 500
    characters: [Garen]
`

func TestParseRejectsUnknownCharacter(t *testing.T) {
	_, err := Parse([]byte(`
characters:
  - {name: Lillia, health: 500, attack: 100, speed: 1}
chests:
  - {chest: Bronze, price: 10, characters: [Nobody]}
`))
	if err == nil || !strings.Contains(err.Error(), "Nobody") {
		t.Fatalf("expected unknown character error, got %v", err)
	}
}

func TestParseRejectsDuplicateCharacter(t *testing.T) {
	_, err := Parse([]byte(`
characters:
  - {name: Lillia, health: 500, attack: 100, speed: 1}
  - {name: Lillia, health: 400, attack: 100, speed: 1}
`))
	if err == nil {
		t.Fatal("expected duplicate character error")
	}
}

func TestApplyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	seed, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	store := memory.New()

	stats, err := Apply(ctx, store, seed)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.Created != 3 {
		t.Fatalf("expected 3 created, got %+v", stats)
	}

	seed.Characters[0].Health = 550
	stats, err = Apply(ctx, store, seed)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 3 {
		t.Fatalf("expected 3 updated, got %+v", stats)
	}
	tmpl, err := store.GetTemplate(ctx, "Lillia")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if tmpl.Health != 550 {
		t.Fatalf("expected health 550, got %v", tmpl.Health)
	}
	chest, err := store.GetChest(ctx, "Bronze")
	if err != nil {
		t.Fatalf("get chest: %v", err)
	}
	if len(chest.Characters) != 1 || chest.Price != 500 {
		t.Fatalf("unexpected chest %+v", chest)
	}
}

func TestLoadShippedCatalog(t *testing.T) {
	seed, err := Load("../../config/catalog.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(seed.Characters) != 21 {
		t.Fatalf("expected 21 characters, got %d", len(seed.Characters))
	}
	if len(seed.Chests) == 0 {
		t.Fatal("expected chests")
	}
}
