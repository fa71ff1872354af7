package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

// fixedRandom 依次返回预设值
type fixedRandom struct {
	values []int
	i      int
}

func (r *fixedRandom) IntN(n int) int {
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.i%len(r.values)]
	r.i++
	return v % n
}

var testTemplates = []models.CharacterTemplate{
	{Name: "Lillia", Health: 500, Attack: 100, Speed: 1, Type: "Fighter"},
	{Name: "Squire", Health: 500, Attack: 50, Speed: 1, Type: "Tank"},
	{Name: "Ahri", Health: 420, Attack: 120, Speed: 1.1, Type: "Mage"},
	{Name: "Garen", Health: 650, Attack: 80, Speed: 0.9, Type: "Tank"},
}

func newTestEngine(t *testing.T, store storage.Store, mutate func(*config.GameConfig), opts ...Option) *Engine {
	t.Helper()
	ctx := context.Background()
	for _, tmpl := range testTemplates {
		if err := store.CreateTemplate(ctx, tmpl); err != nil {
			t.Fatalf("seed template %s: %v", tmpl.Name, err)
		}
	}
	cfg := config.Default().Game
	if mutate != nil {
		mutate(&cfg)
	}
	return New(store, cfg, opts...)
}

func register(t *testing.T, e *Engine, name string) *models.Player {
	t.Helper()
	p, err := e.Register(context.Background(), RegisterInput{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Gender:       "f",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return p
}

func identity(p *models.Player) models.Identity {
	return models.Identity{PlayerID: p.PlayerID, Name: p.Name, Email: p.Email, Role: p.Role}
}

var adminID = models.Identity{PlayerID: 999, Name: "root", Role: models.RoleAdmin}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func reload(t *testing.T, e *Engine, name string) *models.Player {
	t.Helper()
	p, err := e.store.GetPlayerByName(context.Background(), name)
	if err != nil {
		t.Fatalf("reload %s: %v", name, err)
	}
	return p
}

func TestRegisterGrantsDefaultCharacter(t *testing.T) {
	e := newTestEngine(t, memory.New(), nil)
	p := register(t, e, "alice")

	names := p.Collection.CharacterList()
	if len(names) != 1 || names[0] != "Lillia" {
		t.Fatalf("expected [Lillia], got %v", names)
	}
	if p.Money != 0 || p.Points != 0 {
		t.Fatalf("expected zero balance, got %d/%d", p.Money, p.Points)
	}
	if p.Collection.Selected == nil || p.Collection.Selected.Name != "Lillia" {
		t.Fatalf("expected Lillia selected, got %+v", p.Collection.Selected)
	}
	if !p.HasAchievement(models.AchievementBeginner) {
		t.Fatalf("expected beginner achievement, got %v", p.Achievements)
	}
	if p.PlayerID != 1 {
		t.Fatalf("expected player id 1, got %d", p.PlayerID)
	}

	_, err := e.Register(context.Background(), RegisterInput{Name: "alice", Email: "x@example.com", PasswordHash: "h"})
	expectErr(t, err, ErrNameTaken)
}

func TestKindOf(t *testing.T) {
	if KindOf(ErrInsufficientFunds) != KindInsufficientFunds {
		t.Fatalf("expected %s, got %s", KindInsufficientFunds, KindOf(ErrInsufficientFunds))
	}
	wrapped := wrap(ErrPlayerNotFound, storage.ErrNotFound)
	if !errors.Is(wrapped, ErrPlayerNotFound) || !errors.Is(wrapped, storage.ErrNotFound) {
		t.Fatalf("expected wrapped error to match both, got %v", wrapped)
	}
	if KindOf(errors.New("db down")) != "" {
		t.Fatal("expected empty kind for infrastructure error")
	}
}
