package engine

import (
	"context"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

func TestDebitClampsAtZero(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	p := register(t, e, "alice")

	if _, err := e.Credit(ctx, p.PlayerID, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, err := e.Debit(ctx, p.PlayerID, 1000)
	if err != nil {
		t.Fatalf("expected overdraw to clamp without error, got %v", err)
	}
	if bal.Money != 0 {
		t.Fatalf("expected money 0, got %d", bal.Money)
	}
	bal, err = e.AdjustPoints(ctx, p.PlayerID, -5)
	if err != nil {
		t.Fatalf("adjust points: %v", err)
	}
	if bal.Points != 0 {
		t.Fatalf("expected points 0, got %d", bal.Points)
	}
	_, err = e.Credit(ctx, 404, 1)
	expectErr(t, err, ErrPlayerNotFound)
	_, err = e.Credit(ctx, p.PlayerID, -1)
	expectErr(t, err, ErrInvalidInput)
}

func TestStarterPackIsOneShot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil, WithRandom(&fixedRandom{values: []int{1000}}))
	p := register(t, e, "alice")

	bal, err := e.ClaimStarterPack(ctx, identity(p), "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bal.Money != 2000 {
		t.Fatalf("expected 2000, got %d", bal.Money)
	}

	_, err = e.ClaimStarterPack(ctx, identity(p), "alice")
	expectErr(t, err, ErrStarterPackTaken)
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict kind, got %s", KindOf(err))
	}
	if got := reload(t, e, "alice").Money; got != 2000 {
		t.Fatalf("expected money unchanged at 2000, got %d", got)
	}

	bob := register(t, e, "bob")
	_, err = e.ClaimStarterPack(ctx, identity(bob), "alice")
	expectErr(t, err, ErrUnauthorized)
}

func TestStarterPackWithinRange(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	p := register(t, e, "alice")

	bal, err := e.ClaimStarterPack(ctx, identity(p), "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bal.Money < 1000 || bal.Money > 2000 {
		t.Fatalf("expected money in [1000,2000], got %d", bal.Money)
	}
}
