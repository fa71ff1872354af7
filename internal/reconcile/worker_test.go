package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

func seedPlayers(t *testing.T, s storage.Store, names ...string) []*models.Player {
	t.Helper()
	var out []*models.Player
	for _, name := range names {
		p := &models.Player{Name: name, Email: name + "@example.com", Role: models.RolePlayer}
		if err := s.CreatePlayer(context.Background(), p); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		out = append(out, p)
	}
	return out
}

func TestMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	first := LinkPut(1, 2, models.LinkSent)
	second := LinkPut(2, 1, models.LinkPending)
	_ = q.Push(ctx, first)
	_ = q.Push(ctx, second)

	got, err := q.Pop(ctx)
	if err != nil || got == nil || got.ID != first.ID {
		t.Fatalf("expected first repair, got %+v %v", got, err)
	}
	got, _ = q.Pop(ctx)
	if got == nil || got.ID != second.ID {
		t.Fatalf("expected second repair, got %+v", got)
	}
	got, err = q.Pop(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty queue, got %+v %v", got, err)
	}
}

func TestEnsureLinkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	players := seedPlayers(t, s, "alice", "bob")
	a, b := players[0].PlayerID, players[1].PlayerID

	r := LinkTransition(a, b, models.LinkSent, models.LinkFriend)
	for i := 0; i < 2; i++ {
		if err := Apply(ctx, s, r); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	state, _ := s.GetLink(ctx, a, b)
	if state != models.LinkFriend {
		t.Fatalf("expected friend, got %q", state)
	}

	if err := s.PutLink(ctx, b, a, models.LinkSent); err != nil {
		t.Fatalf("put: %v", err)
	}
	err := Apply(ctx, s, LinkTransition(b, a, models.LinkPending, models.LinkFriend))
	if !errors.Is(err, ErrNotApplied) {
		t.Fatalf("expected ErrNotApplied, got %v", err)
	}
}

func TestPayoutCreatesStubAndPenaltySkipsMissing(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedPlayers(t, s, "alice")

	if err := Apply(ctx, s, Payout("ghost", 500, 3, "won", models.AchievementFirstWin)); err != nil {
		t.Fatalf("payout: %v", err)
	}
	ghost, err := s.GetPlayerByName(ctx, "ghost")
	if err != nil {
		t.Fatalf("get ghost: %v", err)
	}
	if ghost.Money != 500 || ghost.Points != 3 || !ghost.HasAchievement(models.AchievementFirstWin) {
		t.Fatalf("unexpected stub %+v", ghost)
	}
	if ghost.Notification != "won" {
		t.Fatalf("expected notification, got %q", ghost.Notification)
	}

	if err := Apply(ctx, s, Penalty("nobody", 1, "lost")); err != nil {
		t.Fatalf("expected penalty on missing player to be dropped, got %v", err)
	}
	if err := Apply(ctx, s, Penalty("alice", 1, "lost")); err != nil {
		t.Fatalf("penalty: %v", err)
	}
	alice, _ := s.GetPlayerByName(ctx, "alice")
	if alice.Points != 0 {
		t.Fatalf("expected points clamped at 0, got %d", alice.Points)
	}
}

func TestDrainRequeuesThenDrops(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	players := seedPlayers(t, s, "alice", "bob")
	a, b := players[0].PlayerID, players[1].PlayerID

	q := NewMemoryQueue()
	_ = q.Push(ctx, LinkPut(a, b, models.LinkSent))
	_ = q.Push(ctx, LinkPut(a, 999, models.LinkSent))

	w := &Worker{Queue: q, Store: s, MaxAttempts: 2}
	stats, err := w.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Applied != 1 || stats.Requeued != 1 {
		t.Fatalf("expected 1 applied and 1 requeued, got %+v", stats)
	}

	stats, err = w.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %+v", stats)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
	state, _ := s.GetLink(ctx, a, b)
	if state != models.LinkSent {
		t.Fatalf("expected sent link, got %q", state)
	}
}
