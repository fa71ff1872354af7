package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

// flakyStore 让指定玩家一侧的关系写入失败
type flakyStore struct {
	*memory.Store
	failOwner int64
}

func (s *flakyStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx storage.Tx) error {
		return fn(flakyTx{Tx: tx, failOwner: s.failOwner})
	})
}

type flakyTx struct {
	storage.Tx
	failOwner int64
}

func (t flakyTx) PutLink(ctx context.Context, owner, other int64, state models.LinkState) error {
	if owner == t.failOwner {
		return errors.New("写入超时")
	}
	return t.Tx.PutLink(ctx, owner, other, state)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")

	res, err := e.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Outcome != OutcomeComplete {
		t.Fatalf("expected complete, got %s", res.Outcome)
	}
	a, b := reload(t, e, "alice"), reload(t, e, "bob")
	if !contains(a.Friends.SentRequests, bob.PlayerID) || !contains(b.Friends.NeedAcceptRequests, alice.PlayerID) {
		t.Fatalf("expected pending pair, got %+v / %+v", a.Friends, b.Friends)
	}

	_, err = e.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	expectErr(t, err, ErrAlreadyPending)
	if KindOf(err) != KindConflict {
		t.Fatalf("expected conflict, got %s", KindOf(err))
	}
	_, err = e.SendRequest(ctx, identity(bob), bob.PlayerID, alice.PlayerID)
	expectErr(t, err, ErrReversePending)

	if _, err := e.AcceptRequest(ctx, identity(bob), bob.PlayerID, alice.PlayerID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	a, b = reload(t, e, "alice"), reload(t, e, "bob")
	if !contains(a.Friends.FriendList, bob.PlayerID) || !contains(b.Friends.FriendList, alice.PlayerID) {
		t.Fatalf("expected symmetric friendship, got %+v / %+v", a.Friends, b.Friends)
	}
	if len(a.Friends.SentRequests) != 0 || len(b.Friends.NeedAcceptRequests) != 0 {
		t.Fatalf("expected requests cleared, got %+v / %+v", a.Friends, b.Friends)
	}

	_, err = e.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	expectErr(t, err, ErrAlreadyFriends)

	if _, err := e.RemoveFriend(ctx, identity(alice), alice.PlayerID, bob.PlayerID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	a, b = reload(t, e, "alice"), reload(t, e, "bob")
	if len(a.Friends.FriendList) != 0 || len(b.Friends.FriendList) != 0 {
		t.Fatalf("expected friendship removed on both sides, got %+v / %+v", a.Friends, b.Friends)
	}
	_, err = e.RemoveFriend(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	expectErr(t, err, ErrNotFriends)

	if _, err := e.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID); err != nil {
		t.Fatalf("expected resend after removal to succeed, got %v", err)
	}
}

func TestFriendValidationOrder(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")

	_, err := e.SendRequest(ctx, identity(alice), alice.PlayerID, alice.PlayerID)
	expectErr(t, err, ErrSelfRequest)
	_, err = e.AcceptRequest(ctx, identity(alice), alice.PlayerID, alice.PlayerID)
	expectErr(t, err, ErrSelfAccept)
	_, err = e.RemoveFriend(ctx, identity(alice), alice.PlayerID, alice.PlayerID)
	expectErr(t, err, ErrSelfRemove)

	_, err = e.SendRequest(ctx, identity(alice), alice.PlayerID, 404)
	expectErr(t, err, ErrPlayerNotFound)
	_, err = e.SendRequest(ctx, identity(bob), alice.PlayerID, bob.PlayerID)
	expectErr(t, err, ErrUnauthorized)
	_, err = e.AcceptRequest(ctx, identity(bob), bob.PlayerID, alice.PlayerID)
	expectErr(t, err, ErrNoPendingRequest)
}

func TestSocialAchievementCountsAfterWrite(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), func(c *config.GameConfig) { c.SocialThreshold = 2 })
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")
	carol := register(t, e, "carol")

	for _, p := range []*models.Player{bob, carol} {
		if _, err := e.SendRequest(ctx, identity(p), p.PlayerID, alice.PlayerID); err != nil {
			t.Fatalf("send from %s: %v", p.Name, err)
		}
	}

	res, err := e.AcceptRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	if err != nil {
		t.Fatalf("accept bob: %v", err)
	}
	if res.AchievementGranted {
		t.Fatal("expected no achievement with one friend")
	}
	res, err = e.AcceptRequest(ctx, identity(alice), alice.PlayerID, carol.PlayerID)
	if err != nil {
		t.Fatalf("accept carol: %v", err)
	}
	if !res.AchievementGranted {
		t.Fatal("expected achievement when the threshold-th friend is added")
	}
	if !reload(t, e, "alice").HasAchievement(models.AchievementSocial) {
		t.Fatal("expected social achievement stored")
	}
	if reload(t, e, "bob").HasAchievement(models.AchievementSocial) {
		t.Fatal("expected requester not to receive the achievement")
	}
}

func TestPartialFriendWriteIsQueuedAndRepaired(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New()}
	queue := reconcile.NewMemoryQueue()
	e := newTestEngine(t, store, nil, WithRepairQueue(queue))
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")

	store.failOwner = bob.PlayerID
	res, err := e.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	if err != nil {
		t.Fatalf("expected partial success without error, got %v", err)
	}
	if res.Outcome != OutcomePartial || len(res.Repairs) != 1 {
		t.Fatalf("expected partial with one repair, got %+v", res.WriteReport)
	}
	if n, _ := queue.Len(ctx); n != 1 {
		t.Fatalf("expected one queued repair, got %d", n)
	}
	if b := reload(t, e, "bob"); len(b.Friends.NeedAcceptRequests) != 0 {
		t.Fatalf("expected bob side missing before repair, got %+v", b.Friends)
	}

	store.failOwner = 0
	w := &reconcile.Worker{Queue: queue, Store: store}
	stats, err := w.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Applied != 1 {
		t.Fatalf("expected one applied repair, got %+v", stats)
	}
	if b := reload(t, e, "bob"); !contains(b.Friends.NeedAcceptRequests, alice.PlayerID) {
		t.Fatalf("expected bob side repaired, got %+v", b.Friends)
	}
}

func TestBothSidesFailingReturnsError(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	queue := reconcile.NewMemoryQueue()
	e := newTestEngine(t, base, nil)
	alice := register(t, e, "alice")
	bob := register(t, e, "bob")

	down := New(&downStore{Store: base}, e.cfg, WithRepairQueue(queue))
	_, err := down.SendRequest(ctx, identity(alice), alice.PlayerID, bob.PlayerID)
	expectErr(t, err, ErrWriteFailed)
	if n, _ := queue.Len(ctx); n != 0 {
		t.Fatalf("expected nothing queued on total failure, got %d", n)
	}
}

// downStore 所有事务都失败
type downStore struct {
	*memory.Store
}

func (s *downStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return errors.New("数据库不可用")
}
