package engine

import (
	"context"
	"errors"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// FriendResult 好友操作结果
type FriendResult struct {
	WriteReport
	PlayerID int64 `json:"player_id"`
	OtherID  int64 `json:"other_id"`
	// AchievementGranted 接受请求后获得社交成就
	AchievementGranted bool `json:"achievementGranted,omitempty"`
}

// pair 校验双方并读取两个方向的关系
func (e *Engine) pair(ctx context.Context, id models.Identity, selfID, otherID int64, self *Error) (models.LinkState, models.LinkState, error) {
	if selfID == otherID {
		return "", "", self
	}
	if !id.OwnsID(selfID) {
		return "", "", ErrUnauthorized
	}
	for _, pid := range []int64{selfID, otherID} {
		if _, err := e.store.GetPlayerByID(ctx, pid); err != nil {
			return "", "", notFound(err, ErrPlayerNotFound)
		}
	}

	mine, err := e.store.GetLink(ctx, selfID, otherID)
	if err != nil {
		return "", "", err
	}
	theirs, err := e.store.GetLink(ctx, otherID, selfID)
	if err != nil {
		return "", "", err
	}
	return mine, theirs, nil
}

// requestState 按当前两个方向的关系判断能否发送请求
func requestState(mine, theirs models.LinkState) error {
	switch {
	case mine == models.LinkFriend || theirs == models.LinkFriend:
		return ErrAlreadyFriends
	case mine == models.LinkSent:
		return ErrAlreadyPending
	case mine == models.LinkPending || theirs == models.LinkSent:
		return ErrReversePending
	}
	return nil
}

// putRequest 按ID顺序锁定双方后重新检查两个方向，再写入请求方一侧
// 交叉发送时后提交的一方得到 ErrReversePending
func putRequest(ctx context.Context, tx storage.Tx, requesterID, requestedID int64) error {
	for _, pid := range []int64{min(requesterID, requestedID), max(requesterID, requestedID)} {
		if _, err := tx.LockPlayer(ctx, pid); err != nil {
			return notFound(err, ErrPlayerNotFound)
		}
	}
	mine, err := tx.GetLink(ctx, requesterID, requestedID)
	if err != nil {
		return err
	}
	theirs, err := tx.GetLink(ctx, requestedID, requesterID)
	if err != nil {
		return err
	}
	if err := requestState(mine, theirs); err != nil {
		return err
	}
	if err := tx.PutLink(ctx, requesterID, requestedID, models.LinkSent); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return wrap(ErrReversePending, err)
		}
		return err
	}
	return nil
}

// SendRequest 发送好友请求，两侧写入分别提交
// 请求方一侧在锁内校验，状态冲突直接返回，不进入修复队列
func (e *Engine) SendRequest(ctx context.Context, id models.Identity, requesterID, requestedID int64) (*FriendResult, error) {
	mine, theirs, err := e.pair(ctx, id, requesterID, requestedID, ErrSelfRequest)
	if err != nil {
		return nil, err
	}
	if err := requestState(mine, theirs); err != nil {
		return nil, err
	}

	sent := reconcile.LinkPut(requesterID, requestedID, models.LinkSent)
	pending := reconcile.LinkPut(requestedID, requesterID, models.LinkPending)

	errSent := e.store.WithTx(ctx, func(tx storage.Tx) error {
		return putRequest(ctx, tx, requesterID, requestedID)
	})
	if KindOf(errSent) != "" {
		return nil, errSent
	}
	errPending := reconcile.Apply(ctx, e.store, pending)

	report, err := e.settle(ctx, []reconcile.Repair{sent, pending}, []error{errSent, errPending})
	if err != nil {
		return nil, err
	}
	return &FriendResult{WriteReport: report, PlayerID: requesterID, OtherID: requestedID}, nil
}

// AcceptRequest 接受好友请求，写入后按好友数判断社交成就
func (e *Engine) AcceptRequest(ctx context.Context, id models.Identity, accepterID, requesterID int64) (*FriendResult, error) {
	mine, theirs, err := e.pair(ctx, id, accepterID, requesterID, ErrSelfAccept)
	if err != nil {
		return nil, err
	}
	if mine == models.LinkFriend && theirs == models.LinkFriend {
		return nil, ErrAlreadyFriends
	}
	if mine != models.LinkPending && theirs != models.LinkSent {
		return nil, ErrNoPendingRequest
	}

	report, err := e.dualWrite(ctx,
		reconcile.LinkTransition(accepterID, requesterID, models.LinkPending, models.LinkFriend),
		reconcile.LinkTransition(requesterID, accepterID, models.LinkSent, models.LinkFriend),
	)
	if err != nil {
		return nil, err
	}

	res := &FriendResult{WriteReport: report, PlayerID: accepterID, OtherID: requesterID}
	res.AchievementGranted, err = e.afterAccept(ctx, accepterID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RemoveFriend 双向删除好友
func (e *Engine) RemoveFriend(ctx context.Context, id models.Identity, requesterID, friendID int64) (*FriendResult, error) {
	mine, theirs, err := e.pair(ctx, id, requesterID, friendID, ErrSelfRemove)
	if err != nil {
		return nil, err
	}
	if mine != models.LinkFriend && theirs != models.LinkFriend {
		return nil, ErrNotFriends
	}

	report, err := e.dualWrite(ctx,
		reconcile.LinkDelete(requesterID, friendID, models.LinkFriend),
		reconcile.LinkDelete(friendID, requesterID, models.LinkFriend),
	)
	if err != nil {
		return nil, err
	}
	return &FriendResult{WriteReport: report, PlayerID: requesterID, OtherID: friendID}, nil
}
