package engine

import (
	"errors"
	"fmt"

	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Kind 错误大类，网关据此映射状态码
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindConflict          Kind = "CONFLICT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindInvalidState      Kind = "INVALID_STATE"
)

// Error 引擎错误，按 Code 比较
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按 Code 匹配
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func wrap(base *Error, cause error) *Error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: base.Message, Cause: cause}
}

// 引擎错误
var (
	ErrPlayerNotFound    = newError(KindNotFound, "PLAYER_NOT_FOUND", "玩家不存在")
	ErrChestNotFound     = newError(KindNotFound, "CHEST_NOT_FOUND", "宝箱不存在")
	ErrCharacterNotFound = newError(KindNotFound, "CHARACTER_NOT_FOUND", "角色不存在")
	ErrNoOpponent        = newError(KindNotFound, "NO_OPPONENT", "没有可匹配的对手")
	ErrNoBattleRecords   = newError(KindNotFound, "NO_BATTLE_RECORDS", "没有对战记录")

	ErrUnauthorized = newError(KindUnauthorized, "UNAUTHORIZED", "无权执行该操作")

	ErrAlreadyFriends    = newError(KindConflict, "ALREADY_FRIENDS", "已经是好友")
	ErrAlreadyPending    = newError(KindConflict, "ALREADY_PENDING", "好友请求已发送")
	ErrReversePending    = newError(KindConflict, "REVERSE_PENDING", "对方已向你发送好友请求")
	ErrStarterPackTaken  = newError(KindConflict, "STARTER_PACK_TAKEN", "新手礼包已领取")
	ErrNameTaken         = newError(KindConflict, "NAME_TAKEN", "用户名或邮箱已被使用")
	ErrChestExists       = newError(KindConflict, "CHEST_EXISTS", "宝箱已存在")
	ErrCharacterExists   = newError(KindConflict, "CHARACTER_EXISTS", "角色已存在")
	ErrCharacterInChest  = newError(KindConflict, "CHARACTER_IN_CHEST", "角色已在宝箱中")
	ErrInsufficientFunds = newError(KindInsufficientFunds, "INSUFFICIENT_FUNDS", "余额不足")

	ErrNotOwned           = newError(KindInvalidState, "NOT_OWNED", "未拥有该角色")
	ErrNoChampionSelected = newError(KindInvalidState, "NO_CHAMPION_SELECTED", "未选择出战角色")
	ErrCharacterMissing   = newError(KindInvalidState, "CHARACTER_MISSING", "出战角色数据缺失")
	ErrSelfRequest        = newError(KindInvalidState, "SELF_REQUEST", "不能向自己发送好友请求")
	ErrSelfAccept         = newError(KindInvalidState, "SELF_ACCEPT", "不能接受自己的好友请求")
	ErrSelfRemove         = newError(KindInvalidState, "SELF_REMOVE", "不能删除自己")
	ErrNoPendingRequest   = newError(KindInvalidState, "NO_PENDING_REQUEST", "没有待接受的好友请求")
	ErrNotFriends         = newError(KindInvalidState, "NOT_FRIENDS", "对方不是你的好友")
	ErrEmptyChest         = newError(KindInvalidState, "EMPTY_CHEST", "宝箱中没有角色")
	ErrInvalidInput       = newError(KindInvalidState, "INVALID_INPUT", "参数无效")

	// ErrWriteFailed 双写两侧均失败
	ErrWriteFailed = newError("", "WRITE_FAILED", "写入失败")
)

// KindOf 返回错误大类，基础设施错误返回空串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf 返回错误码
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// notFound 将存储层的 ErrNotFound 转换为 base
func notFound(err error, base *Error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return wrap(base, err)
	}
	return err
}
