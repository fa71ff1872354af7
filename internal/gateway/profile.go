package gateway

import (
	"log"
	"net/http"
	"strconv"

	"github.com/jacl-coder/ForBattle-Server/internal/engine"
)

// 玩家资料与好友相关接口

// handleStarterPack 领取新手礼包
func (g *Gateway) handleStarterPack(w http.ResponseWriter, r *http.Request, claims *Claims) {
	bal, err := g.engine.ClaimStarterPack(r.Context(), claims.Identity(), r.PathValue("name"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "新手礼包已领取", bal)
}

// handleProfile 本人或管理员读取完整资料
func (g *Gateway) handleProfile(w http.ResponseWriter, r *http.Request, claims *Claims) {
	view, err := g.engine.Profile(r.Context(), claims.Identity(), r.PathValue("name"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", view)
}

// handlePublicProfile 读取其他玩家的公开资料
func (g *Gateway) handlePublicProfile(w http.ResponseWriter, r *http.Request, claims *Claims) {
	profile, err := g.engine.GetPublicProfile(r.Context(), r.PathValue("name"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", profile)
}

// UpdatePlayerResponse 改名后旧令牌中的名字失效，随响应签发新令牌
type UpdatePlayerResponse struct {
	Player any    `json:"player"`
	Token  string `json:"token,omitempty"`
}

// handleUpdatePlayer 修改本人资料
func (g *Gateway) handleUpdatePlayer(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req engine.UpdateInput
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := g.engine.UpdateProfile(r.Context(), claims.Identity(), r.PathValue("name"), req)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}

	resp := UpdatePlayerResponse{Player: p}
	if p.Name != claims.Name || p.Email != claims.Email {
		token, _, err := g.tokens.Issue(p)
		if err != nil {
			sendError(w, r, err, nil)
			return
		}
		resp.Token = token
	}
	sendSuccess(w, http.StatusOK, "资料已更新", resp)
}

// handleDeletePlayer 删除账号并使其已签发的令牌失效
func (g *Gateway) handleDeletePlayer(w http.ResponseWriter, r *http.Request, claims *Claims) {
	name := r.PathValue("name")

	// 删除前确定玩家ID，用于登记黑名单
	playerID := claims.PlayerID
	if claims.Name != name {
		view, err := g.engine.Profile(r.Context(), claims.Identity(), name)
		if err != nil {
			sendError(w, r, err, nil)
			return
		}
		playerID = view.PlayerID
	}

	if err := g.engine.DeleteAccount(r.Context(), claims.Identity(), name); err != nil {
		sendError(w, r, err, nil)
		return
	}
	if err := g.denylist.Revoke(r.Context(), playerID, g.tokens.now()); err != nil {
		log.Printf("[%s] 登记令牌黑名单失败 %s: %v", requestID(r), name, err)
	}
	sendSuccess(w, http.StatusOK, "账号已删除", nil)
}

// handleSelectChampion 选择出战角色
func (g *Gateway) handleSelectChampion(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req struct {
		Character string `json:"character"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sel, err := g.engine.SelectChampion(r.Context(), claims.Identity(), r.PathValue("name"), req.Character)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "出战角色已更新", sel)
}

// FriendRequest 好友请求参数
type FriendRequest struct {
	RequesterID int64 `json:"requester_id"`
	RequestedID int64 `json:"requested_id"`
}

// AcceptRequest 接受好友请求参数
type AcceptRequest struct {
	AccepterID  int64 `json:"accepter_id"`
	RequesterID int64 `json:"requester_id"`
}

// handleSendRequest 发送好友请求
func (g *Gateway) handleSendRequest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req FriendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := g.engine.SendRequest(r.Context(), claims.Identity(), req.RequesterID, req.RequestedID)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusCreated, "好友请求已发送", res)
}

// handleAcceptRequest 接受好友请求
func (g *Gateway) handleAcceptRequest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req AcceptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := g.engine.AcceptRequest(r.Context(), claims.Identity(), req.AccepterID, req.RequesterID)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "已添加好友", res)
}

// handleRemoveFriend 删除好友
func (g *Gateway) handleRemoveFriend(w http.ResponseWriter, r *http.Request, claims *Claims) {
	requesterID, err1 := strconv.ParseInt(r.PathValue("requesterId"), 10, 64)
	friendID, err2 := strconv.ParseInt(r.PathValue("friendId"), 10, 64)
	if err1 != nil || err2 != nil {
		sendFailure(w, http.StatusBadRequest, "INVALID_REQUEST", "无效的玩家ID")
		return
	}
	res, err := g.engine.RemoveFriend(r.Context(), claims.Identity(), requesterID, friendID)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "好友已删除", res)
}
