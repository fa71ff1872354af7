// stats.go

package gateway

import (
	"net/http"
	"strconv"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// handleBattle 以本人出战角色挑战随机对手
func (g *Gateway) handleBattle(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := g.engine.ResolveBattle(r.Context(), claims.Identity(), req.Name)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	message := "战斗结束"
	switch {
	case res.Winner == req.Name:
		message = "战斗胜利"
	case res.Loser == req.Name:
		message = "战斗失败"
	}
	sendSuccess(w, http.StatusOK, message, res)
}

// handleBattleHistory 查询对战记录
func (g *Gateway) handleBattleHistory(w http.ResponseWriter, r *http.Request, claims *Claims) {
	records, err := g.engine.BattleHistory(r.Context(), claims.Identity(), r.PathValue("name"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", records)
}

// handlePurgeBattles 管理员删除攻方的全部记录
func (g *Gateway) handlePurgeBattles(w http.ResponseWriter, r *http.Request, claims *Claims) {
	n, err := g.engine.PurgeBattleRecords(r.Context(), claims.Identity(), r.PathValue("attacker"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "对战记录已删除", map[string]int64{"deleted": n})
}

// handleLeaderboard 查询排行榜
func (g *Gateway) handleLeaderboard(w http.ResponseWriter, r *http.Request, claims *Claims) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sendFailure(w, http.StatusBadRequest, "INVALID_REQUEST", "无效的 limit 参数")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := g.engine.Leaderboard(r.Context(), limit)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", entries)
}
