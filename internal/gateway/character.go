package gateway

import (
	"net/http"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
)

// 宝箱与角色模板接口，写操作仅限管理员

// handleListChests 列出宝箱
func (g *Gateway) handleListChests(w http.ResponseWriter, r *http.Request, claims *Claims) {
	chests, err := g.engine.ListChests(r.Context())
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", chests)
}

// handleListCharacters 列出角色模板
func (g *Gateway) handleListCharacters(w http.ResponseWriter, r *http.Request, claims *Claims) {
	characters, err := g.engine.ListCharacters(r.Context())
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "查询成功", characters)
}

// handleOpenChest 购买并打开宝箱，余额不足时附带未修改的结果
func (g *Gateway) handleOpenChest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := g.engine.OpenChest(r.Context(), claims.Identity(), req.Name, r.PathValue("chest"))
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	if err := res.Err(); err != nil {
		sendError(w, r, err, res)
		return
	}
	message := "获得新角色"
	if !res.IsNew {
		message = "角色已强化"
	}
	sendSuccess(w, http.StatusOK, message, res)
}

// handleCreateChest 创建宝箱
func (g *Gateway) handleCreateChest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req models.Chest
	if !decodeBody(w, r, &req) {
		return
	}
	chest, err := g.engine.CreateChest(r.Context(), claims.Identity(), req)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusCreated, "宝箱已创建", chest)
}

// handleDeleteChest 删除宝箱
func (g *Gateway) handleDeleteChest(w http.ResponseWriter, r *http.Request, claims *Claims) {
	if err := g.engine.DeleteChest(r.Context(), claims.Identity(), r.PathValue("chest")); err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "宝箱已删除", nil)
}

// handleAddChestCharacter 向宝箱添加角色
func (g *Gateway) handleAddChestCharacter(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req struct {
		Character string `json:"character"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	chest, err := g.engine.AddCharacterToChest(r.Context(), claims.Identity(), r.PathValue("chest"), req.Character)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "角色已加入宝箱", chest)
}

// handleRemoveChestCharacter 从宝箱移除角色
func (g *Gateway) handleRemoveChestCharacter(w http.ResponseWriter, r *http.Request, claims *Claims) {
	if err := g.engine.RemoveCharacter(r.Context(), claims.Identity(), r.PathValue("chest"), r.PathValue("name")); err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "角色已移出宝箱", nil)
}

// handleCreateCharacter 创建角色模板
func (g *Gateway) handleCreateCharacter(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req models.CharacterTemplate
	if !decodeBody(w, r, &req) {
		return
	}
	tmpl, err := g.engine.CreateCharacter(r.Context(), claims.Identity(), req)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusCreated, "角色已创建", tmpl)
}

// handleUpdateCharacter 修改角色模板，名字取自路径
func (g *Gateway) handleUpdateCharacter(w http.ResponseWriter, r *http.Request, claims *Claims) {
	var req models.CharacterTemplate
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = r.PathValue("name")
	tmpl, err := g.engine.UpdateCharacter(r.Context(), claims.Identity(), req)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "角色已更新", tmpl)
}

