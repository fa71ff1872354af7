// player.go

package models

import (
	"time"
)

// Role 账号角色
type Role string

const (
	// RolePlayer 普通玩家
	RolePlayer Role = "player"
	// RoleAdmin 管理员
	RoleAdmin Role = "admin"
)

// Player 玩家模型
type Player struct {
	PlayerID     int64  `json:"player_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // 不序列化密码
	Gender       string `json:"gender"`
	Role         Role   `json:"role"`

	// 经济数据
	Money  int64 `json:"money"`
	Points int64 `json:"points"`

	Collection       Collection `json:"collection"`
	Friends          Friends    `json:"friends"`
	Achievements     []string   `json:"achievements"`
	StarterPackTaken bool       `json:"starter_pack_taken"`
	Notification     string     `json:"notification,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAchievement 是否已获得成就
func (p *Player) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// Balance 玩家余额快照
type Balance struct {
	PlayerID int64 `json:"player_id"`
	Money    int64 `json:"money"`
	Points   int64 `json:"points"`
}

// Identity 经过认证的调用者身份
type Identity struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// IsAdmin 是否管理员
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Owns 是否是以该名字操作自己的账号
func (i Identity) Owns(name string) bool {
	return i.Role == RolePlayer && i.Name == name
}

// OwnsID 是否是以该ID操作自己的账号
func (i Identity) OwnsID(playerID int64) bool {
	return i.Role == RolePlayer && i.PlayerID == playerID
}
