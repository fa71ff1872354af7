package models

import "time"

// CharacterTemplate 角色模板（不可变的主数据）
type CharacterTemplate struct {
	Name   string  `json:"name" yaml:"name"`
	Health float64 `json:"health" yaml:"health"`
	Attack float64 `json:"attack" yaml:"attack"`
	Speed  float64 `json:"speed" yaml:"speed"`
	Type   string  `json:"type" yaml:"type"`
}

// CharacterInstance 玩家持有的角色实例，数值会因强化而偏离模板
type CharacterInstance struct {
	InstanceID int64     `json:"char_id"`
	OwnerID    int64     `json:"owner_id"`
	Template   string    `json:"name"`
	Health     float64   `json:"health"`
	Attack     float64   `json:"attack"`
	Speed      float64   `json:"speed"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatBoost 强化增量
type StatBoost struct {
	Health float64
	Attack float64
	Speed  float64
}

// OwnedCharacter 收藏中的一项：模板名与实例ID成对保存
type OwnedCharacter struct {
	Name       string `json:"name"`
	InstanceID int64  `json:"char_id"`
}

// SelectedCharacter 出战角色
type SelectedCharacter struct {
	Name       string `json:"name"`
	InstanceID int64  `json:"char_id"`
}

// Collection 玩家收藏
type Collection struct {
	Owned    []OwnedCharacter   `json:"owned"`
	Selected *SelectedCharacter `json:"character_selected,omitempty"`
}

// CharacterList 按获得顺序返回角色名
func (c Collection) CharacterList() []string {
	names := make([]string, len(c.Owned))
	for i, o := range c.Owned {
		names[i] = o.Name
	}
	return names
}

// CharIDs 按获得顺序返回实例ID，与 CharacterList 下标对齐
func (c Collection) CharIDs() []int64 {
	ids := make([]int64, len(c.Owned))
	for i, o := range c.Owned {
		ids[i] = o.InstanceID
	}
	return ids
}

// Find 查找已拥有的角色
func (c Collection) Find(name string) (OwnedCharacter, bool) {
	for _, o := range c.Owned {
		if o.Name == name {
			return o, true
		}
	}
	return OwnedCharacter{}, false
}

// CharacterView 资料页展示用的角色
type CharacterView struct {
	OwnedCharacter
	Stats *CharacterInstance `json:"stats,omitempty"`
}
