package models

// Chest 宝箱
type Chest struct {
	Name       string   `json:"chest" yaml:"chest"`
	Price      int64    `json:"price" yaml:"price"`
	Characters []string `json:"characters" yaml:"characters"`
}

// Contains 宝箱是否包含该角色
func (c *Chest) Contains(name string) bool {
	for _, n := range c.Characters {
		if n == name {
			return true
		}
	}
	return false
}
