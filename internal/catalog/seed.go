// Package catalog 从YAML文件加载角色模板与宝箱
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
)

// Seed 目录种子数据
type Seed struct {
	Characters []models.CharacterTemplate `yaml:"characters"`
	Chests     []models.Chest             `yaml:"chests"`
}

// Stats 写入统计
type Stats struct {
	Created int
	Updated int
}

// Load 读取种子文件
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析种子数据并校验宝箱引用的角色
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("解析目录文件失败: %w", err)
	}

	names := make(map[string]bool, len(seed.Characters))
	for _, c := range seed.Characters {
		if c.Name == "" {
			return nil, fmt.Errorf("角色缺少名称")
		}
		if names[c.Name] {
			return nil, fmt.Errorf("角色重复: %s", c.Name)
		}
		names[c.Name] = true
	}
	for _, chest := range seed.Chests {
		if chest.Name == "" || chest.Price < 0 {
			return nil, fmt.Errorf("宝箱配置无效: %q", chest.Name)
		}
		for _, c := range chest.Characters {
			if !names[c] {
				return nil, fmt.Errorf("宝箱 %s 引用了未定义的角色 %s", chest.Name, c)
			}
		}
	}
	return &seed, nil
}

// Apply 写入存储：模板已存在时更新数值，宝箱已存在时补齐缺少的角色
func Apply(ctx context.Context, store storage.Store, seed *Seed) (Stats, error) {
	var stats Stats
	err := store.WithTx(ctx, func(tx storage.Tx) error {
		stats = Stats{}
		for _, c := range seed.Characters {
			err := tx.CreateTemplate(ctx, c)
			switch {
			case err == nil:
				stats.Created++
			case errors.Is(err, storage.ErrConflict):
				if err := tx.UpdateTemplate(ctx, c); err != nil {
					return err
				}
				stats.Updated++
			default:
				return err
			}
		}

		for _, chest := range seed.Chests {
			err := tx.CreateChest(ctx, chest)
			if err == nil {
				stats.Created++
				continue
			}
			if !errors.Is(err, storage.ErrConflict) {
				return err
			}
			for _, c := range chest.Characters {
				if err := tx.AddChestCharacter(ctx, chest.Name, c); err != nil && !errors.Is(err, storage.ErrConflict) {
					return err
				}
			}
			stats.Updated++
		}
		return nil
	})
	return stats, err
}
