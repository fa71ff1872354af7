// schema.go

package db

import (
	"fmt"
	"strings"
)

// 统一的数据库表结构定义，时间字段统一保存为毫秒时间戳

// CreateAllTablesSQL 创建所有表的SQL语句（PostgreSQL）
const CreateAllTablesSQL = `
-- 玩家表
CREATE TABLE IF NOT EXISTS players (
    player_id BIGINT PRIMARY KEY,
    name VARCHAR(50) UNIQUE NOT NULL,
    email VARCHAR(100) UNIQUE,
    password_hash VARCHAR(100) NOT NULL DEFAULT '',
    gender VARCHAR(20) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'player',

    -- 经济数据
    money BIGINT NOT NULL DEFAULT 0 CHECK (money >= 0),
    points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),

    starter_pack_taken BOOLEAN NOT NULL DEFAULT false,
    notification TEXT NOT NULL DEFAULT '',

    -- 出战角色
    selected_name VARCHAR(50),
    selected_instance_id BIGINT,

    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

-- 角色模板表
CREATE TABLE IF NOT EXISTS character_templates (
    name VARCHAR(50) PRIMARY KEY,
    health DOUBLE PRECISION NOT NULL,
    attack DOUBLE PRECISION NOT NULL,
    speed DOUBLE PRECISION NOT NULL,
    type VARCHAR(20) NOT NULL DEFAULT ''
);

-- 角色实例表，id 单调递增且不复用，按 id 排序即获得顺序
CREATE TABLE IF NOT EXISTS character_instances (
    id BIGSERIAL PRIMARY KEY,
    owner_id BIGINT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    template_name VARCHAR(50) NOT NULL,
    health DOUBLE PRECISION NOT NULL,
    attack DOUBLE PRECISION NOT NULL,
    speed DOUBLE PRECISION NOT NULL,
    type VARCHAR(20) NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    UNIQUE (owner_id, template_name)
);

-- 宝箱表
CREATE TABLE IF NOT EXISTS chests (
    name VARCHAR(50) PRIMARY KEY,
    price BIGINT NOT NULL CHECK (price >= 0)
);

-- 宝箱角色关联表
CREATE TABLE IF NOT EXISTS chest_characters (
    chest_name VARCHAR(50) NOT NULL REFERENCES chests(name) ON DELETE CASCADE,
    character_name VARCHAR(50) NOT NULL,
    position BIGINT NOT NULL,
    PRIMARY KEY (chest_name, character_name)
);

-- 有向好友关系表，每个有序对只有一个状态
CREATE TABLE IF NOT EXISTS friend_links (
    owner_id BIGINT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    other_id BIGINT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    state VARCHAR(10) NOT NULL,
    seq BIGINT NOT NULL,
    PRIMARY KEY (owner_id, other_id)
);

-- 成就表
CREATE TABLE IF NOT EXISTS achievements (
    player_id BIGINT NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
    achievement VARCHAR(50) NOT NULL,
    granted_at BIGINT NOT NULL,
    PRIMARY KEY (player_id, achievement)
);

-- 对战记录表，删除玩家时保留
CREATE TABLE IF NOT EXISTS battle_records (
    id VARCHAR(50) PRIMARY KEY,
    attacker VARCHAR(50) NOT NULL,
    defender VARCHAR(50) NOT NULL,
    battle_round INT NOT NULL,
    winner VARCHAR(50) NOT NULL,
    date BIGINT NOT NULL
);

-- 创建索引以提高查询性能
CREATE INDEX IF NOT EXISTS idx_players_points ON players(points);
CREATE INDEX IF NOT EXISTS idx_character_instances_owner ON character_instances(owner_id);
CREATE INDEX IF NOT EXISTS idx_friend_links_owner ON friend_links(owner_id, state);
CREATE INDEX IF NOT EXISTS idx_battle_records_attacker ON battle_records(attacker);
CREATE INDEX IF NOT EXISTS idx_battle_records_defender ON battle_records(defender);
`

// DropAllTablesSQL 删除所有表
const DropAllTablesSQL = `
DROP TABLE IF EXISTS battle_records;
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS friend_links;
DROP TABLE IF EXISTS chest_characters;
DROP TABLE IF EXISTS chests;
DROP TABLE IF EXISTS character_instances;
DROP TABLE IF EXISTS character_templates;
DROP TABLE IF EXISTS players;
`

// SchemaFor 返回指定驱动的建表语句
func SchemaFor(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return CreateAllTablesSQL, nil
	case DriverSQLite:
		s := strings.ReplaceAll(CreateAllTablesSQL, "BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT")
		s = strings.ReplaceAll(s, "DOUBLE PRECISION", "REAL")
		return s, nil
	default:
		return "", fmt.Errorf("不支持的存储驱动: %s", driver)
	}
}

// InitAllTables 初始化所有数据库表
func InitAllTables() error {
	schema, err := SchemaFor(Driver)
	if err != nil {
		return err
	}
	if _, err := DB.Exec(schema); err != nil {
		return fmt.Errorf("创建数据表失败: %w", err)
	}
	return nil
}

// DropAllTables 删除所有数据库表
func DropAllTables() error {
	if _, err := DB.Exec(DropAllTablesSQL); err != nil {
		return fmt.Errorf("删除数据表失败: %w", err)
	}
	return nil
}
