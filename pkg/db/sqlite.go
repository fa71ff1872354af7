package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenSQLite 打开SQLite数据库文件，目录不存在时创建
func OpenSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("SQLite路径不能为空")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)&_txlock=immediate"
	conn, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开SQLite失败: %w", err)
	}
	// SQLite 同一时间只允许一个写者
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("SQLite Ping失败: %w", err)
	}
	return conn, nil
}

// InitSQLite 初始化全局SQLite连接
func InitSQLite(path string) error {
	conn, err := OpenSQLite(path)
	if err != nil {
		return err
	}
	DB = conn
	Driver = DriverSQLite
	log.Printf("成功打开SQLite数据库: %s", path)
	return nil
}
