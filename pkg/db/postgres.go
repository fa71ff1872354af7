package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/jacl-coder/ForBattle-Server/config"
	_ "github.com/lib/pq"
)

// 支持的SQL驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// DB 全局数据库连接实例
	DB *sql.DB
	// Driver 当前连接使用的驱动
	Driver string
)

// InitPostgres 初始化PostgreSQL连接
func InitPostgres() error {
	dsn := config.GlobalConfig.Database.GetDSN()

	conn, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 测试连接
	if err = conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("数据库Ping失败: %w", err)
	}

	DB = conn
	Driver = DriverPostgres
	log.Println("成功连接到PostgreSQL数据库")
	return nil
}

// Open 按存储配置打开数据库
func Open() error {
	switch config.GlobalConfig.Storage.Driver {
	case DriverPostgres:
		return InitPostgres()
	case DriverSQLite:
		return InitSQLite(config.GlobalConfig.Storage.SQLitePath)
	default:
		return fmt.Errorf("不支持的存储驱动: %s", config.GlobalConfig.Storage.Driver)
	}
}

// Close 关闭数据库连接
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
		log.Println("数据库连接已关闭")
	}
}
