// db_manager.go

package main

import (
	"context"
	"flag"
	"os"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/catalog"
	"github.com/jacl-coder/ForBattle-Server/internal/engine"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/sqlstore"
	"github.com/jacl-coder/ForBattle-Server/pkg/db"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	action := flag.String("action", "help", "操作类型: reset, init, seed, reconcile, admin, help")
	seedPath := flag.String("seed", "", "目录种子文件，默认读取 storage.catalog_seed")
	name := flag.String("name", "", "管理员名称 (admin)")
	email := flag.String("email", "", "管理员邮箱 (admin)")
	password := flag.String("password", "", "管理员密码 (admin)")
	gender := flag.String("gender", "unspecified", "管理员性别 (admin)")
	flag.Parse()

	// 显示帮助信息
	if *action == "help" {
		showHelp()
		return
	}

	// 加载配置
	if err := config.LoadConfig(*configPath); err != nil {
		fatalf("加载配置失败: %v", err)
	}
	cfg := &config.GlobalConfig
	if cfg.Storage.Driver == "memory" {
		fatalf("内存存储无需管理，请在配置中选择 postgres 或 sqlite")
	}

	// 初始化数据库连接
	if err := db.Open(); err != nil {
		fatalf("打开数据库失败: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// 执行操作
	switch *action {
	case "reset":
		resetDatabase()
	case "init":
		initDatabase()
	case "seed":
		path := *seedPath
		if path == "" {
			path = cfg.Storage.CatalogSeed
		}
		seedDatabase(ctx, path)
	case "reconcile":
		drainRepairs(ctx)
	case "admin":
		createAdmin(ctx, cfg, *name, *email, *password, *gender)
	default:
		fatalf("未知操作: %s", *action)
	}
}

// fatalf 红色输出错误并退出
func fatalf(format string, args ...interface{}) {
	color.Red(format, args...)
	os.Exit(1)
}

// showHelp 显示帮助信息
func showHelp() {
	color.Cyan("ForBattle 数据库管理工具")
	color.White("")
	color.White("用法:")
	color.White("  go run scripts/db_manager.go -action=<操作> [-config=<配置文件>]")
	color.White("")
	color.White("操作:")
	color.White("  reset      - 重置数据库（删除所有表和数据）")
	color.White("  init       - 初始化数据库（创建表结构）")
	color.White("  seed       - 导入角色模板与宝箱目录")
	color.White("  reconcile  - 排空Redis中的好友/对战修复队列")
	color.White("  admin      - 创建管理员账号（需要 -name -email -password）")
	color.White("  help       - 显示此帮助信息")
	color.White("")
	color.White("示例:")
	color.White("  go run scripts/db_manager.go -action=reset && go run scripts/db_manager.go -action=init")
	color.White("  go run scripts/db_manager.go -action=seed -seed=config/catalog.yaml")
	color.White("  go run scripts/db_manager.go -action=admin -name=root -email=root@example.com -password='S3cret!pass'")
}

// resetDatabase 重置数据库
func resetDatabase() {
	color.Yellow("⚠️  正在重置数据库...")
	color.Yellow("⚠️  这将删除所有表和数据！")

	if err := db.DropAllTables(); err != nil {
		fatalf("重置数据库失败: %v", err)
	}

	color.Green("✅ 数据库重置完成")
}

// initDatabase 初始化数据库
func initDatabase() {
	color.Cyan("🚀 正在初始化数据库 (%s)...", db.Driver)

	if err := db.InitAllTables(); err != nil {
		fatalf("初始化数据库表失败: %v", err)
	}

	color.Green("✅ 数据库初始化完成")
	color.White("")
	color.White("📋 已创建的表:")
	color.White("  - players (玩家表)")
	color.White("  - character_templates (角色模板表)")
	color.White("  - character_instances (角色实例表)")
	color.White("  - chests / chest_characters (宝箱表)")
	color.White("  - friend_links (好友关系表)")
	color.White("  - achievements (成就表)")
	color.White("  - battle_records (对战记录表)")
	color.White("")
	color.White("💡 提示: 使用以下命令导入角色目录:")
	color.White("  go run scripts/db_manager.go -action=seed")
}

// seedDatabase 导入目录种子
func seedDatabase(ctx context.Context, path string) {
	if err := db.InitAllTables(); err != nil {
		fatalf("初始化数据库表失败: %v", err)
	}
	seed, err := catalog.Load(path)
	if err != nil {
		fatalf("读取目录种子失败: %v", err)
	}
	stats, err := catalog.Apply(ctx, sqlstore.New(db.DB, db.Driver), seed)
	if err != nil {
		fatalf("导入目录种子失败: %v", err)
	}
	color.Green("✅ 目录导入完成: 新建 %d，更新 %d", stats.Created, stats.Updated)
}

// drainRepairs 手动排空修复队列
func drainRepairs(ctx context.Context) {
	if err := db.InitRedis(); err != nil {
		fatalf("初始化Redis失败: %v", err)
	}
	defer db.CloseRedis()
	if db.RedisClient == nil {
		fatalf("Redis未启用，修复队列只存在于服务进程内存中")
	}

	worker := &reconcile.Worker{
		Queue: reconcile.NewRedisQueue(db.RedisClient, reconcile.DefaultQueueKey),
		Store: sqlstore.New(db.DB, db.Driver),
	}
	stats, err := worker.Drain(ctx)
	if err != nil {
		fatalf("排空修复队列失败: %v", err)
	}
	color.Green("✅ 修复完成 %d", stats.Applied)
	if stats.Requeued > 0 {
		color.Yellow("⚠️  重新入队 %d", stats.Requeued)
	}
	if stats.Dropped > 0 {
		color.Red("❌ 丢弃 %d", stats.Dropped)
	}
}

// createAdmin 创建管理员账号
func createAdmin(ctx context.Context, cfg *config.Config, name, email, password, gender string) {
	if name == "" || email == "" || password == "" {
		fatalf("创建管理员需要 -name -email -password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fatalf("密码哈希失败: %v", err)
	}

	eng := engine.New(sqlstore.New(db.DB, db.Driver), cfg.Game)
	p, err := eng.CreateAdmin(ctx, engine.RegisterInput{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Gender:       gender,
	})
	if err != nil {
		fatalf("创建管理员失败: %v", err)
	}
	color.Green("✅ 管理员 %s 已创建 (ID: %d)", p.Name, p.PlayerID)
}
