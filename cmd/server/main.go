// main.go

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/catalog"
	"github.com/jacl-coder/ForBattle-Server/internal/engine"
	"github.com/jacl-coder/ForBattle-Server/internal/gateway"
	"github.com/jacl-coder/ForBattle-Server/internal/leaderboard"
	"github.com/jacl-coder/ForBattle-Server/internal/notify"
	"github.com/jacl-coder/ForBattle-Server/internal/reconcile"
	"github.com/jacl-coder/ForBattle-Server/internal/storage"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/sqlstore"
	"github.com/jacl-coder/ForBattle-Server/pkg/db"
)

// reconcileInterval 修复队列排空间隔
const reconcileInterval = 30 * time.Second

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	cfg := &config.GlobalConfig

	// 初始化存储
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("初始化存储失败: %v", err)
	}
	defer store.Close()

	// 导入角色与宝箱目录
	if cfg.Storage.CatalogSeed != "" {
		seedCatalog(store, cfg.Storage.CatalogSeed)
	}

	// 初始化Redis连接
	if err := db.InitRedis(); err != nil {
		log.Fatalf("初始化Redis失败: %v", err)
	}
	defer db.CloseRedis()

	var (
		ranker   leaderboard.Ranker
		queue    reconcile.Queue
		denylist gateway.Denylist
	)
	if db.RedisClient != nil {
		redisRanker := leaderboard.NewRedisRanker(db.RedisClient, store)
		if err := redisRanker.Rebuild(context.Background()); err != nil {
			log.Printf("重建排行榜缓存失败: %v", err)
		}
		ranker = redisRanker
		queue = reconcile.NewRedisQueue(db.RedisClient, reconcile.DefaultQueueKey)
		denylist = gateway.NewRedisDenylist(db.RedisClient, cfg.Auth.DenylistPrefix, cfg.Auth.TokenTTL)
	} else {
		ranker = leaderboard.NewStoreRanker(store)
		queue = reconcile.NewMemoryQueue()
		denylist = gateway.NewMemoryDenylist()
	}

	hub := notify.NewHub()
	eng := engine.New(store, cfg.Game,
		engine.WithRanker(ranker),
		engine.WithRepairQueue(queue),
		engine.WithNotifier(hub),
	)

	// 后台排空修复队列
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runReconciler(ctx, &reconcile.Worker{Queue: queue, Store: store})

	// 创建网关服务
	gatewayServer, err := gateway.NewGateway(cfg, eng,
		gateway.WithHub(hub),
		gateway.WithDenylist(denylist),
	)
	if err != nil {
		log.Fatalf("创建网关服务失败: %v", err)
	}

	// 启动网关服务
	if err := gatewayServer.Start(); err != nil {
		log.Fatalf("启动网关服务失败: %v", err)
	}
	log.Printf("服务已启动，存储驱动: %s", cfg.Storage.Driver)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("接收到关闭信号，正在关闭服务器...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := gatewayServer.Stop(shutdownCtx); err != nil {
		log.Printf("关闭网关服务失败: %v", err)
	}

	log.Println("服务器已安全关闭")
}

// openStore 按 storage.driver 打开存储
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Driver == "memory" {
		log.Println("使用内存存储，重启后数据不会保留")
		return memory.New(), nil
	}

	if err := db.Open(); err != nil {
		return nil, err
	}
	if err := db.InitAllTables(); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db.DB, db.Driver), nil
}

// seedCatalog 目录文件缺失时只记录日志
func seedCatalog(store storage.Store, path string) {
	seed, err := catalog.Load(path)
	if err != nil {
		log.Printf("读取目录种子失败: %v", err)
		return
	}
	stats, err := catalog.Apply(context.Background(), store, seed)
	if err != nil {
		log.Printf("导入目录种子失败: %v", err)
		return
	}
	log.Printf("目录种子导入完成: 新建 %d，更新 %d", stats.Created, stats.Updated)
}

// runReconciler 定时排空修复队列
func runReconciler(ctx context.Context, worker *reconcile.Worker) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := worker.Drain(ctx)
			if err != nil && ctx.Err() == nil {
				log.Printf("排空修复队列失败: %v", err)
				continue
			}
			if stats.Applied+stats.Requeued+stats.Dropped > 0 {
				log.Printf("修复队列: 完成 %d，重试 %d，丢弃 %d", stats.Applied, stats.Requeued, stats.Dropped)
			}
		case <-ctx.Done():
			return
		}
	}
}
