package gateway

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/engine"
	"github.com/jacl-coder/ForBattle-Server/internal/notify"
)

// Gateway HTTP网关，负责认证、限流与路由，业务规则全部在引擎中
type Gateway struct {
	config     *config.Config
	engine     *engine.Engine
	tokens     *TokenIssuer
	denylist   Denylist
	captcha    CaptchaVerifier
	hub        *notify.Hub
	limiter    *RateLimiter
	bcryptCost int
	// loginDelay 返回本次登录的等待时间
	loginDelay func() time.Duration

	httpServer *http.Server
	isRunning  bool
}

// Option 网关选项
type Option func(*Gateway)

// WithDenylist 使用指定的令牌黑名单
func WithDenylist(d Denylist) Option {
	return func(g *Gateway) { g.denylist = d }
}

// WithCaptcha 使用指定的人机验证
func WithCaptcha(c CaptchaVerifier) Option {
	return func(g *Gateway) { g.captcha = c }
}

// WithHub 启用通知推送
func WithHub(h *notify.Hub) Option {
	return func(g *Gateway) { g.hub = h }
}

// WithBcryptCost 设置密码哈希强度
func WithBcryptCost(cost int) Option {
	return func(g *Gateway) { g.bcryptCost = cost }
}

// NewGateway 创建新的网关
func NewGateway(cfg *config.Config, eng *engine.Engine, opts ...Option) (*Gateway, error) {
	tokens, err := NewTokenIssuer(cfg.Auth)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		config:     cfg,
		engine:     eng,
		tokens:     tokens,
		denylist:   NewMemoryDenylist(),
		limiter:    NewRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow),
		bcryptCost: bcrypt.DefaultCost,
	}
	if cfg.Auth.CaptchaEnabled {
		g.captcha = NewHTTPCaptcha(cfg.Auth.CaptchaVerifyURL, cfg.Auth.CaptchaSecret)
	}
	g.loginDelay = uniformDelay(cfg.Auth.LoginDelayMin, cfg.Auth.LoginDelayMax)

	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// uniformDelay 在 [lo, hi] 中均匀取值
func uniformDelay(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
}

// Start 启动网关
func (g *Gateway) Start() error {
	if g.isRunning {
		return fmt.Errorf("网关已经在运行")
	}

	g.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", g.config.Server.GatewayPort),
		Handler:      g.Handler(),
		ReadTimeout:  g.config.Server.ReadTimeout,
		WriteTimeout: g.config.Server.WriteTimeout,
	}

	go func() {
		log.Printf("API网关启动，监听端口: %d", g.config.Server.GatewayPort)
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP服务器错误: %v", err)
		}
	}()

	g.isRunning = true
	return nil
}

// Stop 停止网关
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.isRunning {
		return nil
	}
	g.isRunning = false
	g.limiter.Stop()
	if g.hub != nil {
		g.hub.Close()
	}
	if err := g.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭HTTP服务器失败: %w", err)
	}
	log.Println("API网关已停止")
	return nil
}

// Handler 创建HTTP处理器
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// 认证
	mux.Handle("POST /register", g.limiter.Middleware(http.HandlerFunc(g.handleRegister)))
	mux.Handle("POST /login", g.limiter.Middleware(http.HandlerFunc(g.handleLogin)))
	mux.Handle("POST /admin/login", g.limiter.Middleware(http.HandlerFunc(g.handleAdminLogin)))

	// 玩家
	mux.Handle("PATCH /players/{name}/starter-pack", g.authed(g.handleStarterPack))
	mux.Handle("GET /players/{name}/profile", g.authed(g.handleProfile))
	mux.Handle("GET /players/{name}", g.authed(g.handlePublicProfile))
	mux.Handle("PATCH /players/{name}", g.authed(g.handleUpdatePlayer))
	mux.Handle("DELETE /players/{name}", g.authed(g.handleDeletePlayer))
	mux.Handle("PATCH /players/{name}/champion", g.authed(g.handleSelectChampion))

	// 好友
	mux.Handle("POST /friends/requests", g.authed(g.handleSendRequest))
	mux.Handle("PATCH /friends/requests/accept", g.authed(g.handleAcceptRequest))
	mux.Handle("DELETE /friends/{requesterId}/{friendId}", g.authed(g.handleRemoveFriend))

	// 宝箱与角色
	mux.Handle("GET /chests", g.authed(g.handleListChests))
	mux.Handle("POST /chests/{chest}/open", g.authed(g.handleOpenChest))
	mux.Handle("GET /characters", g.authed(g.handleListCharacters))

	// 对战
	mux.Handle("POST /battles", g.authed(g.handleBattle))
	mux.Handle("GET /battles/{name}", g.authed(g.handleBattleHistory))
	mux.Handle("GET /leaderboard", g.authed(g.handleLeaderboard))

	// 管理员
	mux.Handle("POST /admin/chests", g.authed(g.handleCreateChest))
	mux.Handle("DELETE /admin/chests/{chest}", g.authed(g.handleDeleteChest))
	mux.Handle("POST /admin/chests/{chest}/characters", g.authed(g.handleAddChestCharacter))
	mux.Handle("DELETE /admin/chests/{chest}/characters/{name}", g.authed(g.handleRemoveChestCharacter))
	mux.Handle("POST /admin/characters", g.authed(g.handleCreateCharacter))
	mux.Handle("PUT /admin/characters/{name}", g.authed(g.handleUpdateCharacter))
	mux.Handle("DELETE /admin/battles/{attacker}", g.authed(g.handlePurgeBattles))

	// 通知推送
	mux.Handle("GET /ws/notifications", g.authed(g.handleNotifications))

	// 健康检查端点
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return g.applyMiddleware(mux)
}

// applyMiddleware 应用中间件
func (g *Gateway) applyMiddleware(handler http.Handler) http.Handler {
	loggingMiddleware := NewLoggingMiddleware()
	securityMiddleware := NewSecurityMiddleware()
	corsMiddleware := NewCORSMiddleware()

	// 按顺序应用中间件（从外到内）
	handler = corsMiddleware.Middleware(handler)
	handler = securityMiddleware.Middleware(handler)
	handler = loggingMiddleware.Middleware(handler)

	return handler
}

// handleNotifications 升级为 WebSocket 并按玩家名登记
func (g *Gateway) handleNotifications(w http.ResponseWriter, r *http.Request, claims *Claims) {
	if g.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Message: "通知服务未启用", Code: "UNAVAILABLE"})
		return
	}
	g.hub.ServeWS(w, r, claims.Name)
}
