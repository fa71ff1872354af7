package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/engine"
	"github.com/jacl-coder/ForBattle-Server/internal/models"
)

// Claims 令牌声明
type Claims struct {
	PlayerID int64       `json:"player_id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity 转换为引擎使用的调用者身份
func (c *Claims) Identity() models.Identity {
	return models.Identity{PlayerID: c.PlayerID, Name: c.Name, Email: c.Email, Role: c.Role}
}

// TokenIssuer 签发与校验 HS256 令牌
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建令牌签发器，密钥不能为空
func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("未配置 auth.jwt_secret")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer, ttl: ttl, now: time.Now}, nil
}

// Issue 为玩家签发令牌
func (t *TokenIssuer) Issue(p *models.Player) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		PlayerID: p.PlayerID,
		Name:     p.Name,
		Email:    p.Email,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(p.PlayerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse 校验签名、签发者与有效期
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("无效的令牌声明")
	}
	return claims, nil
}

// bearerToken 从 Authorization 头读取令牌，WebSocket 握手允许使用 token 查询参数
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// authedHandler 已认证请求的处理函数
type authedHandler func(w http.ResponseWriter, r *http.Request, claims *Claims)

// authed 认证中间件：缺少或过期的令牌返回 401，无效令牌返回 403
func (g *Gateway) authed(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			sendFailure(w, http.StatusUnauthorized, "TOKEN_MISSING", "未提供令牌")
			return
		}
		claims, err := g.tokens.Parse(raw)
		if errors.Is(err, jwt.ErrTokenExpired) {
			sendFailure(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "令牌已过期")
			return
		}
		if err != nil {
			sendFailure(w, http.StatusForbidden, "TOKEN_INVALID", "无效的令牌")
			return
		}

		revoked, err := g.isRevoked(r.Context(), claims)
		if err != nil {
			log.Printf("[%s] 查询令牌黑名单失败: %v", requestID(r), err)
		}
		if revoked {
			sendFailure(w, http.StatusUnauthorized, "TOKEN_REVOKED", "令牌已失效")
			return
		}
		next(w, r, claims)
	})
}

// isRevoked 账号删除之前签发的令牌全部失效
func (g *Gateway) isRevoked(ctx context.Context, claims *Claims) (bool, error) {
	since, ok, err := g.denylist.RevokedSince(ctx, claims.PlayerID)
	if err != nil || !ok {
		return false, err
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return !claims.IssuedAt.Time.After(since), nil
}

// validatePassword 至少8位，包含大小写字母、数字和特殊字符
func validatePassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(`!@#%^&*(),.?":{}|<>`, c):
			special = true
		}
	}
	return upper && lower && digit && special
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// LoginRequest 登录请求，管理员登录额外要求 name
type LoginRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Captcha  string `json:"g_recaptcha_response"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	PlayerID  int64       `json:"player_id"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
}

// handleRegister 处理注册请求
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Gender == "" {
		sendFailure(w, http.StatusBadRequest, "MISSING_FIELDS", "name、email、password 和 gender 均为必填")
		return
	}
	if !validatePassword(req.Password) {
		sendFailure(w, http.StatusBadRequest, "WEAK_PASSWORD", "密码至少8位，且需包含大写字母、小写字母、数字和特殊字符")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), g.bcryptCost)
	if err != nil {
		sendError(w, r, fmt.Errorf("密码哈希失败: %w", err), nil)
		return
	}
	p, err := g.engine.Register(r.Context(), engine.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Gender:       req.Gender,
	})
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusCreated, "注册成功", p)
}

// handleLogin 玩家登录
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	g.login(w, r, models.RolePlayer)
}

// handleAdminLogin 管理员登录
func (g *Gateway) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	g.login(w, r, models.RoleAdmin)
}

// login 成功与失败路径等待同样的随机时间
func (g *Gateway) login(w http.ResponseWriter, r *http.Request, role models.Role) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || (role == models.RoleAdmin && req.Name == "") {
		sendFailure(w, http.StatusBadRequest, "MISSING_FIELDS", "缺少必要参数")
		return
	}
	if g.captcha != nil {
		if req.Captcha == "" {
			sendFailure(w, http.StatusBadRequest, "MISSING_FIELDS", "缺少 g_recaptcha_response")
			return
		}
		ok, err := g.captcha.Verify(r.Context(), req.Captcha)
		if err != nil {
			log.Printf("[%s] 人机验证请求失败: %v", requestID(r), err)
		}
		if !ok {
			sendFailure(w, http.StatusBadRequest, "CAPTCHA_FAILED", "人机验证失败")
			return
		}
	}

	if !g.wait(r.Context()) {
		return
	}

	p, err := g.engine.Authenticate(r.Context(), req.Email)
	if err != nil && !errors.Is(err, engine.ErrPlayerNotFound) {
		sendError(w, r, err, nil)
		return
	}
	if p == nil || p.Role != role || (role == models.RoleAdmin && p.Name != req.Name) ||
		bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)) != nil {
		sendFailure(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "账号或密码错误")
		return
	}

	token, expiresAt, err := g.tokens.Issue(p)
	if err != nil {
		sendError(w, r, err, nil)
		return
	}
	sendSuccess(w, http.StatusOK, "登录成功", LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		PlayerID:  p.PlayerID,
		Name:      p.Name,
		Role:      p.Role,
	})
}

// wait 登录延迟，请求取消时返回 false
func (g *Gateway) wait(ctx context.Context) bool {
	d := g.loginDelay()
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
