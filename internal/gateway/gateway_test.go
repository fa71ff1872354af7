package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jacl-coder/ForBattle-Server/config"
	"github.com/jacl-coder/ForBattle-Server/internal/engine"
	"github.com/jacl-coder/ForBattle-Server/internal/models"
	"github.com/jacl-coder/ForBattle-Server/internal/storage/memory"
)

const strongPassword = "Str0ng!Pass"

type fixture struct {
	srv    *httptest.Server
	gw     *Gateway
	engine *engine.Engine
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newFixture(t *testing.T, mutate func(*config.Config), opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, tmpl := range []models.CharacterTemplate{
		{Name: "Lillia", Health: 500, Attack: 100, Speed: 1},
		{Name: "Ahri", Health: 420, Attack: 120, Speed: 1.1},
	} {
		if err := store.CreateTemplate(ctx, tmpl); err != nil {
			t.Fatalf("seed template: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.LoginDelayMin = 0
	cfg.Auth.LoginDelayMax = 0
	cfg.Auth.LoginRateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	eng := engine.New(store, cfg.Game)
	gw, err := NewGateway(cfg, eng, append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)...)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		gw.limiter.Stop()
	})
	return &fixture{srv: srv, gw: gw, engine: eng}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func (f *fixture) register(t *testing.T, name string) {
	t.Helper()
	status, env := f.do(t, http.MethodPost, "/register", "", RegisterRequest{
		Name: name, Email: name + "@example.com", Password: strongPassword, Gender: "f",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %+v", name, status, env)
	}
}

func (f *fixture) login(t *testing.T, name string) LoginResponse {
	t.Helper()
	status, env := f.do(t, http.MethodPost, "/login", "", LoginRequest{
		Email: name + "@example.com", Password: strongPassword,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %+v", name, status, env)
	}
	var out LoginResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := f.engine.CreateAdmin(context.Background(), engine.RegisterInput{
		Name: "root", Email: "root@example.com", PasswordHash: string(hash),
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	status, env := f.do(t, http.MethodPost, "/admin/login", "", LoginRequest{
		Name: "root", Email: "root@example.com", Password: strongPassword,
	})
	if status != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d %+v", status, env)
	}
	var out LoginResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode admin login: %v", err)
	}
	return out.Token
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		strongPassword: true,
		"short1!A":     true,
		"Sh0rt!":       false,
		"alllower1!":   false,
		"ALLUPPER1!":   false,
		"NoDigits!!":   false,
		"NoSpecial11":  false,
	}
	for pw, want := range cases {
		if got := validatePassword(pw); got != want {
			t.Fatalf("validatePassword(%q): expected %v, got %v", pw, want, got)
		}
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	f := newFixture(t, nil)

	status, env := f.do(t, http.MethodPost, "/register", "", RegisterRequest{
		Name: "alice", Email: "alice@example.com", Password: "weak", Gender: "f",
	})
	if status != http.StatusBadRequest || env.Code != "WEAK_PASSWORD" {
		t.Fatalf("expected weak password rejection, got %d %+v", status, env)
	}

	f.register(t, "alice")
	f.register(t, "bob")
	status, env = f.do(t, http.MethodPost, "/register", "", RegisterRequest{
		Name: "alice", Email: "other@example.com", Password: strongPassword, Gender: "f",
	})
	if status != http.StatusConflict || env.Code != "NAME_TAKEN" {
		t.Fatalf("expected 409 NAME_TAKEN, got %d %+v", status, env)
	}

	status, env = f.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: "Wr0ng!Pass"})
	if status != http.StatusUnauthorized || env.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected 401 on wrong password, got %d %+v", status, env)
	}

	alice := f.login(t, "alice")
	if alice.Role != models.RolePlayer || alice.Name != "alice" {
		t.Fatalf("unexpected login %+v", alice)
	}

	status, env = f.do(t, http.MethodGet, "/players/alice/profile", alice.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected own profile, got %d %+v", status, env)
	}
	var profile struct {
		Name       string `json:"name"`
		Characters []struct {
			Name string `json:"name"`
		} `json:"characters"`
	}
	if err := json.Unmarshal(env.Data, &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Name != "alice" || len(profile.Characters) != 1 || profile.Characters[0].Name != "Lillia" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	status, env = f.do(t, http.MethodGet, "/players/bob/profile", alice.Token, nil)
	if status != http.StatusForbidden || env.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 403 on foreign profile, got %d %+v", status, env)
	}
	status, _ = f.do(t, http.MethodGet, "/players/bob", alice.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected public profile readable, got %d", status)
	}

	status, env = f.do(t, http.MethodGet, "/players/alice/profile", "", nil)
	if status != http.StatusUnauthorized || env.Code != "TOKEN_MISSING" {
		t.Fatalf("expected 401 without token, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodGet, "/players/alice/profile", "garbage", nil)
	if status != http.StatusForbidden || env.Code != "TOKEN_INVALID" {
		t.Fatalf("expected 403 with bad token, got %d %+v", status, env)
	}
}

func TestAdminLoginRequiresAdminRole(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice")

	status, env := f.do(t, http.MethodPost, "/admin/login", "", LoginRequest{
		Name: "alice", Email: "alice@example.com", Password: strongPassword,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected player rejected on admin login, got %d %+v", status, env)
	}

	f.adminToken(t)
	status, _ = f.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "root@example.com", Password: strongPassword})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected admin rejected on player login, got %d", status)
	}
}

func TestStarterPackAndChestFlow(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.adminToken(t)
	f.register(t, "alice")
	alice := f.login(t, "alice")

	chest := models.Chest{Name: "Gold", Price: 1000, Characters: []string{"Ahri"}}
	status, env := f.do(t, http.MethodPost, "/admin/chests", alice.Token, chest)
	if status != http.StatusForbidden {
		t.Fatalf("expected player forbidden on admin route, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodPost, "/admin/chests", admin, chest)
	if status != http.StatusCreated {
		t.Fatalf("expected chest created, got %d %+v", status, env)
	}

	status, env = f.do(t, http.MethodPost, "/chests/Gold/open", alice.Token, map[string]string{"name": "alice"})
	if status != http.StatusPaymentRequired || env.Code != "INSUFFICIENT_FUNDS" {
		t.Fatalf("expected 402 before starter pack, got %d %+v", status, env)
	}
	var declined engine.ChestResult
	if err := json.Unmarshal(env.Data, &declined); err != nil || declined.Status != engine.ChestDeclined {
		t.Fatalf("expected declined result, got %s (%v)", env.Data, err)
	}

	status, env = f.do(t, http.MethodPatch, "/players/alice/starter-pack", alice.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected starter pack, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodPatch, "/players/alice/starter-pack", alice.Token, nil)
	if status != http.StatusConflict || env.Code != "STARTER_PACK_TAKEN" {
		t.Fatalf("expected 409 on second claim, got %d %+v", status, env)
	}

	status, env = f.do(t, http.MethodPost, "/chests/Gold/open", alice.Token, map[string]string{"name": "alice"})
	if status != http.StatusOK {
		t.Fatalf("expected chest opened, got %d %+v", status, env)
	}
	var opened engine.ChestResult
	if err := json.Unmarshal(env.Data, &opened); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !opened.IsNew || opened.Character == nil || opened.Character.Template != "Ahri" {
		t.Fatalf("expected new Ahri, got %+v", opened)
	}

	status, env = f.do(t, http.MethodPatch, "/players/alice/champion", alice.Token, map[string]string{"character": "Ahri"})
	if status != http.StatusOK {
		t.Fatalf("expected champion selected, got %d %+v", status, env)
	}
}

func TestFriendAndBattleRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice")
	f.register(t, "bob")
	alice, bob := f.login(t, "alice"), f.login(t, "bob")

	status, env := f.do(t, http.MethodPost, "/friends/requests", alice.Token, FriendRequest{RequesterID: alice.PlayerID, RequestedID: bob.PlayerID})
	if status != http.StatusCreated {
		t.Fatalf("expected request sent, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodPost, "/friends/requests", alice.Token, FriendRequest{RequesterID: alice.PlayerID, RequestedID: bob.PlayerID})
	if status != http.StatusConflict || env.Code != "ALREADY_PENDING" {
		t.Fatalf("expected 409 on duplicate, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodPatch, "/friends/requests/accept", bob.Token, AcceptRequest{AccepterID: bob.PlayerID, RequesterID: alice.PlayerID})
	if status != http.StatusOK {
		t.Fatalf("expected accept, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodDelete, "/friends/2/1", bob.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected remove, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodDelete, "/friends/x/1", bob.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad id, got %d %+v", status, env)
	}

	// 双方都用 Lillia，结果为平局
	status, env = f.do(t, http.MethodPost, "/battles", alice.Token, map[string]string{"name": "alice"})
	if status != http.StatusOK {
		t.Fatalf("expected battle, got %d %+v", status, env)
	}
	var res engine.BattleResult
	if err := json.Unmarshal(env.Data, &res); err != nil || res.Outcome != engine.OutcomeDraw {
		t.Fatalf("expected draw, got %s (%v)", env.Data, err)
	}
	status, env = f.do(t, http.MethodGet, "/battles/alice", alice.Token, nil)
	if status != http.StatusNotFound || env.Code != "NO_BATTLE_RECORDS" {
		t.Fatalf("expected 404 without records, got %d %+v", status, env)
	}

	status, env = f.do(t, http.MethodGet, "/leaderboard?limit=5", alice.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected leaderboard, got %d %+v", status, env)
	}
	status, _ = f.do(t, http.MethodGet, "/leaderboard?limit=-1", alice.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad limit, got %d", status)
	}
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Auth.LoginRateLimit = 2
		c.Auth.LoginRateWindow = time.Hour
	})

	bad := LoginRequest{Email: "nobody@example.com", Password: strongPassword}
	for i := 0; i < 2; i++ {
		if status, env := f.do(t, http.MethodPost, "/login", "", bad); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d %+v", i+1, status, env)
		}
	}
	status, env := f.do(t, http.MethodPost, "/login", "", bad)
	if status != http.StatusTooManyRequests || env.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected 429, got %d %+v", status, env)
	}
}

func TestDeletedAccountTokenRevoked(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice")
	alice := f.login(t, "alice")

	status, env := f.do(t, http.MethodDelete, "/players/alice", alice.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected delete, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodGet, "/players/alice/profile", alice.Token, nil)
	if status != http.StatusUnauthorized || env.Code != "TOKEN_REVOKED" {
		t.Fatalf("expected revoked token, got %d %+v", status, env)
	}
}

func TestExpiredToken(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice")

	past, err := NewTokenIssuer(f.gw.config.Auth)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	past.now = func() time.Time { return time.Now().Add(-2 * f.gw.config.Auth.TokenTTL) }
	token, _, err := past.Issue(&models.Player{PlayerID: 1, Name: "alice", Role: models.RolePlayer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	status, env := f.do(t, http.MethodGet, "/players/alice/profile", token, nil)
	if status != http.StatusUnauthorized || env.Code != "TOKEN_EXPIRED" {
		t.Fatalf("expected expired token, got %d %+v", status, env)
	}
}

type stubCaptcha bool

func (s stubCaptcha) Verify(ctx context.Context, response string) (bool, error) {
	return bool(s), nil
}

func TestCaptchaRequired(t *testing.T) {
	f := newFixture(t, nil, WithCaptcha(stubCaptcha(false)))
	f.register(t, "alice")

	status, env := f.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: strongPassword})
	if status != http.StatusBadRequest || env.Code != "MISSING_FIELDS" {
		t.Fatalf("expected missing captcha, got %d %+v", status, env)
	}
	status, env = f.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: strongPassword, Captcha: "token"})
	if status != http.StatusBadRequest || env.Code != "CAPTCHA_FAILED" {
		t.Fatalf("expected captcha failure, got %d %+v", status, env)
	}
}

func TestHTTPCaptcha(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		ok := r.PostForm.Get("secret") == "s3cret" && r.PostForm.Get("response") == "human"
		json.NewEncoder(w).Encode(map[string]bool{"success": ok})
	}))
	defer srv.Close()

	c := NewHTTPCaptcha(srv.URL, "s3cret")
	if ok, err := c.Verify(context.Background(), "human"); err != nil || !ok {
		t.Fatalf("expected human verified, got %v, %v", ok, err)
	}
	if ok, err := c.Verify(context.Background(), "bot"); err != nil || ok {
		t.Fatalf("expected bot rejected, got %v, %v", ok, err)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	now := time.Now()
	if !rl.allowRequest("1.2.3.4", now) {
		t.Fatal("expected first request allowed")
	}
	if rl.allowRequest("1.2.3.4", now.Add(time.Second)) {
		t.Fatal("expected second request in window rejected")
	}
	if !rl.allowRequest("5.6.7.8", now) {
		t.Fatal("expected other client allowed")
	}
	if !rl.allowRequest("1.2.3.4", now.Add(2*time.Minute)) {
		t.Fatal("expected request after window allowed")
	}
}
