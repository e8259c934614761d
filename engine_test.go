package goSession

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	fail    error
	updated map[string]string
}

func newMemUsers(users ...UserRecord) *memUsers {
	m := &memUsers{users: map[string]UserRecord{}, updated: map[string]string{}}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return UserRecord{}, m.fail
	}
	u, ok := m.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) LinkOAuthAccount(_ context.Context, provider string, p identity.Profile) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		for _, a := range u.Accounts {
			if a.Provider == provider && a.ProviderAccountID == p.Sub {
				return u, nil
			}
		}
	}
	u, ok := m.users[p.Email]
	switch {
	case !ok:
		u = UserRecord{ID: "u-" + p.Sub, Email: p.Email, FullName: p.Name, Picture: p.Picture, EmailVerified: p.EmailVerified}
	case !p.EmailVerified:
		return UserRecord{}, ErrWrongLoginMethod
	}
	u.Accounts = append(u.Accounts, LinkedAccount{Provider: provider, ProviderAccountID: p.Sub})
	m.users[u.Email] = u
	return u, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated[userID] = hash
	return nil
}

func (m *memUsers) put(u UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Email] = u
}

func (m *memUsers) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, email)
}

type fakeOAuth struct {
	mu       sync.Mutex
	name     string
	verifier string
	profile  identity.Profile
}

func (f *fakeOAuth) Name() string { return f.name }

func (f *fakeOAuth) AuthCodeURL(state, verifier string) string {
	f.mu.Lock()
	f.verifier = verifier
	f.mu.Unlock()
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code, verifier string) (identity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "good-code" {
		return identity.Profile{}, errors.New("invalid_grant")
	}
	if verifier != f.verifier {
		return identity.Profile{}, errors.New("pkce verifier mismatch")
	}
	return f.profile, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func engineTestConfig() Config {
	cfg := testConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, users UserProvider, opts ...func(*Builder)) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	b := New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(users)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func mustBcrypt(t *testing.T, plaintext string) string {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	hash, err := h.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return hash
}

func fixtureUsers(t *testing.T) *memUsers {
	return newMemUsers(
		UserRecord{
			ID:            "u1",
			Email:         "ada@example.com",
			PasswordHash:  mustBcrypt(t, "correct horse"),
			FullName:      "Ada Lovelace",
			Picture:       "https://img.example.com/ada.png",
			EmailVerified: true,
		},
		UserRecord{
			ID:       "u2",
			Email:    "grace@example.com",
			FullName: "Grace Hopper",
			Accounts: []LinkedAccount{{Provider: "google", ProviderAccountID: "g-2"}},
		},
		UserRecord{
			ID:           "u3",
			Email:        "alan@example.com",
			PasswordHash: mustBcrypt(t, "enigma machine"),
			FullName:     "Alan Turing",
		},
	)
}

func TestVerifyCredentialsOutcomes(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Security.EnableLoginThrottle = false
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t))

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "unknown email", email: "nobody@example.com", password: "whatever1", wantErr: ErrInvalidCredentials},
		{name: "external only", email: "grace@example.com", password: "whatever1", wantErr: ErrWrongLoginMethod},
		{name: "unverified", email: "alan@example.com", password: "enigma machine", wantErr: ErrUnverifiedEmail},
		{name: "wrong password", email: "ada@example.com", password: "battery staple", wantErr: ErrInvalidCredentials},
		{name: "empty password", email: "ada@example.com", password: "", wantErr: ErrInvalidCredentials},
		{name: "correct", email: "ada@example.com", password: "correct horse"},
		{name: "email normalized", email: "  Ada@Example.COM ", password: "correct horse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := engine.VerifyCredentials(context.Background(), tc.email, tc.password)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if !IsAuthFailure(err) {
					t.Fatalf("expected %v to be an auth failure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := identity.Identity{ID: "u1", FullName: "Ada Lovelace", Email: "ada@example.com", Picture: "https://img.example.com/ada.png"}
			if id != want {
				t.Fatalf("identity = %+v, want %+v", id, want)
			}
		})
	}
}

func TestVerifyCredentialsStoreUnavailable(t *testing.T) {
	users := fixtureUsers(t)
	users.fail = context.DeadlineExceeded
	engine, _ := newTestEngine(t, engineTestConfig(), users)

	_, err := engine.VerifyCredentials(context.Background(), "ada@example.com", "correct horse")
	if !errors.Is(err, ErrUserStoreUnavailable) {
		t.Fatalf("expected ErrUserStoreUnavailable, got %v", err)
	}
	if IsAuthFailure(err) {
		t.Fatal("store outage must not be reported as an auth failure")
	}
}

func TestLoginThrottle(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Security.MaxLoginAttempts = 2
	engine, mr := newTestEngine(t, cfg, fixtureUsers(t))
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "ada@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := engine.Login(ctx, "ada@example.com", "correct horse"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Fatalf("rate limited counter = %d, want 1", got)
	}

	mr.FastForward(cfg.Security.LoginCooldown + time.Second)
	if _, err := engine.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestLoginIssuesMaterializableToken(t *testing.T) {
	engine, _ := newTestEngine(t, engineTestConfig(), fixtureUsers(t))

	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Token == "" || result.Claims == nil {
		t.Fatal("expected token and claims")
	}
	if !result.ExpiresAt.After(time.Now().Add(29 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", result.ExpiresAt)
	}

	s := engine.Materialize(result.Token)
	if s == nil {
		t.Fatal("expected session")
	}
	if s.User.ID != "u1" || s.User.Name != "Ada Lovelace" || s.User.Email != "ada@example.com" {
		t.Fatalf("unexpected session user %+v", s.User)
	}
	if engine.Materialize("not-a-token") != nil {
		t.Fatal("expected nil session for garbage token")
	}
	if engine.Materialize("") != nil {
		t.Fatal("expected nil session for empty token")
	}
}

func TestRefreshPicksUpRenamedUser(t *testing.T) {
	users := fixtureUsers(t)
	engine, _ := newTestEngine(t, engineTestConfig(), users)

	first, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	renamed, _ := users.FindUserByEmail(context.Background(), "ada@example.com")
	renamed.FullName = "Augusta Ada King"
	users.put(renamed)

	next, err := engine.Refresh(context.Background(), first.Token)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.Token == first.Token {
		t.Fatal("expected a new token")
	}
	if next.Claims.ID == first.Claims.ID {
		t.Fatal("expected a fresh jti")
	}
	if got := engine.Materialize(next.Token).User.Name; got != "Augusta Ada King" {
		t.Fatalf("name = %q, want renamed", got)
	}
}

func TestRefreshDeletedUserVanishes(t *testing.T) {
	users := fixtureUsers(t)
	sink := newCaptureSink(16)
	engine, _ := newTestEngine(t, engineTestConfig(), users, func(b *Builder) { b.WithAuditSink(sink) })

	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	users.remove("ada@example.com")

	next, err := engine.Refresh(context.Background(), result.Token)
	if !errors.Is(err, ErrUserVanished) {
		t.Fatalf("expected ErrUserVanished, got %v", err)
	}
	if next != nil {
		t.Fatal("expected no token for a vanished user")
	}

	engine.Close()
	if !sink.has(auditEventUserVanished) {
		t.Fatal("expected user_vanished audit event")
	}
}

func TestRefreshRejectsTamperedToken(t *testing.T) {
	engine, _ := newTestEngine(t, engineTestConfig(), fixtureUsers(t))

	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	parts := strings.Split(result.Token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "xx"
	tampered := strings.Join(parts, ".")

	if _, err := engine.Refresh(context.Background(), tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if engine.Materialize(tampered) != nil {
		t.Fatal("expected nil session for tampered token")
	}
}

func TestRefreshCustomCallback(t *testing.T) {
	refresh := TokenRefreshFunc(func(_ context.Context, claims *jwt.SessionClaims) (identity.Identity, error) {
		return identity.New(claims.UserID, "Static Name", claims.Email, ""), nil
	})
	engine, _ := newTestEngine(t, engineTestConfig(), fixtureUsers(t), func(b *Builder) { b.WithTokenRefresh(refresh) })

	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	next, err := engine.Refresh(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.Identity.FullName != "Static Name" {
		t.Fatalf("expected callback identity, got %+v", next.Identity)
	}
}

func TestUpgradeHashOnLogin(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Password.Primary = "argon2id"
	cfg.Password.UpgradeOnLogin = true
	users := fixtureUsers(t)
	engine, _ := newTestEngine(t, cfg, users)

	if _, err := engine.Login(context.Background(), "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	users.mu.Lock()
	hash := users.updated["u1"]
	users.mu.Unlock()
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected upgraded argon2id hash, got %q", hash)
	}
}

func TestOAuthFlow(t *testing.T) {
	users := fixtureUsers(t)
	google := &fakeOAuth{
		name: "google",
		profile: identity.Profile{
			Sub:           "g-100",
			Name:          "Katherine Johnson",
			Email:         "Katherine@Example.com",
			Picture:       "https://img.example.com/kj.png",
			EmailVerified: true,
		},
	}
	engine, _ := newTestEngine(t, engineTestConfig(), users, func(b *Builder) { b.WithOAuthProvider(google) })
	ctx := context.Background()

	start, err := engine.BeginOAuth(ctx, "Google", "/protected")
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	if start.Provider != "google" || !strings.Contains(start.URL, url.QueryEscape(start.State)) {
		t.Fatalf("unexpected start %+v", start)
	}

	result, err := engine.CompleteOAuth(ctx, "google", start.State, "good-code")
	if err != nil {
		t.Fatalf("CompleteOAuth failed: %v", err)
	}
	if result.Identity.ID != "u-g-100" || result.Identity.Email != "katherine@example.com" {
		t.Fatalf("unexpected identity %+v", result.Identity)
	}
	if result.RedirectURL != "http://localhost:8080/protected" {
		t.Fatalf("redirect = %q", result.RedirectURL)
	}
	linked, err := users.FindUserByEmail(ctx, "katherine@example.com")
	if err != nil || len(linked.Accounts) != 1 || linked.Accounts[0].Provider != "google" {
		t.Fatalf("expected linked google account, got %+v (%v)", linked, err)
	}

	if _, err := engine.CompleteOAuth(ctx, "google", start.State, "good-code"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected replay to fail with ErrOAuthStateInvalid, got %v", err)
	}
}

func TestOAuthFailures(t *testing.T) {
	google := &fakeOAuth{name: "google", profile: identity.Profile{Sub: "g-1", Email: "x@example.com"}}
	github := &fakeOAuth{name: "github", profile: identity.Profile{Sub: "h-1", Email: "x@example.com"}}
	engine, mr := newTestEngine(t, engineTestConfig(), fixtureUsers(t), func(b *Builder) {
		b.WithOAuthProvider(google).WithOAuthProvider(github)
	})
	ctx := context.Background()

	if _, err := engine.BeginOAuth(ctx, "facebook", ""); !errors.Is(err, ErrOAuthProviderUnknown) {
		t.Fatalf("expected ErrOAuthProviderUnknown, got %v", err)
	}

	start, err := engine.BeginOAuth(ctx, "google", "")
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	if _, err := engine.CompleteOAuth(ctx, "github", start.State, "good-code"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected provider mismatch to fail, got %v", err)
	}

	start, _ = engine.BeginOAuth(ctx, "google", "")
	if _, err := engine.CompleteOAuth(ctx, "google", start.State, "bad-code"); !errors.Is(err, ErrOAuthExchangeFailed) {
		t.Fatalf("expected ErrOAuthExchangeFailed, got %v", err)
	}

	start, _ = engine.BeginOAuth(ctx, "google", "")
	mr.FastForward(engine.Config().OAuth.StateTTL + time.Second)
	if _, err := engine.CompleteOAuth(ctx, "google", start.State, "good-code"); !errors.Is(err, ErrOAuthStateInvalid) {
		t.Fatalf("expected expired state to fail, got %v", err)
	}

	if got := engine.MetricsSnapshot().Counters[MetricOAuthFailure]; got != 4 {
		t.Fatalf("oauth failure counter = %d, want 4", got)
	}
}

func TestOAuthUnverifiedEmailCannotClaimExistingUser(t *testing.T) {
	users := fixtureUsers(t)
	corp := &fakeOAuth{
		name: "corp",
		profile: identity.Profile{
			Sub:   "corp-sub",
			Name:  "Not Ada",
			Email: "ada@example.com",
		},
	}
	engine, _ := newTestEngine(t, engineTestConfig(), users, func(b *Builder) { b.WithOAuthProvider(corp) })
	ctx := context.Background()

	start, err := engine.BeginOAuth(ctx, "corp", "")
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	result, err := engine.CompleteOAuth(ctx, "corp", start.State, "good-code")
	if !errors.Is(err, ErrWrongLoginMethod) {
		t.Fatalf("expected ErrWrongLoginMethod, got %v", err)
	}
	if result != nil {
		t.Fatalf("no session may be issued, got %+v", result)
	}

	ada, err := users.FindUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if len(ada.Accounts) != 0 {
		t.Fatalf("account must not be linked: %+v", ada.Accounts)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricOAuthFailure] != 1 || snap.Counters[MetricSessionIssued] != 0 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
}

func TestResolveRedirect(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Redirect.AllowedDomain = "example.com"
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t))
	ctx := context.Background()

	tests := []struct {
		target string
		want   string
	}{
		{target: "", want: "http://localhost:8080/protected"},
		{target: "/dashboard", want: "http://localhost:8080/dashboard"},
		{target: "https://app.example.com/x", want: "https://app.example.com/x"},
		{target: "https://evil.test/phish", want: "http://localhost:8080"},
		{target: "//evil.test", want: "http://localhost:8080"},
	}
	for _, tc := range tests {
		if got := engine.ResolveRedirect(ctx, tc.target); got != tc.want {
			t.Fatalf("ResolveRedirect(%q) = %q, want %q", tc.target, got, tc.want)
		}
	}
	if got := engine.MetricsSnapshot().Counters[MetricRedirectRejected]; got != 2 {
		t.Fatalf("redirect rejected counter = %d, want 2", got)
	}
}

func TestSessionCookieAndSignInURL(t *testing.T) {
	cfg := engineTestConfig()
	engine, _ := newTestEngine(t, cfg, fixtureUsers(t))

	if engine.CookieName() != "next-session-token" {
		t.Fatalf("cookie name = %q", engine.CookieName())
	}
	result, err := engine.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	c := engine.SessionCookie(result)
	if c.Value != result.Token || !c.HttpOnly || c.Path != "/" || c.Secure {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if clear := engine.ClearSessionCookie(); clear.MaxAge != -1 {
		t.Fatalf("clear cookie MaxAge = %d", clear.MaxAge)
	}

	got := engine.SignInURL("/protected", "CredentialsSignin")
	if got != "http://localhost:8080/login?callbackUrl=%2Fprotected&error=CredentialsSignin" {
		t.Fatalf("SignInURL = %q", got)
	}
}

func TestBuildRequirements(t *testing.T) {
	_, rdb := newTestRedis(t)
	users := fixtureUsers(t)

	if _, err := New().WithConfig(engineTestConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected missing user provider to fail")
	}
	if _, err := New().WithConfig(engineTestConfig()).WithUserProvider(users).Build(); err == nil {
		t.Fatal("expected throttle without redis to fail")
	}

	cfg := engineTestConfig()
	cfg.Security.EnableLoginThrottle = false
	engine, err := New().WithConfig(cfg).WithUserProvider(users).Build()
	if err != nil {
		t.Fatalf("expected redis-less build without throttle to succeed: %v", err)
	}
	defer engine.Close()
	if _, err := engine.BeginOAuth(context.Background(), "google", ""); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without redis, got %v", err)
	}

	b := New().WithConfig(engineTestConfig()).WithRedis(rdb).WithUserProvider(users)
	built, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer built.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}

	dup := New().WithConfig(engineTestConfig()).WithRedis(rdb).WithUserProvider(users).
		WithOAuthProvider(&fakeOAuth{name: "google"}).
		WithOAuthProvider(&fakeOAuth{name: "Google"})
	if _, err := dup.Build(); err == nil {
		t.Fatal("expected duplicate provider to fail")
	}
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a@b.c", "password1"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.Materialize("x") != nil {
		t.Fatal("expected nil session")
	}
	if name := e.CookieName(); name != "" {
		t.Fatalf("expected empty cookie name, got %q", name)
	}
	e.Close()
}

func TestHashPasswordMatchesLogin(t *testing.T) {
	users := fixtureUsers(t)
	engine, _ := newTestEngine(t, engineTestConfig(), users)

	hash, err := engine.HashPassword("lambda calculus")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	users.put(UserRecord{
		ID:            "u4",
		Email:         "alonzo@example.com",
		PasswordHash:  hash,
		FullName:      "Alonzo Church",
		EmailVerified: true,
	})

	id, err := engine.VerifyCredentials(context.Background(), "alonzo@example.com", "lambda calculus")
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if id.ID != "u4" {
		t.Fatalf("unexpected identity %+v", id)
	}

	if _, err := engine.HashPassword("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}
