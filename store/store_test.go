package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/identity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*UserStore, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return New(db), db
}

func TestFindUserByEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "  Ada@Example.com ", "Ada Lovelace", "$2a$hash", true)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}

	got, err := s.FindUserByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if got.ID != created.ID || got.FullName != "Ada Lovelace" || !got.EmailVerified || got.PasswordHash != "$2a$hash" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if len(got.Accounts) != 0 {
		t.Fatalf("expected no linked accounts, got %v", got.Accounts)
	}

	if _, err := s.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, goSession.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "  "); !errors.Is(err, goSession.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for blank email, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "ada@example.com", "Ada", "", true); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := s.CreateUser(ctx, "ADA@example.com", "Ada again", "", true); err == nil {
		t.Fatal("expected unique email violation")
	}
}

func TestLinkOAuthAccountCreatesUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	profile := identity.Profile{
		Sub:           "google-sub-1",
		Name:          "Grace Hopper",
		Email:         "Grace@Example.com",
		Picture:       "https://example.com/grace.png",
		EmailVerified: true,
	}
	rec, err := s.LinkOAuthAccount(ctx, "Google", profile)
	if err != nil {
		t.Fatalf("LinkOAuthAccount failed: %v", err)
	}
	if rec.ID == "" || rec.Email != "grace@example.com" || rec.PasswordHash != "" || !rec.EmailVerified {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Accounts) != 1 || rec.Accounts[0].Provider != "google" || rec.Accounts[0].ProviderAccountID != "google-sub-1" {
		t.Fatalf("unexpected accounts: %+v", rec.Accounts)
	}

	again, err := s.LinkOAuthAccount(ctx, "google", profile)
	if err != nil {
		t.Fatalf("second LinkOAuthAccount failed: %v", err)
	}
	if again.ID != rec.ID || len(again.Accounts) != 1 {
		t.Fatalf("relinking must be idempotent: %+v", again)
	}
}

func TestLinkOAuthAccountAttachesToExistingUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	existing, err := s.CreateUser(ctx, "ada@example.com", "Ada Lovelace", "$2a$hash", false)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	rec, err := s.LinkOAuthAccount(ctx, "google", identity.Profile{
		Sub:           "g-ada",
		Name:          "Someone Else",
		Email:         "ada@example.com",
		Picture:       "https://example.com/ada.png",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("LinkOAuthAccount failed: %v", err)
	}
	if rec.ID != existing.ID {
		t.Fatalf("expected link to existing user %s, got %s", existing.ID, rec.ID)
	}
	if rec.FullName != "Ada Lovelace" {
		t.Fatalf("existing name must be kept, got %q", rec.FullName)
	}
	if rec.Picture != "https://example.com/ada.png" || !rec.EmailVerified {
		t.Fatalf("empty fields should be filled: %+v", rec)
	}
	if rec.PasswordHash != "$2a$hash" {
		t.Fatal("password hash must survive linking")
	}
	if got := rec.Providers(); len(got) != 1 || got[0] != "google" {
		t.Fatalf("unexpected providers: %v", got)
	}
}

func TestLinkOAuthAccountRefusesUnverifiedClaim(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	victim, err := s.CreateUser(ctx, "victim@example.com", "Victim", "$2a$hash", true)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err = s.LinkOAuthAccount(ctx, "corp", identity.Profile{
		Sub:   "attacker-sub",
		Email: "victim@example.com",
	})
	if !errors.Is(err, goSession.ErrWrongLoginMethod) {
		t.Fatalf("expected ErrWrongLoginMethod, got %v", err)
	}

	var count int64
	if err := db.Model(&Account{}).Where("user_id = ?", victim.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no linked accounts, got %d", count)
	}
}

func TestLinkOAuthAccountResolvesByLinkedAccount(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	a, err := s.LinkOAuthAccount(ctx, "google", identity.Profile{Sub: "sub-A", Email: "a@example.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("LinkOAuthAccount failed: %v", err)
	}
	b, err := s.CreateUser(ctx, "b@example.com", "B", "$2a$hash", true)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := s.LinkOAuthAccount(ctx, "google", identity.Profile{
		Sub:           "sub-A",
		Email:         "b@example.com",
		Picture:       "https://example.com/b.png",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("LinkOAuthAccount failed: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("sub-A must resolve to its owner %s, got %s", a.ID, got.ID)
	}
	if got.Email != "a@example.com" {
		t.Fatalf("owner email must not change, got %q", got.Email)
	}

	var count int64
	if err := db.Model(&Account{}).Where("user_id = ?", b.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("user b must stay unlinked, got %d accounts", count)
	}
}

func TestLinkOAuthAccountValidatesProfile(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		provider string
		profile  identity.Profile
	}{
		{"", identity.Profile{Sub: "s", Email: "a@example.com"}},
		{"google", identity.Profile{Email: "a@example.com"}},
		{"google", identity.Profile{Sub: "s"}},
	}
	for _, tc := range cases {
		if _, err := s.LinkOAuthAccount(ctx, tc.provider, tc.profile); err == nil {
			t.Fatalf("expected error for provider=%q profile=%+v", tc.provider, tc.profile)
		}
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CreateUser(ctx, "ada@example.com", "Ada", "$2a$old", true)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.UpdatePasswordHash(ctx, rec.ID, "$argon2id$new"); err != nil {
		t.Fatalf("UpdatePasswordHash failed: %v", err)
	}
	got, err := s.FindUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail failed: %v", err)
	}
	if got.PasswordHash != "$argon2id$new" {
		t.Fatalf("hash not updated: %q", got.PasswordHash)
	}

	if err := s.UpdatePasswordHash(ctx, "missing", "x"); !errors.Is(err, goSession.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteUserRemovesAccounts(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	rec, err := s.LinkOAuthAccount(ctx, "google", identity.Profile{Sub: "g1", Email: "grace@example.com"})
	if err != nil {
		t.Fatalf("LinkOAuthAccount failed: %v", err)
	}
	if err := s.DeleteUser(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := s.FindUserByEmail(ctx, "grace@example.com"); !errors.Is(err, goSession.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}
	var count int64
	if err := db.Model(&Account{}).Where("user_id = ?", rec.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected accounts removed, %d left", count)
	}
	if err := s.DeleteUser(ctx, rec.ID); !errors.Is(err, goSession.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestStoreUnavailableAfterClose(t *testing.T) {
	s, db := newTestStore(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	_ = sqlDB.Close()

	_, err = s.FindUserByEmail(context.Background(), "ada@example.com")
	if !errors.Is(err, goSession.ErrUserStoreUnavailable) {
		t.Fatalf("expected ErrUserStoreUnavailable, got %v", err)
	}
}

func TestEngineLoginAgainstStore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	if _, err := s.CreateUser(ctx, "ada@example.com", "Ada Lovelace", string(hash), true); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Security.EnableLoginThrottle = false
	cfg.Password.BcryptCost = bcrypt.MinCost
	engine, err := goSession.New().WithConfig(cfg).WithUserProvider(s).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	result, err := engine.Login(ctx, "Ada@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Identity.Email != "ada@example.com" || result.Identity.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected identity: %+v", result.Identity)
	}

	if _, err := engine.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, goSession.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

type stubProvider struct {
	profile identity.Profile
}

func (stubProvider) Name() string { return "corp" }

func (stubProvider) AuthCodeURL(state, _ string) string {
	return "https://idp.example.com/auth?state=" + state
}

func (p stubProvider) Exchange(context.Context, string, string) (identity.Profile, error) {
	return p.profile, nil
}

func TestEngineOAuthAgainstStoreRefusesUnverifiedClaim(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "victim@example.com", "Victim", "$2a$hash", true); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	engine, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(s).
		WithOAuthProvider(stubProvider{profile: identity.Profile{Sub: "attacker-sub", Email: "victim@example.com"}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	start, err := engine.BeginOAuth(ctx, "corp", "")
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	if _, err := engine.CompleteOAuth(ctx, "corp", start.State, "code"); !errors.Is(err, goSession.ErrWrongLoginMethod) {
		t.Fatalf("expected ErrWrongLoginMethod, got %v", err)
	}
}
