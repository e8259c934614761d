package goSession

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/password"
)

// Config is the complete engine configuration. It is copied on Build and
// never mutated afterwards.
type Config struct {
	JWT      JWTConfig
	Cookie   CookieConfig
	Pages    PagesConfig
	Redirect RedirectConfig
	Password PasswordConfig
	Security SecurityConfig
	OAuth    OAuthConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures session token signing.
type JWTConfig struct {
	SessionTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig configures the session cookie. Secure also selects the
// "__Secure-" name prefix; Domain is applied only when Secure is set.
type CookieConfig struct {
	BaseName string
	Secure   bool
	Domain   string
	Path     string
	SameSite http.SameSite
}

/*
====================================
PAGES / REDIRECT CONFIG
====================================
*/

// PagesConfig locates the application's pages.
type PagesConfig struct {
	BaseURL string
	SignIn  string
	// AfterSignIn is used when a login carries no callback URL.
	AfterSignIn string
}

// RedirectMode selects the built-in RedirectPolicy.
type RedirectMode string

const (
	// RedirectSameDomain allows the base origin and AllowedDomain subdomains.
	RedirectSameDomain RedirectMode = "same_domain"
	// RedirectTrustAll follows any target. Rejected in production mode.
	RedirectTrustAll RedirectMode = "trust_all"
)

// RedirectConfig configures post-login redirects.
type RedirectConfig struct {
	Mode          RedirectMode
	AllowedDomain string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures hashing of stored passwords.
type PasswordConfig struct {
	Primary        string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Memory         uint32 // argon2id, KiB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

func (c PasswordConfig) verifierConfig() password.Config {
	return password.Config{
		Primary:    password.Algorithm(strings.ToLower(c.Primary)),
		BcryptCost: c.BcryptCost,
		Argon2: password.Argon2Config{
			Memory:      c.Memory,
			Time:        c.Time,
			Parallelism: c.Parallelism,
			SaltLength:  c.SaltLength,
			KeyLength:   c.KeyLength,
		},
	}
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures the login throttle and production checks.
type SecurityConfig struct {
	ProductionMode      bool
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig configures the authorization-code flow.
type OAuthConfig struct {
	StateTTL    time.Duration
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a development-ready configuration. A signing key must
// still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SessionTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "gosession",
			Leeway:        30 * time.Second,
		},
		Cookie: CookieConfig{
			BaseName: "next-session-token",
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		Pages: PagesConfig{
			BaseURL:     "http://localhost:8080",
			SignIn:      "/login",
			AfterSignIn: "/protected",
		},
		Redirect: RedirectConfig{
			Mode: RedirectSameDomain,
		},
		Password: PasswordConfig{
			Primary:        "bcrypt",
			BcryptCost:     10,
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: false,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		OAuth: OAuthConfig{
			StateTTL:    10 * time.Minute,
			RedisPrefix: "gs:oauth",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.JWT.SessionTTL <= 0 {
		return errors.New("JWT SessionTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT hs256 secret must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("JWT ed25519 requires a private key")
		}
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if strings.TrimSpace(c.Cookie.BaseName) == "" {
		return errors.New("Cookie BaseName must not be empty")
	}
	if strings.HasPrefix(c.Cookie.BaseName, "__") {
		return errors.New("Cookie BaseName must not carry a __Secure-/__Host- prefix")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with /")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	base, err := url.Parse(c.Pages.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return errors.New("Pages BaseURL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Pages.SignIn) == "" {
		return errors.New("Pages SignIn must not be empty")
	}

	switch c.Redirect.Mode {
	case RedirectSameDomain:
	case RedirectTrustAll:
		if c.Security.ProductionMode {
			return errors.New("Redirect trust_all is not allowed in production mode")
		}
	default:
		return errors.New("Redirect Mode must be same_domain or trust_all")
	}

	switch strings.ToLower(c.Password.Primary) {
	case "bcrypt", "argon2id":
	default:
		return errors.New("Password Primary must be bcrypt or argon2id")
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0 when throttling")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0 when throttling")
		}
	}
	if c.Security.ProductionMode {
		if !c.Cookie.Secure {
			return errors.New("production mode requires secure cookies")
		}
		if base.Scheme != "https" {
			return errors.New("production mode requires an https BaseURL")
		}
	}

	if c.OAuth.StateTTL <= 0 || c.OAuth.StateTTL > time.Hour {
		return errors.New("OAuth StateTTL must be between 0 and 1h")
	}
	if strings.TrimSpace(c.OAuth.RedisPrefix) == "" {
		return errors.New("OAuth RedisPrefix must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics latency histograms require metrics to be enabled")
	}

	return nil
}
