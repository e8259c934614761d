package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	Server    Server    `yaml:"server"    envPrefix:"GOSESSION_"`
	Database  Database  `yaml:"database"  envPrefix:"GOSESSION_DB_"`
	Redis     Redis     `yaml:"redis"     envPrefix:"GOSESSION_REDIS_"`
	Auth      Auth      `yaml:"auth"      envPrefix:"GOSESSION_"`
	Google    Google    `yaml:"google"    envPrefix:"GOSESSION_GOOGLE_"`
	Log       Log       `yaml:"log"       envPrefix:"GOSESSION_LOG_"`
	Telemetry Telemetry `yaml:"telemetry" envPrefix:"GOSESSION_OTEL_"`
}

type Server struct {
	Addr            string        `yaml:"addr"             env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins"     env:"CORS_ORIGINS"      envSeparator:","`
	// IPRate is the per-client request budget per minute on auth routes.
	IPRate  float64 `yaml:"ip_rate"  env:"IP_RATE"`
	IPBurst int     `yaml:"ip_burst" env:"IP_BURST"`
}

type Database struct {
	// URL is a Postgres URL or "sqlite://<path>".
	URL         string `yaml:"url"          env:"URL"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

type Redis struct {
	Addr     string `yaml:"addr"     env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db"       env:"DB"`
}

type Auth struct {
	BaseURL          string        `yaml:"base_url"           env:"BASE_URL"`
	ProductionMode   bool          `yaml:"production_mode"    env:"PRODUCTION"`
	Secret           string        `yaml:"secret"             env:"SECRET"`
	SessionTTL       time.Duration `yaml:"session_ttl"        env:"SESSION_TTL"`
	CookieName       string        `yaml:"cookie_name"        env:"COOKIE_NAME"`
	CookieSecure     bool          `yaml:"cookie_secure"      env:"COOKIE_SECURE"`
	CookieDomain     string        `yaml:"cookie_domain"      env:"COOKIE_DOMAIN"`
	RedirectMode     string        `yaml:"redirect_mode"      env:"REDIRECT_MODE"`
	AllowedDomain    string        `yaml:"allowed_domain"     env:"ALLOWED_DOMAIN"`
	PasswordPrimary  string        `yaml:"password_primary"   env:"PASSWORD_PRIMARY"`
	BcryptCost       int           `yaml:"bcrypt_cost"        env:"BCRYPT_COST"`
	UpgradeOnLogin   bool          `yaml:"upgrade_on_login"   env:"UPGRADE_ON_LOGIN"`
	LoginThrottle    bool          `yaml:"login_throttle"     env:"LOGIN_THROTTLE"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS"`
	LoginCooldown    time.Duration `yaml:"login_cooldown"     env:"LOGIN_COOLDOWN"`
}

type Google struct {
	ClientID     string `yaml:"client_id"     env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
	// RedirectURL defaults to BaseURL + /api/auth/callback/google.
	RedirectURL string `yaml:"redirect_url" env:"REDIRECT_URL"`
}

// Enabled reports whether Google sign-in is configured.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type Log struct {
	Level  string `yaml:"level"  env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Telemetry configures OTLP export of traces and engine metrics. Export is
// off while Endpoint is empty.
type Telemetry struct {
	Endpoint       string        `yaml:"endpoint"        env:"ENDPOINT"`
	ServiceName    string        `yaml:"service_name"    env:"SERVICE_NAME"`
	MetricInterval time.Duration `yaml:"metric_interval" env:"METRIC_INTERVAL"`
}

// Enabled reports whether an OTLP endpoint is configured.
func (t Telemetry) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns a configuration suitable for local development against
// SQLite with the throttle disabled.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			IPRate:          30,
			IPBurst:         10,
		},
		Database: Database{
			URL:         "sqlite://gosession.db",
			AutoMigrate: true,
		},
		Auth: Auth{
			BaseURL:          "http://localhost:8080",
			SessionTTL:       30 * 24 * time.Hour,
			CookieName:       "next-session-token",
			RedirectMode:     string(goSession.RedirectSameDomain),
			PasswordPrimary:  "bcrypt",
			BcryptCost:       10,
			LoginThrottle:    true,
			MaxLoginAttempts: 5,
			LoginCooldown:    15 * time.Minute,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Telemetry: Telemetry{
			ServiceName:    "gosession-server",
			MetricInterval: 30 * time.Second,
		},
	}
}

var dotenvCandidates = []string{".env", "../.env", "../../.env"}

// LoadDotEnv copies every candidate .env file that exists into the process
// environment, overriding existing values.
func LoadDotEnv() {
	for _, p := range dotenvCandidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Overload(p)
		}
	}
}

// ParseEnv applies environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment. It does not call Validate.
func Load(path string) (Config, error) {
	LoadDotEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks server-level settings. Engine settings are checked by
// goSession when the engine is built.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server addr is required")
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("config: database url is required")
	}
	if c.Server.IPRate < 0 || c.Server.IPBurst < 0 {
		return errors.New("config: ip rate and burst must not be negative")
	}
	if (c.Google.ClientID == "") != (c.Google.ClientSecret == "") {
		return errors.New("config: google client id and secret must be set together")
	}
	if c.Google.Enabled() && c.Redis.Addr == "" {
		return errors.New("config: google sign-in requires redis")
	}
	if c.Telemetry.Enabled() && c.Telemetry.MetricInterval <= 0 {
		return errors.New("config: telemetry metric interval must be > 0")
	}
	if c.Auth.LoginThrottle && c.Redis.Addr == "" {
		return errors.New("config: login throttle requires redis; set GOSESSION_LOGIN_THROTTLE=false to run without it")
	}
	return nil
}

// GoogleRedirectURL returns the configured redirect or the default callback
// route under BaseURL.
func (c Config) GoogleRedirectURL() string {
	if c.Google.RedirectURL != "" {
		return c.Google.RedirectURL
	}
	return strings.TrimRight(c.Auth.BaseURL, "/") + "/api/auth/callback/google"
}

// Engine maps the configuration onto a goSession.Config.
func (c Config) Engine() goSession.Config {
	cfg := goSession.DefaultConfig()

	cfg.JWT.PrivateKey = []byte(c.Auth.Secret)
	if c.Auth.SessionTTL > 0 {
		cfg.JWT.SessionTTL = c.Auth.SessionTTL
	}

	if c.Auth.CookieName != "" {
		cfg.Cookie.BaseName = c.Auth.CookieName
	}
	cfg.Cookie.Secure = c.Auth.CookieSecure
	cfg.Cookie.Domain = c.Auth.CookieDomain

	cfg.Pages.BaseURL = c.Auth.BaseURL
	cfg.Redirect.Mode = goSession.RedirectMode(c.Auth.RedirectMode)
	cfg.Redirect.AllowedDomain = c.Auth.AllowedDomain

	if c.Auth.PasswordPrimary != "" {
		cfg.Password.Primary = c.Auth.PasswordPrimary
	}
	if c.Auth.BcryptCost > 0 {
		cfg.Password.BcryptCost = c.Auth.BcryptCost
	}
	cfg.Password.UpgradeOnLogin = c.Auth.UpgradeOnLogin

	cfg.Security.ProductionMode = c.Auth.ProductionMode
	cfg.Security.EnableLoginThrottle = c.Auth.LoginThrottle
	if c.Auth.MaxLoginAttempts > 0 {
		cfg.Security.MaxLoginAttempts = c.Auth.MaxLoginAttempts
	}
	if c.Auth.LoginCooldown > 0 {
		cfg.Security.LoginCooldown = c.Auth.LoginCooldown
	}
	return cfg
}
