package goSession

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goSession"

// Builder collects configuration and collaborators for an Engine. A Builder
// can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	traces trace.TracerProvider

	userProvider UserProvider
	providers    []OAuthProvider
	auditSink    AuditSink

	refresh    TokenRefresh
	projection SessionProjection
	redirect   RedirectPolicy

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the login throttle and the OAuth state
// store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithUserProvider sets the persistence boundary. If up also implements
// AccountLinker or PasswordHashUpdater those capabilities are used.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithOAuthProvider registers an OAuth provider under its Name. It may be
// called more than once.
func (b *Builder) WithOAuthProvider(p OAuthProvider) *Builder {
	b.providers = append(b.providers, p)
	return b
}

// WithTracerProvider sets where engine spans go. The global provider is used
// otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.traces = tp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTokenRefresh overrides RefreshFromStore.
func (b *Builder) WithTokenRefresh(r TokenRefresh) *Builder {
	b.refresh = r
	return b
}

// WithSessionProjection overrides DefaultSessionProjection.
func (b *Builder) WithSessionProjection(p SessionProjection) *Builder {
	b.projection = p
	return b
}

// WithRedirectPolicy overrides the policy selected by Config.Redirect.Mode.
func (b *Builder) WithRedirectPolicy(p RedirectPolicy) *Builder {
	b.redirect = p
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns an immutable Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.redis == nil {
		if cfg.Security.EnableLoginThrottle {
			return nil, errors.New("login throttle requires redis client")
		}
		if len(b.providers) > 0 {
			return nil, errors.New("oauth providers require redis client")
		}
	}

	providers := make(map[string]OAuthProvider, len(b.providers))
	for _, p := range b.providers {
		if p == nil {
			return nil, errors.New("nil oauth provider")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" || name == CredentialsProvider {
			return nil, fmt.Errorf("invalid oauth provider name %q", p.Name())
		}
		if _, dup := providers[name]; dup {
			return nil, fmt.Errorf("oauth provider %q registered twice", name)
		}
		providers[name] = p
	}

	tracerProvider := b.traces
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		tracer:    tracerProvider.Tracer(tracerName),
		users:     b.userProvider,
		providers: providers,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		cookie: session.CookieConfig{
			BaseName: cfg.Cookie.BaseName,
			Secure:   cfg.Cookie.Secure,
			Domain:   cfg.Cookie.Domain,
			Path:     cfg.Cookie.Path,
			SameSite: cfg.Cookie.SameSite,
			MaxAge:   cfg.JWT.SessionTTL,
		},
	}
	if linker, ok := b.userProvider.(AccountLinker); ok {
		engine.linker = linker
	}
	if updater, ok := b.userProvider.(PasswordHashUpdater); ok && cfg.Password.UpgradeOnLogin {
		engine.updater = updater
	}

	// -------- PASSWORDS --------
	pv, err := password.NewVerifier(cfg.Password.verifierConfig())
	if err != nil {
		return nil, err
	}
	engine.passwords = pv

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SessionTTL:    cfg.JWT.SessionTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	// -------- CALLBACKS --------
	engine.refresh = b.refresh
	if engine.refresh == nil {
		engine.refresh = RefreshFromStore(b.userProvider)
	}
	engine.projection = b.projection
	if engine.projection == nil {
		engine.projection = DefaultSessionProjection
	}
	engine.redirect = b.redirect
	if engine.redirect == nil {
		switch cfg.Redirect.Mode {
		case RedirectTrustAll:
			engine.redirect = TrustAllRedirects{}
		default:
			engine.redirect = DomainRedirects{Domain: cfg.Redirect.AllowedDomain}
		}
	}

	// -------- REDIS --------
	if b.redis != nil {
		if cfg.Security.EnableLoginThrottle {
			engine.rateLimiter = rate.New(b.redis, rate.Config{
				EnableIPThrottle: cfg.Security.EnableIPThrottle,
				MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
				LoginCooldown:    cfg.Security.LoginCooldown,
			})
		}
		engine.oauthStates = newOAuthStateStore(b.redis, cfg.OAuth.RedisPrefix)
	}

	engine.flows = engine.buildFlowDeps()

	b.built = true
	return engine, nil
}
