package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/server"
	"github.com/MrEthical07/goSession/internal/telemetry"
	otelexport "github.com/MrEthical07/goSession/metrics/export/otel"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/oauth"
	"github.com/MrEthical07/goSession/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type options struct {
	confPath      string
	embeddedRedis bool
	migrateOnly   bool
	seedEmail     string
	seedPassword  string
	seedName      string
}

func main() {
	var opts options
	flag.StringVar(&opts.confPath, "conf", "", "path to a YAML config file")
	flag.BoolVar(&opts.embeddedRedis, "embedded-redis", false, "run an in-process miniredis when no redis addr is configured (development only)")
	flag.BoolVar(&opts.migrateOnly, "migrate", false, "apply database migrations and exit")
	flag.StringVar(&opts.seedEmail, "seed-email", "", "create a verified credentials user with this email if it does not exist")
	flag.StringVar(&opts.seedPassword, "seed-password", "", "password for -seed-email")
	flag.StringVar(&opts.seedName, "seed-name", "", "full name for -seed-email")
	flag.Parse()

	cfg, err := config.Load(opts.confPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("gosession-server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
}

func run(ctx context.Context, cfg config.Config, opts options, logger *slog.Logger) error {
	// -------- Redis --------
	if cfg.Redis.Addr == "" && opts.embeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		cfg.Redis.Addr = mr.Addr()
		logger.Warn("using embedded miniredis; state is lost on exit", "addr", mr.Addr())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	// -------- Database --------
	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate || opts.migrateOnly {
		if store.IsSQLite(cfg.Database.URL) {
			err = store.AutoMigrate(db)
		} else {
			err = store.RunMigrations(cfg.Database.URL)
		}
		if err != nil {
			return err
		}
		logger.Info("database schema up to date")
	}
	if opts.migrateOnly {
		return nil
	}

	users := store.New(db)

	// -------- Telemetry --------
	providers, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// -------- Engine --------
	builder := goSession.New().
		WithConfig(cfg.Engine()).
		WithLogger(logger).
		WithUserProvider(users).
		WithTracerProvider(providers.Tracer).
		WithAuditSink(goSession.NewSlogSink(logger))
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	if cfg.Google.Enabled() {
		google, err := oauth.NewGoogle(ctx, oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL(),
		})
		if err != nil {
			return err
		}
		builder = builder.WithOAuthProvider(google)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if opts.seedEmail != "" {
		if err := seedUser(ctx, users, engine, opts, logger); err != nil {
			return err
		}
	}

	if providers.Enabled() {
		exporter, err := otelexport.NewExporter(providers.Meter.Meter("github.com/MrEthical07/goSession"), engine)
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
		defer exporter.Close()
		logger.Info("otlp export enabled", "endpoint", cfg.Telemetry.Endpoint, "interval", cfg.Telemetry.MetricInterval)
	}

	report := engine.SecurityReport()
	logger.Info("engine ready",
		"production", report.ProductionMode,
		"signing", report.SigningAlgorithm,
		"redirect_mode", report.RedirectMode,
		"login_throttle", report.RateLimitingActive,
		"oauth_providers", report.OAuthProviders,
	)

	// -------- HTTP --------
	var throttle *middleware.Throttle
	if cfg.Server.IPRate > 0 {
		throttle = middleware.NewThrottle(middleware.ThrottleConfig{
			Rate:  rate.Limit(cfg.Server.IPRate / 60),
			Burst: cfg.Server.IPBurst,
		}, logger)
		defer throttle.Stop()
	}

	handler := server.NewRouter(server.Deps{
		Engine:      engine,
		Logger:      logger,
		Throttle:    throttle,
		Metrics:     promexport.NewExporter(engine).Handler(),
		CORSOrigins: cfg.Server.CORSOrigins,
		Ready: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "base_url", cfg.Auth.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := engine.CloseContext(shutdownCtx); err != nil {
		logger.Warn("audit drain incomplete", "error", err, "dropped", engine.AuditDropped())
	}
	return nil
}

func seedUser(ctx context.Context, users *store.UserStore, engine *goSession.Engine, opts options, logger *slog.Logger) error {
	if opts.seedPassword == "" {
		return errors.New("-seed-password is required with -seed-email")
	}
	_, err := users.FindUserByEmail(ctx, opts.seedEmail)
	if err == nil {
		logger.Info("seed user already exists", "email", opts.seedEmail)
		return nil
	}
	if !errors.Is(err, goSession.ErrUserNotFound) {
		return err
	}

	hash, err := engine.HashPassword(opts.seedPassword)
	if err != nil {
		return err
	}
	rec, err := users.CreateUser(ctx, opts.seedEmail, opts.seedName, hash, true)
	if err != nil {
		return err
	}
	logger.Info("seed user created", "user_id", rec.ID, "email", rec.Email)
	return nil
}
