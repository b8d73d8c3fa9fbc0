package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/badgrhq/badgr-server/badgr"
	"github.com/badgrhq/badgr-server/badgr/account"
	"github.com/badgrhq/badgr-server/badgr/auth"
	"github.com/badgrhq/badgr-server/badgr/backpack"
	"github.com/badgrhq/badgr-server/badgr/config"
	"github.com/badgrhq/badgr-server/badgr/db"
	"github.com/badgrhq/badgr-server/badgr/httpapi"
	"github.com/badgrhq/badgr-server/badgr/issuer"
	logpkg "github.com/badgrhq/badgr-server/badgr/logger"
	"github.com/badgrhq/badgr-server/badgr/mail"
	"github.com/badgrhq/badgr-server/badgr/openbadges"
	"github.com/badgrhq/badgr-server/badgr/sharing"
	"github.com/badgrhq/badgr-server/badgr/socialauth"
	"github.com/badgrhq/badgr-server/badgr/worker"
	"golang.org/x/sync/errgroup"
)

// App wires all application dependencies.
type App struct {
	Config     *config.Config
	Logger     *logpkg.Logger
	DB         *db.Repository
	Pool       *worker.Pool
	Dispatcher *sharing.Dispatcher
	Handler    http.Handler
	Build      BuildInfo

	server   *http.Server
	listener net.Listener
	group    *errgroup.Group
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logpkg.New(logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
	})
	if err != nil {
		return nil, err
	}

	// Release what was opened so far when a later step fails.
	var cleanups []func()
	cleanups = append(cleanups, func() { _ = log.Close() })
	fail := func(err error) (*App, error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, err
	}

	gormLogger := logpkg.NewGormLogger(log.Slog(), logpkg.ParseGormLevel(conf.GetString("GormLogLevel")),
		time.Duration(conf.GetInt("GormSlowQueryMs"))*time.Millisecond)
	databasePath := conf.GetString("Database")
	if strings.TrimSpace(databasePath) == "" {
		databasePath = "badgr.db"
	}

	repo, err := db.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		return fail(fmt.Errorf("init db: %w", err))
	}
	cleanups = append(cleanups, func() { _ = repo.Close() })
	poolMaxOpen := conf.GetInt("DBMaxOpenConns")
	poolMaxIdle := conf.GetInt("DBMaxIdleConns")
	if err := repo.ConfigurePool(poolMaxOpen, poolMaxIdle, conf.GetSeconds("DBConnMaxLifetimeSec")); err != nil {
		return fail(fmt.Errorf("configure db pool: %w", err))
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: conf.GetString("JWTSecret"),
		Issuer: conf.GetString("JWTIssuer"),
		TTL:    time.Duration(conf.GetInt("TokenTTLMinutes")) * time.Minute,
	})
	if err != nil {
		return fail(fmt.Errorf("init tokens: %w (set JWTSecret or BADGR_JWTSECRET)", err))
	}

	providers := sharing.Filter(sharing.DefaultProviders(), conf.ProviderEnabled)
	for _, name := range conf.ProviderNames() {
		if !knownProvider(name) {
			log.Warn("config section for unknown share provider", "provider", name)
		}
	}
	dispatcher, err := sharing.New(providers...)
	if err != nil {
		return fail(fmt.Errorf("init share providers: %w", err))
	}
	codes := make([]string, 0, len(providers))
	for _, reg := range providers {
		codes = append(codes, reg.Code)
	}
	log.Info("share providers enabled", "providers", codes)

	poolSize := conf.GetInt("WorkerPoolSize")
	pool := worker.New(poolSize, log.With("component", "worker"))
	cleanups = append(cleanups, pool.StopNow)

	mailer, err := newMailer(conf, log, pool)
	if err != nil {
		return fail(err)
	}

	urls := openbadges.URLs{BaseURL: conf.GetString("PublicBaseURL")}

	rateLimitPerSecond := conf.GetFloat64("ShareRateLimitPerSecond")
	if rateLimitPerSecond <= 0 {
		rateLimitPerSecond = 1.0
	}
	rateLimitBurst := conf.GetInt("ShareRateLimitBurst")
	if rateLimitBurst <= 0 {
		rateLimitBurst = 3
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Tokens: tokens,
		Accounts: account.NewService(account.ServiceOptions{
			Users:   repo,
			Badges:  repo,
			Mailer:  mailer,
			Pool:    pool,
			BaseURL: urls.BaseURL,
			Logger:  log.With("component", "account"),
		}),
		Issuers: issuer.NewService(issuer.ServiceOptions{
			Badges:    repo,
			Mailer:    mailer,
			URLs:      urls,
			ImageSize: conf.GetInt("BadgeImageSize"),
			Logger:    log.With("component", "issuer"),
		}),
		Backpack: backpack.NewService(backpack.ServiceOptions{
			Dispatcher: dispatcher,
			Users:      repo,
			Badges:     repo,
			Shares:     repo,
			URLs:       urls,
			Logger:     log.With("component", "backpack"),
		}),
		SocialAuth:   socialauth.NewAdapter(tokens, conf.BadgrApp()),
		Metrics:      httpapi.NewMetrics(),
		ShareLimiter: httpapi.NewRateLimiter(rateLimitPerSecond, rateLimitBurst),
		Logger:       log.With("component", "http"),
	})

	return &App{
		Config:     conf,
		Logger:     log,
		DB:         repo,
		Pool:       pool,
		Dispatcher: dispatcher,
		Handler:    handler,
		Build:      build,
	}, nil
}

func knownProvider(code string) bool {
	for _, reg := range sharing.DefaultProviders() {
		if reg.Code == code {
			return true
		}
	}
	return false
}

func newMailer(conf *config.Config, log *logpkg.Logger, pool badgr.WorkerPool) (badgr.Mailer, error) {
	endpoint := strings.TrimSpace(conf.GetString("MailEndpoint"))
	if endpoint == "" {
		return &mail.LogMailer{Logger: log.With("component", "mail")}, nil
	}
	relay, err := mail.NewHTTPMailer(mail.HTTPMailerOptions{
		Endpoint:   endpoint,
		From:       conf.GetString("MailFrom"),
		Timeout:    conf.GetSeconds("MailTimeoutSec"),
		MaxRetries: 3,
		Logger:     log.With("component", "mail"),
	})
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	return mail.NewQueuedMailer(relay, pool, log.With("component", "mail")), nil
}

// Start binds the listen address and serves HTTP until ctx is done.
func (a *App) Start(ctx context.Context) error {
	addr := a.Config.GetString("ListenAddr")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.Logger.Info("http server listening", "addr", listener.Addr().String(), "version", a.Build.BinVersion)
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), a.Config.GetSeconds("ShutdownTimeoutSec"))
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	a.group = group
	return nil
}

// Addr returns the bound listen address once started.
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Wait blocks until the HTTP server has stopped.
func (a *App) Wait() error {
	if a.group == nil {
		return nil
	}
	return a.group.Wait()
}

// Shutdown releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutdown http server: %w", err)
		}
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close database", "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}
