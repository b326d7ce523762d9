// Package app wires the wishd runtime: config, logging, the HTTP
// surface, the push gateway, and the background maintenance jobs.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"wishd/internal/abuse"
	authapi "wishd/internal/auth/api"
	"wishd/internal/auth/session"
	"wishd/internal/identity"
	"wishd/internal/maintenance"
	"wishd/internal/notify"
	"wishd/internal/presence"
	"wishd/internal/ratelimit"
	"wishd/security/password"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	sessions  *session.Manager
	limiter   *ratelimit.Limiter
	rateTC    ratelimit.TransportConfig
	escalator *abuse.Escalator
	notices   *notify.Dispatcher
	registry  *presence.Registry
	gateway   *presence.Gateway
	auth      *authapi.Handler
	sched     *maintenance.Scheduler
}

// New constructs a fully wired App instance from config and logger.
// Without a configured database every store runs in memory, which is
// the single-node development mode.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	var (
		pool      *pgxpool.Pool
		dbEnabled bool

		sessionStore session.Store
		rateStore    ratelimit.Store
		abuseStore   abuse.Store
		userStore    identity.Store
	)
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		sessionStore = session.NewMemoryStore()
		rateStore = ratelimit.NewMemoryStore()
		abuseStore = abuse.NewMemoryStore()
		userStore = identity.NewMemoryStore()
	} else {
		p, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
		pool, dbEnabled = p, true
		sessionStore = session.NewPostgresStore(pool)
		rateStore = ratelimit.NewPostgresStore(pool)
		abuseStore = abuse.NewPostgresStore(pool)
		userStore = identity.NewPostgresStore(pool)
	}

	abuseCfg, err := abuse.LoadConfigFromEnv()
	if err != nil {
		closePool(pool)
		return nil, err
	}
	escalator := abuse.NewEscalator(abuseCfg, abuseStore, log)

	rateCfg, err := ratelimit.LoadConfigFromEnv()
	if err != nil {
		escalator.Close()
		closePool(pool)
		return nil, err
	}
	limiter := ratelimit.NewLimiter(rateCfg, rateStore, escalator, log)

	notices := notify.NewDispatcher(notify.LogNotifier{Log: log}, log, 256, 5*time.Second)

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		notices.Close()
		escalator.Close()
		closePool(pool)
		return nil, err
	}
	sessions := session.NewManager(sessCfg, sessionStore, log,
		func(principalID, sessionID string, at time.Time) {
			notices.Enqueue(notify.Notice{
				Kind:        notify.KindSignIn,
				PrincipalID: principalID,
				SessionID:   sessionID,
				At:          at,
			})
		})

	principals := identity.NewService(userStore, password.DefaultConfig(), log)

	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		notices.Close()
		escalator.Close()
		closePool(pool)
		return nil, err
	}
	auth := authapi.NewHandler(log, authCfg, principals, sessions)

	wsCfg := presence.LoadGatewayConfigFromEnv()
	wsCfg.SessionCookie = authCfg.SessionCookieName
	registry := presence.NewRegistry(log, wsCfg.LivenessTimeout, wsCfg.ProbeTimeout)
	gateway := presence.NewGateway(log, wsCfg, sessions, registry)

	rateTC := ratelimit.DefaultTransportConfig()
	rateTC.CookieSecure = authCfg.CookieSecure
	rateTC.TrustProxy = authCfg.TrustProxy

	sched := maintenance.NewScheduler(maintenance.DefaultConfig(), maintenance.Jobs{
		ReplenishRate: func(ctx context.Context, now time.Time) error {
			_, err := limiter.Replenish(ctx, now)
			return err
		},
		SweepTrackers: limiter.Sweep,
		SweepSessions: sessions.Sweep,
		SweepPresence: registry.Sweep,
		DecayAbuse:    escalator.Decay,
	}, log)

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		limiter:   limiter,
		rateTC:    rateTC,
		escalator: escalator,
		notices:   notices,
		registry:  registry,
		gateway:   gateway,
		auth:      auth,
		sched:     sched,
	}, nil
}

// Run starts the HTTP server and the maintenance scheduler, then blocks
// until context cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.limiter, a.rateTC, a.auth, a.gateway)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.shutdownComponents()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.shutdownComponents()
		return err
	}

	a.shutdownComponents()
	a.log.Info("server.stopped")
	return nil
}

// shutdownComponents tears down background workers and connections in
// dependency order: jobs first, then push connections, then queues,
// then the pool.
func (a *App) shutdownComponents() {
	a.sched.Stop()
	a.registry.CloseAll(presence.ReasonShutdown)
	a.notices.Close()
	a.escalator.Close()
	closePool(a.dbPool)
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
