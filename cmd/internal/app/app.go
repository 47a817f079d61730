// Package app wires the Pulse server runtime: config, logging, persistence
// selection, the chat core, and both entry channels (HTTP API and WebSocket).
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"pulse/cmd/identity"
	"pulse/cmd/internal/api"
	"pulse/cmd/internal/chat"
	"pulse/cmd/internal/directory"
	"pulse/cmd/internal/otp"
	"pulse/cmd/internal/realtime"
)

// App is the Pulse server runtime: it owns lifecycle of the store, the HTTP
// server, and the realtime gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store     chat.Store
	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *prometheus.Registry
	presence *chat.Presence
	svc      *chat.Service

	otp     *otp.Store
	chatAPI *api.Handler
	ws      *realtime.WSGateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	store, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	var dir directory.Directory
	if dbEnabled {
		pgDir, err := directory.NewPostgresDirectory(dbPool)
		if err != nil {
			closeStore(log, store, dbPool)
			return nil, err
		}
		dir = pgDir
	} else {
		dir = directory.NewMemoryDirectory()
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		closeStore(log, store, dbPool)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := chat.NewMetrics(registry)

	presence := chat.NewPresence(log)
	fanout := chat.NewFanout(log, presence, store, metrics)
	svc := chat.NewService(log, store, fanout, dir, metrics)

	var handlerOpts []api.HandlerOption
	var otpStore *otp.Store
	if cfg.OTPEnabled {
		otpStore = otp.NewStore(log, cfg.OTPTTL, otp.LogSender{Log: log})
		handlerOpts = append(handlerOpts, api.WithOTPStore(otpStore, int64(cfg.OTPTTL/time.Second)))
	}

	chatAPI, err := api.NewHandler(log, svc, verifier, handlerOpts...)
	if err != nil {
		closeStore(log, store, dbPool)
		return nil, err
	}

	ws := realtime.NewWSGateway(log, svc, presence, verifier)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		registry:  registry,
		presence:  presence,
		svc:       svc,
		otp:       otpStore,
		chatAPI:   chatAPI,
		ws:        ws,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
// The store and the OTP janitor are released on both exit paths.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.otp != nil {
			a.otp.Close()
		}
		closeStore(a.log, a.store, a.dbPool)
	}()

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.chatAPI, a.ws)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "otp_enabled", a.otp != nil)

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
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
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

// newStore selects the persistence backend: Postgres when a database URL is
// configured, Badger when an embedded data dir is configured, in-memory otherwise.
func newStore(ctx context.Context, cfg Config, log Logger) (chat.Store, *pgxpool.Pool, bool, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, false, err
		}

		// Ownership model:
		// - app owns pool lifecycle
		// - PostgresStore.Close() is a no-op
		store, err := chat.NewPostgresStore(pool) // default schema "pulse"
		if err != nil {
			pool.Close()
			return nil, nil, false, err
		}

		log.Info("store.postgres")
		return store, pool, true, nil

	case cfg.BadgerDir != "":
		store, err := chat.NewBadgerStore(cfg.BadgerDir, log)
		if err != nil {
			return nil, nil, false, err
		}
		log.Info("store.badger", "dir", cfg.BadgerDir)
		return store, nil, false, nil

	default:
		log.Info("store.memory")
		return chat.NewInMemoryStore(), nil, false, nil
	}
}

// newVerifier selects the identity verifier. An HMAC secret enables JWT
// verification; dev tokens enable the static map. With neither, every token is
// rejected (the server still boots for store-only smoke testing).
func newVerifier(cfg Config, log Logger) (identity.Verifier, error) {
	if cfg.TokenHMACSecret != "" {
		v, err := identity.NewHMACVerifier([]byte(cfg.TokenHMACSecret), cfg.TokenIssuer)
		if err != nil {
			return nil, err
		}
		log.Info("identity.verifier.hmac", "issuer_checked", cfg.TokenIssuer != "")
		return v, nil
	}

	if cfg.DevTokens != "" {
		log.Warn("identity.verifier.static_dev_tokens")
		return identity.ParseStaticTokens(cfg.DevTokens), nil
	}

	log.Warn("identity.verifier.none", "hint", "set PULSE_TOKEN_HMAC_SECRET or PULSE_DEV_TOKENS")
	return identity.StaticVerifier{}, nil
}

func closeStore(log Logger, store chat.Store, pool *pgxpool.Pool) {
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error("store.close.fail", "err", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
}
