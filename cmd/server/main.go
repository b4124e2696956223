package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/accounts"
	"github.com/erickerk/elitetrack/internal/api"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/clock"
	"github.com/erickerk/elitetrack/internal/config"
	"github.com/erickerk/elitetrack/internal/database"
	"github.com/erickerk/elitetrack/internal/invite"
	"github.com/erickerk/elitetrack/internal/session"
	"github.com/erickerk/elitetrack/internal/storage/postgres"
	"github.com/erickerk/elitetrack/internal/storage/redis"
	"github.com/erickerk/elitetrack/internal/storage/sqlite"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const serviceName = "elitetrack"

var (
	version          = "dev"
	minClientVersion = "v0.1.0"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","service":%q,"version":%q,"min_client_version":%q}`,
		serviceName, version, minClientVersion)
}

// loadTLSConfig returns nil when TLS is disabled. Missing certificate files
// are fatal.
func loadTLSConfig(enabled bool, certFile, keyFile, minVersion string) (*tls.Config, string, string) {
	if !enabled {
		return nil, "", ""
	}
	for _, f := range []string{certFile, keyFile} {
		if _, err := os.Stat(f); err != nil {
			log.Fatalf("TLS file not readable: %v", err)
		}
	}
	return &tls.Config{MinVersion: parseTLSMinVersion(minVersion)}, certFile, keyFile
}

func parseTLSMinVersion(v string) uint16 {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		log.Fatalf("invalid TLS minimum version %q (use 1.2 or 1.3)", v)
		return 0
	}
}

// parseMaxBodySize parses sizes like "512KB" or "10MB". Invalid or empty
// input falls back to 10MB.
func parseMaxBodySize(s string) int64 {
	const defaultSize = 10 * 1024 * 1024
	if s == "" {
		return defaultSize
	}

	multiplier := int64(1)
	num := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		num = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		num = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		num = strings.TrimSuffix(s, "KB")
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n < 0 {
		log.Printf("WARNING: invalid max body size %q, using default 10MB", s)
		return defaultSize
	}
	return n * multiplier
}

func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// stores is the persistence selected by configuration
type stores struct {
	accounts accounts.Store
	invites  invite.Store
	temps    auth.TempPasswordStore
	entries  auth.EntryStore
	closers  []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.accounts, s.invites, s.temps = db.Accounts(), db.Invites(), db.TempPasswords()
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.accounts, s.invites, s.temps = db.Accounts(), db.Invites(), db.TempPasswords()
	default:
		s.accounts = accounts.NewMemoryStore()
		s.invites = invite.NewMemoryStore()
		s.temps = auth.NewMemoryTempPasswordStore()
	}

	switch cfg.RateLimit.Backend {
	case "redis":
		ttl := cfg.RateLimit.Window + cfg.RateLimit.Lockout
		rs, err := redis.Open(ctx, cfg.RateLimit.RedisURL, redis.DefaultPrefix, ttl)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rs.Close)
		s.entries = rs
	default:
		maxAge := cfg.RateLimit.Window + cfg.RateLimit.Lockout
		ms := auth.NewMemoryEntryStore(time.Minute, maxAge, 100000)
		s.closers = append(s.closers, func() error { ms.Stop(); return nil })
		s.entries = ms
	}
	return s, nil
}

// devVerifier serves the configured development accounts, or nil outside development
func devVerifier(cfg *config.Config) (auth.Verifier, error) {
	if !cfg.IsDevelopment() || len(cfg.DevUsers) == 0 {
		return nil, nil
	}
	users := make([]auth.StaticUser, 0, len(cfg.DevUsers))
	for _, u := range cfg.DevUsers {
		role := auth.Role(u.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("dev user %s: unknown role %q", u.Email, u.Role)
		}
		users = append(users, auth.StaticUser{
			Account: auth.Account{
				ID:        "dev-" + auth.NormalizeIdentifier(u.Email),
				Name:      u.Name,
				Email:     auth.NormalizeIdentifier(u.Email),
				Role:      role,
				ProjectID: u.ProjectID,
			},
			Password: u.Password,
		})
	}
	return auth.NewStaticVerifier(users), nil
}

// newHandler wires the service graph for cfg
func newHandler(cfg *config.Config, st *stores, clk clock.Clock, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	passwords := auth.NewPasswordService(bcrypt.DefaultCost)

	verifiers := []auth.Verifier{auth.NewPasswordVerifier(st.accounts, passwords)}
	dev, err := devVerifier(cfg)
	if err != nil {
		return nil, err
	}
	if dev != nil {
		verifiers = append(verifiers, dev)
	}
	verifiers = append(verifiers, auth.NewTempPasswordVerifier(st.temps, st.accounts, passwords, clk))
	chain, err := auth.NewChain(verifiers...)
	if err != nil {
		return nil, err
	}

	codec, err := session.NewCodec(cfg.Session.Secret, session.NewPolicy(clk, cfg.Session.TTL))
	if err != nil {
		return nil, err
	}

	limits := auth.Limits{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
		Lockout:     cfg.RateLimit.Lockout,
	}
	invites := invite.NewService(st.invites, clk, invite.Config{
		TTL:          cfg.Invite.TTL,
		StoreTimeout: cfg.Storage.Timeout,
	}, logger.With("component", "invite"))

	svc, err := access.NewService(access.Deps{
		Limiter:       auth.NewRateLimiter(st.entries, limits, clk),
		Verifiers:     chain,
		Invites:       invites,
		Accounts:      st.accounts,
		TempPasswords: st.temps,
		Passwords:     passwords,
		Sessions:      codec,
		Audit:         auth.NewSlogAuditLogger(logger.With("component", "audit")),
		Clock:         clk,
		Logger:        logger.With("component", "access"),
		StoreTimeout:  cfg.Storage.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return api.NewRouter(api.RouterConfig{
		Access:         svc,
		Logger:         logger.With("component", "http"),
		IPLimiter:      auth.NewRateLimiter(st.entries, limits, clk),
		AllowedOrigins: parseCORSOrigins(cfg.Server.AllowedOrigins),
		MaxBodyBytes:   parseMaxBodySize(cfg.Server.MaxBodySize),
		Health:         healthHandler,
	}), nil
}

func main() {
	// A missing .env file is fine outside development
	_ = godotenv.Load()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	isDev := cfg.IsDevelopment() || auth.IsDevelopmentMode()

	if err := auth.ValidateSecret(cfg.Session.Secret, isDev); err != nil {
		log.Fatalf("Session secret validation failed: %v", err)
	}
	if err := database.ValidateStorage(cfg.Storage.Driver, cfg.Storage.DSN, isDev); err != nil {
		log.Fatalf("Storage validation failed: %v", err)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Failed to close storage: %v", err)
		}
	}()

	handler, err := newHandler(cfg, st, clock.System{}, logger)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	tlsEnabled := cfg.Server.TLSCertFile != ""
	tlsCfg, certFile, keyFile := loadTLSConfig(tlsEnabled, cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, cfg.Server.TLSMinVersion)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	mode := "production"
	if isDev {
		mode = "development"
	}
	log.Printf("Server %s starting in %s mode on %s (storage=%s, ratelimit=%s)",
		version, mode, cfg.Server.Addr, cfg.Storage.Driver, cfg.RateLimit.Backend)

	errCh := make(chan error, 1)
	go func() {
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS(certFile, keyFile)
			return
		}
		// nosemgrep: go.lang.security.audit.net.use-tls.use-tls -- TLS termination handled by reverse proxy in production
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}
