// Package api exposes the access use cases over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/erickerk/elitetrack/internal/access"
	"github.com/erickerk/elitetrack/internal/auth"
	"github.com/erickerk/elitetrack/internal/middleware"
	"github.com/gorilla/mux"
)

// DefaultMaxBodyBytes limits request bodies when RouterConfig leaves it unset
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Access *access.Service
	Logger *slog.Logger

	// IPLimiter locks out addresses producing repeated failures. Nil disables it.
	IPLimiter *auth.RateLimiter

	AllowedOrigins []string
	MaxBodyBytes   int64

	// Health serves GET /health when set
	Health http.HandlerFunc
}

// NewRouter builds the HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	svc := cfg.Access

	limited := func(h http.Handler, failureCodes ...int) http.Handler {
		if cfg.IPLimiter == nil {
			return h
		}
		return middleware.RateLimit(cfg.IPLimiter, failureCodes...)(h)
	}
	// authenticated admits temporary-password sessions; only the session and
	// password endpoints use it directly
	authenticated := middleware.RequireSession(svc)
	staff := func(h http.Handler) http.Handler {
		return authenticated(middleware.RequirePasswordSet(middleware.RequireRole(auth.RoleExecutor)(h)))
	}

	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	if cfg.Health != nil {
		r.HandleFunc("/health", cfg.Health).Methods(http.MethodGet)
	}

	r.Handle("/auth/login", limited(NewLoginHandler(svc, logger), http.StatusUnauthorized)).Methods(http.MethodPost)
	r.Handle("/auth/rate-limit", NewRateLimitInfoHandler(svc, logger)).Methods(http.MethodGet)
	r.Handle("/auth/register", limited(NewRegisterHandler(svc, logger), http.StatusNotFound)).Methods(http.MethodPost)
	r.Handle("/auth/session", authenticated(NewSessionHandler())).Methods(http.MethodGet)
	r.Handle("/auth/logout", NewLogoutHandler(svc)).Methods(http.MethodPost)
	r.Handle("/auth/password", authenticated(NewChangePasswordHandler(svc, logger))).Methods(http.MethodPost)

	r.Handle("/invites", staff(NewGenerateInviteHandler(svc, logger))).Methods(http.MethodPost)
	r.Handle("/invites", staff(NewListInvitesHandler(svc, logger))).Methods(http.MethodGet)
	r.Handle("/invites/{id}/revoke", staff(NewRevokeInviteHandler(svc, logger))).Methods(http.MethodPost)
	r.Handle("/invites/{token}", limited(NewValidateInviteHandler(svc, logger), http.StatusNotFound)).Methods(http.MethodGet)

	r.Handle("/temp-passwords", staff(NewTempPasswordHandler(svc, logger))).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests reach it before method matching
	return middleware.CORS(cfg.AllowedOrigins)(middleware.MaxBodySize(maxBody)(r))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLogger logs method, route template and status. Paths are not
// logged since /invites/{token} carries a credential.
func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			logger.Info("request",
				"method", r.Method,
				"route", route,
				"status", sw.status,
				"client_ip", middleware.GetClientIP(r),
			)
		})
	}
}
