package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/claims"
	"github.com/MrEthical07/goIssuer/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 16

// TokenService is the engine surface the handler needs. *goIssuer.Engine satisfies it.
type TokenService interface {
	Issue(ctx context.Context, creds goIssuer.Credentials) (goIssuer.SignedToken, error)
	Renew(ctx context.Context, principal goIssuer.Principal) (goIssuer.SignedToken, error)
	Authenticate(token string) (claims.MapPrincipal, error)
}

// HealthChecker reports backend reachability for /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type handler struct {
	svc          TokenService
	logger       zerolog.Logger
	health       HealthChecker
	metrics      http.Handler
	trustProxy   bool
	maxBodyBytes int64
}

// Option customizes NewHandler.
type Option func(*handler)

// WithHealthCheck serves GET /healthz backed by hc.
func WithHealthCheck(hc HealthChecker) Option {
	return func(h *handler) { h.health = hc }
}

// WithMetricsHandler serves GET /metrics with m.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *handler) { h.metrics = m }
}

// WithTrustedProxy takes the client IP from X-Forwarded-For.
func WithTrustedProxy(trust bool) Option {
	return func(h *handler) { h.trustProxy = trust }
}

// WithMaxBodyBytes limits the issuance request body.
func WithMaxBodyBytes(n int64) Option {
	return func(h *handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandler returns the token endpoint router.
//
// POST /token with an Authorization header renews the authenticated principal;
// without one, the JSON body {"username","password"} requests a fresh token.
// Every failure is a bare 401.
func NewHandler(svc TokenService, logger zerolog.Logger, opts ...Option) http.Handler {
	h := &handler{
		svc:          svc,
		logger:       logger.With().Str("component", "httpapi").Logger(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := mux.NewRouter()
	r.Use(h.accessLog)

	r.Handle("/token", middleware.AuthenticateIfPresent(svc)(http.HandlerFunc(h.token))).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	return r
}

func (h *handler) token(w http.ResponseWriter, r *http.Request) {
	ctx := goIssuer.WithClientIP(r.Context(), clientIP(r, h.trustProxy))

	var (
		tok goIssuer.SignedToken
		err error
	)
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok {
		tok, err = h.svc.Renew(ctx, p)
	} else {
		var creds goIssuer.Credentials
		body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		if decodeErr := json.NewDecoder(body).Decode(&creds); decodeErr != nil {
			h.logger.Debug().Err(decodeErr).Msg("malformed token request")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tok, err = h.svc.Issue(ctx, creds)
	}

	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	latency, err := h.health.Ping(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"redis_latency_ms": latency.Milliseconds(),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
