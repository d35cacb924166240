package api

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/metrics"

	"github.com/google/uuid"
)

const (
	permBookings = "bookings"
	permPayments = "payments"
	permUsers    = "users"
	permListings = "listings"
	permAdmin    = "admin"

	requestIDHeader = "X-Request-ID"
)

var (
	errMissingAPIKey     = errors.New("missing api key header")
	errInvalidAPIKey     = errors.New("invalid api key")
	errPermissionDenied  = errors.New("permission denied")
	errRateLimitExceeded = errors.New("rate limit exceeded")
)

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     *config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

// NewHTTPAuth builds the gate. shared may be nil, leaving limits per process.
func NewHTTPAuth(cfg *config.APIConfig, shared RateCounter) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(cfg, shared)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Gateway deliveries and health checks carry no API key.
func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/api/v1/payments/webhook":
		return true
	}
	return false
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	if apiKey == "" {
		return errMissingAPIKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidAPIKey
	}

	return checkPermissions(client, requiredPermissionHTTP(r.URL.Path))
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// If permissions list is empty, treat as allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermissionHTTP(path string) string {
	switch {
	case path == "/api/v1/users":
		return permUsers
	case strings.HasPrefix(path, "/api/v1/listings/"):
		return permListings
	case strings.HasPrefix(path, "/api/v1/bookings"):
		return permBookings
	case strings.HasPrefix(path, "/api/v1/payments"):
		return permPayments
	case strings.HasPrefix(path, "/api/v1/admin"):
		return permAdmin
	}
	return ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	if !a.limiter.allow(r.Context(), a.clientKey(r)) {
		return errRateLimitExceeded
	}
	return nil
}

// clientKey is the API key, narrowed to the acting user when one is given.
func (a *HTTPAuth) clientKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	if key == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || host == "" {
			host = clientKeyUnknown
		}
		key = host
	}
	if userID := strings.TrimSpace(r.Header.Get(a.cfg.Auth.HeaderUserID)); userID != "" {
		key += ":" + userID
	}
	return key
}

func (a *HTTPAuth) apiKeyHeader() string {
	h := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-User-ID, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
