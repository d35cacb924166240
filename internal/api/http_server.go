package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/domain"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
)

// UserStore syncs payer profiles pushed by the fronting API layer.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
}

// ReportExporter writes a bookings report for a period.
type ReportExporter interface {
	Export(ctx context.Context, w io.Writer, start, end time.Time) error
}

// ListingManager applies listing changes pushed by the fronting API layer.
type ListingManager interface {
	SetStatus(ctx context.Context, id int64, status string) (*models.Listing, error)
	SetBankDetails(ctx context.Context, id int64, bank models.BankDetails) (*models.Listing, error)
}

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the collaborators served over HTTP. Users, Listings,
// Exporter and RateCounter may be nil.
type Dependencies struct {
	Bookings    domain.BookingService
	Reconciler  domain.Reconciler
	Users       UserStore
	Listings    ListingManager
	Exporter    ReportExporter
	Health      HealthChecker
	RateCounter RateCounter
}

// WebhookConfig controls verification of gateway deliveries.
type WebhookConfig struct {
	Secret           string
	RequireSignature bool
}

// HTTPServer exposes the booking, payment and webhook API.
type HTTPServer struct {
	cfg     *config.APIConfig
	deps    Dependencies
	webhook WebhookConfig
	server  *http.Server
	auth    *HTTPAuth
	logger  zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, deps Dependencies, webhook WebhookConfig, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, deps: deps, webhook: webhook}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	} else {
		srv.logger = zerolog.Nop()
	}
	srv.auth = NewHTTPAuth(cfg, deps.RateCounter)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealthz)
	mux.HandleFunc("GET /readyz", srv.handleReadyz)

	mux.HandleFunc("POST /api/v1/users", srv.handleSaveUser)

	mux.HandleFunc("PUT /api/v1/listings/{id}/status", srv.handleSetListingStatus)
	mux.HandleFunc("PUT /api/v1/listings/{id}/bank", srv.handleSetListingBank)

	mux.HandleFunc("POST /api/v1/bookings/save", srv.handleSaveIntent)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", srv.handleConfirmBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/refund", srv.handleRequestRefund)
	mux.HandleFunc("POST /api/v1/bookings/{id}/release-funds", srv.handleReleaseFunds)

	mux.HandleFunc("POST /api/v1/payments/lease", srv.handleInitiatePayment)
	mux.HandleFunc("POST /api/v1/payments/webhook", srv.handleWebhook)
	mux.HandleFunc("GET /api/v1/payments/webhook", srv.handleWebhookPage)

	mux.HandleFunc("GET /api/v1/admin/bookings/export", srv.handleExport)

	handler := corsMiddleware(srv.loggingMiddleware(srv.auth.Wrap(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// payouts may take up to the gateway payout timeout
		WriteTimeout: 45 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the fully wrapped root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.HealthCheck(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}
