package api

import (
	"fmt"
	"net/http"

	"github.com/donorline/donorline/internal/api/middleware"
	"github.com/donorline/donorline/internal/config"
	"github.com/donorline/donorline/internal/database"
	"github.com/donorline/donorline/internal/email"
	"github.com/donorline/donorline/internal/telephony"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router    *chi.Mux
	cfg       *config.Config
	jwtSecret []byte

	phones     database.PhoneNumberRepository
	calls      database.CallRepository
	recordings database.CallRecordingRepository
	greetings  database.GreetingRepository
	pending    database.PendingTranscriptionRepository

	tel    *telephony.Client
	sender *email.Sender

	webhookLimiter *middleware.IPRateLimiter
	provLimiter    *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(db *database.DB, cfg *config.Config, tel *telephony.Client, sender *email.Sender) (*Server, error) {
	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}

	s := &Server{
		router:         chi.NewRouter(),
		cfg:            cfg,
		jwtSecret:      secret,
		phones:         database.NewPhoneNumberRepository(db),
		calls:          database.NewCallRepository(db),
		recordings:     database.NewCallRecordingRepository(db),
		greetings:      database.NewGreetingRepository(db),
		pending:        database.NewPendingTranscriptionRepository(db),
		tel:            tel,
		sender:         sender,
		webhookLimiter: middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
		provLimiter:    middleware.NewIPRateLimiter(middleware.ProvisioningRateLimitConfig()),
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background rate-limiter cleanup goroutines.
func (s *Server) Close() {
	s.webhookLimiter.Stop()
	s.provLimiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(false))
	r.Use(middleware.CORS(middleware.ParseCORSOrigins(s.cfg.CORSOrigins)))

	// Provider webhook callbacks. Unauthenticated: the provider signs
	// requests, it does not carry bearer tokens.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.webhookLimiter))
		r.Post("/voice-webhook", s.handleVoiceWebhook)
		r.Post("/recording-status", s.handleRecordingStatus)
		r.Post("/transcription-webhook", s.handleTranscription)
	})

	// Provisioning endpoints, invoked by the logged-in web client. Stricter
	// rate limit: every request can fan out to billable provider calls.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(s.provLimiter))
		r.Use(middleware.RequireAuth(s.jwtSecret))
		r.Post("/purchase-phone-number", s.handlePurchasePhoneNumber)
		r.Post("/check-area-code", s.handleCheckAreaCode)
		r.Post("/check-location-availability", s.handleCheckLocationAvailability)
	})

	// Dashboard API under /api/v1.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.webhookLimiter))

		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.jwtSecret))

			r.Get("/calls", s.handleListCalls)
			r.Get("/phone-number", s.handleGetPhoneNumber)

			r.Route("/greetings", func(r chi.Router) {
				r.Get("/", s.handleListGreetings)
				r.Post("/", s.handleCreateGreeting)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetGreeting)
					r.Put("/", s.handleUpdateGreeting)
					r.Delete("/", s.handleDeleteGreeting)
					r.Put("/default", s.handleSetDefaultGreeting)
				})
			})
		})
	})

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
