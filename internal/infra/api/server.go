package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"restaurant-storefront/internal/config"
	"restaurant-storefront/internal/usecase"
)

var _ AdminInterface = (*Server)(nil)

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Server exposes the storefront payment endpoints and the admin API.
type Server struct {
	checkoutUC usecase.CheckoutUseCase
	callbackUC usecase.CallbackUseCase
	orderUC    usecase.OrderUseCase
	auth       *AuthManager
	apiKey     string
	health     map[string]HealthFunc
	cfg        config.ServerConfig
	log        *zerolog.Logger
	srv        *http.Server
}

// NewServer builds the HTTP layer. The admin API is disabled when api key or jwt secret is empty.
func NewServer(
	cfg config.ServerConfig,
	admin config.AdminConfig,
	checkoutUC usecase.CheckoutUseCase,
	callbackUC usecase.CallbackUseCase,
	orderUC usecase.OrderUseCase,
	health map[string]HealthFunc,
	logger *zerolog.Logger,
) *Server {
	compLog := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{
		checkoutUC: checkoutUC,
		callbackUC: callbackUC,
		orderUC:    orderUC,
		apiKey:     admin.APIKey,
		health:     health,
		cfg:        cfg,
		log:        &compLog,
	}
	if admin.APIKey != "" && admin.JWTSecret != "" {
		s.auth = NewAuthManager(admin.JWTSecret, admin.TokenTTL)
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Router returns the full handler with middlewares applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/payment/initiate", s.handleInitiate)
	r.Post("/api/payment/webhook", s.handleWebhook)
	r.Get("/api/payment/transaction-id", s.handleNewTransactionID)
	RegisterAdmin(r, s, s.auth)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	guards := []Middleware{TraceID(), RequestLog(s.log), Recover(s.log), Timeout(timeout)}
	if s.cfg.TrustProxy {
		guards = append([]Middleware{middleware.RealIP}, guards...)
	}
	return Chain(r, guards...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.health))
	status := http.StatusOK
	for name, fn := range s.health {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
