// Package httpapi is the JSON/HTTP boundary of the replay service.
//
// Routes:
//
//	POST /set_attack_mode  {"attack_mode": "dos"}
//	GET  /attack_mode
//	GET  /stream_data
//	POST /predict          one feature row
//	GET  /health
//	GET  /metrics
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/xoelrdgz/idsreplay/internal/adapters/output"
	"github.com/xoelrdgz/idsreplay/internal/domain"
)

const shutdownTimeout = 5 * time.Second

// ReplayService is what the handlers need from the application layer.
type ReplayService interface {
	SetAttackMode(name string) (domain.Category, error)
	AttackMode() domain.Category
	StreamRow() (domain.FeatureRow, error)
	Predict(ctx context.Context, row domain.FeatureRow) (domain.Prediction, error)
}

type Config struct {
	Addr        string
	CORSOrigins []string
	// PredictRate is the sustained /predict requests per second. 0 disables
	// the limit.
	PredictRate  float64
	PredictBurst int
	MaxBodyBytes int64
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":5000",
		CORSOrigins:  []string{"*"},
		PredictBurst: 20,
		MaxBodyBytes: 1 << 20,
	}
}

type Server struct {
	cfg     Config
	svc     ReplayService
	metrics *output.PrometheusMetrics
	health  http.Handler
	limiter *rate.Limiter

	srv *http.Server
}

// NewServer builds the HTTP server. metrics and health may be nil, in which
// case /metrics and /health are not mounted.
func NewServer(cfg Config, svc ReplayService, metrics *output.PrometheusMetrics, health http.Handler) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
		health:  health,
	}
	if cfg.PredictRate > 0 {
		burst := cfg.PredictBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.PredictRate), burst)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /set_attack_mode", s.handleSetAttackMode)
	mux.HandleFunc("GET /attack_mode", s.handleAttackMode)
	mux.HandleFunc("GET /stream_data", s.handleStreamData)
	mux.Handle("POST /predict", s.rateLimit(http.HandlerFunc(s.handlePredict)))
	if s.health != nil {
		mux.Handle("GET /health", s.health)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	return chain(c.Handler(mux),
		s.accessLog,
		requestID,
		withLogger,
	)
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server...")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
