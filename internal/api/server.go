package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/micko4develop/crypto-dash/internal/dashboard"
	"github.com/micko4develop/crypto-dash/internal/detail"
	"github.com/micko4develop/crypto-dash/internal/metrics"
)

var assetIDRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,99}$`)

// Pinger is the optional database the health check reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Dashboard *dashboard.Controller
	Detail    *detail.Controller
	Stream    http.Handler
	Metrics   *metrics.Metrics
	DB        Pinger
	Source    string
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
}

type Server struct {
	dash       *dashboard.Controller
	detail     *detail.Controller
	stream     http.Handler
	metrics    *metrics.Metrics
	db         Pinger
	source     string
	apiKey     string
	log        zerolog.Logger
	handler    http.Handler
	httpServer *http.Server
}

func NewServer(deps Deps, opts Options, log zerolog.Logger) *Server {
	s := &Server{
		dash:    deps.Dashboard,
		detail:  deps.Detail,
		stream:  deps.Stream,
		metrics: deps.Metrics,
		db:      deps.DB,
		source:  deps.Source,
		apiKey:  opts.APIKey,
		log:     log.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()

	// Dashboard routes
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /v1/dashboard/mount", s.handleMount)
	mux.HandleFunc("POST /v1/dashboard/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/dashboard/query", s.handleQuery)
	mux.HandleFunc("GET /v1/dashboard/sorts", s.handleSorts)
	if s.stream != nil {
		mux.Handle("GET /v1/dashboard/stream", s.stream)
	}

	// Detail routes
	mux.HandleFunc("GET /v1/assets/{id}", s.handleAsset)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.handler = s.requestIDMiddleware(s.authMiddleware(corsMiddleware(mux, opts.CORSOrigin)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler is the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.log.Info().
		Str("addr", "http://localhost"+s.httpServer.Addr).
		Bool("auth", s.apiKey != "").
		Msg("REST API server started")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateAssetID(id string) bool {
	return assetIDRegexp.MatchString(id)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
