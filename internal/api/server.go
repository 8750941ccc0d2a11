package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kjannette/papertrade-backend/internal/fees"
	"github.com/kjannette/papertrade-backend/internal/logging"
	"github.com/kjannette/papertrade-backend/internal/market"
	"github.com/kjannette/papertrade-backend/internal/models"
	"github.com/kjannette/papertrade-backend/internal/strategy"
	"github.com/kjannette/papertrade-backend/internal/trading"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	maxQueryLimit = 1000
	maxBodyBytes  = 1 << 20

	requestIDHeader = "X-Request-ID"
)

// Trader is the slice of trading.Engine the HTTP layer serves.
type Trader interface {
	ExecuteTrade(ctx context.Context, policy *market.Policy, order trading.Order) (*trading.Execution, error)
	ExitPosition(ctx context.Context, policy *market.Policy, symbol string, price, quantity decimal.Decimal) (*trading.Execution, error)
	ResetAccount(ctx context.Context, policy *market.Policy) (*trading.ResetResult, error)
	Portfolio(ctx context.Context, policy *market.Policy) ([]models.Position, error)
	RecentTrades(ctx context.Context, policy *market.Policy, limit int) ([]models.Trade, error)
	AccountSummary(ctx context.Context, policy *market.Policy) (*trading.AccountSummary, error)
	EstimateCharges(policy *market.Policy, side models.Side, product models.ProductType, price, quantity decimal.Decimal) (fees.Breakdown, error)
}

type StrategyRunner interface {
	Run(ctx context.Context, policy *market.Policy, symbol string, quantity decimal.Decimal) (*strategy.Result, error)
}

// Pinger reports database reachability for /health. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
}

type Server struct {
	trader     Trader
	markets    *market.Registry
	runner     StrategyRunner
	db         Pinger
	httpServer *http.Server
	apiKey     string
	log        *logrus.Entry
}

// NewServer wires the routes. runner and db may be nil; strategy runs then
// answer 503 and /health reports the database as unknown.
func NewServer(trader Trader, markets *market.Registry, runner StrategyRunner, db Pinger, opts Options) *Server {
	s := &Server{
		trader:  trader,
		markets: markets,
		runner:  runner,
		db:      db,
		apiKey:  opts.APIKey,
		log:     logging.For("api"),
	}

	mux := http.NewServeMux()

	// Trade routes
	mux.HandleFunc("POST /v1/{market}/trade/execute", s.handleExecute)
	mux.HandleFunc("GET /v1/{market}/trade/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /v1/{market}/trade/history", s.handleHistory)
	mux.HandleFunc("GET /v1/{market}/trade/account", s.handleAccount)
	mux.HandleFunc("POST /v1/{market}/trade/exit/{symbol}", s.handleExit)
	mux.HandleFunc("POST /v1/{market}/trade/reset", s.handleReset)
	mux.HandleFunc("GET /v1/{market}/trade/charges/estimate", s.handleEstimate)

	// Strategy routes
	mux.HandleFunc("POST /v1/{market}/strategy/run/{symbol}", s.handleStrategyRun)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.requestLogger(corsMiddleware(s.authMiddleware(mux), opts.CORSOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Infof("REST API server started on http://localhost%s", s.httpServer.Addr)
	s.log.Infof("Health check: http://localhost%s/health", s.httpServer.Addr)
	if s.apiKey != "" {
		s.log.Info("Authentication: enabled (Bearer token)")
	} else {
		s.log.Info("Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with an ID (kept from the caller when
// supplied) and writes one access log line.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := s.log.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).Round(time.Microsecond).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request")
		}
	})
}

// --- request helpers ---

// policy resolves the {market} path segment, writing 404 when unknown.
func (s *Server) policy(w http.ResponseWriter, r *http.Request) (*market.Policy, bool) {
	name := r.PathValue("market")
	p, ok := s.markets.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown market %q", name))
		return nil, false
	}
	return p, true
}

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// parseDecimal reads a decimal query parameter. Missing optional values
// come back as zero.
func parseDecimal(r *http.Request, name string, required bool) (decimal.Decimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		if required {
			return decimal.Zero, fmt.Errorf("%s is required", name)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number, got %q", name, v)
	}
	return d, nil
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

// writeTradeError maps engine errors onto status codes. Infrastructure
// failures are logged and reported generically.
func (s *Server) writeTradeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case trading.IsBusinessError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.log.WithFields(logrus.Fields{
			"request_id": w.Header().Get(requestIDHeader),
			"path":       r.URL.Path,
		}).WithError(err).Errorf("%s failed", op)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
