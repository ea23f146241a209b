package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fortis-trading-bot/internal/auth"
	"fortis-trading-bot/internal/backtest"
	"fortis-trading-bot/internal/database"
	"fortis-trading-bot/internal/events"
	"fortis-trading-bot/internal/logging"
	"fortis-trading-bot/internal/market"
	"fortis-trading-bot/internal/metrics"
	"fortis-trading-bot/internal/risk"
	"fortis-trading-bot/internal/scanner"
	"fortis-trading-bot/internal/signals"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// SignalFeed is the live view of the scanner. *scanner.Scanner satisfies it.
type SignalFeed interface {
	RecentSignals(symbol string, limit int) []*signals.Signal
	GetLastResult() *scanner.ScanResult
	InvalidateSignal(id string) bool
}

// Store is the persisted history. *database.Store satisfies it.
type Store interface {
	HealthCheck(ctx context.Context) error
	RecentSignals(ctx context.Context, symbol string, limit int) ([]*signals.Signal, error)
	RecentBacktests(ctx context.Context, limit int) ([]database.BacktestSummary, error)
	SaveBacktest(ctx context.Context, r *backtest.Result) (int64, error)
}

// Backtester runs backtests on demand. *backtest.Runner satisfies it.
type Backtester interface {
	RunDays(ctx context.Context, symbol string, tf market.Timeframe, days int) (*backtest.Result, error)
}

// HealthChecker is an optional dependency reported by /health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the optional collaborators of the server. Nil fields disable the
// routes that need them.
type Deps struct {
	Feed       SignalFeed
	Store      Store
	Backtester Backtester
	Risk       *risk.Manager
	EventBus   *events.EventBus
	Metrics    *metrics.Recorder
	JWT        *auth.JWTManager
	Vault      HealthChecker
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ProductionMode  bool
	MetricsPath     string
	PersistBacktest bool
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      ServerConfig
	deps        Deps
	hub         *WSHub
	rateLimiter *RateLimiter
	started     time.Time
	log         *logging.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      config,
		deps:        deps,
		rateLimiter: NewRateLimiter(6, time.Minute), // Backtests page through the exchange history
		started:     time.Now(),
		log:         logging.WithComponent("api"),
	}
	router.Use(server.requestLogger())

	if deps.EventBus != nil {
		server.hub = InitWebSocket(deps.EventBus)
	}

	server.setupRoutes()
	return server
}

// Router exposes the handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs each request and records its metrics under the route pattern
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		s.deps.Metrics.RecordHTTP(route, c.Request.Method, status, elapsed)
		logging.APIContext(c.Request.Method, route, status).WithDuration(elapsed).Debug("Request served")
	}
}

// rateLimitMiddleware limits requests per route
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if !s.rateLimiter.Allow(path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "Too many requests to this endpoint. Please slow down to avoid exchange bans.",
				"path":    path,
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.deps.Metrics != nil {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	if s.deps.JWT != nil {
		api.Use(auth.Middleware(s.deps.JWT))
	}

	{
		api.GET("/signals", s.handleGetSignals)
		api.POST("/signals/:id/invalidate", s.adminOnly(s.handleInvalidateSignal)...)
		api.GET("/scan/last", s.handleLastScan)

		api.GET("/backtests", s.handleGetBacktests)
		api.POST("/backtests", s.adminOnly(s.rateLimitMiddleware(), s.handleRunBacktest)...)

		api.GET("/risk/stats", s.handleRiskStats)
		api.GET("/risk/position-size", s.handlePositionSize)

		if s.hub != nil {
			api.GET("/ws", s.handleWebSocket)
		}
	}
}

// adminOnly prepends the admin check when auth is enabled
func (s *Server) adminOnly(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	if s.deps.JWT == nil {
		return handlers
	}
	return append([]gin.HandlerFunc{auth.RequireAdmin()}, handlers...)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if s.hub != nil {
		s.hub.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
