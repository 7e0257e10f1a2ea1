package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/orgoj/logchannel/internal/config"
	"github.com/orgoj/logchannel/internal/handler"
	"github.com/orgoj/logchannel/internal/logger"
)

// Dependencies holds the dependencies needed by the server.
type Dependencies struct {
	Config        *config.Config
	LoggerManager *logger.Manager
	AppLogger     *logger.AppLogger
}

// Server represents the HTTP server
type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	config        *config.Config
	loggerManager *logger.Manager
	appLogger     *logger.AppLogger
	// Rate limiting specific
	limiters   sync.Map // client IP -> *clientLimiter
	rateLimit  rate.Limit
	burstLimit int
	lastSweep  atomic.Int64 // unix nanos
}

// Idle limiters are dropped after limiterIdleTTL; sweeps run at most once per
// limiterSweepInterval.
const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

var now = time.Now

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewServer creates a new server instance with its dependencies.
func NewServer(deps Dependencies) *Server {
	if deps.Config == nil {
		panic("server: Config dependency cannot be nil")
	}
	if deps.LoggerManager == nil {
		panic("server: LoggerManager dependency cannot be nil")
	}
	if deps.AppLogger == nil {
		panic("server: AppLogger dependency cannot be nil")
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		deps.AppLogger.Error("Invalid server.trusted_proxies, trusting none: %v", err)
		_ = router.SetTrustedProxies(nil)
	}

	s := &Server{
		router:        router,
		config:        deps.Config,
		loggerManager: deps.LoggerManager,
		appLogger:     deps.AppLogger,
	}
	router.Use(s.requestLogMiddleware())

	if rl := deps.Config.Server.RequestLimits.RateLimit; rl > 0 {
		// Convert requests per minute to requests per second; bursts up to
		// the per-minute limit.
		s.rateLimit = rate.Limit(float64(rl) / 60.0)
		s.burstLimit = rl
		s.appLogger.Info("Rate limiting enabled for /log: Rate=%.2f req/sec, Burst=%d", float64(s.rateLimit), s.burstLimit)
	} else {
		s.rateLimit = rate.Inf
		s.appLogger.Info("Rate limiting disabled for /log.")
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// basePath normalizes server.path_prefix to "/" or "/prefix/".
func basePath(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "/"
	}
	return "/" + prefix + "/"
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	group := s.router.Group(basePath(s.config.Server.PathPrefix))

	// Health check endpoint (no rate limit)
	group.GET("health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	group.HEAD("health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	group.GET("version", handler.VersionHandler)
	group.GET("channels", handler.NewChannelsHandler(s.loggerManager))

	logGroup := group.Group("/log")
	if s.rateLimit != rate.Inf {
		logGroup.Use(s.rateLimitMiddleware())
	}
	logGroup.POST("", handler.NewLogHandler(handler.LogHandlerDependencies{
		LoggerManager: s.loggerManager,
		AppLogger:     s.appLogger,
		MaxBodySize:   s.config.Server.RequestLimits.MaxBodySize,
	}))
}

// requestLogMiddleware logs each request at debug level; health checks go
// through the health log, which is off unless show_health_logs is set.
func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		format := "%s %s -> %d (%s, client %s)"
		args := []interface{}{c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP()}
		if strings.HasSuffix(path, "/health") {
			s.appLogger.Health(format, args...)
			return
		}
		s.appLogger.Debug(format, args...)
	}
}

// rateLimitMiddleware creates a Gin middleware for rate limiting based on IP.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		t := now()
		s.sweepLimiters(t)

		v, ok := s.limiters.Load(ip)
		if !ok {
			v, _ = s.limiters.LoadOrStore(ip, &clientLimiter{limiter: rate.NewLimiter(s.rateLimit, s.burstLimit)})
		}
		cl := v.(*clientLimiter)
		cl.lastSeen.Store(t.UnixNano())
		if !cl.limiter.AllowN(t, 1) {
			s.appLogger.Info("Rate limit exceeded for IP: %s", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// sweepLimiters removes limiters of clients idle for longer than
// limiterIdleTTL. Only one caller per interval does the sweep.
func (s *Server) sweepLimiters(t time.Time) {
	last := s.lastSweep.Load()
	if t.UnixNano()-last < int64(limiterSweepInterval) || !s.lastSweep.CompareAndSwap(last, t.UnixNano()) {
		return
	}
	cutoff := t.Add(-limiterIdleTTL).UnixNano()
	s.limiters.Range(func(key, value interface{}) bool {
		if value.(*clientLimiter).lastSeen.Load() < cutoff {
			s.limiters.Delete(key)
		}
		return true
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	s.appLogger.Info("Starting server on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.appLogger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
