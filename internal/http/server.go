package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dailyledger/internal/cache"
	"dailyledger/internal/log"
	"dailyledger/internal/middleware/ratelimit"
	"dailyledger/internal/middleware/security"
	"dailyledger/internal/middleware/trace"
	"dailyledger/internal/services"
	appweb "dailyledger/web"
)

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	CurrencySymbol string
	ReportCacheTTL time.Duration
	RateLimit      ratelimit.Config
	Logger         *log.Logger
}

type appMetrics struct {
	uptime      time.Time
	entries     int64
	imports     int64
	cacheHits   int64
	cacheMisses int64
}

// Server is the ledger web UI and API.
type Server struct {
	http.Server
	svc       *services.LedgerService
	templates *template.Template
	currency  string

	reports      *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	logger     *log.Logger
	structured *log.StructuredLogger
	appMetrics appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// server. Call Shutdown to stop its background goroutines.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RateLimit.RequestsPerWindow <= 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "₦"
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		svc:              svc,
		currency:         opts.CurrencySymbol,
		reports:          cache.NewLRUCache[[]byte](64, opts.ReportCacheTTL),
		cacheManager:     cache.NewManager(opts.Logger),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: security.NewDetector(opts.Logger),
		logger:           logger,
		structured:       log.NewStructuredLogger(logger),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.reports)
	s.cacheManager.StartCleanup(context.Background(), 10*time.Minute)

	t, err := appweb.ParseTemplates(templateFuncs)
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/entries", s.handleSubmitEntry)
	mux.HandleFunc("/api/derive", s.handleDerive)
	mux.HandleFunc("/ui/report", s.handleReport)
	mux.HandleFunc("/ui/aggregates", s.handleAggregates)
	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/clear", s.handleClear)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := ratelimit.RetryAfterSeconds(retryAfter)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		"retry_after_seconds", secs)
	msg := fmt.Sprintf("Too many requests. Please try again in %d seconds.", secs)
	if wantsJSON(r) {
		JSONError(http.StatusTooManyRequests, msg).Header("Retry-After", strconv.Itoa(secs)).Write(w)
		return
	}
	ErrorResponse(http.StatusTooManyRequests, msg).Header("Retry-After", strconv.Itoa(secs)).Write(w)
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateReports drops every cached report partial after a write.
func (s *Server) invalidateReports() {
	s.cacheManager.PurgeAll()
}
