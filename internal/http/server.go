package http

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	wlog "wastewise/internal/log"
	"wastewise/internal/middleware/ratelimit"
	"wastewise/internal/middleware/security"
	"wastewise/internal/middleware/trace"
	"wastewise/internal/services"
)

// Options wires the server to its services.
type Options struct {
	Logs       *services.LogService
	Dashboard  *services.DashboardService
	Challenges *services.ChallengeService

	// Ping checks the backing store for /readyz. Nil means always ready.
	Ping func(ctx context.Context) error
	// SchemaVersion reports the store's migrated schema for /readyz. Optional.
	SchemaVersion func() uint
	// SummaryCacheSize reports cached dashboards for /metrics. Optional.
	SummaryCacheSize func() int

	Logger             *wlog.Logger
	RateLimitPerMinute int
	AllowedOrigins     []string
}

type Server struct {
	http.Server

	logs       *services.LogService
	dashboard  *services.DashboardService
	challenges *services.ChallengeService
	ping       func(ctx context.Context) error
	schema     func() uint
	cacheSize  func() int

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	startedAt      time.Time
	entriesCreated int64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = wlog.New(wlog.DefaultConfig())
	}
	logger = logger.WithComponent(wlog.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logs:       opts.Logs,
		dashboard:  opts.Dashboard,
		challenges: opts.Challenges,
		ping:       opts.Ping,
		schema:     opts.SchemaVersion,
		cacheSize:  opts.SummaryCacheSize,
		limiter:    ratelimit.NewLimiter(limitCfg),
		detector:   detector,
		tracer:     trace.NewMiddleware(detector.ExtractClientIP, nil),
		startedAt:  time.Now(),
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", HeaderUserID, trace.HeaderRequestID}),
		handlers.ExposedHeaders([]string{trace.HeaderRequestID, "Retry-After"}),
		handlers.MaxAge(600),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(false),
	)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var h http.Handler = s.routes()
	h = cors(h)
	h = detector.Middleware(h)
	h = headers.Middleware(h)
	h = recovery(h)
	h = s.tracer.Middleware(h)
	h = wlog.Middleware(logger)(h)
	s.Handler = h

	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = methodNotAllowed(r)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.Use(s.limiter.Middleware(s.rateLimitKey, s.handleRateLimited))

	logs := wlog.ComponentMiddleware(wlog.ComponentLog)
	dashboard := wlog.ComponentMiddleware(wlog.ComponentDashboard)
	challenges := wlog.ComponentMiddleware(wlog.ComponentChallenge)

	api.Handle("/logs", logs(http.HandlerFunc(s.handleCreateLog))).Methods(http.MethodPost)
	api.Handle("/logs", logs(http.HandlerFunc(s.handleListLogs))).Methods(http.MethodGet)
	api.Handle("/summary", dashboard(http.HandlerFunc(s.handleSummary))).Methods(http.MethodGet)
	api.Handle("/challenges", challenges(http.HandlerFunc(s.handleChallenges))).Methods(http.MethodGet)
	api.Handle("/challenges/{id}/participation", challenges(http.HandlerFunc(s.handleJoin))).Methods(http.MethodPost)
	api.Handle("/challenges/{id}/participation", challenges(http.HandlerFunc(s.handleLeave))).Methods(http.MethodDelete)

	return r
}

// rateLimitKey counts requests per user, falling back to the client IP
// for anonymous requests.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, err := UserID(r); err == nil {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	wlog.FromContext(r.Context()).WithComponent(wlog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		wlog.FieldClientIP, s.detector.ExtractClientIP(r),
		wlog.FieldMethod, r.Method,
		wlog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("not found").Write(w)
}

// methodNotAllowed answers 405 with an Allow header listing the methods
// registered on router for the request path.
func methodNotAllowed(router *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(strings.Join(allowedMethods(router, r.URL.Path), ", ")).Write(w)
	})
}

func allowedMethods(router *mux.Router, path string) []string {
	seen := make(map[string]bool)
	_ = router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		pattern, err := route.GetPathRegexp()
		if err != nil {
			return nil
		}
		if ok, _ := regexp.MatchString(pattern, path); ok {
			for _, m := range methods {
				seen[m] = true
			}
		}
		return nil
	})

	allowed := make([]string, 0, len(seen))
	for m := range seen {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	return allowed
}

// recoveryLogger routes panics caught by handlers.RecoveryHandler to the
// structured logger.
type recoveryLogger struct {
	logger *wlog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Panic recovered",
		wlog.FieldError, fmt.Sprint(v...),
		wlog.FieldErrorType, wlog.ErrorTypeInternal)
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
