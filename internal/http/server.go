package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/report"
	"bilancio/internal/services"
)

// Dashboard is the read side served by the chart and status endpoints.
type Dashboard interface {
	Balance(ctx context.Context, p analytics.Period, ref time.Time) (analytics.Balance, error)
	Categories(ctx context.Context, p analytics.Period, typ core.TransactionType, topN int, ref time.Time) (analytics.Ranking, error)
	Trend(ctx context.Context, p analytics.Period, categories []string, ref time.Time) (analytics.Trend, error)
	Budgets(ctx context.Context, ref time.Time) ([]analytics.BudgetStatus, error)
	Goals(ctx context.Context, ref time.Time) ([]analytics.GoalStatus, error)
	Overview(ctx context.Context, p analytics.Period, ref time.Time) (services.Overview, error)
	Report(ctx context.Context, p analytics.Period, ref time.Time) (report.Data, error)
	Taxonomy(ctx context.Context) (services.Taxonomy, error)
	TopN() int
}

// TransactionCreator stores a new transaction and returns its reference.
type TransactionCreator interface {
	Create(ctx context.Context, tx core.Transaction) (string, error)
}

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server. Dashboard and Transactions are required.
type Options struct {
	Addr         string
	Dashboard    Dashboard
	Transactions TransactionCreator
	Backend      Pinger
	// ReportFont is the TTF used for PDF reports; nil disables them.
	ReportFont []byte
	RateLimit  ratelimit.Config
	// BlockSuspicious rejects requests the detector flags instead of only
	// logging them.
	BlockSuspicious bool
	// Location decides which calendar day "today" is; nil means time.Local.
	Location *time.Location
	Logger   *log.Logger
}

type Server struct {
	http.Server
	dashboard    Dashboard
	transactions TransactionCreator
	backend      Pinger
	reportFont   []byte
	logger       *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	now          func() time.Time
	location     *time.Location
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	rl := opts.RateLimit
	if rl.RequestsPerMinute == 0 && len(rl.Methods) == 0 {
		rl = ratelimit.DefaultConfig()
	}

	s := &Server{
		dashboard:        opts.Dashboard,
		transactions:     opts.Transactions,
		backend:          opts.Backend,
		reportFont:       opts.ReportFont,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(rl),
		securityDetector: security.NewDetector(opts.BlockSuspicious, logger),
		traceMiddleware:  trace.NewMiddleware(logger),
		appMetrics:       newAppMetrics(),
		now:              time.Now,
		location:         location,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// localNow is the current instant in the server's reporting zone.
func (s *Server) localNow() time.Time {
	return s.now().In(s.location)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.AccessLog(s.securityDetector.ExtractClientIP))
	r.Use(s.captureServerErrors)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware)
	r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)

		r.Get("/charts/balance", s.handleBalance)
		r.Get("/charts/categories", s.handleCategories)
		r.Get("/charts/trend", s.handleTrend)
		r.Get("/budgets", s.handleBudgets)
		r.Get("/goals", s.handleGoals)
		r.Get("/overview", s.handleOverview)
		r.Get("/taxonomy", s.handleTaxonomy)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Get("/reports/{file}", s.handleReport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldComponent, log.ComponentRateLimit)
	TooManyRequestsError().Write(w)
}

// captureServerErrors reports every 5xx response to Sentry. Handlers attach
// the underlying error with reportError.
func (s *Server) captureServerErrors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &errorHolder{}
		r = r.WithContext(context.WithValue(r.Context(), errorHolderKey{}, holder))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if ww.Status() < 500 {
			return
		}
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", trace.GetRequestID(r.Context()))
			scope.SetTag("route", chi.RouteContext(r.Context()).RoutePattern())
			scope.SetContext("http", map[string]any{"status": ww.Status(), "method": r.Method})
			if holder.err != nil {
				hub.CaptureException(holder.err)
				return
			}
			hub.CaptureMessage(http.StatusText(ww.Status()) + " " + r.URL.Path)
		})
	})
}

type errorHolderKey struct{}

type errorHolder struct{ err error }

// reportError remembers err for captureServerErrors.
func reportError(r *http.Request, err error) {
	if h, ok := r.Context().Value(errorHolderKey{}).(*errorHolder); ok {
		h.err = err
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
