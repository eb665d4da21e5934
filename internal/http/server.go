package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"budget/internal/auth"
	applog "budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	appweb "budget/web"
)

const rateLimitMessage = "For mange login forsøg. Prøv igen om 5 minutter."

// Pinger is checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr             string
	BasePath         string
	SecureCookies    bool
	TrustedProxies   []string
	DemoSessionTTL   time.Duration
	LoginMaxAttempts int
	LoginWindow      time.Duration
	Version          string
}

// Deps are the services the handlers call. Metrics and Logger may be nil.
type Deps struct {
	Auth    *auth.Authenticator
	Budget  *services.BudgetService
	DB      Pinger
	Metrics *trace.Metrics
	Logger  *applog.Logger
}

type Server struct {
	http.Server
	cfg       Config
	templates *template.Template
	auth      *auth.Authenticator
	budget    *services.BudgetService
	db        Pinger
	metrics   *trace.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *applog.Logger
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.DemoSessionTTL <= 0 {
		cfg.DemoSessionTTL = time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = trace.NewMetrics()
	}

	s := &Server{
		cfg:       cfg,
		auth:      deps.Auth,
		budget:    deps.Budget,
		db:        deps.DB,
		metrics:   metrics,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		startedAt: time.Now(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      cfg.LoginWindow,
		}),
		detector: security.NewDetector(metrics.Suspicious.Inc),
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	if deps.Budget != nil {
		deps.Budget.ObservePublish(func(outcome string) {
			metrics.Events.WithLabelValues(outcome).Inc()
		})
	}

	t, err := parseTemplates(cfg.BasePath)
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.isLoginPost, s.detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP, metrics).Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	b := s.cfg.BasePath

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix(b+"/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET "+b+"/static/", security.StaticAssetMiddleware(3600)(static))
		mux.HandleFunc("GET "+b+"/static/manifest.json", s.handleManifest)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// Public pages
	mux.HandleFunc("GET "+b+"/login", s.handleLoginForm)
	mux.HandleFunc("POST "+b+"/login", s.handleLogin)
	mux.HandleFunc("GET "+b+"/register", s.handleRegisterForm)
	mux.HandleFunc("POST "+b+"/register", s.handleRegister)
	mux.HandleFunc("GET "+b+"/demo", s.handleDemo)
	mux.HandleFunc("GET "+b+"/demo/toggle", s.handleDemoToggle)
	mux.HandleFunc("GET "+b+"/logout", s.handleLogout)
	mux.HandleFunc("GET "+b+"/forgot-password", s.handleForgotForm)
	mux.HandleFunc("POST "+b+"/forgot-password", s.handleForgot)
	mux.HandleFunc("GET "+b+"/reset-password/{token}", s.handleResetForm)
	mux.HandleFunc("POST "+b+"/reset-password/{token}", s.handleReset)
	mux.HandleFunc("GET "+b+"/help", s.handleHelp)
	mux.HandleFunc("GET "+b+"/om", s.handleAbout)
	mux.HandleFunc("GET "+b+"/privacy", s.handlePrivacy)

	// Budget pages
	mux.HandleFunc("GET "+b+"/{$}", s.requireViewer(s.handleDashboard))
	if b != "" {
		mux.HandleFunc("GET "+b, s.requireViewer(s.handleDashboard))
	}
	mux.HandleFunc("GET "+b+"/income", s.requireViewer(s.handleIncomeForm))
	mux.HandleFunc("POST "+b+"/income", s.requireViewer(s.handleIncomeSave))
	mux.HandleFunc("GET "+b+"/expenses", s.requireViewer(s.handleExpenses))
	mux.HandleFunc("POST "+b+"/expenses/add", s.requireViewer(s.handleExpenseAdd))
	mux.HandleFunc("POST "+b+"/expenses/{id}/edit", s.requireViewer(s.handleExpenseEdit))
	mux.HandleFunc("POST "+b+"/expenses/{id}/delete", s.requireViewer(s.handleExpenseDelete))
	mux.HandleFunc("GET "+b+"/categories", s.requireViewer(s.handleCategories))
	mux.HandleFunc("POST "+b+"/categories/add", s.requireViewer(s.handleCategoryAdd))
	mux.HandleFunc("POST "+b+"/categories/{id}/edit", s.requireViewer(s.handleCategoryEdit))
	mux.HandleFunc("POST "+b+"/categories/{id}/delete", s.requireViewer(s.handleCategoryDelete))
	mux.HandleFunc("GET "+b+"/accounts", s.requireViewer(s.handleAccounts))
	mux.HandleFunc("POST "+b+"/accounts/add", s.requireViewer(s.handleAccountAdd))
	mux.HandleFunc("POST "+b+"/accounts/add-json", s.requireAPIViewer(s.handleAccountAddJSON))
	mux.HandleFunc("POST "+b+"/accounts/{id}/edit", s.requireViewer(s.handleAccountEdit))
	mux.HandleFunc("POST "+b+"/accounts/{id}/delete", s.requireViewer(s.handleAccountDelete))
	mux.HandleFunc("GET "+b+"/yearly", s.requireViewer(s.handleYearly))
	mux.HandleFunc("GET "+b+"/settings", s.requireViewer(s.handleSettings))
	mux.HandleFunc("POST "+b+"/settings", s.requireViewer(s.handleSettingsSave))
	mux.HandleFunc("POST "+b+"/settings/export", s.requireViewer(s.handleSettingsExport))
	mux.HandleFunc("GET "+b+"/api/chart-data", s.requireAPIViewer(s.handleChartData))

	// Health checks and metrics answer both at the root and under the base path.
	for _, prefix := range healthPrefixes(b) {
		mux.HandleFunc("GET "+prefix+"/healthz", s.handleHealth)
		mux.HandleFunc("GET "+prefix+"/readyz", s.handleReady)
		mux.Handle("GET "+prefix+"/metrics", s.metrics.Handler())
	}
}

func healthPrefixes(base string) []string {
	if base == "" {
		return []string{""}
	}
	return []string{"", base}
}

// url joins p to the base path.
func (s *Server) url(p string) string {
	return s.cfg.BasePath + p
}

func (s *Server) isLoginPost(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == s.url("/login")
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited.Inc()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Login rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, rateLimitMessage).Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server. It is safe to
// call more than once.
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().BodyJSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"version":   s.cfg.Version,
	}).Write(w)
}

// handleReady checks the templates and the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.db == nil:
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	body := map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.budget != nil {
		stats := s.budget.Cache().Stats()
		body["cache"] = map[string]any{"size": stats.Size, "hits": stats.Hits, "misses": stats.Misses}
	}
	NewResponse().Status(httpStatus).BodyJSON(body).Write(w)
}
