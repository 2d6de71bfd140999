package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"moneytrack/internal/config"
	"moneytrack/internal/core"
	"moneytrack/internal/dashboard"
	"moneytrack/internal/log"
	"moneytrack/internal/middleware/ratelimit"
	"moneytrack/internal/middleware/security"
	"moneytrack/internal/middleware/trace"
	appweb "moneytrack/web"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	readyTimeout = 5 * time.Second
)

// TransactionAPI is the service behind the JSON routes.
type TransactionAPI interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Options are the HTTP-facing settings taken from config.
type Options struct {
	Addr               string
	Theme              string
	WidgetScriptURL    string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// OptionsFromConfig copies the HTTP settings out of the app config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:               ":" + cfg.Port,
		Theme:              cfg.Theme,
		WidgetScriptURL:    cfg.WidgetScriptURL,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
}

// Deps are the collaborators the server routes to. API may be nil, in which
// case the JSON routes are not mounted (the UI then talks to a remote API).
type Deps struct {
	API       TransactionAPI
	Dashboard *dashboard.Controller
	Hub       *Hub
	Ready     func(ctx context.Context) error
	Logger    *log.Logger
}

type Server struct {
	http.Server
	opts      Options
	api       TransactionAPI
	dashboard *dashboard.Controller
	hub       *Hub
	ready     func(ctx context.Context) error
	templates *template.Template
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Dashboard == nil {
		return nil, errors.New("dashboard controller is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger, opts.CORSAllowedOrigins)
	}
	if opts.Theme != config.ThemeDark {
		opts.Theme = config.ThemeLight
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		opts:      opts,
		api:       deps.API,
		dashboard: deps.Dashboard,
		hub:       deps.Hub,
		ready:     deps.Ready,
		templates: t,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(),
	}

	s.Server = http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	} else {
		cache := security.StaticAssetMiddleware(3600)
		mux.Handle("GET /static/", cache(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.api != nil {
		api := http.NewServeMux()
		api.HandleFunc("GET /transactions", s.handleListTransactions)
		api.HandleFunc("POST /transactions", s.handleCreateTransaction)
		api.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
		api.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

		c := cors.New(cors.Options{
			AllowedOrigins: s.opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", trace.RequestIDHeader},
			MaxAge:         600,
		})
		mux.Handle("/transactions", c.Handler(api))
		mux.Handle("/transactions/", c.Handler(api))
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /ui/transactions", s.handleUIAdd)
	mux.HandleFunc("POST /ui/transactions/{id}/edit", s.handleUIEdit)
	mux.HandleFunc("POST /ui/transactions/{id}/delete", s.handleUIDelete)
	mux.HandleFunc("POST /ui/budget", s.handleUIBudget)
	mux.HandleFunc("GET /ui/search", s.handleUISearch)
	mux.HandleFunc("POST /ui/theme", s.handleUITheme)
	mux.Handle("GET /ws", s.hub)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.flagSuspicious(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig(s.opts.WidgetScriptURL)).Middleware(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware(h)
	return h
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	const msg = "Rate limit exceeded. Please try again later."
	if r.Header.Get("HX-Request") == "true" {
		ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
		return
	}
	writeError(w, http.StatusTooManyRequests, msg)
}

// flagSuspicious logs probing requests; it never blocks them.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldErrorType, log.ErrorTypeSecurity)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 while the record store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": "store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops background helpers, disconnects websockets and drains
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.hub.Close()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
