// Package http exposes the navigation turn over HTTP.
package http

import (
	"net/http"
	"time"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/application/port/output"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"golang.org/x/time/rate"
)

const defaultMaxUploadBytes = 20 << 20

type Options struct {
	Provider       string
	AllowedOrigins []string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	// TurnRateLimit is turns per second across all callers; zero disables limiting.
	TurnRateLimit float64
	TurnRateBurst int
	// AccessLog enables httplog request logging.
	AccessLog      bool
	AccessLogJSON  bool
	AccessLogLevel string
	Metrics        http.Handler
}

type Handler struct {
	turns  input.TurnTaker
	logger output.LoggerPort
	opts   Options
}

func NewHandler(turns input.TurnTaker, logger output.LoggerPort, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Handler{turns: turns, logger: logger, opts: opts}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if h.opts.AccessLog {
		level := h.opts.AccessLogLevel
		if level == "" {
			level = "info"
		}
		r.Use(httplog.RequestLogger(httplog.NewLogger("navagent", httplog.Options{
			JSON:     h.opts.AccessLogJSON,
			Concise:  true,
			LogLevel: level,
		})))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors(h.opts.AllowedOrigins))

	var limiter *rate.Limiter
	if h.opts.TurnRateLimit > 0 {
		burst := h.opts.TurnRateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(h.opts.TurnRateLimit), burst)
	}

	r.Get("/api/health", h.health)
	r.Post("/api/sessions", h.newSession)
	r.Group(func(r chi.Router) {
		r.Use(limitTurns(limiter))
		r.Post("/api/navigate", h.navigateMultipart)
		r.Post("/api/navigate/base64", h.navigateBase64)
		r.Post("/api/turn", h.turn)
	})
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": h.opts.Provider,
	})
}
