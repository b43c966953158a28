// Package api exposes the readiness engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/readiness-engine/internal/engine"
)

const maxBodyBytes = 4 << 20

// Options configures middleware. A zero RateLimit disables rate limiting.
type Options struct {
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine  *engine.Engine
	limiter *rate.Limiter
	origins []string
	now     func() time.Time
}

// New creates a Server.
func New(eng *engine.Engine, opts Options) *Server {
	s := &Server{
		engine:  eng,
		origins: opts.CORSOrigins,
		now:     time.Now,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(middleware.RequestSize(maxBodyBytes))

		r.Post("/assess", s.assess)
		r.Post("/drift", s.runDrift)
		r.Post("/priority", s.rankTasks)
		r.Patch("/signals/{id}", s.updateSignal)

		r.Get("/dlq", s.dlqCount)
		r.Post("/dlq/replay", s.dlqReplay)

		r.Get("/companies", s.listCompanies)
		r.Route("/companies/{id}", func(r chi.Router) {
			r.Get("/snapshots", s.listSnapshots)
			r.Get("/snapshots/latest", s.latestSnapshot)
			r.Get("/signals", s.signalsDisplay)
			r.Get("/drift-reports", s.listDriftReports)
			r.Get("/weights", s.getWeights)
			r.Put("/weights", s.putWeights)
			r.Get("/export.xlsx", s.exportWorkbook)
		})
	})
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
