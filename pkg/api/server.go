package api

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxConcurrent   int
	CORSOrigins     []string // empty: same-origin only
	RateLimit       float64  // per client IP per second, 0: unlimited
	RateBurst       int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxConcurrent:   runtime.NumCPU() * 2,
	}
}

// Routes registers every endpoint on a new httprouter.
func Routes(h *Handlers) *httprouter.Router {
	r := httprouter.New()
	handle := func(method, path, label string, fn httprouter.Handle) {
		r.Handle(method, path, func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
			instrument(label, func(w http.ResponseWriter, req *http.Request) {
				fn(w, req, ps)
			}).ServeHTTP(w, req)
		})
	}
	handle(http.MethodPost, "/api/v1/route", "route", h.HandleRoute)
	handle(http.MethodGet, "/api/v1/route", "route", h.HandleRouteQuery)
	handle(http.MethodGet, "/api/v1/route/nodes", "route_nodes", h.HandleRouteNodes)
	handle(http.MethodGet, "/api/v1/health", "health", h.HandleHealth)
	handle(http.MethodGet, "/api/v1/stats", "stats", h.HandleStats)
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// NewHandler wraps the routes in the middleware chain.
func NewHandler(cfg ServerConfig, h *Handlers, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	var chain []alice.Constructor
	if len(cfg.CORSOrigins) > 0 {
		chain = append(chain, cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}
	chain = append(chain, recoverPanic(log), requestLogger(log), securityHeaders)
	if cfg.RateLimit > 0 {
		chain = append(chain, rateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	chain = append(chain, limitConcurrency(max(cfg.MaxConcurrent, 1)))
	if cfg.RequestTimeout > 0 {
		chain = append(chain, requestTimeout(cfg.RequestTimeout))
	}
	return alice.New(chain...).Then(Routes(h))
}

// NewServer creates an HTTP server with all routes and middleware.
func NewServer(cfg ServerConfig, h *Handlers, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewHandler(cfg, h, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Run serves until ctx is done, then shuts the server down within
// shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
