// Package httpapi serves the pipeline and key store over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/stegseal/stegseal-go/internal/metrics"
)

// ServerConfig configures the HTTP and metrics listeners.
type ServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	Log         *slog.Logger

	// Metrics, when set, tracks in-flight requests. MetricsServer serves
	// the registry on MetricsAddr.
	Metrics       *metrics.Metrics
	MetricsServer *metrics.Server

	RateLimit float64
	RateBurst int

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server is the stegseal HTTP service.
type Server struct {
	cfg     *ServerConfig
	isReady atomic.Bool
	log     *slog.Logger
	limiter *ipLimiter

	srv     *http.Server
	handler *Handler
}

// New builds a server around handler. It is ready immediately.
func New(cfg *ServerConfig, handler *Handler) *Server {
	srv := &Server{
		cfg:     cfg,
		log:     cfg.Log,
		handler: handler,
	}
	if srv.log == nil {
		srv.log = slog.Default()
	}
	if cfg.RateLimit > 0 {
		srv.limiter = newIPLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv
}

// Router returns the routing tree. It is exported for tests.
func (srv *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(requestID)
	mux.Use(middleware.Recoverer)
	if srv.cfg.Metrics != nil {
		mux.Use(srv.cfg.Metrics.InFlight)
	}

	mux.Route("/api/v1", func(r chi.Router) {
		r.Use(srv.httpLogger)
		if srv.limiter != nil {
			r.Use(srv.limiter.Middleware)
		}

		r.Post("/keys", srv.handler.CreateKey)
		r.Get("/keys", srv.handler.ListKeys)
		r.Get("/keys/{identity}", srv.handler.GetKey)
		r.Delete("/keys/{identity}", srv.handler.DeleteKey)

		r.Post("/hide", srv.handler.Hide)
		r.Post("/reveal", srv.handler.Reveal)
		r.Post("/scan", srv.handler.Scan)
		r.Post("/capacity", srv.handler.Capacity)
		r.Post("/strip", srv.handler.Strip)
		r.Post("/scramble", srv.handler.Scramble)
		r.Post("/effect/{mode}", srv.handler.Effect)
	})

	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	srv.log.Info("Server marked as not ready")

	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	srv.log.Info("Server marked as ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// RunInBackground starts the API and metrics listeners.
func (srv *Server) RunInBackground() {
	if srv.cfg.MetricsServer != nil {
		go func() {
			srv.log.Info("Starting metrics server", "metricsAddress", srv.cfg.MetricsAddr)
			err := srv.cfg.MetricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown stops both listeners, waiting up to GracefulShutdownDuration
// for each.
func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	if srv.cfg.MetricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.cfg.MetricsServer.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
