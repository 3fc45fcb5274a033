package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/logging"
	"github.com/Sternrassler/plantcare/pkg/metrics"
	"github.com/Sternrassler/plantcare/pkg/refresh"
	"github.com/Sternrassler/plantcare/pkg/resolver"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve care details, health and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		a.dispatcher.Start(ctx)
		if cfg.Refresh.SweepEnabled {
			go a.sweeper(cfg).Run(ctx)
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		logger := logging.NewLogger("server")

		srv := &http.Server{
			Addr: addr,
			Handler: newRouter(&handlers{
				resolver: a.resolver,
				queue:    a.dispatcher,
				ready:    a.ready,
				logger:   logger,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			logger.Info().Msg("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Server shutdown incomplete")
			}
		}()

		logger.Info().Str("addr", addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type careResolver interface {
	Resolve(ctx context.Context, req resolver.Request) care.Result
}

type jobQueue interface {
	Enqueue(job refresh.Job) error
}

// handlers serves the HTTP API.
type handlers struct {
	resolver careResolver
	queue    jobQueue
	ready    func(ctx context.Context) error
	logger   zerolog.Logger
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", healthHandler)
	r.Get("/ready", h.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/care", h.careHandler)
		r.Post("/refresh", h.refreshHandler)
	})
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (h *handlers) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ready(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "NOT READY", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// careHandler resolves the species named by the query string.
func (h *handlers) careHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	src, err := parseProvider(q.Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	force := false
	if v := q.Get("force"); v != "" {
		force, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
	}

	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		writeResult(w, http.StatusBadRequest, care.NotFound(resolver.ErrInvalidName.Error()))
		return
	}

	result := h.resolver.Resolve(r.Context(), resolver.Request{
		ScientificName: name,
		CommonName:     q.Get("common_name"),
		Family:         q.Get("family"),
		Provider:       src,
		ForceRefresh:   force,
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusNotFound
	}
	writeResult(w, status, result)
}

type refreshRequest struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
	Family         string `json:"family"`
	Provider       string `json:"provider"`
}

// refreshHandler schedules a background refresh.
func (h *handlers) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src, err := parseProvider(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.queue.Enqueue(refresh.Job{
		ScientificName: req.ScientificName,
		CommonName:     req.CommonName,
		Family:         req.Family,
		Provider:       src,
	})
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":          "accepted",
			"scientific_name": strings.TrimSpace(req.ScientificName),
		})
	case errors.Is(err, resolver.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, refresh.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func writeResult(w http.ResponseWriter, status int, result care.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
