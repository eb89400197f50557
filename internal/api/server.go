package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/jarvis/internal/pipeline"
	"github.com/MikeSquared-Agency/jarvis/internal/store"
)

// Processor is the pipeline surface exposed over HTTP.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
	Reprocess(ctx context.Context, userID, transcriptionID uuid.UUID, source string) (*pipeline.Response, error)
	Group(ctx context.Context, userID, groupID uuid.UUID) ([]store.Transcription, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router *chi.Mux
	port   int
	proc   Processor
	db     Pinger
	logger *slog.Logger
	srv    *http.Server
}

// NewServer builds the router. db may be nil.
func NewServer(port int, apiToken string, proc Processor, db Pinger, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		proc:   proc,
		db:     db,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/jarvis/status", s.status)

	router.Route("/api/v1/transcriptions", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Use(UserMiddleware)
		r.Post("/process", s.process)
		r.Post("/{id}/reprocess", s.reprocess)
		r.Get("/groups/{groupID}", s.group)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	db := "unconfigured"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		db = "ok"
		if err := s.db.Ping(ctx); err != nil {
			db = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":    "jarvis",
		"status":   "ok",
		"database": db,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
