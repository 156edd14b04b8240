package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/conductor/internal/db"
	"github.com/randalmurphal/conductor/internal/events"
	"github.com/randalmurphal/conductor/internal/spawn"
	"github.com/randalmurphal/conductor/internal/store"
)

// Server is the conductor API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger

	store     *store.Store
	publisher events.Publisher
	spawner   *spawn.Spawner
	eventLog  *db.DB
	wsHandler *WSHandler

	httpServer *http.Server
}

// Config holds server configuration.
type Config struct {
	Addr      string
	Store     *store.Store
	Publisher events.Publisher
	Spawner   *spawn.Spawner
	// EventLog serves GET /api/events; nil disables the endpoint.
	EventLog *db.DB
	Logger   *slog.Logger
}

// New creates a new API server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":9171"
	}

	s := &Server{
		addr:      addr,
		mux:       http.NewServeMux(),
		logger:    logger,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		spawner:   cfg.Spawner,
		eventLog:  cfg.EventLog,
	}
	s.wsHandler = NewWSHandler(cfg.Publisher, logger)
	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// CORS middleware wrapper
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	// Health check
	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Projects
	s.mux.HandleFunc("GET /api/projects", cors(s.handleListProjects))
	s.mux.HandleFunc("POST /api/projects", cors(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/projects/{id}", cors(s.handleGetProject))
	s.mux.HandleFunc("PATCH /api/projects/{id}", cors(s.handleUpdateProject))
	s.mux.HandleFunc("DELETE /api/projects/{id}", cors(s.handleDeleteProject))

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", cors(s.handleListTasks))
	s.mux.HandleFunc("POST /api/tasks", cors(s.handleCreateTask))
	s.mux.HandleFunc("GET /api/tasks/{id}", cors(s.handleGetTask))
	s.mux.HandleFunc("PATCH /api/tasks/{id}", cors(s.handleUpdateTask))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", cors(s.handleDeleteTask))
	s.mux.HandleFunc("GET /api/tasks/{id}/subtasks", cors(s.handleListSubtasks))
	s.mux.HandleFunc("PUT /api/tasks/{id}/parent", cors(s.handleSetParent))

	// Task↔session links
	s.mux.HandleFunc("POST /api/tasks/{id}/sessions/{sessionId}", cors(s.handleLink))
	s.mux.HandleFunc("DELETE /api/tasks/{id}/sessions/{sessionId}", cors(s.handleUnlink))

	// Sessions
	s.mux.HandleFunc("GET /api/sessions", cors(s.handleListSessions))
	s.mux.HandleFunc("POST /api/sessions", cors(s.handleSpawnSession))
	s.mux.HandleFunc("GET /api/sessions/{id}", cors(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", cors(s.handleDeleteSession))
	s.mux.HandleFunc("POST /api/sessions/{id}/report", cors(s.handleReport))
	s.mux.HandleFunc("POST /api/sessions/{id}/stop", cors(s.handleStop))
	s.mux.HandleFunc("POST /api/sessions/{id}/prompt", cors(s.handlePrompt))
	s.mux.HandleFunc("POST /api/sessions/{id}/check-command", cors(s.handleCheckCommand))

	// Team members
	s.mux.HandleFunc("GET /api/members", cors(s.handleListMembers))
	s.mux.HandleFunc("POST /api/members", cors(s.handleCreateMember))
	s.mux.HandleFunc("GET /api/members/{id}", cors(s.handleGetMember))
	s.mux.HandleFunc("PATCH /api/members/{id}", cors(s.handleUpdateMember))
	s.mux.HandleFunc("DELETE /api/members/{id}", cors(s.handleDeleteMember))
	s.mux.HandleFunc("POST /api/members/{id}/archive", cors(s.handleArchiveMember))
	s.mux.HandleFunc("POST /api/members/{id}/reset", cors(s.handleResetMember))
	s.mux.HandleFunc("POST /api/members/{id}/memory", cors(s.handleAppendMemory))
	s.mux.HandleFunc("DELETE /api/members/{id}/memory", cors(s.handleClearMemory))

	// Teams
	s.mux.HandleFunc("GET /api/teams", cors(s.handleListTeams))
	s.mux.HandleFunc("POST /api/teams", cors(s.handleCreateTeam))
	s.mux.HandleFunc("GET /api/teams/{id}", cors(s.handleGetTeam))
	s.mux.HandleFunc("PATCH /api/teams/{id}", cors(s.handleUpdateTeam))
	s.mux.HandleFunc("DELETE /api/teams/{id}", cors(s.handleDeleteTeam))
	s.mux.HandleFunc("POST /api/teams/{id}/archive", cors(s.handleArchiveTeam))
	s.mux.HandleFunc("POST /api/teams/{id}/subteams/{childId}", cors(s.handleAddSubTeam))
	s.mux.HandleFunc("DELETE /api/teams/{id}/subteams/{childId}", cors(s.handleRemoveSubTeam))

	// Event log
	s.mux.HandleFunc("GET /api/events", cors(s.handleListEvents))

	// WebSocket endpoint for real-time updates
	s.mux.Handle("GET /ws", s.wsHandler)
}

// Run starts the HTTP server and blocks until the context is canceled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("api server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.wsHandler.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Handler exposes the routing mux, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]any{
		"status":      "ok",
		"connections": s.wsHandler.ConnectionCount(),
	})
}
