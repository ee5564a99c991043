package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/config"
	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
	"github.com/wricardo/mcp-training/steamrails/game/service"
	"github.com/wricardo/mcp-training/steamrails/game/session"
	"github.com/wricardo/mcp-training/steamrails/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics replaces the server's collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewServer creates a new API server. hub may be nil, in which case
// /ws is unavailable and nothing is broadcast.
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.logger = s.logger.Named("api")

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.metrics.middleware)

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/commands", s.handleCommand).Methods("POST")
	api.HandleFunc("/sessions/{id}/legal-actions", s.handleLegalActions).Methods("GET")
	api.HandleFunc("/sessions/{id}/open-edges", s.handleOpenEdges).Methods("GET")
	api.HandleFunc("/sessions/{id}/delivery-paths", s.handleDeliveryPaths).Methods("GET")
	api.HandleFunc("/sessions/{id}/scores", s.handleScores).Methods("GET")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Maps
	api.HandleFunc("/maps", s.handleListMaps).Methods("GET")
	api.HandleFunc("/maps", s.handleSaveMap).Methods("POST")
	api.HandleFunc("/maps/{name}", s.handleGetMap).Methods("GET")

	api.HandleFunc("/commands", s.handleCommandTypes).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Metrics returns the server collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, config.ErrMapNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionAlreadyExists), errors.Is(err, service.ErrSessionHalted):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, config.ErrInvalidMap),
		errors.Is(err, engine.ErrInvalidSetup),
		errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case engine.ReasonOf(err) != "":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func (s *Server) refreshSessionGauge(ctx context.Context) {
	if sessions, err := s.service.ListSessions(ctx); err == nil {
		s.metrics.SetSessions(len(sessions))
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.CreateSession(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.refreshSessionGauge(r.Context())

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.refreshSessionGauge(r.Context())
	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, websocket.EventSessionGone, nil)
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleCommand executes one command. A rule rejection is still a 200: the
// body carries success=false and the reason.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var cmd service.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Execute(r.Context(), sessionID, cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.metrics.RecordCommand(cmd.Type, result.Success, string(result.Reason))
	if result.Success && s.hub != nil {
		s.hub.BroadcastToSession(sessionID, result.GameState, result.Events)
	}

	s.logger.Debug("command",
		zap.String("session", sessionID),
		zap.String("player", string(cmd.Player)),
		zap.String("command", cmd.Type),
		zap.Bool("success", result.Success),
		zap.String("reason", string(result.Reason)))

	respondJSON(w, http.StatusOK, result)
}

func playerParam(w http.ResponseWriter, r *http.Request) (engine.PlayerID, bool) {
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if player == "" {
		respondError(w, http.StatusBadRequest, "player parameter required")
		return "", false
	}
	return engine.PlayerID(player), true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s parameter must be an integer", name))
		return 0, false
	}
	return v, true
}

func (s *Server) handleLegalActions(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	resp, err := s.service.LegalActions(r.Context(), mux.Vars(r)["id"], player)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenEdges(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	col, ok := intParam(w, r, "col")
	if !ok {
		return
	}
	row, ok := intParam(w, r, "row")
	if !ok {
		return
	}

	at := hex.C(col, row)
	edges, err := s.service.OpenEdges(r.Context(), mux.Vars(r)["id"], player, at)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if edges == nil {
		edges = []hex.Direction{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"player": player,
		"at":     at,
		"edges":  edges,
	})
}

func (s *Server) handleDeliveryPaths(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r)
	if !ok {
		return
	}
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return
	}

	paths, err := s.service.DeliveryPaths(r.Context(), mux.Vars(r)["id"], player, slot)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if paths == nil {
		paths = []engine.DeliveryPath{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"player": player,
		"slot":   slot,
		"paths":  paths,
	})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.service.Scores(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, scores)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleCommandTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"commands": service.CommandTypes,
	})
}

// Map Handlers

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.service.ListMaps(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, maps)
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	desc, err := s.service.LoadMap(r.Context(), name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

func (s *Server) handleSaveMap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MapID string                `json:"map_id"`
		Map   *engine.MapDescriptor `json:"map"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MapID == "" || req.Map == nil {
		respondError(w, http.StatusBadRequest, "map_id and map are required")
		return
	}

	if err := s.service.SaveMap(r.Context(), req.MapID, req.Map); err != nil {
		s.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Map saved successfully",
		"map_id":  req.MapID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket not enabled", http.StatusNotFound)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID, state)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
