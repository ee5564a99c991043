package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvariantViolation = errors.New("engine invariant violated")
	ErrSessionHalted      = errors.New("session halted")
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	maps     MapManager
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	// mu guards session creation and deletion; commands lock the session.
	mu sync.RWMutex
}

// NewGameService creates a new game service instance. A nil logger
// disables logging.
func NewGameService(sessions SessionManager, maps MapManager, logger *zap.Logger) GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gameServiceImpl{
		sessions: sessions,
		maps:     maps,
		logger:   logger.Named("service"),
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateSession deals a new game on the requested map
func (s *gameServiceImpl) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mapID := req.MapID
	var desc *engine.MapDescriptor
	if mapID == "" {
		mapID, desc = s.maps.GetDefault()
	} else {
		var err error
		desc, err = s.maps.LoadMap(mapID)
		if err != nil {
			return nil, s.mapLoadError(mapID, err)
		}
	}

	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	sess, err := s.sessions.Create("", SessionSpec{
		MapID:   mapID,
		Map:     desc,
		Players: req.Players,
		Seed:    seed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session created",
		zap.String("session", sess.ID),
		zap.String("map", mapID),
		zap.Int("players", len(req.Players)),
		zap.Uint64("seed", seed))

	return s.info(sess, true), nil
}

func (s *gameServiceImpl) mapLoadError(mapID string, err error) error {
	maps, listErr := s.maps.ListMaps()
	if listErr == nil && len(maps) > 0 {
		ids := make([]string, 0, len(maps))
		for _, m := range maps {
			ids = append(ids, m.MapID)
		}
		return fmt.Errorf("map '%s' not available (available maps: %v): %w", mapID, ids, err)
	}
	return fmt.Errorf("failed to load map %s: %w", mapID, err)
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.info(sess, true), nil
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		result = append(result, s.info(sess, false))
		sess.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session", sessionID))
	return nil
}

// Execute applies one command to a session. Rule rejections are reported in
// the result with Success false; the returned error is reserved for
// missing sessions, cancelled contexts and broken invariants.
func (s *gameServiceImpl) Execute(ctx context.Context, sessionID string, cmd Command) (*CommandResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.halted != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionHalted, sess.halted)
	}

	eng := sess.Engine
	before := len(eng.History())
	phase := eng.Phase()

	result := &CommandResult{Command: cmd.Type}
	if err := s.validate.Struct(cmd); err != nil {
		result.Reason = engine.ReasonInvalidCommand
		result.Message = "command type is required"
		result.GameState = eng.State()
		result.Events = []GameEvent{}
		return result, nil
	}

	cmdErr, fatal := guard(func() error { return dispatch(eng, cmd, result) })
	if fatal != nil {
		s.logger.Error("invariant violated",
			zap.String("session", sessionID),
			zap.String("command", cmd.Type),
			zap.Error(fatal))
		return nil, halt(sess, fatal)
	}

	if cmdErr != nil {
		result.Reason = engine.ReasonOf(cmdErr)
		if result.Reason == "" {
			result.Reason = engine.ReasonInvalidCommand
		}
		result.Message = cmdErr.Error()
		s.logger.Debug("command rejected",
			zap.String("session", sessionID),
			zap.String("player", string(cmd.Player)),
			zap.String("command", cmd.Type),
			zap.String("reason", string(result.Reason)))
	} else {
		result.Success = true
		result.Message = fmt.Sprintf("%s applied", cmd.Type)
		if _, fatal := guard(func() error { return settle(eng) }); fatal != nil {
			s.logger.Error("invariant violated while advancing",
				zap.String("session", sessionID),
				zap.Error(fatal))
			return nil, halt(sess, fatal)
		}
	}

	result.Events = s.events(eng, before, phase)
	result.GameState = eng.State()

	if result.Success {
		if err := s.sessions.Save(sessionID); err != nil {
			s.logger.Warn("failed to persist session",
				zap.String("session", sessionID),
				zap.Error(err))
		}
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return result, nil
}

// guard runs fn and converts an engine invariant panic into fatal.
func guard(fn func() error) (err error, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*engine.InvariantError)
			if !ok {
				panic(r)
			}
			fatal = ie
		}
	}()
	return fn(), nil
}

// halt stops a session whose engine broke an invariant. The engine may be
// partly mutated, so it takes no further commands; the last saved copy is
// left as it was. The caller holds sess.mu.
func halt(sess *Session, fatal error) error {
	sess.halted = fmt.Errorf("%w: %v", ErrInvariantViolation, fatal)
	return sess.halted
}

// settle runs computed phases until a player has to act or the game ends.
func settle(eng *engine.GameEngine) error {
	for !eng.IsGameOver() && eng.Phase().Computed() {
		if err := eng.AdvancePhase(); err != nil {
			return err
		}
	}
	return nil
}

func (s *gameServiceImpl) events(eng *engine.GameEngine, from int, phase engine.Phase) []GameEvent {
	history := eng.History()
	events := make([]GameEvent, 0, len(history)-from+1)
	for _, h := range history[from:] {
		typ := "command"
		switch {
		case h.Command == "game_over":
			typ = "game_over"
		case h.Command == "eliminated":
			typ = "elimination"
		case h.Player == engine.Unowned:
			typ = "phase"
		}
		msg := h.Command
		if h.Detail != "" {
			msg = h.Command + ": " + h.Detail
		}
		events = append(events, GameEvent{
			Type:      typ,
			Message:   msg,
			Player:    h.Player,
			Phase:     h.Phase,
			Turn:      h.Turn,
			Timestamp: time.Unix(h.Timestamp, 0),
		})
	}
	if cur := eng.Phase(); cur != phase {
		events = append(events, GameEvent{
			Type:      "phase",
			Message:   fmt.Sprintf("phase changed from %s to %s", phase, cur),
			Phase:     cur,
			Turn:      eng.State().Turn,
			Timestamp: s.now(),
		})
	}
	return events
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Engine.State(), nil
}

// LegalActions lists the commands a player may issue
func (s *gameServiceImpl) LegalActions(ctx context.Context, sessionID string, player engine.PlayerID) (*LegalActionsResponse, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	eng := sess.Engine
	resp := &LegalActionsResponse{
		Player:        player,
		Phase:         eng.Phase(),
		CurrentPlayer: eng.CurrentPlayer(),
		Actions:       eng.LegalActions(player),
	}
	if resp.Actions == nil {
		resp.Actions = []string{}
	}
	if p := eng.Pending(); p != nil {
		resp.Pending = string(p.Kind())
	}
	return resp, nil
}

// OpenEdges lists the edges of a hex the player may extend track from
func (s *gameServiceImpl) OpenEdges(ctx context.Context, sessionID string, player engine.PlayerID, at hex.Coord) ([]hex.Direction, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	edges := sess.Engine.OpenEdges(player, at)
	if edges == nil {
		edges = []hex.Direction{}
	}
	return edges, nil
}

// DeliveryPaths lists the legal routes for the cube in slot
func (s *gameServiceImpl) DeliveryPaths(ctx context.Context, sessionID string, player engine.PlayerID, slot int) ([]engine.DeliveryPath, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Engine.DeliveryPaths(player, slot)
}

// Scores returns final scores once the game is over, and running scores
// before that
func (s *gameServiceImpl) Scores(ctx context.Context, sessionID string) (*ScoresResponse, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	eng := sess.Engine
	state := eng.State()
	resp := &ScoresResponse{GameOver: eng.IsGameOver(), Winner: state.Winner}
	if resp.GameOver && state.Scores != nil {
		resp.Scores = state.Scores
	} else {
		resp.Scores = eng.Scores()
	}
	return resp, nil
}

// GetHistory returns paginated command history
func (s *gameServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	history := sess.Engine.History()
	sess.mu.Unlock()

	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	entries := []engine.HistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			for i := total - 1 - start; i >= total-end; i-- {
				entries = append(entries, history[i])
			}
		} else {
			entries = append(entries, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Entries:      entries,
		TotalEntries: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
	}, nil
}

// ListMaps returns available map descriptors
func (s *gameServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.maps.ListMaps()
}

// LoadMap loads a specific map descriptor
func (s *gameServiceImpl) LoadMap(ctx context.Context, mapID string) (*engine.MapDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.maps.LoadMap(mapID)
}

// SaveMap validates and stores a map descriptor
func (s *gameServiceImpl) SaveMap(ctx context.Context, mapID string, desc *engine.MapDescriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.maps.SaveMap(mapID, desc); err != nil {
		return err
	}
	s.logger.Info("map saved", zap.String("map", mapID))
	return nil
}

func (s *gameServiceImpl) session(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return sess, nil
}

// info summarizes a session; the caller holds sess.mu.
func (s *gameServiceImpl) info(sess *Session, withState bool) *SessionInfo {
	eng := sess.Engine
	info := &SessionInfo{
		ID:             sess.ID,
		MapID:          sess.MapID,
		Seed:           sess.Seed,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Phase:          eng.Phase(),
		Turn:           eng.State().Turn,
		CurrentPlayer:  eng.CurrentPlayer(),
		GameOver:       eng.IsGameOver(),
	}
	if withState {
		info.GameState = eng.State()
	}
	return info
}
