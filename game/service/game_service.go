package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Commands
	Execute(ctx context.Context, sessionID string, cmd Command) (*CommandResult, error)

	// Queries
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	LegalActions(ctx context.Context, sessionID string, player engine.PlayerID) (*LegalActionsResponse, error)
	OpenEdges(ctx context.Context, sessionID string, player engine.PlayerID, at hex.Coord) ([]hex.Direction, error)
	DeliveryPaths(ctx context.Context, sessionID string, player engine.PlayerID, slot int) ([]engine.DeliveryPath, error)
	Scores(ctx context.Context, sessionID string) (*ScoresResponse, error)
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Maps
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	LoadMap(ctx context.Context, mapID string) (*engine.MapDescriptor, error)
	SaveMap(ctx context.Context, mapID string, desc *engine.MapDescriptor) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, spec SessionSpec) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// MapManager loads and stores map descriptors
type MapManager interface {
	LoadMap(id string) (*engine.MapDescriptor, error)
	ListMaps() ([]*MapInfo, error)
	GetDefault() (string, *engine.MapDescriptor)
	SaveMap(id string, desc *engine.MapDescriptor) error
}

// SessionSpec is everything needed to deal a new game.
type SessionSpec struct {
	MapID   string
	Map     *engine.MapDescriptor
	Players []engine.PlayerSetup
	Seed    uint64
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Map            *engine.MapDescriptor
	MapID          string
	Seed           uint64
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// mu serializes commands against the engine, which is not safe for
	// concurrent use.
	mu sync.Mutex

	// halted holds the invariant failure that stopped the session.
	halted error
}

// Halted returns the invariant failure that stopped the session, or nil.
// A halted session refuses commands and is never persisted again.
func (s *Session) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}
