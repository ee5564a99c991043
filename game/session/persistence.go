package session

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session. The map is stored
// by ID and reloaded through the map manager.
type PersistedSessionData struct {
	ID             string          `json:"id"`
	MapID          string          `json:"map_id"`
	Seed           uint64          `json:"seed"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	GameState      json.RawMessage `json:"game_state"`
}

func snapshot(session *service.Session) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	state, err := json.Marshal(session.Engine.State())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game state: %w", err)
	}
	return &PersistedSessionData{
		ID:             session.ID,
		MapID:          session.MapID,
		Seed:           session.Seed,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      state,
	}, nil
}

// restore rebuilds a live session around stored data.
func restore(data *PersistedSessionData, maps service.MapManager, logger *zap.Logger) (*service.Session, error) {
	desc, err := maps.LoadMap(data.MapID)
	if err != nil {
		return nil, fmt.Errorf("failed to load map '%s': %w", data.MapID, err)
	}

	var state engine.GameState
	if err := json.Unmarshal(data.GameState, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game state: %w", err)
	}

	eng, err := engine.Restore(desc, &state, engine.WithLogger(logger.With(zap.String("session", data.ID))))
	if err != nil {
		return nil, fmt.Errorf("failed to restore game state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		Engine:         eng,
		Map:            desc,
		MapID:          data.MapID,
		Seed:           data.Seed,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}
