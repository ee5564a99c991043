package service

import (
	"time"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// CreateSessionRequest describes a new game
type CreateSessionRequest struct {
	MapID   string               `json:"map_id"`
	Players []engine.PlayerSetup `json:"players" validate:"required,min=1,dive"`
	// Seed fixes the random source. Zero picks a random seed.
	Seed uint64 `json:"seed,omitempty"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	MapID          string            `json:"map_id"`
	Seed           uint64            `json:"seed"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Phase          engine.Phase      `json:"phase"`
	Turn           int               `json:"turn"`
	CurrentPlayer  engine.PlayerID   `json:"current_player,omitempty"`
	GameOver       bool              `json:"game_over"`
	GameState      *engine.GameState `json:"game_state,omitempty"`
}

// Command is a single engine command addressed by name. Only the fields the
// command needs are read.
type Command struct {
	Type   string          `json:"type" validate:"required"`
	Player engine.PlayerID `json:"player"`

	// Amount is the share count for issue_shares and the bid for bid.
	Amount int              `json:"amount,omitempty"`
	Action engine.Action    `json:"action,omitempty"`
	At     *hex.Coord       `json:"at,omitempty"`
	Edges  []hex.Direction  `json:"edges,omitempty"`
	Form   engine.TrackForm `json:"form,omitempty"`
	Edge   *hex.Direction   `json:"edge,omitempty"`
	TileID string           `json:"tile_id,omitempty"`
	Slot   *int             `json:"slot,omitempty"`
	Path   []hex.Coord      `json:"path,omitempty"`
}

// CommandResult contains the result of a command
type CommandResult struct {
	Success   bool              `json:"success"`
	Command   string            `json:"command"`
	Reason    engine.Reason     `json:"reason,omitempty"`
	Message   string            `json:"message"`
	GameState *engine.GameState `json:"game_state"`
	Events    []GameEvent       `json:"events"`

	// Command specific payloads
	Candidates []hex.Direction      `json:"candidates,omitempty"`
	Cubes      []engine.Color       `json:"cubes,omitempty"`
	Delivery   *engine.DeliveryPath `json:"delivery,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string          `json:"type"` // "command", "phase", "turn", "game_over"
	Message   string          `json:"message"`
	Player    engine.PlayerID `json:"player,omitempty"`
	Phase     engine.Phase    `json:"phase"`
	Turn      int             `json:"turn"`
	Timestamp time.Time       `json:"timestamp"`
}

// LegalActionsResponse lists what a player may do right now
type LegalActionsResponse struct {
	Player        engine.PlayerID `json:"player"`
	Phase         engine.Phase    `json:"phase"`
	CurrentPlayer engine.PlayerID `json:"current_player,omitempty"`
	Actions       []string        `json:"actions"`
	Pending       string          `json:"pending,omitempty"`
}

// ScoresResponse holds the current or final scores
type ScoresResponse struct {
	Scores   map[engine.PlayerID]int `json:"scores"`
	Winner   engine.PlayerID         `json:"winner,omitempty"`
	GameOver bool                    `json:"game_over"`
}

// HistoryOptions configures history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated command history
type HistoryResponse struct {
	Entries      []engine.HistoryEntry `json:"entries"`
	TotalEntries int                   `json:"total_entries"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
	TotalPages   int                   `json:"total_pages"`
	HasNext      bool                  `json:"has_next"`
	HasPrevious  bool                  `json:"has_previous"`
}

// MapInfo provides information about a map descriptor
type MapInfo struct {
	Filename    string `json:"filename"`
	MapID       string `json:"map_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Hexes       int    `json:"hexes"`
	Cities      int    `json:"cities"`
	Towns       int    `json:"towns"`
	Cubes       int    `json:"cubes"`
}

// NewMapInfo summarizes a descriptor.
func NewMapInfo(id, filename string, d *engine.MapDescriptor) *MapInfo {
	info := &MapInfo{
		Filename:    filename,
		MapID:       id,
		Name:        d.Name,
		Description: d.Description,
		Cities:      len(d.Cities),
		Towns:       len(d.Towns),
		Cubes:       len(d.StartingBag),
	}
	if terrain, err := d.Terrain(); err == nil {
		info.Hexes = len(terrain)
	}
	return info
}
