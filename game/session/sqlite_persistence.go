package session

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wricardo/mcp-training/steamrails/game/service"
)

// SessionModel represents the game_sessions table
type SessionModel struct {
	ID             string    `gorm:"column:id;primaryKey;size:64"`
	MapID          string    `gorm:"column:map_id;size:128;not null"`
	Seed           int64     `gorm:"column:seed;not null"` // bit pattern of the uint64 seed
	Phase          string    `gorm:"column:phase;size:32;index"`
	Turn           int       `gorm:"column:turn"`
	GameOver       bool      `gorm:"column:game_over;index"`
	State          []byte    `gorm:"column:state;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	LastAccessedAt time.Time `gorm:"column:last_accessed_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (SessionModel) TableName() string {
	return "game_sessions"
}

// SQLitePersistence implements SessionPersistence on a SQLite database
// through GORM
type SQLitePersistence struct {
	db     *gorm.DB
	maps   service.MapManager
	logger *zap.Logger
}

// NewSQLitePersistence opens (or creates) the database at path and migrates
// the sessions table. Use ":memory:" for a throwaway database.
func NewSQLitePersistence(path string, maps service.MapManager, logger *zap.Logger) (*SQLitePersistence, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&SessionModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sessions table: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLitePersistence{db: db, maps: maps, logger: logger}, nil
}

// Save upserts a session row
func (sp *SQLitePersistence) Save(session *service.Session) error {
	data, err := snapshot(session)
	if err != nil {
		return err
	}

	model := SessionModel{
		ID:             data.ID,
		MapID:          data.MapID,
		Seed:           int64(data.Seed),
		Phase:          string(session.Engine.Phase()),
		Turn:           session.Engine.State().Turn,
		GameOver:       session.Engine.IsGameOver(),
		State:          data.GameState,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}

	err = sp.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phase", "turn", "game_over", "state", "last_accessed_at", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session row and restores its engine
func (sp *SQLitePersistence) Load(id string) (*service.Session, error) {
	var model SessionModel
	err := sp.db.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return restore(&PersistedSessionData{
		ID:             model.ID,
		MapID:          model.MapID,
		Seed:           uint64(model.Seed),
		CreatedAt:      model.CreatedAt,
		LastAccessedAt: model.LastAccessedAt,
		GameState:      model.State,
	}, sp.maps, sp.logger)
}

// Delete removes a session row
func (sp *SQLitePersistence) Delete(id string) error {
	res := sp.db.Where("id = ?", id).Delete(&SessionModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs, oldest first
func (sp *SQLitePersistence) ListAll() ([]string, error) {
	var ids []string
	if err := sp.db.Model(&SessionModel{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session row exists
func (sp *SQLitePersistence) Exists(id string) bool {
	var count int64
	if err := sp.db.Model(&SessionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		sp.logger.Warn("session lookup failed", zap.String("session", id), zap.Error(err))
		return false
	}
	return count > 0
}

// Close releases the database handle
func (sp *SQLitePersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
