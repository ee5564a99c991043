package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/service"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrInvalidMap  = engine.ErrInvalidMap
)

// DefaultMapID names the built-in map used when the directory has no
// heartland.json of its own.
const DefaultMapID = "heartland"

// Manager handles map descriptor loading and caching
type Manager struct {
	mapDir     string
	defaultID  string
	defaultMap *engine.MapDescriptor
	maps       map[string]*engine.MapDescriptor
	mu         sync.RWMutex
}

// NewManager creates a map manager over the JSON files in mapDir
func NewManager(mapDir string) (*Manager, error) {
	if _, err := os.Stat(mapDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("map directory does not exist: %s", mapDir)
	}

	m := &Manager{
		mapDir: mapDir,
		maps:   make(map[string]*engine.MapDescriptor),
	}
	if err := m.loadDefaultMap(); err != nil {
		return nil, fmt.Errorf("failed to load default map: %w", err)
	}
	return m, nil
}

// LoadMap loads a map descriptor by ID (file name without .json)
func (m *Manager) LoadMap(id string) (*engine.MapDescriptor, error) {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrMapNotFound, id)
	}

	m.mu.RLock()
	if desc, exists := m.maps[id]; exists {
		m.mu.RUnlock()
		return desc, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if desc, exists := m.maps[id]; exists {
		return desc, nil
	}

	desc, err := engine.LoadMapFile(m.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if id == DefaultMapID {
				desc = engine.DefaultMap()
				m.maps[id] = desc
				return desc, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrMapNotFound, id)
		}
		return nil, err
	}

	m.maps[id] = desc
	return desc, nil
}

// ListMaps returns information about every valid map in the directory,
// plus the built-in map when no file shadows it
func (m *Manager) ListMaps() ([]*service.MapInfo, error) {
	entries, err := os.ReadDir(m.mapDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read map directory: %w", err)
	}

	var maps []*service.MapInfo
	seenDefault := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		desc, err := m.LoadMap(id)
		if err != nil {
			// Skip invalid maps
			continue
		}
		if id == DefaultMapID {
			seenDefault = true
		}
		maps = append(maps, service.NewMapInfo(id, entry.Name(), desc))
	}
	if !seenDefault {
		maps = append(maps, service.NewMapInfo(DefaultMapID, "", engine.DefaultMap()))
	}

	sort.Slice(maps, func(i, j int) bool { return maps[i].MapID < maps[j].MapID })
	return maps, nil
}

// GetDefault returns the default map and its ID
func (m *Manager) GetDefault() (string, *engine.MapDescriptor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID, m.defaultMap
}

// SetDefault sets the default map by ID
func (m *Manager) SetDefault(id string) error {
	desc, err := m.LoadMap(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = strings.TrimSuffix(id, ".json")
	m.defaultMap = desc
	return nil
}

// RefreshCache drops cached descriptors so they are re-read from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.maps = make(map[string]*engine.MapDescriptor)
	m.mu.Unlock()

	return m.loadDefaultMap()
}

func (m *Manager) loadDefaultMap() error {
	desc, err := m.LoadMap(DefaultMapID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.defaultID = DefaultMapID
	m.defaultMap = desc
	m.mu.Unlock()
	return nil
}

// SaveMap validates a descriptor and writes it to the directory
func (m *Manager) SaveMap(id string, desc *engine.MapDescriptor) error {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: bad map id %q", ErrInvalidMap, id)
	}
	if desc == nil {
		return fmt.Errorf("%w: descriptor is required", ErrInvalidMap)
	}
	if err := engine.ValidateMap(desc); err != nil {
		return err
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal map: %w", err)
	}
	if err := os.WriteFile(m.path(id), data, 0644); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	m.mu.Lock()
	m.maps[id] = desc
	m.mu.Unlock()
	return nil
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.mapDir, id+".json")
}
