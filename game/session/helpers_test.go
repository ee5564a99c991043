package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/steamrails/game/config"
	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/service"
)

func newTestMaps(t *testing.T) *config.Manager {
	t.Helper()
	maps, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	return maps
}

func testPlayers() []engine.PlayerSetup {
	return []engine.PlayerSetup{{ID: "ann"}, {ID: "bob"}, {ID: "cy"}}
}

func testSpec(t *testing.T, maps service.MapManager) service.SessionSpec {
	t.Helper()
	desc, err := maps.LoadMap(config.DefaultMapID)
	require.NoError(t, err)
	return service.SessionSpec{
		MapID:   config.DefaultMapID,
		Map:     desc,
		Players: testPlayers(),
		Seed:    42,
	}
}
