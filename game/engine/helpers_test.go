package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// createTestMap returns a 7x5 board:
//
//	Alpha (0,0) red, Beta (5,0) blue, Gamma (2,1) yellow,
//	Delta (0,2) purple, Epsilon (6,3) red,
//	towns at (4,2) and (5,4), river at (3,3), water at (2,4).
func createTestMap() *MapDescriptor {
	d := &MapDescriptor{
		Name:        "test",
		Description: "Engine test map",
		Layout: []string{
			".......",
			".......",
			".......",
			"...~...",
			"..w....",
		},
		Cities: []CitySpec{
			{Col: 0, Row: 0, Name: "Alpha", Color: Red},
			{Col: 5, Row: 0, Name: "Beta", Color: Blue},
			{Col: 2, Row: 1, Name: "Gamma", Color: Yellow},
			{Col: 0, Row: 2, Name: "Delta", Color: Purple},
			{Col: 6, Row: 3, Name: "Epsilon", Color: Red},
		},
		Towns: []TownSpec{
			{Col: 4, Row: 2, Name: "Tee"},
			{Col: 5, Row: 4, Name: "Vee"},
		},
		NewCities: []NewCityTileSpec{
			{ID: "A", Color: Black},
			{ID: "B", Color: Blue},
		},
		StartingBag: StandardBag(),
	}
	cities := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}
	for i := 0; i < 16; i++ {
		shade := Light
		if i%2 == 1 {
			shade = Dark
		}
		d.Columns = append(d.Columns, ColumnSpec{
			ID:           fmt.Sprintf("C%d", i+1),
			RowCount:     3,
			City:         cities[i%len(cities)],
			GrowthNumber: i%6 + 1,
			Shade:        shade,
		})
	}
	d.Columns = append(d.Columns,
		ColumnSpec{ID: "A", RowCount: 2, NewCityLetter: "A", GrowthNumber: 1, Shade: Light},
		ColumnSpec{ID: "B", RowCount: 2, NewCityLetter: "B", GrowthNumber: 2, Shade: Dark},
	)
	return d
}

func playerSetups(n int) []PlayerSetup {
	out := make([]PlayerSetup, n)
	for i := range out {
		id := PlayerID(string(rune('a' + i)))
		out[i] = PlayerSetup{ID: id, Name: "Player " + string(id)}
	}
	return out
}

func newTestEngine(t *testing.T, players int, opts ...Option) *GameEngine {
	t.Helper()
	return newTestEngineWithMap(t, createTestMap(), players, opts...)
}

func newTestEngineWithMap(t *testing.T, d *MapDescriptor, players int, opts ...Option) *GameEngine {
	t.Helper()
	opts = append([]Option{WithSeed(7)}, opts...)
	e, err := NewEngine(d, playerSetups(players), opts...)
	require.NoError(t, err)
	return e
}

// startBuildPhase jumps straight to the build phase with the given action
// assignments.
func startBuildPhase(e *GameEngine, actions map[PlayerID]Action) {
	for id, a := range actions {
		e.state.Players[id].Action = a
	}
	e.enterPhase(PhaseBuildTrack)
}

func placeTrack(e *GameEngine, at hex.Coord, owner PlayerID, turn int, a, b hex.Direction) {
	e.state.Board.Track.Put(&TrackTile{
		Coord:    at,
		Form:     FormSimple,
		Segments: []TrackSegment{{Owner: owner, Edges: [2]hex.Direction{a, b}, BuiltTurn: turn}},
	})
}

// freeSlots empties n slots of the display, moving the cubes to the
// delivered pile so cube totals stay constant.
func freeSlots(e *GameEngine, slots ...int) {
	for _, s := range slots {
		c, ok := e.state.Board.Display.TakeCube(s)
		if ok {
			e.state.Delivered = append(e.state.Delivered, c)
		}
	}
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, ReasonOf(err), "unexpected error: %v", err)
}

func snapshotJSON(t *testing.T, e *GameEngine) string {
	t.Helper()
	data, err := e.State().MarshalJSON()
	require.NoError(t, err)
	return string(data)
}
