package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

func TestBuildTrack_FirstTrackThenConnection(t *testing.T) {
	e := newTestEngine(t, 3)
	startBuildPhase(e, nil)

	require.NoError(t, e.BuildTrack("a", hex.C(1, 0), []hex.Direction{hex.West, hex.East}))

	tile, ok := e.state.Board.Track.Get(hex.C(1, 0))
	require.True(t, ok)
	assert.Equal(t, FormSimple, tile.Form)
	assert.Equal(t, PlayerID("a"), tile.Owner())
	assert.Equal(t, []hex.Direction{hex.East, hex.West}, tile.Edges())
	assert.Equal(t, 8, e.state.Players["a"].Cash)
	assert.Equal(t, 1, e.state.Players["a"].BuildsUsed)

	before := snapshotJSON(t, e)
	err := e.BuildTrack("a", hex.C(3, 0), []hex.Direction{hex.East, hex.West})
	requireReason(t, err, ReasonInvalidPlacement)
	assert.Equal(t, before, snapshotJSON(t, e))
}

func TestBuildTrack_FirstTrackMustTouchCity(t *testing.T) {
	e := newTestEngine(t, 3)
	startBuildPhase(e, nil)

	err := e.BuildTrack("a", hex.C(3, 2), []hex.Direction{hex.East, hex.West})
	requireReason(t, err, ReasonInvalidPlacement)
	assert.Equal(t, 0, e.state.Board.Track.Len())
}

func TestBuildTrack_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		at    hex.Coord
		edges []hex.Direction
		setup func(e *GameEngine)
		want  Reason
	}{
		{name: "city hex", at: hex.C(0, 0), edges: []hex.Direction{hex.East, hex.SouthEast}, want: ReasonInvalidPlacement},
		{name: "water hex", at: hex.C(2, 4), edges: []hex.Direction{hex.East, hex.West}, want: ReasonInvalidPlacement},
		{name: "off map", at: hex.C(9, 9), edges: []hex.Direction{hex.East, hex.West}, want: ReasonInvalidPlacement},
		{name: "one edge", at: hex.C(1, 0), edges: []hex.Direction{hex.West}, want: ReasonInvalidPlacement},
		{name: "three edges", at: hex.C(1, 0), edges: []hex.Direction{hex.West, hex.East, hex.SouthEast}, want: ReasonInvalidPlacement},
		{name: "same edge twice", at: hex.C(1, 0), edges: []hex.Direction{hex.West, hex.West}, want: ReasonInvalidPlacement},
		{name: "edge off the board", at: hex.C(1, 0), edges: []hex.Direction{hex.West, hex.NorthEast}, want: ReasonInvalidPlacement},
		{name: "edge into water", at: hex.C(1, 3), edges: []hex.Direction{hex.SouthEast, hex.NorthWest}, want: ReasonInvalidPlacement},
		{
			name:  "occupied hex",
			at:    hex.C(1, 0),
			edges: []hex.Direction{hex.West, hex.SouthEast},
			setup: func(e *GameEngine) { placeTrack(e, hex.C(1, 0), "b", 1, hex.West, hex.East) },
			want:  ReasonInvalidPlacement,
		},
		{
			name:  "not enough cash",
			at:    hex.C(1, 0),
			edges: []hex.Direction{hex.West, hex.East},
			setup: func(e *GameEngine) { e.state.Players["a"].Cash = 1 },
			want:  ReasonInsufficientFunds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, 3)
			startBuildPhase(e, nil)
			if tt.setup != nil {
				tt.setup(e)
			}
			before := snapshotJSON(t, e)
			requireReason(t, e.BuildTrack("a", tt.at, tt.edges), tt.want)
			assert.Equal(t, before, snapshotJSON(t, e))
		})
	}
}

func TestBuildTrack_Budget(t *testing.T) {
	chain := []hex.Coord{hex.C(1, 0), hex.C(2, 0), hex.C(3, 0), hex.C(4, 0)}
	ew := []hex.Direction{hex.West, hex.East}

	t.Run("three builds", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, nil)
		for _, c := range chain[:3] {
			require.NoError(t, e.BuildTrack("a", c, ew))
		}
		requireReason(t, e.BuildTrack("a", chain[3], ew), ReasonResourceExhausted)
	})

	t.Run("engineer builds four", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionEngineer})
		for _, c := range chain {
			require.NoError(t, e.BuildTrack("a", c, ew))
		}
		assert.Equal(t, 2, e.state.Players["a"].Cash)
		requireReason(t, e.BuildTrack("a", hex.C(1, 2), ew), ReasonResourceExhausted)
	})
}

func TestBuildTrack_NotYourTurn(t *testing.T) {
	e := newTestEngine(t, 3)
	startBuildPhase(e, nil)
	requireReason(t, e.BuildTrack("b", hex.C(1, 0), []hex.Direction{hex.West, hex.East}), ReasonNotEntitled)
	requireReason(t, e.BuildTrack("zed", hex.C(1, 0), []hex.Direction{hex.West, hex.East}), ReasonNotEntitled)
}

func TestBuildTrack_WrongPhase(t *testing.T) {
	e := newTestEngine(t, 3)
	require.Equal(t, PhaseIssueShares, e.Phase())
	requireReason(t, e.BuildTrack("a", hex.C(1, 0), []hex.Direction{hex.West, hex.East}), ReasonIllegalPhase)
}

func TestBuildComplexTrack_CrossingKeepsExistingSegment(t *testing.T) {
	e := newTestEngine(t, 3)
	placeTrack(e, hex.C(1, 2), "a", 1, hex.West, hex.East)
	placeTrack(e, hex.C(2, 2), "a", 1, hex.East, hex.West)
	startBuildPhase(e, map[PlayerID]Action{"b": ActionFirstBuild})
	require.Equal(t, PlayerID("b"), e.CurrentPlayer())

	err := e.BuildComplexTrack("b", hex.C(2, 2), []hex.Direction{hex.NorthEast, hex.SouthWest}, FormCrossing)
	require.NoError(t, err)

	tile, _ := e.state.Board.Track.Get(hex.C(2, 2))
	assert.Equal(t, FormCrossing, tile.Form)
	require.Len(t, tile.Segments, 2)
	assert.Equal(t, TrackSegment{Owner: "a", Edges: [2]hex.Direction{hex.East, hex.West}, BuiltTurn: 1}, tile.Segments[0])
	assert.Equal(t, PlayerID("b"), tile.Segments[1].Owner)
	assert.Equal(t, [2]hex.Direction{hex.NorthEast, hex.SouthWest}, tile.Segments[1].Edges)
	assert.Equal(t, PlayerID("a"), tile.Owner())
	assert.Equal(t, 7, e.state.Players["b"].Cash)

	requireReason(t,
		e.BuildComplexTrack("b", hex.C(2, 2), []hex.Direction{hex.NorthWest, hex.SouthEast}, FormCrossing),
		ReasonInvalidPlacement)
}

func TestBuildComplexTrack_Geometry(t *testing.T) {
	setup := func(t *testing.T) *GameEngine {
		e := newTestEngine(t, 3)
		placeTrack(e, hex.C(1, 1), "a", 1, hex.West, hex.East)
		placeTrack(e, hex.C(1, 0), "b", 1, hex.West, hex.SouthEast)
		startBuildPhase(e, map[PlayerID]Action{"b": ActionFirstBuild})
		return e
	}

	t.Run("coexist beside", func(t *testing.T) {
		e := setup(t)
		require.NoError(t, e.BuildComplexTrack("b", hex.C(1, 1), []hex.Direction{hex.NorthEast, hex.NorthWest}, FormCoexist))
		tile, _ := e.state.Board.Track.Get(hex.C(1, 1))
		assert.Equal(t, FormCoexist, tile.Form)
		assert.Equal(t, 8, e.state.Players["b"].Cash)
	})

	rejections := []struct {
		name  string
		edges []hex.Direction
		mode  TrackForm
		want  Reason
	}{
		{"crossing that does not cross", []hex.Direction{hex.NorthEast, hex.NorthWest}, FormCrossing, ReasonInvalidPlacement},
		{"coexist that crosses", []hex.Direction{hex.NorthWest, hex.SouthWest}, FormCoexist, ReasonInvalidPlacement},
		{"shared edge", []hex.Direction{hex.East, hex.NorthWest}, FormCoexist, ReasonInvalidPlacement},
		{"unknown mode", []hex.Direction{hex.NorthEast, hex.NorthWest}, FormSimple, ReasonInvalidCommand},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			before := snapshotJSON(t, e)
			requireReason(t, e.BuildComplexTrack("b", hex.C(1, 1), tt.edges, tt.mode), tt.want)
			assert.Equal(t, before, snapshotJSON(t, e))
		})
	}

	t.Run("no existing tile", func(t *testing.T) {
		e := setup(t)
		requireReason(t,
			e.BuildComplexTrack("b", hex.C(3, 2), []hex.Direction{hex.East, hex.West}, FormCrossing),
			ReasonInvalidPlacement)
	})
}

func TestRedirectTrack_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	d := createTestMap()
	d.Ruleset = &Ruleset{RedirectCost: 15}
	e := newTestEngineWithMap(t, d, 3)
	placeTrack(e, hex.C(1, 0), "a", 1, hex.West, hex.East)
	startBuildPhase(e, nil)
	require.Equal(t, 10, e.state.Players["a"].Cash)

	before := snapshotJSON(t, e)
	err := e.RedirectTrack("a", hex.C(1, 0), hex.SouthEast)
	requireReason(t, err, ReasonInsufficientFunds)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, before, snapshotJSON(t, e))
}

func TestRedirectTrack_TwoStep(t *testing.T) {
	e := newTestEngine(t, 3)
	placeTrack(e, hex.C(1, 0), "a", 0, hex.West, hex.East)
	startBuildPhase(e, nil)

	candidates, err := e.StartRedirect("a", hex.C(1, 0))
	require.NoError(t, err)
	assert.Equal(t, []hex.Direction{hex.SouthWest, hex.SouthEast}, candidates)
	require.IsType(t, &PendingRedirect{}, e.state.Pending)
	assert.ElementsMatch(t, []string{CmdCancelPending, CmdRedirectTrack}, e.LegalActions("a"))
	assert.Empty(t, e.LegalActions("b"))

	requireReason(t, e.BuildTrack("a", hex.C(1, 2), []hex.Direction{hex.West, hex.East}), ReasonIllegalPhase)
	requireReason(t, e.RedirectTrack("a", hex.C(2, 0), hex.SouthEast), ReasonInvalidCommand)
	requireReason(t, e.RedirectTrack("a", hex.C(1, 0), hex.NorthEast), ReasonInvalidPlacement)

	require.NoError(t, e.RedirectTrack("a", hex.C(1, 0), hex.SouthEast))
	tile, _ := e.state.Board.Track.Get(hex.C(1, 0))
	assert.Equal(t, [2]hex.Direction{hex.West, hex.SouthEast}, tile.Segments[0].Edges)
	assert.Equal(t, 1, tile.Segments[0].BuiltTurn)
	assert.Nil(t, e.state.Pending)
	assert.Equal(t, 8, e.state.Players["a"].Cash)
	assert.Equal(t, 1, e.state.Players["a"].BuildsUsed)
}

func TestRedirectTrack_Rejections(t *testing.T) {
	t.Run("no tile", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, nil)
		requireReason(t, e.RedirectTrack("a", hex.C(1, 0), hex.SouthEast), ReasonInvalidPlacement)
	})
	t.Run("finished track", func(t *testing.T) {
		e := newTestEngine(t, 3)
		placeTrack(e, hex.C(1, 0), "a", 1, hex.West, hex.East)
		placeTrack(e, hex.C(2, 0), "a", 1, hex.West, hex.East)
		startBuildPhase(e, nil)
		requireReason(t, e.RedirectTrack("a", hex.C(1, 0), hex.SouthEast), ReasonInvalidPlacement)
	})
	t.Run("someone else's track", func(t *testing.T) {
		e := newTestEngine(t, 3)
		placeTrack(e, hex.C(1, 0), "b", 1, hex.West, hex.East)
		startBuildPhase(e, nil)
		requireReason(t, e.RedirectTrack("a", hex.C(1, 0), hex.SouthEast), ReasonNotEntitled)
	})
}

func TestEndBuild_ReleasesStaleUnfinishedTrack(t *testing.T) {
	e := newTestEngine(t, 3)
	placeTrack(e, hex.C(1, 0), "a", 0, hex.West, hex.East)
	placeTrack(e, hex.C(1, 2), "a", 0, hex.West, hex.East)
	placeTrack(e, hex.C(2, 2), "a", 1, hex.West, hex.East)
	startBuildPhase(e, nil)

	require.NoError(t, e.EndBuild("a"))

	stale, _ := e.state.Board.Track.Get(hex.C(1, 0))
	finished, _ := e.state.Board.Track.Get(hex.C(1, 2))
	fresh, _ := e.state.Board.Track.Get(hex.C(2, 2))
	assert.Equal(t, Unowned, stale.Owner())
	assert.Equal(t, PlayerID("a"), finished.Owner())
	assert.Equal(t, PlayerID("a"), fresh.Owner())
	assert.Equal(t, PlayerID("b"), e.CurrentPlayer())

	assert.False(t, IsValidConnectionPoint(e.state.Board, hex.C(1, 0), "a"))
	assert.False(t, IsValidConnectionPoint(e.state.Board, hex.C(1, 0), Unowned))
}

func TestUrbanizeTown(t *testing.T) {
	t.Run("two step", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionUrbanize})

		require.NoError(t, e.StartUrbanization("a", "A"))
		require.NoError(t, e.UrbanizeTown("a", hex.C(4, 2), ""))

		city, ok := e.state.Board.CityAt(hex.C(4, 2))
		require.True(t, ok)
		assert.Equal(t, Black, city.Color)
		assert.Equal(t, "Tee", city.Name)
		assert.Equal(t, []string{"A"}, city.Columns)
		col, _ := e.state.Board.Display.ColumnOf(48)
		assert.Equal(t, "A", col.ID)
		assert.True(t, col.Active)
		assert.Equal(t, 0, e.state.Players["a"].Cash)
		assert.Equal(t, 1, e.state.Players["a"].BuildsUsed)
		assert.Nil(t, e.state.Pending)

		tile, _ := e.state.Board.NewCityTile("A")
		assert.True(t, tile.Used)
		requireReason(t, e.UrbanizeTown("a", hex.C(5, 4), "B"), ReasonResourceExhausted)
	})

	t.Run("only before building", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionUrbanize})
		require.NoError(t, e.BuildTrack("a", hex.C(1, 0), []hex.Direction{hex.West, hex.East}))
		requireReason(t, e.UrbanizeTown("a", hex.C(4, 2), "A"), ReasonIllegalPhase)
	})

	t.Run("requires the action", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, nil)
		requireReason(t, e.UrbanizeTown("a", hex.C(4, 2), "A"), ReasonNotEntitled)
	})

	t.Run("town with track", func(t *testing.T) {
		e := newTestEngine(t, 3)
		placeTrack(e, hex.C(5, 4), "b", 1, hex.West, hex.East)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionUrbanize})
		requireReason(t, e.UrbanizeTown("a", hex.C(5, 4), "A"), ReasonInvalidPlacement)
	})

	t.Run("not a town", func(t *testing.T) {
		e := newTestEngine(t, 3)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionUrbanize})
		requireReason(t, e.UrbanizeTown("a", hex.C(3, 2), "A"), ReasonInvalidPlacement)
		requireReason(t, e.UrbanizeTown("a", hex.C(4, 2), "Z"), ReasonInvalidCommand)
	})
}

func TestOpenEdges(t *testing.T) {
	e := newTestEngine(t, 3)
	placeTrack(e, hex.C(1, 0), "a", 1, hex.West, hex.East)

	assert.Equal(t, hex.Directions(), e.OpenEdges("a", hex.C(0, 0)))
	assert.Equal(t, []hex.Direction{hex.East, hex.West}, e.OpenEdges("a", hex.C(1, 0)))
	assert.Empty(t, e.OpenEdges("b", hex.C(1, 0)))
	assert.Empty(t, e.OpenEdges("a", hex.C(3, 3)))

	e.state.Board.Track.Put(&TrackTile{Coord: hex.C(3, 2), Form: FormCoexist, Segments: []TrackSegment{
		{Owner: "a", Edges: [2]hex.Direction{hex.East, hex.NorthEast}},
		{Owner: "b", Edges: [2]hex.Direction{hex.West, hex.SouthWest}},
	}})
	union := []hex.Direction{hex.East, hex.NorthEast, hex.West, hex.SouthWest}
	assert.Equal(t, union, e.OpenEdges("a", hex.C(3, 2)))
	assert.Equal(t, union, e.OpenEdges("b", hex.C(3, 2)))
	assert.Empty(t, e.OpenEdges("c", hex.C(3, 2)))

	assert.True(t, PlayerHasTrack(e.state.Board, "a"))
	assert.False(t, PlayerHasTrack(e.state.Board, "b"))
}

func TestBuildCost(t *testing.T) {
	e := newTestEngine(t, 3)
	b := e.state.Board
	assert.Equal(t, 2, BuildCost(b, e.rules, hex.C(1, 0)))
	assert.Equal(t, 3, BuildCost(b, e.rules, hex.C(3, 3)))
	assert.Equal(t, 3, BuildCost(b, e.rules, hex.C(4, 2)))
}
