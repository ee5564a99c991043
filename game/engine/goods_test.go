package engine

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countColors(cs []Color) map[Color]int {
	out := make(map[Color]int)
	for _, c := range cs {
		out[c]++
	}
	return out
}

func TestNewGoodsDisplay_FillsEverySlot(t *testing.T) {
	d := createTestMap()
	g := NewGoodsDisplay(d, rand.New(rand.NewPCG(1, 2)))

	assert.Equal(t, DisplaySlots, g.TotalSlots())
	assert.Empty(t, g.EmptySlots())
	assert.Equal(t, DisplaySlots, g.CubesOnDisplay())
	assert.Len(t, g.Bag, len(d.StartingBag)-DisplaySlots)

	var all []Color
	for _, col := range g.Columns {
		all = append(all, col.Slots...)
	}
	all = append(all, g.Bag...)
	assert.Equal(t, countColors(d.StartingBag), countColors(all))

	again := NewGoodsDisplay(d, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, g, again)
}

func TestGoodsDisplay_SlotAddressing(t *testing.T) {
	g := &GoodsDisplay{Columns: []*Column{
		{ID: "X", RowCount: 3, Slots: []Color{Red, "", Blue}},
		{ID: "Y", RowCount: 2, Slots: []Color{"", Black}},
	}}
	col, row, ok := g.Slot(3)
	require.True(t, ok)
	assert.Equal(t, "Y", col.ID)
	assert.Equal(t, 0, row)

	_, _, ok = g.Slot(5)
	assert.False(t, ok)
	_, _, ok = g.Slot(-1)
	assert.False(t, ok)

	assert.Equal(t, []int{1, 3}, g.EmptySlots())
	cube, ok := g.TakeCube(2)
	require.True(t, ok)
	assert.Equal(t, Blue, cube)
	_, ok = g.TakeCube(2)
	assert.False(t, ok)
}

func TestGrow_FullColumnDiscards(t *testing.T) {
	g := &GoodsDisplay{
		Columns: []*Column{{ID: "X", RowCount: 3, GrowthNumber: 2, Shade: Light, Active: true, Slots: []Color{Red, Blue, Yellow}}},
		Bag:     []Color{Black, Purple},
	}
	results := g.Grow([]Die{{Shade: Light, Value: 2}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Discarded)
	assert.Equal(t, Purple, results[0].Cube)
	assert.Equal(t, []Color{Red, Blue, Yellow}, g.Columns[0].Slots)
	assert.Len(t, g.Bag, 2)
	assert.Equal(t, countColors([]Color{Black, Purple}), countColors(g.Bag))
}

func TestGrow_CompactsThenFills(t *testing.T) {
	g := &GoodsDisplay{
		Columns: []*Column{
			{ID: "X", RowCount: 3, GrowthNumber: 4, Shade: Dark, Active: true, Slots: []Color{"", Red, ""}},
			{ID: "Y", RowCount: 3, GrowthNumber: 4, Shade: Light, Active: true, Slots: []Color{"", "", ""}},
			{ID: "Z", RowCount: 2, GrowthNumber: 4, Shade: Dark, Active: false, Slots: []Color{"", ""}},
		},
		Bag: []Color{Blue},
	}
	results := g.Grow([]Die{{Shade: Dark, Value: 4}, {Shade: Dark, Value: 1}})

	require.Len(t, results, 1)
	assert.Equal(t, "X", results[0].Column)
	assert.Equal(t, []Color{Red, Blue, ""}, g.Columns[0].Slots)
	assert.Equal(t, []Color{"", "", ""}, g.Columns[1].Slots)
	assert.Equal(t, []Color{"", ""}, g.Columns[2].Slots)
	assert.Empty(t, g.Bag)
}

func TestGrow_EmptyBag(t *testing.T) {
	g := &GoodsDisplay{
		Columns: []*Column{{ID: "X", RowCount: 2, GrowthNumber: 1, Shade: Light, Active: true, Slots: []Color{"", ""}}},
	}
	results := g.Grow([]Die{{Shade: Light, Value: 1}})
	require.Len(t, results, 1)
	assert.Equal(t, Color(""), results[0].Cube)
	assert.Equal(t, []Color{"", ""}, g.Columns[0].Slots)
}

func TestGrow_ConservesCubes(t *testing.T) {
	d := createTestMap()
	rng := rand.New(rand.NewPCG(3, 4))
	g := NewGoodsDisplay(d, rng)
	for i := 0; i < 10; i++ {
		g.TakeCube(i * 5)
	}
	total := g.CubesOnDisplay() + len(g.Bag)
	for round := 0; round < 50; round++ {
		g.Grow(RollGrowth(rng, 4))
		require.Equal(t, total, g.CubesOnDisplay()+len(g.Bag))
	}
}

func TestRollGrowth(t *testing.T) {
	dice := RollGrowth(rand.New(rand.NewPCG(9, 9)), 3)
	require.Len(t, dice, 6)
	for i, d := range dice {
		if i < 3 {
			assert.Equal(t, Light, d.Shade)
		} else {
			assert.Equal(t, Dark, d.Shade)
		}
		assert.GreaterOrEqual(t, d.Value, 1)
		assert.LessOrEqual(t, d.Value, 6)
	}
}

func TestProduction(t *testing.T) {
	setup := func(t *testing.T) *GameEngine {
		e := newTestEngine(t, 3)
		freeSlots(e, 0, 4, 7)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionProduction})
		return e
	}

	t.Run("confirm places both cubes", func(t *testing.T) {
		e := setup(t)
		bagBefore := len(e.state.Board.Display.Bag)

		cubes, err := e.StartProduction("a")
		require.NoError(t, err)
		assert.Len(t, e.state.Board.Display.Bag, bagBefore-2)

		requireReason(t, e.ConfirmProduction("a"), ReasonInvalidPlacement)
		require.NoError(t, e.SelectProductionSlot("a", 4))
		requireReason(t, e.SelectProductionSlot("a", 4), ReasonInvalidPlacement)
		requireReason(t, e.SelectProductionSlot("a", 1), ReasonInvalidPlacement)
		requireReason(t, e.SelectProductionSlot("a", 999), ReasonInvalidPlacement)
		requireReason(t, e.ConfirmProduction("a"), ReasonInvalidPlacement)
		require.NoError(t, e.SelectProductionSlot("a", 0))
		requireReason(t, e.SelectProductionSlot("a", 7), ReasonInvalidPlacement)

		require.NoError(t, e.ConfirmProduction("a"))
		c4, _ := e.state.Board.Display.CubeAt(4)
		c0, _ := e.state.Board.Display.CubeAt(0)
		assert.Equal(t, cubes[0], c4)
		assert.Equal(t, cubes[1], c0)
		assert.Nil(t, e.state.Pending)
		assert.True(t, e.state.Players["a"].ProductionUsed)

		_, err = e.StartProduction("a")
		requireReason(t, err, ReasonResourceExhausted)
	})

	t.Run("cancel restores the bag exactly", func(t *testing.T) {
		e := setup(t)
		before, err := json.Marshal(e.state.Board)
		require.NoError(t, err)

		_, err = e.StartProduction("a")
		require.NoError(t, err)
		require.NoError(t, e.SelectProductionSlot("a", 0))
		require.NoError(t, e.CancelProduction("a"))

		after, err := json.Marshal(e.state.Board)
		require.NoError(t, err)
		assert.JSONEq(t, string(before), string(after))
		assert.Nil(t, e.state.Pending)
		assert.False(t, e.state.Players["a"].ProductionUsed)
	})

	t.Run("only the holder", func(t *testing.T) {
		e := setup(t)
		_, err := e.StartProduction("b")
		requireReason(t, err, ReasonNotEntitled)
	})

	t.Run("pending blocks other players", func(t *testing.T) {
		e := newTestEngine(t, 3)
		freeSlots(e, 0, 1)
		e.enterPhase(PhaseSelectActions)
		e.state.Players["b"].Action = ActionProduction

		_, err := e.StartProduction("b")
		require.NoError(t, err)
		requireReason(t, e.SelectAction("a", ActionFirstMove), ReasonNotEntitled)
		requireReason(t, e.SelectProductionSlot("a", 0), ReasonNotEntitled)
		require.NoError(t, e.CancelPending("b"))
		require.NoError(t, e.SelectAction("a", ActionFirstMove))
	})

	t.Run("not enough empty slots", func(t *testing.T) {
		e := newTestEngine(t, 3)
		freeSlots(e, 0)
		startBuildPhase(e, map[PlayerID]Action{"a": ActionProduction})
		_, err := e.StartProduction("a")
		requireReason(t, err, ReasonResourceExhausted)
	})

	t.Run("bag too small", func(t *testing.T) {
		e := setup(t)
		d := e.state.Board.Display
		e.state.Delivered = append(e.state.Delivered, d.Bag[1:]...)
		d.Bag = d.Bag[:1]
		_, err := e.StartProduction("a")
		requireReason(t, err, ReasonResourceExhausted)
	})

	t.Run("wrong phase", func(t *testing.T) {
		e := newTestEngine(t, 3)
		freeSlots(e, 0, 1)
		e.state.Players["a"].Action = ActionProduction
		_, err := e.StartProduction("a")
		requireReason(t, err, ReasonIllegalPhase)
	})
}
