package engine

import (
	"math/rand/v2"
)

// Column is one vertical run of the goods display.
type Column struct {
	ID            string  `json:"id"`
	RowCount      int     `json:"row_count"`
	City          string  `json:"city,omitempty"`
	NewCityLetter string  `json:"new_city_letter,omitempty"`
	GrowthNumber  int     `json:"growth_number"`
	Shade         Shade   `json:"shade"`
	Active        bool    `json:"active"`
	Slots         []Color `json:"slots"`
}

// Full reports whether every slot of the column holds a cube.
func (c *Column) Full() bool {
	for _, s := range c.Slots {
		if s == "" {
			return false
		}
	}
	return true
}

// compact moves cubes toward slot 0 keeping their order.
func (c *Column) compact() {
	j := 0
	for _, s := range c.Slots {
		if s != "" {
			c.Slots[j] = s
			j++
		}
	}
	for ; j < len(c.Slots); j++ {
		c.Slots[j] = ""
	}
}

// GoodsDisplay is the fixed grid of cube slots plus the draw bag. Slots
// are numbered across columns in descriptor order.
type GoodsDisplay struct {
	Columns []*Column `json:"columns"`
	// Bag draws from the end.
	Bag []Color `json:"bag"`
}

// NewGoodsDisplay shuffles the starting bag with rng and fills every slot
// in descriptor order. Columns tied to a new city letter start inactive.
func NewGoodsDisplay(d *MapDescriptor, rng *rand.Rand) *GoodsDisplay {
	g := &GoodsDisplay{Bag: append([]Color(nil), d.StartingBag...)}
	rng.Shuffle(len(g.Bag), func(i, j int) { g.Bag[i], g.Bag[j] = g.Bag[j], g.Bag[i] })
	for _, spec := range d.Columns {
		col := &Column{
			ID:            spec.ID,
			RowCount:      spec.RowCount,
			City:          spec.City,
			NewCityLetter: spec.NewCityLetter,
			GrowthNumber:  spec.GrowthNumber,
			Shade:         spec.Shade,
			Active:        spec.City != "",
			Slots:         make([]Color, spec.RowCount),
		}
		for i := range col.Slots {
			if c, ok := g.draw(); ok {
				col.Slots[i] = c
			}
		}
		g.Columns = append(g.Columns, col)
	}
	return g
}

// TotalSlots returns the number of slots across all columns.
func (g *GoodsDisplay) TotalSlots() int {
	n := 0
	for _, c := range g.Columns {
		n += c.RowCount
	}
	return n
}

// Slot resolves a global slot index to its column and row.
func (g *GoodsDisplay) Slot(i int) (*Column, int, bool) {
	if i < 0 {
		return nil, 0, false
	}
	for _, c := range g.Columns {
		if i < c.RowCount {
			return c, i, true
		}
		i -= c.RowCount
	}
	return nil, 0, false
}

// ColumnOf returns the column holding slot i.
func (g *GoodsDisplay) ColumnOf(i int) (*Column, bool) {
	c, _, ok := g.Slot(i)
	return c, ok
}

// CubeAt returns the cube in slot i, or "" if the slot is empty.
func (g *GoodsDisplay) CubeAt(i int) (Color, bool) {
	c, row, ok := g.Slot(i)
	if !ok {
		return "", false
	}
	return c.Slots[row], true
}

// EmptySlots lists the empty slot indexes in ascending order.
func (g *GoodsDisplay) EmptySlots() []int {
	var out []int
	i := 0
	for _, c := range g.Columns {
		for _, s := range c.Slots {
			if s == "" {
				out = append(out, i)
			}
			i++
		}
	}
	return out
}

// CubesOnDisplay counts cubes currently in slots.
func (g *GoodsDisplay) CubesOnDisplay() int {
	n := 0
	for _, c := range g.Columns {
		for _, s := range c.Slots {
			if s != "" {
				n++
			}
		}
	}
	return n
}

// TakeCube removes and returns the cube in slot i.
func (g *GoodsDisplay) TakeCube(i int) (Color, bool) {
	c, row, ok := g.Slot(i)
	if !ok || c.Slots[row] == "" {
		return "", false
	}
	cube := c.Slots[row]
	c.Slots[row] = ""
	return cube, true
}

func (g *GoodsDisplay) place(i int, cube Color) {
	c, row, ok := g.Slot(i)
	if !ok || c.Slots[row] != "" {
		invariant("placing %s into unavailable slot %d", cube, i)
	}
	c.Slots[row] = cube
}

func (g *GoodsDisplay) draw() (Color, bool) {
	if len(g.Bag) == 0 {
		return "", false
	}
	c := g.Bag[len(g.Bag)-1]
	g.Bag = g.Bag[:len(g.Bag)-1]
	return c, true
}

// putBack returns drawn cubes so the bag order is exactly as before the
// draw.
func (g *GoodsDisplay) putBack(cubes ...Color) {
	for i := len(cubes) - 1; i >= 0; i-- {
		g.Bag = append(g.Bag, cubes[i])
	}
}

// discard sends a cube to the bottom of the bag.
func (g *GoodsDisplay) discard(c Color) {
	g.Bag = append([]Color{c}, g.Bag...)
}

// Die is one goods growth roll.
type Die struct {
	Shade Shade `json:"shade"`
	Value int   `json:"value"`
}

// GrowthResult records what one die did to one column.
type GrowthResult struct {
	Die       Die    `json:"die"`
	Column    string `json:"column"`
	Cube      Color  `json:"cube,omitempty"`
	Discarded bool   `json:"discarded,omitempty"`
}

// RollGrowth rolls n light and n dark dice.
func RollGrowth(rng *rand.Rand, n int) []Die {
	dice := make([]Die, 0, 2*n)
	for i := 0; i < n; i++ {
		dice = append(dice, Die{Shade: Light, Value: rng.IntN(6) + 1})
	}
	for i := 0; i < n; i++ {
		dice = append(dice, Die{Shade: Dark, Value: rng.IntN(6) + 1})
	}
	return dice
}

// Grow applies dice to the display. Every active column matching a die
// compacts toward slot 0 and receives one cube from the bag; a full column
// discards its growth cube back to the bag.
func (g *GoodsDisplay) Grow(dice []Die) []GrowthResult {
	var out []GrowthResult
	for _, die := range dice {
		for _, col := range g.Columns {
			if !col.Active || col.Shade != die.Shade || col.GrowthNumber != die.Value {
				continue
			}
			cube, ok := g.draw()
			if !ok {
				out = append(out, GrowthResult{Die: die, Column: col.ID})
				continue
			}
			col.compact()
			if col.Full() {
				g.discard(cube)
				out = append(out, GrowthResult{Die: die, Column: col.ID, Cube: cube, Discarded: true})
				continue
			}
			for i, s := range col.Slots {
				if s == "" {
					col.Slots[i] = cube
					break
				}
			}
			out = append(out, GrowthResult{Die: die, Column: col.ID, Cube: cube})
		}
	}
	return out
}
