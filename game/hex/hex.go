// Package hex provides coordinate arithmetic for the board's hexagonal grid.
//
// The board uses pointy-top hexes addressed by offset coordinates (column,
// row) where odd rows are shoved half a hex to the right ("odd-r").
// Directions are numbered clockwise starting east:
//
//	0 east, 1 north-east, 2 north-west, 3 west, 4 south-west, 5 south-east
//
// so that Opposite(d) == (d+3) mod 6.
package hex

import "fmt"

// Direction is one of the six edges of a hex.
type Direction int

const (
	East Direction = iota
	NorthEast
	NorthWest
	West
	SouthWest
	SouthEast
)

// NumDirections is the number of edges of a hex.
const NumDirections = 6

var directionNames = [NumDirections]string{"E", "NE", "NW", "W", "SW", "SE"}

// String returns the compass abbreviation of the direction.
func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	return d >= 0 && d < NumDirections
}

// Coord is an offset coordinate on the grid.
type Coord struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// C is shorthand for Coord{Col: col, Row: row}.
func C(col, row int) Coord {
	return Coord{Col: col, Row: row}
}

// Equal reports whether two coordinates address the same hex.
func (c Coord) Equal(o Coord) bool {
	return c.Col == o.Col && c.Row == o.Row
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// neighbor offsets indexed by row parity then direction.
var offsets = [2][NumDirections]Coord{
	// even rows
	{{Col: 1, Row: 0}, {Col: 0, Row: -1}, {Col: -1, Row: -1}, {Col: -1, Row: 0}, {Col: -1, Row: 1}, {Col: 0, Row: 1}},
	// odd rows
	{{Col: 1, Row: 0}, {Col: 1, Row: -1}, {Col: 0, Row: -1}, {Col: -1, Row: 0}, {Col: 0, Row: 1}, {Col: 1, Row: 1}},
}

// Neighbor returns the hex adjacent to c across edge d.
// Directions outside 0..5 are normalized modulo 6.
func Neighbor(c Coord, d Direction) Coord {
	d = normalize(d)
	off := offsets[c.Row&1][d]
	return Coord{Col: c.Col + off.Col, Row: c.Row + off.Row}
}

// Neighbors returns the six adjacent hexes in ascending direction order.
func (c Coord) Neighbors() [NumDirections]Coord {
	var result [NumDirections]Coord
	for d := Direction(0); d < NumDirections; d++ {
		result[d] = Neighbor(c, d)
	}
	return result
}

// Opposite returns the direction pointing back across the same edge.
func Opposite(d Direction) Direction {
	return normalize(d + 3)
}

// DirectionTo returns the direction from a to an adjacent hex b.
// ok is false when the hexes are not adjacent.
func DirectionTo(a, b Coord) (Direction, bool) {
	for d := Direction(0); d < NumDirections; d++ {
		if Neighbor(a, d).Equal(b) {
			return d, true
		}
	}
	return 0, false
}

// Adjacent reports whether a and b share an edge.
func Adjacent(a, b Coord) bool {
	_, ok := DirectionTo(a, b)
	return ok
}

// Directions returns all six directions in ascending order.
func Directions() []Direction {
	return []Direction{East, NorthEast, NorthWest, West, SouthWest, SouthEast}
}

// Between reports whether x lies strictly between a and b walking
// clockwise-numbered directions from a to b.
func Between(a, b, x Direction) bool {
	a, b, x = normalize(a), normalize(b), normalize(x)
	for d := normalize(a + 1); d != b; d = normalize(d + 1) {
		if d == x {
			return true
		}
	}
	return false
}

// ChordsCross reports whether the chord joining edges a1-a2 crosses the
// chord joining edges b1-b2 inside the hex. Chords sharing an edge never
// cross.
func ChordsCross(a1, a2, b1, b2 Direction) bool {
	if a1 == b1 || a1 == b2 || a2 == b1 || a2 == b2 {
		return false
	}
	return Between(a1, a2, b1) != Between(a1, a2, b2)
}

func normalize(d Direction) Direction {
	d %= NumDirections
	if d < 0 {
		d += NumDirections
	}
	return d
}
