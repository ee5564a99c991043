package hex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOppositeIsInvolution(t *testing.T) {
	for _, d := range Directions() {
		assert.Equal(t, d, Opposite(Opposite(d)), "direction %s", d)
		assert.NotEqual(t, d, Opposite(d))
	}
}

func TestNeighborRoundTrip(t *testing.T) {
	coords := []Coord{C(0, 0), C(3, 1), C(2, 2), C(5, 7), C(-1, -3)}
	for _, c := range coords {
		for _, d := range Directions() {
			n := Neighbor(c, d)
			assert.True(t, Neighbor(n, Opposite(d)).Equal(c), "from %s via %s", c, d)
		}
	}
}

func TestNeighborOddR(t *testing.T) {
	tests := []struct {
		name string
		from Coord
		dir  Direction
		want Coord
	}{
		{"even east", C(1, 0), East, C(2, 0)},
		{"even west", C(1, 0), West, C(0, 0)},
		{"even north-east", C(2, 2), NorthEast, C(2, 1)},
		{"even south-west", C(2, 2), SouthWest, C(1, 3)},
		{"odd north-east", C(2, 1), NorthEast, C(3, 0)},
		{"odd north-west", C(2, 1), NorthWest, C(2, 0)},
		{"odd south-east", C(2, 1), SouthEast, C(3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Neighbor(tt.from, tt.dir))
		})
	}
}

func TestDirectionTo(t *testing.T) {
	d, ok := DirectionTo(C(1, 0), C(0, 0))
	require.True(t, ok)
	assert.Equal(t, West, d)

	_, ok = DirectionTo(C(0, 0), C(3, 0))
	assert.False(t, ok)
	assert.False(t, Adjacent(C(0, 0), C(0, 0)))
}

func TestChordsCross(t *testing.T) {
	// E-W and NE-SW straights cross in the middle of the hex.
	assert.True(t, ChordsCross(East, West, NorthEast, SouthWest))
	// E-NE and W-SW curves sit side by side.
	assert.False(t, ChordsCross(East, NorthEast, West, SouthWest))
	// Shared edge never crosses.
	assert.False(t, ChordsCross(East, West, East, NorthWest))
	// Order of endpoints does not matter.
	assert.Equal(t, ChordsCross(West, East, SouthWest, NorthEast), ChordsCross(East, West, NorthEast, SouthWest))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "SE", SouthEast.String())
	assert.Equal(t, "Direction(9)", Direction(9).String())
	assert.False(t, Direction(-1).Valid())
}
