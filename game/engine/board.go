package engine

import (
	"sort"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// BoardHex is one on-board hex and its terrain.
type BoardHex struct {
	Coord   hex.Coord `json:"coord"`
	Terrain Terrain   `json:"terrain"`
}

// City accepts cubes of its own color and is the origin of its columns.
type City struct {
	Coord   hex.Coord `json:"coord"`
	Name    string    `json:"name"`
	Color   Color     `json:"color"`
	Columns []string  `json:"columns,omitempty"`
	// TileID is set when the city was created by urbanization.
	TileID string `json:"tile_id,omitempty"`
}

// Accepts reports whether a cube of color c can be delivered here.
func (c *City) Accepts(color Color) bool {
	return c.Color == color
}

// Town is a hex that can be urbanized into a city.
type Town struct {
	Coord     hex.Coord `json:"coord"`
	Name      string    `json:"name"`
	Urbanized bool      `json:"urbanized,omitempty"`
}

// NewCityTile is one tile of the finite urbanization pool.
type NewCityTile struct {
	ID    string `json:"id"`
	Color Color  `json:"color"`
	Used  bool   `json:"used,omitempty"`
}

// TrackSegment is a single two-edge run of track inside a hex.
type TrackSegment struct {
	Owner     PlayerID         `json:"owner"`
	Edges     [2]hex.Direction `json:"edges"`
	BuiltTurn int              `json:"built_turn"`
}

// Has reports whether the segment reaches edge d.
func (s TrackSegment) Has(d hex.Direction) bool {
	return s.Edges[0] == d || s.Edges[1] == d
}

// Other returns the edge opposite to d along the segment.
func (s TrackSegment) Other(d hex.Direction) hex.Direction {
	if s.Edges[0] == d {
		return s.Edges[1]
	}
	return s.Edges[0]
}

// TrackTile is the track occupying one hex. A simple tile holds one
// segment; crossing and coexist tiles hold two that never connect to each
// other.
type TrackTile struct {
	Coord    hex.Coord      `json:"coord"`
	Form     TrackForm      `json:"form"`
	Segments []TrackSegment `json:"segments"`
}

// Owner returns the owner of the first segment.
func (t *TrackTile) Owner() PlayerID {
	if len(t.Segments) == 0 {
		return Unowned
	}
	return t.Segments[0].Owner
}

// Edges returns the union of all segment edges in ascending order.
func (t *TrackTile) Edges() []hex.Direction {
	var out []hex.Direction
	for _, d := range hex.Directions() {
		for _, s := range t.Segments {
			if s.Has(d) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// SegmentAt returns the index of the segment reaching edge d.
func (t *TrackTile) SegmentAt(d hex.Direction) (int, bool) {
	for i, s := range t.Segments {
		if s.Has(d) {
			return i, true
		}
	}
	return -1, false
}

// OwnedBy reports whether any segment belongs to p. Nobody owns unowned
// track.
func (t *TrackTile) OwnedBy(p PlayerID) bool {
	if p == Unowned {
		return false
	}
	for _, s := range t.Segments {
		if s.Owner == p {
			return true
		}
	}
	return false
}

// TrackIndex is the lookup structure over placed track.
type TrackIndex interface {
	Get(c hex.Coord) (*TrackTile, bool)
	Put(t *TrackTile)
	All() []*TrackTile
	Len() int
}

// TrackSet is the default TrackIndex. Tiles serialize as a list; the
// coordinate index is rebuilt lazily after decoding.
type TrackSet struct {
	Tiles []*TrackTile `json:"tiles"`
	index map[hex.Coord]int
}

// NewTrackSet returns an empty track set.
func NewTrackSet() *TrackSet {
	return &TrackSet{Tiles: []*TrackTile{}, index: map[hex.Coord]int{}}
}

func (ts *TrackSet) ensureIndex() {
	if ts.index != nil && len(ts.index) == len(ts.Tiles) {
		return
	}
	ts.index = make(map[hex.Coord]int, len(ts.Tiles))
	for i, t := range ts.Tiles {
		ts.index[t.Coord] = i
	}
}

func (ts *TrackSet) Get(c hex.Coord) (*TrackTile, bool) {
	ts.ensureIndex()
	i, ok := ts.index[c]
	if !ok {
		return nil, false
	}
	return ts.Tiles[i], true
}

func (ts *TrackSet) Put(t *TrackTile) {
	ts.ensureIndex()
	if i, ok := ts.index[t.Coord]; ok {
		ts.Tiles[i] = t
		return
	}
	ts.index[t.Coord] = len(ts.Tiles)
	ts.Tiles = append(ts.Tiles, t)
}

// All returns tiles ordered by row then column.
func (ts *TrackSet) All() []*TrackTile {
	out := append([]*TrackTile(nil), ts.Tiles...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.Row != out[j].Coord.Row {
			return out[i].Coord.Row < out[j].Coord.Row
		}
		return out[i].Coord.Col < out[j].Coord.Col
	})
	return out
}

func (ts *TrackSet) Len() int { return len(ts.Tiles) }

// BoardState is the mutable board: static topology plus placed track,
// cities created by urbanization, and the goods display.
type BoardState struct {
	Hexes        []BoardHex     `json:"hexes"`
	Cities       []*City        `json:"cities"`
	Towns        []*Town        `json:"towns"`
	Track        *TrackSet      `json:"track"`
	NewCityTiles []*NewCityTile `json:"new_city_tiles"`
	Display      *GoodsDisplay  `json:"display"`

	terrain map[hex.Coord]Terrain
}

// NewBoard builds the starting board from a validated descriptor.
func NewBoard(d *MapDescriptor) (*BoardState, error) {
	terrain, err := d.Terrain()
	if err != nil {
		return nil, err
	}
	b := &BoardState{Track: NewTrackSet()}
	for c, t := range terrain {
		b.Hexes = append(b.Hexes, BoardHex{Coord: c, Terrain: t})
	}
	sort.Slice(b.Hexes, func(i, j int) bool {
		if b.Hexes[i].Coord.Row != b.Hexes[j].Coord.Row {
			return b.Hexes[i].Coord.Row < b.Hexes[j].Coord.Row
		}
		return b.Hexes[i].Coord.Col < b.Hexes[j].Coord.Col
	})

	byCity := make(map[string][]string)
	for _, col := range d.Columns {
		if col.City != "" {
			byCity[col.City] = append(byCity[col.City], col.ID)
		}
	}
	for _, c := range d.Cities {
		b.Cities = append(b.Cities, &City{
			Coord:   hex.C(c.Col, c.Row),
			Name:    c.Name,
			Color:   c.Color,
			Columns: byCity[c.Name],
		})
	}
	for _, t := range d.Towns {
		b.Towns = append(b.Towns, &Town{Coord: hex.C(t.Col, t.Row), Name: t.Name})
	}
	for _, nc := range d.NewCities {
		b.NewCityTiles = append(b.NewCityTiles, &NewCityTile{ID: nc.ID, Color: nc.Color})
	}
	return b, nil
}

func (b *BoardState) ensureTerrain() {
	if b.terrain != nil && len(b.terrain) == len(b.Hexes) {
		return
	}
	b.terrain = make(map[hex.Coord]Terrain, len(b.Hexes))
	for _, h := range b.Hexes {
		b.terrain[h.Coord] = h.Terrain
	}
}

// Tracks exposes placed track through the TrackIndex interface.
func (b *BoardState) Tracks() TrackIndex { return b.Track }

// OnBoard reports whether c is part of the map.
func (b *BoardState) OnBoard(c hex.Coord) bool {
	b.ensureTerrain()
	_, ok := b.terrain[c]
	return ok
}

// TerrainAt returns the terrain at c.
func (b *BoardState) TerrainAt(c hex.Coord) (Terrain, bool) {
	b.ensureTerrain()
	t, ok := b.terrain[c]
	return t, ok
}

// CityAt returns the city at c.
func (b *BoardState) CityAt(c hex.Coord) (*City, bool) {
	for _, city := range b.Cities {
		if city.Coord == c {
			return city, true
		}
	}
	return nil, false
}

// CityNamed looks a city up by name.
func (b *BoardState) CityNamed(name string) (*City, bool) {
	for _, city := range b.Cities {
		if city.Name == name {
			return city, true
		}
	}
	return nil, false
}

// IsCity reports whether a city occupies c.
func (b *BoardState) IsCity(c hex.Coord) bool {
	_, ok := b.CityAt(c)
	return ok
}

// TownAt returns the town at c, urbanized or not.
func (b *BoardState) TownAt(c hex.Coord) (*Town, bool) {
	for _, t := range b.Towns {
		if t.Coord == c {
			return t, true
		}
	}
	return nil, false
}

// NewCityTile returns the urbanization tile with the given letter.
func (b *BoardState) NewCityTile(id string) (*NewCityTile, bool) {
	for _, t := range b.NewCityTiles {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Buildable reports whether plain track may be laid on c: on the map, not
// water and not a city.
func (b *BoardState) Buildable(c hex.Coord) bool {
	t, ok := b.TerrainAt(c)
	if !ok || t == Water {
		return false
	}
	return !b.IsCity(c)
}

// Enterable reports whether track may point at c.
func (b *BoardState) Enterable(c hex.Coord) bool {
	t, ok := b.TerrainAt(c)
	return ok && t != Water
}

// SegmentsOf counts track segments owned by p.
func (b *BoardState) SegmentsOf(p PlayerID) int {
	n := 0
	for _, t := range b.Track.Tiles {
		for _, s := range t.Segments {
			if s.Owner == p {
				n++
			}
		}
	}
	return n
}
