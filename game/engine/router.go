package engine

import (
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// Link is one hex-to-hex step of a delivery. Track is the hex holding the
// segment it runs over: the entered hex, or the hex left when entering a
// city.
type Link struct {
	From    hex.Coord `json:"from"`
	To      hex.Coord `json:"to"`
	Track   hex.Coord `json:"track"`
	Owner   PlayerID  `json:"owner"`
	Foreign bool      `json:"foreign,omitempty"`
}

// DeliveryPath is a simple path from a cube's origin city to a city that
// accepts it. ForeignLinks holds one link per foreign segment used, so a
// segment is charged once whichever way the cube travels.
type DeliveryPath struct {
	Slot         int         `json:"slot"`
	Cube         Color       `json:"cube"`
	Origin       hex.Coord   `json:"origin"`
	Destination  hex.Coord   `json:"destination"`
	Hexes        []hex.Coord `json:"hexes"`
	Links        []Link      `json:"links"`
	ForeignLinks []Link      `json:"foreign_links,omitempty"`
}

// Length is the number of links.
func (p DeliveryPath) Length() int { return len(p.Links) }

// RouteOptions bounds the search.
type RouteOptions struct {
	MaxLinks     int
	AllowForeign bool
}

// OriginOf returns the city a slot's cube ships from along with the cube.
func OriginOf(b *BoardState, slot int) (*City, Color, error) {
	col, row, ok := b.Display.Slot(slot)
	if !ok {
		return nil, "", reject(ReasonInvalidCommand, "slot %d does not exist", slot)
	}
	cube := col.Slots[row]
	if cube == "" {
		return nil, "", reject(ReasonInvalidCommand, "slot %d is empty", slot)
	}
	if !col.Active {
		return nil, "", reject(ReasonInvalidCommand, "column %s is not in play", col.ID)
	}
	if col.City != "" {
		if city, ok := b.CityNamed(col.City); ok {
			return city, cube, nil
		}
	}
	for _, city := range b.Cities {
		if col.NewCityLetter != "" && city.TileID == col.NewCityLetter {
			return city, cube, nil
		}
	}
	invariant("active column %s has no city", col.ID)
	return nil, "", nil
}

type router struct {
	b       *BoardState
	player  PlayerID
	cube    Color
	slot    int
	opts    RouteOptions
	visited map[hex.Coord]bool
	hexes   []hex.Coord
	links   []Link
	out     []DeliveryPath
}

// FindDeliveryPaths enumerates every simple path along which player can
// ship the cube in slot. Directions are tried in ascending order so the
// result is deterministic. An empty result is a normal outcome.
func FindDeliveryPaths(b *BoardState, slot int, player PlayerID, opts RouteOptions) ([]DeliveryPath, error) {
	origin, cube, err := OriginOf(b, slot)
	if err != nil {
		return nil, err
	}
	r := &router{
		b:       b,
		player:  player,
		cube:    cube,
		slot:    slot,
		opts:    opts,
		visited: map[hex.Coord]bool{origin.Coord: true},
		hexes:   []hex.Coord{origin.Coord},
	}
	r.fromCity(origin.Coord)
	return r.out, nil
}

func (r *router) fromCity(at hex.Coord) {
	for _, d := range hex.Directions() {
		r.step(at, d, nil)
	}
}

func (r *router) step(from hex.Coord, d hex.Direction, leaving *TrackSegment) {
	if len(r.links) >= r.opts.MaxLinks {
		return
	}
	next := hex.Neighbor(from, d)
	if r.visited[next] {
		return
	}
	if city, ok := r.b.CityAt(next); ok {
		if leaving == nil {
			return
		}
		link, ok := linkOver(from, next, from, *leaving, r.player, r.opts.AllowForeign)
		if !ok {
			return
		}
		r.push(next, link)
		if city.Accepts(r.cube) {
			r.record()
		} else {
			r.fromCity(next)
		}
		r.pop(next)
		return
	}
	t, ok := r.b.Tracks().Get(next)
	if !ok {
		return
	}
	entry := hex.Opposite(d)
	i, ok := t.SegmentAt(entry)
	if !ok {
		return
	}
	seg := t.Segments[i]
	link, ok := linkOver(from, next, next, seg, r.player, r.opts.AllowForeign)
	if !ok {
		return
	}
	r.push(next, link)
	r.step(next, seg.Other(entry), &seg)
	r.pop(next)
}

func (r *router) push(c hex.Coord, l Link) {
	r.visited[c] = true
	r.hexes = append(r.hexes, c)
	r.links = append(r.links, l)
}

func (r *router) pop(c hex.Coord) {
	delete(r.visited, c)
	r.hexes = r.hexes[:len(r.hexes)-1]
	r.links = r.links[:len(r.links)-1]
}

func (r *router) record() {
	r.out = append(r.out, newPath(r.slot, r.cube, r.hexes, r.links))
}

func newPath(slot int, cube Color, hexes []hex.Coord, links []Link) DeliveryPath {
	p := DeliveryPath{
		Slot:        slot,
		Cube:        cube,
		Origin:      hexes[0],
		Destination: hexes[len(hexes)-1],
		Hexes:       append([]hex.Coord(nil), hexes...),
		Links:       append([]Link(nil), links...),
	}
	// A simple path enters each track hex once, so only the link into a
	// city can repeat the segment of the link before it.
	charged := map[hex.Coord]bool{}
	for _, l := range links {
		if l.Foreign && !charged[l.Track] {
			charged[l.Track] = true
			p.ForeignLinks = append(p.ForeignLinks, l)
		}
	}
	return p
}

func linkOver(from, to, track hex.Coord, seg TrackSegment, player PlayerID, allowForeign bool) (Link, bool) {
	switch {
	case seg.Owner == player && player != Unowned:
		return Link{From: from, To: to, Track: track, Owner: seg.Owner}, true
	case seg.Owner == Unowned:
		return Link{}, false
	case allowForeign:
		return Link{From: from, To: to, Track: track, Owner: seg.Owner, Foreign: true}, true
	}
	return Link{}, false
}

// TracePath checks a caller-supplied hex sequence against the same rules
// the search applies and returns the resulting path.
func TracePath(b *BoardState, slot int, player PlayerID, hexes []hex.Coord, opts RouteOptions) (DeliveryPath, error) {
	origin, cube, err := OriginOf(b, slot)
	if err != nil {
		return DeliveryPath{}, err
	}
	if len(hexes) < 2 {
		return DeliveryPath{}, reject(ReasonMalformedPath, "path needs at least two hexes")
	}
	if hexes[0] != origin.Coord {
		return DeliveryPath{}, reject(ReasonMalformedPath, "path must start at %s (%s)", origin.Name, origin.Coord)
	}
	if len(hexes)-1 > opts.MaxLinks {
		return DeliveryPath{}, reject(ReasonMalformedPath, "path has %d links, locomotive allows %d", len(hexes)-1, opts.MaxLinks)
	}

	seen := map[hex.Coord]bool{origin.Coord: true}
	var links []Link
	var leaving *TrackSegment
	var exit hex.Direction
	for i := 0; i+1 < len(hexes); i++ {
		from, to := hexes[i], hexes[i+1]
		if seen[to] {
			return DeliveryPath{}, reject(ReasonMalformedPath, "path revisits %s", to)
		}
		seen[to] = true
		d, ok := hex.DirectionTo(from, to)
		if !ok {
			return DeliveryPath{}, reject(ReasonMalformedPath, "%s is not adjacent to %s", to, from)
		}
		if leaving != nil && d != exit {
			return DeliveryPath{}, reject(ReasonMalformedPath, "track at %s does not lead to %s", from, to)
		}
		last := i+2 == len(hexes)

		if city, ok := b.CityAt(to); ok {
			if leaving == nil {
				return DeliveryPath{}, reject(ReasonMalformedPath, "no track between %s and %s", from, to)
			}
			link, ok := linkOver(from, to, from, *leaving, player, opts.AllowForeign)
			if !ok {
				return DeliveryPath{}, reject(ReasonMalformedPath, "link %s->%s is not usable by %s", from, to, player)
			}
			links = append(links, link)
			if last && !city.Accepts(cube) {
				return DeliveryPath{}, reject(ReasonMalformedPath, "%s does not accept %s", city.Name, cube)
			}
			if !last && city.Accepts(cube) {
				return DeliveryPath{}, reject(ReasonMalformedPath, "%s would stop the %s cube", city.Name, cube)
			}
			leaving = nil
			continue
		}

		if last {
			return DeliveryPath{}, reject(ReasonMalformedPath, "path must end at a city")
		}
		t, ok := b.Tracks().Get(to)
		if !ok {
			return DeliveryPath{}, reject(ReasonMalformedPath, "no track at %s", to)
		}
		entry := hex.Opposite(d)
		si, ok := t.SegmentAt(entry)
		if !ok {
			return DeliveryPath{}, reject(ReasonMalformedPath, "track at %s has no edge toward %s", to, from)
		}
		seg := t.Segments[si]
		link, ok := linkOver(from, to, to, seg, player, opts.AllowForeign)
		if !ok {
			return DeliveryPath{}, reject(ReasonMalformedPath, "link %s->%s is not usable by %s", from, to, player)
		}
		links = append(links, link)
		leaving = &seg
		exit = seg.Other(entry)
	}
	return newPath(slot, cube, hexes, links), nil
}
