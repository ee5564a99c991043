package engine

import (
	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// IsValidConnectionPoint reports whether c is a city or holds a segment
// owned by player.
func IsValidConnectionPoint(b *BoardState, c hex.Coord, player PlayerID) bool {
	if b.IsCity(c) {
		return true
	}
	t, ok := b.Tracks().Get(c)
	return ok && t.OwnedBy(player)
}

// PlayerHasTrack reports whether player owns at least one segment.
func PlayerHasTrack(b *BoardState, player PlayerID) bool {
	for _, t := range b.Tracks().All() {
		if t.OwnedBy(player) {
			return true
		}
	}
	return false
}

// ValidateFirstTrackRule requires at least one edge to point at a city.
func ValidateFirstTrackRule(b *BoardState, target hex.Coord, edges []hex.Direction) error {
	for _, d := range edges {
		if b.IsCity(hex.Neighbor(target, d)) {
			return nil
		}
	}
	return reject(ReasonInvalidPlacement, "first track at %s must point at a city", target)
}

// ValidateTrackConnection requires at least one edge to point at a city or
// at a neighbor segment owned by player that reaches back through the
// opposite edge.
func ValidateTrackConnection(b *BoardState, target hex.Coord, edges []hex.Direction, player PlayerID) error {
	for _, d := range edges {
		if connectsTo(b, target, d, player) {
			return nil
		}
	}
	return reject(ReasonInvalidPlacement, "track at %s does not connect to a city or to %s's network", target, player)
}

func connectsTo(b *BoardState, from hex.Coord, d hex.Direction, player PlayerID) bool {
	n := hex.Neighbor(from, d)
	if b.IsCity(n) {
		return true
	}
	t, ok := b.Tracks().Get(n)
	if !ok {
		return false
	}
	i, ok := t.SegmentAt(hex.Opposite(d))
	return ok && t.Segments[i].Owner == player && player != Unowned
}

// edgeConnected reports whether edge d of the segment at from meets a city
// or any owned segment across the shared edge.
func edgeConnected(b *BoardState, from hex.Coord, d hex.Direction) bool {
	n := hex.Neighbor(from, d)
	if b.IsCity(n) {
		return true
	}
	t, ok := b.Tracks().Get(n)
	if !ok {
		return false
	}
	i, ok := t.SegmentAt(hex.Opposite(d))
	return ok && t.Segments[i].Owner != Unowned
}

// GetOpenEdges lists the edges a player can extend from c: all six around a
// city, the union of segment edges of a tile the player owns, otherwise
// none.
func GetOpenEdges(b *BoardState, c hex.Coord, player PlayerID) []hex.Direction {
	if b.IsCity(c) {
		return hex.Directions()
	}
	t, ok := b.Tracks().Get(c)
	if !ok || !t.OwnedBy(player) {
		return nil
	}
	return t.Edges()
}

// validateEdges checks that exactly two distinct edges are given and that
// both point at enterable hexes.
func validateEdges(b *BoardState, target hex.Coord, edges []hex.Direction) error {
	if len(edges) != 2 {
		return reject(ReasonInvalidPlacement, "track needs exactly 2 edges, got %d", len(edges))
	}
	if edges[0] == edges[1] {
		return reject(ReasonInvalidPlacement, "track edges must be distinct")
	}
	for _, d := range edges {
		if !d.Valid() {
			return reject(ReasonInvalidPlacement, "invalid direction %d", int(d))
		}
		if !b.Enterable(hex.Neighbor(target, d)) {
			return reject(ReasonInvalidPlacement, "edge %s of %s leaves the map", d, target)
		}
	}
	return nil
}

// validatePlacementRule applies the first-track rule to a player without
// track and the connection rule otherwise.
func validatePlacementRule(b *BoardState, target hex.Coord, edges []hex.Direction, player PlayerID) error {
	if !PlayerHasTrack(b, player) {
		return ValidateFirstTrackRule(b, target, edges)
	}
	return ValidateTrackConnection(b, target, edges, player)
}

// BuildCost returns the cost of laying a simple tile at c.
func BuildCost(b *BoardState, rules Ruleset, c hex.Coord) int {
	if _, ok := b.TownAt(c); ok {
		return rules.TownCost
	}
	t, _ := b.TerrainAt(c)
	if cost, ok := rules.TerrainCost[t]; ok {
		return cost
	}
	return rules.TerrainCost[Plain]
}

// CheckSimpleBuild validates a simple tile placement without mutating b.
func CheckSimpleBuild(b *BoardState, target hex.Coord, edges []hex.Direction, player PlayerID) error {
	if !b.OnBoard(target) {
		return reject(ReasonInvalidPlacement, "%s is off the map", target)
	}
	if !b.Buildable(target) {
		return reject(ReasonInvalidPlacement, "%s cannot hold track", target)
	}
	if _, ok := b.Tracks().Get(target); ok {
		return reject(ReasonInvalidPlacement, "%s already holds track", target)
	}
	if err := validateEdges(b, target, edges); err != nil {
		return err
	}
	return validatePlacementRule(b, target, edges, player)
}

// CheckComplexBuild validates adding a second segment to a simple tile.
func CheckComplexBuild(b *BoardState, target hex.Coord, edges []hex.Direction, mode TrackForm, player PlayerID) error {
	if mode != FormCrossing && mode != FormCoexist {
		return reject(ReasonInvalidCommand, "unknown complex track mode %q", mode)
	}
	t, ok := b.Tracks().Get(target)
	if !ok {
		return reject(ReasonInvalidPlacement, "no track at %s to upgrade", target)
	}
	if t.Form != FormSimple || len(t.Segments) != 1 {
		return reject(ReasonInvalidPlacement, "track at %s is already %s", target, t.Form)
	}
	if err := validateEdges(b, target, edges); err != nil {
		return err
	}
	existing := t.Segments[0]
	for _, d := range edges {
		if existing.Has(d) {
			return reject(ReasonInvalidPlacement, "edge %s at %s is already used", d, target)
		}
	}
	crosses := hex.ChordsCross(existing.Edges[0], existing.Edges[1], edges[0], edges[1])
	if mode == FormCrossing && !crosses {
		return reject(ReasonInvalidPlacement, "crossing track at %s must cross the existing segment", target)
	}
	if mode == FormCoexist && crosses {
		return reject(ReasonInvalidPlacement, "coexisting track at %s must not cross the existing segment", target)
	}
	return validatePlacementRule(b, target, edges, player)
}

// ComplexCost returns the cost of the given complex build mode.
func ComplexCost(rules Ruleset, mode TrackForm) int {
	if mode == FormCrossing {
		return rules.CrossingCost
	}
	return rules.ReplaceCost
}

// redirectable returns the connected and open edge of a simple tile owned
// by player that was left half-built.
func redirectable(b *BoardState, c hex.Coord, player PlayerID) (*TrackTile, hex.Direction, hex.Direction, error) {
	t, ok := b.Tracks().Get(c)
	if !ok {
		return nil, 0, 0, reject(ReasonInvalidPlacement, "no track at %s to redirect", c)
	}
	if t.Form != FormSimple || len(t.Segments) != 1 {
		return nil, 0, 0, reject(ReasonInvalidPlacement, "only simple track can be redirected")
	}
	seg := t.Segments[0]
	if seg.Owner != player {
		return nil, 0, 0, reject(ReasonNotEntitled, "track at %s is not owned by %s", c, player)
	}
	a, z := seg.Edges[0], seg.Edges[1]
	ca, cz := edgeConnected(b, c, a), edgeConnected(b, c, z)
	switch {
	case ca && !cz:
		return t, a, z, nil
	case cz && !ca:
		return t, z, a, nil
	}
	return nil, 0, 0, reject(ReasonInvalidPlacement, "track at %s is not unfinished", c)
}

// RedirectCandidates lists the edges an unfinished tile at c may be turned
// toward.
func RedirectCandidates(b *BoardState, c hex.Coord, player PlayerID) ([]hex.Direction, error) {
	_, connected, open, err := redirectable(b, c, player)
	if err != nil {
		return nil, err
	}
	var out []hex.Direction
	for _, d := range hex.Directions() {
		if d == connected || d == open {
			continue
		}
		if !b.Enterable(hex.Neighbor(c, d)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// unfinished reports whether a segment has at least one edge that leads
// nowhere.
func unfinished(b *BoardState, c hex.Coord, s TrackSegment) bool {
	return !edgeConnected(b, c, s.Edges[0]) || !edgeConnected(b, c, s.Edges[1])
}
