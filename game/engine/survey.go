package engine

import (
	"container/heap"
	"fmt"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// Site is a city or town named by a map descriptor.
type Site struct {
	Name string    `json:"name"`
	At   hex.Coord `json:"at"`
	Town bool      `json:"town,omitempty"`
}

// Survey answers static questions about a map before any game is played.
type Survey struct {
	terrain map[hex.Coord]Terrain
	rules   Ruleset
	sites   []Site
	byHex   map[hex.Coord]Site
}

// NewSurvey resolves the terrain of d. It does not run ValidateMap.
func NewSurvey(d *MapDescriptor) (*Survey, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: descriptor is nil", ErrInvalidMap)
	}
	terrain, err := d.Terrain()
	if err != nil {
		return nil, err
	}
	s := &Survey{
		terrain: terrain,
		rules:   d.Rules(),
		byHex:   make(map[hex.Coord]Site),
	}
	for _, c := range d.Cities {
		site := Site{Name: c.Name, At: hex.C(c.Col, c.Row)}
		s.sites = append(s.sites, site)
		s.byHex[site.At] = site
	}
	for _, t := range d.Towns {
		site := Site{Name: t.Name, At: hex.C(t.Col, t.Row), Town: true}
		s.sites = append(s.sites, site)
		s.byHex[site.At] = site
	}
	return s, nil
}

// Sites lists cities first, then towns, in descriptor order.
func (s *Survey) Sites() []Site { return s.sites }

// TerrainCounts counts on-board hexes by terrain.
func (s *Survey) TerrainCounts() map[Terrain]int {
	out := make(map[Terrain]int)
	for _, t := range s.terrain {
		out[t]++
	}
	return out
}

// Isolated returns the sites no land path connects to the first city.
func (s *Survey) Isolated() []Site {
	if len(s.sites) == 0 {
		return nil
	}
	start := s.sites[0].At
	seen := map[hex.Coord]bool{start: true}
	queue := []hex.Coord{start}
	for len(queue) > 0 {
		at := queue[0]
		queue = queue[1:]
		for _, n := range at.Neighbors() {
			t, onBoard := s.terrain[n]
			if !onBoard || t == Water || seen[n] {
				continue
			}
			seen[n] = true
			queue = append(queue, n)
		}
	}

	var out []Site
	for _, site := range s.sites {
		if !seen[site.At] {
			out = append(out, site)
		}
	}
	return out
}

// stepCost is the price of laying track into at, or false when no track
// may pass through it on the way to somewhere else.
func (s *Survey) stepCost(at hex.Coord) (int, bool) {
	t, ok := s.terrain[at]
	if !ok || t == Water {
		return 0, false
	}
	if site, ok := s.byHex[at]; ok {
		if !site.Town {
			return 0, false
		}
		return s.rules.TownCost, true
	}
	cost, ok := s.rules.TerrainCost[t]
	return cost, ok
}

// CheapestBuild estimates the lowest cost of a private line from one site to
// another, counting only the hexes between them. Crossing and coexisting
// tiles are not considered. ok is false when no line exists.
func (s *Survey) CheapestBuild(from, to hex.Coord) (cost, tiles int, ok bool) {
	if from == to {
		return 0, 0, true
	}
	dist := map[hex.Coord]int{from: 0}
	steps := map[hex.Coord]int{from: 0}
	pq := &costQueue{{at: from}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(costItem)
		if cur.cost > dist[cur.at] {
			continue
		}
		for _, n := range cur.at.Neighbors() {
			if n == to {
				if best, seen := dist[to]; !seen || cur.cost < best {
					dist[to] = cur.cost
					steps[to] = steps[cur.at]
				}
				continue
			}
			c, passable := s.stepCost(n)
			if !passable {
				continue
			}
			next := cur.cost + c
			if best, seen := dist[n]; seen && best <= next {
				continue
			}
			dist[n] = next
			steps[n] = steps[cur.at] + 1
			heap.Push(pq, costItem{at: n, cost: next})
		}
	}
	cost, ok = dist[to]
	return cost, steps[to], ok
}

type costItem struct {
	at   hex.Coord
	cost int
}

type costQueue []costItem

func (q costQueue) Len() int           { return len(q) }
func (q costQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q costQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x any)        { *q = append(*q, x.(costItem)) }
func (q *costQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}
