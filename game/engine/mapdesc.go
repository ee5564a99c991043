package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// DisplaySlots is the number of cube slots on a goods display.
const DisplaySlots = 52

// ErrInvalidMap wraps every map descriptor validation failure.
var ErrInvalidMap = errors.New("invalid map descriptor")

// HexSpec overrides the terrain of a single hex.
type HexSpec struct {
	Col     int     `json:"col"`
	Row     int     `json:"row"`
	Terrain Terrain `json:"terrain" validate:"required,oneof=plain river mountain water"`
}

// CitySpec places a city at game start.
type CitySpec struct {
	Col     int      `json:"col"`
	Row     int      `json:"row"`
	Name    string   `json:"name" validate:"required"`
	Color   Color    `json:"color" validate:"required,oneof=red blue yellow purple black"`
	Columns []string `json:"columns,omitempty"`
}

// TownSpec places a town that may later be urbanized.
type TownSpec struct {
	Col  int    `json:"col"`
	Row  int    `json:"row"`
	Name string `json:"name" validate:"required"`
}

// ColumnSpec describes one goods display column. Exactly one of City or
// NewCityLetter is set.
type ColumnSpec struct {
	ID            string `json:"id" validate:"required"`
	RowCount      int    `json:"row_count" validate:"min=1,max=6"`
	City          string `json:"city,omitempty"`
	NewCityLetter string `json:"new_city_letter,omitempty"`
	GrowthNumber  int    `json:"growth_number" validate:"min=1,max=6"`
	Shade         Shade  `json:"shade" validate:"required,oneof=light dark"`
}

// NewCityTileSpec is one tile of the urbanization pool.
type NewCityTileSpec struct {
	ID    string `json:"id" validate:"required"`
	Color Color  `json:"color" validate:"required,oneof=red blue yellow purple black"`
}

// IncomeBand reduces income by Reduction when income is at least Min.
type IncomeBand struct {
	Min       int `json:"min"`
	Reduction int `json:"reduction"`
}

// Ruleset holds every tunable rule constant.
//
// A ruleset decoded from JSON starts from DefaultRuleset, so a key that is
// present wins even when it is zero and an absent key keeps its default.
// A ruleset built in Go has no such record: WithDefaults treats its zero
// fields as unset.
type Ruleset struct {
	StartingCash       int             `json:"starting_cash"`
	StartingShares     int             `json:"starting_shares"`
	SharePrice         int             `json:"share_price"`
	MaxShares          int             `json:"max_shares"`
	BuildsPerTurn      int             `json:"builds_per_turn"`
	EngineerBuilds     int             `json:"engineer_builds"`
	TerrainCost        map[Terrain]int `json:"terrain_cost,omitempty"`
	TownCost           int             `json:"town_cost"`
	CrossingCost       int             `json:"crossing_cost"`
	ReplaceCost        int             `json:"replace_cost"`
	RedirectCost       int             `json:"redirect_cost"`
	UrbanizeCost       int             `json:"urbanize_cost"`
	StartingLocomotive int             `json:"starting_locomotive"`
	MaxLocomotive      int             `json:"max_locomotive"`
	LinksPerLocomotive int             `json:"links_per_locomotive"`
	Payout             []int           `json:"payout,omitempty"`
	AllowForeignTrack  bool            `json:"allow_foreign_track,omitempty"`
	ForeignLinkFee     int             `json:"foreign_link_fee"`
	MoveRounds         int             `json:"move_rounds"`
	MinIncome          int             `json:"min_income"`
	IncomeReduction    []IncomeBand    `json:"income_reduction,omitempty"`
	TurnLimits         map[int]int     `json:"turn_limits,omitempty"`

	// resolved marks a ruleset whose every field is meaningful.
	resolved bool
}

// DefaultRuleset returns the standard rule constants.
func DefaultRuleset() Ruleset {
	return Ruleset{
		StartingCash:       10,
		StartingShares:     2,
		SharePrice:         5,
		MaxShares:          15,
		BuildsPerTurn:      3,
		EngineerBuilds:     4,
		TerrainCost:        map[Terrain]int{Plain: 2, River: 3, Mountain: 4},
		TownCost:           3,
		CrossingCost:       3,
		ReplaceCost:        2,
		RedirectCost:       2,
		UrbanizeCost:       10,
		StartingLocomotive: 1,
		MaxLocomotive:      6,
		LinksPerLocomotive: 3,
		ForeignLinkFee:     1,
		MoveRounds:         2,
		MinIncome:          -10,
		IncomeReduction: []IncomeBand{
			{Min: 50, Reduction: 10},
			{Min: 41, Reduction: 8},
			{Min: 31, Reduction: 6},
			{Min: 21, Reduction: 4},
			{Min: 11, Reduction: 2},
		},
		TurnLimits: map[int]int{2: 10, 3: 10, 4: 8, 5: 7, 6: 6},
		resolved:   true,
	}
}

// WithDefaults fills every zero-valued field from DefaultRuleset. Rulesets
// decoded from JSON are returned unchanged.
func (r Ruleset) WithDefaults() Ruleset {
	if r.resolved {
		return r
	}
	d := DefaultRuleset()
	fill := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&r.StartingCash, d.StartingCash)
	fill(&r.StartingShares, d.StartingShares)
	fill(&r.SharePrice, d.SharePrice)
	fill(&r.MaxShares, d.MaxShares)
	fill(&r.BuildsPerTurn, d.BuildsPerTurn)
	fill(&r.EngineerBuilds, d.EngineerBuilds)
	fill(&r.TownCost, d.TownCost)
	fill(&r.CrossingCost, d.CrossingCost)
	fill(&r.ReplaceCost, d.ReplaceCost)
	fill(&r.RedirectCost, d.RedirectCost)
	fill(&r.UrbanizeCost, d.UrbanizeCost)
	fill(&r.StartingLocomotive, d.StartingLocomotive)
	fill(&r.MaxLocomotive, d.MaxLocomotive)
	fill(&r.LinksPerLocomotive, d.LinksPerLocomotive)
	fill(&r.ForeignLinkFee, d.ForeignLinkFee)
	fill(&r.MoveRounds, d.MoveRounds)
	fill(&r.MinIncome, d.MinIncome)
	if len(r.TerrainCost) == 0 {
		r.TerrainCost = d.TerrainCost
	} else {
		merged := make(map[Terrain]int, len(d.TerrainCost))
		for k, v := range d.TerrainCost {
			merged[k] = v
		}
		for k, v := range r.TerrainCost {
			merged[k] = v
		}
		r.TerrainCost = merged
	}
	if len(r.IncomeReduction) == 0 {
		r.IncomeReduction = d.IncomeReduction
	}
	if len(r.TurnLimits) == 0 {
		r.TurnLimits = d.TurnLimits
	}
	r.resolved = true
	return r
}

type rulesetJSON Ruleset

// MarshalJSON writes the effective rules, defaults included.
func (r Ruleset) MarshalJSON() ([]byte, error) {
	return json.Marshal(rulesetJSON(r.WithDefaults()))
}

// UnmarshalJSON decodes onto DefaultRuleset. Terrain costs merge with the
// defaults; turn limits and income bands replace them when given.
func (r *Ruleset) UnmarshalJSON(data []byte) error {
	d := DefaultRuleset()
	out := rulesetJSON(DefaultRuleset())
	out.TurnLimits = nil
	out.IncomeReduction = nil
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if len(out.TurnLimits) == 0 {
		out.TurnLimits = d.TurnLimits
	}
	if len(out.IncomeReduction) == 0 {
		out.IncomeReduction = d.IncomeReduction
	}
	*r = Ruleset(out)
	r.resolved = true
	return nil
}

// PayoutFor returns the income earned for a delivery over n links.
func (r Ruleset) PayoutFor(n int) int {
	if n >= 0 && n < len(r.Payout) {
		return r.Payout[n]
	}
	return n
}

// ReductionFor returns how much income is lost in IncomeReduction.
func (r Ruleset) ReductionFor(income int) int {
	best, bestMin := 0, 0
	for _, b := range r.IncomeReduction {
		if income >= b.Min && b.Min >= bestMin {
			best, bestMin = b.Reduction, b.Min
		}
	}
	return best
}

// MapDescriptor is the static, read-only board definition.
type MapDescriptor struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	Layout      []string          `json:"layout,omitempty"`
	Legend      map[string]string `json:"legend,omitempty"`
	Hexes       []HexSpec         `json:"hexes,omitempty" validate:"dive"`
	Cities      []CitySpec        `json:"cities" validate:"required,min=1,dive"`
	Towns       []TownSpec        `json:"towns,omitempty" validate:"dive"`
	Columns     []ColumnSpec      `json:"goods_columns" validate:"required,min=1,dive"`
	NewCities   []NewCityTileSpec `json:"new_city_tiles,omitempty" validate:"dive"`
	StartingBag []Color           `json:"starting_bag" validate:"required,dive,oneof=red blue yellow purple black"`
	Ruleset     *Ruleset          `json:"ruleset,omitempty"`
}

// DefaultLegend maps layout characters to terrain. Spaces and '-' are off
// the board.
var DefaultLegend = map[string]string{
	".": string(Plain),
	"~": string(River),
	"^": string(Mountain),
	"w": string(Water),
}

// Rules returns the descriptor ruleset with defaults applied.
func (d *MapDescriptor) Rules() Ruleset {
	if d.Ruleset == nil {
		return DefaultRuleset()
	}
	return d.Ruleset.WithDefaults()
}

// Terrain resolves the terrain of every on-board hex: layout first, then
// explicit hex overrides, then city and town hexes default to plain.
func (d *MapDescriptor) Terrain() (map[hex.Coord]Terrain, error) {
	legend := d.Legend
	if len(legend) == 0 {
		legend = DefaultLegend
	}
	out := make(map[hex.Coord]Terrain)
	for row, line := range d.Layout {
		for col, ch := range line {
			if ch == ' ' || ch == '-' {
				continue
			}
			t, ok := legend[string(ch)]
			if !ok {
				return nil, fmt.Errorf("%w: unknown layout character %q at row %d, col %d", ErrInvalidMap, ch, row, col)
			}
			out[hex.C(col, row)] = Terrain(t)
		}
	}
	for _, h := range d.Hexes {
		out[hex.C(h.Col, h.Row)] = h.Terrain
	}
	for _, c := range d.Cities {
		if _, ok := out[hex.C(c.Col, c.Row)]; !ok {
			out[hex.C(c.Col, c.Row)] = Plain
		}
	}
	for _, t := range d.Towns {
		if _, ok := out[hex.C(t.Col, t.Row)]; !ok {
			out[hex.C(t.Col, t.Row)] = Plain
		}
	}
	return out, nil
}

var mapValidator = validator.New()

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidMap, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidMap, err)
}

// ValidateMap checks tags and the cross references between cities, towns,
// columns and new city tiles.
func ValidateMap(d *MapDescriptor) error {
	if d == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidMap)
	}
	if err := mapValidator.Struct(d); err != nil {
		return formatValidationError(err)
	}

	terrain, err := d.Terrain()
	if err != nil {
		return err
	}

	occupied := make(map[hex.Coord]string)
	cityNames := make(map[string]bool)
	for _, c := range d.Cities {
		at := hex.C(c.Col, c.Row)
		if prev, ok := occupied[at]; ok {
			return fmt.Errorf("%w: city %q shares hex %s with %q", ErrInvalidMap, c.Name, at, prev)
		}
		if terrain[at] == Water {
			return fmt.Errorf("%w: city %q placed on water at %s", ErrInvalidMap, c.Name, at)
		}
		if cityNames[c.Name] {
			return fmt.Errorf("%w: duplicate city name %q", ErrInvalidMap, c.Name)
		}
		occupied[at] = c.Name
		cityNames[c.Name] = true
	}
	for _, t := range d.Towns {
		at := hex.C(t.Col, t.Row)
		if prev, ok := occupied[at]; ok {
			return fmt.Errorf("%w: town %q shares hex %s with %q", ErrInvalidMap, t.Name, at, prev)
		}
		if terrain[at] == Water {
			return fmt.Errorf("%w: town %q placed on water at %s", ErrInvalidMap, t.Name, at)
		}
		occupied[at] = t.Name
	}

	letters := make(map[string]bool)
	for _, nc := range d.NewCities {
		if letters[nc.ID] {
			return fmt.Errorf("%w: duplicate new city tile %q", ErrInvalidMap, nc.ID)
		}
		letters[nc.ID] = true
	}

	ids := make(map[string]ColumnSpec)
	slots := 0
	for _, col := range d.Columns {
		if _, dup := ids[col.ID]; dup {
			return fmt.Errorf("%w: duplicate goods column %q", ErrInvalidMap, col.ID)
		}
		ids[col.ID] = col
		slots += col.RowCount
		switch {
		case col.City != "" && col.NewCityLetter != "":
			return fmt.Errorf("%w: column %q names both a city and a new city letter", ErrInvalidMap, col.ID)
		case col.City != "":
			if !cityNames[col.City] {
				return fmt.Errorf("%w: column %q references unknown city %q", ErrInvalidMap, col.ID, col.City)
			}
		case col.NewCityLetter != "":
			if !letters[col.NewCityLetter] {
				return fmt.Errorf("%w: column %q references unknown new city tile %q", ErrInvalidMap, col.ID, col.NewCityLetter)
			}
		default:
			return fmt.Errorf("%w: column %q has neither city nor new city letter", ErrInvalidMap, col.ID)
		}
	}
	if slots != DisplaySlots {
		return fmt.Errorf("%w: goods columns hold %d slots, want %d", ErrInvalidMap, slots, DisplaySlots)
	}
	for _, c := range d.Cities {
		for _, id := range c.Columns {
			col, ok := ids[id]
			if !ok {
				return fmt.Errorf("%w: city %q lists unknown column %q", ErrInvalidMap, c.Name, id)
			}
			if col.City != c.Name {
				return fmt.Errorf("%w: city %q lists column %q owned by %q", ErrInvalidMap, c.Name, id, col.City)
			}
		}
	}
	if len(d.Towns) < len(d.NewCities) {
		return fmt.Errorf("%w: %d new city tiles but only %d towns", ErrInvalidMap, len(d.NewCities), len(d.Towns))
	}

	rules := d.Rules()
	for n := range rules.TurnLimits {
		if n < 1 {
			return fmt.Errorf("%w: turn limit for %d players", ErrInvalidMap, n)
		}
	}
	return nil
}

// LoadMapFile reads and validates a map descriptor from a JSON file.
func LoadMapFile(path string) (*MapDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMap(data)
}

// ParseMap decodes and validates a JSON map descriptor.
func ParseMap(data []byte) (*MapDescriptor, error) {
	var d MapDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	if err := ValidateMap(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DefaultMap returns the built-in map used when no descriptor is given.
func DefaultMap() *MapDescriptor {
	d := &MapDescriptor{
		Name:        "heartland",
		Description: "Six cities and eight towns on a 9x7 board",
		Layout: []string{
			"..^^..~..",
			"....~~...",
			"^...~..^.",
			"..~..w...",
			"...^~~...",
			".....~.^.",
			"..^......",
		},
		Cities: []CitySpec{
			{Col: 1, Row: 1, Name: "Ashford", Color: Red, Columns: []string{"L1", "D1"}},
			{Col: 6, Row: 1, Name: "Brookhaven", Color: Blue, Columns: []string{"L2", "D2"}},
			{Col: 3, Row: 3, Name: "Cedar Falls", Color: Yellow, Columns: []string{"L3", "D3"}},
			{Col: 7, Row: 4, Name: "Dunmore", Color: Purple, Columns: []string{"L4", "D4"}},
			{Col: 1, Row: 5, Name: "Eastgate", Color: Black, Columns: []string{"L5", "D5"}},
			{Col: 5, Row: 6, Name: "Fairview", Color: Red, Columns: []string{"L6", "D6"}},
		},
		Towns: []TownSpec{
			{Col: 4, Row: 1, Name: "Millbrook"},
			{Col: 2, Row: 4, Name: "Oakridge"},
			{Col: 8, Row: 2, Name: "Pinecrest"},
			{Col: 3, Row: 6, Name: "Quarry"},
			{Col: 6, Row: 3, Name: "Redmond"},
			{Col: 0, Row: 3, Name: "Stonehill"},
			{Col: 4, Row: 5, Name: "Thornton"},
			{Col: 8, Row: 6, Name: "Union"},
		},
		NewCities: []NewCityTileSpec{
			{ID: "A", Color: Red},
			{ID: "B", Color: Blue},
			{ID: "C", Color: Yellow},
			{ID: "D", Color: Purple},
			{ID: "E", Color: Black},
			{ID: "F", Color: Black},
			{ID: "G", Color: Black},
			{ID: "H", Color: Black},
		},
	}
	cities := []string{"Ashford", "Brookhaven", "Cedar Falls", "Dunmore", "Eastgate", "Fairview"}
	for i, name := range cities {
		d.Columns = append(d.Columns, ColumnSpec{ID: fmt.Sprintf("L%d", i+1), RowCount: 3, City: name, GrowthNumber: i + 1, Shade: Light})
	}
	for i, name := range cities {
		d.Columns = append(d.Columns, ColumnSpec{ID: fmt.Sprintf("D%d", i+1), RowCount: 3, City: name, GrowthNumber: i + 1, Shade: Dark})
	}
	for i, nc := range d.NewCities {
		shade := Light
		if i >= 4 {
			shade = Dark
		}
		d.Columns = append(d.Columns, ColumnSpec{ID: nc.ID, RowCount: 2, NewCityLetter: nc.ID, GrowthNumber: i%4 + 1, Shade: shade})
	}
	d.StartingBag = StandardBag()
	return d
}

// StandardBag returns the 96-cube starting bag: twenty each of red, blue,
// yellow and purple plus sixteen black.
func StandardBag() []Color {
	counts := []struct {
		c Color
		n int
	}{{Red, 20}, {Blue, 20}, {Yellow, 20}, {Purple, 20}, {Black, 16}}
	var bag []Color
	for _, x := range counts {
		for i := 0; i < x.n; i++ {
			bag = append(bag, x.c)
		}
	}
	return bag
}
