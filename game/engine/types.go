package engine

// PlayerID identifies a player. The empty ID marks unowned track.
type PlayerID string

// Unowned is the owner of track that no longer belongs to anybody.
const Unowned PlayerID = ""

// Color is a goods cube or city color.
type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Yellow Color = "yellow"
	Purple Color = "purple"
	Black  Color = "black"
)

// Terrain of a board hex.
type Terrain string

const (
	Plain    Terrain = "plain"
	River    Terrain = "river"
	Mountain Terrain = "mountain"
	Water    Terrain = "water"
)

// TrackForm describes how many segments a tile holds and how they relate.
type TrackForm string

const (
	FormSimple   TrackForm = "simple"
	FormCrossing TrackForm = "crossing"
	FormCoexist  TrackForm = "coexist"
)

// Shade groups goods columns by the dice that grow them.
type Shade string

const (
	Light Shade = "light"
	Dark  Shade = "dark"
)

// Phase is one step of the ten-phase turn sequence.
type Phase string

const (
	PhaseIssueShares     Phase = "issue_shares"
	PhasePlayerOrder     Phase = "determine_player_order"
	PhaseSelectActions   Phase = "select_actions"
	PhaseBuildTrack      Phase = "build_track"
	PhaseMoveGoods       Phase = "move_goods"
	PhaseCollectIncome   Phase = "collect_income"
	PhasePayExpenses     Phase = "pay_expenses"
	PhaseIncomeReduction Phase = "income_reduction"
	PhaseGoodsGrowth     Phase = "goods_growth"
	PhaseAdvanceTurn     Phase = "advance_turn"
	PhaseTerminal        Phase = "terminal"
)

// PhaseCycle is the fixed order phases repeat in every turn.
var PhaseCycle = []Phase{
	PhaseIssueShares,
	PhasePlayerOrder,
	PhaseSelectActions,
	PhaseBuildTrack,
	PhaseMoveGoods,
	PhaseCollectIncome,
	PhasePayExpenses,
	PhaseIncomeReduction,
	PhaseGoodsGrowth,
	PhaseAdvanceTurn,
}

// Computed reports whether the phase runs without player input.
func (p Phase) Computed() bool {
	switch p {
	case PhaseCollectIncome, PhasePayExpenses, PhaseIncomeReduction, PhaseGoodsGrowth, PhaseAdvanceTurn:
		return true
	}
	return false
}

// next returns the phase following p in the cycle.
func (p Phase) next() Phase {
	for i, ph := range PhaseCycle {
		if ph == p {
			return PhaseCycle[(i+1)%len(PhaseCycle)]
		}
	}
	return PhaseTerminal
}

// Action is a special action chosen during SelectActions.
type Action string

const (
	NoAction            Action = ""
	ActionFirstMove     Action = "first_move"
	ActionFirstBuild    Action = "first_build"
	ActionEngineer      Action = "engineer"
	ActionLocomotive    Action = "locomotive"
	ActionUrbanize      Action = "urbanization"
	ActionProduction    Action = "production"
	ActionTurnOrderPass Action = "turn_order_pass"
)

// ActionOrder is the closed, ordered list of special actions.
var ActionOrder = []Action{
	ActionFirstMove,
	ActionFirstBuild,
	ActionEngineer,
	ActionLocomotive,
	ActionUrbanize,
	ActionProduction,
	ActionTurnOrderPass,
}

// Valid reports whether a is one of the special actions.
func (a Action) Valid() bool {
	for _, x := range ActionOrder {
		if x == a {
			return true
		}
	}
	return false
}

// PlayerSetup describes a seat at game creation.
type PlayerSetup struct {
	ID    PlayerID `json:"id"`
	Name  string   `json:"name"`
	Color string   `json:"color,omitempty"`
}

// PlayerState is the per-player bookkeeping mutated only by the engine.
type PlayerState struct {
	ID         PlayerID `json:"id"`
	Name       string   `json:"name"`
	Color      string   `json:"color,omitempty"`
	Cash       int      `json:"cash"`
	Shares     int      `json:"shares"`
	Income     int      `json:"income"`
	Locomotive int      `json:"locomotive"`
	Action     Action   `json:"action,omitempty"`
	Eliminated bool     `json:"eliminated,omitempty"`

	// Per-turn counters, reset when a new turn starts.
	BuildsUsed     int  `json:"builds_used"`
	Urbanized      bool `json:"urbanized,omitempty"`
	LocoUpgraded   bool `json:"loco_upgraded,omitempty"`
	ProductionUsed bool `json:"production_used,omitempty"`
}

// StepState is phase-scoped scratch data. It is reset on every phase entry.
type StepState struct {
	// Order is the acting sequence for the current player phase and Index
	// points at the player whose turn it is.
	Order []PlayerID `json:"order,omitempty"`
	Index int        `json:"index"`

	// MoveRound counts move-goods rounds starting at 1.
	MoveRound int `json:"move_round,omitempty"`

	Auction *AuctionState `json:"auction,omitempty"`
}

// AuctionState tracks the player-order auction.
type AuctionState struct {
	HighBid    int              `json:"high_bid"`
	HighBidder PlayerID         `json:"high_bidder,omitempty"`
	Bids       map[PlayerID]int `json:"bids"`
	// Active lists players still bidding, in bidding order.
	Active []PlayerID `json:"active"`
	// Dropped lists players in the order they left the auction.
	Dropped  []PlayerID        `json:"dropped"`
	PassUsed map[PlayerID]bool `json:"pass_used,omitempty"`
	Turn     int               `json:"turn"`
}

// HistoryEntry records a committed command or phase transition.
type HistoryEntry struct {
	Seq       int      `json:"seq"`
	Turn      int      `json:"turn"`
	Phase     Phase    `json:"phase"`
	Player    PlayerID `json:"player,omitempty"`
	Command   string   `json:"command"`
	Detail    string   `json:"detail,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// GameState is the single authoritative root of a game.
type GameState struct {
	MapName       string                    `json:"map_name"`
	Board         *BoardState               `json:"board"`
	Players       map[PlayerID]*PlayerState `json:"players"`
	Seats         []PlayerID                `json:"seats"`
	PlayOrder     []PlayerID                `json:"play_order"`
	CurrentPlayer PlayerID                  `json:"current_player,omitempty"`
	Turn          int                       `json:"turn"`
	MaxTurns      int                       `json:"max_turns"`
	Phase         Phase                     `json:"phase"`
	Step          StepState                 `json:"step"`
	Pending       Pending                   `json:"-"`
	Delivered     []Color                   `json:"delivered"`
	TotalCubes    int                       `json:"total_cubes"`
	History       []HistoryEntry            `json:"history"`
	Scores        map[PlayerID]int          `json:"scores,omitempty"`
	Winner        PlayerID                  `json:"winner,omitempty"`
	Ruleset       Ruleset                   `json:"ruleset"`
	RNG           []byte                    `json:"rng,omitempty"`
}

// ActivePlayers returns the play order restricted to players still in the game.
func (gs *GameState) ActivePlayers() []PlayerID {
	out := make([]PlayerID, 0, len(gs.PlayOrder))
	for _, id := range gs.PlayOrder {
		if p, ok := gs.Players[id]; ok && !p.Eliminated {
			out = append(out, id)
		}
	}
	return out
}

// holderOf returns the player holding a special action this round.
func (gs *GameState) holderOf(a Action) (PlayerID, bool) {
	for _, id := range gs.PlayOrder {
		if p := gs.Players[id]; p != nil && !p.Eliminated && p.Action == a {
			return id, true
		}
	}
	return "", false
}
