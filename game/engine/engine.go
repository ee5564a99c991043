package engine

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// Command names, shared with the service layer and the history log.
const (
	CmdIssueShares          = "issue_shares"
	CmdPassShares           = "pass_shares"
	CmdBid                  = "bid"
	CmdPassAuction          = "pass_auction"
	CmdUseTurnOrderPass     = "use_turn_order_pass"
	CmdSelectAction         = "select_action"
	CmdBuildTrack           = "build_track"
	CmdBuildComplexTrack    = "build_complex_track"
	CmdStartRedirect        = "start_redirect"
	CmdRedirectTrack        = "redirect_track"
	CmdStartUrbanization    = "start_urbanization"
	CmdUrbanizeTown         = "urbanize_town"
	CmdStartProduction      = "start_production"
	CmdSelectProductionSlot = "select_production_slot"
	CmdConfirmProduction    = "confirm_production"
	CmdCancelProduction     = "cancel_production"
	CmdCancelPending        = "cancel_pending"
	CmdEndBuild             = "end_build"
	CmdMoveGoods            = "move_goods"
	CmdUpgradeLocomotive    = "upgrade_locomotive"
	CmdPassMove             = "pass_move"
	CmdAdvancePhase         = "advance_phase"
)

// Engine is the rules engine boundary: read-only queries plus validated
// commands. Every command either fully applies or returns a *RuleError and
// leaves the state untouched.
type Engine interface {
	// Queries
	State() *GameState
	Phase() Phase
	CurrentPlayer() PlayerID
	IsGameOver() bool
	LegalActions(p PlayerID) []string
	OpenEdges(p PlayerID, c hex.Coord) []hex.Direction
	DeliveryPaths(p PlayerID, slot int) ([]DeliveryPath, error)
	Scores() map[PlayerID]int
	History() []HistoryEntry
	Map() *MapDescriptor

	// Shares and auction
	IssueShares(p PlayerID, n int) error
	PassShares(p PlayerID) error
	Bid(p PlayerID, amount int) error
	PassAuction(p PlayerID) error
	UseTurnOrderPass(p PlayerID) error

	// Actions
	SelectAction(p PlayerID, a Action) error

	// Build turn
	BuildTrack(p PlayerID, at hex.Coord, edges []hex.Direction) error
	BuildComplexTrack(p PlayerID, at hex.Coord, edges []hex.Direction, mode TrackForm) error
	StartRedirect(p PlayerID, at hex.Coord) ([]hex.Direction, error)
	RedirectTrack(p PlayerID, at hex.Coord, newEdge hex.Direction) error
	StartUrbanization(p PlayerID, tileID string) error
	UrbanizeTown(p PlayerID, town hex.Coord, tileID string) error
	StartProduction(p PlayerID) ([2]Color, error)
	SelectProductionSlot(p PlayerID, slot int) error
	ConfirmProduction(p PlayerID) error
	CancelProduction(p PlayerID) error
	CancelPending(p PlayerID) error
	EndBuild(p PlayerID) error

	// Move goods
	MoveGoods(p PlayerID, slot int, path []hex.Coord) (*DeliveryPath, error)
	UpgradeLocomotive(p PlayerID) error
	PassMove(p PlayerID) error

	// Computed phases
	AdvancePhase() error
}

// GameEngine implements the Engine interface.
type GameEngine struct {
	state  *GameState
	desc   *MapDescriptor
	rules  Ruleset
	logger *zap.Logger
	src    rand.Source
	rng    *rand.Rand
	now    func() time.Time
}

// Option configures a GameEngine.
type Option func(*GameEngine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *GameEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRandSource injects the random source used for shuffling and dice.
// A *rand.PCG source is saved with the state and restored on load.
func WithRandSource(src rand.Source) Option {
	return func(e *GameEngine) {
		if src != nil {
			e.src = src
		}
	}
}

// WithSeed seeds a PCG source deterministically.
func WithSeed(seed uint64) Option {
	return WithRandSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *GameEngine) {
		if now != nil {
			e.now = now
		}
	}
}

func newGameEngine(desc *MapDescriptor, opts []Option) *GameEngine {
	e := &GameEngine{
		desc:   desc,
		rules:  desc.Rules(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	e.rng = rand.New(e.src)
	return e
}

// NewEngine validates the map and players and deals the starting state. A
// nil descriptor selects DefaultMap.
func NewEngine(desc *MapDescriptor, players []PlayerSetup, opts ...Option) (*GameEngine, error) {
	if desc == nil {
		desc = DefaultMap()
	}
	if err := ValidateMap(desc); err != nil {
		return nil, err
	}
	e := newGameEngine(desc, opts)

	maxTurns, ok := e.rules.TurnLimits[len(players)]
	if !ok {
		return nil, fmt.Errorf("%w: %d players not supported by map %q", ErrInvalidSetup, len(players), desc.Name)
	}
	seen := make(map[PlayerID]bool)
	for _, p := range players {
		if p.ID == Unowned {
			return nil, fmt.Errorf("%w: player id is required", ErrInvalidSetup)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: duplicate player id %q", ErrInvalidSetup, p.ID)
		}
		seen[p.ID] = true
	}

	board, err := NewBoard(desc)
	if err != nil {
		return nil, err
	}
	board.Display = NewGoodsDisplay(desc, e.rng)

	gs := &GameState{
		MapName:    desc.Name,
		Board:      board,
		Players:    make(map[PlayerID]*PlayerState, len(players)),
		Turn:       1,
		MaxTurns:   maxTurns,
		Delivered:  []Color{},
		TotalCubes: len(desc.StartingBag),
		History:    []HistoryEntry{},
		Ruleset:    e.rules,
	}
	for _, p := range players {
		name := p.Name
		if name == "" {
			name = string(p.ID)
		}
		gs.Players[p.ID] = &PlayerState{
			ID:         p.ID,
			Name:       name,
			Color:      p.Color,
			Cash:       e.rules.StartingCash,
			Shares:     e.rules.StartingShares,
			Locomotive: e.rules.StartingLocomotive,
		}
		gs.Seats = append(gs.Seats, p.ID)
		gs.PlayOrder = append(gs.PlayOrder, p.ID)
	}
	e.state = gs
	e.enterPhase(PhaseIssueShares)

	e.logger.Info("game created",
		zap.String("map", desc.Name),
		zap.Int("players", len(players)),
		zap.Int("max_turns", maxTurns))
	return e, nil
}

// Restore rebuilds an engine around a saved state.
func Restore(desc *MapDescriptor, state *GameState, opts ...Option) (*GameEngine, error) {
	if desc == nil {
		desc = DefaultMap()
	}
	e := newGameEngine(desc, opts)
	if err := e.SetState(state); err != nil {
		return nil, err
	}
	return e, nil
}

// SetState replaces the current state, restoring the saved random source
// when both sides use PCG.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Board == nil || state.Board.Display == nil || state.Board.Track == nil {
		return fmt.Errorf("state has no board")
	}
	if len(state.RNG) > 0 {
		if u, ok := e.src.(encoding.BinaryUnmarshaler); ok {
			if err := u.UnmarshalBinary(state.RNG); err != nil {
				return fmt.Errorf("restore random source: %w", err)
			}
		}
	}
	e.rules = state.Ruleset
	e.state = state
	return nil
}

func (e *GameEngine) saveRNG() {
	if m, ok := e.src.(encoding.BinaryMarshaler); ok {
		if b, err := m.MarshalBinary(); err == nil {
			e.state.RNG = b
		}
	}
}

// State returns a deep copy of the current state.
func (e *GameEngine) State() *GameState {
	e.saveRNG()
	data, err := json.Marshal(e.state)
	if err != nil {
		invariant("state does not serialize: %v", err)
	}
	var out GameState
	if err := json.Unmarshal(data, &out); err != nil {
		invariant("state does not deserialize: %v", err)
	}
	return &out
}

func (e *GameEngine) Phase() Phase            { return e.state.Phase }
func (e *GameEngine) CurrentPlayer() PlayerID { return e.state.CurrentPlayer }
func (e *GameEngine) IsGameOver() bool        { return e.state.Phase == PhaseTerminal }
func (e *GameEngine) Map() *MapDescriptor     { return e.desc }
func (e *GameEngine) Rules() Ruleset          { return e.rules }
func (e *GameEngine) Pending() Pending        { return e.state.Pending }
func (e *GameEngine) History() []HistoryEntry { return append([]HistoryEntry(nil), e.state.History...) }

// OpenEdges lists the edges player can extend from c.
func (e *GameEngine) OpenEdges(p PlayerID, c hex.Coord) []hex.Direction {
	return GetOpenEdges(e.state.Board, c, p)
}

// DeliveryPaths enumerates delivery options for the cube in slot.
func (e *GameEngine) DeliveryPaths(p PlayerID, slot int) ([]DeliveryPath, error) {
	ps, ok := e.state.Players[p]
	if !ok {
		return nil, reject(ReasonNotEntitled, "unknown player %q", p)
	}
	return FindDeliveryPaths(e.state.Board, slot, p, e.routeOptions(ps))
}

func (e *GameEngine) routeOptions(ps *PlayerState) RouteOptions {
	return RouteOptions{
		MaxLinks:     ps.Locomotive * e.rules.LinksPerLocomotive,
		AllowForeign: e.rules.AllowForeignTrack,
	}
}

// Scores returns the current score of every seated player.
func (e *GameEngine) Scores() map[PlayerID]int {
	out := make(map[PlayerID]int, len(e.state.Players))
	for id, ps := range e.state.Players {
		out[id] = score(e.state.Board, ps)
	}
	return out
}

func (e *GameEngine) record(p PlayerID, cmd, detail string) {
	gs := e.state
	gs.History = append(gs.History, HistoryEntry{
		Seq:       len(gs.History) + 1,
		Turn:      gs.Turn,
		Phase:     gs.Phase,
		Player:    p,
		Command:   cmd,
		Detail:    detail,
		Timestamp: e.now().Unix(),
	})
	e.logger.Debug("command applied",
		zap.String("player", string(p)),
		zap.String("command", cmd),
		zap.String("detail", detail),
		zap.Int("turn", gs.Turn),
		zap.String("phase", string(gs.Phase)))
}

// actor checks that p may issue a regular command in phase right now.
func (e *GameEngine) actor(p PlayerID, phase Phase, cmd string) (*PlayerState, error) {
	gs := e.state
	if gs.Phase != phase {
		return nil, reject(ReasonIllegalPhase, "%s is not allowed during %s", cmd, gs.Phase)
	}
	ps, err := e.player(p)
	if err != nil {
		return nil, err
	}
	if gs.Pending != nil {
		if gs.Pending.Owner() == p {
			return nil, reject(ReasonIllegalPhase, "resolve the pending %s first", gs.Pending.Kind())
		}
		return nil, reject(ReasonNotEntitled, "waiting for %s to finish %s", gs.Pending.Owner(), gs.Pending.Kind())
	}
	if gs.CurrentPlayer != p {
		return nil, reject(ReasonNotEntitled, "it is %s's turn", gs.CurrentPlayer)
	}
	return ps, nil
}

func (e *GameEngine) player(p PlayerID) (*PlayerState, error) {
	ps, ok := e.state.Players[p]
	if !ok {
		return nil, reject(ReasonNotEntitled, "unknown player %q", p)
	}
	if ps.Eliminated {
		return nil, reject(ReasonNotEntitled, "%s has been eliminated", p)
	}
	return ps, nil
}

// enterPhase resets step scratch and sets up the acting order.
func (e *GameEngine) enterPhase(ph Phase) {
	gs := e.state
	gs.Phase = ph
	gs.Step = StepState{}
	gs.CurrentPlayer = Unowned

	active := gs.ActivePlayers()
	if len(active) == 0 {
		e.finish()
		return
	}
	e.logger.Info("phase entered", zap.String("phase", string(ph)), zap.Int("turn", gs.Turn))

	switch ph {
	case PhaseIssueShares:
		e.beginTurns(active)
	case PhasePlayerOrder:
		e.startAuction(active)
	case PhaseSelectActions:
		for _, id := range gs.PlayOrder {
			gs.Players[id].Action = NoAction
		}
		e.beginTurns(active)
	case PhaseBuildTrack:
		e.beginTurns(holderFirst(gs, active, ActionFirstBuild))
	case PhaseMoveGoods:
		gs.Step.MoveRound = 1
		e.beginTurns(holderFirst(gs, active, ActionFirstMove))
	}
}

func (e *GameEngine) beginTurns(order []PlayerID) {
	e.state.Step.Order = order
	e.state.Step.Index = 0
	e.state.CurrentPlayer = order[0]
}

func holderFirst(gs *GameState, active []PlayerID, a Action) []PlayerID {
	holder, ok := gs.holderOf(a)
	if !ok {
		return active
	}
	out := []PlayerID{holder}
	for _, id := range active {
		if id != holder {
			out = append(out, id)
		}
	}
	return out
}

// nextActor moves the turn to the next player in the step order and
// completes the phase once everyone has acted.
func (e *GameEngine) nextActor() {
	gs := e.state
	gs.Step.Index++
	for gs.Step.Index < len(gs.Step.Order) {
		id := gs.Step.Order[gs.Step.Index]
		if ps := gs.Players[id]; ps != nil && !ps.Eliminated {
			gs.CurrentPlayer = id
			return
		}
		gs.Step.Index++
	}
	if gs.Phase == PhaseMoveGoods && gs.Step.MoveRound < e.rules.MoveRounds {
		gs.Step.MoveRound++
		gs.Step.Index = 0
		gs.CurrentPlayer = gs.Step.Order[0]
		e.logger.Debug("move round started", zap.Int("round", gs.Step.MoveRound))
		return
	}
	e.enterPhase(gs.Phase.next())
}

// LegalActions lists the commands p may issue right now.
func (e *GameEngine) LegalActions(p PlayerID) []string {
	gs := e.state
	if gs.Phase == PhaseTerminal {
		return nil
	}
	if gs.Phase.Computed() {
		return []string{CmdAdvancePhase}
	}
	ps, ok := gs.Players[p]
	if !ok || ps.Eliminated {
		return nil
	}
	if gs.Pending != nil {
		if gs.Pending.Owner() != p {
			return nil
		}
		return pendingActions(gs.Pending)
	}

	var out []string
	if e.canStartProduction(ps) == nil {
		out = append(out, CmdStartProduction)
	}
	if gs.CurrentPlayer != p {
		return out
	}
	switch gs.Phase {
	case PhaseIssueShares:
		if ps.Shares < e.rules.MaxShares {
			out = append(out, CmdIssueShares)
		}
		out = append(out, CmdPassShares)
	case PhasePlayerOrder:
		if ps.Cash > gs.Step.Auction.HighBid {
			out = append(out, CmdBid)
		}
		out = append(out, CmdPassAuction)
		if e.canUseTurnOrderPass(ps) {
			out = append(out, CmdUseTurnOrderPass)
		}
	case PhaseSelectActions:
		out = append(out, CmdSelectAction)
	case PhaseBuildTrack:
		if ps.BuildsUsed < e.buildBudget(ps) {
			out = append(out, CmdBuildTrack, CmdBuildComplexTrack, CmdStartRedirect, CmdRedirectTrack)
			if e.canUrbanize(ps) == nil {
				out = append(out, CmdStartUrbanization, CmdUrbanizeTown)
			}
		}
		out = append(out, CmdEndBuild)
	case PhaseMoveGoods:
		out = append(out, CmdMoveGoods)
		if !ps.LocoUpgraded && ps.Locomotive < e.rules.MaxLocomotive {
			out = append(out, CmdUpgradeLocomotive)
		}
		out = append(out, CmdPassMove)
	}
	sort.Strings(out)
	return out
}

func pendingActions(p Pending) []string {
	switch v := p.(type) {
	case *PendingProduction:
		out := []string{CmdCancelPending, CmdCancelProduction}
		if len(v.SelectedSlots) < 2 {
			out = append(out, CmdSelectProductionSlot)
		} else {
			out = append(out, CmdConfirmProduction)
		}
		return out
	case *PendingRedirect:
		return []string{CmdCancelPending, CmdRedirectTrack}
	case *PendingUrbanization:
		return []string{CmdCancelPending, CmdUrbanizeTown}
	}
	return nil
}

// CancelPending abandons the open interaction owned by p. Drawn production
// cubes go back to the bag.
func (e *GameEngine) CancelPending(p PlayerID) error {
	gs := e.state
	if gs.Pending == nil {
		return reject(ReasonInvalidCommand, "nothing is pending")
	}
	if gs.Pending.Owner() != p {
		return reject(ReasonNotEntitled, "pending %s belongs to %s", gs.Pending.Kind(), gs.Pending.Owner())
	}
	kind := gs.Pending.Kind()
	if prod, ok := gs.Pending.(*PendingProduction); ok {
		gs.Board.Display.putBack(prod.Cubes[:]...)
	}
	gs.Pending = nil
	e.record(p, CmdCancelPending, string(kind))
	return nil
}

// checkInvariants panics when the state is internally inconsistent.
func (e *GameEngine) checkInvariants() {
	gs := e.state
	d := gs.Board.Display
	if total := d.CubesOnDisplay() + len(d.Bag) + len(gs.Delivered); total != gs.TotalCubes {
		invariant("cube count drifted: %d, want %d", total, gs.TotalCubes)
	}
	for id, ps := range gs.Players {
		if ps.Cash < 0 {
			invariant("player %s has negative cash %d", id, ps.Cash)
		}
	}
	for _, t := range gs.Board.Track.Tiles {
		for _, s := range t.Segments {
			if s.Owner == Unowned {
				continue
			}
			if _, ok := gs.Players[s.Owner]; !ok {
				invariant("segment at %s owned by unknown player %s", t.Coord, s.Owner)
			}
		}
	}
}
