package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// IssueShares sells n shares to the bank at SharePrice each.
func (e *GameEngine) IssueShares(p PlayerID, n int) error {
	ps, err := e.actor(p, PhaseIssueShares, CmdIssueShares)
	if err != nil {
		return err
	}
	if n < 1 {
		return reject(ReasonInvalidCommand, "must issue at least one share, got %d", n)
	}
	if ps.Shares+n > e.rules.MaxShares {
		return reject(ReasonResourceExhausted, "%d shares would exceed the limit of %d", ps.Shares+n, e.rules.MaxShares)
	}

	ps.Shares += n
	ps.Cash += n * e.rules.SharePrice
	e.record(p, CmdIssueShares, fmt.Sprintf("%d shares for $%d", n, n*e.rules.SharePrice))
	e.nextActor()
	return nil
}

// PassShares ends p's share issue turn without issuing.
func (e *GameEngine) PassShares(p PlayerID) error {
	if _, err := e.actor(p, PhaseIssueShares, CmdPassShares); err != nil {
		return err
	}
	e.record(p, CmdPassShares, "")
	e.nextActor()
	return nil
}

// SelectAction claims a special action for the round. Locomotive takes
// effect immediately.
func (e *GameEngine) SelectAction(p PlayerID, a Action) error {
	ps, err := e.actor(p, PhaseSelectActions, CmdSelectAction)
	if err != nil {
		return err
	}
	if !a.Valid() {
		return reject(ReasonInvalidCommand, "unknown action %q", a)
	}
	if holder, taken := e.state.holderOf(a); taken {
		return reject(ReasonResourceExhausted, "%s already took %s", holder, a)
	}

	ps.Action = a
	if a == ActionLocomotive && ps.Locomotive < e.rules.MaxLocomotive {
		ps.Locomotive++
	}
	e.record(p, CmdSelectAction, string(a))
	e.nextActor()
	return nil
}

func (e *GameEngine) buildBudget(ps *PlayerState) int {
	if ps.Action == ActionEngineer {
		return e.rules.EngineerBuilds
	}
	return e.rules.BuildsPerTurn
}

// builder checks the build-turn guards shared by every build command.
func (e *GameEngine) builder(p PlayerID, cmd string) (*PlayerState, error) {
	ps, err := e.actor(p, PhaseBuildTrack, cmd)
	if err != nil {
		return nil, err
	}
	if ps.BuildsUsed >= e.buildBudget(ps) {
		return nil, reject(ReasonResourceExhausted, "%s has used all %d builds this turn", p, e.buildBudget(ps))
	}
	return ps, nil
}

func requireCash(ps *PlayerState, cost int, what string) error {
	if ps.Cash < cost {
		return reject(ReasonInsufficientFunds, "%s costs $%d, %s has $%d", what, cost, ps.ID, ps.Cash)
	}
	return nil
}

// BuildTrack lays a simple tile on an empty hex.
func (e *GameEngine) BuildTrack(p PlayerID, at hex.Coord, edges []hex.Direction) error {
	ps, err := e.builder(p, CmdBuildTrack)
	if err != nil {
		return err
	}
	b := e.state.Board
	if err := CheckSimpleBuild(b, at, edges, p); err != nil {
		return err
	}
	cost := BuildCost(b, e.rules, at)
	if err := requireCash(ps, cost, "track at "+at.String()); err != nil {
		return err
	}

	ps.Cash -= cost
	ps.BuildsUsed++
	b.Track.Put(&TrackTile{
		Coord: at,
		Form:  FormSimple,
		Segments: []TrackSegment{
			{Owner: p, Edges: [2]hex.Direction{edges[0], edges[1]}, BuiltTurn: e.state.Turn},
		},
	})
	e.record(p, CmdBuildTrack, fmt.Sprintf("%s %s-%s for $%d", at, edges[0], edges[1], cost))
	return nil
}

// BuildComplexTrack adds a crossing or coexisting segment to a hex that
// holds a single simple tile. The existing segment is left untouched.
func (e *GameEngine) BuildComplexTrack(p PlayerID, at hex.Coord, edges []hex.Direction, mode TrackForm) error {
	ps, err := e.builder(p, CmdBuildComplexTrack)
	if err != nil {
		return err
	}
	b := e.state.Board
	if err := CheckComplexBuild(b, at, edges, mode, p); err != nil {
		return err
	}
	cost := ComplexCost(e.rules, mode)
	if err := requireCash(ps, cost, string(mode)+" track"); err != nil {
		return err
	}

	t, _ := b.Track.Get(at)
	ps.Cash -= cost
	ps.BuildsUsed++
	t.Form = mode
	t.Segments = append(t.Segments, TrackSegment{
		Owner:     p,
		Edges:     [2]hex.Direction{edges[0], edges[1]},
		BuiltTurn: e.state.Turn,
	})
	e.record(p, CmdBuildComplexTrack, fmt.Sprintf("%s %s %s-%s for $%d", mode, at, edges[0], edges[1], cost))
	return nil
}

// StartRedirect opens a redirect interaction listing the legal new edges.
func (e *GameEngine) StartRedirect(p PlayerID, at hex.Coord) ([]hex.Direction, error) {
	if _, err := e.builder(p, CmdStartRedirect); err != nil {
		return nil, err
	}
	candidates, err := RedirectCandidates(e.state.Board, at, p)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, reject(ReasonInvalidPlacement, "track at %s cannot be redirected anywhere", at)
	}
	e.state.Pending = &PendingRedirect{Player: p, Coord: at, Candidates: candidates}
	e.record(p, CmdStartRedirect, at.String())
	return append([]hex.Direction(nil), candidates...), nil
}

// RedirectTrack swings the open edge of an unfinished tile toward newEdge.
// It resolves a matching PendingRedirect or runs as a single step.
func (e *GameEngine) RedirectTrack(p PlayerID, at hex.Coord, newEdge hex.Direction) error {
	var ps *PlayerState
	if pr, ok := e.state.Pending.(*PendingRedirect); ok && pr.Player == p {
		if pr.Coord != at {
			return reject(ReasonInvalidCommand, "pending redirect is for %s, not %s", pr.Coord, at)
		}
		var err error
		if ps, err = e.player(p); err != nil {
			return err
		}
	} else {
		var err error
		if ps, err = e.builder(p, CmdRedirectTrack); err != nil {
			return err
		}
	}
	b := e.state.Board
	t, _, open, err := redirectable(b, at, p)
	if err != nil {
		return err
	}
	candidates, err := RedirectCandidates(b, at, p)
	if err != nil {
		return err
	}
	if !containsDirection(candidates, newEdge) {
		return reject(ReasonInvalidPlacement, "%s is not a legal redirect for %s", newEdge, at)
	}
	if err := requireCash(ps, e.rules.RedirectCost, "redirect"); err != nil {
		return err
	}

	seg := &t.Segments[0]
	if seg.Edges[0] == open {
		seg.Edges[0] = newEdge
	} else {
		seg.Edges[1] = newEdge
	}
	seg.BuiltTurn = e.state.Turn
	ps.Cash -= e.rules.RedirectCost
	ps.BuildsUsed++
	e.state.Pending = nil
	e.record(p, CmdRedirectTrack, fmt.Sprintf("%s %s->%s for $%d", at, open, newEdge, e.rules.RedirectCost))
	return nil
}

func containsDirection(ds []hex.Direction, d hex.Direction) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

func (e *GameEngine) canUrbanize(ps *PlayerState) error {
	if ps.Action != ActionUrbanize {
		return reject(ReasonNotEntitled, "%s did not take urbanization", ps.ID)
	}
	if ps.Urbanized {
		return reject(ReasonResourceExhausted, "%s already urbanized this turn", ps.ID)
	}
	if ps.BuildsUsed > 0 {
		return reject(ReasonIllegalPhase, "urbanization must happen before any build")
	}
	return nil
}

func (e *GameEngine) unusedTile(id string) (*NewCityTile, error) {
	tile, ok := e.state.Board.NewCityTile(id)
	if !ok {
		return nil, reject(ReasonInvalidCommand, "unknown new city tile %q", id)
	}
	if tile.Used {
		return nil, reject(ReasonResourceExhausted, "new city tile %s is already placed", id)
	}
	return tile, nil
}

// StartUrbanization picks a new city tile and waits for a town.
func (e *GameEngine) StartUrbanization(p PlayerID, tileID string) error {
	ps, err := e.builder(p, CmdStartUrbanization)
	if err != nil {
		return err
	}
	if err := e.canUrbanize(ps); err != nil {
		return err
	}
	if _, err := e.unusedTile(tileID); err != nil {
		return err
	}
	e.state.Pending = &PendingUrbanization{Player: p, TileID: tileID}
	e.record(p, CmdStartUrbanization, tileID)
	return nil
}

// UrbanizeTown turns a town into a city of the tile's color and brings the
// tile's goods columns into play. It counts as a build.
func (e *GameEngine) UrbanizeTown(p PlayerID, town hex.Coord, tileID string) error {
	var ps *PlayerState
	var err error
	if pu, ok := e.state.Pending.(*PendingUrbanization); ok && pu.Player == p {
		if tileID == "" {
			tileID = pu.TileID
		}
		if tileID != pu.TileID {
			return reject(ReasonInvalidCommand, "pending urbanization uses tile %s", pu.TileID)
		}
		if ps, err = e.player(p); err != nil {
			return err
		}
	} else if ps, err = e.builder(p, CmdUrbanizeTown); err != nil {
		return err
	}
	if err := e.canUrbanize(ps); err != nil {
		return err
	}
	tile, err := e.unusedTile(tileID)
	if err != nil {
		return err
	}
	b := e.state.Board
	t, ok := b.TownAt(town)
	if !ok {
		return reject(ReasonInvalidPlacement, "no town at %s", town)
	}
	if t.Urbanized {
		return reject(ReasonInvalidPlacement, "%s is already a city", t.Name)
	}
	if _, ok := b.Track.Get(town); ok {
		return reject(ReasonInvalidPlacement, "%s already holds track", t.Name)
	}
	if err := requireCash(ps, e.rules.UrbanizeCost, "urbanization"); err != nil {
		return err
	}

	ps.Cash -= e.rules.UrbanizeCost
	ps.BuildsUsed++
	ps.Urbanized = true
	tile.Used = true
	t.Urbanized = true
	city := &City{Coord: town, Name: t.Name, Color: tile.Color, TileID: tile.ID}
	for _, col := range b.Display.Columns {
		if col.NewCityLetter == tile.ID {
			col.Active = true
			city.Columns = append(city.Columns, col.ID)
		}
	}
	b.Cities = append(b.Cities, city)
	e.state.Pending = nil
	e.record(p, CmdUrbanizeTown, fmt.Sprintf("%s becomes %s city %s", t.Name, tile.Color, tile.ID))
	return nil
}

func (e *GameEngine) canStartProduction(ps *PlayerState) error {
	gs := e.state
	switch gs.Phase {
	case PhaseSelectActions:
	case PhaseBuildTrack:
		if gs.CurrentPlayer != ps.ID {
			return reject(ReasonNotEntitled, "production happens on %s's own build turn", ps.ID)
		}
	default:
		return reject(ReasonIllegalPhase, "production is not allowed during %s", gs.Phase)
	}
	if gs.Pending != nil {
		return reject(ReasonIllegalPhase, "%s is pending", gs.Pending.Kind())
	}
	if ps.Action != ActionProduction {
		return reject(ReasonNotEntitled, "%s did not take production", ps.ID)
	}
	if ps.ProductionUsed {
		return reject(ReasonResourceExhausted, "production already used this turn")
	}
	d := gs.Board.Display
	if len(d.Bag) < 2 {
		return reject(ReasonResourceExhausted, "bag holds %d cubes", len(d.Bag))
	}
	if len(d.EmptySlots()) < 2 {
		return reject(ReasonResourceExhausted, "display has fewer than 2 empty slots")
	}
	return nil
}

// StartProduction draws two cubes for the production holder to place.
func (e *GameEngine) StartProduction(p PlayerID) ([2]Color, error) {
	ps, err := e.player(p)
	if err != nil {
		return [2]Color{}, err
	}
	if err := e.canStartProduction(ps); err != nil {
		return [2]Color{}, err
	}
	d := e.state.Board.Display
	var cubes [2]Color
	cubes[0], _ = d.draw()
	cubes[1], _ = d.draw()
	e.state.Pending = &PendingProduction{Player: p, Cubes: cubes, SelectedSlots: []int{}}
	e.record(p, CmdStartProduction, fmt.Sprintf("drew %s and %s", cubes[0], cubes[1]))
	return cubes, nil
}

func (e *GameEngine) ownProduction(p PlayerID) (*PendingProduction, error) {
	pp, ok := e.state.Pending.(*PendingProduction)
	if !ok {
		return nil, reject(ReasonIllegalPhase, "no production in progress")
	}
	if pp.Player != p {
		return nil, reject(ReasonNotEntitled, "production belongs to %s", pp.Player)
	}
	return pp, nil
}

// SelectProductionSlot chooses the next empty slot for a drawn cube.
func (e *GameEngine) SelectProductionSlot(p PlayerID, slot int) error {
	pp, err := e.ownProduction(p)
	if err != nil {
		return err
	}
	if len(pp.SelectedSlots) >= 2 {
		return reject(ReasonInvalidPlacement, "both slots already chosen")
	}
	cube, ok := e.state.Board.Display.CubeAt(slot)
	if !ok {
		return reject(ReasonInvalidPlacement, "slot %d does not exist", slot)
	}
	if cube != "" {
		return reject(ReasonInvalidPlacement, "slot %d is occupied", slot)
	}
	for _, s := range pp.SelectedSlots {
		if s == slot {
			return reject(ReasonInvalidPlacement, "slot %d already chosen", slot)
		}
	}
	pp.SelectedSlots = append(pp.SelectedSlots, slot)
	e.record(p, CmdSelectProductionSlot, fmt.Sprint(slot))
	return nil
}

// ConfirmProduction places both drawn cubes at once.
func (e *GameEngine) ConfirmProduction(p PlayerID) error {
	pp, err := e.ownProduction(p)
	if err != nil {
		return err
	}
	if len(pp.SelectedSlots) != 2 {
		return reject(ReasonInvalidPlacement, "choose 2 slots before confirming, %d chosen", len(pp.SelectedSlots))
	}
	d := e.state.Board.Display
	for _, s := range pp.SelectedSlots {
		if c, _ := d.CubeAt(s); c != "" {
			invariant("production slot %d filled while pending", s)
		}
	}

	d.place(pp.SelectedSlots[0], pp.Cubes[0])
	d.place(pp.SelectedSlots[1], pp.Cubes[1])
	e.state.Players[p].ProductionUsed = true
	e.state.Pending = nil
	e.record(p, CmdConfirmProduction, fmt.Sprintf("%s->%d %s->%d", pp.Cubes[0], pp.SelectedSlots[0], pp.Cubes[1], pp.SelectedSlots[1]))
	return nil
}

// CancelProduction returns the drawn cubes to the bag.
func (e *GameEngine) CancelProduction(p PlayerID) error {
	if _, err := e.ownProduction(p); err != nil {
		return err
	}
	return e.CancelPending(p)
}

// EndBuild finishes p's build turn. Unfinished track p did not build or
// redirect this turn loses its owner.
func (e *GameEngine) EndBuild(p PlayerID) error {
	if _, err := e.actor(p, PhaseBuildTrack, CmdEndBuild); err != nil {
		return err
	}
	b := e.state.Board
	var lost []*TrackSegment
	for _, t := range b.Track.All() {
		for i := range t.Segments {
			s := &t.Segments[i]
			if s.Owner == p && s.BuiltTurn != e.state.Turn && unfinished(b, t.Coord, *s) {
				lost = append(lost, s)
			}
		}
	}
	for _, s := range lost {
		s.Owner = Unowned
	}
	if len(lost) > 0 {
		e.logger.Info("unfinished track released", zap.String("player", string(p)), zap.Int("segments", len(lost)))
	}
	e.record(p, CmdEndBuild, fmt.Sprintf("released %d", len(lost)))
	e.nextActor()
	return nil
}

// MoveGoods delivers the cube in slot. An empty path selects the first
// path the router finds.
func (e *GameEngine) MoveGoods(p PlayerID, slot int, path []hex.Coord) (*DeliveryPath, error) {
	ps, err := e.actor(p, PhaseMoveGoods, CmdMoveGoods)
	if err != nil {
		return nil, err
	}
	b := e.state.Board
	opts := e.routeOptions(ps)
	var chosen DeliveryPath
	if len(path) == 0 {
		paths, err := FindDeliveryPaths(b, slot, p, opts)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, reject(ReasonNoRoute, "no delivery route for slot %d", slot)
		}
		chosen = paths[0]
	} else {
		chosen, err = TracePath(b, slot, p, path, opts)
		if err != nil {
			return nil, err
		}
	}
	fee := len(chosen.ForeignLinks) * e.rules.ForeignLinkFee
	if err := requireCash(ps, fee, "foreign track use"); err != nil {
		return nil, err
	}

	cube, ok := b.Display.TakeCube(slot)
	if !ok {
		invariant("slot %d emptied between routing and delivery", slot)
	}
	e.state.Delivered = append(e.state.Delivered, cube)
	payout := e.rules.PayoutFor(chosen.Length())
	ps.Income += payout
	for _, l := range chosen.ForeignLinks {
		ps.Cash -= e.rules.ForeignLinkFee
		e.state.Players[l.Owner].Cash += e.rules.ForeignLinkFee
	}
	e.record(p, CmdMoveGoods, fmt.Sprintf("%s cube %s->%s over %d links, +%d income", cube, chosen.Origin, chosen.Destination, chosen.Length(), payout))
	e.nextActor()
	return &chosen, nil
}

// UpgradeLocomotive spends the move turn raising the locomotive by one.
func (e *GameEngine) UpgradeLocomotive(p PlayerID) error {
	ps, err := e.actor(p, PhaseMoveGoods, CmdUpgradeLocomotive)
	if err != nil {
		return err
	}
	if ps.LocoUpgraded {
		return reject(ReasonResourceExhausted, "locomotive already upgraded this turn")
	}
	if ps.Locomotive >= e.rules.MaxLocomotive {
		return reject(ReasonResourceExhausted, "locomotive is at the maximum of %d", e.rules.MaxLocomotive)
	}
	ps.Locomotive++
	ps.LocoUpgraded = true
	e.record(p, CmdUpgradeLocomotive, fmt.Sprint(ps.Locomotive))
	e.nextActor()
	return nil
}

// PassMove skips p's move turn.
func (e *GameEngine) PassMove(p PlayerID) error {
	if _, err := e.actor(p, PhaseMoveGoods, CmdPassMove); err != nil {
		return err
	}
	e.record(p, CmdPassMove, "")
	e.nextActor()
	return nil
}

// AdvancePhase runs the current computed phase and moves on.
func (e *GameEngine) AdvancePhase() error {
	gs := e.state
	if !gs.Phase.Computed() {
		return reject(ReasonIllegalPhase, "%s waits for player input", gs.Phase)
	}
	if gs.Pending != nil {
		invariant("pending %s open during %s", gs.Pending.Kind(), gs.Phase)
	}
	switch gs.Phase {
	case PhaseCollectIncome:
		e.collectIncome()
	case PhasePayExpenses:
		e.payExpenses()
	case PhaseIncomeReduction:
		e.reduceIncome()
	case PhaseGoodsGrowth:
		e.growGoods()
	case PhaseAdvanceTurn:
		e.advanceTurn()
		e.checkInvariants()
		return nil
	}
	e.checkInvariants()
	e.enterPhase(gs.Phase.next())
	return nil
}
