package engine

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// collectIncome pays every player their income. Negative income is taken
// from cash and any shortfall is charged against income instead.
func (e *GameEngine) collectIncome() {
	gs := e.state
	for _, id := range gs.ActivePlayers() {
		ps := gs.Players[id]
		ps.Cash += ps.Income
		if ps.Cash < 0 {
			ps.Income += ps.Cash
			ps.Cash = 0
		}
	}
	e.checkEliminations()
	e.record(Unowned, string(PhaseCollectIncome), "")
}

// payExpenses charges one dollar per share and per locomotive level.
func (e *GameEngine) payExpenses() {
	gs := e.state
	for _, id := range gs.ActivePlayers() {
		ps := gs.Players[id]
		cost := ps.Shares + ps.Locomotive
		if ps.Cash >= cost {
			ps.Cash -= cost
			continue
		}
		short := cost - ps.Cash
		ps.Cash = 0
		ps.Income -= short
		e.logger.Info("expenses short",
			zap.String("player", string(id)),
			zap.Int("shortfall", short),
			zap.Int("income", ps.Income))
	}
	e.checkEliminations()
	e.record(Unowned, string(PhasePayExpenses), "")
}

func (e *GameEngine) checkEliminations() {
	gs := e.state
	for _, id := range gs.ActivePlayers() {
		if gs.Players[id].Income < e.rules.MinIncome {
			e.eliminate(id)
		}
	}
}

// eliminate removes p from play. Their track becomes unowned.
func (e *GameEngine) eliminate(p PlayerID) {
	gs := e.state
	ps := gs.Players[p]
	ps.Eliminated = true
	ps.Action = NoAction
	released := 0
	for _, t := range gs.Board.Track.Tiles {
		for i := range t.Segments {
			if t.Segments[i].Owner == p {
				t.Segments[i].Owner = Unowned
				released++
			}
		}
	}
	e.record(p, "eliminated", fmt.Sprintf("income %d, %d segments released", ps.Income, released))
	e.logger.Info("player eliminated",
		zap.String("player", string(p)),
		zap.Int("income", ps.Income),
		zap.Int("segments_released", released))
}

// reduceIncome applies the income reduction table.
func (e *GameEngine) reduceIncome() {
	gs := e.state
	for _, id := range gs.ActivePlayers() {
		ps := gs.Players[id]
		ps.Income -= e.rules.ReductionFor(ps.Income)
	}
	e.record(Unowned, string(PhaseIncomeReduction), "")
}

// growGoods rolls one light and one dark die per active player.
func (e *GameEngine) growGoods() {
	gs := e.state
	dice := RollGrowth(e.rng, len(gs.ActivePlayers()))
	results := gs.Board.Display.Grow(dice)
	placed := 0
	for _, r := range results {
		if r.Cube != "" && !r.Discarded {
			placed++
		}
	}
	e.record(Unowned, string(PhaseGoodsGrowth), fmt.Sprintf("%d dice, %d cubes placed", len(dice), placed))
	e.logger.Debug("goods grown", zap.Any("dice", dice), zap.Int("placed", placed))
}

// advanceTurn starts the next turn or ends the game after the last one.
func (e *GameEngine) advanceTurn() {
	gs := e.state
	if gs.Turn >= gs.MaxTurns {
		e.finish()
		return
	}
	gs.Turn++
	for _, ps := range gs.Players {
		ps.BuildsUsed = 0
		ps.Urbanized = false
		ps.LocoUpgraded = false
		ps.ProductionUsed = false
	}
	e.record(Unowned, string(PhaseAdvanceTurn), fmt.Sprintf("turn %d", gs.Turn))
	e.enterPhase(PhaseIssueShares)
}

// score is 3 per income, minus 3 per share, plus 1 per owned segment.
func score(b *BoardState, ps *PlayerState) int {
	if ps.Eliminated {
		return 0
	}
	return 3*ps.Income - 3*ps.Shares + b.SegmentsOf(ps.ID)
}

// finish enters the terminal phase and fixes final scores.
func (e *GameEngine) finish() {
	gs := e.state
	gs.Phase = PhaseTerminal
	gs.Step = StepState{}
	gs.CurrentPlayer = Unowned
	gs.Scores = e.Scores()

	ids := append([]PlayerID(nil), gs.Seats...)
	sort.SliceStable(ids, func(i, j int) bool {
		return gs.Scores[ids[i]] > gs.Scores[ids[j]]
	})
	gs.Winner = Unowned
	for _, id := range ids {
		if !gs.Players[id].Eliminated {
			gs.Winner = id
			break
		}
	}
	e.record(gs.Winner, "game_over", fmt.Sprint(gs.Scores))
	e.logger.Info("game over", zap.String("winner", string(gs.Winner)), zap.Any("scores", gs.Scores))
}
