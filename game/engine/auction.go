package engine

import (
	"fmt"

	"go.uber.org/zap"
)

func (e *GameEngine) startAuction(active []PlayerID) {
	gs := e.state
	gs.Step.Auction = &AuctionState{
		Bids:     make(map[PlayerID]int, len(active)),
		Active:   append([]PlayerID(nil), active...),
		Dropped:  []PlayerID{},
		PassUsed: map[PlayerID]bool{},
	}
	if len(active) == 1 {
		e.settleAuction()
		return
	}
	gs.CurrentPlayer = active[0]
}

// Bid raises the high bid. It must beat the current high bid and be
// affordable.
func (e *GameEngine) Bid(p PlayerID, amount int) error {
	ps, err := e.actor(p, PhasePlayerOrder, CmdBid)
	if err != nil {
		return err
	}
	a := e.state.Step.Auction
	if amount <= a.HighBid {
		return reject(ReasonInvalidCommand, "bid %d must exceed the high bid of %d", amount, a.HighBid)
	}
	if amount > ps.Cash {
		return reject(ReasonInsufficientFunds, "bid %d exceeds cash %d", amount, ps.Cash)
	}

	a.HighBid = amount
	a.HighBidder = p
	a.Bids[p] = amount
	e.record(p, CmdBid, fmt.Sprintf("$%d", amount))
	e.nextBidder()
	return nil
}

// PassAuction drops p out of the auction. Players who drop out earlier
// take later places in the new order.
func (e *GameEngine) PassAuction(p PlayerID) error {
	if _, err := e.actor(p, PhasePlayerOrder, CmdPassAuction); err != nil {
		return err
	}
	a := e.state.Step.Auction
	idx := indexOf(a.Active, p)
	if idx < 0 {
		invariant("current bidder %s is not in the auction", p)
	}
	a.Active = append(a.Active[:idx:idx], a.Active[idx+1:]...)
	a.Dropped = append(a.Dropped, p)
	e.record(p, CmdPassAuction, fmt.Sprintf("dropped at $%d", a.Bids[p]))

	if len(a.Active) <= 1 {
		e.settleAuction()
		return nil
	}
	// Active shrank, so the next bidder now sits at idx.
	e.seatBidder(idx)
	return nil
}

func (e *GameEngine) canUseTurnOrderPass(ps *PlayerState) bool {
	a := e.state.Step.Auction
	return a != nil && ps.Action == ActionTurnOrderPass && !a.PassUsed[ps.ID]
}

// UseTurnOrderPass lets the holder of the Turn Order Pass action from the
// previous round pass once without leaving the auction.
func (e *GameEngine) UseTurnOrderPass(p PlayerID) error {
	ps, err := e.actor(p, PhasePlayerOrder, CmdUseTurnOrderPass)
	if err != nil {
		return err
	}
	if !e.canUseTurnOrderPass(ps) {
		return reject(ReasonNotEntitled, "%s holds no unused turn order pass", p)
	}
	e.state.Step.Auction.PassUsed[p] = true
	e.record(p, CmdUseTurnOrderPass, "")
	e.nextBidder()
	return nil
}

func (e *GameEngine) nextBidder() {
	e.seatBidder(indexOf(e.state.Step.Auction.Active, e.state.CurrentPlayer) + 1)
}

// seatBidder hands the turn to Active[i], passing over the high bidder,
// who never answers their own bid.
func (e *GameEngine) seatBidder(i int) {
	a := e.state.Step.Auction
	i %= len(a.Active)
	if a.Active[i] == a.HighBidder {
		i = (i + 1) % len(a.Active)
	}
	a.Turn = i
	e.state.CurrentPlayer = a.Active[i]
}

// settleAuction fixes the new play order and charges the bids: the first
// two places pay in full, last place pays nothing and the rest pay half
// rounded up.
func (e *GameEngine) settleAuction() {
	gs := e.state
	a := gs.Step.Auction
	order := append([]PlayerID(nil), a.Active...)
	for i := len(a.Dropped) - 1; i >= 0; i-- {
		order = append(order, a.Dropped[i])
	}
	for i, id := range order {
		bid := a.Bids[id]
		var pay int
		switch {
		case i == len(order)-1:
			pay = 0
		case i < 2:
			pay = bid
		default:
			pay = (bid + 1) / 2
		}
		ps := gs.Players[id]
		if pay > ps.Cash {
			invariant("player %s owes %d for the auction but holds %d", id, pay, ps.Cash)
		}
		ps.Cash -= pay
	}

	// Eliminated players keep their seat at the back so ids stay resolvable.
	for _, id := range gs.PlayOrder {
		if gs.Players[id].Eliminated {
			order = append(order, id)
		}
	}
	gs.PlayOrder = order
	e.record(Unowned, "player_order", fmt.Sprint(order))
	e.logger.Info("player order settled", zap.Any("order", order))
	e.enterPhase(gs.Phase.next())
}

func indexOf(ids []PlayerID, p PlayerID) int {
	for i, id := range ids {
		if id == p {
			return i
		}
	}
	return -1
}
