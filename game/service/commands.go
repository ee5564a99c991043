package service

import (
	"fmt"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
)

// CommandTypes lists every command name Execute understands.
var CommandTypes = []string{
	engine.CmdIssueShares,
	engine.CmdPassShares,
	engine.CmdBid,
	engine.CmdPassAuction,
	engine.CmdUseTurnOrderPass,
	engine.CmdSelectAction,
	engine.CmdBuildTrack,
	engine.CmdBuildComplexTrack,
	engine.CmdStartRedirect,
	engine.CmdRedirectTrack,
	engine.CmdStartUrbanization,
	engine.CmdUrbanizeTown,
	engine.CmdStartProduction,
	engine.CmdSelectProductionSlot,
	engine.CmdConfirmProduction,
	engine.CmdCancelProduction,
	engine.CmdCancelPending,
	engine.CmdEndBuild,
	engine.CmdMoveGoods,
	engine.CmdUpgradeLocomotive,
	engine.CmdPassMove,
	engine.CmdAdvancePhase,
}

func missing(cmd Command, field string) error {
	return &engine.RuleError{
		Reason:  engine.ReasonInvalidCommand,
		Message: fmt.Sprintf("%s requires %s", cmd.Type, field),
	}
}

// dispatch maps a command onto the engine and fills the command specific
// parts of result.
func dispatch(eng engine.Engine, cmd Command, result *CommandResult) error {
	p := cmd.Player
	switch cmd.Type {
	case engine.CmdIssueShares:
		return eng.IssueShares(p, cmd.Amount)
	case engine.CmdPassShares:
		return eng.PassShares(p)
	case engine.CmdBid:
		return eng.Bid(p, cmd.Amount)
	case engine.CmdPassAuction:
		return eng.PassAuction(p)
	case engine.CmdUseTurnOrderPass:
		return eng.UseTurnOrderPass(p)
	case engine.CmdSelectAction:
		return eng.SelectAction(p, cmd.Action)

	case engine.CmdBuildTrack:
		if cmd.At == nil {
			return missing(cmd, "at")
		}
		return eng.BuildTrack(p, *cmd.At, cmd.Edges)
	case engine.CmdBuildComplexTrack:
		if cmd.At == nil {
			return missing(cmd, "at")
		}
		return eng.BuildComplexTrack(p, *cmd.At, cmd.Edges, cmd.Form)
	case engine.CmdStartRedirect:
		if cmd.At == nil {
			return missing(cmd, "at")
		}
		candidates, err := eng.StartRedirect(p, *cmd.At)
		result.Candidates = candidates
		return err
	case engine.CmdRedirectTrack:
		if cmd.At == nil {
			return missing(cmd, "at")
		}
		if cmd.Edge == nil {
			return missing(cmd, "edge")
		}
		return eng.RedirectTrack(p, *cmd.At, *cmd.Edge)
	case engine.CmdStartUrbanization:
		if cmd.TileID == "" {
			return missing(cmd, "tile_id")
		}
		return eng.StartUrbanization(p, cmd.TileID)
	case engine.CmdUrbanizeTown:
		if cmd.At == nil {
			return missing(cmd, "at")
		}
		return eng.UrbanizeTown(p, *cmd.At, cmd.TileID)
	case engine.CmdStartProduction:
		cubes, err := eng.StartProduction(p)
		if err == nil {
			result.Cubes = cubes[:]
		}
		return err
	case engine.CmdSelectProductionSlot:
		if cmd.Slot == nil {
			return missing(cmd, "slot")
		}
		return eng.SelectProductionSlot(p, *cmd.Slot)
	case engine.CmdConfirmProduction:
		return eng.ConfirmProduction(p)
	case engine.CmdCancelProduction:
		return eng.CancelProduction(p)
	case engine.CmdCancelPending:
		return eng.CancelPending(p)
	case engine.CmdEndBuild:
		return eng.EndBuild(p)

	case engine.CmdMoveGoods:
		if cmd.Slot == nil {
			return missing(cmd, "slot")
		}
		path, err := eng.MoveGoods(p, *cmd.Slot, cmd.Path)
		result.Delivery = path
		return err
	case engine.CmdUpgradeLocomotive:
		return eng.UpgradeLocomotive(p)
	case engine.CmdPassMove:
		return eng.PassMove(p)
	case engine.CmdAdvancePhase:
		return eng.AdvancePhase()
	}
	return &engine.RuleError{
		Reason:  engine.ReasonInvalidCommand,
		Message: fmt.Sprintf("unknown command %q", cmd.Type),
	}
}
