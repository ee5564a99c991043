// Package engine implements the rules of a rail network building game.
//
// The engine package implements the game mechanics including:
//   - Map descriptors with terrain, cities, towns and the goods display
//   - Track placement, crossing and coexisting track, and redirects
//   - The goods display, the cube bag, production and goods growth
//   - Delivery routing over connected track
//   - The ten-phase turn sequence, the player order auction and finances
//
// Core Types:
//
// The Engine interface defines the command and query boundary, implemented
// by GameEngine. GameState is the single root of all mutable state and
// serializes to JSON; MapDescriptor is the static board definition loaded
// from JSON files.
//
// Usage:
//
//	desc, err := engine.LoadMapFile("configs/heartland.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng, err := engine.NewEngine(desc, []engine.PlayerSetup{{ID: "a"}, {ID: "b"}, {ID: "c"}},
//		engine.WithLogger(logger), engine.WithSeed(42))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := eng.IssueShares("a", 2); err != nil {
//		fmt.Println(engine.ReasonOf(err))
//	}
//
// Rejected commands return a *RuleError and leave the state unchanged.
// Broken internal invariants panic with *InvariantError.
package engine
