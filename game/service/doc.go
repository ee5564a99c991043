// Package service provides the business logic layer for the rail game server.
//
// The service package implements:
//   - Multi-session game management
//   - Map descriptor listing, loading and saving
//   - Command dispatch with typed rejection reasons
//   - Automatic resolution of computed phases
//   - Paginated command history
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// MapManager loads and validates map descriptors.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the rules engine. It never computes rules itself: every command is handed
// to the engine, and a rejected command comes back as a CommandResult with
// Success false and the engine's reason code. After an accepted command the
// service advances through income, expenses, income reduction, goods growth
// and turn advance until a player has to act again.
//
// Usage:
//
//	sessions := session.NewManager()
//	maps, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessions, maps, logger)
//
//	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{
//		MapID:   "heartland",
//		Players: []engine.PlayerSetup{{ID: "ann"}, {ID: "bob"}, {ID: "cy"}},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := svc.Execute(ctx, info.ID, service.Command{Type: "pass_shares", Player: "ann"})
//
// Concurrency:
//
// Each Session carries its own mutex; commands and queries on one session
// are serialized while different sessions proceed independently.
package service
