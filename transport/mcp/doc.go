// Package mcp exposes steamrails to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a request against the
// REST API of a running server, so agents and spectators share the same
// sessions. Results are rendered as plain text summaries.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - game_state, legal_actions, scores, move_history
//   - send_command: any engine command by name
//   - open_edges, delivery_paths: building and routing helpers
//   - list_maps, game_rules
//
// A command the rules reject comes back as a normal result starting with
// REJECTED and the reason; tool errors are reserved for transport failures
// and bad arguments.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", logger)
//	if err := client.Serve(); err != nil { ... }
package mcp
