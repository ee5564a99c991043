// Package websocket pushes game state to spectators of a steamrails session.
//
// The package uses a hub-and-spoke model where a central Hub owns every
// connection. Registration, broadcasts and client counts are serialized
// through channels consumed by Hub.Run, so no locks guard the session map.
//
// Message Protocol:
//
// The socket is one-way. Clients connect with ?session=<id> and receive
// JSON messages of the form
//
//	{"session_id": "...", "event": "...", "game_state": {...}, "data": ...}
//
// Events:
//   - snapshot: the state at connect time
//   - state_update: sent after every accepted command; data holds the
//     command's events
//   - session_deleted: the session is gone
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//	hub.ServeWS(w, r, sessionID, state)
//	hub.BroadcastToSession(sessionID, state, events)
//
// Slow clients whose send buffer is full are disconnected rather than
// allowed to stall the hub.
package websocket
