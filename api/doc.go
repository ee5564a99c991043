// Package api provides the HTTP REST API for steamrails game sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session {map_id, players, seed}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/{id} - Session summary with state
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Full game state
//   - POST /api/sessions/{id}/commands - Execute one command
//   - GET /api/sessions/{id}/legal-actions?player=p
//   - GET /api/sessions/{id}/open-edges?player=p&col=c&row=r
//   - GET /api/sessions/{id}/delivery-paths?player=p&slot=n
//   - GET /api/sessions/{id}/scores
//   - GET /api/sessions/{id}/history?page=1&limit=20&order=desc
//   - GET /api/commands - Names of every command
//
// Maps:
//   - GET /api/maps - List map descriptors
//   - POST /api/maps - Validate and store {map_id, map}
//   - GET /api/maps/{name} - One descriptor
//
// Other:
//   - GET /ws?session=id - Spectator WebSocket
//   - GET /metrics - Prometheus metrics
//   - GET /healthz - Liveness
//
// A command the rules reject is answered with 200 and a body whose success
// field is false and whose reason names the rule. Non-2xx statuses are
// reserved for transport problems: 400 for malformed input, 404 for unknown
// sessions or maps, 409 for duplicate session IDs, 422 for queries the
// rules refuse (such as an empty goods slot) and 500 for broken engine
// invariants.
//
// Example:
//
//	curl -X POST localhost:8080/api/sessions/ab12cd34/commands \
//	  -d '{"type":"issue_shares","player":"ann","amount":2}'
package api
