package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/steamrails/api"
	"github.com/wricardo/mcp-training/steamrails/game/config"
	"github.com/wricardo/mcp-training/steamrails/game/service"
	"github.com/wricardo/mcp-training/steamrails/game/session"
)

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// newTestClient runs the REST API in-process and points a client at it.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	maps, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	svc := service.NewGameService(session.NewManager(), maps, nil)
	srv := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil)
}

func call(t *testing.T, h toolHandler, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

var sessionLine = regexp.MustCompile(`Created session: (\S+)`)

func createGame(t *testing.T, c *Client) string {
	t.Helper()
	text, isErr := call(t, c.handleCreateSession, map[string]any{
		"players": []any{"ann", "bob", "cy"},
		"seed":    11,
	})
	require.False(t, isErr, text)
	m := sessionLine.FindStringSubmatch(text)
	require.Len(t, m, 2, text)
	return m[1]
}

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/", nil)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.NotNil(t, c.httpClient)
	assert.NotNil(t, c.GetMCPServer())
}

func TestClient_apiCall(t *testing.T) {
	t.Run("error body is surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"session x: session not found"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, nil).apiCall(context.Background(), "GET", "/api/sessions/x", nil, nil)
		assert.EqualError(t, err, "session x: session not found")
	})

	t.Run("plain status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer srv.Close()

		err := NewClient(srv.URL, nil).apiCall(context.Background(), "GET", "/", nil, nil)
		assert.EqualError(t, err, "API error: 500")
	})

	t.Run("unreachable", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1", nil).apiCall(context.Background(), "GET", "/", nil, nil)
		assert.Error(t, err)
	})
}

func TestCreateAndListSessions(t *testing.T) {
	c := newTestClient(t)
	id := createGame(t, c)

	text, isErr := call(t, c.handleListSessions, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "Active Sessions (1)")
	assert.Contains(t, text, id)
	assert.Contains(t, text, "waiting on ann")

	text, isErr = call(t, c.handleGetSession, map[string]any{"session_id": id})
	require.False(t, isErr)
	assert.Contains(t, text, "map: heartland")

	t.Run("too few players", func(t *testing.T) {
		text, isErr := call(t, c.handleCreateSession, map[string]any{"players": []any{"solo"}})
		assert.True(t, isErr)
		assert.NotEmpty(t, text)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, isErr := call(t, c.handleGetSession, map[string]any{"session_id": "nope"})
		assert.True(t, isErr)
	})

	t.Run("missing session id", func(t *testing.T) {
		_, isErr := call(t, c.handleGameState, map[string]any{})
		assert.True(t, isErr)
	})
}

func TestGameStateAndLegalActions(t *testing.T) {
	c := newTestClient(t)
	id := createGame(t, c)

	text, isErr := call(t, c.handleGameState, map[string]any{"session_id": id})
	require.False(t, isErr)
	assert.Contains(t, text, "Turn 1/10")
	assert.Contains(t, text, "Phase: issue_shares")
	assert.Contains(t, text, "Current player: ann")
	assert.Contains(t, text, "cash $10, income 0, shares 2, loco 1")
	assert.Contains(t, text, "Goods display")

	text, isErr = call(t, c.handleLegalActions, map[string]any{"session_id": id, "player": "ann"})
	require.False(t, isErr)
	assert.Contains(t, text, "ann may send: issue_shares, pass_shares")

	text, isErr = call(t, c.handleLegalActions, map[string]any{"session_id": id, "player": "bob"})
	require.False(t, isErr)
	assert.Contains(t, text, "bob has nothing to do right now")
}

func TestSendCommand(t *testing.T) {
	c := newTestClient(t)
	id := createGame(t, c)

	text, isErr := call(t, c.handleSendCommand, map[string]any{
		"session_id": id,
		"type":       "issue_shares",
		"player":     "ann",
		"amount":     2,
		"intent":     "raise cash for early track",
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "OK: issue_shares applied")
	assert.Contains(t, text, "cash $20")

	text, isErr = call(t, c.handleSendCommand, map[string]any{
		"session_id": id,
		"type":       "pass_shares",
		"player":     "ann",
	})
	require.False(t, isErr, "rule rejections are results, not tool errors")
	assert.Contains(t, text, "REJECTED (not_entitled)")

	text, isErr = call(t, c.handleSendCommand, map[string]any{"type": "pass_shares", "player": "bob"})
	assert.True(t, isErr)
	assert.Contains(t, text, "session_id")
}

func TestQueries(t *testing.T) {
	c := newTestClient(t)
	id := createGame(t, c)

	text, isErr := call(t, c.handleOpenEdges, map[string]any{"session_id": id, "player": "ann", "col": 0, "row": 0})
	require.False(t, isErr)
	assert.Contains(t, text, "no open track ends")

	text, isErr = call(t, c.handleDeliveryPaths, map[string]any{"session_id": id, "player": "ann", "slot": 9999})
	assert.True(t, isErr)
	assert.Contains(t, text, "slot 9999")

	text, isErr = call(t, c.handleScores, map[string]any{"session_id": id})
	require.False(t, isErr)
	assert.Contains(t, text, "Running scores")
	assert.Contains(t, text, "ann: -6")

	call(t, c.handleSendCommand, map[string]any{"session_id": id, "type": "pass_shares", "player": "ann"})
	text, isErr = call(t, c.handleMoveHistory, map[string]any{"session_id": id, "limit": 5})
	require.False(t, isErr)
	assert.Contains(t, text, "1 entries")
	assert.Contains(t, text, "ann: pass_shares")
}

func TestMapsAndRules(t *testing.T) {
	c := newTestClient(t)

	text, isErr := call(t, c.handleListMaps, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "heartland")
	assert.Contains(t, text, "6 cities, 8 towns, 96 cubes")

	text, isErr = call(t, c.handleGameRules, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "TURN STRUCTURE")
	assert.NotContains(t, text, "RULESET FOR SESSION")

	id := createGame(t, c)
	text, isErr = call(t, c.handleGameRules, map[string]any{"session_id": id})
	require.False(t, isErr)
	assert.Contains(t, text, "RULESET FOR SESSION "+id+" (10 turns)")
	assert.Contains(t, text, "starting_cash")
}
