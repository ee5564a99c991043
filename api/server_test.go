package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/steamrails/game/config"
	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/hex"
	"github.com/wricardo/mcp-training/steamrails/game/service"
	"github.com/wricardo/mcp-training/steamrails/game/session"
	"github.com/wricardo/mcp-training/steamrails/transport/websocket"
)

// MockGameService implements service.GameService for testing. Unset
// funcs fail with a plain error.
type MockGameService struct {
	CreateSessionFunc func(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error
	ExecuteFunc       func(ctx context.Context, sessionID string, cmd service.Command) (*service.CommandResult, error)
	GetGameStateFunc  func(ctx context.Context, sessionID string) (*engine.GameState, error)
}

var errUnset = fmt.Errorf("not configured")

func (m *MockGameService) CreateSession(ctx context.Context, req service.CreateSessionRequest) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	return nil, errUnset
}

func (m *MockGameService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, errUnset
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return nil, nil
}

func (m *MockGameService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return errUnset
}

func (m *MockGameService) Execute(ctx context.Context, sessionID string, cmd service.Command) (*service.CommandResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, sessionID, cmd)
	}
	return nil, errUnset
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	if m.GetGameStateFunc != nil {
		return m.GetGameStateFunc(ctx, sessionID)
	}
	return nil, errUnset
}

func (m *MockGameService) LegalActions(ctx context.Context, sessionID string, player engine.PlayerID) (*service.LegalActionsResponse, error) {
	return nil, errUnset
}

func (m *MockGameService) OpenEdges(ctx context.Context, sessionID string, player engine.PlayerID, at hex.Coord) ([]hex.Direction, error) {
	return nil, errUnset
}

func (m *MockGameService) DeliveryPaths(ctx context.Context, sessionID string, player engine.PlayerID, slot int) ([]engine.DeliveryPath, error) {
	return nil, errUnset
}

func (m *MockGameService) Scores(ctx context.Context, sessionID string) (*service.ScoresResponse, error) {
	return nil, errUnset
}

func (m *MockGameService) GetHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	return nil, errUnset
}

func (m *MockGameService) ListMaps(ctx context.Context) ([]*service.MapInfo, error) {
	return nil, errUnset
}

func (m *MockGameService) LoadMap(ctx context.Context, mapID string) (*engine.MapDescriptor, error) {
	return nil, errUnset
}

func (m *MockGameService) SaveMap(ctx context.Context, mapID string, desc *engine.MapDescriptor) error {
	return errUnset
}

// newTestServer wires a server over real session and map managers.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	maps, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	svc := service.NewGameService(session.NewManager(), maps, nil)
	return NewServer(svc, nil)
}

func makeRequest(method, url string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, s http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, makeRequest(method, url, body))
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

var createBody = map[string]any{
	"players": []map[string]string{{"id": "ann"}, {"id": "bob"}, {"id": "cy"}},
	"seed":    11,
}

func createSession(t *testing.T, s http.Handler) string {
	t.Helper()
	w := do(t, s, "POST", "/api/sessions", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var info service.SessionInfo
	parseResponse(t, w, &info)
	return info.ID
}

func TestCreateSession(t *testing.T) {
	s := newTestServer(t)

	t.Run("default map", func(t *testing.T) {
		w := do(t, s, "POST", "/api/sessions", createBody)
		require.Equal(t, http.StatusCreated, w.Code)

		var info service.SessionInfo
		parseResponse(t, w, &info)
		assert.Len(t, info.ID, 8)
		assert.Equal(t, config.DefaultMapID, info.MapID)
		assert.Equal(t, uint64(11), info.Seed)
		assert.Equal(t, engine.PhaseIssueShares, info.Phase)
		assert.Equal(t, engine.PlayerID("ann"), info.CurrentPlayer)
		require.NotNil(t, info.GameState)
	})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"no players", map[string]any{}, http.StatusBadRequest},
		{"one player", map[string]any{"players": []map[string]string{{"id": "solo"}}}, http.StatusBadRequest},
		{"unknown map", map[string]any{"map_id": "atlantis", "players": createBody["players"]}, http.StatusNotFound},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, "POST", "/api/sessions", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var resp map[string]string
			parseResponse(t, w, &resp)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	createSession(t, s)

	t.Run("get", func(t *testing.T) {
		w := do(t, s, "GET", "/api/sessions/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var info service.SessionInfo
		parseResponse(t, w, &info)
		assert.Equal(t, id, info.ID)
	})

	t.Run("list with limit", func(t *testing.T) {
		w := do(t, s, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Count    int                    `json:"count"`
			Total    int                    `json:"total"`
			Sessions []*service.SessionInfo `json:"sessions"`
			Sort     string                 `json:"sort"`
		}
		parseResponse(t, w, &resp)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, "created", resp.Sort)
		require.Len(t, resp.Sessions, 1)
		assert.Nil(t, resp.Sessions[0].GameState, "listing omits full state")
	})

	t.Run("state", func(t *testing.T) {
		w := do(t, s, "GET", "/api/sessions/"+id+"/state", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var state engine.GameState
		parseResponse(t, w, &state)
		assert.Equal(t, 1, state.Turn)
		assert.Len(t, state.Players, 3)
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, s, "DELETE", "/api/sessions/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, s, "GET", "/api/sessions/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = do(t, s, "DELETE", "/api/sessions/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCommands(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	url := "/api/sessions/" + id + "/commands"

	t.Run("accepted", func(t *testing.T) {
		w := do(t, s, "POST", url, map[string]any{"type": "issue_shares", "player": "ann", "amount": 2})
		require.Equal(t, http.StatusOK, w.Code)

		var res service.CommandResult
		parseResponse(t, w, &res)
		assert.True(t, res.Success)
		assert.Equal(t, 20, res.GameState.Players["ann"].Cash)
		assert.NotEmpty(t, res.Events)
	})

	t.Run("rule rejection is still 200", func(t *testing.T) {
		w := do(t, s, "POST", url, map[string]any{"type": "pass_shares", "player": "ann"})
		require.Equal(t, http.StatusOK, w.Code)

		var res service.CommandResult
		parseResponse(t, w, &res)
		assert.False(t, res.Success)
		assert.Equal(t, engine.ReasonNotEntitled, res.Reason)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := do(t, s, "POST", "/api/sessions/nope/commands", map[string]any{"type": "pass_shares", "player": "ann"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := do(t, s, "POST", url, "garbage")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("metrics count outcomes", func(t *testing.T) {
		w := do(t, s, "GET", "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `steamrails_game_commands_total{command="issue_shares",outcome="ok"} 1`)
		assert.Contains(t, body, `steamrails_game_commands_total{command="pass_shares",outcome="not_entitled"} 1`)
		assert.Contains(t, body, `steamrails_http_requests_total{method="POST",route="/api/sessions/{id}/commands",status_code="404"} 1`)
		assert.Contains(t, body, "steamrails_game_sessions_active 1")
	})
}

func TestQueries(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	t.Run("legal actions", func(t *testing.T) {
		w := do(t, s, "GET", base+"/legal-actions?player=ann", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp service.LegalActionsResponse
		parseResponse(t, w, &resp)
		assert.Equal(t, []string{engine.CmdIssueShares, engine.CmdPassShares}, resp.Actions)

		w = do(t, s, "GET", base+"/legal-actions", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("open edges", func(t *testing.T) {
		w := do(t, s, "GET", base+"/open-edges?player=ann&col=0&row=0", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Edges []hex.Direction `json:"edges"`
			At    hex.Coord       `json:"at"`
		}
		parseResponse(t, w, &resp)
		assert.NotNil(t, resp.Edges)
		assert.Equal(t, hex.C(0, 0), resp.At)

		w = do(t, s, "GET", base+"/open-edges?player=ann&col=x&row=0", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delivery paths without track", func(t *testing.T) {
		w := do(t, s, "GET", base+"/state", nil)
		var state engine.GameState
		parseResponse(t, w, &state)
		slot := -1
		for i := 0; i < state.Board.Display.TotalSlots(); i++ {
			cube, _ := state.Board.Display.CubeAt(i)
			col, _ := state.Board.Display.ColumnOf(i)
			if cube != "" && col.Active {
				slot = i
				break
			}
		}
		require.GreaterOrEqual(t, slot, 0)

		w = do(t, s, "GET", fmt.Sprintf("%s/delivery-paths?player=ann&slot=%d", base, slot), nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Paths []engine.DeliveryPath `json:"paths"`
		}
		parseResponse(t, w, &resp)
		assert.Empty(t, resp.Paths)

		w = do(t, s, "GET", base+"/delivery-paths?player=ann", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, s, "GET", base+"/delivery-paths?player=ann&slot=9999", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("scores", func(t *testing.T) {
		w := do(t, s, "GET", base+"/scores", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp service.ScoresResponse
		parseResponse(t, w, &resp)
		assert.Equal(t, -6, resp.Scores["ann"])
		assert.False(t, resp.GameOver)
	})

	t.Run("history", func(t *testing.T) {
		do(t, s, "POST", base+"/commands", map[string]any{"type": "pass_shares", "player": "ann"})
		do(t, s, "POST", base+"/commands", map[string]any{"type": "pass_shares", "player": "bob"})

		w := do(t, s, "GET", base+"/history?limit=1&order=asc", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp service.HistoryResponse
		parseResponse(t, w, &resp)
		assert.Equal(t, 2, resp.TotalEntries)
		assert.Equal(t, 2, resp.TotalPages)
		assert.True(t, resp.HasNext)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, engine.PlayerID("ann"), resp.Entries[0].Player)
	})

	t.Run("command names", func(t *testing.T) {
		w := do(t, s, "GET", "/api/commands", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Commands []string `json:"commands"`
		}
		parseResponse(t, w, &resp)
		assert.Equal(t, service.CommandTypes, resp.Commands)
	})
}

func TestMaps(t *testing.T) {
	s := newTestServer(t)

	t.Run("list", func(t *testing.T) {
		w := do(t, s, "GET", "/api/maps", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var maps []service.MapInfo
		parseResponse(t, w, &maps)
		require.Len(t, maps, 1)
		assert.Equal(t, config.DefaultMapID, maps[0].MapID)
	})

	t.Run("get with extension", func(t *testing.T) {
		w := do(t, s, "GET", "/api/maps/heartland.json", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var desc engine.MapDescriptor
		parseResponse(t, w, &desc)
		assert.Equal(t, "heartland", desc.Name)
	})

	t.Run("missing", func(t *testing.T) {
		w := do(t, s, "GET", "/api/maps/atlantis", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("save valid", func(t *testing.T) {
		d := engine.DefaultMap()
		d.Name = "Prairie"
		w := do(t, s, "POST", "/api/maps", map[string]any{"map_id": "prairie", "map": d})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = do(t, s, "GET", "/api/maps/prairie", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(t, s, "POST", "/api/sessions", map[string]any{"map_id": "prairie", "players": createBody["players"]})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("save invalid", func(t *testing.T) {
		d := engine.DefaultMap()
		d.StartingBag = nil
		w := do(t, s, "POST", "/api/maps", map[string]any{"map_id": "broken", "map": d})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, s, "POST", "/api/maps", map[string]any{"map_id": "empty"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"session missing", fmt.Errorf("session x: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{"map missing", config.ErrMapNotFound, http.StatusNotFound},
		{"duplicate", session.ErrSessionAlreadyExists, http.StatusConflict},
		{"invalid request", service.ErrInvalidRequest, http.StatusBadRequest},
		{"invalid setup", fmt.Errorf("create: %w", engine.ErrInvalidSetup), http.StatusBadRequest},
		{"invariant", service.ErrInvariantViolation, http.StatusInternalServerError},
		{"halted", fmt.Errorf("%w: %w", service.ErrSessionHalted, service.ErrInvariantViolation), http.StatusConflict},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				ExecuteFunc: func(ctx context.Context, sessionID string, cmd service.Command) (*service.CommandResult, error) {
					return nil, tt.err
				},
			}
			s := NewServer(mock, nil)
			w := do(t, s, "POST", "/api/sessions/x/commands", map[string]any{"type": "pass_shares"})
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	s := NewServer(&MockGameService{}, nil)
	w := do(t, s, "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestWebSocket(t *testing.T) {
	t.Run("disabled without hub", func(t *testing.T) {
		s := NewServer(&MockGameService{}, nil)
		w := do(t, s, "GET", "/ws?session=x", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := websocket.NewHub(nil)
	go hub.Run(ctx)

	maps, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	s := NewServer(service.NewGameService(session.NewManager(), maps, nil), hub)
	id := createSession(t, s)

	t.Run("missing session parameter", func(t *testing.T) {
		w := do(t, s, "GET", "/ws", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := do(t, s, "GET", "/ws?session=nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("spectator sees commands", func(t *testing.T) {
		srv := httptest.NewServer(s)
		defer srv.Close()

		conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?session="+id, nil)
		require.NoError(t, err)
		defer conn.Close()

		read := func() websocket.Message {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var msg websocket.Message
			require.NoError(t, conn.ReadJSON(&msg))
			return msg
		}

		snap := read()
		assert.Equal(t, websocket.EventSnapshot, snap.Event)
		assert.Equal(t, engine.PlayerID("ann"), snap.GameState.CurrentPlayer)

		require.Eventually(t, func() bool {
			n, err := hub.ClientCount(ctx, id)
			return err == nil && n == 1
		}, time.Second, 10*time.Millisecond)

		w := do(t, s, "POST", "/api/sessions/"+id+"/commands", map[string]any{"type": "pass_shares", "player": "ann"})
		require.Equal(t, http.StatusOK, w.Code)

		update := read()
		assert.Equal(t, websocket.EventStateUpdate, update.Event)
		assert.Equal(t, engine.PlayerID("bob"), update.GameState.CurrentPlayer)
	})
}
