package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/steamrails/game/engine"
	"github.com/wricardo/mcp-training/steamrails/game/service"
)

const (
	serverName    = "Steam Rails"
	serverVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// NewClient creates a new MCP client that calls the REST API at baseURL.
// A nil logger disables logging.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.Named("mcp"),
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Steam Rails - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Build track between cities, deliver goods cubes over it to raise income, and
finish the last turn with the highest score (3 x income - 3 x shares + track).

AVAILABLE TOOLS:
- create_session: Deal a new game for 2-6 players
- list_sessions / get_session: Inspect sessions
- game_state: Summarize the board, players and goods display
- legal_actions: What a player may send right now
- send_command: Execute one command (issue_shares, bid, build_track, move_goods, ...)
- open_edges: Unconnected track ends a player owns on a hex
- delivery_paths: Legal routes for the cube in a display slot
- scores: Running or final scores
- move_history: Committed commands and phase changes
- list_maps: Available map descriptors
- game_rules: Phase order, actions and command arguments

Call legal_actions before send_command when unsure. A rejected command returns
the rule that refused it and leaves the game unchanged.`),
	)

	c.registerTools()
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))
}

func playerArg() mcp.ToolOption {
	return mcp.WithString("player", mcp.Required(), mcp.Description("Player ID"))
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new game session"),
		mcp.WithArray("players",
			mcp.Required(),
			mcp.Description("Player IDs in seating order (2-6)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("map_id", mcp.Description("Map to play on (default map if omitted)")),
		mcp.WithNumber("seed", mcp.Description("Random seed for a reproducible game"), mcp.Min(0)),
	), c.handleCreateSession)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all active game sessions"),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get a summary of one session"),
		sessionArg(),
	), c.handleGetSession)

	c.mcpServer.AddTool(mcp.NewTool("game_state",
		mcp.WithDescription("Summarize the current game state"),
		sessionArg(),
	), c.handleGameState)

	c.mcpServer.AddTool(mcp.NewTool("legal_actions",
		mcp.WithDescription("List the commands a player may send right now"),
		sessionArg(),
		playerArg(),
	), c.handleLegalActions)

	c.mcpServer.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Execute one game command"),
		sessionArg(),
		mcp.WithString("type", mcp.Required(), mcp.Enum(service.CommandTypes...), mcp.Description("Command name")),
		playerArg(),
		mcp.WithNumber("amount", mcp.Description("Shares for issue_shares, dollars for bid")),
		mcp.WithString("action", mcp.Description("Special action for select_action")),
		mcp.WithObject("at",
			mcp.Description("Target hex for build, redirect and urbanize commands"),
			mcp.Properties(map[string]any{
				"col": map[string]any{"type": "integer"},
				"row": map[string]any{"type": "integer"},
			}),
		),
		mcp.WithArray("edges",
			mcp.Description("Hex edges 0-5 joined by the new track"),
			mcp.Items(map[string]any{"type": "integer", "minimum": 0, "maximum": 5}),
		),
		mcp.WithString("form", mcp.Description("Complex tile form for build_complex_track")),
		mcp.WithNumber("edge", mcp.Description("Edge for start_redirect and redirect_track")),
		mcp.WithString("tile_id", mcp.Description("New city tile for urbanize_town")),
		mcp.WithNumber("slot", mcp.Description("Goods display slot for production and move_goods")),
		mcp.WithArray("path",
			mcp.Description("Hexes of a delivery from origin city to destination city"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"col": map[string]any{"type": "integer"},
					"row": map[string]any{"type": "integer"},
				},
			}),
		),
		mcp.WithString("intent",
			mcp.Description("Brief explanation of why you are sending this command (helps you reason; not used by the game)"),
		),
	), c.handleSendCommand)

	c.mcpServer.AddTool(mcp.NewTool("open_edges",
		mcp.WithDescription("List a player's unconnected track ends on a hex"),
		sessionArg(),
		playerArg(),
		mcp.WithNumber("col", mcp.Required()),
		mcp.WithNumber("row", mcp.Required()),
	), c.handleOpenEdges)

	c.mcpServer.AddTool(mcp.NewTool("delivery_paths",
		mcp.WithDescription("List legal delivery routes for the cube in a display slot"),
		sessionArg(),
		playerArg(),
		mcp.WithNumber("slot", mcp.Required(), mcp.Description("Goods display slot"), mcp.Min(0)),
	), c.handleDeliveryPaths)

	c.mcpServer.AddTool(mcp.NewTool("scores",
		mcp.WithDescription("Get running or final scores"),
		sessionArg(),
	), c.handleScores)

	c.mcpServer.AddTool(mcp.NewTool("move_history",
		mcp.WithDescription("View committed commands and phase changes, newest first"),
		sessionArg(),
		mcp.WithNumber("page", mcp.Description("Page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Entries per page (default 20)")),
	), c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.NewTool("list_maps",
		mcp.WithDescription("List available maps"),
	), c.handleListMaps)

	c.mcpServer.AddTool(mcp.NewTool("game_rules",
		mcp.WithDescription("Explain the turn structure, actions and command arguments"),
		mcp.WithString("session_id", mcp.Description("Include the ruleset of this session")),
	), c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Serve runs the MCP server on stdio until the client disconnects.
func (c *Client) Serve() error {
	c.logger.Info("serving MCP on stdio", zap.String("api", c.baseURL))
	if err := server.ServeStdio(c.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// apiCall makes an HTTP call to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(id string, parts ...string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Tool handlers

type createSessionInput struct {
	Players []string `json:"players"`
	MapID   string   `json:"map_id"`
	Seed    uint64   `json:"seed"`
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input createSessionInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid create_session arguments", err), nil
	}

	req := service.CreateSessionRequest{MapID: input.MapID, Seed: input.Seed}
	for _, p := range input.Players {
		req.Players = append(req.Players, engine.PlayerSetup{ID: engine.PlayerID(p), Name: p})
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", req, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nMap: %s\nSeed: %d\n\n", info.ID, info.MapID, info.Seed)
	result += formatGameState(info.GameState)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for i := range response.Sessions {
		b.WriteString("- " + formatSessionInfo(&response.Sessions[i]) + "\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleLegalActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	player, err := request.RequireString("player")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp service.LegalActionsResponse
	path := sessionPath(sessionID, "legal-actions") + "?player=" + url.QueryEscape(player)
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s, current player: %s\n", resp.Phase, resp.CurrentPlayer)
	if resp.Pending != "" {
		fmt.Fprintf(&b, "Pending: %s\n", resp.Pending)
	}
	if len(resp.Actions) == 0 {
		fmt.Fprintf(&b, "%s has nothing to do right now.\n", resp.Player)
	} else {
		fmt.Fprintf(&b, "%s may send: %s\n", resp.Player, strings.Join(resp.Actions, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

type sendCommandInput struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	service.Command
}

func (c *Client) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input sendCommandInput
	if err := request.BindArguments(&input); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid send_command arguments", err), nil
	}
	if input.SessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	// Intent is for the caller's own reasoning; log it and move on.
	c.logger.Debug("send_command",
		zap.String("session", input.SessionID),
		zap.String("command", input.Type),
		zap.String("intent", input.Intent))

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(input.SessionID, "commands"), input.Command, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleOpenEdges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	player, err := request.RequireString("player")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	col, err := request.RequireInt("col")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := request.RequireInt("row")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp struct {
		Edges []int `json:"edges"`
	}
	path := fmt.Sprintf("%s?player=%s&col=%d&row=%d", sessionPath(sessionID, "open-edges"), url.QueryEscape(player), col, row)
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Edges) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s has no open track ends at (%d,%d).", player, col, row)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Open edges for %s at (%d,%d): %v", player, col, row, resp.Edges)), nil
}

func (c *Client) handleDeliveryPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	player, err := request.RequireString("player")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slot, err := request.RequireInt("slot")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp struct {
		Paths []engine.DeliveryPath `json:"paths"`
	}
	path := fmt.Sprintf("%s?player=%s&slot=%d", sessionPath(sessionID, "delivery-paths"), url.QueryEscape(player), slot)
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Paths) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No delivery route for slot %d.", slot)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Delivery routes for slot %d (%d):\n", slot, len(resp.Paths))
	for i, p := range resp.Paths {
		fmt.Fprintf(&b, "%d. %s cube %s -> %s, %d links", i+1, p.Cube, p.Origin, p.Destination, len(p.Links))
		if len(p.ForeignLinks) > 0 {
			fmt.Fprintf(&b, " (%d foreign)", len(p.ForeignLinks))
		}
		fmt.Fprintf(&b, "\n   path: %s\n", formatPath(p))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleScores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp service.ScoresResponse
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "scores"), nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatScores(&resp)), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	q := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := sessionPath(sessionID, "history")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var maps []service.MapInfo
	if err := c.apiCall(ctx, "GET", "/api/maps", nil, &maps); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Maps:\n\n")
	for _, m := range maps {
		fmt.Fprintf(&b, "• %s (%s)\n", m.MapID, m.Name)
		if m.Description != "" {
			fmt.Fprintf(&b, "  %s\n", m.Description)
		}
		fmt.Fprintf(&b, "  %d hexes, %d cities, %d towns, %d cubes\n\n", m.Hexes, m.Cities, m.Towns, m.Cubes)
	}
	return mcp.NewToolResultText(b.String()), nil
}

const rulesText = `Steam Rails - Rules Summary

TURN STRUCTURE (each turn runs these phases in order):
1. issue_shares     - in play order, issue_shares{amount} for $5 each or pass_shares
2. player_order     - auction for seating: bid{amount} above the high bid, pass_auction,
                      or use_turn_order_pass if you hold that action
3. select_actions   - each player picks one special action with select_action{action}
4. build_track      - build_track{at, edges}, build_complex_track{at, form},
                      start_redirect / redirect_track{at, edge}, urbanize_town{at, tile_id}
                      (needs start_urbanization first), then end_build
5. move_goods       - two rounds: move_goods{slot, path}, upgrade_locomotive, or pass_move
6. collect_income   - computed
7. pay_expenses     - computed; shares + locomotive, shortfall cuts income, then eliminates
8. income_reduction - computed
9. goods_growth     - computed; production then growth dice fill empty slots
10. advance_turn    - computed; the last turn ends the game

SPECIAL ACTIONS: first_move, first_build, engineer (extra build), locomotive (free +1),
urbanization (turn a town into a new city), production (place two drawn cubes),
turn_order_pass (keep your seat in the next auction).

DELIVERY: a cube travels from its display column's city to a city of its own color
over at most locomotive x 3 links, never revisiting a city. Each link pays its owner 1 income.

SCORING: 3 x income - 3 x shares + number of track segments owned.

Rejected commands report a reason: illegal_phase, not_entitled, invalid_placement,
insufficient_funds, resource_exhausted, no_route, malformed_path or invalid_command.`

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := rulesText
	if sessionID := request.GetString("session_id", ""); sessionID != "" {
		var state engine.GameState
		if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "state"), nil, &state); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := json.MarshalIndent(state.Ruleset, "", "  ")
		if err == nil {
			text += fmt.Sprintf("\n\nRULESET FOR SESSION %s (%d turns):\n%s", sessionID, state.MaxTurns, data)
		}
	}
	return mcp.NewToolResultText(text), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	status := fmt.Sprintf("turn %d, %s", info.Turn, info.Phase)
	if info.GameOver {
		status = "game over"
	} else if info.CurrentPlayer != "" {
		status += ", waiting on " + string(info.CurrentPlayer)
	}
	return fmt.Sprintf("%s (map: %s, %s, created %s)",
		info.ID, info.MapID, status, info.CreatedAt.Format("15:04:05"))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Map: %s | Turn %d/%d | Phase: %s\n", state.MapName, state.Turn, state.MaxTurns, state.Phase)
	if state.Winner != "" {
		fmt.Fprintf(&b, "GAME OVER - winner: %s\n", state.Winner)
	} else if state.CurrentPlayer != "" {
		fmt.Fprintf(&b, "Current player: %s\n", state.CurrentPlayer)
	}

	b.WriteString("\nPlayers (play order):\n")
	for _, id := range state.PlayOrder {
		p := state.Players[id]
		if p == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-8s cash $%d, income %d, shares %d, loco %d", id, p.Cash, p.Income, p.Shares, p.Locomotive)
		if p.Action != engine.NoAction {
			fmt.Fprintf(&b, ", action %s", p.Action)
		}
		if p.Eliminated {
			b.WriteString(" [eliminated]")
		}
		b.WriteString("\n")
	}

	if state.Board != nil {
		if state.Board.Track != nil {
			owned := make(map[engine.PlayerID]int)
			for _, t := range state.Board.Track.Tiles {
				for _, s := range t.Segments {
					owned[s.Owner]++
				}
			}
			fmt.Fprintf(&b, "\nTrack: %d tiles", len(state.Board.Track.Tiles))
			ids := make([]string, 0, len(owned))
			for id := range owned {
				ids = append(ids, string(id))
			}
			sort.Strings(ids)
			for _, id := range ids {
				name := id
				if id == string(engine.Unowned) {
					name = "unowned"
				}
				fmt.Fprintf(&b, ", %s %d segments", name, owned[engine.PlayerID(id)])
			}
			b.WriteString("\n")
		}

		if d := state.Board.Display; d != nil {
			b.WriteString("\nGoods display (slot: cube):\n")
			slot := 0
			for _, col := range d.Columns {
				target := col.City
				if target == "" {
					target = "new city " + col.NewCityLetter
				}
				fmt.Fprintf(&b, "  column %s (%s)", col.ID, target)
				if !col.Active {
					b.WriteString(" inactive")
				}
				b.WriteString(":")
				for _, cube := range col.Slots {
					if cube == "" {
						cube = "-"
					}
					fmt.Fprintf(&b, " %d:%s", slot, cube)
					slot++
				}
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "  bag: %d cubes\n", len(d.Bag))
		}

		b.WriteString("\nCities:\n")
		for _, city := range state.Board.Cities {
			fmt.Fprintf(&b, "  %s %s accepts %s\n", city.Name, city.Coord, city.Color)
		}
	}
	return b.String()
}

func formatCommandResult(result *service.CommandResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "OK: %s\n", result.Message)
	} else {
		fmt.Fprintf(&b, "REJECTED (%s): %s\n", result.Reason, result.Message)
	}
	if len(result.Candidates) > 0 {
		fmt.Fprintf(&b, "Candidate edges: %v\n", result.Candidates)
	}
	if len(result.Cubes) > 0 {
		fmt.Fprintf(&b, "Drawn cubes: %v\n", result.Cubes)
	}
	if result.Delivery != nil {
		fmt.Fprintf(&b, "Delivered %s cube over %d links: %s\n",
			result.Delivery.Cube, len(result.Delivery.Links), formatPath(*result.Delivery))
	}
	for _, e := range result.Events {
		fmt.Fprintf(&b, "  [%s] %s\n", e.Type, e.Message)
	}
	if result.GameState != nil {
		b.WriteString("\n" + formatGameState(result.GameState))
	}
	return b.String()
}

func formatPath(p engine.DeliveryPath) string {
	parts := make([]string, len(p.Hexes))
	for i, h := range p.Hexes {
		parts[i] = h.String()
	}
	return strings.Join(parts, " -> ")
}

func formatScores(resp *service.ScoresResponse) string {
	ids := make([]string, 0, len(resp.Scores))
	for id := range resp.Scores {
		ids = append(ids, string(id))
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := resp.Scores[engine.PlayerID(ids[i])], resp.Scores[engine.PlayerID(ids[j])]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	var b strings.Builder
	if resp.GameOver {
		fmt.Fprintf(&b, "Final scores (winner: %s):\n", resp.Winner)
	} else {
		b.WriteString("Running scores:\n")
	}
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s: %d\n", id, resp.Scores[engine.PlayerID(id)])
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "History (page %d/%d, %d entries):\n", history.Page, history.TotalPages, history.TotalEntries)
	for _, e := range history.Entries {
		who := string(e.Player)
		if e.Player == engine.Unowned {
			who = "-"
		}
		fmt.Fprintf(&b, "  #%d turn %d %s %s: %s", e.Seq, e.Turn, e.Phase, who, e.Command)
		if e.Detail != "" {
			fmt.Fprintf(&b, " (%s)", e.Detail)
		}
		b.WriteString("\n")
	}
	if history.HasNext {
		fmt.Fprintf(&b, "More entries on page %d.\n", history.Page+1)
	}
	return b.String()
}
