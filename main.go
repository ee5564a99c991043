// Command steamrails runs the Steam Rails game server.
//
// It supports three commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket
//     updates, Prometheus metrics and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server, reusing a running API or starting an
//     internal one on a loopback port
//  3. "validate" checks map descriptor files and exits non-zero on failure
//
// Every flag can also be set from the environment, and a .env file in the
// working directory is loaded first.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/steamrails/api"
	"github.com/wricardo/mcp-training/steamrails/game/config"
	"github.com/wricardo/mcp-training/steamrails/game/service"
	"github.com/wricardo/mcp-training/steamrails/game/session"
	"github.com/wricardo/mcp-training/steamrails/transport/mcp"
	"github.com/wricardo/mcp-training/steamrails/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Steam Rails Game Server"
)

const (
	cleanupInterval = time.Hour
	syncInterval    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{envErr: envErr}
	if err := a.command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by the subcommands once flags are parsed.
type app struct {
	envErr error
	logger *zap.Logger
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    "steamrails",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing map descriptors", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for JSON session files", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "sessions-db", Usage: "SQLite file for sessions; overrides --sessions-dir", Sources: cli.EnvVars("SESSIONS_DB")},
			&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "drop sessions idle for longer than this", Sources: cli.EnvVars("SESSION_TTL")},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: a.before,
		After: func(ctx context.Context, cmd *cli.Command) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return nil
		},
		Action: a.serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server with API, WebSocket, metrics and MCP endpoint",
				Action: a.serve,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "API to reuse when it is reachable", Sources: cli.EnvVars("STEAMRAILS_API_URL")},
				},
				Action: a.stdioMCP,
			},
			{
				Name:      "validate",
				Usage:     "validate map descriptor files",
				ArgsUsage: "[file.json ...]",
				Action:    a.validate,
			},
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return ctx, fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	switch {
	case a.envErr == nil:
		logger.Debug("loaded environment variables from .env file")
	case !os.IsNotExist(a.envErr):
		logger.Warn("error loading .env file", zap.Error(a.envErr))
	}
	return ctx, nil
}

// newLogger writes to stderr in both modes so stdio MCP keeps stdout clean.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// serviceOptions selects where maps and sessions live.
type serviceOptions struct {
	ConfigDir   string
	SessionsDir string
	SessionsDB  string
	SessionTTL  time.Duration
}

func optionsFrom(cmd *cli.Command) serviceOptions {
	return serviceOptions{
		ConfigDir:   cmd.String("config-dir"),
		SessionsDir: cmd.String("sessions-dir"),
		SessionsDB:  cmd.String("sessions-db"),
		SessionTTL:  cmd.Duration("session-ttl"),
	}
}

// services bundles everything a server mode needs.
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence session.SessionPersistence
	close       func() error
}

// initializeServices wires the map and session managers into the game
// service and restores persisted sessions.
func initializeServices(opts serviceOptions, logger *zap.Logger) (*services, error) {
	maps, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create map manager: %w", err)
	}

	svc := &services{close: func() error { return nil }}
	if opts.SessionsDB != "" {
		db, err := session.NewSQLitePersistence(opts.SessionsDB, maps, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		svc.persistence = db
		svc.close = db.Close
	} else {
		files, err := session.NewFilePersistence(opts.SessionsDir, maps, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		svc.persistence = files
	}

	svc.sessions = session.NewManagerWithPersistence(svc.persistence, session.WithLogger(logger))
	if err := svc.sessions.LoadPersistedSessions(); err != nil {
		logger.Warn("failed to load persisted sessions", zap.Error(err))
	}
	svc.game = service.NewGameService(svc.sessions, maps, logger)
	return svc, nil
}

// serve runs the HTTP server and, when enabled, an ngrok tunnel in front of
// the same handler. It blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	logger := a.logger
	opts := optionsFrom(cmd)
	svc, err := initializeServices(opts, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	apiServer := api.NewServer(svc.game, hub, api.WithLogger(logger))
	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient("http://"+addr, logger)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.Handle("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svc.sessions, opts.SessionTTL, logger)
	}()
	if opts.SessionsDB == "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, logger)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", "http://"+addr+"/api"),
			zap.String("websocket", "ws://"+addr+"/ws?session=<session_id>"),
			zap.String("mcp", "http://"+addr+"/mcp"),
			zap.String("metrics", "http://"+addr+"/metrics"))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := svc.sessions.SaveAllSessions(); err != nil {
		logger.Error("failed to save sessions on shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler, logger *zap.Logger) {
	logger = logger.Named("ngrok")
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", zap.String("domain", domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	url := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", url),
		zap.String("api", url+"/api"),
		zap.String("mcp", url+"/mcp"))

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// mcpHandler answers single JSON-RPC messages posted to /mcp.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(data)
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				logger.Info("cleaned up expired sessions", zap.Int("count", removed))
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory once their files are
// deleted from disk.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, logger *zap.Logger) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneOrphans(manager, persistence, logger); pruned > 0 {
				logger.Info("filesystem sync pruned orphaned sessions", zap.Int("count", pruned))
			}
		}
	}
}

func pruneOrphans(manager *session.Manager, persistence session.SessionPersistence, logger *zap.Logger) int {
	if persistence == nil {
		return 0
	}
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			logger.Debug("pruned session from memory (file deleted)", zap.String("session_id", s.ID))
		}
	}
	return pruned
}

// stdioMCP runs an MCP stdio server. It reuses the API at --api-url when it
// answers; otherwise it starts an internal API on a random loopback port.
func (a *app) stdioMCP(ctx context.Context, cmd *cli.Command) error {
	logger := a.logger
	baseURL := cmd.String("api-url")

	if apiAvailable(ctx, baseURL) {
		logger.Info("external API server found, using it for MCP", zap.String("url", baseURL))
	} else {
		logger.Info("no external API server found, starting internal HTTP server", zap.String("tried", baseURL))

		svc, err := initializeServices(optionsFrom(cmd), logger)
		if err != nil {
			return err
		}
		defer svc.close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub(logger)
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub, api.WithLogger(logger))}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", zap.Error(err))
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server started", zap.String("url", baseURL))
	}

	return mcp.NewClient(baseURL, logger).Serve()
}

// apiAvailable reports whether a steamrails API answers its health check.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
