package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finaccosolutions/vbastudio/internal/config"
	"github.com/finaccosolutions/vbastudio/internal/domain/accounts"
	"github.com/finaccosolutions/vbastudio/internal/domain/projects"
	"github.com/finaccosolutions/vbastudio/internal/genai"
	"github.com/finaccosolutions/vbastudio/internal/httpapi"
	"github.com/finaccosolutions/vbastudio/internal/mcp"
	"github.com/finaccosolutions/vbastudio/internal/metrics"
	"github.com/finaccosolutions/vbastudio/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	stdio := flag.Bool("stdio", false, "serve MCP tools over stdio instead of HTTP")
	stdioUser := flag.String("stdio-user", "", "user id bound to the stdio MCP session")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if *stdio {
		logWriter = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	userRepo := sqlite.NewUserRepository(db)
	sessionRepo := sqlite.NewAuthSessionRepository(db)
	projectRepo := sqlite.NewProjectRepository(db)

	accountsSvc := accounts.NewService(userRepo, sessionRepo,
		cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, logger)
	projectsSvc := projects.NewService(projectRepo, logger)
	generator := genai.NewClient(cfg.GenAI.BaseURL, cfg.GenAI.Model, cfg.GenAI.Timeout)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Projects:  projectsSvc,
			Keys:      accountsSvc,
			Generator: generator,
			Observer:  collector,
		},
		Resolver: mcp.ResolverFunc(func(ctx context.Context, token string) (string, error) {
			return accountsSvc.Authenticate(ctx, token)
		}),
		TransportMode: transportMode(*stdio),
		LocalUserID:   *stdioUser,
		Logger:        logger,
	})

	if *stdio {
		if *stdioUser == "" {
			logger.Error("stdio mode requires -stdio-user")
			os.Exit(1)
		}
		runStdioMode(logger, mcpServer)
		return
	}

	limiter := httpapi.NewRateLimiter(httpapi.DefaultRateLimiterConfig())
	defer limiter.Stop()

	api := httpapi.NewServer(accountsSvc, projectsSvc, limiter, collector, registry, logger)
	runHTTPMode(logger, api.Router(), mcpServer, cfg.Server.Host, cfg.Server.Port)
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, api http.Handler, mcpServer *sdkmcp.Server, host string, port int) {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.Handle("/", api)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func transportMode(stdio bool) string {
	if stdio {
		return "stdio"
	}
	return "http"
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
