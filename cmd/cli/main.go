package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finaccosolutions/vbastudio/internal/backend"
	"github.com/finaccosolutions/vbastudio/internal/cli"
	"github.com/finaccosolutions/vbastudio/internal/config"
	"github.com/finaccosolutions/vbastudio/internal/domain/conversation"
	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/genai"
	"github.com/finaccosolutions/vbastudio/internal/session"
)

// identitySource adapts the session store to the conversation store's
// owner lookup.
type identitySource struct {
	store *identity.Store
}

func (s identitySource) CurrentID() (string, bool) {
	ident, ok := s.store.Current()
	return ident.ID, ok
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Terminal output belongs to the REPL; logs go to stderr and stay
	// quiet unless something is wrong.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	provider := backend.NewClient(cfg.Session.BackendURL, 30*time.Second, logger)
	snapshots := session.NewFileStore(cfg.Session.SnapshotPath)
	identities := identity.NewStore(provider, snapshots, logger)

	if err := identities.Resolve(ctx); err != nil {
		logger.Warn("session resolution failed, starting signed out", "error", err)
	}

	// Other clients on this machine share the snapshot file. Watching it
	// keeps sign-in and sign-out in step across processes.
	watcher, err := session.NewWatcher(snapshots.Path(), identities, logger)
	if err != nil {
		logger.Warn("snapshot watching disabled", "error", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("snapshot watching disabled", "error", err)
		_ = watcher.Close()
	} else {
		defer watcher.Close()
	}

	conv := conversation.NewStore(identitySource{identities})
	generator := genai.NewClient(cfg.GenAI.BaseURL, cfg.GenAI.Model, cfg.GenAI.Timeout)

	app := cli.NewApp(cli.Deps{
		Identities: identities,
		Conv:       conv,
		API:        provider,
		Generator:  generator,
	})

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
