package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/bot"
	"github.com/YunGuard/YunGuard/internal/broadcast"
	"github.com/YunGuard/YunGuard/internal/bus"
	"github.com/YunGuard/YunGuard/internal/config"
	"github.com/YunGuard/YunGuard/internal/gateway"
	"github.com/YunGuard/YunGuard/internal/grouplink"
	"github.com/YunGuard/YunGuard/internal/moderation"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
	"github.com/YunGuard/YunGuard/internal/votemute"
	webassets "github.com/YunGuard/YunGuard/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot gateway",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🌐 YunGuard Gateway")

	// .env, when present, feeds the envconfig pass inside config.Load.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Platform.Token == "" {
		fmt.Println("No bot token configured. Set YUNGUARD_PLATFORM_TOKEN or platform.token in the config file.")
		os.Exit(1)
	}

	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.Paths.DataDir, cfg.Moderation.ConfigCacheTTL)
	if err != nil {
		fmt.Printf("Config store error: %v\n", err)
		os.Exit(1)
	}
	lists, err := store.NewBlacklistStore(cfg.Paths.DataDir)
	if err != nil {
		fmt.Printf("Blacklist store error: %v\n", err)
		os.Exit(1)
	}
	auditSvc, err := audit.Open(cfg.Paths.AuditDB)
	if err != nil {
		fmt.Printf("Audit store error: %v\n", err)
		os.Exit(1)
	}
	defer auditSvc.Close()

	api := openapi.New(cfg.Platform.BaseURL, cfg.Platform.Token, cfg.Platform.Timeout)
	eventBus := bus.NewEventBus()

	votes := votemute.New(st, api, auditSvc, cfg.Moderation.VoteTTL)
	links := grouplink.New(st, api, auditSvc, cfg.Moderation.LinkTTL)
	broadcasts := broadcast.New(st, api, auditSvc, cfg.Moderation.BroadcastLineDelay)
	pipeline := moderation.New(st, lists, api, auditSvc)

	service := bot.NewService(bot.Deps{
		Store:      st,
		Lists:      lists,
		API:        api,
		Audit:      auditSvc,
		Pipeline:   pipeline,
		Votes:      votes,
		Links:      links,
		Broadcasts: broadcasts,
		Bus:        eventBus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcasts.RestoreAll(ctx)
	go votes.RunSweeper(ctx, cfg.Moderation.VoteSweepInterval)
	go links.RunSweeper(ctx, cfg.Moderation.LinkSweepInterval)
	go func() {
		if err := service.Run(ctx); err != nil {
			slog.Error("event loop stopped", "error", err)
		}
	}()

	srv := gateway.New(eventBus, st, auditSvc, webassets.Files)
	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		fmt.Printf("Listening on %s (webhook: POST /sub)\n", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	cancel()
	broadcasts.Shutdown()
	fmt.Println("Goodbye.")
}
