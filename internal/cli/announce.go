package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/broadcast"
	"github.com/YunGuard/YunGuard/internal/config"
	"github.com/YunGuard/YunGuard/internal/openapi"
	"github.com/YunGuard/YunGuard/internal/store"
)

var announceCmd = &cobra.Command{
	Use:   "announce <message>",
	Short: "Send a one-off message to every known group",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📢 YunGuard Announce")

		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}
		if cfg.Platform.Token == "" {
			fmt.Println("No bot token configured. Set YUNGUARD_PLATFORM_TOKEN or platform.token in the config file.")
			return
		}

		st, err := store.NewStore(cfg.Paths.DataDir, cfg.Moderation.ConfigCacheTTL)
		if err != nil {
			fmt.Printf("Config store error: %v\n", err)
			return
		}
		auditSvc, err := audit.Open(cfg.Paths.AuditDB)
		if err != nil {
			fmt.Printf("Audit store error: %v\n", err)
			return
		}
		defer auditSvc.Close()

		groups := st.List()
		if len(groups) == 0 {
			fmt.Println("No groups recorded yet.")
			return
		}

		api := openapi.New(cfg.Platform.BaseURL, cfg.Platform.Token, cfg.Platform.Timeout)
		engine := broadcast.New(st, api, auditSvc, cfg.Moderation.BroadcastLineDelay)
		if err := engine.Announce(context.Background(), groups, strings.Join(args, " ")); err != nil {
			fmt.Printf("Announce error: %v\n", err)
			return
		}
		fmt.Printf("Announced to %d groups.\n", len(groups))
	},
}
