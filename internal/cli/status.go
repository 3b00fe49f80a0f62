package cli

import (
	"fmt"
	"os"

	"github.com/YunGuard/YunGuard/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ YunGuard Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 YunGuard Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		if path, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(path); err == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (" + path + ")")
			}
		}

		// Check bot token presence
		if cfg, err := config.Load(); err == nil {
			if cfg.Platform.Token != "" {
				fmt.Println("Token:   ✓ Found")
			} else {
				fmt.Println("Token:   ✗ Not found (set YUNGUARD_PLATFORM_TOKEN or platform.token)")
			}
			fmt.Printf("Listen:  %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
			fmt.Println("Data:    " + cfg.Paths.DataDir)
		} else {
			fmt.Println("Token:   ? Unable to load config")
		}

		fmt.Println("Status:  Ready")
	},
}
