package cli

import (
	"encoding/json"
	"fmt"

	"github.com/YunGuard/YunGuard/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("⚙️ YunGuard Config")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}
		// Never print the token.
		cfg.Platform.Token = redact(cfg.Platform.Token)

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			fmt.Printf("Encode error: %v\n", err)
			return
		}
		fmt.Println(string(out))
		if path, err := config.ConfigPath(); err == nil {
			fmt.Println("\nFile: " + path)
		}
	},
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + "****" + token[len(token)-2:]
}
