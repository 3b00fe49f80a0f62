package cli

import (
	"fmt"

	"github.com/YunGuard/YunGuard/internal/audit"
	"github.com/YunGuard/YunGuard/internal/config"
	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List groups the bot has seen",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("👥 YunGuard Groups")

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			return
		}
		auditSvc, err := audit.Open(cfg.Paths.AuditDB)
		if err != nil {
			fmt.Printf("Audit store error: %v\n", err)
			return
		}
		defer auditSvc.Close()

		groups, err := auditSvc.Groups()
		if err != nil {
			fmt.Printf("Query error: %v\n", err)
			return
		}
		if len(groups) == 0 {
			fmt.Println("No groups recorded yet.")
			return
		}
		for _, g := range groups {
			name := g.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%-20s %-24s last seen %s\n", g.GroupID, name, g.LastSeen.Format("2006-01-02 15:04"))
		}
	},
}
