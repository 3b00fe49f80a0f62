package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/YunGuard/YunGuard/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		" __   __          ____                     _ \n" +
		" \\ \\ / /   _ _ __|  _ \\ _   _  __ _ _ __ __| |\n" +
		"  \\ V / | | | '_ \\ |_) | | | |/ _` | '__/ _` |\n" +
		"   | || |_| | | | |  _ <| |_| | (_| | | | (_| |\n" +
		"   |_| \\__,_|_| |_| \\_\\\\__,_|\\__,_|_|  \\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "yunguard",
	Short: "YunGuard - Yunhu group moderation bot",
	Long:  color.CyanString(logo) + "\nA group-moderation bot gateway for the Yunhu chat platform.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(configCmd)
}
