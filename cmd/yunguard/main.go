// Package main is the entry point for the yunguard CLI.
package main

import (
	"os"

	"github.com/YunGuard/YunGuard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
