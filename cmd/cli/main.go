// Package main is the entry point for the costpilot CLI.
package main

import (
	"os"

	"costpilot/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
