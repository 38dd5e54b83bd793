// Package main is the entry point for the agentauth CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentauth",
	Short: "Agent Identity & Capability Authorization Engine CLI",
	Long: `Decentralized trust and authorization for autonomous agents.
Derives did:key identities, issues and verifies credentials, grants and
checks capabilities, and computes trust scores.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config (default: in-memory backend)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
