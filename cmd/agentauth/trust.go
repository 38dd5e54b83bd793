package main

import (
	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Inspect agent trust scores",
}

var trustScoreCmd = &cobra.Command{
	Use:   "score <did>",
	Short: "Compute the trust score and level for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		score, err := a.scores.ComputeScore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(score)
	},
}

func init() {
	trustCmd.AddCommand(trustScoreCmd)
	rootCmd.AddCommand(trustCmd)
}
