package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage agent identities",
}

var identityCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new agent identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.identities.Create(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(id)
	},
}

var identityRotateCmd = &cobra.Command{
	Use:   "rotate <did>",
	Short: "Rotate an identity's key pair, superseding the old DID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rotated, err := a.identities.Rotate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(rotated)
	},
}

var identityResolveCmd = &cobra.Command{
	Use:   "resolve <did>",
	Short: "Look up a stored identity record",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one DID argument")
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.identities.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func init() {
	identityCmd.AddCommand(identityCreateCmd, identityRotateCmd, identityResolveCmd)
	rootCmd.AddCommand(identityCmd)
}
