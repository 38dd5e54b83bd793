package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/capability"
)

var (
	grantGrantor    string
	grantGrantee    string
	grantScopes     []string
	grantResource   string
	grantConditions string
	grantExpiry     string
	grantRevoker    string
	checkSubject    string
	checkAction     string
	checkResource   string
	checkContext    string
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage capability grants and tokens",
}

var grantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Grant scopes from one agent to another and mint a token",
	Example: `  agentauth grant create \
    --grantor did:key:z6MkA... \
    --grantee did:key:z6MkB... \
    --scope read --scope write \
    --resource doc:1 \
    --expiry 168h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		opts := capability.GrantOptions{Resource: grantResource}
		if grantConditions != "" {
			if err := json.Unmarshal([]byte(grantConditions), &opts.Conditions); err != nil {
				return fmt.Errorf("failed to parse conditions: %w", err)
			}
		}
		if grantExpiry != "" {
			d, err := time.ParseDuration(grantExpiry)
			if err != nil {
				return fmt.Errorf("invalid expiry: %w", err)
			}
			opts.ExpiresAt = time.Now().Add(d)
		}

		result, err := a.caps.Grant(cmd.Context(), grantGrantor, grantGrantee, grantScopes, opts)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var grantCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a subject may perform an action on a resource",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		var checkCtx map[string]any
		if checkContext != "" {
			if err := json.Unmarshal([]byte(checkContext), &checkCtx); err != nil {
				return fmt.Errorf("failed to parse context: %w", err)
			}
		}

		decision, err := a.caps.Check(cmd.Context(), checkSubject, checkAction, checkResource, checkCtx)
		if err != nil {
			return err
		}
		if err := printJSON(decision); err != nil {
			return err
		}
		if !decision.Allowed {
			os.Exit(1)
		}
		return nil
	},
}

var grantRevokeCmd = &cobra.Command{
	Use:   "revoke <grant-id>",
	Short: "Revoke a grant (grantor or grantee only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.caps.Revoke(cmd.Context(), args[0], grantRevoker); err != nil {
			return err
		}
		fmt.Printf("Revoked %s\n", args[0])
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with capability tokens",
}

var tokenValidateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Validate a capability token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		validation, err := a.caps.ValidateToken(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printJSON(validation); err != nil {
			return err
		}
		if !validation.Valid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	grantCreateCmd.Flags().StringVar(&grantGrantor, "grantor", "", "grantor DID (required)")
	grantCreateCmd.Flags().StringVar(&grantGrantee, "grantee", "", "grantee DID (required)")
	grantCreateCmd.Flags().StringSliceVar(&grantScopes, "scope", nil, "scope to grant (repeatable, required)")
	grantCreateCmd.Flags().StringVar(&grantResource, "resource", "", "resource the grant is bound to")
	grantCreateCmd.Flags().StringVar(&grantConditions, "conditions", "", "conditions as a JSON object")
	grantCreateCmd.Flags().StringVar(&grantExpiry, "expiry", "", "grant lifetime, e.g. 168h (default: no expiry)")
	_ = grantCreateCmd.MarkFlagRequired("grantor")
	_ = grantCreateCmd.MarkFlagRequired("grantee")
	_ = grantCreateCmd.MarkFlagRequired("scope")

	grantCheckCmd.Flags().StringVar(&checkSubject, "subject", "", "subject DID (required)")
	grantCheckCmd.Flags().StringVar(&checkAction, "action", "", "action to check (required)")
	grantCheckCmd.Flags().StringVar(&checkResource, "resource", "", "resource to check against")
	grantCheckCmd.Flags().StringVar(&checkContext, "context", "", "request context as a JSON object")
	_ = grantCheckCmd.MarkFlagRequired("subject")
	_ = grantCheckCmd.MarkFlagRequired("action")

	grantRevokeCmd.Flags().StringVar(&grantRevoker, "revoker", "", "DID of the agent revoking the grant (required)")
	_ = grantRevokeCmd.MarkFlagRequired("revoker")

	grantCmd.AddCommand(grantCreateCmd, grantCheckCmd, grantRevokeCmd)
	tokenCmd.AddCommand(tokenValidateCmd)
	rootCmd.AddCommand(grantCmd, tokenCmd)
}
