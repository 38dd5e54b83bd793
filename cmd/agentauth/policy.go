package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage policy rules",
}

var policyAddCmd = &cobra.Command{
	Use:   "add <rule.json>",
	Short: "Add a policy rule from a JSON file",
	Long: `Add a policy rule from a JSON file, for example:

  {
    "name": "deny-off-hours",
    "effect": "deny",
    "priority": 100,
    "condition": {
      "any": [
        {"field": "context.hour", "op": "lt", "value": 8},
        {"field": "context.hour", "op": "ge", "value": 18}
      ]
    }
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read rule file: %w", err)
		}
		var rule policy.Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return fmt.Errorf("failed to parse rule: %w", err)
		}

		added, err := a.policies.AddRule(cmd.Context(), &rule)
		if err != nil {
			return err
		}
		return printJSON(added)
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policy rules in evaluation order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		rules, err := a.policies.ListRules(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(rules)
	},
}

var policyRemoveCmd = &cobra.Command{
	Use:   "remove <rule-id>",
	Short: "Remove a policy rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.policies.RemoveRule(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func init() {
	policyCmd.AddCommand(policyAddCmd, policyListCmd, policyRemoveCmd)
	rootCmd.AddCommand(policyCmd)
}
