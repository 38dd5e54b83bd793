package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/credential"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage credential schemas",
}

var schemaRegisterCmd = &cobra.Command{
	Use:   "register <schema.json>",
	Short: "Register a credential schema",
	Long: `Register a credential schema from a JSON file.

The file must contain a name and a properties map, for example:

  {
    "name": "AgentCertification",
    "properties": {
      "level": {"type": "string", "required": true},
      "score": {"type": "number"}
    }
  }

Schemas are immutable once registered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		var schema credential.Schema
		if err := json.Unmarshal(data, &schema); err != nil {
			return fmt.Errorf("failed to parse schema: %w", err)
		}

		registered, err := a.credentials.RegisterSchema(cmd.Context(), &schema)
		if err != nil {
			return err
		}
		return printJSON(registered)
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered credential schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		schemas, err := a.credentials.ListSchemas(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(schemas)
	},
}

func init() {
	schemaCmd.AddCommand(schemaRegisterCmd, schemaListCmd)
	rootCmd.AddCommand(schemaCmd)
}
