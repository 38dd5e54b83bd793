package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/did"
	"github.com/agentauth/agentauth-core/pkg/identity"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyShowDID    bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage cryptographic keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 key pair",
	Long: `Generate a new Ed25519 key pair and its did:key identifier.

Outputs:
  - Private key in JWK format (for signing credentials and tokens)
  - Public key in JWK format (for verification)
  - did:key identifier derived from the public key`,
	Example: `  # Generate keys with default names
  agentauth key gen

  # Generate keys with custom file names
  agentauth key gen --out-priv agent.key.jwk --out-pub agent.pub.jwk

  # Only print the did:key identifier
  agentauth key gen --show-did`,
	RunE: func(_ *cobra.Command, _ []string) error {
		pub, priv, err := identity.Ed25519{}.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		didKey, err := did.FromPublicKey(pub)
		if err != nil {
			return err
		}

		// The did:key doubles as the kid so keys are self-identifying.
		privJWK := jose.JSONWebKey{
			Key:       ed25519.PrivateKey(priv),
			KeyID:     didKey,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}
		pubJWK := jose.JSONWebKey{
			Key:       ed25519.PublicKey(pub),
			KeyID:     didKey,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}

		if keyShowDID {
			fmt.Println(didKey)
			return nil
		}

		if err := writeJWK(keyOutPrivate, privJWK, 0600); err != nil {
			return err
		}
		if err := writeJWK(keyOutPublic, pubJWK, 0644); err != nil {
			return err
		}

		fmt.Printf("Private key: %s\n", keyOutPrivate)
		fmt.Printf("Public key:  %s\n", keyOutPublic)
		fmt.Printf("DID:         %s\n", didKey)
		return nil
	},
}

var didCmd = &cobra.Command{
	Use:   "did",
	Short: "Work with did:key identifiers",
}

var didDeriveCmd = &cobra.Command{
	Use:   "derive <public-key-jwk>",
	Short: "Derive the did:key identifier for a public key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read key file: %w", err)
		}
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(data, &jwk); err != nil {
			return fmt.Errorf("failed to parse JWK: %w", err)
		}
		pub, ok := jwk.Key.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("JWK does not hold an Ed25519 public key")
		}

		didKey, err := did.FromPublicKey(pub)
		if err != nil {
			return err
		}
		fmt.Println(didKey)
		return nil
	},
}

var didParseCmd = &cobra.Command{
	Use:   "parse <did>",
	Short: "Parse a did:key identifier and print its components",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		parsed, err := did.Parse(args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"method":    parsed.Method,
			"publicKey": parsed.PublicKey,
			"did":       parsed.Raw,
		})
	},
}

var keyringCmd = &cobra.Command{
	Use:   "keyring",
	Short: "Manage the local store of trusted issuer keys",
}

var keyringAddCmd = &cobra.Command{
	Use:   "add <public-key-jwk>",
	Short: "Trust a public key for its DID (the JWK kid)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read key file: %w", err)
		}
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(data, &jwk); err != nil {
			return fmt.Errorf("failed to parse JWK: %w", err)
		}
		if err := a.keyring.Add(jwk); err != nil {
			return err
		}
		fmt.Printf("Trusted %s\n", jwk.KeyID)
		return nil
	},
}

var keyringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		keys, err := a.keyring.List()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k.KeyID)
		}
		return nil
	},
}

var keyringRemoveCmd = &cobra.Command{
	Use:   "remove <did>",
	Short: "Stop trusting a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.keyring.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

func writeJWK(path string, jwk jose.JSONWebKey, mode os.FileMode) error {
	data, err := json.MarshalIndent(jwk, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "agent.key.jwk", "output file for the private key")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "agent.pub.jwk", "output file for the public key")
	keyGenCmd.Flags().BoolVar(&keyShowDID, "show-did", false, "only print the did:key identifier")

	keyCmd.AddCommand(keyGenCmd)
	keyringCmd.AddCommand(keyringAddCmd, keyringListCmd, keyringRemoveCmd)
	didCmd.AddCommand(didDeriveCmd, didParseCmd)
	rootCmd.AddCommand(keyCmd, keyringCmd, didCmd)
}
