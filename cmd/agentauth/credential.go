package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/credential"
)

var (
	credIssueSchema  string
	credIssueSubject string
	credIssueClaims  string
	credIssueKey     string
	credIssueExpiry  string
	credChallenge    string
	credDomain       string
	credRevokeIssuer string
	credRevokeReason string
	credRevokeKey    string
)

var credentialCmd = &cobra.Command{
	Use:     "credential",
	Aliases: []string{"cred"},
	Short:   "Issue, verify, and revoke verifiable credentials",
}

var credentialIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed credential for a subject",
	Example: `  agentauth credential issue \
    --schema AgentCertification \
    --subject did:key:z6Mk... \
    --claims '{"level":"gold","score":97}' \
    --key issuer.key.jwk`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		var claims map[string]any
		if err := json.Unmarshal([]byte(credIssueClaims), &claims); err != nil {
			return fmt.Errorf("failed to parse claims: %w", err)
		}

		issuerDID, issuerKey, err := readPrivateJWK(credIssueKey)
		if err != nil {
			return err
		}

		var opts credential.IssueOptions
		if credIssueExpiry != "" {
			d, err := time.ParseDuration(credIssueExpiry)
			if err != nil {
				return fmt.Errorf("invalid expiry: %w", err)
			}
			opts.ExpirationDate = time.Now().Add(d)
		}
		opts.Challenge = credChallenge
		opts.Domain = credDomain

		cred, err := a.credentials.Issue(cmd.Context(), credIssueSchema, credIssueSubject, claims, issuerDID, issuerKey, opts)
		if err != nil {
			return err
		}
		return printJSON(cred)
	},
}

var credentialVerifyCmd = &cobra.Command{
	Use:   "verify <credential.json>",
	Short: "Verify a credential's signature, expiration, revocation, and schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read credential file: %w", err)
		}
		var cred credential.Credential
		if err := json.Unmarshal(data, &cred); err != nil {
			return fmt.Errorf("failed to parse credential: %w", err)
		}

		result, err := a.credentials.Verify(cmd.Context(), &cred, credential.VerifyOptions{
			Challenge: credChallenge,
			Domain:    credDomain,
		})
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Valid {
			os.Exit(1)
		}
		return nil
	},
}

var credentialRevokeCmd = &cobra.Command{
	Use:   "revoke <credential-id>",
	Short: "Revoke a credential (issuer only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		issuer := credRevokeIssuer
		if issuer == "" && credRevokeKey != "" {
			did, _, err := readPrivateJWK(credRevokeKey)
			if err != nil {
				return err
			}
			issuer = did
		}
		if issuer == "" {
			return fmt.Errorf("either --issuer or --key is required")
		}

		if err := a.credentials.Revoke(cmd.Context(), args[0], issuer, credRevokeReason); err != nil {
			return err
		}
		fmt.Printf("Revoked %s\n", args[0])
		return nil
	},
}

// readPrivateJWK loads an Ed25519 private key JWK and returns its kid (the
// did:key) and the raw private key.
func readPrivateJWK(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return "", nil, fmt.Errorf("failed to parse JWK: %w", err)
	}
	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return "", nil, fmt.Errorf("key file must hold an Ed25519 private JWK")
	}
	if jwk.KeyID == "" {
		return "", nil, fmt.Errorf("key file is missing the kid (did:key) field")
	}
	return jwk.KeyID, priv, nil
}

func init() {
	credentialIssueCmd.Flags().StringVar(&credIssueSchema, "schema", "", "schema id or name (required)")
	credentialIssueCmd.Flags().StringVar(&credIssueSubject, "subject", "", "subject DID (required)")
	credentialIssueCmd.Flags().StringVar(&credIssueClaims, "claims", "{}", "claims as a JSON object")
	credentialIssueCmd.Flags().StringVar(&credIssueKey, "key", "", "issuer private key JWK file (required)")
	credentialIssueCmd.Flags().StringVar(&credIssueExpiry, "expiry", "", "validity window, e.g. 720h (default: no expiry)")
	credentialIssueCmd.Flags().StringVar(&credChallenge, "challenge", "", "bind the proof to a verifier challenge")
	credentialIssueCmd.Flags().StringVar(&credDomain, "domain", "", "bind the proof to a relying-party domain")
	_ = credentialIssueCmd.MarkFlagRequired("schema")
	_ = credentialIssueCmd.MarkFlagRequired("subject")
	_ = credentialIssueCmd.MarkFlagRequired("key")

	credentialVerifyCmd.Flags().StringVar(&credChallenge, "challenge", "", "expected proof challenge")
	credentialVerifyCmd.Flags().StringVar(&credDomain, "domain", "", "expected proof domain")

	credentialRevokeCmd.Flags().StringVar(&credRevokeIssuer, "issuer", "", "issuer DID")
	credentialRevokeCmd.Flags().StringVar(&credRevokeKey, "key", "", "issuer private key JWK file (alternative to --issuer)")
	credentialRevokeCmd.Flags().StringVar(&credRevokeReason, "reason", "", "revocation reason")

	credentialCmd.AddCommand(credentialIssueCmd, credentialVerifyCmd, credentialRevokeCmd)
	rootCmd.AddCommand(credentialCmd)
}
