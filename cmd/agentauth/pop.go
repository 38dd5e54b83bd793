package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentauth/agentauth-core/pkg/pop"
)

var (
	popChallengeTTL time.Duration
	popRespondKey   string
)

var popCmd = &cobra.Command{
	Use:   "pop",
	Short: "Proof-of-possession challenges",
	Long: `Prove live control of the private key behind a DID.

A challenger issues a nonce bound to the subject DID; the subject signs it
and hands back a response; the challenger verifies the signature against
the key embedded in the DID.`,
}

var popChallengeCmd = &cobra.Command{
	Use:   "challenge <subject-did>",
	Short: "Issue a challenge for a DID",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		challenge, err := pop.NewChallenge(args[0], popChallengeTTL)
		if err != nil {
			return err
		}
		return printJSON(challenge)
	},
}

var popRespondCmd = &cobra.Command{
	Use:   "respond <challenge.json>",
	Short: "Answer a challenge with the private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		challenge, err := readChallenge(args[0])
		if err != nil {
			return err
		}
		_, priv, err := readPrivateJWK(popRespondKey)
		if err != nil {
			return err
		}

		response, err := pop.Respond(challenge, ed25519.PrivateKey(priv))
		if err != nil {
			return err
		}
		return printJSON(response)
	},
}

var popVerifyCmd = &cobra.Command{
	Use:   "verify <challenge.json> <response.json>",
	Short: "Verify a challenge response",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		challenge, err := readChallenge(args[0])
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read response file: %w", err)
		}
		var response pop.Response
		if err := json.Unmarshal(data, &response); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		if err := pop.VerifyResponse(challenge, &response, time.Now()); err != nil {
			fmt.Printf("Verification failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Verified: %s controls its key\n", challenge.SubjectDID)
		return nil
	},
}

func readChallenge(path string) (*pop.Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge file: %w", err)
	}
	var challenge pop.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse challenge: %w", err)
	}
	return &challenge, nil
}

func init() {
	popChallengeCmd.Flags().DurationVar(&popChallengeTTL, "ttl", pop.DefaultChallengeTTL, "challenge lifetime")
	popRespondCmd.Flags().StringVar(&popRespondKey, "key", "", "private key JWK file (required)")
	_ = popRespondCmd.MarkFlagRequired("key")

	popCmd.AddCommand(popChallengeCmd, popRespondCmd, popVerifyCmd)
	rootCmd.AddCommand(popCmd)
}
