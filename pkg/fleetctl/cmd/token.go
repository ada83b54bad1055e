package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/client"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/output"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and renew deploy tokens",
	}

	cmd.AddCommand(
		newTokenIssueCommand(),
		newTokenRenewCommand(),
	)

	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var (
		node       string
		scope      string
		ttlSeconds int
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed token from the fleet leader",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if node == "" {
				return fmt.Errorf("node is required")
			}
			cli, err := buildClient(rt)
			if err != nil {
				return err
			}
			token, err := cli.IssueToken(cmd.Context(), client.TokenRequest{
				Node:       node,
				Scope:      scope,
				TTLSeconds: ttlSeconds,
			})
			if err != nil {
				return err
			}
			return writeToken(rt, token)
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "Node the token is issued for")
	cmd.Flags().StringVar(&scope, "scope", "", "Token scope (defaults to deploy)")
	cmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "Token lifetime in seconds")
	_ = cmd.MarkFlagRequired("node")

	return cmd
}

func newTokenRenewCommand() *cobra.Command {
	var (
		tokenFile  string
		ttlSeconds int
	)

	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Trade a still-valid token for a fresh one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(tokenFile)
			if err != nil {
				return fmt.Errorf("failed to read token file: %w", err)
			}
			var token client.Token
			if err := json.Unmarshal(content, &token); err != nil {
				return fmt.Errorf("failed to parse token file: %w", err)
			}
			cli, err := buildClient(rt)
			if err != nil {
				return err
			}
			renewed, err := cli.RenewToken(cmd.Context(), token, ttlSeconds)
			if err != nil {
				return err
			}
			return writeToken(rt, renewed)
		},
	}

	cmd.Flags().StringVarP(&tokenFile, "file", "f", "", "File holding the token JSON")
	cmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "New lifetime in seconds")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// writeToken always emits machine-readable JSON in table mode so the output
// can be piped straight into 'token renew -f'.
func writeToken(rt *runtimeState, token *client.Token) error {
	format, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatJSON
	}
	return output.WriteObject(rt.Writer(), format, token)
}
