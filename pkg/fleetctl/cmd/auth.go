package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/auth"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/config"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored bearer tokens",
	}

	cmd.AddCommand(
		newAuthSetTokenCommand(),
		newAuthClearCommand(),
	)

	return cmd
}

func newAuthSetTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token TOKEN",
		Short: "Store the bearer token for the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			ctxCfg, err := rt.ResolveContext()
			if err != nil {
				return err
			}
			if args[0] == "" {
				return errors.New("token must not be empty")
			}
			store, err := auth.NewStore(rt.TokenStorage(), config.DefaultTokenPath())
			if err != nil {
				return err
			}
			if err := store.Set(ctxCfg.Name, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Stored token for context %s\n", ctxCfg.Name)
			return nil
		},
	}
}

func newAuthClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token for the current context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			ctxCfg, err := rt.ResolveContext()
			if err != nil {
				return err
			}
			store, err := auth.NewStore(rt.TokenStorage(), config.DefaultTokenPath())
			if err != nil {
				return err
			}
			if err := store.Delete(ctxCfg.Name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Cleared token for context %s\n", ctxCfg.Name)
			return nil
		},
	}
}
