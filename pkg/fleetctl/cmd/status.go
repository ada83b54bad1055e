package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/output"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node role, leader, and peer view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cli, err := buildClient(rt)
			if err != nil {
				return err
			}
			status, err := cli.Status(cmd.Context())
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, status)
			}

			role := "witness"
			if status.IsLeader {
				role = "leader"
			}
			w := rt.Writer()
			_, _ = fmt.Fprintf(w, "Node:         %s\n", status.Node)
			_, _ = fmt.Fprintf(w, "Environment:  %s\n", status.Environment)
			_, _ = fmt.Fprintf(w, "Role:         %s\n", role)
			_, _ = fmt.Fprintf(w, "Leader:       %s\n", status.Leader)
			_, _ = fmt.Fprintf(w, "Active peers: %d\n", status.ActivePeers)
			if len(status.KnownPeers) > 0 {
				_, _ = fmt.Fprintf(w, "Known peers:  %s\n", strings.Join(status.KnownPeers, ", "))
			}
			_, _ = fmt.Fprintf(w, "Version:      %s (%s)\n", status.Build.Version, status.Build.GitCommit)
			return nil
		},
	}
}
