package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/output"
)

func NewLeaderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "leader",
		Short: "Show the resolver's current leader record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cli, err := buildClient(rt)
			if err != nil {
				return err
			}
			record, err := cli.Leader(cmd.Context())
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, record)
			}

			w := rt.Writer()
			if record.Leader == "" {
				_, _ = fmt.Fprintln(w, "No leader elected yet")
				return nil
			}
			_, _ = fmt.Fprintf(w, "Leader: %s\n", record.Leader)
			_, _ = fmt.Fprintf(w, "Lease:  %s\n", record.Lease)
			if record.Epoch > 0 {
				_, _ = fmt.Fprintf(w, "Epoch:  %s\n", time.Unix(record.Epoch, 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}
