package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/telekom/fleet-coordinator/pkg/fleetctl/output"
)

func NewDeployCommand() *cobra.Command {
	var (
		service string
		image   string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Trigger a deployment on the target node",
		Long: "Trigger a deployment on the target node. Only the fleet leader acts on\n" +
			"the request; witnesses acknowledge it and report not-leader.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if image == "" {
				return errors.New("image is required")
			}
			cli, err := buildClient(rt)
			if err != nil {
				return err
			}
			result, err := cli.Deploy(cmd.Context(), service, image)
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, result)
			}

			w := rt.Writer()
			switch result.Status {
			case "restarted":
				_, _ = fmt.Fprintf(w, "Deployed %s: restarted %d workload(s)\n", result.Image, result.Restarted)
			case "ignored":
				_, _ = fmt.Fprintf(w, "Ignored by node (%s); retry against the leader\n", result.Reason)
			default:
				_, _ = fmt.Fprintf(w, "Deploy returned status %q\n", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", "", "Restrict the rollout to one service")
	cmd.Flags().StringVarP(&image, "image", "i", "", "Image reference to roll out")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}
