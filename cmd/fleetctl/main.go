package main

import (
	"os"

	fleetctlcmd "github.com/telekom/fleet-coordinator/pkg/fleetctl/cmd"
)

func main() {
	root := fleetctlcmd.NewRootCommand(fleetctlcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
