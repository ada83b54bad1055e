// Package cmd wires the fleetctl command tree. Commands resolve their target
// node through a kubeconfig-style context file and talk to the node's HTTP
// surface with a stored bearer token.
package cmd
