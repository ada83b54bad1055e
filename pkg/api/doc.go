// Package api hosts the node's HTTP surface: the deploy gate, status and
// token endpoints, plus health and metrics. The federation wire contract is
// served by the resolver package and mounted through the same server when
// the embedded resolver is enabled.
package api
