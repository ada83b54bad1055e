// Package audit records the privileged actions of a node (role
// transitions, deploys, token grants) to pluggable sinks. Delivery is
// best-effort and asynchronous: audit must never block coordination.
package audit
