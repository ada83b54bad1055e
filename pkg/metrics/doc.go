// Package metrics defines Prometheus metrics for the fleet coordinator,
// covering federation traffic, elections, role transitions, workload
// handover, deploys, and mail delivery.
package metrics
