package handover

import (
	"context"
	"time"
)

// Ownership labels stamped onto workloads. The owner label is the single
// source of truth for which node may act on a workload; the env label scopes
// listing. These keys are shared with every node in the fleet and with
// external tooling that inspects ownership, so they must not change.
const (
	LabelOwner = "fleet.owner"
	LabelEnv   = "fleet.env"
	LabelEpoch = "fleet.epoch"
)

// Workload is the runtime-agnostic view of one managed workload.
type Workload struct {
	ID     string
	Labels map[string]string
}

// Owner returns the current ownership label value, empty when unowned.
func (w Workload) Owner() string {
	return w.Labels[LabelOwner]
}

// WorkloadRuntime abstracts the external system that hosts workloads. The
// Kubernetes implementation is the production one; tests inject a fake.
// Every call carries a context and is expected to fail fast when the
// runtime is unreachable rather than block a role transition.
type WorkloadRuntime interface {
	// List returns all workloads in the given environment.
	List(ctx context.Context, env string) ([]Workload, error)
	// SetLabel sets key=value on the workload.
	SetLabel(ctx context.Context, id, key, value string) error
	// RemoveLabel drops key from the workload, no-op when absent.
	RemoveLabel(ctx context.Context, id, key string) error
	// Stop gracefully stops the workload, giving it at most timeout to
	// drain in-flight work.
	Stop(ctx context.Context, id string, timeout time.Duration) error
}
