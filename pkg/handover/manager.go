package handover

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/config"
	"github.com/telekom/fleet-coordinator/pkg/metrics"
)

// Auditor records handover outcomes on the audit trail.
type Auditor interface {
	WorkloadAdopted(workload, env string)
	WorkloadReleased(workload, env string)
	WorkloadStopped(workload, env string)
}

// Manager keeps external workload ownership labels consistent with this
// node's leadership. It is driven by role transition events: promotion
// adopts every workload in the environment, demotion releases the ones this
// node owns.
//
// All operations are idempotent per workload; a partially applied handover
// (process killed mid-loop) is completed by the next invocation rather than
// rolled back. Workload-level runtime errors are logged and skipped so a
// single broken workload never blocks the rest of the transition.
type Manager struct {
	log          *zap.SugaredLogger
	runtime      WorkloadRuntime
	auditor      Auditor
	selfID       string
	env          string
	mode         string
	drainTimeout time.Duration
}

func NewManager(log *zap.SugaredLogger, rt WorkloadRuntime, auditor Auditor, selfID, env, mode string, drainTimeout time.Duration) *Manager {
	if mode == "" {
		mode = config.HandoverZeroDowntime
	}
	if drainTimeout <= 0 {
		drainTimeout = config.DefaultDrainTimeout
	}
	return &Manager{
		log:          log.Named("handover"),
		runtime:      rt,
		auditor:      auditor,
		selfID:       selfID,
		env:          env,
		mode:         mode,
		drainTimeout: drainTimeout,
	}
}

// OnPromoted adopts every workload in the environment that is unowned or
// owned by another node. Workloads already owned by this node are left
// untouched, so re-running after a partial adoption issues no duplicate
// label writes.
func (m *Manager) OnPromoted(ctx context.Context) error {
	workloads, err := m.runtime.List(ctx, m.env)
	if err != nil {
		metrics.HandoverOps.WithLabelValues("adopt", "list_error").Inc()
		m.log.Warnw("Skipping adoption, workload runtime unreachable", "env", m.env, "error", err)
		return fmt.Errorf("listing workloads in %q: %w", m.env, err)
	}

	epoch := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	adopted, skipped := 0, 0
	for _, w := range workloads {
		if w.Owner() == m.selfID {
			skipped++
			continue
		}
		if err := m.runtime.SetLabel(ctx, w.ID, LabelOwner, m.selfID); err != nil {
			metrics.HandoverOps.WithLabelValues("adopt", "error").Inc()
			m.log.Warnw("Failed to adopt workload, will retry on next transition", "workload", w.ID, "error", err)
			continue
		}
		if err := m.runtime.SetLabel(ctx, w.ID, LabelEpoch, epoch); err != nil {
			// ownership took effect anyway, epoch label is informational
			m.log.Warnw("Failed to stamp adoption epoch", "workload", w.ID, "error", err)
		}
		metrics.HandoverOps.WithLabelValues("adopt", "success").Inc()
		m.auditor.WorkloadAdopted(w.ID, m.env)
		adopted++
	}

	m.log.Infow("Adoption pass complete", "env", m.env, "adopted", adopted, "alreadyOwned", skipped, "total", len(workloads))
	return nil
}

// Restart stops every workload owned by this node so its controller brings
// it back up on the new image. Ownership labels are untouched; the deploy
// gate calls this only on the leader. A non-empty service narrows the pass
// to workloads whose "app" label (or ID) matches.
func (m *Manager) Restart(ctx context.Context, service string) (int, error) {
	workloads, err := m.runtime.List(ctx, m.env)
	if err != nil {
		metrics.HandoverOps.WithLabelValues("restart", "list_error").Inc()
		return 0, fmt.Errorf("listing workloads in %q: %w", m.env, err)
	}

	restarted := 0
	for _, w := range workloads {
		if w.Owner() != m.selfID {
			continue
		}
		if service != "" && w.ID != service && w.Labels["app"] != service {
			continue
		}
		if err := m.runtime.Stop(ctx, w.ID, m.drainTimeout); err != nil {
			metrics.HandoverOps.WithLabelValues("restart", "error").Inc()
			m.log.Warnw("Failed to restart workload", "workload", w.ID, "error", err)
			continue
		}
		metrics.HandoverOps.WithLabelValues("restart", "success").Inc()
		m.auditor.WorkloadStopped(w.ID, m.env)
		restarted++
	}

	m.log.Infow("Restart pass complete", "env", m.env, "service", service, "restarted", restarted)
	return restarted, nil
}

// OnDemoted releases every workload currently owned by this node. In
// zeroDowntime mode the workloads keep running and only the ownership label
// is cleared; in drainAndStop mode each workload is first given the drain
// timeout to stop gracefully, and the label is released even when the stop
// fails.
func (m *Manager) OnDemoted(ctx context.Context) error {
	workloads, err := m.runtime.List(ctx, m.env)
	if err != nil {
		metrics.HandoverOps.WithLabelValues("release", "list_error").Inc()
		m.log.Warnw("Skipping release, workload runtime unreachable", "env", m.env, "error", err)
		return fmt.Errorf("listing workloads in %q: %w", m.env, err)
	}

	released := 0
	for _, w := range workloads {
		if w.Owner() != m.selfID {
			continue
		}
		if m.mode == config.HandoverDrainAndStop {
			if err := m.runtime.Stop(ctx, w.ID, m.drainTimeout); err != nil {
				metrics.HandoverOps.WithLabelValues("stop", "error").Inc()
				m.log.Warnw("Graceful stop failed, releasing ownership anyway", "workload", w.ID, "error", err)
			} else {
				metrics.HandoverOps.WithLabelValues("stop", "success").Inc()
				m.auditor.WorkloadStopped(w.ID, m.env)
			}
		}
		if err := m.runtime.RemoveLabel(ctx, w.ID, LabelOwner); err != nil {
			metrics.HandoverOps.WithLabelValues("release", "error").Inc()
			m.log.Warnw("Failed to release workload, will retry on next transition", "workload", w.ID, "error", err)
			continue
		}
		metrics.HandoverOps.WithLabelValues("release", "success").Inc()
		m.auditor.WorkloadReleased(w.ID, m.env)
		released++
	}

	m.log.Infow("Release pass complete", "env", m.env, "mode", m.mode, "released", released)
	return nil
}
