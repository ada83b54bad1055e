package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/metrics"
	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/resolver"
	"github.com/telekom/fleet-coordinator/pkg/role"
	"github.com/telekom/fleet-coordinator/pkg/signer"
)

// Options carries the coordinator's timing knobs. Zero values are replaced
// by the fleet defaults at construction, so tests can set only what they
// need.
type Options struct {
	SelfID            string
	HeartbeatInterval time.Duration
	ElectionInterval  time.Duration
	PollInterval      time.Duration
	StaleThreshold    time.Duration
	RequestTimeout    time.Duration
}

// Coordinator drives the three periodic loops of fleet coordination:
// heartbeat publishing, election broadcasting, and leader polling. Each loop
// has its own timer and tolerates resolver outages; failures are logged and
// retried on the next tick. Only the poll loop ever changes this node's
// role, so a node cut off from the resolver can lose leadership but never
// gain it.
type Coordinator struct {
	log      *zap.SugaredLogger
	client   *resolver.Client
	registry *registry.Registry
	roles    *role.Store
	signer   *signer.Signer
	opts     Options

	// now is a test seam; production uses time.Now.
	now func() time.Time
}

func New(log *zap.SugaredLogger, client *resolver.Client, reg *registry.Registry, roles *role.Store, sig *signer.Signer, opts Options) *Coordinator {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 60 * time.Second
	}
	if opts.ElectionInterval <= 0 {
		opts.ElectionInterval = 180 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = 300 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	return &Coordinator{
		log:      log.Named("consensus"),
		client:   client,
		registry: reg,
		roles:    roles,
		signer:   sig,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run starts the heartbeat, election and poll loops and blocks until the
// context is cancelled. Each loop runs one iteration immediately so a fresh
// node announces itself without waiting a full interval.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Infow("Starting coordination loops",
		"heartbeatInterval", c.opts.HeartbeatInterval,
		"electionInterval", c.opts.ElectionInterval,
		"pollInterval", c.opts.PollInterval)

	var wg sync.WaitGroup
	wg.Add(3)
	go c.loop(ctx, &wg, "heartbeat", c.opts.HeartbeatInterval, c.SendHeartbeat)
	go c.loop(ctx, &wg, "election", c.opts.ElectionInterval, c.RunElection)
	go c.loop(ctx, &wg, "poll", c.opts.PollInterval, c.PollLeader)
	wg.Wait()

	c.log.Info("Coordination loops stopped")
}

func (c *Coordinator) loop(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, step func(context.Context) error) {
	defer wg.Done()

	// Jittered so a fleet restarted in unison does not hammer the resolver
	// in lockstep.
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: interval / 10})
	defer ticker.Stop()

	if err := step(ctx); err != nil {
		c.log.Warnw("Loop iteration failed", "loop", name, "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := step(ctx); err != nil {
				c.log.Warnw("Loop iteration failed", "loop", name, "error", err)
			}
		}
	}
}

// SendHeartbeat announces this node to the resolver and refreshes its own
// registry record so the node counts as an active peer in its own election
// view.
func (c *Coordinator) SendHeartbeat(ctx context.Context) error {
	now := c.now()
	epoch := now.Unix()
	c.registry.RecordSeen(c.opts.SelfID, epoch, now)

	callCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	ack, err := c.client.PostHeartbeat(callCtx, resolver.Heartbeat{Node: c.opts.SelfID, Epoch: epoch})
	if err != nil {
		metrics.HeartbeatsSent.WithLabelValues("error").Inc()
		return err
	}
	if !ack.Valid {
		metrics.HeartbeatsSent.WithLabelValues("rejected").Inc()
		return fmt.Errorf("resolver rejected heartbeat for %s", c.opts.SelfID)
	}
	metrics.HeartbeatsSent.WithLabelValues("success").Inc()
	return nil
}

// RunElection computes this node's candidate leader from its local peer view
// and broadcasts a signed report. The report is only a vote: the effective
// leader is whatever record most recently reached the last-write-wins
// resolver, observed via PollLeader.
func (c *Coordinator) RunElection(ctx context.Context) error {
	now := c.now()
	active := c.registry.ActivePeers(now, c.opts.StaleThreshold)
	if len(active) == 0 {
		metrics.ElectionsSkipped.Inc()
		c.log.Debug("No active peers, skipping election round")
		return nil
	}

	candidate, ok := c.registry.Candidate(now, c.opts.StaleThreshold)
	if !ok {
		metrics.ElectionsSkipped.Inc()
		return nil
	}

	peers := make([]string, 0, len(active))
	for _, p := range active {
		peers = append(peers, p.NodeID)
	}

	report := resolver.ConsensusReport{
		Epoch:  now.Unix(),
		Leader: candidate,
		Peers:  peers,
	}
	report.Sig = c.signer.SignReport(report.Epoch, report.Leader, report.Peers)

	callCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	ack, err := c.client.PostConsensus(callCtx, report)
	if err != nil {
		metrics.ConsensusReportsSent.WithLabelValues("error").Inc()
		return err
	}

	metrics.ConsensusReportsSent.WithLabelValues("success").Inc()
	c.log.Infow("Broadcast consensus report", "candidate", candidate, "peers", len(peers), "resolverLeader", ack.Leader)
	return nil
}

// PollLeader fetches the resolver's current leader record and feeds it into
// the role store. This is the only path that can promote this node.
func (c *Coordinator) PollLeader(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	rec, err := c.client.GetLeader(callCtx)
	if err != nil {
		metrics.LeaderPolls.WithLabelValues("error").Inc()
		return err
	}
	if rec.Leader == "" {
		// resolver has not seen a consensus report yet; keep current role
		metrics.LeaderPolls.WithLabelValues("empty").Inc()
		return nil
	}

	metrics.LeaderPolls.WithLabelValues("success").Inc()
	c.roles.SetLeader(rec.Leader, rec.Lease)
	return nil
}
