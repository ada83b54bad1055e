package resolver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/apiresponses"
	"github.com/telekom/fleet-coordinator/pkg/metrics"
	"github.com/telekom/fleet-coordinator/pkg/ratelimit"
	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/signer"
)

// Controller hosts the resolver side of the federation wire contract. It is
// mounted by fleetd when the embedded resolver is enabled, and by tests to
// exercise the coordinator without network mocking. The store is injected;
// the controller itself keeps no leader state.
type Controller struct {
	log      *zap.SugaredLogger
	store    LeaderStore
	registry *registry.Registry
	signer   *signer.Signer
	limits   *ratelimit.Limiter

	// lease survives as long as the same leader keeps winning; a leader
	// change mints a fresh one.
	mu         sync.Mutex
	lastLeader string
	lastLease  string
}

func NewController(log *zap.SugaredLogger, store LeaderStore, reg *registry.Registry, sig *signer.Signer) *Controller {
	return &Controller{
		log:      log.Named("resolver"),
		store:    store,
		registry: reg,
		signer:   sig,
		limits:   ratelimit.New(ratelimit.Defaults()),
	}
}

func (ctl *Controller) BasePath() string { return "federation" }

func (ctl *Controller) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{ctl.limits.Middleware(ratelimit.TierFederation)}
}

// Stop releases the rate limiter sweep goroutine.
func (ctl *Controller) Stop() {
	ctl.limits.Stop()
}

func (ctl *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("/heartbeat", ctl.postHeartbeat)
	rg.POST("/consensus", ctl.postConsensus)
	rg.GET("/leader", ctl.getLeader)
	return nil
}

func (ctl *Controller) postHeartbeat(c *gin.Context) {
	var hb Heartbeat
	if err := c.ShouldBindJSON(&hb); err != nil {
		metrics.HeartbeatsReceived.WithLabelValues("false").Inc()
		apiresponses.RespondBadRequest(c, "malformed heartbeat payload")
		return
	}

	now := time.Now().UTC()
	valid := hb.Node != "" && hb.Epoch > 0

	var age float64
	if valid {
		for _, rec := range ctl.registry.ActivePeers(now, 24*time.Hour) {
			if rec.NodeID == hb.Node {
				age = now.Sub(rec.LastSeenAt).Seconds()
				break
			}
		}
		ctl.registry.RecordSeen(hb.Node, hb.Epoch, now)
	}

	metrics.HeartbeatsReceived.WithLabelValues(boolLabel(valid)).Inc()
	c.JSON(http.StatusOK, HeartbeatAck{
		OK:         true,
		Valid:      valid,
		Age:        age,
		ReceivedAt: now,
	})
}

func (ctl *Controller) postConsensus(c *gin.Context) {
	var report ConsensusReport
	if err := c.ShouldBindJSON(&report); err != nil {
		metrics.ConsensusReportsReceived.WithLabelValues("invalid").Inc()
		apiresponses.RespondBadRequest(c, "malformed consensus report")
		return
	}
	if report.Leader == "" {
		metrics.ConsensusReportsReceived.WithLabelValues("invalid").Inc()
		apiresponses.RespondBadRequest(c, "consensus report missing leader")
		return
	}
	if !ctl.signer.VerifyReport(report.Epoch, report.Leader, report.Peers, report.Sig) {
		metrics.ConsensusReportsReceived.WithLabelValues("bad_signature").Inc()
		ctl.log.Warnw("Rejecting consensus report with bad signature", "leader", report.Leader, "epoch", report.Epoch)
		apiresponses.RespondForbidden(c, "consensus report signature does not verify")
		return
	}

	now := time.Now().UTC()
	for _, peer := range report.Peers {
		ctl.registry.Touch(peer, now)
	}

	ctl.mu.Lock()
	if report.Leader != ctl.lastLeader {
		ctl.lastLeader = report.Leader
		ctl.lastLease = uuid.NewString()
	}
	lease := ctl.lastLease
	ctl.mu.Unlock()

	rec := LeaderRecord{Leader: report.Leader, Lease: lease, Epoch: report.Epoch}
	if err := ctl.store.Set(c.Request.Context(), rec); err != nil {
		metrics.ConsensusReportsReceived.WithLabelValues("store_error").Inc()
		apiresponses.RespondInternalError(c, "store leader record", err, ctl.log)
		return
	}

	metrics.ConsensusReportsReceived.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, ConsensusAck{
		OK:         true,
		Leader:     report.Leader,
		PeersCount: len(report.Peers),
	})
}

func (ctl *Controller) getLeader(c *gin.Context) {
	rec, err := ctl.store.Get(c.Request.Context())
	if err != nil {
		apiresponses.RespondInternalError(c, "read leader record", err, ctl.log)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
