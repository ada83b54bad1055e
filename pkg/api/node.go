package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/apiresponses"
	"github.com/telekom/fleet-coordinator/pkg/audit"
	"github.com/telekom/fleet-coordinator/pkg/config"
	"github.com/telekom/fleet-coordinator/pkg/metrics"
	"github.com/telekom/fleet-coordinator/pkg/ratelimit"
	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/role"
	"github.com/telekom/fleet-coordinator/pkg/signer"
	"github.com/telekom/fleet-coordinator/pkg/version"
)

const defaultTokenTTL = 5 * time.Minute

// Deployer performs the privileged restart behind the deploy gate.
type Deployer interface {
	Restart(ctx context.Context, service string) (int, error)
}

// NodeController serves the node-facing surface: the deploy gate, status,
// and token operations. Privileged routes are gated on leadership; a
// witness acknowledges deploy requests without acting on them so callers
// can broadcast to the whole fleet and rely on exactly one node reacting.
type NodeController struct {
	log      *zap.SugaredLogger
	cfg      config.Config
	roles    *role.Store
	registry *registry.Registry
	signer   *signer.Signer
	auditor  *audit.Service
	deployer Deployer

	limits  *ratelimit.Limiter
	started time.Time
}

func NewNodeController(log *zap.SugaredLogger, cfg config.Config, roles *role.Store, reg *registry.Registry, sig *signer.Signer, auditor *audit.Service, deployer Deployer) *NodeController {
	return &NodeController{
		log:      log.Named("node-api"),
		cfg:      cfg,
		roles:    roles,
		registry: reg,
		signer:   sig,
		auditor:  auditor,
		deployer: deployer,
		limits:   ratelimit.New(ratelimit.Defaults()),
		started:  time.Now(),
	}
}

func (ctl *NodeController) BasePath() string { return "" }

func (ctl *NodeController) Handlers() []gin.HandlerFunc { return nil }

func (ctl *NodeController) Register(rg *gin.RouterGroup) error {
	requireAuth := RequireAuth(ctl.log, ctl.cfg.Server.AuthToken)

	rg.GET("/status", ctl.limits.Middleware(ratelimit.TierRead), ctl.getStatus)

	privileged := ctl.limits.Middleware(ratelimit.TierPrivileged)
	rg.POST("/deploy", privileged, requireAuth, ctl.postDeploy)
	rg.POST("/token", privileged, requireAuth, ctl.postToken)
	rg.POST("/token/renew", privileged, requireAuth, ctl.postTokenRenew)
	return nil
}

// Stop releases the rate limiter sweep goroutine.
func (ctl *NodeController) Stop() {
	ctl.limits.Stop()
}

// StatusResponse describes this node's view of the fleet.
type StatusResponse struct {
	Node        string            `json:"node"`
	Environment string            `json:"environment"`
	IsLeader    bool              `json:"is_leader"`
	Leader      string            `json:"leader,omitempty"`
	ActivePeers int               `json:"active_peers"`
	KnownPeers  []string          `json:"known_peers"`
	Uptime      float64           `json:"uptime_seconds"`
	Build       version.BuildInfo `json:"build"`
}

func (ctl *NodeController) getStatus(c *gin.Context) {
	state := ctl.roles.Current()
	now := time.Now().UTC()

	c.JSON(http.StatusOK, StatusResponse{
		Node:        ctl.cfg.Node.ID,
		Environment: ctl.cfg.Node.Environment,
		IsLeader:    state.IsLeader,
		Leader:      state.LeaderID,
		ActivePeers: len(ctl.registry.ActivePeers(now, ctl.cfg.StalePeerThreshold())),
		KnownPeers:  ctl.registry.KnownPeers(),
		Uptime:      time.Since(ctl.started).Seconds(),
		Build:       version.GetBuildInfo(),
	})
}

// DeployRequest asks the fleet to roll its workloads onto a new image.
type DeployRequest struct {
	Service string `json:"service,omitempty"`
	Image   string `json:"image"`
}

// DeployResponse reports whether this node acted on the request.
type DeployResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
	Image     string `json:"image,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Restarted int    `json:"restarted,omitempty"`
}

func (ctl *NodeController) postDeploy(c *gin.Context) {
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(c, "malformed deploy request")
		return
	}

	if !ctl.roles.IsLeader() {
		metrics.DeployRequests.WithLabelValues("ignored").Inc()
		ctl.auditor.DeployIgnored(req.Image, c.ClientIP())
		ctl.log.Infow("Ignoring deploy request, not leader", "image", req.Image)
		c.JSON(http.StatusOK, DeployResponse{
			Status: "ignored",
			Reason: "not-leader",
		})
		return
	}

	restarted, err := ctl.deployer.Restart(c.Request.Context(), req.Service)
	if err != nil {
		metrics.DeployRequests.WithLabelValues("error").Inc()
		apiresponses.RespondInternalError(c, "restart workloads", err, ctl.log)
		return
	}

	metrics.DeployRequests.WithLabelValues("restarted").Inc()
	ctl.auditor.DeployExecuted(req.Image, c.ClientIP())
	c.JSON(http.StatusOK, DeployResponse{
		Status:    "restarted",
		Service:   req.Service,
		Image:     req.Image,
		Restarted: restarted,
	})
}

// TokenRequest asks the leader for an ephemeral capability token.
type TokenRequest struct {
	Node       string `json:"node"`
	Scope      string `json:"scope"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func (ctl *NodeController) postToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(c, "malformed token request")
		return
	}
	if req.Node == "" {
		apiresponses.RespondBadRequest(c, "token request missing node")
		return
	}
	if req.Scope == "" {
		req.Scope = "deploy"
	}

	if !ctl.roles.IsLeader() {
		ctl.auditor.TokenDenied(req.Node, "not-leader")
		apiresponses.RespondForbidden(c, "not-leader")
		return
	}

	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	tok := ctl.signer.IssueToken(req.Node, req.Scope, ttl)
	metrics.TokensIssued.WithLabelValues(req.Scope).Inc()
	ctl.auditor.TokenIssued(req.Node, req.Scope, ttl)
	c.JSON(http.StatusOK, tok)
}

// TokenRenewRequest trades a still-valid token for a fresh one.
type TokenRenewRequest struct {
	Token      signer.Token `json:"token"`
	TTLSeconds int          `json:"ttl_seconds"`
}

func (ctl *NodeController) postTokenRenew(c *gin.Context) {
	var req TokenRenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequest(c, "malformed token renewal request")
		return
	}

	if !ctl.roles.IsLeader() {
		ctl.auditor.TokenDenied(req.Token.NodeID, "not-leader")
		apiresponses.RespondForbidden(c, "not-leader")
		return
	}

	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	tok, err := ctl.signer.RenewToken(req.Token, ttl)
	if err != nil {
		ctl.auditor.TokenDenied(req.Token.NodeID, err.Error())
		apiresponses.RespondForbidden(c, err.Error())
		return
	}

	metrics.TokensIssued.WithLabelValues(tok.Scope).Inc()
	ctl.auditor.TokenRenewed(tok.NodeID, tok.Scope, ttl)
	c.JSON(http.StatusOK, tok)
}
