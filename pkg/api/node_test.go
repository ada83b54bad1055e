package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/fleet-coordinator/pkg/audit"
	"github.com/telekom/fleet-coordinator/pkg/config"
	"github.com/telekom/fleet-coordinator/pkg/registry"
	"github.com/telekom/fleet-coordinator/pkg/role"
	"github.com/telekom/fleet-coordinator/pkg/signer"
)

const testSecret = "api-test-secret"

type fakeDeployer struct {
	restarted int
	err       error
	calls     int
}

func (f *fakeDeployer) Restart(_ context.Context, _ string) (int, error) {
	f.calls++
	return f.restarted, f.err
}

// recordingSink captures audit events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingSink) Write(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Close() error { return nil }
func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) recorded() []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.Event(nil), r.events...)
}

type nodeFixture struct {
	engine   *gin.Engine
	ctl      *NodeController
	roles    *role.Store
	registry *registry.Registry
	signer   *signer.Signer
	deployer *fakeDeployer
	sink     *recordingSink
	auditor  *audit.Service
}

func setupNode(t *testing.T, authToken string) *nodeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	cfg := config.Config{}
	cfg.Node.ID = "node-a"
	cfg.Node.Environment = "prod"
	cfg.Server.AuthToken = authToken

	sig, err := signer.New(testSecret)
	require.NoError(t, err)

	fx := &nodeFixture{
		roles:    role.NewStore("node-a", log.Sugar()),
		registry: registry.New(),
		signer:   sig,
		deployer: &fakeDeployer{restarted: 3},
		sink:     &recordingSink{},
	}

	fx.auditor = audit.NewService(fx.sink, "node-a", log)
	t.Cleanup(func() { _ = fx.auditor.Close() })

	fx.ctl = NewNodeController(log.Sugar(), cfg, fx.roles, fx.registry, sig, fx.auditor, fx.deployer)
	t.Cleanup(fx.ctl.Stop)

	server := NewServer(log, cfg, true)
	require.NoError(t, server.RegisterAll([]APIController{fx.ctl}))
	fx.engine = server.Engine()
	return fx
}

func (fx *nodeFixture) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)
	return w
}

func TestDeployIgnoredOnWitness(t *testing.T) {
	fx := setupNode(t, "")

	w := fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "registry/app:v2"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp DeployResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp.Status)
	assert.Equal(t, "not-leader", resp.Reason)
	assert.Zero(t, fx.deployer.calls, "a witness must not touch workloads")
}

func TestDeployRestartsOnLeader(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")

	w := fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "registry/app:v2"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp DeployResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "restarted", resp.Status)
	assert.Equal(t, "registry/app:v2", resp.Image)
	assert.Equal(t, 3, resp.Restarted)
	assert.Equal(t, 1, fx.deployer.calls)
}

func TestDeployRuntimeFailure(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")
	fx.deployer.err = errors.New("runtime unreachable")

	w := fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "registry/app:v2"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeployMalformedBody(t *testing.T) {
	fx := setupNode(t, "")

	req, _ := http.NewRequest(http.MethodPost, "/deploy", bytes.NewReader([]byte("{broken")))
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeployRequiresAuthToken(t *testing.T) {
	fx := setupNode(t, "s3cret")

	w := fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "x"}, map[string]string{
		"Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = fx.request(t, http.MethodPost, "/deploy", DeployRequest{Image: "x"}, map[string]string{
		"Authorization": "Bearer s3cret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenIssueLeaderOnly(t *testing.T) {
	fx := setupNode(t, "")

	w := fx.request(t, http.MethodPost, "/token", TokenRequest{Node: "node-b"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	fx.roles.SetLeader("node-a", "lease-1")
	w = fx.request(t, http.MethodPost, "/token", TokenRequest{Node: "node-b", Scope: "deploy", TTLSeconds: 60}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tok signer.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "node-b", tok.NodeID)
	assert.Equal(t, "deploy", tok.Scope)
	assert.NoError(t, fx.signer.ValidateToken(tok))
}

func TestTokenIssueRequiresNode(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")

	w := fx.request(t, http.MethodPost, "/token", TokenRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenRenew(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")

	old := fx.signer.IssueToken("node-b", "deploy", time.Minute)
	w := fx.request(t, http.MethodPost, "/token/renew", TokenRenewRequest{Token: old, TTLSeconds: 120}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var renewed signer.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &renewed))
	assert.Equal(t, "node-b", renewed.NodeID)
	assert.NoError(t, fx.signer.ValidateToken(renewed))
	assert.True(t, renewed.ExpiresAt.After(old.ExpiresAt))
}

func TestTokenRenewAuditsRenewal(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")

	old := fx.signer.IssueToken("node-b", "deploy", time.Minute)
	w := fx.request(t, http.MethodPost, "/token/renew", TokenRenewRequest{Token: old}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// drain the audit queue before inspecting the sink
	require.NoError(t, fx.auditor.Close())
	events := fx.sink.recorded()
	require.NotEmpty(t, events)
	assert.Equal(t, audit.EventTokenRenewed, events[len(events)-1].Type)
	assert.Equal(t, "node-b", events[len(events)-1].Details["subject"])
}

func TestTokenRenewRejectsTampered(t *testing.T) {
	fx := setupNode(t, "")
	fx.roles.SetLeader("node-a", "lease-1")

	tok := fx.signer.IssueToken("node-b", "deploy", time.Minute)
	tok.Scope = "admin"
	w := fx.request(t, http.MethodPost, "/token/renew", TokenRenewRequest{Token: tok}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatus(t *testing.T) {
	fx := setupNode(t, "")
	fx.registry.RecordSeen("node-a", 100, time.Now().UTC())
	fx.registry.RecordSeen("node-b", 200, time.Now().UTC())
	fx.roles.SetLeader("node-b", "lease-2")

	w := fx.request(t, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "node-a", resp.Node)
	assert.Equal(t, "prod", resp.Environment)
	assert.False(t, resp.IsLeader)
	assert.Equal(t, "node-b", resp.Leader)
	assert.Equal(t, 2, resp.ActivePeers)
	assert.ElementsMatch(t, []string{"node-a", "node-b"}, resp.KnownPeers)
	assert.NotEmpty(t, resp.Build.Version)
}

func TestHealthz(t *testing.T) {
	fx := setupNode(t, "")
	w := fx.request(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDebugServerAnswersCORSPreflight(t *testing.T) {
	// gin-contrib/cors refuses schemeless origins at construction, so a bad
	// allowlist entry turns into a panic the moment debug mode is enabled.
	server := NewServer(zaptest.NewLogger(t), config.Config{}, true)

	req, _ := http.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
