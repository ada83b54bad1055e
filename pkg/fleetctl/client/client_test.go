package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresServer(t *testing.T) {
	_, err := New(Options{Token: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server is required")
}

func TestStatusSendsBearerToken(t *testing.T) {
	var gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(NodeStatus{
			Node:        "node-a",
			Environment: "production",
			IsLeader:    true,
			Leader:      "node-a",
			ActivePeers: 3,
		})
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL, Token: "secret"})
	require.NoError(t, err)

	status, err := cli.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "fleetctl/dev", gotAgent)
	assert.Equal(t, "node-a", status.Node)
	assert.True(t, status.IsLeader)
	assert.Equal(t, 3, status.ActivePeers)
}

func TestLeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/federation/leader", r.URL.Path)
		_ = json.NewEncoder(w).Encode(LeaderRecord{Leader: "node-b", Lease: "lease-1", Epoch: 1700000000})
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL})
	require.NoError(t, err)

	record, err := cli.Leader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "node-b", record.Leader)
	assert.Equal(t, "lease-1", record.Lease)
}

func TestDeployPostsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deploy", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req struct {
			Service string `json:"service"`
			Image   string `json:"image"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "web", req.Service)
		assert.Equal(t, "registry.example.com/app:v2", req.Image)
		_ = json.NewEncoder(w).Encode(DeployResult{Status: "ignored", Reason: "not-leader"})
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL, Token: "t"})
	require.NoError(t, err)

	result, err := cli.Deploy(context.Background(), "web", "registry.example.com/app:v2")
	require.NoError(t, err)
	assert.Equal(t, "ignored", result.Status)
	assert.Equal(t, "not-leader", result.Reason)
}

func TestDecodeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not-leader"})
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL, Token: "t"})
	require.NoError(t, err)

	_, err = cli.IssueToken(context.Background(), TokenRequest{Node: "node-c"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Equal(t, "not-leader", httpErr.Message)
}

func TestDecodeErrorFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL})
	require.NoError(t, err)

	_, err = cli.Status(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "upstream unavailable", httpErr.Message)
}

func TestRenewToken(t *testing.T) {
	issued := time.Now().UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/renew", r.URL.Path)
		var req struct {
			Token      Token `json:"token"`
			TTLSeconds int   `json:"ttl_seconds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "node-d", req.Token.Node)
		assert.Equal(t, 600, req.TTLSeconds)
		_ = json.NewEncoder(w).Encode(Token{
			Node:      req.Token.Node,
			Scope:     req.Token.Scope,
			IssuedAt:  issued,
			ExpiresAt: issued.Add(10 * time.Minute),
			Signature: "fresh-sig",
		})
	}))
	defer srv.Close()

	cli, err := New(Options{Server: srv.URL, Token: "t"})
	require.NoError(t, err)

	renewed, err := cli.RenewToken(context.Background(), Token{Node: "node-d", Scope: "deploy", Signature: "old-sig"}, 600)
	require.NoError(t, err)
	assert.Equal(t, "fresh-sig", renewed.Signature)
	assert.Equal(t, "deploy", renewed.Scope)
}
