package client

import (
	"context"
	"time"
)

// Wire types mirror the node and resolver JSON contracts. They are declared
// here rather than imported so the CLI does not pull in the server stack.

type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

type NodeStatus struct {
	Node        string    `json:"node"`
	Environment string    `json:"environment"`
	IsLeader    bool      `json:"is_leader"`
	Leader      string    `json:"leader,omitempty"`
	ActivePeers int       `json:"active_peers"`
	KnownPeers  []string  `json:"known_peers"`
	Uptime      float64   `json:"uptime_seconds"`
	Build       BuildInfo `json:"build"`
}

type LeaderRecord struct {
	Leader string `json:"leader"`
	Lease  string `json:"lease"`
	Epoch  int64  `json:"epoch"`
}

type DeployResult struct {
	Status    string `json:"status"`
	Service   string `json:"service,omitempty"`
	Image     string `json:"image,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Restarted int    `json:"restarted,omitempty"`
}

type Token struct {
	Node      string    `json:"node"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Signature string    `json:"signature"`
}

type TokenRequest struct {
	Node       string `json:"node"`
	Scope      string `json:"scope,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

type tokenRenewRequest struct {
	Token      Token `json:"token"`
	TTLSeconds int   `json:"ttl_seconds,omitempty"`
}

type deployRequest struct {
	Service string `json:"service,omitempty"`
	Image   string `json:"image"`
}

func (c *Client) Status(ctx context.Context) (*NodeStatus, error) {
	var status NodeStatus
	if err := c.do(ctx, "GET", "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Leader(ctx context.Context) (*LeaderRecord, error) {
	var record LeaderRecord
	if err := c.do(ctx, "GET", "/federation/leader", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) Deploy(ctx context.Context, service, image string) (*DeployResult, error) {
	var result DeployResult
	if err := c.do(ctx, "POST", "/deploy", deployRequest{Service: service, Image: image}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) IssueToken(ctx context.Context, req TokenRequest) (*Token, error) {
	var token Token
	if err := c.do(ctx, "POST", "/token", req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *Client) RenewToken(ctx context.Context, token Token, ttlSeconds int) (*Token, error) {
	var renewed Token
	req := tokenRenewRequest{Token: token, TTLSeconds: ttlSeconds}
	if err := c.do(ctx, "POST", "/token/renew", req, &renewed); err != nil {
		return nil, err
	}
	return &renewed, nil
}
