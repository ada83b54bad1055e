package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/version"
)

// Client talks to a resolver over the /federation/* wire contract. Every
// call is bounded by the configured timeout and honors context
// cancellation; callers treat all returned errors as TransportErrors (log
// and retry next tick).
type Client struct {
	rest *resty.Client
	log  *zap.SugaredLogger
}

// NewClient builds a resolver client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent("fleetd"))
	return &Client{rest: rest, log: log.Named("resolver-client")}
}

// PostHeartbeat sends a liveness signal. Fire-and-forget semantics live in
// the caller; this just reports transport or status failures.
func (c *Client) PostHeartbeat(ctx context.Context, hb Heartbeat) (HeartbeatAck, error) {
	var ack HeartbeatAck
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(hb).
		SetResult(&ack).
		Post("/federation/heartbeat")
	if err != nil {
		return HeartbeatAck{}, fmt.Errorf("posting heartbeat: %w", err)
	}
	if !resp.IsSuccess() {
		return HeartbeatAck{}, fmt.Errorf("posting heartbeat: resolver returned %s", resp.Status())
	}
	return ack, nil
}

// PostConsensus broadcasts a signed consensus report.
func (c *Client) PostConsensus(ctx context.Context, report ConsensusReport) (ConsensusAck, error) {
	var ack ConsensusAck
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(report).
		SetResult(&ack).
		Post("/federation/consensus")
	if err != nil {
		return ConsensusAck{}, fmt.Errorf("posting consensus report: %w", err)
	}
	if !resp.IsSuccess() {
		return ConsensusAck{}, fmt.Errorf("posting consensus report: resolver returned %s", resp.Status())
	}
	return ack, nil
}

// GetLeader fetches the resolver's current leader record.
func (c *Client) GetLeader(ctx context.Context) (LeaderRecord, error) {
	var rec LeaderRecord
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&rec).
		Get("/federation/leader")
	if err != nil {
		return LeaderRecord{}, fmt.Errorf("fetching leader record: %w", err)
	}
	if !resp.IsSuccess() {
		return LeaderRecord{}, fmt.Errorf("fetching leader record: resolver returned %s", resp.Status())
	}
	return rec, nil
}
