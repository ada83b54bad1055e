package resolver

import "time"

// Wire types for the /federation/* contract. Field names are part of the
// wire format shared with non-Go nodes; do not rename.

// Heartbeat is the fire-and-forget liveness signal a node POSTs to the
// resolver. Epoch is the node's self-reported freshness timestamp (unix
// seconds), not a logical clock.
type Heartbeat struct {
	Node  string `json:"node"`
	Epoch int64  `json:"epoch"`
}

// HeartbeatAck acknowledges a heartbeat. Age is the seconds since the
// resolver previously saw this node, zero on first contact.
type HeartbeatAck struct {
	OK         bool      `json:"ok"`
	Valid      bool      `json:"valid"`
	Age        float64   `json:"age"`
	ReceivedAt time.Time `json:"received_at"`
}

// ConsensusReport is one node's signed election vote. Epoch is the report's
// own generation timestamp; Sig is the HMAC over the canonical report
// payload.
type ConsensusReport struct {
	Epoch  int64    `json:"epoch"`
	Leader string   `json:"leader"`
	Peers  []string `json:"peers"`
	Sig    string   `json:"sig"`
}

// ConsensusAck acknowledges an accepted report with the leader the resolver
// now holds.
type ConsensusAck struct {
	OK         bool   `json:"ok"`
	Leader     string `json:"leader"`
	PeersCount int    `json:"peers_count"`
}

// LeaderRecord is the resolver's authoritative current-leader record,
// last-write-wins. An empty Leader means no report has reached the resolver
// yet.
type LeaderRecord struct {
	Leader string `json:"leader"`
	Lease  string `json:"lease"`
	Epoch  int64  `json:"epoch"`
}
