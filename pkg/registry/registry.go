// Package registry tracks the freshest known state of every federation peer:
// its self-reported epoch and the last time any signal from it was observed.
// Records are fed by heartbeats and consensus reports, however received.
package registry

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// PeerRecord is one known node. Records are never deleted; stale nodes are
// only excluded from the active set. Memory therefore grows with the number
// of distinct node ids ever observed, which is acceptable for fleet sizes
// this runs at (see DESIGN.md for the open question).
type PeerRecord struct {
	NodeID     string    `json:"node"`
	Epoch      int64     `json:"epoch"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Registry is safe for concurrent use by the heartbeat, election and poll
// loops.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]PeerRecord
}

func New() *Registry {
	return &Registry{peers: make(map[string]PeerRecord)}
}

// RecordSeen upserts a peer observation. Each field independently keeps the
// value observed latest in wall-clock order: an out-of-order delivery never
// moves LastSeenAt backwards, but a later-observed epoch still lands. This
// is per-field last-observed-wins, not a CRDT merge; good enough for a
// best-effort election.
func (r *Registry) RecordSeen(nodeID string, epoch int64, observedAt time.Time) {
	if nodeID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.peers[nodeID]
	if !ok {
		r.peers[nodeID] = PeerRecord{NodeID: nodeID, Epoch: epoch, LastSeenAt: observedAt}
		return
	}
	if observedAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = observedAt
		rec.Epoch = epoch
	}
	r.peers[nodeID] = rec
}

// Touch refreshes a peer's LastSeenAt without claiming a new epoch, for
// signals that mention a node but carry no epoch for it (peer lists in
// consensus reports). Creates the record with epoch zero when unknown.
func (r *Registry) Touch(nodeID string, observedAt time.Time) {
	if nodeID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.peers[nodeID]
	if !ok {
		r.peers[nodeID] = PeerRecord{NodeID: nodeID, LastSeenAt: observedAt}
		return
	}
	if observedAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = observedAt
		r.peers[nodeID] = rec
	}
}

// ActivePeers returns every record seen within staleThreshold of now,
// sorted by node id for deterministic iteration.
func (r *Registry) ActivePeers(now time.Time, staleThreshold time.Duration) []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		if now.Sub(rec.LastSeenAt) < staleThreshold {
			active = append(active, rec)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].NodeID < active[j].NodeID })
	return active
}

// Candidate computes the local election candidate: the active peer with the
// highest epoch, ties broken by the lexicographically smallest node id. The
// second return is false when no peer is active.
func (r *Registry) Candidate(now time.Time, staleThreshold time.Duration) (string, bool) {
	active := r.ActivePeers(now, staleThreshold)
	if len(active) == 0 {
		return "", false
	}

	best := active[0]
	for _, rec := range active[1:] {
		if rec.Epoch > best.Epoch {
			best = rec
			continue
		}
		if rec.Epoch == best.Epoch && rec.NodeID < best.NodeID {
			best = rec
		}
	}
	return best.NodeID, true
}

// KnownPeers returns the ids of every node ever observed, active or not.
func (r *Registry) KnownPeers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := maps.Keys(r.peers)
	sort.Strings(ids)
	return ids
}

// Len reports the number of distinct nodes ever observed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
