// Package role holds a node's single source of truth for "am I the leader,
// and who is". State is mutated only through SetLeader; leadership flips are
// fanned out to registered observers through a small Idle/Transitioning
// state machine that coalesces bursts so exactly one event fires per real
// flip.
package role

import (
	"sync"

	"go.uber.org/zap"
)

// Event is a leadership transition as seen by this node.
type Event string

const (
	EventPromoted Event = "promoted"
	EventDemoted  Event = "demoted"
)

// State is a snapshot of this node's role. IsLeader and LeaderID are always
// updated together; no observer ever sees IsLeader true with a LeaderID
// naming another node.
type State struct {
	IsLeader   bool   `json:"isLeader"`
	LeaderID   string `json:"leader"`
	LeaseToken string `json:"lease,omitempty"`
}

// Handler observes leadership transitions. Handlers run without the store
// lock held and must tolerate being invoked with a state snapshot that is
// already stale by the time they finish.
type Handler func(event Event, state State)

type phase int

const (
	phaseIdle phase = iota
	phaseTransitioning
)

// Store serializes role mutations for one node. Concurrent SetLeader calls
// are applied under a single lock; while a transition handler is running,
// newer flips overwrite a single pending slot instead of queueing, so
// intermediate states that were never observable externally are never
// delivered.
type Store struct {
	selfID string
	log    *zap.SugaredLogger

	mu       sync.Mutex
	state    State
	handlers []Handler

	phase   phase
	pending *delivery
}

type delivery struct {
	event Event
	state State
}

func NewStore(selfID string, log *zap.SugaredLogger) *Store {
	return &Store{selfID: selfID, log: log.Named("role")}
}

// Subscribe registers a transition handler. Handlers registered after a
// transition do not receive it retroactively.
func (s *Store) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Current returns a read-only snapshot.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLeader reports whether this node currently holds leadership.
func (s *Store) IsLeader() bool {
	return s.Current().IsLeader
}

// SetLeader records the effective leader as reported by the resolver. When
// this flips our own leadership it emits exactly one promoted or demoted
// event. A leader change between two foreign nodes updates state silently.
//
// The first caller that causes a flip drains the dispatch loop; callers
// arriving while a handler runs deposit the latest target state and return
// immediately.
func (s *Store) SetLeader(leaderID, leaseToken string) {
	s.mu.Lock()

	newIsLeader := leaderID != "" && leaderID == s.selfID
	flipped := newIsLeader != s.state.IsLeader
	s.state = State{IsLeader: newIsLeader, LeaderID: leaderID, LeaseToken: leaseToken}

	if !flipped {
		s.mu.Unlock()
		return
	}

	event := EventDemoted
	if newIsLeader {
		event = EventPromoted
	}
	d := delivery{event: event, state: s.state}

	if s.phase == phaseTransitioning {
		// A handler is in flight; coalesce to the latest target only.
		s.pending = &d
		s.mu.Unlock()
		return
	}
	s.phase = phaseTransitioning
	s.mu.Unlock()

	s.dispatchLoop(d)
}

func (s *Store) dispatchLoop(d delivery) {
	for {
		s.log.Infow("Role transition", "event", d.event, "leader", d.state.LeaderID)

		s.mu.Lock()
		handlers := make([]Handler, len(s.handlers))
		copy(handlers, s.handlers)
		s.mu.Unlock()

		for _, h := range handlers {
			h(d.event, d.state)
		}

		s.mu.Lock()
		if s.pending == nil {
			s.phase = phaseIdle
			s.mu.Unlock()
			return
		}
		d = *s.pending
		s.pending = nil
		s.mu.Unlock()
	}
}
