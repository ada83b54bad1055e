package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/metrics"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// Service is the audit entry point for the rest of the node. Emit is
// asynchronous: events go through a bounded queue drained by a single
// worker, so a slow sink never blocks a role transition or a request
// handler. When the queue is full the event is dropped and counted rather
// than applying backpressure.
type Service struct {
	sink   Sink
	logger *zap.Logger
	node   string

	queue   chan *Event
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewService starts the audit worker. Pass a MultiSink to fan out to
// several destinations.
func NewService(sink Sink, node string, logger *zap.Logger) *Service {
	s := &Service{
		sink:   sink,
		logger: logger.Named("audit-service"),
		node:   node,
		queue:  make(chan *Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		if err := s.sink.Write(ctx, event); err != nil {
			s.logger.Warn("failed to write audit event",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
		cancel()
	}
}

// Emit queues an event for delivery. Never blocks.
func (s *Service) Emit(event *Event) {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	select {
	case s.queue <- event:
	default:
		metrics.AuditEventsEmitted.WithLabelValues(s.sink.Name(), "dropped").Inc()
		s.logger.Warn("audit queue full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
	s.closeMu.Unlock()
}

// Close drains the queue and closes the sink.
func (s *Service) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.closeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.logger.Warn("timed out draining audit queue")
	}
	return s.sink.Close()
}

// LeaderElected records that this node became leader.
func (s *Service) LeaderElected(leaseToken string) {
	event := NewEvent(EventLeaderElected, s.node)
	event.Details = map[string]interface{}{"lease": leaseToken}
	s.Emit(event)
}

// LeaderLost records that this node lost leadership to newLeader.
func (s *Service) LeaderLost(newLeader string) {
	event := NewEvent(EventLeaderLost, s.node)
	event.Details = map[string]interface{}{"new_leader": newLeader}
	s.Emit(event)
}

// WorkloadAdopted records that this node took ownership of a workload.
func (s *Service) WorkloadAdopted(workload, env string) {
	event := NewEvent(EventWorkloadAdopted, s.node)
	event.Environment = env
	event.Details = map[string]interface{}{"workload": workload}
	s.Emit(event)
}

// WorkloadReleased records that this node gave up ownership of a workload.
func (s *Service) WorkloadReleased(workload, env string) {
	event := NewEvent(EventWorkloadReleased, s.node)
	event.Environment = env
	event.Details = map[string]interface{}{"workload": workload}
	s.Emit(event)
}

// WorkloadStopped records a workload stopped during a restart or drain.
func (s *Service) WorkloadStopped(workload, env string) {
	event := NewEvent(EventWorkloadStopped, s.node)
	event.Environment = env
	event.Details = map[string]interface{}{"workload": workload}
	s.Emit(event)
}

// DeployExecuted records a deploy accepted by the leader.
func (s *Service) DeployExecuted(image, requestedBy string) {
	event := NewEvent(EventDeployExecuted, s.node)
	event.Details = map[string]interface{}{
		"image":        image,
		"requested_by": requestedBy,
	}
	s.Emit(event)
}

// DeployIgnored records a deploy refused by a witness node.
func (s *Service) DeployIgnored(image, requestedBy string) {
	event := NewEvent(EventDeployIgnored, s.node)
	event.Details = map[string]interface{}{
		"image":        image,
		"requested_by": requestedBy,
	}
	s.Emit(event)
}

// TokenIssued records a successful token grant.
func (s *Service) TokenIssued(subject, scope string, ttl time.Duration) {
	event := NewEvent(EventTokenIssued, s.node)
	event.Details = map[string]interface{}{
		"subject": subject,
		"scope":   scope,
		"ttl":     ttl.String(),
	}
	s.Emit(event)
}

// TokenRenewed records that a still-valid token was traded for a fresh one.
func (s *Service) TokenRenewed(subject, scope string, ttl time.Duration) {
	event := NewEvent(EventTokenRenewed, s.node)
	event.Details = map[string]interface{}{
		"subject": subject,
		"scope":   scope,
		"ttl":     ttl.String(),
	}
	s.Emit(event)
}

// TokenDenied records a rejected token request or renewal.
func (s *Service) TokenDenied(subject, reason string) {
	event := NewEvent(EventTokenDenied, s.node)
	event.Details = map[string]interface{}{
		"subject": subject,
		"reason":  reason,
	}
	s.Emit(event)
}

// SystemStartup records process start.
func (s *Service) SystemStartup(version string) {
	event := NewEvent(EventSystemStartup, s.node)
	event.Details = map[string]interface{}{"version": version}
	s.Emit(event)
}

// SystemShutdown records graceful shutdown.
func (s *Service) SystemShutdown() {
	s.Emit(NewEvent(EventSystemShutdown, s.node))
}
