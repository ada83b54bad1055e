package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// capturingSink records written events for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (c *capturingSink) Write(_ context.Context, event *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *capturingSink) Close() error { return nil }
func (c *capturingSink) Name() string { return "capturing" }

func (c *capturingSink) recorded() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Event(nil), c.events...)
}

func TestServiceDeliversEvents(t *testing.T) {
	sink := &capturingSink{}
	svc := NewService(sink, "node-a", zaptest.NewLogger(t))

	svc.LeaderElected("lease-1")
	svc.DeployExecuted("registry/app:v2", "10.0.0.5")
	require.NoError(t, svc.Close())

	events := sink.recorded()
	require.Len(t, events, 2)

	assert.Equal(t, EventLeaderElected, events[0].Type)
	assert.Equal(t, SeverityWarning, events[0].Severity)
	assert.Equal(t, "node-a", events[0].Node)
	assert.Equal(t, "lease-1", events[0].Details["lease"])
	assert.NotEmpty(t, events[0].ID)

	assert.Equal(t, EventDeployExecuted, events[1].Type)
	assert.Equal(t, "registry/app:v2", events[1].Details["image"])
}

func TestServiceHandoverAndRenewalEvents(t *testing.T) {
	sink := &capturingSink{}
	svc := NewService(sink, "node-a", zaptest.NewLogger(t))

	svc.WorkloadAdopted("pod-1", "prod")
	svc.WorkloadStopped("pod-1", "prod")
	svc.WorkloadReleased("pod-1", "prod")
	svc.TokenRenewed("node-b", "deploy", 5*time.Minute)
	require.NoError(t, svc.Close())

	events := sink.recorded()
	require.Len(t, events, 4)

	assert.Equal(t, EventWorkloadAdopted, events[0].Type)
	assert.Equal(t, "prod", events[0].Environment)
	assert.Equal(t, "pod-1", events[0].Details["workload"])
	assert.Equal(t, EventWorkloadStopped, events[1].Type)
	assert.Equal(t, EventWorkloadReleased, events[2].Type)

	assert.Equal(t, EventTokenRenewed, events[3].Type)
	assert.Equal(t, "node-b", events[3].Details["subject"])
	assert.Equal(t, "5m0s", events[3].Details["ttl"])
}

func TestServiceSinkErrorDoesNotPropagate(t *testing.T) {
	sink := &capturingSink{err: errors.New("broker unreachable")}
	svc := NewService(sink, "node-a", zaptest.NewLogger(t))

	// must not panic or block
	svc.LeaderLost("node-b")
	require.NoError(t, svc.Close())
}

func TestServiceEmitAfterCloseIsNoop(t *testing.T) {
	sink := &capturingSink{}
	svc := NewService(sink, "node-a", zaptest.NewLogger(t))
	require.NoError(t, svc.Close())

	svc.SystemShutdown()
	assert.Empty(t, sink.recorded())
}

func TestMultiSinkContinuesPastFailure(t *testing.T) {
	failing := &capturingSink{err: errors.New("down")}
	healthy := &capturingSink{}
	multi := NewMultiSink([]Sink{failing, healthy}, zaptest.NewLogger(t))

	event := NewEvent(EventSystemStartup, "node-a")
	err := multi.Write(context.Background(), event)
	require.Error(t, err)

	require.Len(t, healthy.recorded(), 1)
	assert.Equal(t, EventSystemStartup, healthy.recorded()[0].Type)
}

func TestSeverityDefaults(t *testing.T) {
	assert.Equal(t, SeverityWarning, SeverityForEventType(EventLeaderElected))
	assert.Equal(t, SeverityWarning, SeverityForEventType(EventTokenDenied))
	assert.Equal(t, SeverityInfo, SeverityForEventType(EventDeployExecuted))
}

func TestLogSinkWrites(t *testing.T) {
	sink := NewLogSink(zaptest.NewLogger(t))
	event := NewEvent(EventWorkloadAdopted, "node-a")
	event.Details = map[string]interface{}{"workload": "pod-1"}
	require.NoError(t, sink.Write(context.Background(), event))
	require.NoError(t, sink.Close())
	assert.Equal(t, "log", sink.Name())
}

func TestKafkaSinkConfigValidation(t *testing.T) {
	_, err := NewKafkaSink(KafkaSinkConfig{Topic: "audit"}, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewKafkaSink(KafkaSinkConfig{Brokers: []string{"localhost:9092"}}, zaptest.NewLogger(t))
	require.Error(t, err)

	sink, err := NewKafkaSink(KafkaSinkConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "fleet-audit",
		BatchTimeout: 100 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "kafka", sink.Name())
	require.NoError(t, sink.Close())
}
