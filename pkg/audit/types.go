package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Role transition events ===
	EventLeaderElected EventType = "role.promoted"
	EventLeaderLost    EventType = "role.demoted"

	// === Handover events ===
	EventWorkloadAdopted  EventType = "handover.adopted"
	EventWorkloadReleased EventType = "handover.released"
	EventWorkloadStopped  EventType = "handover.stopped"

	// === Deploy gate events ===
	EventDeployExecuted EventType = "deploy.executed"
	EventDeployIgnored  EventType = "deploy.ignored"

	// === Token events ===
	EventTokenIssued  EventType = "token.issued"
	EventTokenRenewed EventType = "token.renewed"
	EventTokenDenied  EventType = "token.denied"

	// === System events ===
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event.
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Node is the node that produced the event
	Node string `json:"node"`

	// Environment is the workload environment in scope, if any
	Environment string `json:"environment,omitempty"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewEvent builds an event with ID, timestamp and default severity filled
// in.
func NewEvent(eventType EventType, node string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  SeverityForEventType(eventType),
		Timestamp: time.Now().UTC(),
		Node:      node,
	}
}

// SeverityForEventType returns the default severity for an event type.
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventLeaderElected, EventLeaderLost:
		return SeverityWarning
	case EventTokenDenied:
		return SeverityWarning
	case EventSystemShutdown:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
