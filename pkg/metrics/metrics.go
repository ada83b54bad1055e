package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Node-side federation loop metrics
	HeartbeatsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_heartbeats_sent_total",
		Help: "Total number of heartbeats sent to the resolver",
	}, []string{"result"})
	ConsensusReportsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_consensus_reports_sent_total",
		Help: "Total number of consensus reports broadcast to the resolver",
	}, []string{"result"})
	LeaderPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_leader_polls_total",
		Help: "Total number of leader record polls against the resolver",
	}, []string{"result"})
	ElectionsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_elections_skipped_total",
		Help: "Total number of election cycles skipped because no peer was active",
	})

	// Role metrics
	RoleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_role_transitions_total",
		Help: "Total number of leadership transitions observed by this node",
	}, []string{"event"})
	IsLeader = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_is_leader",
		Help: "Whether this node currently holds leadership (1) or is a witness (0)",
	})

	// Handover metrics
	HandoverOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_handover_operations_total",
		Help: "Total number of workload ownership operations during handover",
	}, []string{"operation", "result"})

	// Node API metrics
	DeployRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_deploy_requests_total",
		Help: "Total number of deploy requests grouped by outcome",
	}, []string{"status"})
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_tokens_issued_total",
		Help: "Total number of ephemeral capability tokens issued",
	}, []string{"scope"})

	// Resolver-side metrics (embedded resolver)
	HeartbeatsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_resolver_heartbeats_received_total",
		Help: "Total number of heartbeats received by the embedded resolver",
	}, []string{"valid"})
	ConsensusReportsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_resolver_consensus_reports_received_total",
		Help: "Total number of consensus reports received grouped by outcome",
	}, []string{"outcome"})

	// Audit metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_audit_events_emitted_total",
		Help: "Total number of audit events written grouped by sink and result",
	}, []string{"sink", "result"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(HeartbeatsSent)
	prometheus.MustRegister(ConsensusReportsSent)
	prometheus.MustRegister(LeaderPolls)
	prometheus.MustRegister(ElectionsSkipped)
	prometheus.MustRegister(RoleTransitions)
	prometheus.MustRegister(IsLeader)
	prometheus.MustRegister(HandoverOps)
	prometheus.MustRegister(DeployRequests)
	prometheus.MustRegister(TokensIssued)
	prometheus.MustRegister(HeartbeatsReceived)
	prometheus.MustRegister(ConsensusReportsReceived)
	prometheus.MustRegister(AuditEventsEmitted)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
