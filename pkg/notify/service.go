package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/config"
)

// Service sends operator notifications on role transitions. Sends run in
// the background so a slow SMTP server never delays a handover; Wait()
// flushes in-flight sends on shutdown.
type Service struct {
	sender     Sender
	log        *zap.SugaredLogger
	recipients []string
	node       string
	env        string
	enabled    bool

	wg sync.WaitGroup
}

func NewService(cfg config.Mail, node, env string, log *zap.SugaredLogger) *Service {
	svc := &Service{
		log:        log.Named("notify"),
		recipients: cfg.Recipients,
		node:       node,
		env:        env,
		enabled:    cfg.Enabled && len(cfg.Recipients) > 0,
	}
	if svc.enabled {
		svc.sender = NewSender(cfg, log)
	}
	return svc
}

// NotifyPromoted announces that this node became leader.
func (s *Service) NotifyPromoted(leaseToken string) {
	s.notify("promoted", func(p RoleChangeMailParams) (string, error) {
		p.LeaseToken = leaseToken
		p.LeaderID = s.node
		return RenderPromoted(p)
	})
}

// NotifyDemoted announces that leadership moved to newLeader.
func (s *Service) NotifyDemoted(newLeader string) {
	s.notify("demoted", func(p RoleChangeMailParams) (string, error) {
		p.LeaderID = newLeader
		return RenderDemoted(p)
	})
}

func (s *Service) notify(kind string, build func(RoleChangeMailParams) (string, error)) {
	if !s.enabled {
		return
	}

	params := RoleChangeMailParams{
		Node:        s.node,
		Environment: s.env,
		OccurredAt:  time.Now().UTC(),
	}
	body, err := build(params)
	if err != nil {
		s.log.Errorw("Failed to render notification body", "kind", kind, "error", err)
		return
	}
	subject := fmt.Sprintf("[fleet] node %s %s (%s)", s.node, kind, s.env)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.sender.Send(s.recipients, subject, body); err != nil {
			s.log.Warnw("Notification delivery failed", "kind", kind, "error", err)
		}
	}()
}

// Wait blocks until all in-flight notifications are delivered or given up.
func (s *Service) Wait() {
	s.wg.Wait()
}
