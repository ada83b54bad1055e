package notify

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/fleet-coordinator/pkg/config"
	"github.com/telekom/fleet-coordinator/pkg/metrics"
)

// Sender delivers notification mails. The interface exists so the service
// can be tested without an SMTP server.
type Sender interface {
	Send(receivers []string, subject, body string) error
	Host() string
}

type sender struct {
	dialer         *gomail.Dialer
	senderAddress  string
	log            *zap.SugaredLogger
	retryCount     int
	retryBackoffMs int
}

func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)

	senderAddr := cfg.SenderAddress
	if senderAddr == "" {
		senderAddr = "noreply@fleet.local"
	}

	return &sender{
		dialer:         d,
		senderAddress:  senderAddr,
		log:            log.Named("mail"),
		retryCount:     3,
		retryBackoffMs: 100,
	}
}

func (s *sender) Send(receivers []string, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.senderAddress)
	msg.SetHeader("Bcc", receivers...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			metrics.MailSendSuccess.WithLabelValues(s.Host()).Inc()
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Mail send attempt failed, retrying",
				"attempt", attempt+1, "backoffMs", backoffMs, "error", err)
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	metrics.MailSendFailure.WithLabelValues(s.Host()).Inc()
	s.log.Errorw("Giving up sending mail", "attempts", s.retryCount+1, "error", lastErr)
	return lastErr
}

func (s *sender) Host() string {
	return s.dialer.Host
}
