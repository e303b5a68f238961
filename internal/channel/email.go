package channel

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"triconnect/pkg/circuitbreaker"
	"triconnect/pkg/config"
	"triconnect/pkg/metrics"
)

var errEmailNotConfigured = errors.New("provider not configured: smtp")

// SMTPEmailSender delivers mail over plain SMTP with AUTH.
type SMTPEmailSender struct {
	cfg     config.SMTPConfig
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger

	// send 可替换，便于测试
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmailSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPEmailSender {
	if cfg.Host == "" {
		logger.Warn("SMTP not configured, email delivery will fail until EMAIL_HOST is set")
	}
	return &SMTPEmailSender{
		cfg:     cfg,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
		send:    smtp.SendMail,
	}
}

// SendEmail implements EmailSender. It never panics; configuration or
// provider problems come back as a failure result.
func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, htmlBody string) DeliveryResult {
	start := time.Now()

	if s.cfg.Host == "" {
		metrics.RecordDeliveryLatency("email", "failed", time.Since(start))
		return Failure(errEmailNotConfigured)
	}

	messageID := uuid.NewString()
	msg := buildMIMEMessage(s.cfg.From, to, subject, htmlBody, messageID)

	err := s.breaker.Execute(func() error {
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
		var auth smtp.Auth
		if s.cfg.User != "" {
			auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		}
		return s.send(addr, auth, s.cfg.From, []string{to}, msg)
	})
	if err != nil {
		s.logger.Error("Email delivery failed",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		metrics.RecordDeliveryLatency("email", "failed", time.Since(start))
		return Failure(err)
	}

	s.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("message_id", messageID),
	)
	metrics.RecordDeliveryLatency("email", "sent", time.Since(start))
	return Success(messageID)
}

func buildMIMEMessage(from, to, subject, htmlBody, messageID string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: <%s>\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
