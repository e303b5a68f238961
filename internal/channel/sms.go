package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"triconnect/pkg/circuitbreaker"
	"triconnect/pkg/config"
	"triconnect/pkg/metrics"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

var errSMSNotConfigured = errors.New("provider not configured: twilio")

// TwilioSMSSender calls the Twilio messages REST endpoint directly.
type TwilioSMSSender struct {
	cfg        config.SMSConfig
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewTwilioSMSSender(cfg config.SMSConfig, logger *zap.Logger) *TwilioSMSSender {
	if !smsConfigured(cfg) {
		logger.Warn("Twilio not configured, SMS delivery will fail until credentials are set")
	}
	return &TwilioSMSSender{
		cfg:     cfg,
		baseURL: twilioAPIBase,
		httpClient: &http.Client{
			Timeout: 5 * time.Second, // 5秒超时，避免扫描被单个号码卡死
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// WithBaseURL 重定向 API 地址，测试用
func (s *TwilioSMSSender) WithBaseURL(base string) *TwilioSMSSender {
	s.baseURL = base
	return s
}

func smsConfigured(cfg config.SMSConfig) bool {
	return strings.HasPrefix(cfg.AccountSID, "AC") && cfg.AuthToken != "" && cfg.FromNumber != ""
}

// SendSMS implements SMSSender.
func (s *TwilioSMSSender) SendSMS(ctx context.Context, phone, body string) DeliveryResult {
	start := time.Now()

	if !smsConfigured(s.cfg) {
		metrics.RecordDeliveryLatency("sms", "failed", time.Since(start))
		return Failure(errSMSNotConfigured)
	}

	var sid string
	err := s.breaker.Execute(func() error {
		var innerErr error
		sid, innerErr = s.postMessage(ctx, phone, body)
		return innerErr
	})
	if err != nil {
		s.logger.Error("SMS delivery failed",
			zap.String("to", phone),
			zap.Error(err),
		)
		metrics.RecordDeliveryLatency("sms", "failed", time.Since(start))
		return Failure(err)
	}

	s.logger.Info("SMS sent",
		zap.String("to", phone),
		zap.String("message_sid", sid),
	)
	metrics.RecordDeliveryLatency("sms", "sent", time.Since(start))
	return Success(sid)
}

func (s *TwilioSMSSender) postMessage(ctx context.Context, phone, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("provider returned 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio error: %d", resp.StatusCode)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SID, nil
}
