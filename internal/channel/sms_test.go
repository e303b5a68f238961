package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"triconnect/pkg/config"
)

func testSMSConfig() config.SMSConfig {
	return config.SMSConfig{
		AccountSID: "AC00000000000000000000000000000000",
		AuthToken:  "token",
		FromNumber: "+15550009999",
	}
}

func TestSendSMSSuccess(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("missing basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	s := NewTwilioSMSSender(testSMSConfig(), zap.NewNop()).WithBaseURL(srv.URL)

	result := s.SendSMS(context.Background(), "+15550001111", "hello there")
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if result.MessageID != "SM123" {
		t.Errorf("message id = %q, want SM123", result.MessageID)
	}
	if !strings.Contains(gotPath, "AC00000000000000000000000000000000") {
		t.Errorf("path = %q, missing account sid", gotPath)
	}
	if gotTo != "+15550001111" || gotFrom != "+15550009999" || gotBody != "hello there" {
		t.Errorf("form = to:%q from:%q body:%q", gotTo, gotFrom, gotBody)
	}
}

func TestSendSMSServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewTwilioSMSSender(testSMSConfig(), zap.NewNop()).WithBaseURL(srv.URL)

	result := s.SendSMS(context.Background(), "+15550001111", "hello")
	if result.Success {
		t.Fatal("expected failure on 5xx")
	}
	// 5xx 必须归类为可重试的 provider 错误
	if !strings.Contains(result.Err.Error(), "provider returned 5xx") {
		t.Errorf("error = %v, want provider returned 5xx", result.Err)
	}
}

func TestSendSMSClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewTwilioSMSSender(testSMSConfig(), zap.NewNop()).WithBaseURL(srv.URL)

	result := s.SendSMS(context.Background(), "not-a-number", "hello")
	if result.Success {
		t.Fatal("expected failure on 4xx")
	}
	if strings.Contains(result.Err.Error(), "provider returned 5xx") {
		t.Error("4xx must not be classified as retryable provider error")
	}
}

func TestSendSMSUnconfigured(t *testing.T) {
	cases := []config.SMSConfig{
		{},
		{AccountSID: "not-an-ac-sid", AuthToken: "t", FromNumber: "+1555"},
		{AccountSID: "AC123", FromNumber: "+1555"},
	}
	for _, cfg := range cases {
		s := NewTwilioSMSSender(cfg, zap.NewNop())
		result := s.SendSMS(context.Background(), "+15550001111", "hello")
		if result.Success {
			t.Fatalf("config %+v should be treated as unconfigured", cfg)
		}
		if !strings.Contains(result.Err.Error(), "provider not configured") {
			t.Errorf("error = %v, want provider not configured", result.Err)
		}
	}
}
