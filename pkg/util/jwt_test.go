package util

import (
	"net/http"
	"testing"
)

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT(42, "admin", "secret")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	userID, role, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT() error = %v", err)
	}
	if userID != 42 || role != "admin" {
		t.Errorf("claims = (%d, %q), want (42, admin)", userID, role)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT(42, "user", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := ParseJWT(token, "other-secret"); err == nil {
		t.Fatal("expected error with wrong secret")
	}
}

func TestExtractToken(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	if got := ExtractToken(req); got != "" {
		t.Errorf("ExtractToken() = %q, want empty", got)
	}

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := ExtractToken(req); got != "abc.def.ghi" {
		t.Errorf("ExtractToken() = %q, want abc.def.ghi", got)
	}
}

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !CheckPassword("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestFormatKeys(t *testing.T) {
	if got := FormatReminderKey(7, 42, "email"); got != "remind:7:42:email" {
		t.Errorf("FormatReminderKey() = %q", got)
	}
	if got := FormatRetryKey("event_created", 7); got != "retry:event_created:7" {
		t.Errorf("FormatRetryKey() = %q", got)
	}
}
