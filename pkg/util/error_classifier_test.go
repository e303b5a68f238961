package util

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		class     string
	}{
		{"nil", nil, false, ""},
		{"not found", pgx.ErrNoRows, false, "not_found"},
		{"wrapped not found", fmt.Errorf("failed to load event: %w", pgx.ErrNoRows), false, "not_found"},
		{"duplicate key", errors.New(`duplicate key value violates unique constraint`), false, "duplicate_key"},
		{"db connection", errors.New("connection refused"), true, "db_connection_error"},
		{"timeout string", errors.New("i/o timeout"), true, "db_connection_error"},
		{"context deadline", context.DeadlineExceeded, true, "timeout"},
		{"context canceled", context.Canceled, false, "context_canceled"},
		{"provider 5xx", errors.New("provider returned 5xx: 502"), true, "provider_error"},
		{"provider unconfigured", errors.New("provider not configured: twilio"), false, "provider_unconfigured"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, class := IsRetryableError(tt.err)
			if retryable != tt.retryable || class != tt.class {
				t.Errorf("IsRetryableError() = (%v, %q), want (%v, %q)", retryable, class, tt.retryable, tt.class)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if ShouldRetry(1, 3, false) {
		t.Error("permanent errors must never retry")
	}
	if !ShouldRetry(3, 3, true) {
		t.Error("retry allowed while count <= max")
	}
	if ShouldRetry(4, 3, true) {
		t.Error("retry must stop past max")
	}
}
