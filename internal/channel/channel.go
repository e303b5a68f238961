// Package channel wraps the outbound delivery providers (email, SMS,
// calendar). Adapters are plain injected values, never package-level
// singletons, and they never panic: a missing provider configuration
// degrades to a failure result so callers can log and move on.
package channel

import (
	"context"

	"triconnect/internal/model"
)

// DeliveryResult 投递结果：要么成功带 provider 分配的 id，要么失败带原因。
type DeliveryResult struct {
	Success   bool
	MessageID string
	Err       error
}

func Success(messageID string) DeliveryResult {
	return DeliveryResult{Success: true, MessageID: messageID}
}

func Failure(err error) DeliveryResult {
	return DeliveryResult{Success: false, Err: err}
}

// EmailSender sends one email; implementations must always return a result.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) DeliveryResult
}

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) DeliveryResult
}

// CalendarInserter adds an event to the user's calendar.
type CalendarInserter interface {
	InsertEvent(ctx context.Context, event *model.Event) DeliveryResult
}
