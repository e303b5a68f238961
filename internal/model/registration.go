package model

import "time"

const (
	RegistrationStatusRegistered = "registered"
	RegistrationStatusAttended   = "attended"
	RegistrationStatusCancelled  = "cancelled"
)

// SentFlags 各渠道的确认通知是否已发出
type SentFlags struct {
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	Calendar bool `json:"calendar"`
}

// Registration (user, event) 对上有唯一约束，状态迁移由外部驱动。
type Registration struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	EventID         int64     `json:"event_id"`
	Status          string    `json:"status"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	Sent            SentFlags `json:"notifications_sent"`
	RegisteredAt    time.Time `json:"registered_at"`
}
