package model

import "time"

// 通知类型
const (
	NotificationTypeRegistration  = "registration"
	NotificationTypeNewEvent      = "new_event"
	NotificationTypeEventReminder = "event_reminder"
	NotificationTypeEventUpdate   = "event_update"
)

// 投递渠道
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelCalendar = "calendar"
	ChannelInApp    = "in-app"
)

// 通知状态
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusRead    = "read"
)

// Notification 台账记录：每次投递尝试一行，只追加，核心不删除。
type Notification struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	EventID       int64      `json:"event_id"`
	Type          string     `json:"type"`
	Channel       string     `json:"channel"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	IsRead        bool       `json:"is_read"`
	CreatedAt     time.Time  `json:"created_at"`
}
