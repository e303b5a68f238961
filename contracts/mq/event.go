package mq

import "time"

// EventCreatedPayload 事件创建后经 outbox 发布到 MQ 的负载
type EventCreatedPayload struct {
	EventID   int64     `json:"event_id"`
	Title     string    `json:"title"`
	Sector    string    `json:"sector"`
	EventDate time.Time `json:"event_date"`
	TraceID   string    `json:"trace_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
