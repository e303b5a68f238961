package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 通知记录计数（按类型、渠道、状态）
	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_count",
			Help: "Total number of notification records written to the ledger",
		},
		[]string{"type", "channel", "status"},
	)

	// 投递调用延迟（毫秒）
	DeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_latency_ms",
			Help:    "Provider delivery call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"channel", "status"},
	)

	// 提醒扫描耗时（秒）
	ReminderScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_scan_duration_seconds",
			Help:    "Duration of one reminder scan pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	// 单次扫描覆盖的事件数
	ReminderEventsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_events_scanned_total",
			Help: "Total number of events examined by the reminder scanner",
		},
	)

	// 广播受众人数
	FanoutAudienceSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_audience_size",
			Help:    "Number of interested users per event fan-out",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to ~2048
		},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordNotification 记录一条写入台账的通知
func RecordNotification(notificationType, channel, status string) {
	NotificationCount.WithLabelValues(notificationType, channel, status).Inc()
}

// RecordDeliveryLatency 记录投递调用延迟
func RecordDeliveryLatency(channel, status string, duration time.Duration) {
	DeliveryLatency.WithLabelValues(channel, status).Observe(float64(duration.Milliseconds()))
}

// RecordReminderScan 记录一次扫描耗时及覆盖事件数
func RecordReminderScan(duration time.Duration, events int) {
	ReminderScanDuration.Observe(duration.Seconds())
	ReminderEventsScanned.Add(float64(events))
}

// RecordFanoutAudience 记录一次广播的受众人数
func RecordFanoutAudience(size int) {
	FanoutAudienceSize.Observe(float64(size))
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
