// Package reminder implements the hourly scan that delivers "your event is
// coming up" notifications to registered users.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/model"
	"triconnect/pkg/metrics"
)

// EventSource 扫描窗口内的活跃事件
type EventSource interface {
	ListUpcomingActive(ctx context.Context, from, to time.Time) ([]*model.Event, error)
}

// RegistrationSource 事件的有效报名
type RegistrationSource interface {
	ListRegisteredByEvent(ctx context.Context, eventID int64) ([]*model.Registration, error)
}

// UserSource 只读取用户偏好和联系方式
type UserSource interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Ledger 通知台账：权威的幂等判定来源
type Ledger interface {
	Insert(ctx context.Context, n *model.Notification) error
	HasSentReminder(ctx context.Context, userID, eventID int64, ch string) (bool, error)
}

// Deduper Redis 快速路径，可选（nil 时只查台账）
type Deduper interface {
	AcquireOnce(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

type dedupKeyFunc func(eventID, userID int64, ch string) string

// Scanner 每小时整点跑一遍，窗口随时间前移，崩溃后重启是安全的：
// 所有去重状态都在台账里，内存中不保存跨轮状态。
type Scanner struct {
	events        EventSource
	registrations RegistrationSource
	users         UserSource
	ledger        Ledger
	email         channel.EmailSender
	sms           channel.SMSSender
	deduper       Deduper
	dedupKey      dedupKeyFunc
	logger        *zap.Logger

	window time.Duration
	now    func() time.Time
}

func NewScanner(
	events EventSource,
	registrations RegistrationSource,
	users UserSource,
	ledger Ledger,
	email channel.EmailSender,
	sms channel.SMSSender,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		events:        events,
		registrations: registrations,
		users:         users,
		ledger:        ledger,
		email:         email,
		sms:           sms,
		logger:        logger,
		window:        24 * time.Hour,
		now:           time.Now,
	}
}

// WithDeduper 挂上 Redis 快速路径
func (s *Scanner) WithDeduper(d Deduper, keyFn dedupKeyFunc) *Scanner {
	s.deduper = d
	s.dedupKey = keyFn
	return s
}

// WithWindow 覆盖提醒窗口长度
func (s *Scanner) WithWindow(window time.Duration) *Scanner {
	s.window = window
	return s
}

// WithNow 覆盖时钟，测试用
func (s *Scanner) WithNow(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Start runs one scan immediately, then once per hour aligned to the top
// of the wall-clock hour. Blocks until ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	// 启动先跑一遍；幂等保护让这总是安全的
	if err := s.Scan(ctx); err != nil {
		s.logger.Error("Initial reminder scan failed", zap.Error(err))
	}

	for {
		next := s.now().Truncate(time.Hour).Add(time.Hour)
		delay := next.Sub(s.now())

		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scanner stopped")
			return
		case <-time.After(delay):
			if err := s.Scan(ctx); err != nil {
				s.logger.Error("Reminder scan failed", zap.Error(err))
			}
		}
	}
}

// Scan performs one pass. A failure of the window query aborts the pass
// (the next tick retries from scratch); anything narrower is logged and
// skipped.
func (s *Scanner) Scan(ctx context.Context) error {
	start := s.now()
	windowEnd := start.Add(s.window)

	s.logger.Info("Running reminder scan",
		zap.Time("window_start", start),
		zap.Time("window_end", windowEnd),
	)

	events, err := s.events.ListUpcomingActive(ctx, start, windowEnd)
	if err != nil {
		return fmt.Errorf("failed to list upcoming events: %w", err)
	}

	for _, event := range events {
		if err := s.remindEvent(ctx, event); err != nil {
			// 单个事件失败不影响其它事件
			s.logger.Error("Failed to process event reminders",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
		}
	}

	metrics.RecordReminderScan(time.Since(start), len(events))
	s.logger.Info("Reminder scan completed",
		zap.Int("events", len(events)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Scanner) remindEvent(ctx context.Context, event *model.Event) error {
	regs, err := s.registrations.ListRegisteredByEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to list registrations: %w", err)
	}

	for _, reg := range regs {
		user, err := s.users.FindByID(ctx, reg.UserID)
		if err != nil {
			// 用户查不到按静默跳过处理；其它错误记一条日志
			if !errors.Is(err, pgx.ErrNoRows) {
				s.logger.Warn("Failed to resolve user, skipping",
					zap.Int64("user_id", reg.UserID),
					zap.Error(err),
				)
			}
			continue
		}

		if user.Preferences.Email {
			s.remindVia(ctx, event, user, model.ChannelEmail)
		}
		if user.Preferences.SMS {
			s.remindVia(ctx, event, user, model.ChannelSMS)
		}
	}
	return nil
}

// remindVia sends one reminder on one channel, guarded per
// (user, event, channel): a reminder sent on one channel never suppresses
// the other channel.
func (s *Scanner) remindVia(ctx context.Context, event *model.Event, user *model.User, ch string) {
	var dedupKey string
	if s.deduper != nil {
		dedupKey = s.dedupKey(event.ID, user.ID, ch)
		if !s.deduper.AcquireOnce(ctx, dedupKey) {
			return
		}
	}

	sent, err := s.ledger.HasSentReminder(ctx, user.ID, event.ID, ch)
	if err != nil {
		// 判定不了就不发；释放快速路径，否则 key 会把后续重试一直挡住
		s.logger.Warn("Reminder guard query failed, skipping",
			zap.Int64("user_id", user.ID),
			zap.Int64("event_id", event.ID),
			zap.String("channel", ch),
			zap.Error(err),
		)
		if s.deduper != nil {
			s.deduper.Release(ctx, dedupKey)
		}
		return
	}
	if sent {
		return
	}

	var result channel.DeliveryResult
	var subject, body string
	switch ch {
	case model.ChannelEmail:
		subject = fmt.Sprintf("Reminder: %s is coming up!", event.Title)
		body = reminderEmailBody(user.Name, event)
		result = s.email.SendEmail(ctx, user.Email, subject, body)
	case model.ChannelSMS:
		subject = fmt.Sprintf("Reminder: %s", event.Title)
		body = fmt.Sprintf("Reminder: %s is happening on %s. Don't miss it! Check the app for more details.",
			event.Title, event.EventDate.Format("Jan 2, 2006"))
		result = s.sms.SendSMS(ctx, user.Phone, body)
	default:
		return
	}

	n := &model.Notification{
		UserID:  user.ID,
		EventID: event.ID,
		Type:    model.NotificationTypeEventReminder,
		Channel: ch,
		Subject: subject,
		Body:    body,
	}
	if result.Success {
		now := s.now()
		n.Status = model.NotificationStatusSent
		n.SentAt = &now
	} else {
		n.Status = model.NotificationStatusFailed
		if result.Err != nil {
			n.FailureReason = result.Err.Error()
		}
		// 发送失败时释放快速路径，失败行不满足台账判定，下一轮会重试
		if s.deduper != nil {
			s.deduper.Release(ctx, dedupKey)
		}
	}

	// 发送成功但台账写入失败时保留快速路径 key：释放会在下个小时就重发，
	// 保留则最坏在 TTL 过期后才可能重发一次，代价更小。
	if err := s.ledger.Insert(ctx, n); err != nil {
		s.logger.Error("Failed to record reminder notification",
			zap.Int64("user_id", user.ID),
			zap.Int64("event_id", event.ID),
			zap.String("channel", ch),
			zap.Error(err),
		)
	}
}

func reminderEmailBody(name string, event *model.Event) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Event Reminder</h2>
  <p>Dear %s,</p>
  <p>This is a reminder about your registered event: <strong>%s</strong></p>
  <p>Date: %s</p>
  <p>Best regards,<br>TriConnect Team</p>
</div>`, name, event.Title, event.EventDate.Format("Jan 2, 2006"))
}
