// Package fanout notifies every interested user when a new event is
// published.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/model"
	"triconnect/pkg/metrics"
)

// AudienceSource 按板块找出感兴趣的用户
type AudienceSource interface {
	ListInterestedInSector(ctx context.Context, sector string) ([]*model.User, error)
}

// Ledger 通知台账写入口
type Ledger interface {
	Insert(ctx context.Context, n *model.Notification) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

const defaultMaxConcurrency = 8

// Service fans out a new-event announcement to the interested audience.
// 每个用户独立处理，单个失败不中断整批。
type Service struct {
	audience AudienceSource
	ledger   Ledger
	email    channel.EmailSender
	logger   *zap.Logger

	maxConcurrency int
	now            func() time.Time
}

func NewService(audience AudienceSource, ledger Ledger, email channel.EmailSender, logger *zap.Logger) *Service {
	return &Service{
		audience:       audience,
		ledger:         ledger,
		email:          email,
		logger:         logger,
		maxConcurrency: defaultMaxConcurrency,
		now:            time.Now,
	}
}

// WithMaxConcurrency 限制同时在途的投递数
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// WithNow 覆盖时钟，测试用
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Announce records one ledger row per interested user and attempts email
// delivery for users who opted in. Each row starts pending so the
// announcement shows up in-app even when email is declined or fails.
func (s *Service) Announce(ctx context.Context, event *model.Event) error {
	users, err := s.audience.ListInterestedInSector(ctx, event.Sector)
	if err != nil {
		return fmt.Errorf("failed to list audience for sector %s: %w", event.Sector, err)
	}

	metrics.RecordFanoutAudience(len(users))
	s.logger.Info("Fanning out new event announcement",
		zap.Int64("event_id", event.ID),
		zap.String("sector", event.Sector),
		zap.Int("audience", len(users)),
	)

	excerpt := Excerpt(event.Description, 200)

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxConcurrency)
	for _, user := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(user *model.User) {
			defer wg.Done()
			defer func() { <-sem }()
			s.notifyUser(ctx, event, user, excerpt)
		}(user)
	}
	wg.Wait()

	return nil
}

func (s *Service) notifyUser(ctx context.Context, event *model.Event, user *model.User, excerpt string) {
	n := &model.Notification{
		UserID:  user.ID,
		EventID: event.ID,
		Type:    model.NotificationTypeNewEvent,
		Channel: model.ChannelEmail,
		Subject: fmt.Sprintf("New %s Event: %s", event.Sector, event.Title),
		Body:    excerpt,
		Status:  model.NotificationStatusPending,
	}
	if err := s.ledger.Insert(ctx, n); err != nil {
		s.logger.Error("Failed to record fan-out notification",
			zap.Int64("user_id", user.ID),
			zap.Int64("event_id", event.ID),
			zap.Error(err),
		)
		return
	}

	// 邮件偏好关闭时行保持 pending，应用内仍可见
	if !user.Preferences.Email {
		return
	}

	result := s.email.SendEmail(ctx, user.Email, n.Subject, announcementBody(user.Name, event, excerpt))
	if result.Success {
		if err := s.ledger.MarkSent(ctx, n.ID, s.now()); err != nil {
			s.logger.Error("Failed to mark notification sent",
				zap.Int64("notification_id", n.ID),
				zap.Error(err),
			)
		}
		return
	}

	reason := "delivery failed"
	if result.Err != nil {
		reason = result.Err.Error()
	}
	s.logger.Warn("Fan-out email delivery failed",
		zap.Int64("user_id", user.ID),
		zap.Int64("event_id", event.ID),
		zap.String("reason", reason),
	)
	if err := s.ledger.MarkFailed(ctx, n.ID, reason); err != nil {
		s.logger.Error("Failed to mark notification failed",
			zap.Int64("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

func announcementBody(name string, event *model.Event, excerpt string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>New Event in %s</h2>
  <p>Dear %s,</p>
  <p>A new event you might be interested in: <strong>%s</strong></p>
  <p>%s</p>
  <p>Date: %s</p>
  <p>Best regards,<br>TriConnect Team</p>
</div>`, event.Sector, name, event.Title, excerpt, event.EventDate.Format("Jan 2, 2006"))
}

// Excerpt truncates s to at most maxRunes runes, never splitting a rune.
// The ellipsis counts against the limit, so the result never exceeds it.
func Excerpt(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
