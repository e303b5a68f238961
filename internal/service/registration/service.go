// Package registration handles event sign-up and the confirmation
// notifications that follow it.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/internal/channel"
	"triconnect/internal/model"
	"triconnect/pkg/logger"
)

var (
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventInactive     = errors.New("event is not active")
)

// RegistrationStore 报名行的读写
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	FindByUserAndEvent(ctx context.Context, userID, eventID int64) (*model.Registration, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateSentFlags(ctx context.Context, id int64, flags model.SentFlags) error
	SetCalendarEventID(ctx context.Context, id int64, calendarEventID string) error
}

// EventStore 只读事件
type EventStore interface {
	FindByID(ctx context.Context, id int64) (*model.Event, error)
}

// UserStore 只读用户
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Ledger 通知台账写入口
type Ledger interface {
	Insert(ctx context.Context, n *model.Notification) error
}

// Service creates registrations and fires the confirmation side effects.
// 确认通知是尽力而为的：任何渠道失败都只记录，不影响报名本身。
type Service struct {
	registrations RegistrationStore
	events        EventStore
	users         UserStore
	ledger        Ledger
	email         channel.EmailSender
	sms           channel.SMSSender
	calendar      channel.CalendarInserter
	logger        *zap.Logger
	now           func() time.Time
}

func NewService(
	registrations RegistrationStore,
	events EventStore,
	users UserStore,
	ledger Ledger,
	email channel.EmailSender,
	sms channel.SMSSender,
	calendar channel.CalendarInserter,
	log *zap.Logger,
) *Service {
	return &Service{
		registrations: registrations,
		events:        events,
		users:         users,
		ledger:        ledger,
		email:         email,
		sms:           sms,
		calendar:      calendar,
		logger:        log,
		now:           time.Now,
	}
}

// Register signs the user up for the event and sends confirmations on the
// user's enabled channels.
func (s *Service) Register(ctx context.Context, userID, eventID int64) (*model.Registration, error) {
	log := logger.WithTrace(ctx, s.logger)

	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if !event.IsActive {
		return nil, ErrEventInactive
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	reg := &model.Registration{
		UserID:  userID,
		EventID: eventID,
		Status:  model.RegistrationStatusRegistered,
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	log.Info("User registered for event",
		zap.Int64("user_id", userID),
		zap.Int64("event_id", eventID),
	)

	s.sendConfirmations(ctx, log, reg, event, user)
	return reg, nil
}

// Cancel marks the registration cancelled. The calendar entry, if any, is
// left to the user to clean up.
func (s *Service) Cancel(ctx context.Context, userID, eventID int64) error {
	reg, err := s.registrations.FindByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("failed to load registration: %w", err)
	}
	return s.registrations.UpdateStatus(ctx, reg.ID, model.RegistrationStatusCancelled)
}

func (s *Service) sendConfirmations(ctx context.Context, log *zap.Logger, reg *model.Registration, event *model.Event, user *model.User) {
	flags := reg.Sent

	if user.Preferences.Email {
		subject := fmt.Sprintf("Registration Confirmed: %s", event.Title)
		body := confirmationEmailBody(user.Name, event)
		result := s.email.SendEmail(ctx, user.Email, subject, body)
		flags.Email = result.Success
		s.recordConfirmation(ctx, log, user.ID, event.ID, model.ChannelEmail, subject, body, result)
	}

	if user.Preferences.SMS {
		body := fmt.Sprintf("You're registered for %s on %s. See you there!",
			event.Title, event.EventDate.Format("Jan 2, 2006"))
		result := s.sms.SendSMS(ctx, user.Phone, body)
		flags.SMS = result.Success
		s.recordConfirmation(ctx, log, user.ID, event.ID, model.ChannelSMS, "", body, result)
	}

	if user.Preferences.Calendar && s.calendar != nil {
		result := s.calendar.InsertEvent(ctx, event)
		flags.Calendar = result.Success
		if result.Success {
			if err := s.registrations.SetCalendarEventID(ctx, reg.ID, result.MessageID); err != nil {
				log.Error("Failed to store calendar event id",
					zap.Int64("registration_id", reg.ID),
					zap.Error(err),
				)
			}
		} else {
			log.Warn("Calendar insert failed",
				zap.Int64("registration_id", reg.ID),
				zap.Error(result.Err),
			)
		}
	}

	if flags != reg.Sent {
		if err := s.registrations.UpdateSentFlags(ctx, reg.ID, flags); err != nil {
			log.Error("Failed to update sent flags",
				zap.Int64("registration_id", reg.ID),
				zap.Error(err),
			)
		} else {
			reg.Sent = flags
		}
	}
}

func (s *Service) recordConfirmation(ctx context.Context, log *zap.Logger, userID, eventID int64, ch, subject, body string, result channel.DeliveryResult) {
	n := &model.Notification{
		UserID:  userID,
		EventID: eventID,
		Type:    model.NotificationTypeRegistration,
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
		log.Warn("Confirmation delivery failed",
			zap.Int64("user_id", userID),
			zap.Int64("event_id", eventID),
			zap.String("channel", ch),
			zap.Error(result.Err),
		)
	}
	if err := s.ledger.Insert(ctx, n); err != nil {
		log.Error("Failed to record confirmation notification",
			zap.Int64("user_id", userID),
			zap.Int64("event_id", eventID),
			zap.String("channel", ch),
			zap.Error(err),
		)
	}
}

func confirmationEmailBody(name string, event *model.Event) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Registration Confirmed</h2>
  <p>Dear %s,</p>
  <p>You are registered for: <strong>%s</strong></p>
  <p>Date: %s</p>
  <p>Best regards,<br>TriConnect Team</p>
</div>`, name, event.Title, event.EventDate.Format("Jan 2, 2006"))
}
