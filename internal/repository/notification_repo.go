package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"triconnect/internal/model"
	"triconnect/pkg/metrics"
)

// NotificationRepository 通知台账：只追加，读状态之外不做原地修改。
type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends one delivery-attempt row and fills in the generated id.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	r.logger.Debug("Inserting notification",
		zap.Int64("user_id", n.UserID),
		zap.Int64("event_id", n.EventID),
		zap.String("type", n.Type),
		zap.String("channel", n.Channel),
	)

	query := `
        INSERT INTO notifications (user_id, event_id, type, channel, subject, body, status, sent_at, failure_reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		n.UserID, n.EventID, n.Type, n.Channel, n.Subject, n.Body, n.Status, n.SentAt, n.FailureReason,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return err
	}

	metrics.RecordNotification(n.Type, n.Channel, n.Status)
	return nil
}

// HasSentReminder reports whether a sent event_reminder row exists for the
// (user, event, channel) triple. The guard key includes the channel on
// purpose: a user who enables a second channel later still gets the
// reminder there.
func (r *NotificationRepository) HasSentReminder(ctx context.Context, userID, eventID int64, channel string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM notifications
            WHERE user_id = $1 AND event_id = $2
            AND type = 'event_reminder' AND channel = $3 AND status = 'sent'
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, eventID, channel).Scan(&exists)
	return exists, err
}

// MarkSent flips a pending row to sent.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `UPDATE notifications SET status = 'sent', sent_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, sentAt, id)
	return err
}

// MarkFailed flips a pending row to failed and records the reason.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE notifications SET status = 'failed', failure_reason = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, reason, id)
	return err
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	query := `
        SELECT id, user_id, event_id, type, channel, subject, body, status,
               sent_at, COALESCE(failure_reason, ''), is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	return r.queryNotifications(ctx, query, userID, limit)
}

// ListUnreadByUser returns unread notifications, newest first.
func (r *NotificationRepository) ListUnreadByUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	query := `
        SELECT id, user_id, event_id, type, channel, subject, body, status,
               sent_at, COALESCE(failure_reason, ''), is_read, created_at
        FROM notifications
        WHERE user_id = $1 AND is_read = FALSE
        ORDER BY created_at DESC
        LIMIT $2
    `
	return r.queryNotifications(ctx, query, userID, limit)
}

// MarkAsRead flags a single notification as read for the given user.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, id, userID)
	return err
}

// MarkAllAsRead flags all the user's notifications as read.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*model.Notification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(
			&n.ID, &n.UserID, &n.EventID, &n.Type, &n.Channel, &n.Subject, &n.Body,
			&n.Status, &n.SentAt, &n.FailureReason, &n.IsRead, &n.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
