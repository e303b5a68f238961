package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"triconnect/internal/model"
)

type RegistrationRepository struct {
	db *pgxpool.Pool
}

func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. The (user_id, event_id) unique constraint
// rejects duplicates; callers translate that into "already registered".
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	query := `
        INSERT INTO registrations (user_id, event_id, status, registered_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id, registered_at
    `
	return r.db.QueryRow(ctx, query, reg.UserID, reg.EventID, reg.Status).
		Scan(&reg.ID, &reg.RegisteredAt)
}

// FindByUserAndEvent returns the registration for a (user, event) pair.
func (r *RegistrationRepository) FindByUserAndEvent(ctx context.Context, userID, eventID int64) (*model.Registration, error) {
	query := `
        SELECT id, user_id, event_id, status, COALESCE(calendar_event_id, ''),
               sent_email, sent_sms, sent_calendar, registered_at
        FROM registrations
        WHERE user_id = $1 AND event_id = $2
    `
	var reg model.Registration
	err := r.db.QueryRow(ctx, query, userID, eventID).Scan(
		&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.CalendarEventID,
		&reg.Sent.Email, &reg.Sent.SMS, &reg.Sent.Calendar, &reg.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListRegisteredByEvent returns registrations for an event with status "registered".
func (r *RegistrationRepository) ListRegisteredByEvent(ctx context.Context, eventID int64) ([]*model.Registration, error) {
	query := `
        SELECT id, user_id, event_id, status, COALESCE(calendar_event_id, ''),
               sent_email, sent_sms, sent_calendar, registered_at
        FROM registrations
        WHERE event_id = $1 AND status = 'registered'
    `
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*model.Registration
	for rows.Next() {
		var reg model.Registration
		err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.CalendarEventID,
			&reg.Sent.Email, &reg.Sent.SMS, &reg.Sent.Calendar, &reg.RegisteredAt,
		)
		if err != nil {
			return nil, err
		}
		regs = append(regs, &reg)
	}
	return regs, rows.Err()
}

// UpdateStatus sets registration status (externally driven transitions).
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE registrations SET status = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, status, id)
	return err
}

// UpdateSentFlags persists the per-channel confirmation flags.
func (r *RegistrationRepository) UpdateSentFlags(ctx context.Context, id int64, flags model.SentFlags) error {
	query := `
        UPDATE registrations
        SET sent_email = $1, sent_sms = $2, sent_calendar = $3
        WHERE id = $4
    `
	_, err := r.db.Exec(ctx, query, flags.Email, flags.SMS, flags.Calendar, id)
	return err
}

// SetCalendarEventID stores the provider-assigned calendar entry id.
func (r *RegistrationRepository) SetCalendarEventID(ctx context.Context, id int64, calendarEventID string) error {
	query := `UPDATE registrations SET calendar_event_id = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, calendarEventID, id)
	return err
}
