package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"triconnect/internal/model"
)

type EventRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEventRepository(db *pgxpool.Pool, logger *zap.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

const eventColumns = `
	id, title, description, sector, category, event_date, event_time,
	loc_address, loc_city, loc_state, loc_zip, loc_lat, loc_lng,
	registration_link, capacity, created_by, is_active, created_at
`

func scanEvent(row interface{ Scan(dest ...any) error }) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Sector, &e.Category, &e.EventDate, &e.EventTime,
		&e.Location.Address, &e.Location.City, &e.Location.State, &e.Location.ZipCode,
		&e.Location.Lat, &e.Location.Lng,
		&e.RegistrationLink, &e.Capacity, &e.CreatedBy, &e.IsActive, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateInTx inserts the event inside the caller's transaction so the
// outbox row can be written atomically with it.
func (r *EventRepository) CreateInTx(ctx context.Context, tx pgx.Tx, e *model.Event) error {
	query := `
        INSERT INTO events (
            title, description, sector, category, event_date, event_time,
            loc_address, loc_city, loc_state, loc_zip, loc_lat, loc_lng,
            registration_link, capacity, created_by, is_active, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE, NOW())
        RETURNING id, created_at
    `
	return tx.QueryRow(ctx, query,
		e.Title, e.Description, e.Sector, e.Category, e.EventDate, e.EventTime,
		e.Location.Address, e.Location.City, e.Location.State, e.Location.ZipCode,
		e.Location.Lat, e.Location.Lng,
		e.RegistrationLink, e.Capacity, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)
}

// FindByID returns an event by id.
func (r *EventRepository) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.db.QueryRow(ctx, query, id))
}

// ListActive returns active events, newest first, optionally filtered.
func (r *EventRepository) ListActive(ctx context.Context, sector, category string, limit, offset int) ([]*model.Event, error) {
	query := `
        SELECT ` + eventColumns + `
        FROM events
        WHERE is_active = TRUE
        AND ($1 = '' OR sector = $1)
        AND ($2 = '' OR category = $2)
        ORDER BY event_date DESC
        LIMIT $3 OFFSET $4
    `
	rows, err := r.db.Query(ctx, query, sector, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListUpcomingActive returns active events with event_date inside [from, to].
// This is the reminder-window query; inactive events never show up here.
func (r *EventRepository) ListUpcomingActive(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	query := `
        SELECT ` + eventColumns + `
        FROM events
        WHERE is_active = TRUE
        AND event_date >= $1
        AND event_date <= $2
        ORDER BY event_date ASC
    `
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListRegisteredByUser returns events the user has an active registration for.
func (r *EventRepository) ListRegisteredByUser(ctx context.Context, userID int64) ([]*model.Event, error) {
	query := `
        SELECT ` + eventColumnsPrefixed("e") + `
        FROM events e
        JOIN registrations reg ON reg.event_id = e.id
        WHERE reg.user_id = $1 AND reg.status != 'cancelled'
        ORDER BY e.event_date DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// Update persists mutable event fields.
func (r *EventRepository) Update(ctx context.Context, e *model.Event) error {
	query := `
        UPDATE events
        SET title = $1, description = $2, event_date = $3, event_time = $4,
            loc_address = $5, loc_city = $6, loc_state = $7, loc_zip = $8,
            registration_link = $9, is_active = $10
        WHERE id = $11
    `
	_, err := r.db.Exec(ctx, query,
		e.Title, e.Description, e.EventDate, e.EventTime,
		e.Location.Address, e.Location.City, e.Location.State, e.Location.ZipCode,
		e.RegistrationLink, e.IsActive, e.ID,
	)
	return err
}

func collectEvents(rows pgx.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func eventColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.title, ` + alias + `.description, ` + alias + `.sector, ` +
		alias + `.category, ` + alias + `.event_date, ` + alias + `.event_time, ` +
		alias + `.loc_address, ` + alias + `.loc_city, ` + alias + `.loc_state, ` + alias + `.loc_zip, ` +
		alias + `.loc_lat, ` + alias + `.loc_lng, ` +
		alias + `.registration_link, ` + alias + `.capacity, ` + alias + `.created_by, ` +
		alias + `.is_active, ` + alias + `.created_at`
}
