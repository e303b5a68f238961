// Package event owns event publication. Creating an event and queueing
// its fan-out message happen in one transaction via the outbox.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"triconnect/contracts/mq"
	"triconnect/internal/model"
	"triconnect/internal/repository"
	"triconnect/pkg/logger"
	"triconnect/pkg/outbox"
	"triconnect/pkg/trace"
)

const routingKeyEventCreated = "event.created"

type Service struct {
	db     *pgxpool.Pool
	events *repository.EventRepository
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewService(db *pgxpool.Pool, events *repository.EventRepository, ob *outbox.Repository, log *zap.Logger) *Service {
	return &Service{db: db, events: events, outbox: ob, logger: log}
}

// Create inserts the event and its outbox message atomically. The
// dispatcher picks the message up afterwards; fan-out never runs inside
// the request.
func (s *Service) Create(ctx context.Context, e *model.Event) error {
	log := logger.WithTrace(ctx, s.logger)

	if !model.ValidSector(e.Sector) {
		return fmt.Errorf("invalid sector: %s", e.Sector)
	}
	if e.Category != "" && !model.ValidCategory(e.Category) {
		return fmt.Errorf("invalid category: %s", e.Category)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.events.CreateInTx(ctx, tx, e); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	payload := mq.EventCreatedPayload{
		EventID:   e.ID,
		Title:     e.Title,
		Sector:    e.Sector,
		EventDate: e.EventDate,
		TraceID:   trace.FromContext(ctx),
		CreatedAt: time.Now(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, s.outbox, "event", &e.ID, routingKeyEventCreated, payload); err != nil {
		return fmt.Errorf("failed to queue outbox message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Info("Event created",
		zap.Int64("event_id", e.ID),
		zap.String("sector", e.Sector),
	)
	return nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id int64) (*model.Event, error) {
	return s.events.FindByID(ctx, id)
}

// List returns active events with optional sector/category filters.
func (s *Service) List(ctx context.Context, sector, category string, limit, offset int) ([]*model.Event, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListActive(ctx, sector, category, limit, offset)
}

// Update persists event edits.
func (s *Service) Update(ctx context.Context, e *model.Event) error {
	return s.events.Update(ctx, e)
}

// Deactivate soft-deletes the event; reminders ignore inactive events.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	e, err := s.events.FindByID(ctx, id)
	if err != nil {
		return err
	}
	e.IsActive = false
	return s.events.Update(ctx, e)
}
