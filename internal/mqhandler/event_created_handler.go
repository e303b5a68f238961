// Package mqhandler wires MQ messages to domain services.
package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/contracts/mq"
	"triconnect/internal/model"
	"triconnect/pkg/logger"
	"triconnect/pkg/util"
)

// EventStore 只需要按 ID 取事件
type EventStore interface {
	FindByID(ctx context.Context, id int64) (*model.Event, error)
}

// Announcer 对受众做事件创建扇出
type Announcer interface {
	Announce(ctx context.Context, event *model.Event) error
}

// Deduper 消息级去重
type Deduper interface {
	AcquireOnce(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

// RetryCounter 跨投递的重试计数
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

const handlerName = "event_created"

// EventCreatedHandler consumes event.created messages and triggers the
// fan-out. Returning nil acks the message; returning an error nacks it
// back onto the queue.
type EventCreatedHandler struct {
	events     EventStore
	announcer  Announcer
	deduper    Deduper
	retries    RetryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewEventCreatedHandler(
	events EventStore,
	announcer Announcer,
	deduper Deduper,
	retries RetryCounter,
	maxRetries int64,
	log *zap.Logger,
) *EventCreatedHandler {
	return &EventCreatedHandler{
		events:     events,
		announcer:  announcer,
		deduper:    deduper,
		retries:    retries,
		maxRetries: maxRetries,
		logger:     log,
	}
}

func (h *EventCreatedHandler) Handle(ctx context.Context, body json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var payload mq.EventCreatedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// 坏消息重投也不会变好，ack 掉
		log.Error("Discarding malformed event.created message", zap.Error(err))
		return nil
	}

	dedupKey := fmt.Sprintf("fanout:event:%d", payload.EventID)
	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, dedupKey) {
		log.Info("Duplicate event.created message, skipping",
			zap.Int64("event_id", payload.EventID),
		)
		return nil
	}

	event, err := h.events.FindByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 事件已被删除，扇出没有意义
			log.Warn("Event no longer exists, skipping fan-out",
				zap.Int64("event_id", payload.EventID),
			)
			return nil
		}
		return h.fail(ctx, log, payload.EventID, dedupKey, fmt.Errorf("failed to load event: %w", err))
	}

	if err := h.announcer.Announce(ctx, event); err != nil {
		return h.fail(ctx, log, payload.EventID, dedupKey, err)
	}

	if h.retries != nil {
		if err := h.retries.Reset(ctx, util.FormatRetryKey(handlerName, payload.EventID)); err != nil {
			log.Warn("Failed to reset retry counter", zap.Error(err))
		}
	}
	log.Info("Event fan-out completed", zap.Int64("event_id", payload.EventID))
	return nil
}

// fail decides between nack-requeue and ack-and-drop based on the error
// class and the accumulated retry count.
func (h *EventCreatedHandler) fail(ctx context.Context, log *zap.Logger, eventID int64, dedupKey string, err error) error {
	retryable, class := util.IsRetryableError(err)

	var count int64
	if h.retries != nil {
		var cerr error
		count, cerr = h.retries.IncrementAndGet(ctx, util.FormatRetryKey(handlerName, eventID))
		if cerr != nil {
			log.Warn("Retry counter unavailable, assuming first attempt", zap.Error(cerr))
		}
	}

	if util.ShouldRetry(count, h.maxRetries, retryable) {
		// 释放去重键，否则重投会被当成重复丢掉
		if h.deduper != nil {
			h.deduper.Release(ctx, dedupKey)
		}
		log.Warn("Fan-out failed, message will be requeued",
			zap.Int64("event_id", eventID),
			zap.Int64("retry_count", count),
			zap.String("error_class", class),
			zap.Error(err),
		)
		return err
	}

	log.Error("Fan-out failed permanently, dropping message",
		zap.Int64("event_id", eventID),
		zap.Int64("retry_count", count),
		zap.String("error_class", class),
		zap.Error(err),
	)
	return nil
}
