package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/internal/model"
	"triconnect/internal/repository"
	"triconnect/internal/service/registration"
)

type RegistrationHandler struct {
	registrations *registration.Service
	events        *repository.EventRepository
	logger        *zap.Logger
}

func NewRegistrationHandler(registrations *registration.Service, events *repository.EventRepository, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, events: events, logger: logger}
}

// Register 报名事件并触发确认通知
// POST /events/:id/register
func (h *RegistrationHandler) Register(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	userID := currentUserID(c)

	reg, err := h.registrations.Register(c.Request.Context(), userID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, registration.ErrEventInactive):
			c.JSON(http.StatusBadRequest, gin.H{"error": "event is not active"})
		case errors.Is(err, registration.ErrAlreadyRegistered):
			c.JSON(http.StatusConflict, gin.H{"error": "already registered for this event"})
		default:
			h.logger.Error("Failed to register for event",
				zap.Int64("user_id", userID),
				zap.Int64("event_id", eventID),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		}
		return
	}

	c.JSON(http.StatusCreated, reg)
}

// Cancel 取消报名
// DELETE /events/:id/register
func (h *RegistrationHandler) Cancel(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}
	userID := currentUserID(c)

	if err := h.registrations.Cancel(c.Request.Context(), userID, eventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
			return
		}
		h.logger.Error("Failed to cancel registration",
			zap.Int64("user_id", userID),
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// MyEvents 当前用户报名过的事件
// GET /my/events
func (h *RegistrationHandler) MyEvents(c *gin.Context) {
	userID := currentUserID(c)

	events, err := h.events.ListRegisteredByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list registered events",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	if events == nil {
		events = []*model.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
