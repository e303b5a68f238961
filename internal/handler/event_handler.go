package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"triconnect/internal/model"
	"triconnect/internal/service/event"
)

type EventHandler struct {
	events *event.Service
	logger *zap.Logger
}

func NewEventHandler(events *event.Service, logger *zap.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type eventRequest struct {
	Title            string         `json:"title" binding:"required"`
	Description      string         `json:"description"`
	Sector           string         `json:"sector" binding:"required"`
	Category         string         `json:"category"`
	EventDate        time.Time      `json:"event_date" binding:"required"`
	EventTime        string         `json:"event_time"`
	Location         model.Location `json:"location"`
	RegistrationLink string         `json:"registration_link"`
	Capacity         *int           `json:"capacity"`
}

// Create 创建事件并排队扇出消息
// POST /events (admin)
func (h *EventHandler) Create(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e := &model.Event{
		Title:            req.Title,
		Description:      req.Description,
		Sector:           req.Sector,
		Category:         req.Category,
		EventDate:        req.EventDate,
		EventTime:        req.EventTime,
		Location:         req.Location,
		RegistrationLink: req.RegistrationLink,
		Capacity:         req.Capacity,
		CreatedBy:        currentUserID(c),
	}
	if err := h.events.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("Failed to create event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, e)
}

// List 活跃事件，支持 sector/category 过滤
// GET /events?sector=industry&category=conference&limit=20&offset=0
func (h *EventHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.events.List(c.Request.Context(), c.Query("sector"), c.Query("category"), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	if events == nil {
		events = []*model.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Get 单个事件
// GET /events/:id
func (h *EventHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	e, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to load event", zap.Int64("event_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event"})
		return
	}

	c.JSON(http.StatusOK, e)
}

// Update 编辑事件
// PUT /events/:id (admin)
func (h *EventHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	e, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to load event", zap.Int64("event_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load event"})
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e.Title = req.Title
	e.Description = req.Description
	e.EventDate = req.EventDate
	e.EventTime = req.EventTime
	e.Location = req.Location
	e.RegistrationLink = req.RegistrationLink

	if err := h.events.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("Failed to update event", zap.Int64("event_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update event"})
		return
	}

	c.JSON(http.StatusOK, e)
}

// Deactivate 软删除，提醒扫描会忽略非活跃事件
// DELETE /events/:id (admin)
func (h *EventHandler) Deactivate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := h.events.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to deactivate event", zap.Int64("event_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}
