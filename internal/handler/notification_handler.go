package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"triconnect/internal/model"
	"triconnect/internal/repository"
)

type NotificationHandler struct {
	notifications *repository.NotificationRepository
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *repository.NotificationRepository, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List 当前用户的通知，最新在前
// GET /notifications?limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := h.notifications.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	if rows == nil {
		rows = []*model.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": rows})
}

// Unread 未读通知
// GET /notifications/unread
func (h *NotificationHandler) Unread(c *gin.Context) {
	userID := currentUserID(c)

	rows, err := h.notifications.ListUnreadByUser(c.Request.Context(), userID, 200)
	if err != nil {
		h.logger.Error("Failed to list unread notifications", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	if rows == nil {
		rows = []*model.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": rows, "count": len(rows)})
}

// MarkRead 标记单条已读
// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID := currentUserID(c)

	if err := h.notifications.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		h.logger.Error("Failed to mark notification read",
			zap.Int64("notification_id", id),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// MarkAllRead 全部标记已读
// POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := currentUserID(c)

	if err := h.notifications.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		h.logger.Error("Failed to mark all notifications read", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
