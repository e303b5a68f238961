package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"triconnect/internal/model"
	"triconnect/internal/service/auth"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(authService *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

type registerRequest struct {
	Name        string                         `json:"name" binding:"required"`
	Email       string                         `json:"email" binding:"required,email"`
	Phone       string                         `json:"phone"`
	Password    string                         `json:"password" binding:"required,min=8"`
	Sector      *string                        `json:"sector"`
	Preferences *model.NotificationPreferences `json:"notification_preferences"`
	Interests   *model.SectorInterests         `json:"interests"`
}

// Register 创建用户
// POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Sector != nil && !model.ValidSector(*req.Sector) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sector"})
		return
	}

	in := auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Sector:   req.Sector,
		// 默认打开邮件通知，和前端注册表单的默认值一致
		Preferences: model.NotificationPreferences{Email: true},
	}
	if req.Preferences != nil {
		in.Preferences = *req.Preferences
	}
	if req.Interests != nil {
		in.Interests = *req.Interests
	}

	user, token, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("Failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 验证凭据并签发 token
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.logger.Error("Failed to log in user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
