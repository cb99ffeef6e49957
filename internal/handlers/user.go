package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"cgu-connect/internal/messaging"
	"cgu-connect/internal/models"
	"cgu-connect/internal/telemetry"
)

type userService interface {
	CreateUser(ctx context.Context, in messaging.CreateUserInput) (models.User, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error)
}

type UserHandler struct {
	svc   userService
	audit *telemetry.AuditEmitter
}

func NewUserHandler(svc userService, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{svc: svc, audit: audit}
}

// CreateUser registers an account.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required,max=72"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), messaging.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.AuditEntry{
		Action:    telemetry.ActionUserCreated,
		Text:      fmt.Sprintf("user %s created", user.Username),
		RequestID: requestIDFromContext(c),
		UserID:    &user.ID,
	})
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}

	user, err := h.svc.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile edits the caller's own profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := idParam(c, "userId")
	if !ok || !actingAs(c, userID) {
		return
	}
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Emit(c.Request.Context(), telemetry.AuditEntry{
		Action:    telemetry.ActionProfileUpdated,
		Text:      "profile updated",
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c, userID),
	})
	c.JSON(http.StatusOK, user)
}
