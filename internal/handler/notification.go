package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/service/notification"
	apperrors "github.com/jeromwolf/FluxNews/pkg/errors"
)

const defaultListLimit = 50

// NotificationHandler is the user-facing surface: notification history,
// read receipts, and delivery settings.
type NotificationHandler struct {
	service *notification.Service
}

func NewNotificationHandler(service *notification.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.Param("user_id")
	unreadOnly := c.Query("unread_only") == "true"
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, NewErrorResponse("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	notifications, err := h.service.Notifications(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to list notifications"))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(notifications))
}

type markReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), c.Param("user_id"), req.IDs); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to mark notifications read"))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(gin.H{"updated": len(req.IDs)}))
}

func (h *NotificationHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to load settings"))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(settings))
}

type updateSettingsRequest struct {
	Enabled                  *bool           `json:"enabled"`
	TypeSettings             map[string]bool `json:"type_settings"`
	ChannelSettings          map[string]bool `json:"channel_settings"`
	ImpactThreshold          *float64        `json:"impact_threshold" binding:"omitempty,gte=0,lte=1"`
	SentimentChangeThreshold *float64        `json:"sentiment_change_threshold" binding:"omitempty,gte=0,lte=1"`
	QuietHoursStart          *int            `json:"quiet_hours_start" binding:"omitempty,gte=0,lte=23"`
	QuietHoursEnd            *int            `json:"quiet_hours_end" binding:"omitempty,gte=0,lte=23"`
}

func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), c.Param("user_id"), patch)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrBadRequest {
			c.JSON(http.StatusBadRequest, NewErrorResponse(appErr.Message))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse("failed to update settings"))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(settings))
}

// toPatch validates enum keys up front so unknown types or channels are
// rejected rather than silently stored.
func (r *updateSettingsRequest) toPatch() (model.SettingsPatch, error) {
	patch := model.SettingsPatch{
		Enabled:                  r.Enabled,
		ImpactThreshold:          r.ImpactThreshold,
		SentimentChangeThreshold: r.SentimentChangeThreshold,
		QuietHoursStart:          r.QuietHoursStart,
		QuietHoursEnd:            r.QuietHoursEnd,
	}
	if len(r.TypeSettings) > 0 {
		patch.TypeSettings = make(map[model.NotificationType]bool, len(r.TypeSettings))
		for k, v := range r.TypeSettings {
			typ, err := model.ParseNotificationType(k)
			if err != nil {
				return model.SettingsPatch{}, err
			}
			patch.TypeSettings[typ] = v
		}
	}
	if len(r.ChannelSettings) > 0 {
		patch.ChannelSettings = make(map[model.NotificationChannel]bool, len(r.ChannelSettings))
		for k, v := range r.ChannelSettings {
			ch, err := model.ParseNotificationChannel(k)
			if err != nil {
				return model.SettingsPatch{}, err
			}
			patch.ChannelSettings[ch] = v
		}
	}
	return patch, nil
}
