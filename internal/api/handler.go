package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/dispatch"
	"github.com/mr1hm/go-weather-alerts/internal/models"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
	"github.com/mr1hm/go-weather-alerts/internal/scheduler"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	minTokenLen = 50
	maxTokenLen = 500
)

type AlertReader interface {
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, opts repository.Filter) ([]models.Alert, error)
	CountAlerts(ctx context.Context, opts repository.Filter) (int, error)
}

type DeviceRegistry interface {
	RegisterPushToken(ctx context.Context, id, token string) error
	SetAlertsEnabled(ctx context.Context, id string, enabled bool) error
}

type Notifier interface {
	DispatchAlert(ctx context.Context, a *models.Alert) (dispatch.Report, error)
	DispatchDirect(ctx context.Context, recipientID, title, body string) (bool, error)
}

type JobStatuser interface {
	Status() []scheduler.JobStatus
}

type Handler struct {
	alerts      AlertReader
	devices     DeviceRegistry
	notifier    Notifier
	broadcaster *broadcast.Broadcaster
	jobs        JobStatuser
}

// NewHandler builds the API handler. broadcaster and jobs may be nil.
func NewHandler(alerts AlertReader, devices DeviceRegistry, notifier Notifier, broadcaster *broadcast.Broadcaster, jobs JobStatuser) *Handler {
	return &Handler{
		alerts:      alerts,
		devices:     devices,
		notifier:    notifier,
		broadcaster: broadcaster,
		jobs:        jobs,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	alerts := r.Group("/api/alerts")
	alerts.GET("", h.listAlerts)
	alerts.GET("/stream", h.streamAlerts)
	alerts.GET("/:id", h.getAlert)
	alerts.POST("/:id/republish", h.republishAlert)

	authed := r.Group("/api", RequireUser())
	authed.POST("/devices/token", h.registerToken)
	authed.PUT("/devices/preferences", h.updatePreferences)
	authed.POST("/notifications/test", h.sendTestNotification)
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.jobs != nil {
		resp["jobs"] = h.jobs.Status()
	}
	if h.broadcaster != nil {
		resp["stream_subscribers"] = h.broadcaster.SubscriberCount()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listAlerts(c *gin.Context) {
	page, ok := positiveQuery(c, "page", 1)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
		return
	}
	pageSize, ok := positiveQuery(c, "page_size", defaultPageSize)
	if !ok {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var filter repository.Filter
	if s := c.Query("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid severity",
				"allowed": models.Severities(),
			})
			return
		}
		filter.Severity = &sev
	}
	if s := c.Query("since"); s != "" {
		since, ok := parseSince(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD or RFC 3339"})
			return
		}
		filter.Since = &since
	}

	ctx := c.Request.Context()
	total, err := h.alerts.CountAlerts(ctx, filter)
	if err != nil {
		slog.Error("failed to count alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}

	// The first page always exists, even when empty.
	if page > 1 && (page-1)*pageSize >= total {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
		return
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	alerts, err := h.alerts.ListAlerts(ctx, filter)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, newAlertPage(alerts, total, page, pageSize))
}

func (h *Handler) getAlert(c *gin.Context) {
	a, ok := h.lookupAlert(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toAlertResponse(a))
}

func (h *Handler) republishAlert(c *gin.Context) {
	a, ok := h.lookupAlert(c)
	if !ok {
		return
	}

	report, err := h.notifier.DispatchAlert(c.Request.Context(), a)
	if err != nil {
		slog.Error("republish failed", "alert_id", a.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alert_id":       a.ID,
		"delivered":      report.Delivered,
		"failed":         report.Failed,
		"invalid_tokens": report.InvalidTokens,
	})
}

// lookupAlert resolves :id and writes the error response itself.
func (h *Handler) lookupAlert(c *gin.Context) (*models.Alert, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return nil, false
	}

	a, err := h.alerts.GetAlert(c.Request.Context(), id)
	if errors.Is(err, repository.ErrAlertNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return nil, false
	}
	if err != nil {
		slog.Error("failed to get alert", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return nil, false
	}
	return a, true
}

func (h *Handler) streamAlerts(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream unavailable"})
		return
	}

	var minSeverity models.AlertSeverity
	if s := c.Query("min_severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid min_severity",
				"allowed": models.Severities(),
			})
			return
		}
		minSeverity = sev
	}

	id, ch := h.broadcaster.Subscribe(minSeverity)
	defer h.broadcaster.Unsubscribe(id)
	slog.Info("stream client connected", "subscriber", id, "min_severity", minSeverity)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case a, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("alert", toAlertResponse(a))
			return true
		}
	})
	slog.Info("stream client disconnected", "subscriber", id)
}

type tokenRequest struct {
	PushToken string `json:"push_token"`
}

func (h *Handler) registerToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if n := len(req.PushToken); n < minTokenLen || n > maxTokenLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "push_token must be between 50 and 500 characters"})
		return
	}

	userID := UserID(c)
	if err := h.devices.RegisterPushToken(c.Request.Context(), userID, req.PushToken); err != nil {
		slog.Error("failed to register push token", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register push token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push token registered"})
}

type preferencesRequest struct {
	AlertNotifications *bool `json:"alert_notifications"`
}

func (h *Handler) updatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AlertNotifications == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_notifications is required"})
		return
	}

	userID := UserID(c)
	if err := h.devices.SetAlertsEnabled(c.Request.Context(), userID, *req.AlertNotifications); err != nil {
		slog.Error("failed to update preferences", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_notifications": *req.AlertNotifications})
}

type testNotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *Handler) sendTestNotification(c *gin.Context) {
	var req testNotificationRequest
	// An empty body is allowed; defaults apply downstream.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	userID := UserID(c)
	sent, err := h.notifier.DispatchDirect(c.Request.Context(), userID, req.Title, req.Body)
	switch {
	case errors.Is(err, dispatch.ErrNoPushToken), errors.Is(err, repository.ErrRecipientNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no push token registered"})
		return
	case err != nil:
		slog.Error("test notification failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send notification"})
		return
	case !sent:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test notification sent"})
}

func parseSince(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// positiveQuery returns (fallback, true) when key is absent.
func positiveQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
